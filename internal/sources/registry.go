package sources

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/flowcraft/plugin-sources/internal/config"
)

var (
	// ErrUnknownSourceType is returned when no factory is registered for a type
	ErrUnknownSourceType = errors.New("unknown source type")
	// ErrDuplicateSourceType is returned when a type is registered twice
	ErrDuplicateSourceType = errors.New("duplicate source type")
	// ErrInvalidSourceConfig is returned when a factory rejects a source configuration
	ErrInvalidSourceConfig = errors.New("invalid source configuration")
)

// Factory builds a source variant from its configuration
type Factory func(cfg *config.SourceConfig) (Source, error)

// Entry registers a factory for a type
type Entry struct {
	Type    Type
	Factory Factory
}

// Registry maps source types to factories. It is immutable once built and
// safe for concurrent use.
type Registry struct {
	factories map[Type]Factory
}

// NewRegistry builds a registry from the given entries
func NewRegistry(entries ...Entry) (*Registry, error) {
	factories := make(map[Type]Factory, len(entries))
	for _, e := range entries {
		if e.Type == "" {
			return nil, errors.New("source type cannot be empty")
		}
		if e.Factory == nil {
			return nil, fmt.Errorf("factory for source type %q cannot be nil", e.Type)
		}
		if _, exists := factories[e.Type]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSourceType, e.Type)
		}
		factories[e.Type] = e.Factory
	}
	return &Registry{factories: factories}, nil
}

// BuiltinEntries returns the entries of the git, object storage and filesystem variants
func BuiltinEntries() []Entry {
	return []Entry{
		{Type: TypeGit, Factory: func(cfg *config.SourceConfig) (Source, error) { return NewGitRepoSource(cfg) }},
		{Type: TypeObjectStorage, Factory: func(cfg *config.SourceConfig) (Source, error) { return NewObjectStorageSource(cfg) }},
		{Type: TypeFileSystem, Factory: func(cfg *config.SourceConfig) (Source, error) { return NewFileSystemSource(cfg) }},
	}
}

// DefaultRegistry returns a registry of the built-in variants
func DefaultRegistry() *Registry {
	r, err := NewRegistry(BuiltinEntries()...)
	if err != nil {
		// built-in tags are distinct constants
		panic(err)
	}
	return r
}

// Resolve returns the factory registered for t
func (r *Registry) Resolve(t Type) (Factory, error) {
	f, ok := r.factories[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSourceType, t)
	}
	return f, nil
}

// Types returns the registered types, sorted
func (r *Registry) Types() []Type {
	return slices.Sorted(maps.Keys(r.factories))
}

// New resolves the type of cfg and builds the source
func (r *Registry) New(cfg *config.SourceConfig) (Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: source configuration cannot be nil", ErrInvalidSourceConfig)
	}
	t := Type(cfg.GetType())
	if t == "" {
		return nil, fmt.Errorf("%w: source %q has no type", ErrUnknownSourceType, cfg.Name)
	}
	factory, err := r.Resolve(t)
	if err != nil {
		return nil, fmt.Errorf("source %q: %w", cfg.Name, err)
	}
	src, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSourceConfig, err)
	}
	return src, nil
}

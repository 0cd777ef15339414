// Package store provides read models of the configured package sources.
package store

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/flowcraft/plugin-sources/internal/config"
)

// ErrNotFound is returned when a source does not exist
var ErrNotFound = errors.New("source not found")

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Reader

// Reader lists and looks up package source configurations
type Reader interface {
	// List returns all sources
	List(ctx context.Context) ([]config.SourceConfig, error)

	// Get returns the source with the given name or ErrNotFound
	Get(ctx context.Context, name string) (*config.SourceConfig, error)
}

// ConfigStore serves the sources of the configuration file from memory
type ConfigStore struct {
	mu      sync.RWMutex
	sources []config.SourceConfig
}

var _ Reader = (*ConfigStore)(nil)

// NewConfigStore returns a store holding copies of the given sources
func NewConfigStore(sources []config.SourceConfig) *ConfigStore {
	s := &ConfigStore{}
	s.Replace(sources)
	return s
}

// Replace swaps the set of sources
func (s *ConfigStore) Replace(sources []config.SourceConfig) {
	copied := copySources(sources)
	s.mu.Lock()
	s.sources = copied
	s.mu.Unlock()
}

// List returns copies of all sources in configuration order
func (s *ConfigStore) List(_ context.Context) ([]config.SourceConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySources(s.sources), nil
}

// Get returns a copy of the named source
func (s *ConfigStore) Get(_ context.Context, name string) (*config.SourceConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.sources, func(src config.SourceConfig) bool { return src.Name == name })
	if i < 0 {
		return nil, ErrNotFound
	}
	return s.sources[i].DeepCopy(), nil
}

func copySources(sources []config.SourceConfig) []config.SourceConfig {
	out := make([]config.SourceConfig, 0, len(sources))
	for i := range sources {
		out = append(out, *sources[i].DeepCopy())
	}
	return out
}

// Package service provides the business logic behind the plugin sources API
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowcraft/plugin-sources/internal/filtering"
	"github.com/flowcraft/plugin-sources/internal/loader"
	"github.com/flowcraft/plugin-sources/internal/sources"
)

var (
	// ErrSourceNotFound is returned when a source is not configured
	ErrSourceNotFound = errors.New("source not found")
	// ErrInvalidSource is returned when a configured source cannot be resolved
	ErrInvalidSource = errors.New("invalid source")
	// ErrInvalidFilter is returned for malformed list or load filters
	ErrInvalidFilter = filtering.ErrInvalidFilter
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go SourceService

// SourceService defines the operations exposed over the API
type SourceService interface {
	// CheckReadiness checks if the source store can be read
	CheckReadiness(ctx context.Context) error

	// ListTypes returns the registered source types
	ListTypes(ctx context.Context) []sources.Type

	// ListSources returns the configured sources selected by the options
	ListSources(ctx context.Context, opts ...Option[ListSourcesOptions]) ([]SourceView, error)

	// GetSource returns one configured source
	GetSource(ctx context.Context, name string) (*SourceView, error)

	// LoadSources imports the modules of the selected sources
	LoadSources(ctx context.Context, opts ...Option[LoadSourcesOptions]) (*loader.Report, error)
}

// SourceView is the display form of a source
type SourceView struct {
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Packages map[string]string `json:"packages"`
	Details  map[string]string `json:"details,omitempty"`
	// Error is set when the source cannot be resolved through the registry
	Error string `json:"error,omitempty"`
}

// Option is a function that sets an option for the ListSourcesOptions or LoadSourcesOptions
type Option[T ListSourcesOptions | LoadSourcesOptions] func(*T) error

// ListSourcesOptions is the options for the ListSources operation
type ListSourcesOptions struct {
	Filter filtering.Filter
}

// LoadSourcesOptions is the options for the LoadSources operation
type LoadSourcesOptions struct {
	Filter filtering.Filter
	// Name loads exactly this source, failing with ErrSourceNotFound when absent
	Name string
}

func filterOf[T ListSourcesOptions | LoadSourcesOptions](o *T) *filtering.Filter {
	switch o := any(o).(type) {
	case *ListSourcesOptions:
		return &o.Filter
	case *LoadSourcesOptions:
		return &o.Filter
	}
	return nil
}

// WithNamePatterns includes sources whose name matches one of the glob patterns
func WithNamePatterns[T ListSourcesOptions | LoadSourcesOptions](patterns ...string) Option[T] {
	return func(o *T) error {
		if err := filtering.ValidatePatterns(patterns); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
		}
		f := filterOf(o)
		f.Names.Include = append(f.Names.Include, patterns...)
		return nil
	}
}

// WithExcludedNamePatterns excludes sources whose name matches one of the glob patterns
func WithExcludedNamePatterns[T ListSourcesOptions | LoadSourcesOptions](patterns ...string) Option[T] {
	return func(o *T) error {
		if err := filtering.ValidatePatterns(patterns); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
		}
		f := filterOf(o)
		f.Names.Exclude = append(f.Names.Exclude, patterns...)
		return nil
	}
}

// WithTypes includes sources of the given types
func WithTypes[T ListSourcesOptions | LoadSourcesOptions](types ...string) Option[T] {
	return func(o *T) error {
		for _, t := range types {
			if t == "" {
				return fmt.Errorf("%w: empty source type", ErrInvalidFilter)
			}
		}
		f := filterOf(o)
		f.Types.Include = append(f.Types.Include, types...)
		return nil
	}
}

// WithPackages includes sources providing one of the given packages
func WithPackages[T ListSourcesOptions | LoadSourcesOptions](packages ...string) Option[T] {
	return func(o *T) error {
		for _, p := range packages {
			if p == "" {
				return fmt.Errorf("%w: empty package name", ErrInvalidFilter)
			}
		}
		f := filterOf(o)
		f.Packages.Include = append(f.Packages.Include, packages...)
		return nil
	}
}

// WithName selects a single source for the LoadSources operation
func WithName(name string) Option[LoadSourcesOptions] {
	return func(o *LoadSourcesOptions) error {
		if name == "" {
			return fmt.Errorf("invalid name: %s", name)
		}
		o.Name = name
		return nil
	}
}

func applyOptions[T ListSourcesOptions | LoadSourcesOptions](opts []Option[T]) (*T, error) {
	o := new(T)
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/flowcraft/plugin-sources/internal/config"
	"github.com/flowcraft/plugin-sources/internal/filtering"
	"github.com/flowcraft/plugin-sources/internal/loader"
	"github.com/flowcraft/plugin-sources/internal/sources"
	"github.com/flowcraft/plugin-sources/internal/store"
)

// Loader is the part of the loader used by the service
type Loader interface {
	Load(ctx context.Context, cfgs []config.SourceConfig) (*loader.Report, error)
}

type sourceService struct {
	store    store.Reader
	registry *sources.Registry
	loader   Loader
	filter   filtering.FilterService
}

var _ SourceService = (*sourceService)(nil)

// New creates a SourceService reading sources from reader
func New(reader store.Reader, registry *sources.Registry, l Loader) SourceService {
	return &sourceService{
		store:    reader,
		registry: registry,
		loader:   l,
		filter:   filtering.NewDefaultFilterService(),
	}
}

func (s *sourceService) CheckReadiness(ctx context.Context) error {
	if _, err := s.store.List(ctx); err != nil {
		return fmt.Errorf("source store unavailable: %w", err)
	}
	return nil
}

func (s *sourceService) ListTypes(_ context.Context) []sources.Type {
	return s.registry.Types()
}

func (s *sourceService) ListSources(ctx context.Context, opts ...Option[ListSourcesOptions]) ([]SourceView, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	cfgs, err := s.selected(ctx, &o.Filter)
	if err != nil {
		return nil, err
	}

	views := make([]SourceView, 0, len(cfgs))
	for i := range cfgs {
		views = append(views, s.view(&cfgs[i]))
	}
	return views, nil
}

func (s *sourceService) GetSource(ctx context.Context, name string) (*SourceView, error) {
	cfg, err := s.get(ctx, name)
	if err != nil {
		return nil, err
	}
	v := s.view(cfg)
	return &v, nil
}

func (s *sourceService) LoadSources(ctx context.Context, opts ...Option[LoadSourcesOptions]) (*loader.Report, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	var cfgs []config.SourceConfig
	if o.Name != "" {
		cfg, err := s.get(ctx, o.Name)
		if err != nil {
			return nil, err
		}
		cfgs = []config.SourceConfig{*cfg}
	} else {
		cfgs, err = s.selected(ctx, &o.Filter)
		if err != nil {
			return nil, err
		}
	}

	report, err := s.loader.Load(ctx, cfgs)
	if err != nil {
		if errors.Is(err, sources.ErrUnknownSourceType) || errors.Is(err, sources.ErrInvalidSourceConfig) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSource, err)
		}
		return nil, err
	}
	return report, nil
}

func (s *sourceService) get(ctx context.Context, name string) (*config.SourceConfig, error) {
	cfg, err := s.store.Get(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source %s: %w", name, err)
	}
	return cfg, nil
}

func (s *sourceService) selected(ctx context.Context, filter *filtering.Filter) ([]config.SourceConfig, error) {
	cfgs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return s.filter.Apply(ctx, cfgs, filter)
}

// view resolves the source to render its masked details. A source that does
// not resolve is still listed with its error.
func (s *sourceService) view(cfg *config.SourceConfig) SourceView {
	v := SourceView{
		Name:     cfg.Name,
		Type:     cfg.GetType(),
		Packages: maps.Clone(cfg.Packages),
	}
	if v.Packages == nil {
		v.Packages = map[string]string{}
	}
	src, err := s.registry.New(cfg)
	if err != nil {
		slog.Warn("Failed to resolve source", "source", cfg.Name, "error", err)
		v.Error = err.Error()
		return v
	}
	v.Details = src.Details()
	return v
}

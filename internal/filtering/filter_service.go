package filtering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/flowcraft/plugin-sources/internal/config"
)

// ErrInvalidFilter is returned for filters that cannot be evaluated
var ErrInvalidFilter = errors.New("invalid filter")

// Rule is an include/exclude list
type Rule struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// Empty reports whether the rule selects everything
func (r Rule) Empty() bool {
	return len(r.Include) == 0 && len(r.Exclude) == 0
}

// Filter selects sources by name glob, type tag and provided package name
type Filter struct {
	Names    Rule `json:"names"`
	Types    Rule `json:"types"`
	Packages Rule `json:"packages"`
}

// Empty reports whether the filter selects every source
func (f *Filter) Empty() bool {
	return f == nil || (f.Names.Empty() && f.Types.Empty() && f.Packages.Empty())
}

// Validate checks the name patterns
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	if err := ValidatePatterns(f.Names.Include); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	if err := ValidatePatterns(f.Names.Exclude); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	return nil
}

// FilterService selects source configurations
type FilterService interface {
	// Apply returns the configurations selected by filter, in their original order
	Apply(ctx context.Context, cfgs []config.SourceConfig, filter *Filter) ([]config.SourceConfig, error)
}

type defaultFilterService struct {
	nameFilter NameFilter
	tagFilter  TagFilter
}

// NewDefaultFilterService creates a FilterService with the default filters
func NewDefaultFilterService() FilterService {
	return NewFilterService(NewDefaultNameFilter(), NewDefaultTagFilter())
}

// NewFilterService creates a FilterService with custom filter implementations
func NewFilterService(nameFilter NameFilter, tagFilter TagFilter) FilterService {
	return &defaultFilterService{
		nameFilter: nameFilter,
		tagFilter:  tagFilter,
	}
}

func (s *defaultFilterService) Apply(
	_ context.Context, cfgs []config.SourceConfig, filter *Filter,
) ([]config.SourceConfig, error) {
	if filter.Empty() {
		return cfgs, nil
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	selected := make([]config.SourceConfig, 0, len(cfgs))
	for _, cfg := range cfgs {
		if ok, reason := s.shouldInclude(&cfg, filter); !ok {
			slog.Debug("Source filtered out", "source", cfg.Name, "reason", reason)
			continue
		}
		selected = append(selected, cfg)
	}

	slog.Debug("Applied source filter", "sources", len(cfgs), "selected", len(selected))
	return selected, nil
}

func (s *defaultFilterService) shouldInclude(cfg *config.SourceConfig, filter *Filter) (bool, string) {
	if ok, reason := s.nameFilter.ShouldInclude(cfg.Name, filter.Names.Include, filter.Names.Exclude); !ok {
		return false, reason
	}
	if ok, reason := s.tagFilter.ShouldInclude(
		[]string{cfg.GetType()}, filter.Types.Include, filter.Types.Exclude,
	); !ok {
		return false, reason
	}
	packages := slices.Sorted(maps.Keys(cfg.Packages))
	if ok, reason := s.tagFilter.ShouldInclude(packages, filter.Packages.Include, filter.Packages.Exclude); !ok {
		return false, reason
	}
	return true, "matches filter"
}

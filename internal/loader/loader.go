// Package loader loads the modules of configured package sources into the
// local module cache, the boundary to the host plugin system.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/flowcraft/plugin-sources/internal/config"
	"github.com/flowcraft/plugin-sources/internal/importer"
	"github.com/flowcraft/plugin-sources/internal/otel"
	"github.com/flowcraft/plugin-sources/internal/sources"
	"github.com/flowcraft/plugin-sources/internal/telemetry"
	"github.com/flowcraft/plugin-sources/internal/versions"
)

// DefaultConcurrency is the number of sources loaded in parallel
const DefaultConcurrency = 4

// ErrVersionMismatch is returned when an imported module's VERSION does not
// satisfy the version spec declared by its source
var ErrVersionMismatch = errors.New("module version does not satisfy the package constraint")

// Loader imports the modules of package sources
type Loader struct {
	registry    *sources.Registry
	settings    sources.ImportSettings
	concurrency int
	tracer      trace.Tracer
	metrics     *telemetry.LoaderMetrics
}

// Option configures a Loader
type Option func(*Loader)

// WithConcurrency sets the number of sources loaded in parallel
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithTracerProvider traces loads with the given provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(l *Loader) {
		if tp != nil {
			l.tracer = tp.Tracer(telemetry.LoaderTracerName)
		}
	}
}

// WithMetrics records loads on the given instruments
func WithMetrics(m *telemetry.LoaderMetrics) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// New creates a loader resolving sources through registry
func New(registry *sources.Registry, settings sources.ImportSettings, opts ...Option) *Loader {
	l := &Loader{
		registry:    registry,
		settings:    settings,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load imports every declared module of the given sources. Resolution errors
// abort the load before anything is fetched. All other failures are recorded
// in the returned report.
func (l *Loader) Load(ctx context.Context, cfgs []config.SourceConfig) (*Report, error) {
	resolved := make([]sources.Source, 0, len(cfgs))
	for i := range cfgs {
		src, err := l.registry.New(&cfgs[i])
		if err != nil {
			return nil, fmt.Errorf("failed to resolve sources: %w", err)
		}
		resolved = append(resolved, src)
	}

	report := &Report{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Sources:   make([]SourceReport, len(resolved)),
	}

	ctx, span := otel.StartSpan(ctx, l.tracer, "loader.Load",
		trace.WithAttributes(otel.AttrLoadID.String(report.ID), attribute.Int("sources", len(resolved))))
	defer span.End()

	logger := slog.With("load_id", report.ID)
	logger.Info("Loading plugin sources", "sources", len(resolved), "concurrency", l.concurrency)

	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for i, src := range resolved {
		g.Go(func() error {
			report.Sources[i] = l.loadSource(ctx, logger, src)
			return nil
		})
	}
	_ = g.Wait()

	report.FinishedAt = time.Now().UTC()
	err := report.Err()
	otel.RecordError(span, err)
	l.metrics.RecordLoad(ctx, report.FinishedAt.Sub(report.StartedAt), err == nil)

	if err != nil {
		logger.Warn("Loading finished with failures",
			"duration", report.FinishedAt.Sub(report.StartedAt),
			"error", err)
	} else {
		logger.Info("Loading finished", "duration", report.FinishedAt.Sub(report.StartedAt))
	}
	return report, nil
}

func (l *Loader) loadSource(ctx context.Context, logger *slog.Logger, src sources.Source) SourceReport {
	sourceType := string(src.Type())
	sr := SourceReport{
		Name:    src.Name(),
		Type:    sourceType,
		Details: src.Details(),
	}
	logger = logger.With("source", sr.Name, "type", sourceType)

	ctx, span := otel.StartSpan(ctx, l.tracer, "loader.LoadSource",
		trace.WithAttributes(otel.AttrSourceName.String(sr.Name), otel.AttrSourceType.String(sourceType)))
	defer span.End()

	packages := src.Packages()
	settings := l.settings
	settings.Options = append(slices.Clip(l.settings.Options), importer.WithVerify(versionCheck(packages)))

	imp, err := src.Importer(settings)
	if err != nil {
		logger.Error("Failed to create importer", "error", err)
		otel.RecordError(span, err)
		sr.Error = err
		return sr
	}
	defer func() {
		if err := imp.Close(); err != nil {
			logger.Warn("Failed to close importer", "error", err)
		}
	}()

	var sourceErr error
	for _, module := range imp.Modules() {
		if sourceErr != nil {
			sr.Modules = append(sr.Modules, ModuleReport{
				Name:  module,
				Error: fmt.Errorf("not attempted after source failure: %w", sourceErr),
			})
			continue
		}

		mod, err := l.importModule(ctx, imp, sourceType, module)
		if err != nil {
			logger.Warn("Failed to import module", "module", module, "error", err)
			if importer.IsSourceFailure(err) {
				sourceErr = err
			}
		} else {
			logger.Debug("Imported module", "module", module, "dir", mod.Dir, "files", len(mod.Files))
		}
		sr.Modules = append(sr.Modules, ModuleReport{Name: module, Module: mod, Error: err})
	}
	otel.RecordError(span, sourceErr)
	return sr
}

func (l *Loader) importModule(
	ctx context.Context, imp importer.Importer, sourceType, module string,
) (mod *importer.Module, err error) {
	ctx, span := otel.StartSpan(ctx, l.tracer, "loader.ImportModule",
		trace.WithAttributes(
			otel.AttrSourceName.String(imp.Source()),
			otel.AttrSourceType.String(sourceType),
			otel.AttrModuleName.String(module),
		))
	start := time.Now()
	defer func() {
		result := telemetry.ResultSuccess
		switch {
		case errors.Is(err, importer.ErrModuleNotFound):
			result = telemetry.ResultNotFound
		case err != nil:
			result = telemetry.ResultFailure
		}
		l.metrics.RecordImport(ctx, imp.Source(), sourceType, result, time.Since(start))
		otel.RecordError(span, err)
		span.End()
	}()

	mod, err = imp.Import(ctx, module)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(otel.AttrModuleFiles.Int(len(mod.Files)))
	return mod, nil
}

// versionCheck rejects staged modules whose VERSION does not satisfy the
// package constraint, so an incompatible module never replaces the cached one
func versionCheck(packages map[string]string) func(*importer.Module) error {
	return func(mod *importer.Module) error {
		if mod.Version == "" {
			return nil
		}
		spec := packages[mod.Name]
		ok, err := versions.Satisfies(spec, mod.Version)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrVersionMismatch, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s has version %s, want %s", ErrVersionMismatch, mod.Name, mod.Version, spec)
		}
		return nil
	}
}

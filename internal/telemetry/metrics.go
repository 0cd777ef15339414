package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// LoaderMetricsMeterName is the name used for the loader metrics meter
	LoaderMetricsMeterName = "github.com/flowcraft/plugin-sources/loader"

	// LoaderTracerName is the name used for the loader tracer
	LoaderTracerName = "github.com/flowcraft/plugin-sources/loader"
)

// Import results recorded on the imports counter
const (
	ResultSuccess  = "success"
	ResultNotFound = "not_found"
	ResultFailure  = "failure"
)

// LoaderMetrics holds the OpenTelemetry instruments for plugin loading
type LoaderMetrics struct {
	importsTotal   metric.Int64Counter
	importDuration metric.Float64Histogram
	loadDuration   metric.Float64Histogram
}

// NewLoaderMetrics creates the loader instruments with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewLoaderMetrics(provider metric.MeterProvider) (*LoaderMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(LoaderMetricsMeterName)

	importsTotal, err := meter.Int64Counter(
		"plugin_sources_module_imports_total",
		metric.WithDescription("Number of module imports by source and result"),
		metric.WithUnit("{import}"),
	)
	if err != nil {
		return nil, err
	}

	importDuration, err := meter.Float64Histogram(
		"plugin_sources_module_import_duration_seconds",
		metric.WithDescription("Duration of module imports in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	loadDuration, err := meter.Float64Histogram(
		"plugin_sources_load_duration_seconds",
		metric.WithDescription("Duration of complete load operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	return &LoaderMetrics{
		importsTotal:   importsTotal,
		importDuration: importDuration,
		loadDuration:   loadDuration,
	}, nil
}

// RecordImport records one module import
func (m *LoaderMetrics) RecordImport(
	ctx context.Context, source, sourceType, result string, duration time.Duration,
) {
	if m == nil {
		return
	}

	sourceAttr := attribute.String("source", source)
	typeAttr := attribute.String("type", sourceType)
	m.importsTotal.Add(ctx, 1, metric.WithAttributes(sourceAttr, typeAttr, attribute.String("result", result)))
	m.importDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(sourceAttr, typeAttr))
}

// RecordLoad records a complete load operation
func (m *LoaderMetrics) RecordLoad(ctx context.Context, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	m.loadDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
}

package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewLoaderMetrics_NilProvider(t *testing.T) {
	t.Parallel()

	m, err := NewLoaderMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	// Recording on nil metrics is a no-op
	m.RecordImport(context.Background(), "src", "git", ResultSuccess, time.Second)
	m.RecordLoad(context.Background(), time.Second, true)
}

func TestLoaderMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewLoaderMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordImport(ctx, "plugins", "git", ResultSuccess, 200*time.Millisecond)
	m.RecordImport(ctx, "plugins", "git", ResultNotFound, 10*time.Millisecond)
	m.RecordLoad(ctx, time.Second, false)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		byName[metric.Name] = metric
	}

	imports, ok := byName["plugin_sources_module_imports_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, imports.DataPoints, 2)

	durations, ok := byName["plugin_sources_module_import_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, durations.DataPoints, 1)
	assert.Equal(t, uint64(2), durations.DataPoints[0].Count)

	loads, ok := byName["plugin_sources_load_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, loads.DataPoints, 1)
	assert.Equal(t, uint64(1), loads.DataPoints[0].Count)
}

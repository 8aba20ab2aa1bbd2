package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := NewMetrics(provider.Meter(MeterName))
	require.NoError(t, err)

	m.FramePublished("road")
	m.FramePublished("road")
	m.FramePublished("driver")
	m.CacheHit("road")
	m.InFlight("road", 2)
	m.InFlight("road", -1)
	m.BrokerReinit()

	data := collect(t, reader)

	published, ok := data["camserve.frames.published"].(metricdata.Sum[int64])
	require.True(t, ok)
	counts := map[string]int64{}
	for _, dp := range published.DataPoints {
		camera, _ := dp.Attributes.Value(attribute.Key("camera"))
		counts[camera.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"road": 2, "driver": 1}, counts)

	inFlight, ok := data["camserve.requests.in_flight"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, inFlight.DataPoints, 1)
	assert.Equal(t, int64(1), inFlight.DataPoints[0].Value)

	reinits, ok := data["camserve.broker.reinits"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), reinits.DataPoints[0].Value)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.FramePublished("road")
		m.FrameFailed("road")
		m.FrameSkipped("road")
		m.CacheHit("road")
		m.CacheMiss("road")
		m.BrokerReinit()
		m.InFlight("road", 1)
	})
}

func TestDefault(t *testing.T) {
	m, err := Default()
	require.NoError(t, err)
	assert.NotNil(t, m)
}

package telemetry

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the camera server metrics.
const MeterName = "github.com/logreplay/camserve/internal/camera"

// Metrics holds the camera server instruments. A nil *Metrics records nothing.
type Metrics struct {
	published metric.Int64Counter
	failed    metric.Int64Counter
	skipped   metric.Int64Counter
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	reinits   metric.Int64Counter
	inFlight  metric.Int64UpDownCounter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.published, "camserve.frames.published", "Frames sent to the video bus", "{frames}"},
		{&m.failed, "camserve.frames.failed", "Frame requests that could not be resolved or sent", "{frames}"},
		{&m.skipped, "camserve.frames.skipped", "Frame requests dropped as not applicable or malformed", "{frames}"},
		{&m.hits, "camserve.cache.hits", "Frames served from the prefetch cache", "{frames}"},
		{&m.misses, "camserve.cache.misses", "Frames decoded on demand", "{frames}"},
		{&m.reinits, "camserve.broker.reinits", "Video bus re-initializations", "{reinits}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create counter %s", c.name)
		}
		*c.dst = counter
	}

	inFlight, err := meter.Int64UpDownCounter("camserve.requests.in_flight",
		metric.WithDescription("Frame requests queued or being processed"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create in-flight counter")
	}
	m.inFlight = inFlight
	return m, nil
}

// Default creates the instruments on the global meter provider.
func Default() (*Metrics, error) {
	return NewMetrics(otel.Meter(MeterName))
}

func cameraAttr(camera string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("camera", camera))
}

func (m *Metrics) FramePublished(camera string) {
	if m == nil {
		return
	}
	m.published.Add(context.Background(), 1, cameraAttr(camera))
}

func (m *Metrics) FrameFailed(camera string) {
	if m == nil {
		return
	}
	m.failed.Add(context.Background(), 1, cameraAttr(camera))
}

func (m *Metrics) FrameSkipped(camera string) {
	if m == nil {
		return
	}
	m.skipped.Add(context.Background(), 1, cameraAttr(camera))
}

func (m *Metrics) CacheHit(camera string) {
	if m == nil {
		return
	}
	m.hits.Add(context.Background(), 1, cameraAttr(camera))
}

func (m *Metrics) CacheMiss(camera string) {
	if m == nil {
		return
	}
	m.misses.Add(context.Background(), 1, cameraAttr(camera))
}

func (m *Metrics) BrokerReinit() {
	if m == nil {
		return
	}
	m.reinits.Add(context.Background(), 1)
}

// InFlight adjusts the in-flight request gauge by delta.
func (m *Metrics) InFlight(camera string, delta int64) {
	if m == nil {
		return
	}
	m.inFlight.Add(context.Background(), delta, cameraAttr(camera))
}

// Package telemetry records sync-loop metrics through the global OpenTelemetry
// meter provider. Nothing is exported unless the host installs a provider.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/eytandecker/flightsim-client/internal/telemetry"

// Metrics holds the instruments for the sync loop. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	meter metric.Meter

	steps     metric.Int64Counter
	applied   metric.Int64Counter
	discarded metric.Int64Counter
	failed    metric.Int64Counter
	latency   metric.Float64Histogram
	inFlight  metric.Int64ObservableGauge
}

// New creates the instruments on mp, or on the global provider if mp is nil.
func New(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := &Metrics{meter: mp.Meter(instrumentationName)}

	var err error
	m.steps, err = m.meter.Int64Counter(
		"sync.steps.dispatched",
		metric.WithDescription("Physics steps sent to the integrator"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating steps counter: %w", err)
	}

	m.applied, err = m.meter.Int64Counter(
		"sync.results.applied",
		metric.WithDescription("Integrator results merged into the aircraft state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating applied counter: %w", err)
	}

	m.discarded, err = m.meter.Int64Counter(
		"sync.results.discarded",
		metric.WithDescription("Integrator results dropped as stale, paused or terminated"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating discarded counter: %w", err)
	}

	m.failed, err = m.meter.Int64Counter(
		"sync.failures",
		metric.WithDescription("Sync steps that ended in a network, server or parse error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	m.latency, err = m.meter.Float64Histogram(
		"sync.roundtrip.duration",
		metric.WithDescription("Round-trip time of one sync step"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating latency histogram: %w", err)
	}

	m.inFlight, err = m.meter.Int64ObservableGauge(
		"sync.requests.inflight",
		metric.WithDescription("Requests sent but not yet completed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating in-flight gauge: %w", err)
	}

	return m, nil
}

// ObserveInFlight reports fn on every collection of the in-flight gauge.
func (m *Metrics) ObserveInFlight(fn func() int) error {
	if m == nil {
		return nil
	}
	_, err := m.meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(m.inFlight, int64(fn()))
			return nil
		},
		m.inFlight,
	)
	if err != nil {
		return fmt.Errorf("registering in-flight callback: %w", err)
	}
	return nil
}

func (m *Metrics) StepDispatched(ctx context.Context) {
	if m == nil {
		return
	}
	m.steps.Add(ctx, 1)
}

func (m *Metrics) ResultApplied(ctx context.Context, latency time.Duration) {
	if m == nil {
		return
	}
	m.applied.Add(ctx, 1)
	m.latency.Record(ctx, millis(latency), metric.WithAttributes(attribute.String("outcome", "applied")))
}

func (m *Metrics) ResultDiscarded(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.discarded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) SyncFailed(ctx context.Context, kind string, latency time.Duration) {
	if m == nil {
		return
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	m.latency.Record(ctx, millis(latency), metric.WithAttributes(attribute.String("outcome", kind)))
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

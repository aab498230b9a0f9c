package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CoordinatorMeterName is the name used for the coordinator meter
const CoordinatorMeterName = "index-coordinator/coordinator"

// Tick outcomes recorded with the tick duration.
const (
	TickIdle       = "idle"
	TickDispatched = "dispatched"
	TickFailed     = "failed"
	TickCancelled  = "cancelled"
)

// CoordinatorMetrics holds the coordinator instruments. A nil value records nothing.
type CoordinatorMetrics struct {
	dispatched    metric.Int64Counter
	finished      metric.Int64Counter
	queueLength   metric.Int64Gauge
	activeWorkers metric.Int64Gauge
	tickDuration  metric.Float64Histogram
}

// NewCoordinatorMetrics returns nil (no-op metrics) when provider is nil.
func NewCoordinatorMetrics(provider metric.MeterProvider) (*CoordinatorMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(CoordinatorMeterName)

	dispatched, err := meter.Int64Counter(
		"coordinator_dispatched_total",
		metric.WithDescription("Number of indexing workers started"),
	)
	if err != nil {
		return nil, err
	}

	finished, err := meter.Int64Counter(
		"coordinator_finished_total",
		metric.WithDescription("Number of indexing workers that reported completion"),
	)
	if err != nil {
		return nil, err
	}

	queueLength, err := meter.Int64Gauge(
		"coordinator_queue_length",
		metric.WithDescription("Projects waiting for a free worker"),
	)
	if err != nil {
		return nil, err
	}

	activeWorkers, err := meter.Int64Gauge(
		"coordinator_active_workers",
		metric.WithDescription("Indexing workers currently running"),
	)
	if err != nil {
		return nil, err
	}

	tickDuration, err := meter.Float64Histogram(
		"coordinator_tick_duration_seconds",
		metric.WithDescription("Duration of one coordinator tick in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	return &CoordinatorMetrics{
		dispatched:    dispatched,
		finished:      finished,
		queueLength:   queueLength,
		activeWorkers: activeWorkers,
		tickDuration:  tickDuration,
	}, nil
}

func (m *CoordinatorMetrics) RecordDispatched(ctx context.Context) {
	if m == nil {
		return
	}
	m.dispatched.Add(ctx, 1)
}

func (m *CoordinatorMetrics) RecordFinished(ctx context.Context, success bool) {
	if m == nil {
		return
	}
	m.finished.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordState records the queue length and the number of occupied worker slots
func (m *CoordinatorMetrics) RecordState(ctx context.Context, queued, running int) {
	if m == nil {
		return
	}
	m.queueLength.Record(ctx, int64(queued))
	m.activeWorkers.Record(ctx, int64(running))
}

func (m *CoordinatorMetrics) RecordTick(ctx context.Context, duration time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.tickDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

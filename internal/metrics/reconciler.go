package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Order outcomes.
const (
	OutcomeUpdated       = "updated"
	OutcomeUnchanged     = "unchanged"
	OutcomeFetchFailed   = "fetch_failed"
	OutcomePersistFailed = "persist_failed"
)

type ReconcilerMetrics interface {
	RecordOrder(ctx context.Context, carrier, outcome string)
	RecordNewSteps(ctx context.Context, carrier string, n int)
	RecordLoss(ctx context.Context, carrier, reason string)
	RecordCompletion(ctx context.Context, completion string)
	RecordRun(ctx context.Context, duration time.Duration, status string)
}

type reconcilerMetrics struct {
	orders      metric.Int64Counter
	steps       metric.Int64Counter
	losses      metric.Int64Counter
	completions metric.Int64Counter
	runDuration metric.Float64Histogram
}

func NewReconcilerMetrics(meterProvider metric.MeterProvider, namespace string) (ReconcilerMetrics, error) {
	meter := meterProvider.Meter(namespace)

	orders, err := meter.Int64Counter(
		fmt.Sprintf("%s_orders_total", namespace),
		metric.WithDescription("Orders processed by outcome"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}

	steps, err := meter.Int64Counter(
		fmt.Sprintf("%s_order_steps_created_total", namespace),
		metric.WithDescription("Order steps inserted"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create steps counter")
	}

	losses, err := meter.Int64Counter(
		fmt.Sprintf("%s_shipment_losses_total", namespace),
		metric.WithDescription("Orders newly flagged as lost"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create losses counter")
	}

	completions, err := meter.Int64Counter(
		fmt.Sprintf("%s_completions_total", namespace),
		metric.WithDescription("Orders completed by completion type"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create completions counter")
	}

	runDuration, err := meter.Float64Histogram(
		fmt.Sprintf("%s_run_duration_seconds", namespace),
		metric.WithDescription("Duration of reconciliation runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create run duration histogram")
	}

	return &reconcilerMetrics{
		orders:      orders,
		steps:       steps,
		losses:      losses,
		completions: completions,
		runDuration: runDuration,
	}, nil
}

func (m *reconcilerMetrics) RecordOrder(ctx context.Context, carrier, outcome string) {
	m.orders.Add(ctx, 1, metric.WithAttributes(
		attribute.String("carrier", carrier),
		attribute.String("outcome", outcome),
	))
}

func (m *reconcilerMetrics) RecordNewSteps(ctx context.Context, carrier string, n int) {
	if n <= 0 {
		return
	}
	m.steps.Add(ctx, int64(n), metric.WithAttributes(attribute.String("carrier", carrier)))
}

func (m *reconcilerMetrics) RecordLoss(ctx context.Context, carrier, reason string) {
	m.losses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("carrier", carrier),
		attribute.String("reason", reason),
	))
}

func (m *reconcilerMetrics) RecordCompletion(ctx context.Context, completion string) {
	m.completions.Add(ctx, 1, metric.WithAttributes(attribute.String("completion_type", completion)))
}

func (m *reconcilerMetrics) RecordRun(ctx context.Context, duration time.Duration, status string) {
	m.runDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}

// NoOp is used when metrics are disabled.
type NoOp struct{}

func NewNoOp() ReconcilerMetrics { return NoOp{} }

func (NoOp) RecordOrder(context.Context, string, string)      {}
func (NoOp) RecordNewSteps(context.Context, string, int)      {}
func (NoOp) RecordLoss(context.Context, string, string)       {}
func (NoOp) RecordCompletion(context.Context, string)         {}
func (NoOp) RecordRun(context.Context, time.Duration, string) {}

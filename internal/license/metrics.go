package license

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	TracerName = "licensepanel/license"
	MeterName  = "licensepanel/license"
)

// Metrics holds the license instruments. A nil *Metrics records nothing.
type Metrics struct {
	Validations        metric.Int64Counter
	ValidationDuration metric.Float64Histogram
	SlotBindings       metric.Int64Counter
	LazyExpirations    metric.Int64Counter
	LifecycleOps       metric.Int64Counter
}

// NewMetrics creates the license instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.Validations, err = meter.Int64Counter(
		"license_validations_total",
		metric.WithDescription("Validation attempts by outcome and reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validations counter: %w", err)
	}

	m.ValidationDuration, err = meter.Float64Histogram(
		"license_validation_duration_seconds",
		metric.WithDescription("License validation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation duration histogram: %w", err)
	}

	m.SlotBindings, err = meter.Int64Counter(
		"license_slot_bindings_total",
		metric.WithDescription("New IP or HWID bindings recorded on licenses"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create slot bindings counter: %w", err)
	}

	m.LazyExpirations, err = meter.Int64Counter(
		"license_lazy_expirations_total",
		metric.WithDescription("Licenses moved to expired during validation"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lazy expirations counter: %w", err)
	}

	m.LifecycleOps, err = meter.Int64Counter(
		"license_lifecycle_operations_total",
		metric.WithDescription("License lifecycle operations by name and result"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create lifecycle counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) recordValidation(ctx context.Context, outcome Outcome, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("outcome", string(outcome)),
		attribute.String("reason", reason),
	)
	m.Validations.Add(ctx, 1, attrs)
	m.ValidationDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("outcome", string(outcome))))
}

func (m *Metrics) recordBinding(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.SlotBindings.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) recordExpiry(ctx context.Context) {
	if m == nil {
		return
	}
	m.LazyExpirations.Add(ctx, 1)
}

func (m *Metrics) recordLifecycle(ctx context.Context, op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.LifecycleOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("result", result),
	))
}

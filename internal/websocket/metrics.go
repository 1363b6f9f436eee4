package websocket

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the feed metrics.
const MeterName = "licensepanel/websocket"

// Metrics holds the feed instruments. A nil *Metrics records nothing.
type Metrics struct {
	ActiveConnections  metric.Int64UpDownCounter
	ConnectionDuration metric.Float64Histogram
	MessagesSent       metric.Int64Counter
	MessagesDropped    metric.Int64Counter
}

// NewMetrics creates the feed instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.ActiveConnections, err = meter.Int64UpDownCounter(
		"websocket_active_connections",
		metric.WithDescription("Dashboards connected to the live log feed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active connections counter: %w", err)
	}

	m.ConnectionDuration, err = meter.Float64Histogram(
		"websocket_connection_duration_seconds",
		metric.WithDescription("Lifetime of feed connections"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection duration histogram: %w", err)
	}

	m.MessagesSent, err = meter.Int64Counter(
		"websocket_messages_sent_total",
		metric.WithDescription("Messages queued to feed clients"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages sent counter: %w", err)
	}

	m.MessagesDropped, err = meter.Int64Counter(
		"websocket_messages_dropped_total",
		metric.WithDescription("Messages dropped because the broadcast queue was full"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages dropped counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) recordConnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveConnections.Add(ctx, 1)
}

func (m *Metrics) recordDisconnect(ctx context.Context, lifetime time.Duration, reason string) {
	if m == nil {
		return
	}
	m.ActiveConnections.Add(ctx, -1)
	m.ConnectionDuration.Record(ctx, lifetime.Seconds(),
		metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) recordSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.MessagesSent.Add(ctx, 1)
}

func (m *Metrics) recordDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.MessagesDropped.Add(ctx, 1)
}

package infrastructure

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SystemStats is a point-in-time view of the process, reported by the
// health endpoint.
type SystemStats struct {
	Goroutines    int       `json:"goroutines"`
	HeapAllocMB   uint64    `json:"heap_alloc_mb"`
	SystemMB      uint64    `json:"system_mb"`
	GCCount       uint32    `json:"gc_count"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// SystemMetrics reports process uptime and start time.
type SystemMetrics struct {
	startTime time.Time
	now       func() time.Time
}

// NewSystemMetrics registers an uptime gauge on meter. Go runtime series
// come from the Prometheus collectors registered with the exporter.
func NewSystemMetrics(meter metric.Meter) (*SystemMetrics, error) {
	sm := &SystemMetrics{startTime: time.Now(), now: time.Now}
	_, err := meter.Float64ObservableGauge(
		"process_uptime_seconds",
		metric.WithDescription("Seconds since the panel started"),
		metric.WithUnit("s"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			o.Observe(sm.now().Sub(sm.startTime).Seconds())
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create uptime gauge: %w", err)
	}
	return sm, nil
}

// StartTime returns when the metrics were created.
func (sm *SystemMetrics) StartTime() time.Time { return sm.startTime }

// Collect reads runtime statistics.
func (sm *SystemMetrics) Collect() SystemStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	now := sm.now()
	return SystemStats{
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   mem.HeapAlloc / 1024 / 1024,
		SystemMB:      mem.Sys / 1024 / 1024,
		GCCount:       mem.NumGC,
		UptimeSeconds: now.Sub(sm.startTime).Seconds(),
		Timestamp:     now.UTC(),
	}
}

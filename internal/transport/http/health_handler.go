package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"licensepanel/internal/infrastructure"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// StatsSource reports process statistics.
type StatsSource interface {
	Collect() infrastructure.SystemStats
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	version string
	stats   StatsSource
	checks  map[string]HealthCheck
	clients func() int
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler. clients reports connected
// live feed subscribers and may be nil.
func NewHealthHandler(version string, stats StatsSource, checks map[string]HealthCheck, clients func() int, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		version: version,
		stats:   stats,
		checks:  checks,
		clients: clients,
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status      string                     `json:"status"`
	Version     string                     `json:"version"`
	Timestamp   time.Time                  `json:"timestamp"`
	Checks      map[string]string          `json:"checks"`
	LiveClients int                        `json:"liveClients"`
	System      infrastructure.SystemStats `json:"system"`
}

// Health handles GET /healthz. Any failing check turns the status to
// "degraded" and the response code to 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Version:   h.version,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]string, len(h.checks)),
		System:    h.stats.Collect(),
	}
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed",
				slog.String("check", name),
				slog.String("error", err.Error()),
			)
			resp.Checks[name] = "fail"
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}
	if h.clients != nil {
		resp.LiveClients = h.clients()
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}

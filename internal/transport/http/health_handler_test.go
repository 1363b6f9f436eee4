package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensepanel/internal/infrastructure"
)

type staticStats struct{ stats infrastructure.SystemStats }

func (s staticStats) Collect() infrastructure.SystemStats { return s.stats }

func TestHealthHandler(t *testing.T) {
	stats := staticStats{infrastructure.SystemStats{Goroutines: 12, UptimeSeconds: 90}}
	ok := func(context.Context) error { return nil }
	failing := func(context.Context) error { return errors.New("disk gone") }

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		clients    func() int
		wantStatus int
		wantState  string
		wantChecks map[string]interface{}
		wantLive   float64
	}{
		{
			name:       "all checks pass",
			checks:     map[string]HealthCheck{"store": ok},
			clients:    func() int { return 3 },
			wantStatus: http.StatusOK,
			wantState:  "ok",
			wantChecks: map[string]interface{}{"store": "ok"},
			wantLive:   3,
		},
		{
			name:       "failing check degrades",
			checks:     map[string]HealthCheck{"store": failing, "settings": ok},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "degraded",
			wantChecks: map[string]interface{}{"store": "fail", "settings": "ok"},
		},
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantState:  "ok",
			wantChecks: map[string]interface{}{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("1.2.3", stats, tt.checks, tt.clients, discardLogger())
			rec := httptest.NewRecorder()
			h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			body := decodeMap(t, rec)
			assert.Equal(t, tt.wantState, body["status"])
			assert.Equal(t, "1.2.3", body["version"])
			assert.Equal(t, tt.wantChecks, body["checks"])
			assert.Equal(t, tt.wantLive, body["liveClients"])
			assert.Equal(t, float64(12), body["system"].(map[string]interface{})["goroutines"])
		})
	}
}

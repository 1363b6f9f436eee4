package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "licensepanel/internal/errors"
	"licensepanel/internal/security"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		remoteAddr string
		want       string
	}{
		{"forwarded first segment", "203.0.113.7, 10.0.0.1", "10.0.0.2:5555", "203.0.113.7"},
		{"forwarded single", " 198.51.100.1 ", "10.0.0.2:5555", "198.51.100.1"},
		{"remote addr host", "", "192.0.2.4:41000", "192.0.2.4"},
		{"ipv6 remote", "", "[2001:db8::1]:443", "2001:db8::1"},
		{"empty forwarded segment", ", 10.0.0.1", "192.0.2.4:41000", "192.0.2.4"},
		{"nothing", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/validate", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetReqID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(middleware.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "abc-123", seen)
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(1, 2, discardLogger())
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	h := rl.Handler(okHandler)

	call := func(ip string) int {
		r := httptest.NewRequest(http.MethodPost, "/api/validate", nil)
		r.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("1.1.1.1"))
	assert.Equal(t, http.StatusOK, call("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("1.1.1.1"))
	assert.Equal(t, http.StatusOK, call("2.2.2.2"), "other clients keep their own bucket")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, call("1.1.1.1"))
}

type stubVerifier struct{ token string }

func (s stubVerifier) Verify(raw string) (*security.Claims, error) {
	if raw != s.token {
		return nil, security.ErrInvalidToken
	}
	c := &security.Claims{Role: "admin"}
	c.Subject = "admin"
	return c, nil
}

func TestAdminAuth(t *testing.T) {
	var gotErr error
	respond := func(w http.ResponseWriter, r *http.Request, err error) {
		gotErr = err
		w.WriteHeader(http.StatusUnauthorized)
	}
	var subject string
	h := AdminAuth(stubVerifier{token: "good"}, respond, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		subject = claims.Subject
	}))

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer", "Bearer good", "", http.StatusOK},
		{"lowercase scheme", "bearer good", "", http.StatusOK},
		{"query token", "", "?token=good", http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong token", "Bearer bad", "", http.StatusUnauthorized},
		{"basic scheme", "Basic good", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotErr, subject = nil, ""
			r := httptest.NewRequest(http.MethodGet, "/api/admin/licenses"+tt.query, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "admin", subject)
			} else {
				assert.True(t, errors.Is(gotErr, security.ErrInvalidToken))
			}
		})
	}
}

func TestValidatorBind(t *testing.T) {
	type body struct {
		Name   string `json:"name" validate:"required"`
		MaxIPs *int   `json:"maxIps" validate:"omitempty,limit"`
	}
	v := NewValidator()

	tests := []struct {
		name     string
		payload  string
		wantCode string
	}{
		{"valid", `{"name":"x","maxIps":-2}`, ""},
		{"capped zero", `{"name":"x","maxIps":0}`, ""},
		{"missing name", `{"maxIps":3}`, "VALIDATION_FAILED"},
		{"bad limit", `{"name":"x","maxIps":-3}`, "VALIDATION_FAILED"},
		{"not json", `{`, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))
			var dst body
			err := v.Bind(r, &dst)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantCode, apiErr.ErrorCode)
		})
	}
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"https://panel.example"}})(okHandler)

	r := httptest.NewRequest(http.MethodOptions, "/api/admin/licenses", nil)
	r.Header.Set("Origin", "https://panel.example")
	r.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://panel.example", rec.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/api/admin/licenses", nil)
	r.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

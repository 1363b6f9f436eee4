package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensepanel/internal/blacklist"
	"licensepanel/internal/license"
	"licensepanel/internal/voucher"
)

func newHandler() *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
}

func serveError(t *testing.T, h *ErrorHandler, err error) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/licenses/LF-1", nil)
	h.HandleError(rec, req, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHandleErrorMapsDomainErrors(t *testing.T) {
	h := newHandler()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"license not found", fmt.Errorf("%w: LF-1", license.ErrLicenseNotFound), http.StatusNotFound, TypeLicenseNotFound},
		{"slot limit wrapped", fmt.Errorf("add ip: %w", license.ErrSlotLimit), http.StatusConflict, TypeSlotLimit},
		{"sub-user owner", license.ErrSubUserIsOwner, http.StatusConflict, TypeSubUser},
		{"blacklist kind", blacklist.ErrInvalidKind, http.StatusBadRequest, TypeValidation},
		{"voucher redeemed", voucher.ErrAlreadyRedeemed, http.StatusConflict, TypeVoucher},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"api error", New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded"), http.StatusTooManyRequests, TypeRateLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := serveError(t, h, tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantType, body["type"])
			assert.EqualValues(t, tt.wantStatus, body["status"])
			assert.Equal(t, "/api/admin/licenses/LF-1", body["instance"])
		})
	}
}

func TestUnknownErrorsHideDetail(t *testing.T) {
	status, body := serveError(t, newHandler(), fmt.Errorf("open /var/data/licenses.json: permission denied"))

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, TypeInternal, body["type"])
	assert.NotContains(t, body["detail"], "/var/data")
}

func TestValidationErrorsExtension(t *testing.T) {
	err := NewValidationErrors([]ValidationError{{Field: "name", Message: "name is required"}})
	status, body := serveError(t, newHandler(), err)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error_code"])
	errs, ok := body["errors"].([]any)
	require.True(t, ok)
	assert.Len(t, errs, 1)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusOf(license.ErrProductNotFound))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(New(http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(fmt.Errorf("boom")))
}

func TestMiddlewareRecoversPanics(t *testing.T) {
	h := newHandler()
	handler := h.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), TypeInternal)
	assert.NotContains(t, rec.Body.String(), "kaboom")
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"licensepanel/internal/blacklist"
	apierrors "licensepanel/internal/errors"
	"licensepanel/internal/license"
	"licensepanel/internal/middleware"
	"licensepanel/internal/settings"
	"licensepanel/internal/store"
	"licensepanel/internal/voucher"
	"licensepanel/pkg/contracts/domain"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// testServer wires the admin handlers over a temp-dir store without auth.
type testServer struct {
	store    *store.Store
	licenses *license.Service
	products *license.ProductService
	rs       *Responder
	router   chi.Router
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)

	logger := discardLogger()
	ts := &testServer{
		store: s,
		licenses: license.NewService(license.ServiceDeps{
			Licenses:  s.Licenses,
			Products:  s.Products,
			Logger:    logger,
			KeyPrefix: "LP",
			Now:       func() time.Time { return fixedNow },
		}),
		products: license.NewProductService(s.Products, s.Licenses, logger),
		rs:       NewResponder(apierrors.NewErrorHandler(logger, false), middleware.NewValidator()),
	}

	r := chi.NewRouter()
	r.Mount("/api/admin/products", NewProductHandler(ts.products, ts.rs, logger).Routes())
	r.Mount("/api/admin/licenses", NewLicenseHandler(ts.licenses, ts.products, ts.rs, logger).Routes())
	r.Mount("/api/admin/blacklist", NewBlacklistHandler(blacklist.NewService(s.Blacklist, s.Licenses, nil, logger), ts.rs, logger).Routes())
	r.Mount("/api/admin/settings", NewSettingsHandler(settings.NewService(s.Settings, logger), ts.rs, logger).Routes())
	vouchers := voucher.NewService(s.Vouchers, s.Products, ts.licenses, logger)
	r.Mount("/api/admin/vouchers", NewVoucherHandler(vouchers, ts.rs, logger).Routes())
	r.Mount("/api/admin/logs", NewLogHandler(s.Logs, s.BotLogs, ts.rs, logger).Routes())
	r.Mount("/api/admin/export", NewExportHandler(ts.licenses, ts.products, s.Logs, s.BotLogs, ts.rs, logger).Routes())
	r.Get("/api/admin/stats", NewStatsHandler(ts.licenses, ts.products, vouchers, s.Logs, ts.rs, logger).Stats)
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) product(t *testing.T, id string) domain.Product {
	t.Helper()
	p := domain.Product{ID: id, Name: "Product " + id, CreatedAt: fixedNow}
	require.NoError(t, ts.store.Products.Insert(context.Background(), p))
	return p
}

func (ts *testServer) license(t *testing.T, lic domain.License) domain.License {
	t.Helper()
	if lic.ID == "" {
		lic.ID = "id-" + lic.Key
	}
	if lic.Status == "" {
		lic.Status = domain.LicenseStatusActive
	}
	if lic.DiscordID == "" {
		lic.DiscordID = "owner"
	}
	if lic.CreatedAt.IsZero() {
		lic.CreatedAt = fixedNow.Add(-24 * time.Hour)
	}
	require.NoError(t, ts.store.Licenses.Insert(context.Background(), lic))
	return lic
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var body []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func requireProblem(t *testing.T, rec *httptest.ResponseRecorder, status int, problemType string) map[string]interface{} {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decodeMap(t, rec)
	require.Equal(t, problemType, body["type"])
	require.Equal(t, float64(status), body["status"])
	return body
}

func intPtr(v int) *int { return &v }

func timePtr(v time.Time) *time.Time { return &v }

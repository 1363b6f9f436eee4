package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"licensepanel/internal/exporter"
	"licensepanel/internal/license"
	"licensepanel/internal/store"
)

// ExportHandler streams spreadsheet downloads of panel data.
type ExportHandler struct {
	licenses    *license.Service
	products    *license.ProductService
	validations store.ValidationLogRepository
	bot         store.BotLogRepository
	rs          *Responder
	logger      *slog.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(licenses *license.Service, products *license.ProductService, validations store.ValidationLogRepository, bot store.BotLogRepository, rs *Responder, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		licenses:    licenses,
		products:    products,
		validations: validations,
		bot:         bot,
		rs:          rs,
		logger:      logger.With(slog.String("handler", "export")),
	}
}

// Routes mounts under /api/admin/export. Every route takes ?format=xlsx|csv.
func (h *ExportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/licenses", h.Licenses)
	r.Get("/logs", h.Logs)
	r.Get("/bot-logs", h.BotLogs)
	return r
}

// Licenses handles GET /api/admin/export/licenses
func (h *ExportHandler) Licenses(w http.ResponseWriter, r *http.Request) {
	format, ok := h.format(w, r)
	if !ok {
		return
	}
	licenses, err := h.licenses.List(r.Context(), license.Filter{ProductID: r.URL.Query().Get("productId")})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	names, err := h.products.Names(r.Context())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.write(w, r, format, "licenses", exporter.LicenseTable(licenses, names, h.licenses.Now()))
}

// Logs handles GET /api/admin/export/logs
func (h *ExportHandler) Logs(w http.ResponseWriter, r *http.Request) {
	format, ok := h.format(w, r)
	if !ok {
		return
	}
	entries, err := h.validations.List(r.Context(), 0)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.write(w, r, format, "validation-logs", exporter.ValidationLogTable(entries))
}

// BotLogs handles GET /api/admin/export/bot-logs
func (h *ExportHandler) BotLogs(w http.ResponseWriter, r *http.Request) {
	format, ok := h.format(w, r)
	if !ok {
		return
	}
	entries, err := h.bot.List(r.Context(), 0)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.write(w, r, format, "bot-logs", exporter.BotLogTable(entries))
}

func (h *ExportHandler) format(w http.ResponseWriter, r *http.Request) (exporter.Format, bool) {
	f, err := exporter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.rs.Error(w, r, err)
		return "", false
	}
	return f, true
}

// write buffers the file so an encoding failure still yields a problem
// response instead of a truncated download.
func (h *ExportHandler) write(w http.ResponseWriter, r *http.Request, format exporter.Format, base string, table exporter.Table) {
	var buf bytes.Buffer
	if err := exporter.Write(&buf, format, table); err != nil {
		h.rs.Error(w, r, fmt.Errorf("export %s: %w", base, err))
		return
	}
	h.logger.InfoContext(r.Context(), "export generated",
		slog.String("export", base),
		slog.String("format", string(format)),
		slog.Int("rows", len(table.Rows)),
	)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename(base, h.licenses.Now())))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

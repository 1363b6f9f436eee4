package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"licensepanel/pkg/contracts/domain"
)

// SettingsService reads and replaces the panel settings.
type SettingsService interface {
	Get(ctx context.Context) (domain.Settings, error)
	Replace(ctx context.Context, next domain.Settings) (domain.Settings, error)
}

// SettingsHandler serves the settings document.
type SettingsHandler struct {
	settings SettingsService
	rs       *Responder
	logger   *slog.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(svc SettingsService, rs *Responder, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: svc, rs: rs, logger: logger.With(slog.String("handler", "settings"))}
}

// Routes mounts under /api/admin/settings.
func (h *SettingsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Get)
	r.Put("/", h.Put)
	return r
}

// Get handles GET /api/admin/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, http.StatusOK, s)
}

// Put handles PUT /api/admin/settings. The body replaces the whole document.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var next domain.Settings
	if !h.rs.Bind(w, r, &next) {
		return
	}
	s, err := h.settings.Replace(r.Context(), next)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, http.StatusOK, s)
}

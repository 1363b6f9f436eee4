package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"licensepanel/internal/blacklist"
	"licensepanel/pkg/contracts/domain"
)

// BlacklistService manages banned identifiers.
type BlacklistService interface {
	Get(ctx context.Context) (domain.Blacklist, error)
	Add(ctx context.Context, kind domain.BlacklistKind, value string) (blacklist.Cascade, error)
	Remove(ctx context.Context, kind domain.BlacklistKind, value string) (blacklist.Cascade, error)
}

// BlacklistHandler serves the blacklist.
type BlacklistHandler struct {
	blacklist BlacklistService
	rs        *Responder
	logger    *slog.Logger
}

// NewBlacklistHandler creates a new blacklist handler
func NewBlacklistHandler(svc BlacklistService, rs *Responder, logger *slog.Logger) *BlacklistHandler {
	return &BlacklistHandler{blacklist: svc, rs: rs, logger: logger.With(slog.String("handler", "blacklist"))}
}

// Routes mounts under /api/admin/blacklist.
func (h *BlacklistHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Get)
	r.Post("/", h.Add)
	r.Delete("/{kind}/{value}", h.Remove)
	return r
}

// BlacklistRequest bans one identifier.
type BlacklistRequest struct {
	Kind  domain.BlacklistKind `json:"kind" validate:"required,oneof=ip hwid discord"`
	Value string               `json:"value" validate:"required,max=256"`
}

// BlacklistChange reports a ban change with its cascade.
type BlacklistChange struct {
	Kind    domain.BlacklistKind `json:"kind"`
	Value   string               `json:"value"`
	Cascade blacklist.Cascade    `json:"cascade"`
}

// Get handles GET /api/admin/blacklist
func (h *BlacklistHandler) Get(w http.ResponseWriter, r *http.Request) {
	bl, err := h.blacklist.Get(r.Context())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, http.StatusOK, bl)
}

// Add handles POST /api/admin/blacklist
func (h *BlacklistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req BlacklistRequest
	if !h.rs.Bind(w, r, &req) {
		return
	}
	cascade, err := h.blacklist.Add(r.Context(), req.Kind, req.Value)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, http.StatusCreated, BlacklistChange{Kind: req.Kind, Value: req.Value, Cascade: cascade})
}

// Remove handles DELETE /api/admin/blacklist/{kind}/{value}
func (h *BlacklistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	kind := domain.BlacklistKind(chi.URLParam(r, "kind"))
	value := chi.URLParam(r, "value")
	cascade, err := h.blacklist.Remove(r.Context(), kind, value)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, http.StatusOK, BlacklistChange{Kind: kind, Value: value, Cascade: cascade})
}

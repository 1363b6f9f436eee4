package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "licensepanel/internal/errors"
	"licensepanel/internal/marketplace"
	"licensepanel/pkg/contracts/domain"
)

// PurchaseHandler ingests marketplace purchases.
type PurchaseHandler interface {
	HandlePurchase(ctx context.Context, p marketplace.Purchase, source domain.LicenseSource) (marketplace.Result, error)
}

// WebhookHandler serves the BuiltByBit webhooks.
type WebhookHandler struct {
	market PurchaseHandler
	rs     *Responder
	logger *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(market PurchaseHandler, rs *Responder, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		market: market,
		rs:     rs,
		logger: logger.With(slog.String("handler", "webhook")),
	}
}

// Routes mounts under /api/webhooks/builtbybit.
func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Purchase)
	r.Post("/placeholder", h.Placeholder)
	return r
}

// PurchaseResponse answers the purchase webhook.
type PurchaseResponse struct {
	Success    bool   `json:"success"`
	LicenseKey string `json:"license_key"`
	Created    bool   `json:"created"`
}

// PlaceholderResponse is substituted into the downloaded resource.
type PlaceholderResponse struct {
	LicenseKey string `json:"license_key"`
}

func (h *WebhookHandler) decode(w http.ResponseWriter, r *http.Request) (marketplace.Purchase, bool) {
	var p marketplace.Purchase
	if err := render.DecodeJSON(r.Body, &p); err != nil {
		h.rs.Error(w, r, apierrors.InvalidRequestWithError(err))
		return p, false
	}
	return p, true
}

// Purchase handles POST /api/webhooks/builtbybit
func (h *WebhookHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.market.HandlePurchase(r.Context(), p, domain.SourcePurchase)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	h.rs.JSON(w, r, status, PurchaseResponse{Success: true, LicenseKey: res.License.Key, Created: res.Created})
}

// Placeholder handles POST /api/webhooks/builtbybit/placeholder
func (h *WebhookHandler) Placeholder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.market.HandlePurchase(r.Context(), p, domain.SourcePlaceholder)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, http.StatusOK, PlaceholderResponse{LicenseKey: res.License.Key})
}

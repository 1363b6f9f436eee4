package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "licensepanel/internal/errors"
	"licensepanel/internal/voucher"
	"licensepanel/pkg/contracts/domain"
)

// VoucherService issues and redeems vouchers.
type VoucherService interface {
	Generate(ctx context.Context, p voucher.GenerateParams) ([]domain.Voucher, error)
	Redeem(ctx context.Context, code, discordID string) (voucher.Redemption, error)
	List(ctx context.Context) ([]domain.Voucher, error)
	Delete(ctx context.Context, code string) error
}

// VoucherHandler serves voucher management.
type VoucherHandler struct {
	vouchers VoucherService
	rs       *Responder
	logger   *slog.Logger
}

// NewVoucherHandler creates a new voucher handler
func NewVoucherHandler(svc VoucherService, rs *Responder, logger *slog.Logger) *VoucherHandler {
	return &VoucherHandler{vouchers: svc, rs: rs, logger: logger.With(slog.String("handler", "voucher"))}
}

// Routes mounts under /api/admin/vouchers.
func (h *VoucherHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Generate)
	r.Delete("/{code}", h.Delete)
	r.Post("/{code}/redeem", h.Redeem)
	return r
}

// GenerateVouchersRequest creates a batch. durationDays of 0 grants
// lifetime licenses.
type GenerateVouchersRequest struct {
	ProductID    string `json:"productId" validate:"required"`
	Count        int    `json:"count" validate:"required,min=1,max=100"`
	DurationDays int    `json:"durationDays" validate:"gte=0,lte=36500"`
	MaxIPs       *int   `json:"maxIps" validate:"omitempty,limit"`
	MaxHWIDs     *int   `json:"maxHwids" validate:"omitempty,limit"`
}

// Generate handles POST /api/admin/vouchers
func (h *VoucherHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateVouchersRequest
	if !h.rs.Bind(w, r, &req) {
		return
	}
	maxIPs, err := limitFrom(req.MaxIPs, domain.Capped(1))
	if err != nil {
		h.rs.Error(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	maxHWIDs, err := limitFrom(req.MaxHWIDs, domain.Unlimited())
	if err != nil {
		h.rs.Error(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	batch, err := h.vouchers.Generate(r.Context(), voucher.GenerateParams{
		ProductID:    req.ProductID,
		Count:        req.Count,
		DurationDays: req.DurationDays,
		MaxIPs:       maxIPs,
		MaxHWIDs:     maxHWIDs,
	})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, http.StatusCreated, batch)
}

// List handles GET /api/admin/vouchers
func (h *VoucherHandler) List(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.vouchers.List(r.Context())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, http.StatusOK, vouchers)
}

// Delete handles DELETE /api/admin/vouchers/{code}
func (h *VoucherHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.vouchers.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.NoContent(w, r)
}

// Redeem handles POST /api/admin/vouchers/{code}/redeem on behalf of a user.
func (h *VoucherHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req DiscordIDRequest
	if !h.rs.Bind(w, r, &req) {
		return
	}
	res, err := h.vouchers.Redeem(r.Context(), chi.URLParam(r, "code"), req.DiscordID)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, http.StatusOK, res)
}

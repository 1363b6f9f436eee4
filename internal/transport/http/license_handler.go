package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "licensepanel/internal/errors"
	"licensepanel/internal/license"
	"licensepanel/pkg/contracts/domain"
)

// LicenseHandler serves license CRUD and lifecycle actions.
type LicenseHandler struct {
	licenses *license.Service
	products *license.ProductService
	rs       *Responder
	logger   *slog.Logger
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(licenses *license.Service, products *license.ProductService, rs *Responder, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		licenses: licenses,
		products: products,
		rs:       rs,
		logger:   logger.With(slog.String("handler", "license")),
	}
}

// Routes mounts under /api/admin/licenses.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{key}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Post("/renew", h.Renew)
		r.Post("/activate", h.Activate)
		r.Post("/deactivate", h.Deactivate)
		r.Put("/limits", h.SetLimits)
		r.Post("/transfer", h.Transfer)
		r.Post("/sub-users", h.AddSubUser)
		r.Delete("/sub-users/{discordId}", h.RemoveSubUser)
		r.Post("/identities/{kind}", h.AddIdentity)
		r.Delete("/identities/{kind}", h.ResetIdentities)
		r.Delete("/identities/{kind}/{value}", h.RemoveIdentity)
	})
	return r
}

// LicenseView is a license with the fields the dashboard derives.
type LicenseView struct {
	domain.License
	EffectiveStatus domain.LicenseStatus `json:"effectiveStatus"`
	ProductName     string               `json:"productName,omitempty"`
}

// CreateLicenseRequest issues a license. Limits use -2 for disabled and -1
// for unlimited; days of 0 means lifetime unless expiresAt is set.
type CreateLicenseRequest struct {
	ProductID string     `json:"productId" validate:"required"`
	DiscordID string     `json:"discordId" validate:"omitempty,max=32"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Days      int        `json:"days" validate:"gte=0,lte=36500"`
	MaxIPs    *int       `json:"maxIps" validate:"omitempty,limit"`
	MaxHWIDs  *int       `json:"maxHwids" validate:"omitempty,limit"`
}

// RenewRequest sets a new expiry. Both fields empty makes it lifetime.
type RenewRequest struct {
	ExpiresAt *time.Time `json:"expiresAt"`
	Days      int        `json:"days" validate:"gte=0,lte=36500"`
}

// LimitsRequest replaces the slot limits.
type LimitsRequest struct {
	MaxIPs   *int `json:"maxIps" validate:"required,limit"`
	MaxHWIDs *int `json:"maxHwids" validate:"required,limit"`
}

// DiscordIDRequest names a Discord user.
type DiscordIDRequest struct {
	DiscordID string `json:"discordId" validate:"required,max=32"`
}

// IdentityRequest binds one IP or HWID.
type IdentityRequest struct {
	Value string `json:"value" validate:"required,max=256"`
}

func (h *LicenseHandler) views(r *http.Request, licenses []domain.License) ([]LicenseView, error) {
	names, err := h.products.Names(r.Context())
	if err != nil {
		return nil, err
	}
	now := h.licenses.Now()
	out := make([]LicenseView, 0, len(licenses))
	for _, l := range licenses {
		out = append(out, LicenseView{License: l, EffectiveStatus: l.EffectiveStatus(now), ProductName: names[l.ProductID]})
	}
	return out, nil
}

func (h *LicenseHandler) respondOne(w http.ResponseWriter, r *http.Request, status int, lic domain.License, err error) {
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	views, err := h.views(r, []domain.License{lic})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, status, views[0])
}

func identityKind(r *http.Request) (domain.IdentityKind, error) {
	switch kind := domain.IdentityKind(chi.URLParam(r, "kind")); kind {
	case domain.IdentityIP, domain.IdentityHWID:
		return kind, nil
	default:
		return "", apierrors.New(http.StatusBadRequest, "INVALID_REQUEST",
			fmt.Sprintf("identity kind must be %q or %q", domain.IdentityIP, domain.IdentityHWID))
	}
}

// List handles GET /api/admin/licenses. ?q= searches; productId, discordId
// and status filter.
func (h *LicenseHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		licenses []domain.License
		err      error
	)
	if query := q.Get("q"); query != "" {
		licenses, err = h.licenses.Search(r.Context(), query)
	} else {
		status := domain.LicenseStatus(q.Get("status"))
		if status != "" && !status.Valid() {
			h.rs.Error(w, r, license.ErrInvalidStatus)
			return
		}
		licenses, err = h.licenses.List(r.Context(), license.Filter{
			ProductID: q.Get("productId"),
			DiscordID: q.Get("discordId"),
			Status:    status,
		})
	}
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	views, err := h.views(r, licenses)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, http.StatusOK, views)
}

// Create handles POST /api/admin/licenses
func (h *LicenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLicenseRequest
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
	lic, err := h.licenses.Create(r.Context(), license.CreateParams{
		ProductID: req.ProductID,
		DiscordID: req.DiscordID,
		ExpiresAt: expiryFrom(req.ExpiresAt, req.Days, h.licenses.Now()),
		MaxIPs:    maxIPs,
		MaxHWIDs:  maxHWIDs,
		Source:    domain.SourceManual,
	})
	h.respondOne(w, r, http.StatusCreated, lic, err)
}

// Get handles GET /api/admin/licenses/{key}
func (h *LicenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	lic, err := h.licenses.Get(r.Context(), chi.URLParam(r, "key"))
	h.respondOne(w, r, http.StatusOK, lic, err)
}

// Delete handles DELETE /api/admin/licenses/{key}
func (h *LicenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.licenses.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.NoContent(w, r)
}

// Renew handles POST /api/admin/licenses/{key}/renew
func (h *LicenseHandler) Renew(w http.ResponseWriter, r *http.Request) {
	var req RenewRequest
	if !h.rs.Bind(w, r, &req) {
		return
	}
	lic, err := h.licenses.Renew(r.Context(), chi.URLParam(r, "key"), expiryFrom(req.ExpiresAt, req.Days, h.licenses.Now()))
	h.respondOne(w, r, http.StatusOK, lic, err)
}

// Activate handles POST /api/admin/licenses/{key}/activate
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	lic, err := h.licenses.Activate(r.Context(), chi.URLParam(r, "key"))
	h.respondOne(w, r, http.StatusOK, lic, err)
}

// Deactivate handles POST /api/admin/licenses/{key}/deactivate
func (h *LicenseHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	lic, err := h.licenses.Deactivate(r.Context(), chi.URLParam(r, "key"))
	h.respondOne(w, r, http.StatusOK, lic, err)
}

// SetLimits handles PUT /api/admin/licenses/{key}/limits
func (h *LicenseHandler) SetLimits(w http.ResponseWriter, r *http.Request) {
	var req LimitsRequest
	if !h.rs.Bind(w, r, &req) {
		return
	}
	maxIPs, err := domain.ParseLimit(*req.MaxIPs)
	if err != nil {
		h.rs.Error(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	maxHWIDs, err := domain.ParseLimit(*req.MaxHWIDs)
	if err != nil {
		h.rs.Error(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	lic, err := h.licenses.SetLimits(r.Context(), chi.URLParam(r, "key"), maxIPs, maxHWIDs)
	h.respondOne(w, r, http.StatusOK, lic, err)
}

// Transfer handles POST /api/admin/licenses/{key}/transfer
func (h *LicenseHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req DiscordIDRequest
	if !h.rs.Bind(w, r, &req) {
		return
	}
	lic, err := h.licenses.Transfer(r.Context(), chi.URLParam(r, "key"), req.DiscordID)
	h.respondOne(w, r, http.StatusOK, lic, err)
}

// AddSubUser handles POST /api/admin/licenses/{key}/sub-users
func (h *LicenseHandler) AddSubUser(w http.ResponseWriter, r *http.Request) {
	var req DiscordIDRequest
	if !h.rs.Bind(w, r, &req) {
		return
	}
	lic, err := h.licenses.AddSubUser(r.Context(), chi.URLParam(r, "key"), req.DiscordID)
	h.respondOne(w, r, http.StatusOK, lic, err)
}

// RemoveSubUser handles DELETE /api/admin/licenses/{key}/sub-users/{discordId}
func (h *LicenseHandler) RemoveSubUser(w http.ResponseWriter, r *http.Request) {
	lic, err := h.licenses.RemoveSubUser(r.Context(), chi.URLParam(r, "key"), chi.URLParam(r, "discordId"))
	h.respondOne(w, r, http.StatusOK, lic, err)
}

// AddIdentity handles POST /api/admin/licenses/{key}/identities/{kind}
func (h *LicenseHandler) AddIdentity(w http.ResponseWriter, r *http.Request) {
	kind, err := identityKind(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	var req IdentityRequest
	if !h.rs.Bind(w, r, &req) {
		return
	}
	lic, err := h.licenses.AddIdentity(r.Context(), chi.URLParam(r, "key"), kind, req.Value)
	h.respondOne(w, r, http.StatusOK, lic, err)
}

// ResetIdentities handles DELETE /api/admin/licenses/{key}/identities/{kind}
func (h *LicenseHandler) ResetIdentities(w http.ResponseWriter, r *http.Request) {
	kind, err := identityKind(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	lic, err := h.licenses.ResetIdentities(r.Context(), chi.URLParam(r, "key"), kind)
	h.respondOne(w, r, http.StatusOK, lic, err)
}

// RemoveIdentity handles DELETE /api/admin/licenses/{key}/identities/{kind}/{value}
func (h *LicenseHandler) RemoveIdentity(w http.ResponseWriter, r *http.Request) {
	kind, err := identityKind(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	lic, err := h.licenses.RemoveIdentity(r.Context(), chi.URLParam(r, "key"), kind, chi.URLParam(r, "value"))
	h.respondOne(w, r, http.StatusOK, lic, err)
}

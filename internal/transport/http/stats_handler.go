package http

import (
	"log/slog"
	"net/http"
	"time"

	"licensepanel/internal/license"
	"licensepanel/internal/store"
	"licensepanel/pkg/contracts/domain"
)

// StatsHandler summarizes panel data for the dashboard overview.
type StatsHandler struct {
	licenses    *license.Service
	products    *license.ProductService
	vouchers    VoucherService
	validations store.ValidationLogRepository
	rs          *Responder
	logger      *slog.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(licenses *license.Service, products *license.ProductService, vouchers VoucherService, validations store.ValidationLogRepository, rs *Responder, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		licenses:    licenses,
		products:    products,
		vouchers:    vouchers,
		validations: validations,
		rs:          rs,
		logger:      logger.With(slog.String("handler", "stats")),
	}
}

// Stats is the dashboard overview.
type Stats struct {
	Products    int                          `json:"products"`
	Licenses    int                          `json:"licenses"`
	ByStatus    map[domain.LicenseStatus]int `json:"byStatus"`
	BySource    map[domain.LicenseSource]int `json:"bySource"`
	Lifetime    int                          `json:"lifetime"`
	Unlinked    int                          `json:"unlinked"`
	Vouchers    VoucherStats                 `json:"vouchers"`
	Validations map[domain.LogStatus]int     `json:"validations24h"`
	Generated   time.Time                    `json:"generatedAt"`
}

// VoucherStats counts vouchers by redemption.
type VoucherStats struct {
	Total    int `json:"total"`
	Redeemed int `json:"redeemed"`
}

// Stats handles GET /api/admin/stats. Validation counts cover the retained
// log entries of the last 24 hours.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := h.licenses.Now()

	products, err := h.products.List(ctx)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	licenses, err := h.licenses.List(ctx, license.Filter{})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	vouchers, err := h.vouchers.List(ctx)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	entries, err := h.validations.List(ctx, 0)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	out := Stats{
		Products: len(products),
		Licenses: len(licenses),
		ByStatus: map[domain.LicenseStatus]int{
			domain.LicenseStatusActive:   0,
			domain.LicenseStatusInactive: 0,
			domain.LicenseStatusExpired:  0,
		},
		BySource:    map[domain.LicenseSource]int{},
		Validations: map[domain.LogStatus]int{domain.LogSuccess: 0, domain.LogFailure: 0},
		Generated:   now.UTC(),
	}
	for i := range licenses {
		l := &licenses[i]
		out.ByStatus[l.EffectiveStatus(now)]++
		out.BySource[l.Source]++
		if l.IsLifetime() {
			out.Lifetime++
		}
		if !l.IsLinked() {
			out.Unlinked++
		}
	}
	for _, v := range vouchers {
		out.Vouchers.Total++
		if v.Redeemed {
			out.Vouchers.Redeemed++
		}
	}
	since := now.Add(-24 * time.Hour)
	for _, e := range entries {
		if e.Timestamp.Before(since) {
			break
		}
		out.Validations[e.Status]++
	}

	h.rs.JSON(w, r, http.StatusOK, out)
}

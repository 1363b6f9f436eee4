package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	apierrors "licensepanel/internal/errors"
	"licensepanel/internal/middleware"
	"licensepanel/pkg/contracts/domain"
)

// Responder is shared by the admin handlers: it binds request bodies and
// renders results and problems.
type Responder struct {
	errs *apierrors.ErrorHandler
	bind *middleware.Validator
}

// NewResponder returns a Responder.
func NewResponder(errs *apierrors.ErrorHandler, bind *middleware.Validator) *Responder {
	return &Responder{errs: errs, bind: bind}
}

// Error renders err as a problem.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	rs.errs.HandleError(w, r, err)
}

// JSON renders v with status.
func (rs *Responder) JSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	rs.errs.JSON(w, r, status, v)
}

// Bind decodes and validates the request body into dst, rendering a problem
// and returning false on failure.
func (rs *Responder) Bind(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := rs.bind.Bind(r, dst); err != nil {
		rs.errs.HandleError(w, r, err)
		return false
	}
	return true
}

// NoContent writes 204.
func (rs *Responder) NoContent(w http.ResponseWriter, r *http.Request) {
	render.NoContent(w, r)
}

// limitFrom converts an optional legacy integer into a Limit.
func limitFrom(v *int, def domain.Limit) (domain.Limit, error) {
	if v == nil {
		return def, nil
	}
	return domain.ParseLimit(*v)
}

// expiryFrom prefers an explicit expiry, then a day count from now. Neither
// means lifetime.
func expiryFrom(at *time.Time, days int, now time.Time) *time.Time {
	if at != nil {
		t := at.UTC()
		return &t
	}
	if days <= 0 {
		return nil
	}
	t := now.Add(time.Duration(days) * 24 * time.Hour).UTC()
	return &t
}

// queryLimit reads ?limit= clamped to [1, max], def when absent or invalid.
func queryLimit(r *http.Request, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

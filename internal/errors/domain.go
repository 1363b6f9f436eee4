package errors

import (
	"errors"
	"net/http"

	"licensepanel/internal/blacklist"
	"licensepanel/internal/exporter"
	"licensepanel/internal/license"
	"licensepanel/internal/marketplace"
	"licensepanel/internal/security"
	"licensepanel/internal/settings"
	"licensepanel/internal/store"
	"licensepanel/internal/voucher"
)

// mapping ties a sentinel error to the problem it is reported as.
type mapping struct {
	target error
	status int
	kind   string
	title  string
}

// domainMappings is checked in order with errors.Is. The error text becomes
// the problem detail, so sentinels must not carry secrets.
var domainMappings = []mapping{
	{license.ErrLicenseNotFound, http.StatusNotFound, TypeLicenseNotFound, "License Not Found"},
	{license.ErrProductNotFound, http.StatusNotFound, TypeProductNotFound, "Product Not Found"},
	{license.ErrInvalidStatus, http.StatusBadRequest, TypeValidation, "Invalid Status"},
	{license.ErrHWIDLimitDisabled, http.StatusBadRequest, TypeValidation, "Invalid Limit"},
	{license.ErrEmptyIdentity, http.StatusBadRequest, TypeValidation, "Missing Identifier"},
	{license.ErrSubUserIsOwner, http.StatusConflict, TypeSubUser, "Invalid Sub-user"},
	{license.ErrSubUserExists, http.StatusConflict, TypeSubUser, "Sub-user Exists"},
	{license.ErrSubUserMissing, http.StatusNotFound, TypeSubUser, "Sub-user Not Found"},
	{license.ErrIdentityExists, http.StatusConflict, TypeConflict, "Identifier Exists"},
	{license.ErrIdentityMissing, http.StatusNotFound, TypeNotFound, "Identifier Not Found"},
	{license.ErrTrackingDisabled, http.StatusConflict, TypeSlotLimit, "Tracking Disabled"},
	{license.ErrSlotLimit, http.StatusConflict, TypeSlotLimit, "Slot Limit Reached"},
	{license.ErrProductNameMissing, http.StatusBadRequest, TypeValidation, "Missing Product Name"},
	{license.ErrProductInUse, http.StatusConflict, TypeConflict, "Product In Use"},

	{blacklist.ErrInvalidKind, http.StatusBadRequest, TypeValidation, "Invalid Blacklist Kind"},
	{blacklist.ErrEmptyValue, http.StatusBadRequest, TypeValidation, "Missing Value"},
	{blacklist.ErrAlreadyListed, http.StatusConflict, TypeBlacklist, "Already Blacklisted"},
	{blacklist.ErrNotListed, http.StatusNotFound, TypeBlacklist, "Not Blacklisted"},

	{voucher.ErrNotFound, http.StatusNotFound, TypeVoucher, "Voucher Not Found"},
	{voucher.ErrAlreadyRedeemed, http.StatusConflict, TypeVoucher, "Voucher Redeemed"},
	{voucher.ErrInvalidCount, http.StatusBadRequest, TypeValidation, "Invalid Count"},
	{voucher.ErrMissingUser, http.StatusBadRequest, TypeValidation, "Missing User"},

	{marketplace.ErrUnauthorized, http.StatusUnauthorized, TypeUnauthorized, "Unauthorized"},
	{marketplace.ErrInvalidPurchase, http.StatusBadRequest, TypeValidation, "Invalid Purchase"},
	{marketplace.ErrNoPendingLink, http.StatusNotFound, TypeLink, "No Pending Link"},
	{marketplace.ErrLinkExpired, http.StatusGone, TypeLink, "Link Expired"},
	{marketplace.ErrTokenNotFound, http.StatusConflict, TypeLink, "Token Not Found"},
	{marketplace.ErrLinkNotEnabled, http.StatusServiceUnavailable, TypeServiceDown, "Linking Disabled"},

	{settings.ErrInvalid, http.StatusBadRequest, TypeValidation, "Invalid Settings"},
	{exporter.ErrUnsupportedFormat, http.StatusBadRequest, TypeValidation, "Unsupported Format"},

	{security.ErrInvalidCredentials, http.StatusUnauthorized, TypeUnauthorized, "Invalid Credentials"},
	{security.ErrInvalidToken, http.StatusUnauthorized, TypeUnauthorized, "Invalid Token"},
	{security.ErrAuthNotConfigured, http.StatusServiceUnavailable, TypeServiceDown, "Authentication Disabled"},

	{store.ErrNotFound, http.StatusNotFound, TypeNotFound, "Not Found"},
	{store.ErrDuplicate, http.StatusConflict, TypeConflict, "Conflict"},
}

// lookupDomain returns the mapping for err, if any.
func lookupDomain(err error) (mapping, bool) {
	for _, m := range domainMappings {
		if errors.Is(err, m.target) {
			return m, true
		}
	}
	return mapping{}, false
}

// StatusOf returns the HTTP status an error is reported with.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	if m, ok := lookupDomain(err); ok {
		return m.status
	}
	return http.StatusInternalServerError
}

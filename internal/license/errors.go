package license

import (
	"errors"
	"net/http"
)

// Lifecycle errors. Validation never returns these; it reports rule failures
// through Result.
var (
	ErrLicenseNotFound    = errors.New("license not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrInvalidStatus      = errors.New("invalid license status")
	ErrHWIDLimitDisabled  = errors.New("hwid limit cannot be disabled")
	ErrSubUserIsOwner     = errors.New("owner cannot be added as a sub-user")
	ErrSubUserExists      = errors.New("sub-user already added")
	ErrSubUserMissing     = errors.New("sub-user not found")
	ErrIdentityExists     = errors.New("identifier already bound")
	ErrIdentityMissing    = errors.New("identifier not bound")
	ErrTrackingDisabled   = errors.New("ip tracking is disabled for this license")
	ErrSlotLimit          = errors.New("slot limit reached")
	ErrEmptyIdentity      = errors.New("identifier is required")
	ErrKeyGenerationFault = errors.New("could not allocate a unique license key")
	ErrProductNameMissing = errors.New("product name is required")
	ErrProductInUse       = errors.New("product still has licenses")
)

// Failure is a validation rule outcome: the reason stored in the log, the
// message returned to the caller and the HTTP status hint.
type Failure struct {
	Reason  string
	Message string
	Status  int
}

const accessDenied = "Access denied."

// Validation failures in pipeline order.
var (
	FailBlacklistedIP    = Failure{Reason: "Blacklisted IP", Message: accessDenied, Status: http.StatusForbidden}
	FailBlacklistedHWID  = Failure{Reason: "Blacklisted HWID", Message: accessDenied, Status: http.StatusForbidden}
	FailUserBlacklisted  = Failure{Reason: "User blacklisted", Message: accessDenied, Status: http.StatusForbidden}
	FailMissingKey       = Failure{Reason: "Missing key", Message: "Missing key.", Status: http.StatusBadRequest}
	FailMissingDiscordID = Failure{Reason: "Missing discordId", Message: "Missing discordId.", Status: http.StatusBadRequest}
	FailInvalidKey       = Failure{Reason: "Invalid key", Message: "Invalid license key.", Status: http.StatusForbidden}
	FailProductNotFound  = Failure{Reason: "Product not found", Message: "Product not found.", Status: http.StatusNotFound}
	FailHWIDRequired     = Failure{Reason: "HWID required but not provided", Message: "This product requires a hardware ID for validation.", Status: http.StatusForbidden}
	FailOwnerBlacklisted = Failure{Reason: "License owner blacklisted", Message: accessDenied, Status: http.StatusForbidden}
	FailUnauthorized     = Failure{Reason: "User not authorized for this license", Message: "User not authorized for this license.", Status: http.StatusForbidden}
	FailExpired          = Failure{Reason: "License expired", Message: "License has expired.", Status: http.StatusForbidden}
	FailMaxIPs           = Failure{Reason: "Max IPs reached", Message: "Maximum number of IPs reached for this license.", Status: http.StatusForbidden}
	FailMaxHWIDs         = Failure{Reason: "Max HWIDs reached", Message: "Maximum number of HWIDs reached for this license.", Status: http.StatusForbidden}
)

// FailInactive reports a license whose stored status is not active.
func FailInactive(status string) Failure {
	return Failure{
		Reason:  "License inactive (status: " + status + ")",
		Message: "License is inactive.",
		Status:  http.StatusForbidden,
	}
}

// internalErrorMessage is returned when validation hits an unexpected error.
const internalErrorMessage = "Internal server error."

// Package domain contains the core domain models of the license panel.
// These types are shared by the stores, the services and the transports.
package domain

import (
	"errors"
	"slices"
	"time"
)

// ErrInvalidLimit is returned when a slot limit cannot be decoded.
var ErrInvalidLimit = errors.New("invalid slot limit")

// UnlinkedOwner marks a license that no Discord account owns yet.
const UnlinkedOwner = "unlinked"

// LicenseStatus is the stored status of a license.
type LicenseStatus string

const (
	LicenseStatusActive   LicenseStatus = "active"
	LicenseStatusInactive LicenseStatus = "inactive"
	LicenseStatusExpired  LicenseStatus = "expired"
)

// Valid reports whether s is a known status.
func (s LicenseStatus) Valid() bool {
	switch s {
	case LicenseStatusActive, LicenseStatusInactive, LicenseStatusExpired:
		return true
	}
	return false
}

// LicenseSource records how a license was issued.
type LicenseSource string

const (
	SourceManual      LicenseSource = "manual"
	SourceVoucher     LicenseSource = "voucher"
	SourcePlaceholder LicenseSource = "placeholder-webhook"
	SourcePurchase    LicenseSource = "purchase-webhook"
)

// PlatformBuiltByBit names the BuiltByBit marketplace.
const PlatformBuiltByBit = "builtbybit"

// IdentityKind selects the IP or HWID slots of a license.
type IdentityKind string

const (
	IdentityIP   IdentityKind = "ip"
	IdentityHWID IdentityKind = "hwid"
)

// License binds a key to a product and an owner.
type License struct {
	ID                string        `json:"id"`
	Key               string        `json:"key"`
	ProductID         string        `json:"productId"`
	DiscordID         string        `json:"discordId"`
	SubUserDiscordIDs []string      `json:"subUserDiscordIds"`
	Status            LicenseStatus `json:"status"`
	ExpiresAt         *time.Time    `json:"expiresAt"`
	AllowedIPs        []string      `json:"allowedIps"`
	MaxIPs            Limit         `json:"maxIps"`
	AllowedHWIDs      []string      `json:"allowedHwids"`
	MaxHWIDs          Limit         `json:"maxHwids"`
	Validations       int64         `json:"validations"`
	Platform          string        `json:"platform,omitempty"`
	PlatformUserID    string        `json:"platformUserId,omitempty"`
	PurchaseTimestamp int64         `json:"purchaseTimestamp,omitempty"`
	Source            LicenseSource `json:"source"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// IsLifetime reports whether the license never expires.
func (l *License) IsLifetime() bool { return l.ExpiresAt == nil }

// IsExpired reports whether the expiry date has passed at now.
func (l *License) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// EffectiveStatus is the single derivation of a license's status: a past
// expiry date wins over the stored status.
func (l *License) EffectiveStatus(now time.Time) LicenseStatus {
	if l.IsExpired(now) {
		return LicenseStatusExpired
	}
	return l.Status
}

// IsUsable reports whether the license may pass validation at now.
func (l *License) IsUsable(now time.Time) bool {
	return l.EffectiveStatus(now) == LicenseStatusActive
}

// IsLinked reports whether a Discord account owns the license.
func (l *License) IsLinked() bool {
	return l.DiscordID != "" && l.DiscordID != UnlinkedOwner
}

// HasSubUser reports whether id is a sub-user.
func (l *License) HasSubUser(id string) bool {
	return slices.Contains(l.SubUserDiscordIDs, id)
}

// Authorizes reports whether discordID owns the license or is a sub-user.
func (l *License) Authorizes(discordID string) bool {
	return discordID == l.DiscordID || l.HasSubUser(discordID)
}

// Identities returns the bound values and limit for kind.
func (l *License) Identities(kind IdentityKind) ([]string, Limit) {
	if kind == IdentityHWID {
		return l.AllowedHWIDs, l.MaxHWIDs
	}
	return l.AllowedIPs, l.MaxIPs
}

// SetIdentities replaces the bound values for kind.
func (l *License) SetIdentities(kind IdentityKind, values []string) {
	if kind == IdentityHWID {
		l.AllowedHWIDs = values
		return
	}
	l.AllowedIPs = values
}

// Clone returns a deep copy.
func (l License) Clone() License {
	l.SubUserDiscordIDs = slices.Clone(l.SubUserDiscordIDs)
	l.AllowedIPs = slices.Clone(l.AllowedIPs)
	l.AllowedHWIDs = slices.Clone(l.AllowedHWIDs)
	if l.ExpiresAt != nil {
		t := *l.ExpiresAt
		l.ExpiresAt = &t
	}
	return l
}

// Product is a piece of software licenses are issued for.
type Product struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	HWIDProtection       bool      `json:"hwidProtection"`
	BuiltByBitResourceID string    `json:"builtByBitResourceId,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
}

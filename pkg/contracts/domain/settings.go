package domain

import "time"

// DefaultValidMessage is used when the custom message is enabled but empty.
const DefaultValidMessage = "License key is valid"

// Settings is the panel configuration document edited by admins.
type Settings struct {
	ValidationResponse ValidationResponseSettings `json:"validationResponse"`
	Webhooks           WebhookSettings            `json:"webhooks"`
}

// ValidationResponseSettings controls optional checks and the shape of a
// successful validation response.
type ValidationResponseSettings struct {
	RequireDiscordID bool                  `json:"requireDiscordId"`
	CustomMessage    CustomMessageSettings `json:"customMessage"`
	License          LicenseFieldSettings  `json:"license"`
	Customer         CustomerFieldSettings `json:"customer"`
	Product          ProductFieldSettings  `json:"product"`
}

// CustomMessageSettings toggles the message field.
type CustomMessageSettings struct {
	Enabled bool   `json:"enabled"`
	Text    string `json:"text"`
}

// LicenseFieldSettings selects the license sub-object fields.
type LicenseFieldSettings struct {
	Enabled   bool `json:"enabled"`
	Key       bool `json:"key"`
	Status    bool `json:"status"`
	ExpiresAt bool `json:"expiresAt"`
	IssueDate bool `json:"issueDate"`
	MaxIPs    bool `json:"maxIps"`
	UsedIPs   bool `json:"usedIps"`
}

// CustomerFieldSettings selects the customer sub-object fields.
type CustomerFieldSettings struct {
	Enabled       bool `json:"enabled"`
	ID            bool `json:"id"`
	DiscordID     bool `json:"discordId"`
	CustomerSince bool `json:"customerSince"`
}

// ProductFieldSettings selects the product sub-object fields.
type ProductFieldSettings struct {
	Enabled     bool `json:"enabled"`
	ID          bool `json:"id"`
	Name        bool `json:"name"`
	ShowEnabled bool `json:"showEnabled"`
}

// WebhookSettings holds outbound Discord webhook URLs per event family.
type WebhookSettings struct {
	LicenseEvents    string `json:"licenseEvents" validate:"omitempty,url"`
	ValidationEvents string `json:"validationEvents" validate:"omitempty,url"`
	BlacklistEvents  string `json:"blacklistEvents" validate:"omitempty,url"`
}

// DefaultSettings is used while no settings document exists.
func DefaultSettings() Settings {
	return Settings{}
}

// Voucher can be redeemed once for a license.
type Voucher struct {
	Code         string     `json:"code"`
	ProductID    string     `json:"productId"`
	DurationDays int        `json:"durationDays"`
	MaxIPs       Limit      `json:"maxIps"`
	MaxHWIDs     Limit      `json:"maxHwids"`
	Redeemed     bool       `json:"redeemed"`
	RedeemedBy   string     `json:"redeemedBy,omitempty"`
	RedeemedAt   *time.Time `json:"redeemedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// IsLifetime reports whether the voucher grants a license without expiry.
func (v *Voucher) IsLifetime() bool { return v.DurationDays <= 0 }

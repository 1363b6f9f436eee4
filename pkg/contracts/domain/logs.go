package domain

import "time"

// Log caps.
const (
	MaxValidationLogs = 500
	MaxBotLogs        = 1000
)

// NoLicenseKey stands in for the key on log entries of requests without one.
const NoLicenseKey = "N/A"

// LogStatus is the outcome recorded on a validation log entry.
type LogStatus string

const (
	LogSuccess LogStatus = "success"
	LogFailure LogStatus = "failure"
)

// Location is the approximate origin of a validation request.
type Location struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}

// ValidationLog records one validation attempt. Entries are never mutated.
type ValidationLog struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	LicenseKey  string    `json:"licenseKey"`
	IP          string    `json:"ip"`
	HWID        string    `json:"hwid,omitempty"`
	Status      LogStatus `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	ProductName string    `json:"productName,omitempty"`
	DiscordID   string    `json:"discordId,omitempty"`
	Location    *Location `json:"location"`
}

// BotLog records one bot command invocation.
type BotLog struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	DiscordID string    `json:"discordId"`
	Details   string    `json:"details,omitempty"`
	Success   bool      `json:"success"`
}

package exporter

import (
	"strconv"
	"strings"
	"time"

	"licensepanel/pkg/contracts/domain"
)

// formatTime renders t in UTC, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// formatExpiry renders a license expiry, "Lifetime" when nil.
func formatExpiry(t *time.Time) string {
	if t == nil {
		return "Lifetime"
	}
	return formatTime(*t)
}

// formatLimit renders a slot limit the way admins type it.
func formatLimit(l domain.Limit) string {
	switch {
	case l.IsDisabled():
		return "Disabled"
	case l.IsUnlimited():
		return "Unlimited"
	default:
		return strconv.Itoa(l.Max())
	}
}

func formatList(values []string) string {
	return strings.Join(values, ", ")
}

func formatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

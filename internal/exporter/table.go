package exporter

import (
	"time"

	"licensepanel/pkg/contracts/domain"
)

// Table is one sheet of exported data.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]string
	// Widths optionally sets column widths in characters, by column index.
	Widths []float64
}

// LicenseTable lists licenses with their derived status. productNames maps
// product ids to names; unknown ids are exported as the raw id.
func LicenseTable(licenses []domain.License, productNames map[string]string, now time.Time) Table {
	t := Table{
		Sheet: "Licenses",
		Headers: []string{
			"Key", "Product", "Owner", "Sub-users", "Status", "Expires",
			"IPs", "Max IPs", "HWIDs", "Max HWIDs", "Validations",
			"Source", "Platform user", "Created", "Updated",
		},
		Widths: []float64{32, 24, 22, 30, 10, 22, 30, 10, 30, 10, 12, 20, 16, 22, 22},
		Rows:   make([][]string, 0, len(licenses)),
	}
	for i := range licenses {
		l := &licenses[i]
		product := l.ProductID
		if name, ok := productNames[l.ProductID]; ok {
			product = name
		}
		t.Rows = append(t.Rows, []string{
			l.Key,
			product,
			l.DiscordID,
			formatList(l.SubUserDiscordIDs),
			string(l.EffectiveStatus(now)),
			formatExpiry(l.ExpiresAt),
			formatList(l.AllowedIPs),
			formatLimit(l.MaxIPs),
			formatList(l.AllowedHWIDs),
			formatLimit(l.MaxHWIDs),
			formatInt(l.Validations),
			string(l.Source),
			l.PlatformUserID,
			formatTime(l.CreatedAt),
			formatTime(l.UpdatedAt),
		})
	}
	return t
}

// ValidationLogTable lists validation attempts in the given order.
func ValidationLogTable(logs []domain.ValidationLog) Table {
	t := Table{
		Sheet: "Validation Logs",
		Headers: []string{
			"Time", "License", "Status", "Reason", "IP", "HWID",
			"Product", "Discord ID", "Country", "Region", "City",
		},
		Widths: []float64{22, 32, 10, 40, 18, 30, 24, 22, 16, 16, 16},
		Rows:   make([][]string, 0, len(logs)),
	}
	for _, e := range logs {
		var country, region, city string
		if e.Location != nil {
			country, region, city = e.Location.Country, e.Location.Region, e.Location.City
		}
		t.Rows = append(t.Rows, []string{
			formatTime(e.Timestamp),
			e.LicenseKey,
			string(e.Status),
			e.Reason,
			e.IP,
			e.HWID,
			e.ProductName,
			e.DiscordID,
			country, region, city,
		})
	}
	return t
}

// BotLogTable lists bot command invocations in the given order.
func BotLogTable(logs []domain.BotLog) Table {
	t := Table{
		Sheet:   "Bot Logs",
		Headers: []string{"Time", "Command", "Discord ID", "Success", "Details"},
		Widths:  []float64{22, 20, 22, 8, 60},
		Rows:    make([][]string, 0, len(logs)),
	}
	for _, e := range logs {
		t.Rows = append(t.Rows, []string{
			formatTime(e.Timestamp),
			e.Command,
			e.DiscordID,
			formatBool(e.Success),
			e.Details,
		})
	}
	return t
}

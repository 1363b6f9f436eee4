package notify

import (
	"fmt"
	"strings"
	"time"

	"licensepanel/pkg/contracts/domain"
)

// LicenseEvent describes a lifecycle change on lic.
func LicenseEvent(action string, lic domain.License) Event {
	color := ColorBlue
	switch action {
	case "created", "renewed", "activated":
		color = ColorGreen
	case "deactivated", "deleted":
		color = ColorRed
	}
	expires := "Lifetime"
	if lic.ExpiresAt != nil {
		expires = lic.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return Event{
		Kind:  KindLicense,
		Title: "License " + action,
		Color: color,
		Fields: []Field{
			{Name: "Key", Value: lic.Key},
			{Name: "Product", Value: lic.ProductID, Inline: true},
			{Name: "Owner", Value: lic.DiscordID, Inline: true},
			{Name: "Status", Value: string(lic.Status), Inline: true},
			{Name: "Expires", Value: expires, Inline: true},
			{Name: "Source", Value: string(lic.Source), Inline: true},
		},
	}
}

// ValidationEvent describes one validation attempt.
func ValidationEvent(entry domain.ValidationLog) Event {
	ev := Event{
		Kind:  KindValidation,
		Title: "Validation succeeded",
		Color: ColorGreen,
		Fields: []Field{
			{Name: "Key", Value: entry.LicenseKey},
			{Name: "IP", Value: entry.IP, Inline: true},
			{Name: "HWID", Value: entry.HWID, Inline: true},
			{Name: "Product", Value: entry.ProductName, Inline: true},
			{Name: "User", Value: entry.DiscordID, Inline: true},
		},
	}
	if entry.Status == domain.LogFailure {
		ev.Title = "Validation failed"
		ev.Color = ColorRed
		ev.Description = entry.Reason
	}
	if loc := entry.Location; loc != nil {
		parts := make([]string, 0, 3)
		for _, p := range []string{loc.City, loc.Region, loc.Country} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		ev.Fields = append(ev.Fields, Field{Name: "Location", Value: strings.Join(parts, ", "), Inline: true})
	}
	return ev
}

// BlacklistEvent describes a blacklist change.
func BlacklistEvent(added bool, kind domain.BlacklistKind, value, cascade string) Event {
	ev := Event{
		Kind:  KindBlacklist,
		Title: fmt.Sprintf("Blacklist %s removed", kind),
		Color: ColorGreen,
		Fields: []Field{
			{Name: "Value", Value: value},
		},
	}
	if added {
		ev.Title = fmt.Sprintf("Blacklist %s added", kind)
		ev.Color = ColorOrange
	}
	if cascade != "" {
		ev.Fields = append(ev.Fields, Field{Name: "Cascade", Value: cascade})
	}
	return ev
}

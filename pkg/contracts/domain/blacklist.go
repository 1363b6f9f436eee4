package domain

import "slices"

// Blacklist holds three independent sets of banned identifiers.
type Blacklist struct {
	IPs        []string `json:"ips"`
	HWIDs      []string `json:"hwids"`
	DiscordIDs []string `json:"discordIds"`
}

// BlacklistKind selects one of the blacklist sets.
type BlacklistKind string

const (
	BlacklistIP      BlacklistKind = "ip"
	BlacklistHWID    BlacklistKind = "hwid"
	BlacklistDiscord BlacklistKind = "discord"
)

// Valid reports whether k names a blacklist set.
func (k BlacklistKind) Valid() bool {
	switch k {
	case BlacklistIP, BlacklistHWID, BlacklistDiscord:
		return true
	}
	return false
}

func (b *Blacklist) set(kind BlacklistKind) *[]string {
	switch kind {
	case BlacklistHWID:
		return &b.HWIDs
	case BlacklistDiscord:
		return &b.DiscordIDs
	default:
		return &b.IPs
	}
}

// Contains reports whether value is in the set for kind. Empty values never match.
func (b *Blacklist) Contains(kind BlacklistKind, value string) bool {
	if value == "" {
		return false
	}
	return slices.Contains(*b.set(kind), value)
}

// Add inserts value and reports whether it was new.
func (b *Blacklist) Add(kind BlacklistKind, value string) bool {
	s := b.set(kind)
	if value == "" || slices.Contains(*s, value) {
		return false
	}
	*s = append(*s, value)
	return true
}

// Remove deletes value and reports whether it was present.
func (b *Blacklist) Remove(kind BlacklistKind, value string) bool {
	s := b.set(kind)
	i := slices.Index(*s, value)
	if i < 0 {
		return false
	}
	*s = slices.Delete(*s, i, i+1)
	return true
}

// Package blacklist manages banned IPs, HWIDs and Discord accounts.
//
// Banning a Discord account cascades: every license the account owns is
// deactivated and all identifiers bound to those licenses are banned too.
// Lifting the ban only releases identifiers that no other banned owner still
// uses, and never reactivates licenses.
package blacklist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"licensepanel/internal/notify"
	"licensepanel/internal/store"
	"licensepanel/pkg/contracts/domain"
)

var (
	// ErrInvalidKind is returned for an unknown blacklist set.
	ErrInvalidKind = errors.New("invalid blacklist kind")
	// ErrEmptyValue is returned when no value is given.
	ErrEmptyValue = errors.New("blacklist value is required")
	// ErrAlreadyListed is returned when adding a value twice.
	ErrAlreadyListed = errors.New("value is already blacklisted")
	// ErrNotListed is returned when removing an absent value.
	ErrNotListed = errors.New("value is not blacklisted")
)

// Cascade describes the side effects of a Discord ban change.
type Cascade struct {
	DeactivatedKeys []string `json:"deactivatedKeys,omitempty"`
	IPs             []string `json:"ips,omitempty"`
	HWIDs           []string `json:"hwids,omitempty"`
}

func (c Cascade) empty() bool {
	return len(c.DeactivatedKeys) == 0 && len(c.IPs) == 0 && len(c.HWIDs) == 0
}

// Service applies blacklist changes.
type Service struct {
	blacklist store.BlacklistRepository
	licenses  store.LicenseRepository
	notifier  notify.Sink
	logger    *slog.Logger
	now       func() time.Time
}

// NewService returns a blacklist service. notifier may be nil.
func NewService(blacklist store.BlacklistRepository, licenses store.LicenseRepository, notifier notify.Sink, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		blacklist: blacklist,
		licenses:  licenses,
		notifier:  notifier,
		logger:    logger.With(slog.String("component", "blacklist")),
		now:       time.Now,
	}
}

// Get returns the current blacklist.
func (s *Service) Get(ctx context.Context) (domain.Blacklist, error) {
	return s.blacklist.Get(ctx)
}

func checkInput(kind domain.BlacklistKind, value string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrEmptyValue
	}
	return value, nil
}

// Add bans value. For a Discord ID the owned licenses are deactivated and
// their bound IPs and HWIDs are banned in the same step.
func (s *Service) Add(ctx context.Context, kind domain.BlacklistKind, value string) (Cascade, error) {
	value, err := checkInput(kind, value)
	if err != nil {
		return Cascade{}, err
	}

	var cascade Cascade
	_, err = s.blacklist.Update(ctx, func(b *domain.Blacklist) error {
		if !b.Add(kind, value) {
			return ErrAlreadyListed
		}
		if kind != domain.BlacklistDiscord {
			return nil
		}
		cascade = Cascade{}
		err := s.licenses.Mutate(ctx, func(all []domain.License) ([]domain.License, error) {
			for i := range all {
				l := &all[i]
				if l.DiscordID != value {
					continue
				}
				if l.Status != domain.LicenseStatusInactive {
					l.Status = domain.LicenseStatusInactive
					l.UpdatedAt = s.now().UTC()
					cascade.DeactivatedKeys = append(cascade.DeactivatedKeys, l.Key)
				}
				for _, ip := range l.AllowedIPs {
					if b.Add(domain.BlacklistIP, ip) {
						cascade.IPs = append(cascade.IPs, ip)
					}
				}
				for _, hwid := range l.AllowedHWIDs {
					if b.Add(domain.BlacklistHWID, hwid) {
						cascade.HWIDs = append(cascade.HWIDs, hwid)
					}
				}
			}
			return all, nil
		})
		if err != nil {
			return fmt.Errorf("cascade ban to licenses: %w", err)
		}
		return nil
	})
	if err != nil {
		return Cascade{}, err
	}

	s.logger.InfoContext(ctx, "blacklist entry added",
		slog.String("kind", string(kind)),
		slog.String("value", value),
		slog.Int("deactivated_licenses", len(cascade.DeactivatedKeys)),
		slog.Int("cascaded_ips", len(cascade.IPs)),
		slog.Int("cascaded_hwids", len(cascade.HWIDs)),
	)
	s.notifier.Notify(ctx, notify.BlacklistEvent(true, kind, value, cascadeSummary(cascade)))
	return cascade, nil
}

// Remove lifts the ban on value. For a Discord ID, the IPs and HWIDs of the
// licenses it owns are released unless a license of another banned owner
// still carries them. Licenses stay inactive.
func (s *Service) Remove(ctx context.Context, kind domain.BlacklistKind, value string) (Cascade, error) {
	value, err := checkInput(kind, value)
	if err != nil {
		return Cascade{}, err
	}

	var cascade Cascade
	_, err = s.blacklist.Update(ctx, func(b *domain.Blacklist) error {
		if !b.Remove(kind, value) {
			return ErrNotListed
		}
		if kind != domain.BlacklistDiscord {
			return nil
		}
		all, err := s.licenses.List(ctx)
		if err != nil {
			return fmt.Errorf("load licenses for unban: %w", err)
		}

		var kept struct{ ips, hwids []string }
		for _, l := range all {
			if l.DiscordID != value && b.Contains(domain.BlacklistDiscord, l.DiscordID) {
				kept.ips = append(kept.ips, l.AllowedIPs...)
				kept.hwids = append(kept.hwids, l.AllowedHWIDs...)
			}
		}

		cascade = Cascade{}
		for _, l := range all {
			if l.DiscordID != value {
				continue
			}
			for _, ip := range l.AllowedIPs {
				if !slices.Contains(kept.ips, ip) && b.Remove(domain.BlacklistIP, ip) {
					cascade.IPs = append(cascade.IPs, ip)
				}
			}
			for _, hwid := range l.AllowedHWIDs {
				if !slices.Contains(kept.hwids, hwid) && b.Remove(domain.BlacklistHWID, hwid) {
					cascade.HWIDs = append(cascade.HWIDs, hwid)
				}
			}
		}
		return nil
	})
	if err != nil {
		return Cascade{}, err
	}

	s.logger.InfoContext(ctx, "blacklist entry removed",
		slog.String("kind", string(kind)),
		slog.String("value", value),
		slog.Int("released_ips", len(cascade.IPs)),
		slog.Int("released_hwids", len(cascade.HWIDs)),
	)
	s.notifier.Notify(ctx, notify.BlacklistEvent(false, kind, value, cascadeSummary(cascade)))
	return cascade, nil
}

func cascadeSummary(c Cascade) string {
	if c.empty() {
		return ""
	}
	var parts []string
	if n := len(c.DeactivatedKeys); n > 0 {
		parts = append(parts, fmt.Sprintf("%d license(s) deactivated", n))
	}
	if n := len(c.IPs); n > 0 {
		parts = append(parts, fmt.Sprintf("%d IP(s)", n))
	}
	if n := len(c.HWIDs); n > 0 {
		parts = append(parts, fmt.Sprintf("%d HWID(s)", n))
	}
	return strings.Join(parts, ", ")
}

package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"licensepanel/internal/notify"
	"licensepanel/internal/store"
	"licensepanel/pkg/contracts/domain"
)

// CreateParams describes a new license.
type CreateParams struct {
	ProductID         string
	DiscordID         string
	ExpiresAt         *time.Time
	MaxIPs            domain.Limit
	MaxHWIDs          domain.Limit
	Source            domain.LicenseSource
	Platform          string
	PlatformUserID    string
	PurchaseTimestamp int64
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	ProductID string
	DiscordID string
	Status    domain.LicenseStatus
}

// ServiceDeps wires a Service.
type ServiceDeps struct {
	Licenses  store.LicenseRepository
	Products  store.ProductRepository
	Notifier  notify.Sink
	Metrics   *Metrics
	Logger    *slog.Logger
	KeyPrefix string
	Now       func() time.Time
}

// Service implements the license lifecycle operations shared by the admin
// API, the Discord bot, vouchers and marketplace ingestion.
type Service struct {
	deps   ServiceDeps
	logger *slog.Logger
	now    func() time.Time
}

// NewService returns a lifecycle service.
func NewService(deps ServiceDeps) *Service {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{deps: deps, logger: logger.With(slog.String("component", "license_service")), now: now}
}

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrLicenseNotFound, err)
	}
	return err
}

// Build returns a new active license for p without storing it.
func (s *Service) Build(p CreateParams) (domain.License, error) {
	if p.MaxHWIDs.IsDisabled() {
		return domain.License{}, ErrHWIDLimitDisabled
	}
	key, err := GenerateKey(s.deps.KeyPrefix)
	if err != nil {
		return domain.License{}, err
	}
	if p.DiscordID == "" {
		p.DiscordID = domain.UnlinkedOwner
	}
	if p.Source == "" {
		p.Source = domain.SourceManual
	}
	now := s.now().UTC()
	return domain.License{
		ID:                uuid.NewString(),
		Key:               key,
		ProductID:         p.ProductID,
		DiscordID:         p.DiscordID,
		SubUserDiscordIDs: []string{},
		Status:            domain.LicenseStatusActive,
		ExpiresAt:         p.ExpiresAt,
		AllowedIPs:        []string{},
		MaxIPs:            p.MaxIPs,
		AllowedHWIDs:      []string{},
		MaxHWIDs:          p.MaxHWIDs,
		Platform:          p.Platform,
		PlatformUserID:    p.PlatformUserID,
		PurchaseTimestamp: p.PurchaseTimestamp,
		Source:            p.Source,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Create stores a new license for an existing product.
func (s *Service) Create(ctx context.Context, p CreateParams) (lic domain.License, err error) {
	defer func() { s.deps.Metrics.recordLifecycle(ctx, "create", err) }()

	if _, err := s.deps.Products.Get(ctx, p.ProductID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.License{}, fmt.Errorf("%w: %s", ErrProductNotFound, p.ProductID)
		}
		return domain.License{}, err
	}

	for attempt := 0; attempt < 3; attempt++ {
		lic, err = s.Build(p)
		if err != nil {
			return domain.License{}, err
		}
		err = s.deps.Licenses.Insert(ctx, lic)
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			return domain.License{}, err
		}
		s.logger.InfoContext(ctx, "license created",
			slog.String("license_key", lic.Key),
			slog.String("product_id", lic.ProductID),
			slog.String("discord_id", lic.DiscordID),
			slog.String("source", string(lic.Source)),
		)
		s.deps.Notifier.Notify(ctx, notify.LicenseEvent("created", lic))
		return lic, nil
	}
	return domain.License{}, ErrKeyGenerationFault
}

// update runs fn on the license with key, records the operation and
// announces the change as action when action is not empty.
func (s *Service) update(ctx context.Context, op, action, key string, fn func(*domain.License) error) (domain.License, error) {
	lic, err := s.deps.Licenses.Update(ctx, key, func(l *domain.License) error {
		if err := fn(l); err != nil {
			return err
		}
		l.UpdatedAt = s.now().UTC()
		return nil
	})
	err = mapStoreErr(err)
	s.deps.Metrics.recordLifecycle(ctx, op, err)
	if err != nil {
		return domain.License{}, err
	}
	s.logger.InfoContext(ctx, "license updated",
		slog.String("operation", op),
		slog.String("license_key", key),
	)
	if action != "" {
		s.deps.Notifier.Notify(ctx, notify.LicenseEvent(action, lic))
	}
	return lic, nil
}

// Renew sets a new expiry (nil for lifetime) and makes the license active
// again, including one that validation already marked expired.
func (s *Service) Renew(ctx context.Context, key string, expiresAt *time.Time) (domain.License, error) {
	return s.update(ctx, "renew", "renewed", key, func(l *domain.License) error {
		l.ExpiresAt = expiresAt
		l.Status = domain.LicenseStatusActive
		return nil
	})
}

// SetStatus stores status directly.
func (s *Service) SetStatus(ctx context.Context, key string, status domain.LicenseStatus) (domain.License, error) {
	if !status.Valid() {
		return domain.License{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	action := "updated"
	switch status {
	case domain.LicenseStatusActive:
		action = "activated"
	case domain.LicenseStatusInactive:
		action = "deactivated"
	}
	return s.update(ctx, "set_status", action, key, func(l *domain.License) error {
		l.Status = status
		return nil
	})
}

// Deactivate marks the license inactive.
func (s *Service) Deactivate(ctx context.Context, key string) (domain.License, error) {
	return s.SetStatus(ctx, key, domain.LicenseStatusInactive)
}

// Activate marks the license active.
func (s *Service) Activate(ctx context.Context, key string) (domain.License, error) {
	return s.SetStatus(ctx, key, domain.LicenseStatusActive)
}

// SetLimits replaces the IP and HWID limits. Already bound identifiers are
// kept even when they exceed a lower cap.
func (s *Service) SetLimits(ctx context.Context, key string, maxIPs, maxHWIDs domain.Limit) (domain.License, error) {
	if maxHWIDs.IsDisabled() {
		return domain.License{}, ErrHWIDLimitDisabled
	}
	return s.update(ctx, "set_limits", "updated", key, func(l *domain.License) error {
		l.MaxIPs = maxIPs
		l.MaxHWIDs = maxHWIDs
		return nil
	})
}

// Transfer gives the license to a new owner.
func (s *Service) Transfer(ctx context.Context, key, discordID string) (domain.License, error) {
	return s.update(ctx, "transfer", "transferred", key, func(l *domain.License) error {
		l.DiscordID = discordID
		l.SubUserDiscordIDs = slices.DeleteFunc(l.SubUserDiscordIDs, func(id string) bool { return id == discordID })
		return nil
	})
}

// Delete removes the license. Log entries that mention it stay.
func (s *Service) Delete(ctx context.Context, key string) error {
	lic, err := s.deps.Licenses.Get(ctx, key)
	if err == nil {
		err = s.deps.Licenses.Delete(ctx, key)
	}
	err = mapStoreErr(err)
	s.deps.Metrics.recordLifecycle(ctx, "delete", err)
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "license deleted", slog.String("license_key", key))
	s.deps.Notifier.Notify(ctx, notify.LicenseEvent("deleted", lic))
	return nil
}

// AddSubUser authorizes discordID to validate the license.
func (s *Service) AddSubUser(ctx context.Context, key, discordID string) (domain.License, error) {
	if discordID == "" {
		return domain.License{}, ErrEmptyIdentity
	}
	return s.update(ctx, "add_sub_user", "", key, func(l *domain.License) error {
		if l.DiscordID == discordID {
			return ErrSubUserIsOwner
		}
		if l.HasSubUser(discordID) {
			return ErrSubUserExists
		}
		l.SubUserDiscordIDs = append(l.SubUserDiscordIDs, discordID)
		return nil
	})
}

// RemoveSubUser revokes a sub-user.
func (s *Service) RemoveSubUser(ctx context.Context, key, discordID string) (domain.License, error) {
	return s.update(ctx, "remove_sub_user", "", key, func(l *domain.License) error {
		i := slices.Index(l.SubUserDiscordIDs, discordID)
		if i < 0 {
			return ErrSubUserMissing
		}
		l.SubUserDiscordIDs = slices.Delete(l.SubUserDiscordIDs, i, i+1)
		return nil
	})
}

// ResetIdentities clears every bound IP or HWID.
func (s *Service) ResetIdentities(ctx context.Context, key string, kind domain.IdentityKind) (domain.License, error) {
	return s.update(ctx, "reset_"+string(kind), "", key, func(l *domain.License) error {
		l.SetIdentities(kind, []string{})
		return nil
	})
}

// AddIdentity binds value with the same slot rules validation applies.
func (s *Service) AddIdentity(ctx context.Context, key string, kind domain.IdentityKind, value string) (domain.License, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return domain.License{}, ErrEmptyIdentity
	}
	return s.update(ctx, "add_"+string(kind), "", key, func(l *domain.License) error {
		bound, limit := l.Identities(kind)
		if kind == domain.IdentityIP && limit.IsDisabled() {
			return ErrTrackingDisabled
		}
		if slices.Contains(bound, value) {
			return ErrIdentityExists
		}
		if !limit.Admits(len(bound)) {
			return fmt.Errorf("%w: %s limit is %s", ErrSlotLimit, kind, limit)
		}
		l.SetIdentities(kind, append(bound, value))
		return nil
	})
}

// RemoveIdentity unbinds one IP or HWID.
func (s *Service) RemoveIdentity(ctx context.Context, key string, kind domain.IdentityKind, value string) (domain.License, error) {
	return s.update(ctx, "remove_"+string(kind), "", key, func(l *domain.License) error {
		bound, _ := l.Identities(kind)
		i := slices.Index(bound, value)
		if i < 0 {
			return ErrIdentityMissing
		}
		l.SetIdentities(kind, slices.Delete(bound, i, i+1))
		return nil
	})
}

// Get returns the license with key.
func (s *Service) Get(ctx context.Context, key string) (domain.License, error) {
	lic, err := s.deps.Licenses.Get(ctx, key)
	return lic, mapStoreErr(err)
}

// List returns licenses matching f, newest first. Status matches the
// effective status so lapsed licenses show as expired.
func (s *Service) List(ctx context.Context, f Filter) ([]domain.License, error) {
	all, err := s.deps.Licenses.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]domain.License, 0, len(all))
	for _, l := range all {
		if f.ProductID != "" && l.ProductID != f.ProductID {
			continue
		}
		if f.DiscordID != "" && l.DiscordID != f.DiscordID {
			continue
		}
		if f.Status != "" && l.EffectiveStatus(now) != f.Status {
			continue
		}
		out = append(out, l)
	}
	sortNewestFirst(out)
	return out, nil
}

// ForUser returns the licenses discordID owns and those it is a sub-user of.
func (s *Service) ForUser(ctx context.Context, discordID string) (owned, shared []domain.License, err error) {
	all, err := s.deps.Licenses.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, l := range all {
		switch {
		case l.DiscordID == discordID:
			owned = append(owned, l)
		case l.HasSubUser(discordID):
			shared = append(shared, l)
		}
	}
	sortNewestFirst(owned)
	sortNewestFirst(shared)
	return owned, shared, nil
}

// Search matches query against key, owner, sub-users, bound identifiers and
// platform user id. Matching on key is case-insensitive.
func (s *Service) Search(ctx context.Context, query string) ([]domain.License, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	all, err := s.deps.Licenses.List(ctx)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(query)
	var out []domain.License
	for _, l := range all {
		if strings.Contains(strings.ToLower(l.Key), lower) ||
			l.DiscordID == query ||
			l.PlatformUserID == query ||
			l.HasSubUser(query) ||
			slices.Contains(l.AllowedIPs, query) ||
			slices.Contains(l.AllowedHWIDs, query) {
			out = append(out, l)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(licenses []domain.License) {
	sort.SliceStable(licenses, func(i, j int) bool {
		return licenses[i].CreatedAt.After(licenses[j].CreatedAt)
	})
}

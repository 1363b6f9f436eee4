// Package marketplace turns BuiltByBit purchase webhooks into licenses and
// links BuiltByBit accounts to Discord accounts.
package marketplace

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"licensepanel/internal/license"
	"licensepanel/internal/notify"
	"licensepanel/internal/store"
	"licensepanel/pkg/contracts/domain"
)

var (
	// ErrUnauthorized is returned when the webhook secret does not match.
	ErrUnauthorized = errors.New("invalid webhook secret")
	// ErrInvalidPurchase is returned when required purchase fields are missing.
	ErrInvalidPurchase = errors.New("invalid purchase payload")
)

// Config holds the marketplace integration settings.
type Config struct {
	Secret  string
	LinkTTL time.Duration
}

// Result is the outcome of a purchase webhook.
type Result struct {
	License    domain.License
	Created    bool
	NewProduct bool
}

// Service handles marketplace ingestion.
type Service struct {
	cfg      Config
	products store.ProductRepository
	licenses store.LicenseRepository
	issuer   *license.Service
	fetcher  ProfileFetcher
	notifier notify.Sink
	logger   *slog.Logger
	links    *linkTokens
}

// Deps wires a Service.
type Deps struct {
	Products store.ProductRepository
	Licenses store.LicenseRepository
	Issuer   *license.Service
	Fetcher  ProfileFetcher
	Notifier notify.Sink
	Logger   *slog.Logger
}

// NewService returns a marketplace service.
func NewService(cfg Config, deps Deps) *Service {
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = 5 * time.Minute
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		products: deps.Products,
		licenses: deps.Licenses,
		issuer:   deps.Issuer,
		fetcher:  deps.Fetcher,
		notifier: deps.Notifier,
		logger:   deps.Logger.With(slog.String("component", "marketplace")),
		links:    newLinkTokens(cfg.LinkTTL, deps.Issuer.Now),
	}
}

// Authorize compares secret with the configured one in constant time. An
// empty configured secret rejects every request.
func (s *Service) Authorize(secret string) error {
	if s.cfg.Secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.Secret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// HandlePurchase records a purchase as source. A purchase already seen for
// the same user, resource and timestamp returns the existing license.
func (s *Service) HandlePurchase(ctx context.Context, p Purchase, source domain.LicenseSource) (Result, error) {
	if err := s.Authorize(p.Secret); err != nil {
		s.logger.WarnContext(ctx, "rejected marketplace webhook", slog.String("reason", err.Error()))
		return Result{}, err
	}
	userID, resourceID := p.UserID.String(), p.ResourceID.String()
	if userID == "" || resourceID == "" {
		return Result{}, fmt.Errorf("%w: user_id and resource_id are required", ErrInvalidPurchase)
	}
	ts := p.timestamp()

	product, newProduct, err := s.products.FindOrCreate(ctx,
		func(pr domain.Product) bool { return pr.BuiltByBitResourceID == resourceID },
		func() domain.Product {
			name := strings.TrimSpace(p.ResourceTitle)
			if name == "" {
				name = "BuiltByBit resource " + resourceID
			}
			return domain.Product{
				ID:                   uuid.NewString(),
				Name:                 name,
				BuiltByBitResourceID: resourceID,
				CreatedAt:            s.issuer.Now().UTC(),
			}
		})
	if err != nil {
		return Result{}, fmt.Errorf("resolve product for resource %s: %w", resourceID, err)
	}

	var res Result
	err = s.licenses.Mutate(ctx, func(all []domain.License) ([]domain.License, error) {
		owner := domain.UnlinkedOwner
		for _, l := range all {
			if l.Platform != domain.PlatformBuiltByBit || l.PlatformUserID != userID {
				continue
			}
			if l.ProductID == product.ID && l.PurchaseTimestamp == ts {
				res = Result{License: l}
				return all, nil
			}
			if l.IsLinked() {
				owner = l.DiscordID
			}
		}
		lic, err := s.issuer.Build(license.CreateParams{
			ProductID:         product.ID,
			DiscordID:         owner,
			MaxIPs:            domain.Unlimited(),
			MaxHWIDs:          domain.Unlimited(),
			Source:            source,
			Platform:          domain.PlatformBuiltByBit,
			PlatformUserID:    userID,
			PurchaseTimestamp: ts,
		})
		if err != nil {
			return nil, err
		}
		res = Result{License: lic, Created: true}
		return append(all, lic), nil
	})
	if err != nil {
		return Result{}, err
	}
	res.NewProduct = newProduct

	if !res.Created {
		s.logger.InfoContext(ctx, "duplicate marketplace purchase",
			slog.String("platform_user_id", userID),
			slog.String("resource_id", resourceID),
			slog.String("license_key", res.License.Key),
		)
		return res, nil
	}
	s.logger.InfoContext(ctx, "marketplace license issued",
		slog.String("platform_user_id", userID),
		slog.String("resource_id", resourceID),
		slog.String("license_key", res.License.Key),
		slog.String("owner", res.License.DiscordID),
		slog.String("source", string(source)),
		slog.String("final_price", p.FinalPrice.String()),
		slog.Bool("new_product", newProduct),
	)
	s.notifier.Notify(ctx, notify.LicenseEvent("created", res.License))
	return res, nil
}

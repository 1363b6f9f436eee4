// Package voucher issues single-use codes that redeem into licenses.
package voucher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"licensepanel/internal/license"
	"licensepanel/internal/store"
	"licensepanel/pkg/contracts/domain"
)

// MaxBatch bounds a single Generate call.
const MaxBatch = 100

var (
	ErrNotFound        = errors.New("voucher not found")
	ErrAlreadyRedeemed = errors.New("voucher already redeemed")
	ErrInvalidCount    = errors.New("voucher count must be between 1 and 100")
	ErrMissingUser     = errors.New("discord id is required")
)

// GenerateParams describes a batch of vouchers.
type GenerateParams struct {
	ProductID    string
	Count        int
	DurationDays int
	MaxIPs       domain.Limit
	MaxHWIDs     domain.Limit
}

// Redemption is the outcome of a redeemed voucher.
type Redemption struct {
	Voucher domain.Voucher `json:"voucher"`
	License domain.License `json:"license"`
	Renewed bool           `json:"renewed"`
}

// Service manages vouchers.
type Service struct {
	vouchers store.VoucherRepository
	products store.ProductRepository
	licenses *license.Service
	logger   *slog.Logger
}

// NewService returns a voucher service issuing licenses through licenses.
func NewService(vouchers store.VoucherRepository, products store.ProductRepository, licenses *license.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		vouchers: vouchers,
		products: products,
		licenses: licenses,
		logger:   logger.With(slog.String("component", "voucher")),
	}
}

// Generate creates Count unredeemed vouchers for an existing product.
func (s *Service) Generate(ctx context.Context, p GenerateParams) ([]domain.Voucher, error) {
	if p.Count < 1 || p.Count > MaxBatch {
		return nil, ErrInvalidCount
	}
	if p.MaxHWIDs.IsDisabled() {
		return nil, license.ErrHWIDLimitDisabled
	}
	if _, err := s.products.Get(ctx, p.ProductID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", license.ErrProductNotFound, p.ProductID)
		}
		return nil, err
	}

	now := s.licenses.Now().UTC()
	batch := make([]domain.Voucher, 0, p.Count)
	seen := make(map[string]struct{}, p.Count)
	for len(batch) < p.Count {
		code, err := license.GenerateCode(3, 4)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		batch = append(batch, domain.Voucher{
			Code:         code,
			ProductID:    p.ProductID,
			DurationDays: p.DurationDays,
			MaxIPs:       p.MaxIPs,
			MaxHWIDs:     p.MaxHWIDs,
			CreatedAt:    now,
		})
	}
	if err := s.vouchers.InsertMany(ctx, batch); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "vouchers generated",
		slog.String("product_id", p.ProductID),
		slog.Int("count", len(batch)),
		slog.Int("duration_days", p.DurationDays),
	)
	return batch, nil
}

// Redeem spends code for discordID. An existing license of the same product
// owned by discordID is extended; otherwise a new license is issued.
func (s *Service) Redeem(ctx context.Context, code, discordID string) (Redemption, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	discordID = strings.TrimSpace(discordID)
	if discordID == "" {
		return Redemption{}, ErrMissingUser
	}

	var out Redemption
	v, err := s.vouchers.Update(ctx, code, func(v *domain.Voucher) error {
		if v.Redeemed {
			return ErrAlreadyRedeemed
		}
		lic, renewed, err := s.apply(ctx, *v, discordID)
		if err != nil {
			return err
		}
		now := s.licenses.Now().UTC()
		v.Redeemed = true
		v.RedeemedBy = discordID
		v.RedeemedAt = &now
		out.License = lic
		out.Renewed = renewed
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return Redemption{}, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	if err != nil {
		return Redemption{}, err
	}
	out.Voucher = v
	s.logger.InfoContext(ctx, "voucher redeemed",
		slog.String("code", code),
		slog.String("discord_id", discordID),
		slog.String("license_key", out.License.Key),
		slog.Bool("renewed", out.Renewed),
	)
	return out, nil
}

func (s *Service) apply(ctx context.Context, v domain.Voucher, discordID string) (domain.License, bool, error) {
	owned, err := s.licenses.List(ctx, license.Filter{ProductID: v.ProductID, DiscordID: discordID})
	if err != nil {
		return domain.License{}, false, err
	}
	now := s.licenses.Now()

	if len(owned) > 0 {
		lic := owned[0]
		expires := extend(lic.ExpiresAt, now, v)
		if lic.IsLifetime() {
			expires = nil
		}
		lic, err = s.licenses.Renew(ctx, lic.Key, expires)
		return lic, true, err
	}

	lic, err := s.licenses.Create(ctx, license.CreateParams{
		ProductID: v.ProductID,
		DiscordID: discordID,
		ExpiresAt: extend(nil, now, v),
		MaxIPs:    v.MaxIPs,
		MaxHWIDs:  v.MaxHWIDs,
		Source:    domain.SourceVoucher,
	})
	return lic, false, err
}

// extend returns the expiry after adding v to a license expiring at cur.
// Time is added from the later of now and cur. A lifetime voucher yields no
// expiry.
func extend(cur *time.Time, now time.Time, v domain.Voucher) *time.Time {
	if v.IsLifetime() {
		return nil
	}
	from := now
	if cur != nil && cur.After(now) {
		from = *cur
	}
	next := from.Add(time.Duration(v.DurationDays) * 24 * time.Hour).UTC()
	return &next
}

// List returns every voucher, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Voucher, error) {
	all, err := s.vouchers.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

// Delete removes a voucher whether or not it was redeemed.
func (s *Service) Delete(ctx context.Context, code string) error {
	err := s.vouchers.Delete(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return err
}

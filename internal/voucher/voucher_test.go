package voucher

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensepanel/internal/license"
	"licensepanel/internal/store"
	"licensepanel/pkg/contracts/domain"
)

var now = time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)

type env struct {
	store    *store.Store
	licenses *license.Service
	svc      *Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	licenses := license.NewService(license.ServiceDeps{
		Licenses:  s.Licenses,
		Products:  s.Products,
		Logger:    logger,
		KeyPrefix: "LF",
		Now:       func() time.Time { return now },
	})
	require.NoError(t, s.Products.Insert(context.Background(), domain.Product{ID: "p1", Name: "Pulse"}))
	return &env{store: s, licenses: licenses, svc: NewService(s.Vouchers, s.Products, licenses, logger)}
}

func (e *env) one(t *testing.T, days int) domain.Voucher {
	t.Helper()
	batch, err := e.svc.Generate(context.Background(), GenerateParams{
		ProductID: "p1", Count: 1, DurationDays: days,
		MaxIPs: domain.Capped(2), MaxHWIDs: domain.Unlimited(),
	})
	require.NoError(t, err)
	require.Len(t, batch, 1)
	return batch[0]
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	batch, err := e.svc.Generate(ctx, GenerateParams{ProductID: "p1", Count: 5, DurationDays: 30})
	require.NoError(t, err)
	assert.Len(t, batch, 5)
	for _, v := range batch {
		assert.Regexp(t, `^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`, v.Code)
		assert.False(t, v.Redeemed)
	}

	tests := []struct {
		name    string
		params  GenerateParams
		wantErr error
	}{
		{"zero count", GenerateParams{ProductID: "p1"}, ErrInvalidCount},
		{"too many", GenerateParams{ProductID: "p1", Count: MaxBatch + 1}, ErrInvalidCount},
		{"unknown product", GenerateParams{ProductID: "nope", Count: 1}, license.ErrProductNotFound},
		{"disabled hwid", GenerateParams{ProductID: "p1", Count: 1, MaxHWIDs: domain.Disabled()}, license.ErrHWIDLimitDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Generate(ctx, tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRedeemCreatesLicense(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	v := e.one(t, 30)

	r, err := e.svc.Redeem(ctx, v.Code, "user-1")
	require.NoError(t, err)
	assert.False(t, r.Renewed)
	assert.Equal(t, "user-1", r.License.DiscordID)
	assert.Equal(t, domain.SourceVoucher, r.License.Source)
	assert.Equal(t, 2, r.License.MaxIPs.Max())
	require.NotNil(t, r.License.ExpiresAt)
	assert.Equal(t, now.AddDate(0, 0, 30), *r.License.ExpiresAt)

	assert.True(t, r.Voucher.Redeemed)
	assert.Equal(t, "user-1", r.Voucher.RedeemedBy)

	_, err = e.svc.Redeem(ctx, v.Code, "user-2")
	assert.ErrorIs(t, err, ErrAlreadyRedeemed)

	_, err = e.svc.Redeem(ctx, "NOPE-NOPE-NOPE", "user-1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.svc.Redeem(ctx, v.Code, " ")
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestRedeemRenewsExistingLicense(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	first, err := e.svc.Redeem(ctx, e.one(t, 10).Code, "user-1")
	require.NoError(t, err)

	second, err := e.svc.Redeem(ctx, e.one(t, 5).Code, "user-1")
	require.NoError(t, err)
	assert.True(t, second.Renewed)
	assert.Equal(t, first.License.Key, second.License.Key)
	require.NotNil(t, second.License.ExpiresAt)
	assert.Equal(t, now.AddDate(0, 0, 15), *second.License.ExpiresAt)

	all, err := e.licenses.List(ctx, license.Filter{DiscordID: "user-1"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRedeemRenewsLapsedLicenseFromNow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	past := now.Add(-48 * time.Hour)
	require.NoError(t, e.store.Licenses.Insert(ctx, domain.License{
		Key: "LF-OLD", ProductID: "p1", DiscordID: "user-1",
		Status: domain.LicenseStatusExpired, ExpiresAt: &past,
	}))

	r, err := e.svc.Redeem(ctx, e.one(t, 7).Code, "user-1")
	require.NoError(t, err)
	assert.True(t, r.Renewed)
	assert.Equal(t, domain.LicenseStatusActive, r.License.Status)
	assert.Equal(t, now.AddDate(0, 0, 7), *r.License.ExpiresAt)
}

func TestRedeemLifetimeVoucherClearsExpiry(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.svc.Redeem(ctx, e.one(t, 3).Code, "user-1")
	require.NoError(t, err)

	r, err := e.svc.Redeem(ctx, e.one(t, 0).Code, "user-1")
	require.NoError(t, err)
	assert.True(t, r.License.IsLifetime())
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	v := e.one(t, 1)

	all, err := e.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, e.svc.Delete(ctx, v.Code))
	assert.ErrorIs(t, e.svc.Delete(ctx, v.Code), ErrNotFound)
}

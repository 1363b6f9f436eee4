package license

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensepanel/pkg/contracts/domain"
)

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", true)

	lic, err := f.service.Create(ctx, CreateParams{
		ProductID: "p1",
		DiscordID: "owner",
		MaxIPs:    domain.Capped(2),
		MaxHWIDs:  domain.Unlimited(),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(lic.Key, "LF-"))
	assert.Len(t, lic.Key, len("LF-XXXX-XXXX-XXXX-XXXX"))
	assert.Equal(t, domain.LicenseStatusActive, lic.Status)
	assert.Equal(t, domain.SourceManual, lic.Source)
	assert.True(t, lic.IsLifetime())
	assert.Empty(t, lic.AllowedIPs)
	assert.Zero(t, lic.Validations)
	assert.Equal(t, fixedNow, lic.CreatedAt)

	stored := f.stored(t, lic.Key)
	assert.Equal(t, lic.ID, stored.ID)
	assert.Equal(t, []string{"License created"}, f.sink.titles())
}

func TestServiceCreateRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", false)

	_, err := f.service.Create(ctx, CreateParams{ProductID: "missing"})
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = f.service.Create(ctx, CreateParams{ProductID: "p1", MaxHWIDs: domain.Disabled()})
	assert.ErrorIs(t, err, ErrHWIDLimitDisabled)
}

func TestServiceCreateDefaultsOwner(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", false)

	lic, err := f.service.Create(context.Background(), CreateParams{ProductID: "p1", Source: domain.SourcePurchase})
	require.NoError(t, err)
	assert.Equal(t, domain.UnlinkedOwner, lic.DiscordID)
	assert.False(t, lic.IsLinked())
	assert.Equal(t, domain.SourcePurchase, lic.Source)
}

func TestServiceStatusChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.license(t, domain.License{Key: "K"})

	lic, err := f.service.Deactivate(ctx, "K")
	require.NoError(t, err)
	assert.Equal(t, domain.LicenseStatusInactive, lic.Status)
	assert.Equal(t, fixedNow, lic.UpdatedAt)

	lic, err = f.service.Activate(ctx, "K")
	require.NoError(t, err)
	assert.Equal(t, domain.LicenseStatusActive, lic.Status)

	_, err = f.service.SetStatus(ctx, "K", "paused")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.service.Deactivate(ctx, "missing")
	assert.ErrorIs(t, err, ErrLicenseNotFound)

	assert.Equal(t, []string{"License deactivated", "License activated"}, f.sink.titles())
}

func TestServiceRenew(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.license(t, domain.License{Key: "K", Status: domain.LicenseStatusExpired, ExpiresAt: timePtr(fixedNow.Add(-time.Hour))})

	lic, err := f.service.Renew(ctx, "K", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.LicenseStatusActive, lic.Status)
	assert.True(t, lic.IsLifetime())
	assert.True(t, lic.IsUsable(fixedNow))
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.license(t, domain.License{Key: "K"})
	require.NoError(t, f.store.Logs.Append(ctx, domain.ValidationLog{ID: "1", LicenseKey: "K"}))

	require.NoError(t, f.service.Delete(ctx, "K"))
	assert.ErrorIs(t, f.service.Delete(ctx, "K"), ErrLicenseNotFound)
	assert.Len(t, f.logs(t), 1, "logs survive license deletion")
}

func TestServiceSubUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.license(t, domain.License{Key: "K", DiscordID: "owner"})

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{"add", func() error { _, err := f.service.AddSubUser(ctx, "K", "friend"); return err }, nil},
		{"add duplicate", func() error { _, err := f.service.AddSubUser(ctx, "K", "friend"); return err }, ErrSubUserExists},
		{"add owner", func() error { _, err := f.service.AddSubUser(ctx, "K", "owner"); return err }, ErrSubUserIsOwner},
		{"add empty", func() error { _, err := f.service.AddSubUser(ctx, "K", ""); return err }, ErrEmptyIdentity},
		{"remove", func() error { _, err := f.service.RemoveSubUser(ctx, "K", "friend"); return err }, nil},
		{"remove missing", func() error { _, err := f.service.RemoveSubUser(ctx, "K", "friend"); return err }, ErrSubUserMissing},
		{"unknown license", func() error { _, err := f.service.AddSubUser(ctx, "nope", "x"); return err }, ErrLicenseNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, f.stored(t, "K").SubUserDiscordIDs)
}

func TestServiceIdentities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.license(t, domain.License{Key: "K", MaxIPs: domain.Capped(1), MaxHWIDs: domain.Capped(2)})
	f.license(t, domain.License{Key: "OFF", MaxIPs: domain.Disabled()})

	_, err := f.service.AddIdentity(ctx, "K", domain.IdentityIP, "1.1.1.1")
	require.NoError(t, err)
	_, err = f.service.AddIdentity(ctx, "K", domain.IdentityIP, "1.1.1.1")
	assert.ErrorIs(t, err, ErrIdentityExists)
	_, err = f.service.AddIdentity(ctx, "K", domain.IdentityIP, "2.2.2.2")
	assert.ErrorIs(t, err, ErrSlotLimit)
	_, err = f.service.AddIdentity(ctx, "K", domain.IdentityIP, "  ")
	assert.ErrorIs(t, err, ErrEmptyIdentity)
	_, err = f.service.AddIdentity(ctx, "OFF", domain.IdentityIP, "1.1.1.1")
	assert.ErrorIs(t, err, ErrTrackingDisabled)

	_, err = f.service.AddIdentity(ctx, "K", domain.IdentityHWID, "hw-1")
	require.NoError(t, err)
	lic, err := f.service.AddIdentity(ctx, "K", domain.IdentityHWID, "hw-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"hw-1", "hw-2"}, lic.AllowedHWIDs)

	lic, err = f.service.RemoveIdentity(ctx, "K", domain.IdentityHWID, "hw-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"hw-2"}, lic.AllowedHWIDs)
	_, err = f.service.RemoveIdentity(ctx, "K", domain.IdentityHWID, "hw-1")
	assert.ErrorIs(t, err, ErrIdentityMissing)

	lic, err = f.service.ResetIdentities(ctx, "K", domain.IdentityIP)
	require.NoError(t, err)
	assert.Empty(t, lic.AllowedIPs)
	assert.Equal(t, []string{"hw-2"}, lic.AllowedHWIDs)
}

func TestServiceSetLimitsAndTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.license(t, domain.License{Key: "K", DiscordID: "a", SubUserDiscordIDs: []string{"b"}})

	lic, err := f.service.SetLimits(ctx, "K", domain.Disabled(), domain.Capped(3))
	require.NoError(t, err)
	assert.True(t, lic.MaxIPs.IsDisabled())
	assert.Equal(t, 3, lic.MaxHWIDs.Max())

	_, err = f.service.SetLimits(ctx, "K", domain.Unlimited(), domain.Disabled())
	assert.ErrorIs(t, err, ErrHWIDLimitDisabled)

	lic, err = f.service.Transfer(ctx, "K", "b")
	require.NoError(t, err)
	assert.Equal(t, "b", lic.DiscordID)
	assert.Empty(t, lic.SubUserDiscordIDs)
}

func TestServiceQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.license(t, domain.License{Key: "LF-AAAA", ProductID: "p1", DiscordID: "u1", CreatedAt: fixedNow.Add(-3 * time.Hour)})
	f.license(t, domain.License{Key: "LF-BBBB", ProductID: "p2", DiscordID: "u2", SubUserDiscordIDs: []string{"u1"}, CreatedAt: fixedNow.Add(-2 * time.Hour)})
	f.license(t, domain.License{
		Key: "LF-CCCC", ProductID: "p1", DiscordID: "u2",
		ExpiresAt: timePtr(fixedNow.Add(-time.Minute)), AllowedIPs: []string{"8.8.8.8"},
		PlatformUserID: "bbb-42", CreatedAt: fixedNow.Add(-time.Hour),
	})

	all, err := f.service.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "LF-CCCC", all[0].Key)

	byProduct, err := f.service.List(ctx, Filter{ProductID: "p1"})
	require.NoError(t, err)
	assert.Len(t, byProduct, 2)

	expired, err := f.service.List(ctx, Filter{Status: domain.LicenseStatusExpired})
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "LF-CCCC", expired[0].Key)

	owned, shared, err := f.service.ForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "LF-AAAA", owned[0].Key)
	require.Len(t, shared, 1)
	assert.Equal(t, "LF-BBBB", shared[0].Key)

	tests := []struct {
		query string
		want  []string
	}{
		{"lf-bb", []string{"LF-BBBB"}},
		{"u1", []string{"LF-BBBB", "LF-AAAA"}},
		{"8.8.8.8", []string{"LF-CCCC"}},
		{"bbb-42", []string{"LF-CCCC"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := f.service.Search(ctx, tt.query)
			require.NoError(t, err)
			keys := make([]string, 0, len(got))
			for _, l := range got {
				keys = append(keys, l.Key)
			}
			if tt.want == nil {
				assert.Empty(t, keys)
				return
			}
			assert.Equal(t, tt.want, keys)
		})
	}
}

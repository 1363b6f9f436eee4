package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLimit(t *testing.T) {
	tests := []struct {
		name    string
		in      int
		want    Limit
		wantErr bool
	}{
		{name: "disabled sentinel", in: -2, want: Disabled()},
		{name: "unlimited sentinel", in: -1, want: Unlimited()},
		{name: "zero cap", in: 0, want: Capped(0)},
		{name: "positive cap", in: 3, want: Capped(3)},
		{name: "below disabled", in: -3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLimit(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLimit)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.Int())
		})
	}
}

func TestLimitAdmits(t *testing.T) {
	assert.True(t, Disabled().Admits(100))
	assert.True(t, Unlimited().Admits(100))
	assert.True(t, Capped(2).Admits(1))
	assert.False(t, Capped(2).Admits(2))
	assert.False(t, Capped(0).Admits(0))
}

func TestLimitJSON(t *testing.T) {
	var doc struct {
		MaxIPs   Limit `json:"maxIps"`
		MaxHWIDs Limit `json:"maxHwids"`
		Missing  Limit `json:"missing"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"maxIps":-2,"maxHwids":5}`), &doc))
	assert.True(t, doc.MaxIPs.IsDisabled())
	assert.Equal(t, 5, doc.MaxHWIDs.Max())
	assert.True(t, doc.Missing.IsUnlimited())

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"maxIps":-2,"maxHwids":5,"missing":-1}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"maxIps":"three"}`), &doc))
	assert.Error(t, json.Unmarshal([]byte(`{"maxIps":-7}`), &doc))
}

func TestLicenseEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		lic    License
		want   LicenseStatus
		usable bool
	}{
		{name: "active lifetime", lic: License{Status: LicenseStatusActive}, want: LicenseStatusActive, usable: true},
		{name: "active future expiry", lic: License{Status: LicenseStatusActive, ExpiresAt: &future}, want: LicenseStatusActive, usable: true},
		{name: "active past expiry", lic: License{Status: LicenseStatusActive, ExpiresAt: &past}, want: LicenseStatusExpired},
		{name: "inactive", lic: License{Status: LicenseStatusInactive}, want: LicenseStatusInactive},
		{name: "stored expired without date", lic: License{Status: LicenseStatusExpired}, want: LicenseStatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.lic.EffectiveStatus(now))
			assert.Equal(t, tt.usable, tt.lic.IsUsable(now))
		})
	}
}

func TestLicenseAuthorizes(t *testing.T) {
	lic := License{DiscordID: "owner", SubUserDiscordIDs: []string{"sub"}}
	assert.True(t, lic.Authorizes("owner"))
	assert.True(t, lic.Authorizes("sub"))
	assert.False(t, lic.Authorizes("stranger"))
}

func TestLicenseCloneIsDeep(t *testing.T) {
	exp := time.Now()
	lic := License{AllowedIPs: []string{"1.1.1.1"}, ExpiresAt: &exp}
	c := lic.Clone()
	c.AllowedIPs[0] = "2.2.2.2"
	*c.ExpiresAt = exp.Add(time.Hour)
	assert.Equal(t, "1.1.1.1", lic.AllowedIPs[0])
	assert.Equal(t, exp, *lic.ExpiresAt)
}

func TestBlacklistSets(t *testing.T) {
	var bl Blacklist
	assert.True(t, bl.Add(BlacklistIP, "1.1.1.1"))
	assert.False(t, bl.Add(BlacklistIP, "1.1.1.1"))
	assert.False(t, bl.Add(BlacklistHWID, ""))
	assert.True(t, bl.Contains(BlacklistIP, "1.1.1.1"))
	assert.False(t, bl.Contains(BlacklistDiscord, "1.1.1.1"))
	assert.False(t, bl.Contains(BlacklistIP, ""))
	assert.True(t, bl.Remove(BlacklistIP, "1.1.1.1"))
	assert.False(t, bl.Remove(BlacklistIP, "1.1.1.1"))
	assert.Empty(t, bl.IPs)
}

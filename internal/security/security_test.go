package security

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensepanel/internal/shared/testutil"
)

func newAuth(t *testing.T) *Authenticator {
	t.Helper()
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	return NewAuthenticator(AuthConfig{
		Username:     "admin",
		PasswordHash: hash,
		JWTSecret:    "test-secret",
		TokenTTL:     time.Hour,
	})
}

func TestLogin(t *testing.T) {
	auth := newAuth(t)

	tests := []struct {
		name     string
		user     string
		password string
		wantErr  error
	}{
		{"valid", "admin", "hunter2", nil},
		{"wrong password", "admin", "nope", ErrInvalidCredentials},
		{"wrong user", "root", "hunter2", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, expires, err := auth.Login(tt.user, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, token)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, token)
			assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

			claims, err := auth.Verify(token)
			require.NoError(t, err)
			assert.Equal(t, "admin", claims.Subject)
			assert.Equal(t, "admin", claims.Role)
		})
	}
}

func TestLoginNotConfigured(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Username: "admin"})
	_, _, err := auth.Login("admin", "")
	assert.ErrorIs(t, err, ErrAuthNotConfigured)
	_, err = auth.Verify("anything")
	assert.ErrorIs(t, err, ErrAuthNotConfigured)
}

func TestVerifyRejects(t *testing.T) {
	auth := newAuth(t)
	good, _, err := auth.Issue("admin")
	require.NoError(t, err)

	other := NewAuthenticator(AuthConfig{JWTSecret: "other", PasswordHash: "x"})
	foreign, _, err := other.Issue("admin")
	require.NoError(t, err)

	expired := newAuth(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _, err := expired.Issue("admin")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: "admin"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": foreign,
		"expired":      stale,
		"alg none":     unsigned,
		"tampered":     good + "x",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := auth.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestInputValidatorClean(t *testing.T) {
	v := NewInputValidator(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"trims", "  LF-ABCD  ", 0, "LF-ABCD"},
		{"control chars", "abc\x00\x07def", 0, "abcdef"},
		{"caps length", strings.Repeat("x", 40), 32, strings.Repeat("x", 32)},
		{"invalid utf8", "ab\xffcd", 0, "abcd"},
		{"suspicious kept", "<script>", 0, "<script>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Clean(ctx, "field", tt.in, tt.max))
		})
	}
}

func TestInputValidatorLogsSuspiciousInput(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	v := NewInputValidator(logger)
	ctx := context.Background()

	v.Clean(ctx, "key", "LF-ABCD", MaxLicenseKeyLength)
	assert.Empty(t, logs.Records())

	v.Clean(ctx, "hwid", "x' ; DROP TABLE licenses", MaxHWIDLength)
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "suspicious input detected")
	testutil.AssertLogAttr(t, logs, "field", "hwid")
	testutil.AssertLogAttr(t, logs, "component", "input_validator")

	rec, ok := logs.Find("suspicious input")
	require.True(t, ok)
	assert.Equal(t, []ThreatType{ThreatSuspiciousPattern}, rec.Attrs["threat_types"])
}

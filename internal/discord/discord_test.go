package discord

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"licensepanel/internal/license"
	"licensepanel/internal/marketplace"
	"licensepanel/internal/store"
	"licensepanel/internal/voucher"
	"licensepanel/pkg/contracts/domain"
)

type mockLookup struct {
	mock.Mock
}

func (m *mockLookup) User(ctx context.Context, id string) (Profile, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(Profile), args.Error(1)
}

var testNow = time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestProfileCache(t *testing.T) {
	ctx := context.Background()
	lookup := &mockLookup{}
	lookup.On("User", mock.Anything, "1").Return(Profile{ID: "1", Username: "alice", GlobalName: "Alice"}, nil).Once()
	lookup.On("User", mock.Anything, "2").Return(Profile{}, errors.New("unknown user"))

	cache := NewProfileCache(lookup, time.Hour, 10)
	defer cache.Stop()

	p := cache.Get(ctx, "1")
	assert.Equal(t, "Alice", p.DisplayName())
	assert.True(t, p.Resolved)
	assert.Equal(t, p, cache.Get(ctx, "1"), "second read is served from cache")

	missing := cache.Get(ctx, "2")
	assert.Equal(t, "2", missing.DisplayName())
	assert.False(t, missing.Resolved)
	assert.Equal(t, 1, cache.Len(), "failures are not cached")

	lookup.AssertNumberOfCalls(t, "User", 2)
	stats := cache.Stats()
	assert.Equal(t, int64(1), stats["hit_count"])
}

func TestProfileCacheExpiryAndEviction(t *testing.T) {
	ctx := context.Background()
	lookup := &mockLookup{}
	lookup.On("User", mock.Anything, mock.Anything).Return(Profile{Username: "x"}, nil)

	now := testNow
	cache := NewProfileCache(lookup, time.Hour, 2)
	defer cache.Stop()
	cache.now = func() time.Time { return now }

	cache.Get(ctx, "a")
	now = now.Add(time.Minute)
	cache.Get(ctx, "b")
	now = now.Add(time.Minute)
	cache.Get(ctx, "c")
	assert.Equal(t, 2, cache.Len())

	cache.Get(ctx, "b")
	lookup.AssertNumberOfCalls(t, "User", 3)

	now = now.Add(2 * time.Hour)
	cache.Get(ctx, "b")
	lookup.AssertNumberOfCalls(t, "User", 4)

	cache.Get(ctx, "a")
	lookup.AssertNumberOfCalls(t, "User", 5)
}

type slowLookup struct {
	mu    sync.Mutex
	calls int
	gate  chan struct{}
}

func (s *slowLookup) User(_ context.Context, id string) (Profile, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	<-s.gate
	return Profile{ID: id, Username: "slow"}, nil
}

func TestProfileCacheDeduplicatesConcurrentLookups(t *testing.T) {
	lookup := &slowLookup{gate: make(chan struct{})}
	cache := NewProfileCache(lookup, time.Hour, 10)
	defer cache.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "slow", cache.Get(context.Background(), "1").Username)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(lookup.gate)
	wg.Wait()

	lookup.mu.Lock()
	defer lookup.mu.Unlock()
	assert.Equal(t, 1, lookup.calls)
}

type env struct {
	store    *store.Store
	licenses *license.Service
	vouchers *voucher.Service
	commands *Commands
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	logger := testLogger()
	licenses := license.NewService(license.ServiceDeps{
		Licenses: s.Licenses, Products: s.Products, Logger: logger, KeyPrefix: "LF",
		Now: func() time.Time { return testNow },
	})
	vouchers := voucher.NewService(s.Vouchers, s.Products, licenses, logger)
	market := marketplace.NewService(marketplace.Config{Secret: "x"}, marketplace.Deps{
		Products: s.Products, Licenses: s.Licenses, Issuer: licenses, Logger: logger,
	})
	lookup := &mockLookup{}
	lookup.On("User", mock.Anything, mock.Anything).Return(Profile{Username: "someone"}, nil)
	profiles := NewProfileCache(lookup, time.Hour, 100)
	t.Cleanup(profiles.Stop)

	require.NoError(t, s.Products.Insert(ctx, domain.Product{ID: "p1", Name: "Pulse"}))
	return &env{
		store:    s,
		licenses: licenses,
		vouchers: vouchers,
		commands: NewCommands(CommandDeps{
			Licenses:    licenses,
			Products:    s.Products,
			Vouchers:    vouchers,
			Marketplace: market,
			Profiles:    profiles,
			BotLogs:     s.BotLogs,
			Logger:      logger,
		}),
	}
}

func (e *env) botLogs(t *testing.T) []domain.BotLog {
	t.Helper()
	logs, err := e.store.BotLogs.List(context.Background(), 0)
	require.NoError(t, err)
	return logs
}

func TestAdminCommandsRequireAdmin(t *testing.T) {
	e := newEnv(t)
	reply := e.commands.Run(context.Background(), Invocation{
		Command: CmdCreateLicense, UserID: "u1",
		Options: map[string]string{"product": "p1", "user": "u1"},
	})
	assert.Equal(t, "You do not have permission to use this command.", reply.Content)
	assert.True(t, reply.Ephemeral)

	all, err := e.licenses.List(context.Background(), license.Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	logs := e.botLogs(t)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
	assert.Equal(t, CmdCreateLicense, logs[0].Command)
}

func TestCreateLicenseCommand(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	reply := e.commands.Run(ctx, Invocation{
		Command: CmdCreateLicense, UserID: "admin", IsAdmin: true,
		Options: map[string]string{"product": "pulse", "user": "u1", "days": "30", "max_ips": "2"},
	})
	require.Len(t, reply.Embeds, 1)
	assert.Equal(t, "Created license for <@u1>.", reply.Content)

	owned, _, err := e.licenses.ForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, 2, owned[0].MaxIPs.Max())
	assert.Equal(t, testNow.AddDate(0, 0, 30), *owned[0].ExpiresAt)

	logs := e.botLogs(t)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
	assert.Contains(t, logs[0].Details, "product=pulse")
}

func TestCommandErrorsAreFriendly(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		inv  Invocation
		want string
	}{
		{
			name: "unknown product",
			inv:  Invocation{Command: CmdCreateLicense, IsAdmin: true, Options: map[string]string{"product": "nope", "user": "u1"}},
			want: "Product not found.",
		},
		{
			name: "bad number",
			inv:  Invocation{Command: CmdRenewLicense, IsAdmin: true, Options: map[string]string{"key": "K", "days": "soon"}},
			want: "Invalid input: invalid option: days must be a number",
		},
		{
			name: "missing license",
			inv:  Invocation{Command: CmdDeactivate, IsAdmin: true, Options: map[string]string{"key": "LF-NONE"}},
			want: "License not found.",
		},
		{
			name: "unknown voucher",
			inv:  Invocation{Command: CmdRedeem, UserID: "u1", Options: map[string]string{"code": "AAAA-BBBB-CCCC"}},
			want: "Voucher not found.",
		},
		{
			name: "verify without start",
			inv:  Invocation{Command: CmdLinkBuiltByBit, UserID: "u1", Options: map[string]string{"action": "verify"}},
			want: "Account linking is not available.",
		},
		{
			name: "unknown command",
			inv:  Invocation{Command: "dance"},
			want: "Unknown command.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.commands.Run(context.Background(), tt.inv).Content)
		})
	}
}

func TestManageLicenseCommand(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	lic, err := e.licenses.Create(ctx, license.CreateParams{ProductID: "p1", DiscordID: "owner"})
	require.NoError(t, err)

	reply := e.commands.Run(ctx, Invocation{
		Command: CmdManageLicense, UserID: "intruder",
		Options: map[string]string{"key": lic.Key, "action": ActionAddSubUser, "user": "friend"},
	})
	assert.Equal(t, "Only the license owner can manage this license.", reply.Content)

	reply = e.commands.Run(ctx, Invocation{
		Command: CmdManageLicense, UserID: "owner",
		Options: map[string]string{"key": lic.Key, "action": ActionAddSubUser, "user": "friend"},
	})
	assert.Equal(t, "<@friend> can now use `"+lic.Key+"`.", reply.Content)

	reply = e.commands.Run(ctx, Invocation{
		Command: CmdManageLicense, UserID: "owner",
		Options: map[string]string{"key": lic.Key, "action": ActionAddSubUser, "user": "owner"},
	})
	assert.Equal(t, "The owner cannot be added as a sub-user.", reply.Content)

	_, err = e.licenses.AddIdentity(ctx, lic.Key, domain.IdentityIP, "1.1.1.1")
	require.NoError(t, err)
	reply = e.commands.Run(ctx, Invocation{
		Command: CmdManageLicense, UserID: "owner",
		Options: map[string]string{"key": lic.Key, "action": ActionResetIPs},
	})
	assert.Contains(t, reply.Content, "IP bindings")

	got, err := e.licenses.Get(ctx, lic.Key)
	require.NoError(t, err)
	assert.Empty(t, got.AllowedIPs)
	assert.Equal(t, []string{"friend"}, got.SubUserDiscordIDs)

	_, shared, err := e.licenses.ForUser(ctx, "friend")
	require.NoError(t, err)
	assert.Len(t, shared, 1)
}

func TestManageLicenseAddIdentity(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	capped, err := e.licenses.Create(ctx, license.CreateParams{
		ProductID: "p1", DiscordID: "owner", MaxIPs: domain.Capped(1), MaxHWIDs: domain.Capped(1),
	})
	require.NoError(t, err)
	untracked, err := e.licenses.Create(ctx, license.CreateParams{ProductID: "p1", DiscordID: "owner", MaxIPs: domain.Disabled()})
	require.NoError(t, err)

	tests := []struct {
		name   string
		key    string
		action string
		value  string
		want   string
	}{
		{"bind ip", capped.Key, ActionAddIP, "1.1.1.1", "IP `1.1.1.1` is now bound to `" + capped.Key + "`."},
		{"same ip again", capped.Key, ActionAddIP, "1.1.1.1", "That value is already bound to this license."},
		{"ip slots full", capped.Key, ActionAddIP, "2.2.2.2", "No free slot left on this license. Reset its bindings first."},
		{"bind hwid", capped.Key, ActionAddHWID, "hw-1", "HWID `hw-1` is now bound to `" + capped.Key + "`."},
		{"hwid slots full", capped.Key, ActionAddHWID, "hw-2", "No free slot left on this license. Reset its bindings first."},
		{"missing value", capped.Key, ActionAddIP, "", "Give the IP or HWID in the value option."},
		{"ip tracking disabled", untracked.Key, ActionAddIP, "1.1.1.1", "IP tracking is disabled for this license."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := e.commands.Run(ctx, Invocation{
				Command: CmdManageLicense, UserID: "owner",
				Options: map[string]string{"key": tt.key, "action": tt.action, "value": tt.value},
			})
			assert.Equal(t, tt.want, reply.Content)
		})
	}

	got, err := e.licenses.Get(ctx, capped.Key)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1.1.1"}, got.AllowedIPs)
	assert.Equal(t, []string{"hw-1"}, got.AllowedHWIDs)
}

func TestCheckLicensesAndProfile(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.licenses.Create(ctx, license.CreateParams{ProductID: "p1", DiscordID: "u1"})
	require.NoError(t, err)

	reply := e.commands.Run(ctx, Invocation{Command: CmdCheckLicenses, UserID: "u1"})
	require.Len(t, reply.Embeds, 1)
	require.Len(t, reply.Embeds[0].Fields, 1)
	assert.Contains(t, reply.Embeds[0].Fields[0].Value, "Pulse | Owner | active | expires never")

	reply = e.commands.Run(ctx, Invocation{Command: CmdCheckLicenses, UserID: "u2", Options: map[string]string{"user": "u1"}})
	assert.Equal(t, "<@u2> has no licenses.", reply.Content, "non-admins only see their own licenses")

	reply = e.commands.Run(ctx, Invocation{Command: CmdProfile, UserID: "u1"})
	require.Len(t, reply.Embeds, 1)
	assert.Equal(t, "someone", reply.Embeds[0].Title)
	assert.Equal(t, "1", reply.Embeds[0].Fields[2].Value)
}

func TestProfileRefreshRefetches(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	lookup := &mockLookup{}
	lookup.On("User", mock.Anything, "u1").Return(Profile{ID: "u1", Username: "old"}, nil).Once()
	lookup.On("User", mock.Anything, "u1").Return(Profile{ID: "u1", Username: "renamed"}, nil).Once()
	cache := NewProfileCache(lookup, time.Hour, 10)
	t.Cleanup(cache.Stop)
	e.commands.deps.Profiles = cache

	reply := e.commands.Run(ctx, Invocation{Command: CmdProfile, UserID: "u1"})
	require.Len(t, reply.Embeds, 1)
	assert.Equal(t, "old", reply.Embeds[0].Title)

	reply = e.commands.Run(ctx, Invocation{Command: CmdProfile, UserID: "u1"})
	assert.Equal(t, "old", reply.Embeds[0].Title, "served from cache")

	reply = e.commands.Run(ctx, Invocation{Command: CmdProfile, UserID: "u1", Options: map[string]string{"refresh": "true"}})
	require.Len(t, reply.Embeds, 1)
	assert.Equal(t, "renamed", reply.Embeds[0].Title)
	lookup.AssertNumberOfCalls(t, "User", 2)
}

func TestRedeemCommand(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	batch, err := e.vouchers.Generate(ctx, voucher.GenerateParams{ProductID: "p1", Count: 1, DurationDays: 7})
	require.NoError(t, err)

	reply := e.commands.Run(ctx, Invocation{Command: CmdRedeem, UserID: "u1", Options: map[string]string{"code": batch[0].Code}})
	assert.Equal(t, "Your new license.", reply.Content)

	reply = e.commands.Run(ctx, Invocation{Command: CmdRedeem, UserID: "u1", Options: map[string]string{"code": batch[0].Code}})
	assert.Equal(t, "This voucher has already been redeemed.", reply.Content)
}

func TestIsAdmin(t *testing.T) {
	tests := []struct {
		name   string
		member *discordgo.Member
		role   string
		want   bool
	}{
		{"nil member", nil, "r", false},
		{"has role", &discordgo.Member{Roles: []string{"x", "r"}}, "r", true},
		{"missing role", &discordgo.Member{Roles: []string{"x"}}, "r", false},
		{"administrator without role config", &discordgo.Member{Permissions: discordgo.PermissionAdministrator}, "", true},
		{"administrator ignored when role configured", &discordgo.Member{Permissions: discordgo.PermissionAdministrator}, "r", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isAdmin(tt.member, tt.role))
		})
	}
}

func TestDefinitionsCoverHandlers(t *testing.T) {
	c := NewCommands(CommandDeps{})
	defs := Definitions()
	assert.Len(t, defs, len(c.handlers))
	for _, d := range defs {
		_, ok := c.handlers[d.Name]
		assert.True(t, ok, d.Name)
	}
}

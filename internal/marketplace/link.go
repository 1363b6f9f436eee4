package marketplace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"licensepanel/internal/license"
	"licensepanel/pkg/contracts/domain"
)

var (
	ErrNoPendingLink  = errors.New("no pending link request")
	ErrLinkExpired    = errors.New("link request expired")
	ErrTokenNotFound  = errors.New("link token not found on profile")
	ErrLinkNotEnabled = errors.New("account linking is not configured")
)

// ProfileFetcher returns the public profile text of a BuiltByBit member.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, platformUserID string) (string, error)
}

// Challenge is a pending link request.
type Challenge struct {
	DiscordID      string    `json:"discordId"`
	PlatformUserID string    `json:"platformUserId"`
	Token          string    `json:"token"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

type linkTokens struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[string]Challenge
}

func newLinkTokens(ttl time.Duration, now func() time.Time) *linkTokens {
	return &linkTokens{ttl: ttl, now: now, pending: make(map[string]Challenge)}
}

func (t *linkTokens) issue(discordID, platformUserID string) (Challenge, error) {
	code, err := license.GenerateCode(3, 4)
	if err != nil {
		return Challenge{}, err
	}
	c := Challenge{
		DiscordID:      discordID,
		PlatformUserID: platformUserID,
		Token:          "LINK-" + code,
		ExpiresAt:      t.now().Add(t.ttl),
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for id, p := range t.pending {
		if now.After(p.ExpiresAt) {
			delete(t.pending, id)
		}
	}
	t.pending[discordID] = c
	return c, nil
}

func (t *linkTokens) get(discordID string) (Challenge, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.pending[discordID]
	if !ok {
		return Challenge{}, ErrNoPendingLink
	}
	if t.now().After(c.ExpiresAt) {
		delete(t.pending, discordID)
		return Challenge{}, ErrLinkExpired
	}
	return c, nil
}

func (t *linkTokens) consume(discordID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, discordID)
}

// StartLink issues a token discordID must place on the BuiltByBit profile of
// platformUserID. A new request replaces the previous one.
func (s *Service) StartLink(ctx context.Context, discordID, platformUserID string) (Challenge, error) {
	discordID = strings.TrimSpace(discordID)
	platformUserID = strings.TrimSpace(platformUserID)
	if discordID == "" || platformUserID == "" {
		return Challenge{}, fmt.Errorf("%w: discord id and builtbybit user id are required", ErrInvalidPurchase)
	}
	c, err := s.links.issue(discordID, platformUserID)
	if err != nil {
		return Challenge{}, err
	}
	s.logger.InfoContext(ctx, "link requested",
		slog.String("discord_id", discordID),
		slog.String("platform_user_id", platformUserID),
	)
	return c, nil
}

// CompleteLink checks the pending token of discordID against the member
// profile and assigns every unlinked license of that member to discordID.
// It returns the keys of the licenses that changed owner.
func (s *Service) CompleteLink(ctx context.Context, discordID string) ([]string, error) {
	if s.fetcher == nil {
		return nil, ErrLinkNotEnabled
	}
	c, err := s.links.get(discordID)
	if err != nil {
		return nil, err
	}
	profile, err := s.fetcher.FetchProfile(ctx, c.PlatformUserID)
	if err != nil {
		return nil, fmt.Errorf("fetch builtbybit profile %s: %w", c.PlatformUserID, err)
	}
	if !strings.Contains(profile, c.Token) {
		return nil, ErrTokenNotFound
	}

	var linked []string
	now := s.issuer.Now().UTC()
	err = s.licenses.Mutate(ctx, func(all []domain.License) ([]domain.License, error) {
		for i := range all {
			l := &all[i]
			if l.Platform == domain.PlatformBuiltByBit && l.PlatformUserID == c.PlatformUserID && !l.IsLinked() {
				l.DiscordID = discordID
				l.UpdatedAt = now
				linked = append(linked, l.Key)
			}
		}
		return all, nil
	})
	if err != nil {
		return nil, err
	}
	s.links.consume(discordID)

	s.logger.InfoContext(ctx, "builtbybit account linked",
		slog.String("discord_id", discordID),
		slog.String("platform_user_id", c.PlatformUserID),
		slog.Int("licenses", len(linked)),
	)
	return linked, nil
}

// HTTPProfileFetcher downloads member pages from BuiltByBit.
type HTTPProfileFetcher struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// maxProfileBytes caps how much of a profile page is read.
const maxProfileBytes = 2 << 20

// NewHTTPProfileFetcher returns a fetcher for baseURL such as
// "https://builtbybit.com".
func NewHTTPProfileFetcher(baseURL string, timeout time.Duration, breaker *gobreaker.CircuitBreaker) *HTTPProfileFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if breaker == nil {
		breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "builtbybit-profile"})
	}
	return &HTTPProfileFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: breaker,
	}
}

// FetchProfile returns the raw member page.
func (f *HTTPProfileFetcher) FetchProfile(ctx context.Context, platformUserID string) (string, error) {
	out, err := f.breaker.Execute(func() (interface{}, error) {
		endpoint := fmt.Sprintf("%s/members/%s/", f.baseURL, url.PathEscape(platformUserID))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "licensepanel/1.0")
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
		if err != nil {
			return nil, err
		}
		return string(body), nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

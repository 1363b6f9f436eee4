// Package geo resolves the approximate location of a source IP for the
// validation log. Lookups are best effort: every failure yields nil.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"licensepanel/pkg/contracts/domain"
)

// Client queries an ip-api compatible JSON endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewClient returns a client for baseURL. An empty baseURL disables lookups.
func NewClient(baseURL string, timeout time.Duration, breaker *gobreaker.CircuitBreaker, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if breaker == nil {
		breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "geolocation"})
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger.With(slog.String("component", "geo")),
	}
}

type lookupResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Country    string `json:"country"`
	RegionName string `json:"regionName"`
	City       string `json:"city"`
}

// Lookup returns the location of ip, or nil when it is unknown.
func (c *Client) Lookup(ctx context.Context, ip string) *domain.Location {
	if c == nil || c.baseURL == "" || !isPublic(ip) {
		return nil
	}
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, ip)
	})
	if err != nil {
		c.logger.DebugContext(ctx, "geolocation lookup failed",
			slog.String("ip", ip),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return res.(*domain.Location)
}

func (c *Client) fetch(ctx context.Context, ip string) (*domain.Location, error) {
	endpoint := fmt.Sprintf("%s/json/%s?fields=status,message,country,regionName,city", c.baseURL, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocation returned status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode geolocation response: %w", err)
	}
	if body.Status != "success" {
		return nil, fmt.Errorf("geolocation lookup: %s", body.Message)
	}
	return &domain.Location{Country: body.Country, Region: body.RegionName, City: body.City}, nil
}

func isPublic(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return !(parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() || parsed.IsLinkLocalUnicast())
}

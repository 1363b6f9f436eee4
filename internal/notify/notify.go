// Package notify posts audit events to Discord webhooks.
//
// Delivery is fire-and-forget: Notify returns immediately, failures are
// logged and never retried, and nothing is reported back to the caller.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sony/gobreaker"
)

// Kind groups events so each family can go to its own webhook.
type Kind string

const (
	KindLicense    Kind = "license"
	KindValidation Kind = "validation"
	KindBlacklist  Kind = "blacklist"
)

// Embed colors.
const (
	ColorGreen  = 0x2ecc71
	ColorRed    = 0xe74c3c
	ColorOrange = 0xe67e22
	ColorBlue   = 0x3498db
)

// Field is one name/value row of an embed.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Event is an audit notification.
type Event struct {
	Kind        Kind
	Title       string
	Description string
	Color       int
	Fields      []Field
}

// URLResolver returns the webhook URL configured for kind, or "" when the
// family is not wired to any webhook.
type URLResolver interface {
	WebhookURL(ctx context.Context, kind Kind) (string, error)
}

// Sink accepts events.
type Sink interface {
	Notify(ctx context.Context, ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Notifier delivers events to Discord webhooks in the background.
type Notifier struct {
	resolver URLResolver
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	logger   *slog.Logger
	username string
	timeout  time.Duration
	now      func() time.Time
	wg       sync.WaitGroup
}

// Options tunes a Notifier.
type Options struct {
	Username string
	Timeout  time.Duration
	Client   *http.Client
	Breaker  *gobreaker.CircuitBreaker
}

// New returns a Notifier resolving URLs through resolver.
func New(resolver URLResolver, logger *slog.Logger, opts Options) *Notifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Breaker == nil {
		opts.Breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "discord-webhook"})
	}
	if opts.Username == "" {
		opts.Username = "License Panel"
	}
	return &Notifier{
		resolver: resolver,
		client:   opts.Client,
		breaker:  opts.Breaker,
		logger:   logger.With(slog.String("component", "notifier")),
		username: opts.Username,
		timeout:  opts.Timeout,
		now:      time.Now,
	}
}

// Notify sends ev in the background. It never blocks on the network and
// never fails.
func (n *Notifier) Notify(ctx context.Context, ev Event) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		if err := n.Send(sendCtx, ev); err != nil {
			n.logger.WarnContext(ctx, "webhook delivery failed",
				slog.String("kind", string(ev.Kind)),
				slog.String("title", ev.Title),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait blocks until in-flight deliveries finish.
func (n *Notifier) Wait() { n.wg.Wait() }

// Send delivers ev synchronously. A missing URL is not an error.
func (n *Notifier) Send(ctx context.Context, ev Event) error {
	url, err := n.resolver.WebhookURL(ctx, ev.Kind)
	if err != nil {
		return fmt.Errorf("resolve webhook url: %w", err)
	}
	if url == "" {
		return nil
	}

	body, err := json.Marshal(n.payload(ev))
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	_, err = n.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := n.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}

func (n *Notifier) payload(ev Event) *discordgo.WebhookParams {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Description,
		Color:       ev.Color,
		Timestamp:   n.now().UTC().Format(time.RFC3339),
	}
	for _, f := range ev.Fields {
		if f.Value == "" {
			continue
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return &discordgo.WebhookParams{
		Username: n.username,
		Embeds:   []*discordgo.MessageEmbed{embed},
	}
}

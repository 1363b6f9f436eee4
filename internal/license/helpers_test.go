package license

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"licensepanel/internal/notify"
	"licensepanel/internal/store"
	"licensepanel/pkg/contracts/domain"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type recordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingSink) Notify(_ context.Context, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Title
	}
	return out
}

type recordingPublisher struct {
	mu      sync.Mutex
	entries []domain.ValidationLog
}

func (p *recordingPublisher) PublishLog(entry domain.ValidationLog) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, entry)
}

type staticLocator struct{ loc *domain.Location }

func (s staticLocator) Lookup(context.Context, string) *domain.Location { return s.loc }

type fixture struct {
	store     *store.Store
	engine    *Engine
	service   *Service
	sink      *recordingSink
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)

	f := &fixture{store: s, sink: &recordingSink{}, publisher: &recordingPublisher{}}
	now := func() time.Time { return fixedNow }
	f.engine = NewEngine(EngineDeps{
		Licenses:  s.Licenses,
		Products:  s.Products,
		Blacklist: s.Blacklist,
		Settings:  s.Settings,
		Logs:      s.Logs,
		Locator:   staticLocator{loc: &domain.Location{Country: "Iraq", City: "Baghdad"}},
		Publisher: f.publisher,
		Notifier:  f.sink,
		Logger:    discardLogger(),
		Now:       now,
	})
	f.service = NewService(ServiceDeps{
		Licenses:  s.Licenses,
		Products:  s.Products,
		Notifier:  f.sink,
		Logger:    discardLogger(),
		KeyPrefix: "LF",
		Now:       now,
	})
	return f
}

func (f *fixture) product(t *testing.T, id string, hwid bool) domain.Product {
	t.Helper()
	p := domain.Product{ID: id, Name: "Product " + id, HWIDProtection: hwid, CreatedAt: fixedNow}
	require.NoError(t, f.store.Products.Insert(context.Background(), p))
	return p
}

func (f *fixture) license(t *testing.T, lic domain.License) domain.License {
	t.Helper()
	if lic.ID == "" {
		lic.ID = "id-" + lic.Key
	}
	if lic.Status == "" {
		lic.Status = domain.LicenseStatusActive
	}
	if lic.DiscordID == "" {
		lic.DiscordID = "owner"
	}
	if lic.CreatedAt.IsZero() {
		lic.CreatedAt = fixedNow.Add(-24 * time.Hour)
	}
	require.NoError(t, f.store.Licenses.Insert(context.Background(), lic))
	return lic
}

func (f *fixture) stored(t *testing.T, key string) domain.License {
	t.Helper()
	lic, err := f.store.Licenses.Get(context.Background(), key)
	require.NoError(t, err)
	return lic
}

func (f *fixture) logs(t *testing.T) []domain.ValidationLog {
	t.Helper()
	entries, err := f.store.Logs.List(context.Background(), 0)
	require.NoError(t, err)
	return entries
}

func timePtr(t time.Time) *time.Time { return &t }

package discord

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Profile is the public part of a Discord account shown in bot replies and
// the admin API.
type Profile struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"globalName,omitempty"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
	// Resolved is false when the lookup failed and only the id is known.
	Resolved bool `json:"resolved"`
}

// DisplayName returns the best available name for the account.
func (p Profile) DisplayName() string {
	switch {
	case p.GlobalName != "":
		return p.GlobalName
	case p.Username != "":
		return p.Username
	default:
		return p.ID
	}
}

// UserLookup fetches an account from Discord.
type UserLookup interface {
	User(ctx context.Context, id string) (Profile, error)
}

type profileEntry struct {
	profile  Profile
	cachedAt time.Time
}

// ProfileCache memoizes Discord user lookups with a TTL and a size bound.
// Concurrent lookups of the same id share one request.
type ProfileCache struct {
	lookup  UserLookup
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]profileEntry
	hits    int64
	misses  int64

	group    singleflight.Group
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewProfileCache returns a cache in front of lookup. A background sweep
// drops expired entries until Stop is called.
func NewProfileCache(lookup UserLookup, ttl time.Duration, maxSize int) *ProfileCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &ProfileCache{
		lookup:   lookup,
		ttl:      ttl,
		maxSize:  maxSize,
		now:      time.Now,
		entries:  make(map[string]profileEntry),
		stopChan: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Get returns the profile for id. When Discord cannot be reached the result
// carries only the id and is not cached.
func (c *ProfileCache) Get(ctx context.Context, id string) Profile {
	if p, ok := c.cached(id); ok {
		return p
	}

	v, err, _ := c.group.Do(id, func() (interface{}, error) {
		p, err := c.lookup.User(ctx, id)
		if err != nil {
			return nil, err
		}
		p.Resolved = true
		c.set(id, p)
		return p, nil
	})
	if err != nil {
		return Profile{ID: id}
	}
	return v.(Profile)
}

func (c *ProfileCache) cached(id string) (Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if !ok || c.now().Sub(entry.cachedAt) >= c.ttl {
		c.misses++
		return Profile{}, false
	}
	c.hits++
	return entry.profile, true
}

func (c *ProfileCache) set(id string, p Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxSize <= 0 {
		return
	}
	if _, exists := c.entries[id]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[id] = profileEntry{profile: p, cachedAt: c.now()}
}

// Invalidate forgets id.
func (c *ProfileCache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Len returns the number of cached profiles.
func (c *ProfileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats reports cache counters.
func (c *ProfileCache) Stats() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	ratio := float64(0)
	if total > 0 {
		ratio = float64(c.hits) / float64(total)
	}
	return map[string]interface{}{
		"entries":     len(c.entries),
		"max_size":    c.maxSize,
		"hit_count":   c.hits,
		"miss_count":  c.misses,
		"hit_ratio":   ratio,
		"ttl_seconds": c.ttl.Seconds(),
	}
}

func (c *ProfileCache) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, entry := range c.entries {
		if oldestID == "" || entry.cachedAt.Before(oldest) {
			oldestID = id
			oldest = entry.cachedAt
		}
	}
	if oldestID != "" {
		delete(c.entries, oldestID)
	}
}

// Stop ends the background sweep.
func (c *ProfileCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *ProfileCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for id, entry := range c.entries {
				if now.Sub(entry.cachedAt) >= c.ttl {
					delete(c.entries, id)
				}
			}
			c.mu.Unlock()
		case <-c.stopChan:
			return
		}
	}
}

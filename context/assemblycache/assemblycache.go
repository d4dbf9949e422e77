// Package assemblycache provides a TTL-bounded cache of assembled contexts,
// keyed by session and canonicalized assembly options.
package assemblycache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Options is the set of assembly inputs that participate in the cache key.
// UpdatedAt and MessageCount are injected by the caller from session
// metadata so any session mutation implicitly invalidates the cached entry.
type Options struct {
	AgentID      string
	Extra        map[string]any
	UpdatedAt    string
	MessageCount int
}

// Key canonicalizes sessionID and opts into a cache key: opts' map keys are
// sorted so equivalent options always serialize identically regardless of
// map iteration order.
func Key(sessionID string, opts Options) string {
	extraKeys := make([]string, 0, len(opts.Extra))
	for k := range opts.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%d|", sessionID, opts.AgentID, opts.UpdatedAt, opts.MessageCount)
	for _, k := range extraKeys {
		v, _ := json.Marshal(opts.Extra[k])
		fmt.Fprintf(&b, "%s=%s;", k, v)
	}
	return b.String()
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a simple TTL-evicted map. LRU is not required; entries are
// dropped lazily on access once expired. Cache is safe for concurrent use.
// Values returned by Get are shared across callers and must be treated as
// read-only.
type Cache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]entry
}

// New constructs a Cache with the given per-entry TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, entries: make(map[string]entry)}
}

// Get returns the cached value for key and whether it was present and
// unexpired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the cache's configured TTL.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(c.ttl)}
}

// Invalidate deletes every key prefixed with sessionID (i.e. every cached
// entry for that session, regardless of options).
func (c *Cache) Invalidate(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := sessionID + "|"
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
}

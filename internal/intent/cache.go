// Package intent keeps short-lived execution intents in process memory.
// Nothing here is durable; the cache starts empty and Clear drops everything.
package intent

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/gyaneshwarpardhi/automation/internal/policy"
)

// Intent records what a downstream executor would need to act on a plan.
type Intent struct {
	AuditID   string           `json:"auditId"`
	TenantID  string           `json:"tenantId"`
	EventID   string           `json:"eventId"`
	Gate      *policy.Decision `json:"gate,omitempty"`
	Policy    *policy.Decision `json:"policy,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// Cache is a TTL cache bounded to maxEntries; the least recently used entry
// is evicted when full. Expired entries are dropped on read and by Sweep.
type Cache struct {
	ttl   time.Duration
	now   func() time.Time
	items *expirable.LRU[string, Intent]
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source used to stamp and expire intents.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a Cache. Non-positive maxEntries means unbounded.
func New(ttl time.Duration, maxEntries int, opts ...Option) *Cache {
	if maxEntries < 0 {
		maxEntries = 0
	}
	c := &Cache{
		ttl:   ttl,
		now:   time.Now,
		items: expirable.NewLRU[string, Intent](maxEntries, nil, ttl),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Put stores in under in.AuditID, stamping CreatedAt and ExpiresAt.
// Replacing an existing id refreshes its position and expiry.
func (c *Cache) Put(in Intent) Intent {
	now := c.now()
	in.CreatedAt = now
	in.ExpiresAt = now.Add(c.ttl)
	c.items.Add(in.AuditID, in)
	return in
}

// Get returns the intent for auditID, removing it if expired.
func (c *Cache) Get(auditID string) (Intent, bool) {
	in, ok := c.items.Get(auditID)
	if !ok {
		return Intent{}, false
	}
	if c.expired(in) {
		c.items.Remove(auditID)
		return Intent{}, false
	}
	return in, true
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *Cache) Sweep() int {
	removed := 0
	for _, id := range c.items.Keys() {
		in, ok := c.items.Peek(id)
		if ok && !c.expired(in) {
			continue
		}
		if c.items.Remove(id) {
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, expired or not.
func (c *Cache) Len() int {
	return c.items.Len()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.items.Purge()
}

func (c *Cache) expired(in Intent) bool {
	return !c.now().Before(in.ExpiresAt)
}

// Package cache holds the latest analysis per user for the lifetime of the
// process. It is bounded and nothing depends on it surviving a restart.
package cache

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"auralytics/internal/metrics"
	"auralytics/internal/model"
)

// Entry is the cached analysis of one user.
type Entry struct {
	UserID    string         `json:"userId"`
	Username  string         `json:"username,omitempty"`
	Analysis  model.Analysis `json:"analysis"`
	Profile   *model.Profile `json:"userData,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Cache stores entries by user id.
type Cache interface {
	Get(userID string) (Entry, bool)
	Put(e Entry)
	Prune(now time.Time) int
	Len() int
}

// LRU is a Cache with a capacity bound and a time-to-live.
type LRU struct {
	mu      sync.Mutex
	lru     *lru.Cache
	ttl     time.Duration
	expires map[string]time.Time
	now     func() time.Time
}

// NewLRU returns an LRU holding at most capacity entries. ttl <= 0 disables expiry.
func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 1024
	}
	c := &LRU{
		lru:     lru.New(capacity),
		ttl:     ttl,
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
	c.lru.OnEvicted = func(key lru.Key, _ interface{}) {
		delete(c.expires, key.(string))
	}
	return c
}

func (c *LRU) Get(userID string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(userID)
	if !ok {
		return Entry{}, false
	}
	if c.expired(userID, c.now()) {
		c.lru.Remove(userID)
		c.report()
		return Entry{}, false
	}
	return v.(Entry), true
}

// Put keeps CreatedAt of an existing entry and stamps UpdatedAt.
func (c *LRU) Put(e Entry) {
	if e.UserID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if prev, ok := c.lru.Get(e.UserID); ok && !c.expired(e.UserID, now) {
		e.CreatedAt = prev.(Entry).CreatedAt
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	c.lru.Add(e.UserID, e)
	if c.ttl > 0 {
		c.expires[e.UserID] = now.Add(c.ttl)
	}
	c.report()
}

// Prune drops expired entries and returns how many were removed.
func (c *LRU) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var stale []string
	for k, exp := range c.expires {
		if !now.Before(exp) {
			stale = append(stale, k)
		}
	}
	for _, k := range stale {
		c.lru.Remove(k)
	}
	c.report()
	return len(stale)
}

func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *LRU) expired(key string, now time.Time) bool {
	exp, ok := c.expires[key]
	return ok && !now.Before(exp)
}

func (c *LRU) report() { metrics.SetCacheEntries(c.lru.Len()) }

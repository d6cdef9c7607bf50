package cache

import (
	"sync"
	"time"

	"github.com/tiktox/dhiorfans-ledger/internal/adapter"
	"github.com/tiktox/dhiorfans-ledger/internal/domain"
)

// DefaultTTL is the freshness window for cached account snapshots
const DefaultTTL = 30 * time.Second

type entry struct {
	account   domain.TokenAccount
	fetchedAt time.Time
}

// AccountCache is a process-local, time-boxed read cache for the hot
// "current balance" query. It is a latency optimization only: the ledger's
// transactional guarantees hold with the cache disabled or cold. The cache
// is owned by the ledger service instance, never shared as a global.
type AccountCache struct {
	ttl   time.Duration
	clock adapter.Clock

	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an AccountCache with the given freshness window.
// A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration, clock adapter.Clock) *AccountCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &AccountCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]entry),
	}
}

// Get returns a copy of the cached account for userID, or nil when absent or
// expired. Expired entries are treated as absent and dropped.
func (c *AccountCache) Get(userID string) *domain.TokenAccount {
	c.mu.RLock()
	e, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok {
		return nil
	}

	if c.clock.Now().Sub(e.fetchedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; a fresher Put may have raced in
		if cur, ok := c.entries[userID]; ok && c.clock.Now().Sub(cur.fetchedAt) >= c.ttl {
			delete(c.entries, userID)
		}
		c.mu.Unlock()
		return nil
	}

	acct := e.account
	return &acct
}

// Put stores a snapshot of the account
func (c *AccountCache) Put(acct *domain.TokenAccount) {
	if acct == nil {
		return
	}
	c.mu.Lock()
	c.entries[acct.UserID] = entry{
		account:   *acct,
		fetchedAt: c.clock.Now(),
	}
	c.mu.Unlock()
}

// Invalidate drops the entry for userID so readers never observe a stale
// balance after a write they are causally aware of
func (c *AccountCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// InvalidateAll drops every entry
func (c *AccountCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Stats reports the current cache size and keys
func (c *AccountCache) Stats() domain.CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return domain.CacheStats{
		Size: len(c.entries),
		Keys: keys,
	}
}

// Package accountcache tracks token accounts known to exist on chain, so the
// executor can skip redundant existence checks and creation instructions.
// Entries expire after a TTL, forcing a fresh on-chain check in case an
// account was closed externally.
package accountcache

import (
	"context"
	"log"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"

	"solana-market-maker/internal/observability"
)

// DefaultTTL bounds how long an account is assumed to still exist.
const DefaultTTL = 10 * time.Minute

// Cache is a concurrency-safe set of account addresses with insertion
// timestamps. Readers are many; writers are the executor's creation success
// path and the maintenance sweep.
type Cache struct {
	mu      sync.RWMutex
	entries map[solanago.PublicKey]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache with the given TTL (DefaultTTL if non-positive).
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[solanago.PublicKey]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Insert records the account as known to exist, refreshing its timestamp.
func (c *Cache) Insert(account solanago.PublicKey) {
	c.mu.Lock()
	c.entries[account] = c.now()
	c.mu.Unlock()
}

// Contains reports whether the account is cached and not yet expired.
func (c *Cache) Contains(account solanago.PublicKey) bool {
	c.mu.RLock()
	insertedAt, ok := c.entries[account]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	return c.now().Sub(insertedAt) <= c.ttl
}

// Size returns the number of cached entries, expired or not.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// RemoveExpired evicts entries older than the TTL and returns how many were
// removed. Entries inserted after the sweep began are never touched.
func (c *Cache) RemoveExpired() int {
	cutoff := c.now().Add(-c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for account, insertedAt := range c.entries {
		if insertedAt.Before(cutoff) {
			delete(c.entries, account)
			removed++
		}
	}
	return removed
}

// RunMaintenance sweeps expired entries every period until ctx is cancelled.
// Runs in its own goroutine; tears down independently of other loops.
func (c *Cache) RunMaintenance(ctx context.Context, period time.Duration, logger *log.Logger) {
	if logger == nil {
		logger = log.New(log.Writer(), "[accountcache] ", log.LstdFlags)
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := c.RemoveExpired()
			observability.UpdateAccountCache(c.Size(), removed)
			if removed > 0 {
				logger.Printf("evicted %d expired entries, %d remain", removed, c.Size())
			}
		}
	}
}

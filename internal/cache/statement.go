package cache

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"gastos/internal/core"
)

// StatementCache memoizes aggregated statements. The key is
// (account id, closing date, payments snapshot hash), so a changed payment
// set can never serve a stale total. Writes invalidate per account by
// bumping a generation counter that orphans every older entry; the orphans
// age out through the LRU/TTL underneath.
type StatementCache struct {
	mu          sync.Mutex
	generations map[string]uint64
	lru         *LRUCache[core.Statement]
}

// NewStatementCache creates a statement cache with the given capacity and
// entry TTL.
func NewStatementCache(maxSize int, ttl time.Duration) *StatementCache {
	return &StatementCache{
		generations: make(map[string]uint64),
		lru:         NewLRUCache[core.Statement](maxSize, ttl),
	}
}

// Get returns the cached statement for an account, closing date and
// payments snapshot, if present.
func (c *StatementCache) Get(accountID string, closing core.Date, payments []core.Payment) (core.Statement, bool) {
	return c.lru.Get(c.key(accountID, closing, payments))
}

// Set stores a computed statement.
func (c *StatementCache) Set(accountID string, closing core.Date, payments []core.Payment, stmt core.Statement) {
	c.lru.Set(c.key(accountID, closing, payments), stmt)
}

// Invalidate drops every cached statement for an account. Called whenever a
// purchase or payment touching the account is created or deleted.
func (c *StatementCache) Invalidate(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[accountID]++
}

// CleanExpired implements the Manager's Cleaner interface.
func (c *StatementCache) CleanExpired() int {
	return c.lru.CleanExpired()
}

// Size returns the number of live entries, stale generations included
// until they expire.
func (c *StatementCache) Size() int {
	return c.lru.Size()
}

func (c *StatementCache) key(accountID string, closing core.Date, payments []core.Payment) string {
	c.mu.Lock()
	gen := c.generations[accountID]
	c.mu.Unlock()
	return fmt.Sprintf("%s|%s|%d|%x", accountID, closing, gen, paymentsHash(payments))
}

// paymentsHash fingerprints the payments snapshot that influenced a
// statement computation.
func paymentsHash(payments []core.Payment) uint64 {
	h := fnv.New64a()
	for _, p := range payments {
		fmt.Fprintf(h, "%s|%s|%d;", p.ID, p.Date, p.Amount.Cents)
	}
	return h.Sum64()
}

package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lomami/reconcile/internal/transaction"
)

// DisputeCache keeps full records for transactions currently under dispute so
// a resolve or chargeback does not need a persistence round-trip. Capacity is
// a hard bound; evicting an entry that is still disputed only costs a store
// lookup later, never correctness.
type DisputeCache struct {
	entries *lru.Cache[uint32, transaction.Transaction]
}

// New builds a cache with the given fixed capacity.
func New(capacity int) (*DisputeCache, error) {
	entries, err := lru.New[uint32, transaction.Transaction](capacity)
	if err != nil {
		return nil, err
	}
	return &DisputeCache{entries: entries}, nil
}

// Get returns the cached record for the id, marking it most recently used.
func (c *DisputeCache) Get(id uint32) (transaction.Transaction, bool) {
	return c.entries.Get(id)
}

// Add caches the record, evicting the least recently used entry when full.
func (c *DisputeCache) Add(tx transaction.Transaction) {
	c.entries.Add(tx.ID, tx)
}

// Remove drops the record once its dispute is finalized.
func (c *DisputeCache) Remove(id uint32) {
	c.entries.Remove(id)
}

// Len reports the number of cached records.
func (c *DisputeCache) Len() int {
	return c.entries.Len()
}

package store

import (
	"context"
	"errors"

	"github.com/lomami/reconcile/internal/transaction"
)

// ErrNotFound is returned when no record exists for the requested id.
var ErrNotFound = errors.New("transaction not found")

// Store is the durable source of truth for accepted deposits and withdrawals.
// Every accepted record is written here; reads happen only when a dispute
// lookup misses the in-memory cache. Any key-value backend can satisfy it.
type Store interface {
	Put(ctx context.Context, tx transaction.Transaction) error
	Get(ctx context.Context, id uint32) (transaction.Transaction, error)
	Close() error
}

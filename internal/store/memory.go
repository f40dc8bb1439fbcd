package store

import (
	"context"
	"sync"

	"github.com/lomami/reconcile/internal/transaction"
)

type memoryStore struct {
	mu      sync.RWMutex
	records map[uint32]transaction.Transaction
}

// NewMemory creates an in-memory store useful for tests and ephemeral runs.
func NewMemory() Store {
	return &memoryStore{records: make(map[uint32]transaction.Transaction)}
}

func (s *memoryStore) Put(_ context.Context, tx transaction.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[tx.ID] = tx
	return nil
}

func (s *memoryStore) Get(_ context.Context, id uint32) (transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.records[id]
	if !ok {
		return transaction.Transaction{}, ErrNotFound
	}
	return tx, nil
}

func (s *memoryStore) Close() error {
	return nil
}

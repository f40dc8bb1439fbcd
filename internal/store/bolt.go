package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/lomami/reconcile/internal/transaction"
)

const bucketName = "transactions"

type boltStore struct {
	db *bolt.DB
}

// NewBolt opens (or creates) an embedded BoltDB store at the given path and
// ensures the transactions bucket exists. This is the default backend: a
// single file, no external process.
func NewBolt(path string) (Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}

	err = db.Update(func(btx *bolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &boltStore{db: db}, nil
}

func (s *boltStore) Put(_ context.Context, tx transaction.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("encode transaction %d: %w", tx.ID, err)
	}
	return s.db.Update(func(btx *bolt.Tx) error {
		return btx.Bucket([]byte(bucketName)).Put(key(tx.ID), data)
	})
}

func (s *boltStore) Get(_ context.Context, id uint32) (transaction.Transaction, error) {
	var tx transaction.Transaction
	err := s.db.View(func(btx *bolt.Tx) error {
		data := btx.Bucket([]byte(bucketName)).Get(key(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &tx)
	})
	if err != nil {
		return transaction.Transaction{}, err
	}
	return tx, nil
}

func (s *boltStore) Close() error {
	return s.db.Close()
}

func key(id uint32) []byte {
	return []byte(strconv.FormatUint(uint64(id), 10))
}

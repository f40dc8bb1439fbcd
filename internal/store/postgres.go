package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lomami/reconcile/internal/transaction"
)

type postgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a PostgreSQL-backed store, verifying connectivity and
// ensuring the transactions table exists.
func NewPostgres(ctx context.Context, url string) (Store, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS transactions (
        id BIGINT PRIMARY KEY,
        client INTEGER NOT NULL,
        kind TEXT NOT NULL,
        amount NUMERIC(20, 4) NOT NULL
    )`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure transactions table: %w", err)
	}

	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Put(ctx context.Context, tx transaction.Transaction) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO transactions (id, client, kind, amount)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET client = $2, kind = $3, amount = $4`,
		int64(tx.ID), int32(tx.Client), string(tx.Kind), tx.Amount)
	if err != nil {
		return fmt.Errorf("persist transaction %d: %w", tx.ID, err)
	}
	return nil
}

func (s *postgresStore) Get(ctx context.Context, id uint32) (transaction.Transaction, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, client, kind, amount FROM transactions WHERE id = $1`, int64(id))

	var (
		txID   int64
		client int32
		kind   string
	)
	tx := transaction.Transaction{}
	if err := row.Scan(&txID, &client, &kind, &tx.Amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return transaction.Transaction{}, ErrNotFound
		}
		return transaction.Transaction{}, fmt.Errorf("fetch transaction %d: %w", id, err)
	}
	tx.ID = uint32(txID)
	tx.Client = uint16(client)
	tx.Kind = transaction.Kind(kind)
	return tx, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

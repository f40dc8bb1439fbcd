// Package engine drives one sequential, order-preserving pass over a record
// stream, reconciling transactions into per-account balances. No record's
// failure halts the stream; every rejection is logged with enough context to
// reproduce and the engine moves on.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lomami/reconcile/internal/account"
	"github.com/lomami/reconcile/internal/cache"
	"github.com/lomami/reconcile/internal/ledger"
	"github.com/lomami/reconcile/internal/store"
	"github.com/lomami/reconcile/internal/transaction"
)

// Source yields records one at a time and io.EOF at end of stream. A non-EOF
// error marks a single malformed record; the source stays usable.
type Source interface {
	Next() (transaction.Transaction, error)
}

// Options tunes engine behavior.
type Options struct {
	// RejectLockedDisputes refuses dispute-lifecycle records against locked
	// accounts. The default (false) still applies them, matching the behavior
	// of existing reconciliation runs.
	RejectLockedDisputes bool
}

// Summary reports the outcome of a run. Transactions counts the ledger
// entries created, i.e. the accepted deposits and withdrawals.
type Summary struct {
	Processed    int
	Skipped      int
	Accounts     int
	Transactions int
}

// Engine owns the account registry, transaction ledger, and dispute cache for
// the duration of a run. It is single-threaded by design: the outcome of
// record n may depend on records 1..n-1, so reordering is never permitted.
type Engine struct {
	registry *account.Registry
	ledger   *ledger.Ledger
	cache    *cache.DisputeCache
	store    store.Store
	logger   *slog.Logger
	opts     Options
}

// New builds an engine around the given store and dispute cache. Each engine
// carries a run id on its logger for correlating a run's records.
func New(st store.Store, disputes *cache.DisputeCache, opts Options, logger *slog.Logger) *Engine {
	return &Engine{
		registry: account.NewRegistry(),
		ledger:   ledger.New(),
		cache:    disputes,
		store:    st,
		logger:   logger.With(slog.String("run_id", uuid.NewString())),
		opts:     opts,
	}
}

// Run pulls records from the source until EOF, applying each in order. Decode
// failures and rejected records are logged and counted, never fatal.
func (e *Engine) Run(ctx context.Context, src Source) (Summary, error) {
	var summary Summary

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		tx, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			e.logger.Warn("skipping malformed record", slog.Any("error", err))
			summary.Skipped++
			continue
		}

		if err := e.Apply(ctx, tx); err != nil {
			e.logger.Warn("record rejected",
				slog.Uint64("tx", uint64(tx.ID)),
				slog.String("kind", string(tx.Kind)),
				slog.Uint64("client", uint64(tx.Client)),
				slog.Any("error", err))
			summary.Skipped++
			continue
		}
		summary.Processed++
	}

	summary.Accounts = e.registry.Len()
	summary.Transactions = e.ledger.Len()
	e.logger.Info("reconciliation complete",
		slog.Int("processed", summary.Processed),
		slog.Int("skipped", summary.Skipped),
		slog.Int("accounts", summary.Accounts),
		slog.Int("transactions", summary.Transactions))

	return summary, nil
}

// Apply reconciles a single record against the ledger and registry.
func (e *Engine) Apply(ctx context.Context, tx transaction.Transaction) error {
	switch tx.Kind {
	case transaction.Deposit:
		return e.applyDeposit(ctx, tx)
	case transaction.Withdrawal:
		return e.applyWithdrawal(ctx, tx)
	case transaction.Dispute:
		return e.applyDispute(ctx, tx)
	case transaction.Resolve:
		return e.applyResolve(ctx, tx)
	case transaction.Chargeback:
		return e.applyChargeback(ctx, tx)
	default:
		return fmt.Errorf("unknown transaction kind %q", tx.Kind)
	}
}

// Accounts returns the final registry snapshot ordered by client id.
func (e *Engine) Accounts() []account.Account {
	return e.registry.Accounts()
}

func (e *Engine) applyDeposit(ctx context.Context, tx transaction.Transaction) error {
	if e.ledger.Has(tx.ID) {
		return ledger.ErrDuplicateTransaction
	}
	if err := e.registry.Deposit(tx.Client, tx.Amount); err != nil {
		return err
	}
	e.persist(ctx, tx)
	return e.ledger.Register(tx)
}

func (e *Engine) applyWithdrawal(ctx context.Context, tx transaction.Transaction) error {
	if e.ledger.Has(tx.ID) {
		return ledger.ErrDuplicateTransaction
	}
	if err := e.registry.Withdraw(tx.Client, tx.Amount); err != nil {
		return err
	}
	e.persist(ctx, tx)
	return e.ledger.Register(tx)
}

func (e *Engine) applyDispute(ctx context.Context, tx transaction.Transaction) error {
	return e.ledger.Dispute(tx.ID, func() error {
		orig, err := e.lookup(ctx, tx.ID)
		if err != nil {
			return err
		}
		if err := e.checkLockPolicy(orig.Client); err != nil {
			return err
		}
		available := e.registry.Hold(orig.Client, orig.Amount)
		if available.IsNegative() {
			// Disputed funds were already partially spent. Surfaced, not prevented.
			e.logger.Warn("available balance negative after hold",
				slog.Uint64("client", uint64(orig.Client)),
				slog.Uint64("tx", uint64(orig.ID)),
				slog.String("available", available.String()))
		}
		e.cache.Add(orig)
		return nil
	})
}

func (e *Engine) applyResolve(ctx context.Context, tx transaction.Transaction) error {
	return e.ledger.Resolve(tx.ID, func() error {
		orig, err := e.lookup(ctx, tx.ID)
		if err != nil {
			return err
		}
		if err := e.checkLockPolicy(orig.Client); err != nil {
			return err
		}
		e.registry.Release(orig.Client, orig.Amount)
		e.cache.Remove(tx.ID)
		return nil
	})
}

func (e *Engine) applyChargeback(ctx context.Context, tx transaction.Transaction) error {
	return e.ledger.Chargeback(tx.ID, func() error {
		orig, err := e.lookup(ctx, tx.ID)
		if err != nil {
			return err
		}
		if err := e.checkLockPolicy(orig.Client); err != nil {
			return err
		}
		e.registry.Chargeback(orig.Client, orig.Amount)
		e.cache.Remove(tx.ID)
		return nil
	})
}

// lookup fetches the full record for a dispute-class reference: the dispute
// cache first, then the store. A store hit is not re-cached; the entry is
// about to be finalized or cached by the dispute path itself.
func (e *Engine) lookup(ctx context.Context, id uint32) (transaction.Transaction, error) {
	if tx, ok := e.cache.Get(id); ok {
		return tx, nil
	}
	tx, err := e.store.Get(ctx, id)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("fetch disputed transaction %d: %w", id, err)
	}
	return tx, nil
}

// persist writes an accepted record to the store. A write failure is logged
// and the in-memory effects stand; closing that gap needs a write-ahead step.
func (e *Engine) persist(ctx context.Context, tx transaction.Transaction) {
	if err := e.store.Put(ctx, tx); err != nil {
		e.logger.Error("persist transaction",
			slog.Uint64("tx", uint64(tx.ID)),
			slog.Any("error", err))
	}
}

func (e *Engine) checkLockPolicy(client uint16) error {
	if !e.opts.RejectLockedDisputes {
		return nil
	}
	if e.registry.GetOrCreate(client).Locked {
		return account.ErrAccountLocked
	}
	return nil
}

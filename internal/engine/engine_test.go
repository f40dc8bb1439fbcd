package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lomami/reconcile/internal/account"
	"github.com/lomami/reconcile/internal/cache"
	"github.com/lomami/reconcile/internal/csvio"
	"github.com/lomami/reconcile/internal/ledger"
	"github.com/lomami/reconcile/internal/logging"
	"github.com/lomami/reconcile/internal/store"
	"github.com/lomami/reconcile/internal/transaction"
)

type sourceItem struct {
	tx  transaction.Transaction
	err error
}

// sliceSource replays a fixed sequence of records (or decode errors).
type sliceSource struct {
	items []sourceItem
	pos   int
}

func (s *sliceSource) Next() (transaction.Transaction, error) {
	if s.pos >= len(s.items) {
		return transaction.Transaction{}, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	return item.tx, item.err
}

func newTestEngine(t *testing.T, cacheSize int, opts Options) *Engine {
	t.Helper()
	disputes, err := cache.New(cacheSize)
	require.NoError(t, err)
	return New(store.NewMemory(), disputes, opts, logging.Discard())
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func deposit(id uint32, client uint16, amount string) transaction.Transaction {
	return transaction.Transaction{ID: id, Client: client, Kind: transaction.Deposit, Amount: dec(amount)}
}

func withdrawal(id uint32, client uint16, amount string) transaction.Transaction {
	return transaction.Transaction{ID: id, Client: client, Kind: transaction.Withdrawal, Amount: dec(amount)}
}

func ref(kind transaction.Kind, id uint32, client uint16) transaction.Transaction {
	return transaction.Transaction{ID: id, Client: client, Kind: kind}
}

func requireAccount(t *testing.T, e *Engine, client uint16, available, held string, locked bool) {
	t.Helper()
	var found *account.Account
	for _, acct := range e.Accounts() {
		if acct.Client == client {
			a := acct
			found = &a
			break
		}
	}
	require.NotNil(t, found, "account %d not found", client)
	assert.True(t, found.Available.Equal(dec(available)), "available = %s, want %s", found.Available, available)
	assert.True(t, found.Held.Equal(dec(held)), "held = %s, want %s", found.Held, held)
	assert.True(t, found.Total().Equal(found.Available.Add(found.Held)), "total invariant broken")
	assert.Equal(t, locked, found.Locked, "locked")
}

func TestDepositThenDisputeResolve(t *testing.T) {
	e := newTestEngine(t, 16, Options{})
	ctx := context.Background()

	require.NoError(t, e.Apply(ctx, deposit(1, 1, "10.0")))
	require.NoError(t, e.Apply(ctx, deposit(2, 1, "5.0")))
	require.NoError(t, e.Apply(ctx, ref(transaction.Dispute, 1, 1)))

	requireAccount(t, e, 1, "5", "10", false)

	require.NoError(t, e.Apply(ctx, ref(transaction.Resolve, 1, 1)))
	requireAccount(t, e, 1, "15", "0", false)
}

func TestChargebackAfterSpendLeavesNegativeAvailable(t *testing.T) {
	e := newTestEngine(t, 16, Options{})
	ctx := context.Background()

	require.NoError(t, e.Apply(ctx, deposit(3, 2, "20.0")))
	require.NoError(t, e.Apply(ctx, withdrawal(4, 2, "5.0")))
	require.NoError(t, e.Apply(ctx, ref(transaction.Dispute, 3, 2)))
	require.NoError(t, e.Apply(ctx, ref(transaction.Chargeback, 3, 2)))

	requireAccount(t, e, 2, "-5", "0", true)
}

func TestWithdrawalInsufficientFunds(t *testing.T) {
	e := newTestEngine(t, 16, Options{})
	ctx := context.Background()

	require.NoError(t, e.Apply(ctx, deposit(1, 1, "3.0")))
	err := e.Apply(ctx, withdrawal(2, 1, "3.0001"))
	require.ErrorIs(t, err, account.ErrInsufficientFunds)

	requireAccount(t, e, 1, "3", "0", false)
}

func TestDuplicateTransactionIDRejected(t *testing.T) {
	e := newTestEngine(t, 16, Options{})
	ctx := context.Background()

	require.NoError(t, e.Apply(ctx, deposit(1, 1, "10")))
	require.ErrorIs(t, e.Apply(ctx, deposit(1, 1, "10")), ledger.ErrDuplicateTransaction)
	require.ErrorIs(t, e.Apply(ctx, withdrawal(1, 2, "1")), ledger.ErrDuplicateTransaction)

	requireAccount(t, e, 1, "10", "0", false)
}

func TestDisputeLifecycleRejections(t *testing.T) {
	e := newTestEngine(t, 16, Options{})
	ctx := context.Background()

	require.ErrorIs(t, e.Apply(ctx, ref(transaction.Dispute, 9, 1)), ledger.ErrUnknownTransaction)
	require.ErrorIs(t, e.Apply(ctx, ref(transaction.Resolve, 9, 1)), ledger.ErrUnknownTransaction)

	require.NoError(t, e.Apply(ctx, deposit(1, 1, "10")))
	require.ErrorIs(t, e.Apply(ctx, ref(transaction.Resolve, 1, 1)), ledger.ErrNotDisputed)
	require.ErrorIs(t, e.Apply(ctx, ref(transaction.Chargeback, 1, 1)), ledger.ErrNotDisputed)

	require.NoError(t, e.Apply(ctx, ref(transaction.Dispute, 1, 1)))
	require.ErrorIs(t, e.Apply(ctx, ref(transaction.Dispute, 1, 1)), ledger.ErrAlreadyDisputed)
	requireAccount(t, e, 1, "0", "10", false)

	require.NoError(t, e.Apply(ctx, ref(transaction.Resolve, 1, 1)))
	require.ErrorIs(t, e.Apply(ctx, ref(transaction.Dispute, 1, 1)), ledger.ErrAlreadyFinalized)
	require.ErrorIs(t, e.Apply(ctx, ref(transaction.Chargeback, 1, 1)), ledger.ErrAlreadyFinalized)
	requireAccount(t, e, 1, "10", "0", false)
}

func TestDepositToLockedAccountRejected(t *testing.T) {
	e := newTestEngine(t, 16, Options{})
	ctx := context.Background()

	require.NoError(t, e.Apply(ctx, deposit(1, 1, "10")))
	require.NoError(t, e.Apply(ctx, ref(transaction.Dispute, 1, 1)))
	require.NoError(t, e.Apply(ctx, ref(transaction.Chargeback, 1, 1)))

	require.ErrorIs(t, e.Apply(ctx, deposit(2, 1, "5")), account.ErrAccountLocked)
	require.ErrorIs(t, e.Apply(ctx, withdrawal(3, 1, "1")), account.ErrAccountLocked)
	requireAccount(t, e, 1, "0", "0", true)
}

func TestLockedDisputePolicyAllow(t *testing.T) {
	e := newTestEngine(t, 16, Options{})
	ctx := context.Background()

	require.NoError(t, e.Apply(ctx, deposit(1, 1, "10")))
	require.NoError(t, e.Apply(ctx, deposit(2, 1, "4")))
	require.NoError(t, e.Apply(ctx, ref(transaction.Dispute, 2, 1)))
	require.NoError(t, e.Apply(ctx, ref(transaction.Dispute, 1, 1)))
	require.NoError(t, e.Apply(ctx, ref(transaction.Chargeback, 1, 1)))
	requireAccount(t, e, 1, "0", "4", true)

	// default policy: late resolves still apply to the locked account
	require.NoError(t, e.Apply(ctx, ref(transaction.Resolve, 2, 1)))
	requireAccount(t, e, 1, "4", "0", true)
}

func TestLockedDisputePolicyReject(t *testing.T) {
	e := newTestEngine(t, 16, Options{RejectLockedDisputes: true})
	ctx := context.Background()

	require.NoError(t, e.Apply(ctx, deposit(1, 1, "10")))
	require.NoError(t, e.Apply(ctx, deposit(2, 1, "4")))
	require.NoError(t, e.Apply(ctx, ref(transaction.Dispute, 2, 1)))
	require.NoError(t, e.Apply(ctx, ref(transaction.Dispute, 1, 1)))
	require.NoError(t, e.Apply(ctx, ref(transaction.Chargeback, 1, 1)))

	require.ErrorIs(t, e.Apply(ctx, ref(transaction.Resolve, 2, 1)), account.ErrAccountLocked)
	requireAccount(t, e, 1, "0", "4", true)

	// the rejected resolve did not advance the entry; it stays disputed
	require.ErrorIs(t, e.Apply(ctx, ref(transaction.Dispute, 2, 1)), ledger.ErrAlreadyDisputed)
}

func TestCacheEvictionFallsBackToStore(t *testing.T) {
	// capacity 1: disputing a second transaction evicts the first
	e := newTestEngine(t, 1, Options{})
	ctx := context.Background()

	require.NoError(t, e.Apply(ctx, deposit(1, 1, "10")))
	require.NoError(t, e.Apply(ctx, deposit(2, 2, "20")))
	require.NoError(t, e.Apply(ctx, ref(transaction.Dispute, 1, 1)))
	require.NoError(t, e.Apply(ctx, ref(transaction.Dispute, 2, 2)))
	require.Equal(t, 1, e.cache.Len())

	// tx 1 was evicted; resolving it must hit the persistence gateway
	require.NoError(t, e.Apply(ctx, ref(transaction.Resolve, 1, 1)))
	requireAccount(t, e, 1, "10", "0", false)
}

// failingStore rejects writes until healed, simulating an unreachable backend.
type failingStore struct {
	inner store.Store
	fail  bool
}

func (s *failingStore) Put(ctx context.Context, tx transaction.Transaction) error {
	if s.fail {
		return errors.New("store unreachable")
	}
	return s.inner.Put(ctx, tx)
}

func (s *failingStore) Get(ctx context.Context, id uint32) (transaction.Transaction, error) {
	return s.inner.Get(ctx, id)
}

func (s *failingStore) Close() error { return s.inner.Close() }

func TestPersistFailureEffectsStand(t *testing.T) {
	st := &failingStore{inner: store.NewMemory(), fail: true}
	disputes, err := cache.New(16)
	require.NoError(t, err)
	e := New(st, disputes, Options{}, logging.Discard())
	ctx := context.Background()

	// a failed write is logged and the in-memory effects stand
	require.NoError(t, e.Apply(ctx, deposit(1, 1, "10")))
	requireAccount(t, e, 1, "10", "0", false)

	// the record never reached the store, so its dispute cannot be served
	err = e.Apply(ctx, ref(transaction.Dispute, 1, 1))
	require.ErrorIs(t, err, store.ErrNotFound)
	requireAccount(t, e, 1, "10", "0", false)

	// the rejected dispute did not advance the entry; once the store heals
	// (e.g. a backfill) the same dispute applies cleanly
	st.fail = false
	require.NoError(t, st.Put(ctx, deposit(1, 1, "10")))
	require.NoError(t, e.Apply(ctx, ref(transaction.Dispute, 1, 1)))
	requireAccount(t, e, 1, "0", "10", false)
}

func TestRunSkipsBadRecordsAndCounts(t *testing.T) {
	e := newTestEngine(t, 16, Options{})

	src := &sliceSource{items: []sourceItem{
		{tx: deposit(1, 1, "10")},
		{err: errors.New("malformed row")},
		{tx: withdrawal(2, 1, "100")}, // insufficient
		{tx: ref(transaction.Dispute, 1, 1)},
	}}

	summary, err := e.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Accounts)
	assert.Equal(t, 1, summary.Transactions)
	requireAccount(t, e, 1, "0", "10", false)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	e := newTestEngine(t, 16, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, &sliceSource{items: []sourceItem{{tx: deposit(1, 1, "1")}}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestReplayYieldsIdenticalReports(t *testing.T) {
	records := []sourceItem{
		{tx: deposit(1, 1, "10.0")},
		{tx: deposit(2, 1, "5.0")},
		{tx: ref(transaction.Dispute, 1, 1)},
		{tx: ref(transaction.Resolve, 1, 1)},
		{tx: deposit(3, 2, "20.0")},
		{tx: withdrawal(4, 2, "5.0")},
		{tx: ref(transaction.Dispute, 3, 2)},
		{tx: ref(transaction.Chargeback, 3, 2)},
		{tx: deposit(5, 3, "0.1234")},
	}

	render := func() string {
		e := newTestEngine(t, 16, Options{})
		_, err := e.Run(context.Background(), &sliceSource{items: append([]sourceItem(nil), records...)})
		require.NoError(t, err)

		var sb strings.Builder
		require.NoError(t, csvio.NewWriter(&sb).WriteAccounts(e.Accounts()))
		return sb.String()
	}

	first := render()
	second := render()
	assert.Equal(t, first, second)
	assert.Contains(t, first, "1,15.0000,0.0000,15.0000,false")
	assert.Contains(t, first, "2,-5.0000,0.0000,-5.0000,true")
	assert.Contains(t, first, "3,0.1234,0.0000,0.1234,false")
}

package ledger

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/lomami/reconcile/internal/transaction"
)

var (
	// ErrUnknownTransaction indicates a dispute-lifecycle record references an id
	// never seen as a deposit or withdrawal.
	ErrUnknownTransaction = errors.New("unknown transaction")

	// ErrDuplicateTransaction indicates a deposit or withdrawal reuses an id that
	// already has a ledger entry.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrAlreadyDisputed indicates a dispute against a transaction that is
	// already under dispute.
	ErrAlreadyDisputed = errors.New("transaction already disputed")

	// ErrNotDisputed indicates a resolve or chargeback against a transaction with
	// no open dispute.
	ErrNotDisputed = errors.New("transaction not disputed")

	// ErrAlreadyFinalized indicates the transaction's dispute was already closed;
	// resolved and charged-back entries are immutable.
	ErrAlreadyFinalized = errors.New("transaction already finalized")

	// ErrNotDisputable indicates an attempt to register a record kind that never
	// creates a ledger entry.
	ErrNotDisputable = errors.New("only deposits and withdrawals create ledger entries")
)

// Status is the dispute-lifecycle state of a ledger entry. Entries move
// Normal → Disputed → {Resolved, ChargedBack} and never regress.
type Status uint8

const (
	StatusNormal Status = iota
	StatusDisputed
	StatusResolved
	StatusChargedBack
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusDisputed:
		return "disputed"
	case StatusResolved:
		return "resolved"
	case StatusChargedBack:
		return "charged_back"
	default:
		return "unknown"
	}
}

// Entry tracks the lifecycle of one deposit or withdrawal.
type Entry struct {
	ID     uint32
	Client uint16
	Amount decimal.Decimal
	Status Status
}

// Ledger records the lifecycle status of every transaction that has ever been
// accepted as a deposit or withdrawal. Entries are never deleted; they are
// needed to reject duplicate ids and late dispute references.
type Ledger struct {
	entries map[uint32]*Entry
}

// New builds an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[uint32]*Entry)}
}

// Has reports whether an entry exists for the transaction id.
func (l *Ledger) Has(id uint32) bool {
	_, ok := l.entries[id]
	return ok
}

// Entry returns a copy of the entry for the id.
func (l *Ledger) Entry(id uint32) (Entry, bool) {
	e, ok := l.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len reports the number of entries recorded.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Register creates a Normal entry for an accepted deposit or withdrawal.
func (l *Ledger) Register(tx transaction.Transaction) error {
	if !tx.Kind.Disputable() {
		return ErrNotDisputable
	}
	if _, exists := l.entries[tx.ID]; exists {
		return ErrDuplicateTransaction
	}
	l.entries[tx.ID] = &Entry{
		ID:     tx.ID,
		Client: tx.Client,
		Amount: tx.Amount,
		Status: StatusNormal,
	}
	return nil
}

// Dispute moves a Normal entry to Disputed. The transition commits only after
// apply succeeds, so a failed balance mutation never advances the entry.
func (l *Ledger) Dispute(id uint32, apply func() error) error {
	e, ok := l.entries[id]
	if !ok {
		return ErrUnknownTransaction
	}
	switch e.Status {
	case StatusNormal:
	case StatusDisputed:
		return ErrAlreadyDisputed
	default:
		return ErrAlreadyFinalized
	}
	if err := apply(); err != nil {
		return err
	}
	e.Status = StatusDisputed
	return nil
}

// Resolve moves a Disputed entry to Resolved, releasing the held funds via
// apply. Resolved entries are terminal.
func (l *Ledger) Resolve(id uint32, apply func() error) error {
	return l.finalize(id, StatusResolved, apply)
}

// Chargeback moves a Disputed entry to ChargedBack via apply. ChargedBack
// entries are terminal and the owning account ends up locked.
func (l *Ledger) Chargeback(id uint32, apply func() error) error {
	return l.finalize(id, StatusChargedBack, apply)
}

func (l *Ledger) finalize(id uint32, target Status, apply func() error) error {
	e, ok := l.entries[id]
	if !ok {
		return ErrUnknownTransaction
	}
	switch e.Status {
	case StatusDisputed:
	case StatusNormal:
		return ErrNotDisputed
	default:
		return ErrAlreadyFinalized
	}
	if err := apply(); err != nil {
		return err
	}
	e.Status = target
	return nil
}

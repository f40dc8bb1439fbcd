package account

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when a withdrawal exceeds the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountLocked indicates the account suffered a chargeback and no longer
	// accepts balance-changing deposits or withdrawals.
	ErrAccountLocked = errors.New("account locked")
)

// Account is the ledger state for a single client. Total is derived, never
// stored: Total = Available + Held.
type Account struct {
	Client    uint16
	Available decimal.Decimal
	Held      decimal.Decimal
	Locked    bool
}

// Total returns the combined available and held funds.
func (a Account) Total() decimal.Decimal {
	return a.Available.Add(a.Held)
}

// Registry owns every account and is the sole mutator of balances. Accounts
// are created lazily on first reference and live for the run.
type Registry struct {
	accounts map[uint16]*Account
}

// NewRegistry builds an empty account registry.
func NewRegistry() *Registry {
	return &Registry{accounts: make(map[uint16]*Account)}
}

// GetOrCreate returns the account for the client, creating a zeroed one on
// first reference.
func (r *Registry) GetOrCreate(client uint16) *Account {
	acct, ok := r.accounts[client]
	if !ok {
		acct = &Account{Client: client}
		r.accounts[client] = acct
	}
	return acct
}

// Deposit credits available funds. Fails only when the account is locked.
func (r *Registry) Deposit(client uint16, amount decimal.Decimal) error {
	acct := r.GetOrCreate(client)
	if acct.Locked {
		return ErrAccountLocked
	}
	acct.Available = acct.Available.Add(amount)
	return nil
}

// Withdraw debits available funds. The account state is untouched when the
// balance cannot cover the amount or the account is locked.
func (r *Registry) Withdraw(client uint16, amount decimal.Decimal) error {
	acct := r.GetOrCreate(client)
	if acct.Locked {
		return ErrAccountLocked
	}
	if acct.Available.LessThan(amount) {
		return ErrInsufficientFunds
	}
	acct.Available = acct.Available.Sub(amount)
	return nil
}

// Hold moves disputed funds from available to held and returns the resulting
// available balance. The result may be negative when the disputed funds were
// already partially spent; callers surface that, it is not prevented here.
func (r *Registry) Hold(client uint16, amount decimal.Decimal) decimal.Decimal {
	acct := r.GetOrCreate(client)
	acct.Available = acct.Available.Sub(amount)
	acct.Held = acct.Held.Add(amount)
	return acct.Available
}

// Release returns held funds to available when a dispute resolves in the
// client's favor.
func (r *Registry) Release(client uint16, amount decimal.Decimal) {
	acct := r.GetOrCreate(client)
	acct.Held = acct.Held.Sub(amount)
	acct.Available = acct.Available.Add(amount)
}

// Chargeback withdraws held funds without restoring available and locks the
// account permanently.
func (r *Registry) Chargeback(client uint16, amount decimal.Decimal) {
	acct := r.GetOrCreate(client)
	acct.Held = acct.Held.Sub(amount)
	acct.Locked = true
}

// Len reports the number of accounts created so far.
func (r *Registry) Len() int {
	return len(r.accounts)
}

// Accounts returns a snapshot of every account ordered by client id, so two
// runs over the same input produce identical reports.
func (r *Registry) Accounts() []Account {
	out := make([]Account, 0, len(r.accounts))
	for _, acct := range r.accounts {
		out = append(out, *acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Client < out[j].Client })
	return out
}

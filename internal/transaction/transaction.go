package transaction

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DecimalPlaces is the fixed-point precision for all monetary amounts.
// Amounts are rounded to this precision at the decode boundary and rendered
// with it on output.
const DecimalPlaces = 4

// Kind identifies the record types accepted on the wire.
type Kind string

const (
	Deposit    Kind = "deposit"
	Withdrawal Kind = "withdrawal"
	Dispute    Kind = "dispute"
	Resolve    Kind = "resolve"
	Chargeback Kind = "chargeback"
)

// ParseKind converts wire text into a Kind, tolerating case and surrounding whitespace.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Deposit:
		return Deposit, nil
	case Withdrawal:
		return Withdrawal, nil
	case Dispute:
		return Dispute, nil
	case Resolve:
		return Resolve, nil
	case Chargeback:
		return Chargeback, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// CarriesAmount reports whether records of this kind bring their own amount.
// Dispute-lifecycle records reference a prior transaction and carry none.
func (k Kind) CarriesAmount() bool {
	return k == Deposit || k == Withdrawal
}

// Disputable reports whether a ledger entry is created for this kind, i.e.
// whether a later dispute may reference it.
func (k Kind) Disputable() bool {
	return k == Deposit || k == Withdrawal
}

// Transaction is a single record from the event stream. Deposits and
// withdrawals are the only kinds that are persisted and disputable; for all
// other kinds Amount is zero and ID references an earlier deposit/withdrawal.
type Transaction struct {
	ID     uint32          `json:"id"`
	Client uint16          `json:"client"`
	Kind   Kind            `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
}

// NormalizeAmount parses and validates a monetary amount for kinds that carry
// one: non-empty, strictly positive, rounded to DecimalPlaces.
func NormalizeAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("amount is required")
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	amount = amount.Round(DecimalPlaces)
	if !amount.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("amount must be positive, got %s", amount)
	}
	return amount, nil
}

package csvio

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/lomami/reconcile/internal/account"
	"github.com/lomami/reconcile/internal/transaction"
)

// Writer renders the final account report: one row per account, numeric fields
// with four fractional digits, total derived as available + held.
type Writer struct {
	csv *csv.Writer
}

// NewWriter wraps the output stream.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteAccounts writes the header followed by one row per account, in the
// order given. Callers pass a sorted snapshot so reports are reproducible.
func (w *Writer) WriteAccounts(accounts []account.Account) error {
	if err := w.csv.Write([]string{"client", "available", "held", "total", "locked"}); err != nil {
		return err
	}

	for _, acct := range accounts {
		row := []string{
			strconv.FormatUint(uint64(acct.Client), 10),
			acct.Available.StringFixed(transaction.DecimalPlaces),
			acct.Held.StringFixed(transaction.DecimalPlaces),
			acct.Total().StringFixed(transaction.DecimalPlaces),
			strconv.FormatBool(acct.Locked),
		}
		if err := w.csv.Write(row); err != nil {
			return err
		}
	}

	w.csv.Flush()
	return w.csv.Error()
}

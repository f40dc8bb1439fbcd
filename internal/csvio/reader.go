// Package csvio adapts the CSV wire format to and from domain records: a lazy
// reader that decodes one transaction per call, and a writer that renders the
// final account report.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/lomami/reconcile/internal/transaction"
)

// Reader decodes transaction records one at a time, never materializing the
// input. Fields may carry surrounding whitespace; rows for dispute-lifecycle
// records may omit the trailing amount column entirely.
type Reader struct {
	csv        *csv.Reader
	headerRead bool
}

// NewReader wraps the input stream. The first row is expected to be the
// "type,client,tx,amount" header and is skipped.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	return &Reader{csv: cr}
}

// Next returns the next record, io.EOF at end of input, or a decode error for
// a malformed row. Decode errors are per-row; the reader stays usable.
func (r *Reader) Next() (transaction.Transaction, error) {
	if !r.headerRead {
		if _, err := r.csv.Read(); err != nil {
			if err == io.EOF {
				return transaction.Transaction{}, io.EOF
			}
			return transaction.Transaction{}, fmt.Errorf("read header: %w", err)
		}
		r.headerRead = true
	}

	row, err := r.csv.Read()
	if err != nil {
		if err == io.EOF {
			return transaction.Transaction{}, io.EOF
		}
		return transaction.Transaction{}, fmt.Errorf("read row: %w", err)
	}

	return decodeRow(row)
}

func decodeRow(row []string) (transaction.Transaction, error) {
	if len(row) < 3 {
		return transaction.Transaction{}, fmt.Errorf("row has %d fields, want at least 3", len(row))
	}

	kind, err := transaction.ParseKind(row[0])
	if err != nil {
		return transaction.Transaction{}, err
	}

	client, err := strconv.ParseUint(strings.TrimSpace(row[1]), 10, 16)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("parse client id %q: %w", row[1], err)
	}

	id, err := strconv.ParseUint(strings.TrimSpace(row[2]), 10, 32)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("parse transaction id %q: %w", row[2], err)
	}

	tx := transaction.Transaction{
		ID:     uint32(id),
		Client: uint16(client),
		Kind:   kind,
	}

	if kind.CarriesAmount() {
		if len(row) < 4 {
			return transaction.Transaction{}, fmt.Errorf("%s record %d is missing its amount", kind, tx.ID)
		}
		amount, err := transaction.NormalizeAmount(row[3])
		if err != nil {
			return transaction.Transaction{}, fmt.Errorf("%s record %d: %w", kind, tx.ID, err)
		}
		tx.Amount = amount
	}

	return tx, nil
}

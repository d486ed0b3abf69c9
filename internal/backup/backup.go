// Package backup exports a user's ledger as a JSON array and replaces it from
// one.
package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"smartledger/internal/core"
)

var (
	ErrInvalidBackup = errors.New("invalid backup")
	ErrImportFailed  = errors.New("import failed")
)

// FileName is the download name of a backup taken on day.
func FileName(day time.Time) string {
	return "smart-ledger-backup-" + day.Format(core.DateLayout) + ".json"
}

// Export writes txs as an indented JSON array, untransformed.
func Export(w io.Writer, txs []core.Transaction) error {
	if txs == nil {
		txs = []core.Transaction{}
	}
	b, err := json.MarshalIndent(txs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

// record mirrors the wire form loosely so that the flag can be coerced.
type record struct {
	ID                string          `json:"id"`
	Date              json.RawMessage `json:"date"`
	Amount            json.RawMessage `json:"amount"`
	Description       string          `json:"description"`
	Kind              string          `json:"type"`
	Category          string          `json:"category"`
	IsAutoCategorized json.RawMessage `json:"isAutoCategorized"`
}

// Decode validates a backup payload and returns its transactions. Nothing is
// returned unless the whole payload is usable.
func Decode(payload []byte) ([]core.Transaction, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: expected a JSON array of transactions", ErrInvalidBackup)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}

	txs := make([]core.Transaction, 0, len(raw))
	for i, item := range raw {
		var r record
		if err := json.Unmarshal(item, &r); err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrInvalidBackup, i, err)
		}
		if i == 0 {
			if err := checkShape(r); err != nil {
				return nil, err
			}
		}
		tx, err := r.transaction()
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrInvalidBackup, i, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// checkShape is the structural check on the first element.
func checkShape(r record) error {
	var missing []string
	if r.Description == "" {
		missing = append(missing, "description")
	}
	if isFalsy(r.Amount) {
		missing = append(missing, "amount")
	}
	if isFalsy(r.Date) {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: first transaction is missing %s", ErrInvalidBackup, strings.Join(missing, ", "))
	}
	return nil
}

func (r record) transaction() (core.Transaction, error) {
	tx := core.Transaction{
		ID:                r.ID,
		Description:       r.Description,
		Kind:              core.Kind(r.Kind),
		Category:          r.Category,
		IsAutoCategorized: !isFalsy(r.IsAutoCategorized),
	}
	if k, err := core.ParseKind(r.Kind); err == nil {
		tx.Kind = k
	}
	if err := json.Unmarshal(r.Date, &tx.Date); err != nil {
		return core.Transaction{}, fmt.Errorf("date: %w", err)
	}
	if tx.Date.IsZero() {
		return core.Transaction{}, core.ErrInvalidDate
	}
	if len(r.Amount) > 0 {
		if err := json.Unmarshal(r.Amount, &tx.Amount); err != nil {
			return core.Transaction{}, fmt.Errorf("amount: %w", err)
		}
	}
	return tx, nil
}

// isFalsy reports whether a raw JSON value is absent, null, false, zero or an
// empty string.
func isFalsy(v json.RawMessage) bool {
	s := string(bytes.TrimSpace(v))
	switch s {
	case "", "null", "false", `""`:
		return true
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		f, err := n.Float64()
		return err == nil && f == 0
	}
	return false
}

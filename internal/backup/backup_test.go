package backup

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"smartledger/internal/core"
)

func TestFileName(t *testing.T) {
	got := FileName(time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC))
	if got != "smart-ledger-backup-2024-03-09.json" {
		t.Errorf("FileName() = %q", got)
	}
}

func TestExport(t *testing.T) {
	txs := []core.Transaction{{
		ID:                "a1",
		Date:              core.NewDate(2024, 3, 1),
		Amount:            core.Money{Cents: 4050},
		Description:       "Lunch",
		Kind:              core.KindExpense,
		Category:          "Food & Drink",
		IsAutoCategorized: true,
	}}

	var buf bytes.Buffer
	if err := Export(&buf, txs); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`"id": "a1"`,
		`"date": "2024-03-01"`,
		`"amount": 40.5`,
		`"type": "EXPENSE"`,
		`"isAutoCategorized": true`,
		"\n  {",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Export() output missing %q:\n%s", want, out)
		}
	}
}

func TestExport_EmptyLedger(t *testing.T) {
	var buf bytes.Buffer
	if err := Export(&buf, nil); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if buf.String() != "[]" {
		t.Errorf("Export(nil) = %q, want []", buf.String())
	}
}

func TestExportDecodeRoundTrip(t *testing.T) {
	txs := []core.Transaction{
		{ID: "1", Date: core.NewDate(2024, 2, 29), Amount: core.Money{Cents: 300000}, Description: "Salary", Kind: core.KindIncome, Category: "Salary"},
		{ID: "2", Date: core.NewDate(2024, 2, 1), Amount: core.Money{Cents: 1999}, Description: "Book", Kind: core.KindExpense, Category: "Education", IsAutoCategorized: true},
	}
	var buf bytes.Buffer
	if err := Export(&buf, txs); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	got, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != len(txs) {
		t.Fatalf("Decode() returned %d records, want %d", len(got), len(txs))
	}
	for i := range txs {
		if got[i].ID != txs[i].ID || got[i].Amount != txs[i].Amount || got[i].Date.String() != txs[i].Date.String() ||
			got[i].Kind != txs[i].Kind || got[i].Category != txs[i].Category || got[i].IsAutoCategorized != txs[i].IsAutoCategorized {
			t.Errorf("record %d = %+v, want %+v", i, got[i], txs[i])
		}
	}
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantMsg string
	}{
		{"object instead of array", `{"transactions": []}`, "JSON array"},
		{"empty payload", ``, "JSON array"},
		{"malformed array", `[{"description": "x"`, ""},
		{"first without description", `[{"amount": 10, "date": "2024-01-01"}]`, "description"},
		{"first with zero amount", `[{"description": "x", "amount": 0, "date": "2024-01-01"}]`, "amount"},
		{"first without date", `[{"description": "x", "amount": 5}]`, "date"},
		{"first missing everything", `[{}]`, "description, amount, date"},
		{"later negative amount", `[{"description": "x", "amount": 5, "date": "2024-01-01"}, {"description": "y", "amount": -2, "date": "2024-01-02"}]`, "element 1"},
		{"later bad date", `[{"description": "x", "amount": 5, "date": "2024-01-01"}, {"description": "y", "amount": 2, "date": "yesterday"}]`, "element 1"},
		{"later missing date", `[{"description": "x", "amount": 5, "date": "2024-01-01"}, {"description": "y", "amount": 2}]`, "element 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			if !errors.Is(err, ErrInvalidBackup) {
				t.Fatalf("Decode() error = %v, want ErrInvalidBackup", err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Decode() error = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestDecode_EmptyArray(t *testing.T) {
	got, err := Decode([]byte("  []\n"))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Decode([]) = %v, want empty", got)
	}
}

func TestDecode_Coercion(t *testing.T) {
	payload := `[
		{"description": "a", "amount": "12,50", "date": "2024-05-01", "type": "expense", "isAutoCategorized": 1},
		{"description": "b", "amount": 3, "date": "2024-05-02T10:00:00Z", "type": "INCOME", "isAutoCategorized": ""},
		{"description": "c", "amount": 0, "date": "2024-05-03", "type": "TRANSFER"}
	]`
	got, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got[0].Amount.Cents != 1250 || got[0].Kind != core.KindExpense || !got[0].IsAutoCategorized {
		t.Errorf("record 0 = %+v", got[0])
	}
	if got[1].Date.String() != "2024-05-02" || got[1].IsAutoCategorized {
		t.Errorf("record 1 = %+v", got[1])
	}
	if got[2].Kind != core.Kind("TRANSFER") || got[2].Amount.Cents != 0 {
		t.Errorf("record 2 = %+v", got[2])
	}
}

func TestIsFalsy(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"", true},
		{"null", true},
		{"false", true},
		{`""`, true},
		{"0", true},
		{"0.0", true},
		{"true", false},
		{"1", false},
		{`"yes"`, false},
		{`"2024-01-01"`, false},
	}
	for _, tt := range tests {
		if got := isFalsy(json.RawMessage(tt.raw)); got != tt.want {
			t.Errorf("isFalsy(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

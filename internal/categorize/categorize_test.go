package categorize

import (
	"context"
	"errors"
	"testing"
	"time"

	"smartledger/internal/core"
	"smartledger/internal/log"
)

type fakeCategorizer struct {
	label string
	err   error
	block bool
	calls int
}

func (f *fakeCategorizer) Categorize(ctx context.Context, _ Request) (string, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.label, f.err
}

func TestFallback(t *testing.T) {
	cases := []struct {
		name string
		next Categorizer
		kind core.Kind
		want string
	}{
		{"missing credentials expense", nil, core.KindExpense, "Miscellaneous"},
		{"missing credentials income", nil, core.KindIncome, "Other Income"},
		{"known label", &fakeCategorizer{label: "Groceries"}, core.KindExpense, "Groceries"},
		{"transport error", &fakeCategorizer{err: errors.New("connection refused")}, core.KindExpense, "Miscellaneous"},
		{"timeout", &fakeCategorizer{block: true}, core.KindIncome, "Other Income"},
		{"label of other kind", &fakeCategorizer{label: "Salary"}, core.KindExpense, "Miscellaneous"},
		{"label wrong case", &fakeCategorizer{label: "groceries"}, core.KindExpense, "Miscellaneous"},
		{"empty label", &fakeCategorizer{label: ""}, core.KindIncome, "Other Income"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFallback(tc.next, 20*time.Millisecond, log.Discard())
			got := f.Categorize(context.Background(), Request{Description: "x", Amount: core.Money{Cents: 100}, Kind: tc.kind})
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFallbackNilReceiver(t *testing.T) {
	var f *Fallback
	if got := f.Categorize(context.Background(), Request{Kind: core.KindExpense}); got != "Miscellaneous" {
		t.Fatalf("got %q", got)
	}
}

func TestFallbackTimeoutIsBounded(t *testing.T) {
	f := NewFallback(&fakeCategorizer{block: true}, 30*time.Millisecond, log.Discard())
	start := time.Now()
	f.Categorize(context.Background(), Request{Kind: core.KindExpense})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("categorization took %v despite timeout", elapsed)
	}
}

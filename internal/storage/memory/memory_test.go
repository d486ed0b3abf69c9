package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"smartledger/internal/core"
	"smartledger/internal/ports"
)

func sample(desc string, y, m, d int) core.Transaction {
	return core.Transaction{
		Date:        core.NewDate(y, m, d),
		Amount:      core.Money{Cents: 100},
		Description: desc,
		Kind:        core.KindExpense,
		Category:    "Groceries",
	}
}

func TestStoreListOrdering(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, tx := range []core.Transaction{
		sample("old", 2024, 1, 1),
		sample("newest", 2024, 3, 1),
		sample("mid-first", 2024, 2, 1),
		sample("mid-second", 2024, 2, 1),
	} {
		if _, err := s.CreateTransaction(ctx, "u1", tx); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.CreateTransaction(ctx, "u2", sample("other user", 2025, 1, 1)); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListTransactions(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"newest", "mid-second", "mid-first", "old"}
	if len(got) != len(want) {
		t.Fatalf("expected %d transactions, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Description != w {
			t.Fatalf("position %d: expected %q, got %q", i, w, got[i].Description)
		}
		if got[i].ID == "" {
			t.Fatalf("position %d: no id assigned", i)
		}
	}
}

func TestStoreUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	tx, _ := s.CreateTransaction(ctx, "u1", sample("a", 2024, 1, 1))

	tx.Category = "Travel"
	if err := s.UpdateTransaction(ctx, "u1", tx); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateTransaction(ctx, "u2", tx); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign user, got %v", err)
	}
	list, _ := s.ListTransactions(ctx, "u1")
	if list[0].Category != "Travel" {
		t.Fatalf("update not applied: %+v", list[0])
	}

	if err := s.DeleteTransaction(ctx, "u1", tx.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTransaction(ctx, "u1", tx.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestStoreBatchLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	txs := make([]core.Transaction, ports.MaxBatchOps+1)
	for i := range txs {
		txs[i] = sample(fmt.Sprint(i), 2024, 1, 1)
	}
	if err := s.CreateTransactions(ctx, "u1", txs); !errors.Is(err, ports.ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
	if err := s.CreateTransactions(ctx, "u1", txs[:ports.MaxBatchOps]); err != nil {
		t.Fatal(err)
	}
	list, _ := s.ListTransactions(ctx, "u1")
	if len(list) != ports.MaxBatchOps {
		t.Fatalf("expected %d stored, got %d", ports.MaxBatchOps, len(list))
	}

	ids := make([]string, 0, len(list))
	for _, tx := range list {
		ids = append(ids, tx.ID)
	}
	if err := s.DeleteTransactions(ctx, "u1", ids); err != nil {
		t.Fatal(err)
	}
	if list, _ = s.ListTransactions(ctx, "u1"); len(list) != 0 {
		t.Fatalf("expected empty ledger, got %d", len(list))
	}
}

func TestStoreUsersAndSessions(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := ports.UserRecord{User: core.User{ID: "id1", Email: "Ann@Example.com", Name: "Ann"}, PasswordHash: "h"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	dup := u
	dup.ID = "id2"
	dup.Email = "ann@example.com"
	if err := s.CreateUser(ctx, dup); !errors.Is(err, ports.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if got, err := s.UserByEmail(ctx, "ANN@example.com"); err != nil || got.ID != "id1" {
		t.Fatalf("lookup by email: %+v %v", got, err)
	}

	now := time.Now()
	_ = s.CreateSession(ctx, ports.SessionRecord{ID: "live", UserID: "id1", ExpiresAt: now.Add(time.Hour)})
	_ = s.CreateSession(ctx, ports.SessionRecord{ID: "dead", UserID: "id1", ExpiresAt: now.Add(-time.Hour)})
	n, err := s.DeleteExpiredSessions(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 purged session, got %d (err=%v)", n, err)
	}
	if _, err := s.GetSession(ctx, "dead"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expired session still present: %v", err)
	}
	if _, err := s.GetSession(ctx, "live"); err != nil {
		t.Fatalf("live session missing: %v", err)
	}
}

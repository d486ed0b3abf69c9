package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smartledger/internal/core"
)

type fakeLedger struct {
	mu   sync.Mutex
	txs  map[string][]core.Transaction
	fail bool
}

func (f *fakeLedger) load(_ context.Context, userID string) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("store unavailable")
	}
	return append([]core.Transaction(nil), f.txs[userID]...), nil
}

func (f *fakeLedger) add(userID, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs[userID] = append([]core.Transaction{{ID: id}}, f.txs[userID]...)
}

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		return s
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
	return Snapshot{}
}

func TestSubscribeDeliversInitialAndChanges(t *testing.T) {
	ledger := &fakeLedger{txs: map[string][]core.Transaction{"u1": {{ID: "a"}}}}
	hub := NewHub(ledger.load, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := hub.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if s := receive(t, ch); len(s.Transactions) != 1 || s.Transactions[0].ID != "a" {
		t.Fatalf("initial snapshot = %+v", s)
	}

	ledger.add("u1", "b")
	if err := hub.Notify(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	s := receive(t, ch)
	if len(s.Transactions) != 2 || s.Transactions[0].ID != "b" {
		t.Fatalf("change snapshot = %+v", s)
	}

	// other users' changes are not delivered
	ledger.add("u2", "z")
	_ = hub.Notify(ctx, "u2")
	select {
	case s := <-ch:
		t.Fatalf("unexpected snapshot for u1: %+v", s)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSlowConsumerSeesLatestOnly(t *testing.T) {
	ledger := &fakeLedger{txs: map[string][]core.Transaction{}}
	hub := NewHub(ledger.load, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := hub.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"1", "2", "3"} {
		ledger.add("u1", id)
		if err := hub.Notify(ctx, "u1"); err != nil {
			t.Fatal(err)
		}
	}
	s := receive(t, ch)
	if len(s.Transactions) != 3 || s.Version != 3 {
		t.Fatalf("expected latest snapshot, got version %d with %d txs", s.Version, len(s.Transactions))
	}
}

func TestCancelClosesChannel(t *testing.T) {
	ledger := &fakeLedger{txs: map[string][]core.Transaction{}}
	hub := NewHub(ledger.load, nil)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := hub.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	receive(t, ch)
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				if n := hub.Subscribers("u1"); n != 0 {
					t.Fatalf("subscriber still registered: %d", n)
				}
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestNotifyRunsHooksAndSurfacesLoadErrors(t *testing.T) {
	ledger := &fakeLedger{txs: map[string][]core.Transaction{}}
	hub := NewHub(ledger.load, nil)
	var invalidated []string
	hub.OnChange(func(userID string) { invalidated = append(invalidated, userID) })

	if err := hub.Notify(context.Background(), "u9"); err != nil {
		t.Fatalf("notify without subscribers: %v", err)
	}
	if len(invalidated) != 1 || invalidated[0] != "u9" {
		t.Fatalf("hook not run: %v", invalidated)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := hub.Subscribe(ctx, "u9"); err != nil {
		t.Fatal(err)
	}
	ledger.fail = true
	if err := hub.Notify(ctx, "u9"); err == nil {
		t.Fatal("expected load error")
	}
	if _, err := hub.Subscribe(ctx, "u9"); err == nil {
		t.Fatal("expected subscribe error")
	}
	if n := hub.Subscribers("u9"); n != 1 {
		t.Fatalf("failed subscribe left %d subscribers", n)
	}
}

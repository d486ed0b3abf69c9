// Package live pushes full ledger snapshots to subscribers whenever a user's
// ledger changes.
package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"smartledger/internal/core"
	"smartledger/internal/log"
)

// Snapshot is the complete ordered transaction set of one user.
type Snapshot struct {
	UserID       string
	Version      uint64
	Transactions []core.Transaction
	TakenAt      time.Time
}

// Loader reads the current ledger of a user, newest day first.
type Loader func(ctx context.Context, userID string) ([]core.Transaction, error)

type subscriber struct {
	ch   chan Snapshot
	last uint64
}

type Hub struct {
	mu       sync.Mutex
	load     Loader
	subs     map[string]map[*subscriber]struct{}
	versions map[string]uint64
	hooks    []func(userID string)
	logger   *log.Logger
}

func NewHub(load Loader, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Discard()
	}
	return &Hub{
		load:     load,
		subs:     make(map[string]map[*subscriber]struct{}),
		versions: make(map[string]uint64),
		logger:   logger.WithComponent(log.ComponentLive),
	}
}

// OnChange registers fn to run first on every Notify, before snapshots are
// reloaded. Used to drop cached state.
func (h *Hub) OnChange(fn func(userID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, fn)
}

// Subscribe delivers the current snapshot at once and a fresh one after each
// change. Delivery is latest-wins: a slow reader only sees the newest
// snapshot. The channel is closed after ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context, userID string) (<-chan Snapshot, error) {
	sub := &subscriber{ch: make(chan Snapshot, 1)}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	version := h.versions[userID]
	h.mu.Unlock()

	txs, err := h.load(ctx, userID)
	if err != nil {
		h.remove(userID, sub)
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	h.mu.Lock()
	h.deliverLocked(sub, Snapshot{UserID: userID, Version: version, Transactions: txs, TakenAt: time.Now()})
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.remove(userID, sub)
	}()
	return sub.ch, nil
}

func (h *Hub) remove(userID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[userID][sub]; !ok {
		return
	}
	delete(h.subs[userID], sub)
	if len(h.subs[userID]) == 0 {
		delete(h.subs, userID)
	}
	close(sub.ch)
}

// Notify signals that userID's ledger changed in the store.
func (h *Hub) Notify(ctx context.Context, userID string) error {
	h.mu.Lock()
	h.versions[userID]++
	version := h.versions[userID]
	hooks := append([]func(string){}, h.hooks...)
	listening := len(h.subs[userID]) > 0
	h.mu.Unlock()

	for _, fn := range hooks {
		fn(userID)
	}
	if !listening {
		return nil
	}

	txs, err := h.load(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to reload snapshot", log.FieldUserID, userID, "error", err)
		return fmt.Errorf("load snapshot: %w", err)
	}
	snap := Snapshot{UserID: userID, Version: version, Transactions: txs, TakenAt: time.Now()}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[userID] {
		h.deliverLocked(sub, snap)
	}
	return nil
}

// deliverLocked replaces any undelivered snapshot with snap unless snap is
// older than what the subscriber already got.
func (h *Hub) deliverLocked(sub *subscriber, snap Snapshot) {
	if snap.Version < sub.last {
		return
	}
	sub.last = snap.Version
	select {
	case sub.ch <- snap:
		return
	default:
	}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- snap:
	default:
	}
}

// Subscribers returns how many live subscriptions userID has.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// Package memory is an in-process implementation of every storage port.
// Data is lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartledger/internal/core"
	"smartledger/internal/ports"
)

type entry struct {
	tx  core.Transaction
	seq int64
}

type Store struct {
	mu       sync.Mutex
	seq      int64
	ledgers  map[string]map[string]entry // user -> id -> entry
	users    map[string]ports.UserRecord
	byEmail  map[string]string
	sessions map[string]ports.SessionRecord
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		ledgers:  make(map[string]map[string]entry),
		users:    make(map[string]ports.UserRecord),
		byEmail:  make(map[string]string),
		sessions: make(map[string]ports.SessionRecord),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// ListTransactions returns a copy of the user's ledger, newest day first and
// most recently written first within a day.
func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]entry, 0, len(s.ledgers[userID]))
	for _, e := range s.ledgers[userID] {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.tx.Date.Equal(b.tx.Date.Time) {
			return a.tx.Date.After(b.tx.Date.Time)
		}
		return a.seq > b.seq
	})
	out := make([]core.Transaction, len(entries))
	for i, e := range entries {
		out[i] = e.tx
	}
	return out, nil
}

func (s *Store) CreateTransaction(_ context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx = s.putLocked(userID, tx)
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, userID string, tx core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.ledgers[userID][tx.ID]
	if !ok {
		return fmt.Errorf("transaction %s: %w", tx.ID, ports.ErrNotFound)
	}
	e.tx = tx
	s.ledgers[userID][tx.ID] = e
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ledgers[userID][id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, ports.ErrNotFound)
	}
	delete(s.ledgers[userID], id)
	return nil
}

// DeleteTransactions removes every listed id. Unknown ids are ignored.
func (s *Store) DeleteTransactions(_ context.Context, userID string, ids []string) error {
	if len(ids) > ports.MaxBatchOps {
		return ports.ErrBatchTooLarge
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.ledgers[userID], id)
	}
	return nil
}

func (s *Store) CreateTransactions(_ context.Context, userID string, txs []core.Transaction) error {
	if len(txs) > ports.MaxBatchOps {
		return ports.ErrBatchTooLarge
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		s.putLocked(userID, tx)
	}
	return nil
}

func (s *Store) putLocked(userID string, tx core.Transaction) core.Transaction {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if s.ledgers[userID] == nil {
		s.ledgers[userID] = make(map[string]entry)
	}
	s.seq++
	s.ledgers[userID][tx.ID] = entry{tx: tx, seq: s.seq}
	return tx
}

func (s *Store) CreateUser(_ context.Context, u ports.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := s.byEmail[key]; ok {
		return fmt.Errorf("user %s: %w", u.Email, ports.ErrDuplicate)
	}
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("user %s: %w", u.ID, ports.ErrDuplicate)
	}
	s.users[u.ID] = u
	s.byEmail[key] = u.ID
	return nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (ports.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return ports.UserRecord{}, fmt.Errorf("user %s: %w", email, ports.ErrNotFound)
	}
	return s.users[id], nil
}

func (s *Store) UserByID(_ context.Context, id string) (ports.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ports.UserRecord{}, fmt.Errorf("user %s: %w", id, ports.ErrNotFound)
	}
	return u, nil
}

func (s *Store) CreateSession(_ context.Context, rec ports.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[rec.ID]; ok {
		return fmt.Errorf("session %s: %w", rec.ID, ports.ErrDuplicate)
	}
	s.sessions[rec.ID] = rec
	return nil
}

func (s *Store) GetSession(_ context.Context, id string) (ports.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return ports.SessionRecord{}, fmt.Errorf("session %s: %w", id, ports.ErrNotFound)
	}
	return rec, nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, rec := range s.sessions {
		if rec.ExpiresAt.Before(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

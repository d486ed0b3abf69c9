// Package ports declares the storage contracts the ledger depends on.
package ports

import (
	"context"
	"errors"
	"time"

	"smartledger/internal/core"
)

// MaxBatchOps is the largest number of operations one atomic batch may carry.
const MaxBatchOps = 500

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicate     = errors.New("already exists")
	ErrBatchTooLarge = errors.New("batch exceeds operation limit")
)

type (
	// UserRecord is a stored identity with its credential.
	UserRecord struct {
		core.User
		PasswordHash string
		CreatedAt    time.Time
	}

	// SessionRecord is the server side of a signed-in session.
	SessionRecord struct {
		ID        string
		UserID    string
		CreatedAt time.Time
		ExpiresAt time.Time
	}
)

// Ports for outbound adapters.
type (
	// TransactionReader returns a user's full transaction set, newest day first.
	TransactionReader interface {
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		// CreateTransaction stores tx, assigning an ID when it has none.
		CreateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error)
		// UpdateTransaction replaces a stored transaction. ErrNotFound when absent.
		UpdateTransaction(ctx context.Context, userID string, tx core.Transaction) error
		// DeleteTransaction removes one transaction. ErrNotFound when absent.
		DeleteTransaction(ctx context.Context, userID, id string) error
	}

	// BatchWriter applies up to MaxBatchOps operations atomically.
	BatchWriter interface {
		DeleteTransactions(ctx context.Context, userID string, ids []string) error
		CreateTransactions(ctx context.Context, userID string, txs []core.Transaction) error
	}

	TransactionStore interface {
		TransactionReader
		TransactionWriter
		BatchWriter
	}

	UserStore interface {
		// CreateUser fails with ErrDuplicate when the email is taken.
		CreateUser(ctx context.Context, u UserRecord) error
		UserByEmail(ctx context.Context, email string) (UserRecord, error)
		UserByID(ctx context.Context, id string) (UserRecord, error)
	}

	SessionStore interface {
		CreateSession(ctx context.Context, s SessionRecord) error
		GetSession(ctx context.Context, id string) (SessionRecord, error)
		DeleteSession(ctx context.Context, id string) error
		// DeleteExpiredSessions removes sessions that expired before now.
		DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	}

	// Store is everything a backend provides.
	Store interface {
		TransactionStore
		UserStore
		SessionStore
		Ping(ctx context.Context) error
		Close() error
	}
)

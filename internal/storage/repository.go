// Package storage persists ledgers, users and sessions in SQLite or PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"smartledger/internal/core"
	"smartledger/internal/ports"
)

type Repository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ ports.Store = (*Repository)(nil)

// NewSQLiteRepository opens (creating if needed) a SQLite database file and
// migrates it.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(DialectSQLite, dbPath)
}

// NewPostgresRepository connects to PostgreSQL and migrates the schema.
func NewPostgresRepository(dsn string) (*Repository, error) {
	return open(DialectPostgres, dsn)
}

func open(d Dialect, dsn string) (*Repository, error) {
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d, err)
	}
	if d == DialectSQLite {
		// a single writer avoids SQLITE_BUSY inside batch transactions
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, dialect: d, now: time.Now}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) q(query string) string {
	return r.dialect.Rebind(query)
}

const selectTransactions = `SELECT id, tx_date, amount_cents, description, kind, category, auto_categorized
FROM transactions WHERE user_id = ? ORDER BY tx_date DESC, created_at DESC, id`

func (r *Repository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, r.q(selectTransactions), userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx   core.Transaction
			date string
			kind string
		)
		if err := rows.Scan(&tx.ID, &date, &tx.Amount.Cents, &tx.Description, &kind, &tx.Category, &tx.IsAutoCategorized); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if tx.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		tx.Kind = core.Kind(kind)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

const insertTransaction = `INSERT INTO transactions
(id, user_id, tx_date, amount_cents, description, kind, category, auto_categorized, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repository) insert(ctx context.Context, ex execer, userID string, tx core.Transaction, at int64) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	_, err := ex.ExecContext(ctx, r.q(insertTransaction),
		tx.ID, userID, tx.Date.String(), tx.Amount.Cents, tx.Description, string(tx.Kind),
		tx.Category, boolToInt(tx.IsAutoCategorized), at, at)
	if err != nil {
		if isUniqueViolation(err) {
			return tx, fmt.Errorf("transaction %s: %w", tx.ID, ports.ErrDuplicate)
		}
		return tx, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	tx, err := r.insert(ctx, r.db, userID, tx, r.now().UnixNano())
	if err != nil {
		return tx, err
	}
	slog.DebugContext(ctx, "Transaction saved", "id", tx.ID, "user_id", userID, "amount_cents", tx.Amount.Cents)
	return tx, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, userID string, tx core.Transaction) error {
	res, err := r.db.ExecContext(ctx, r.q(`UPDATE transactions
SET tx_date = ?, amount_cents = ?, description = ?, kind = ?, category = ?, auto_categorized = ?, updated_at = ?
WHERE user_id = ? AND id = ?`),
		tx.Date.String(), tx.Amount.Cents, tx.Description, string(tx.Kind), tx.Category,
		boolToInt(tx.IsAutoCategorized), r.now().UnixNano(), userID, tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectOne(res, "transaction "+tx.ID)
}

func (r *Repository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM transactions WHERE user_id = ? AND id = ?`), userID, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOne(res, "transaction "+id)
}

// DeleteTransactions removes the listed ids in one database transaction.
func (r *Repository) DeleteTransactions(ctx context.Context, userID string, ids []string) error {
	if len(ids) > ports.MaxBatchOps {
		return ports.ErrBatchTooLarge
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, r.q(`DELETE FROM transactions WHERE user_id = ? AND id = ?`))
		if err != nil {
			return fmt.Errorf("prepare delete: %w", err)
		}
		defer stmt.Close()
		for _, id := range ids {
			if _, err := stmt.ExecContext(ctx, userID, id); err != nil {
				return fmt.Errorf("delete transaction %s: %w", id, err)
			}
		}
		return nil
	})
}

// CreateTransactions inserts txs in one database transaction. Order within the
// batch is kept for records sharing a date.
func (r *Repository) CreateTransactions(ctx context.Context, userID string, txs []core.Transaction) error {
	if len(txs) > ports.MaxBatchOps {
		return ports.ErrBatchTooLarge
	}
	base := r.now().UnixNano()
	return r.inTx(ctx, func(tx *sql.Tx) error {
		for i, t := range txs {
			if _, err := r.insert(ctx, tx, userID, t, base+int64(i)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) CreateUser(ctx context.Context, u ports.UserRecord) error {
	created := u.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	_, err := r.db.ExecContext(ctx, r.q(`INSERT INTO users (id, email, display_name, password_hash, created_at)
VALUES (?, ?, ?, ?, ?)`), u.ID, u.Email, u.Name, u.PasswordHash, created.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", u.Email, ports.ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const selectUser = `SELECT id, email, display_name, password_hash, created_at FROM users WHERE `

func (r *Repository) scanUser(row *sql.Row, key string) (ports.UserRecord, error) {
	var (
		u       ports.UserRecord
		created int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, fmt.Errorf("user %s: %w", key, ports.ErrNotFound)
		}
		return u, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = time.Unix(created, 0)
	return u, nil
}

// UserByEmail matches the email exactly; callers normalize it first.
func (r *Repository) UserByEmail(ctx context.Context, email string) (ports.UserRecord, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, r.q(selectUser+"email = ?"), email), email)
}

func (r *Repository) UserByID(ctx context.Context, id string) (ports.UserRecord, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, r.q(selectUser+"id = ?"), id), id)
}

func (r *Repository) CreateSession(ctx context.Context, s ports.SessionRecord) error {
	_, err := r.db.ExecContext(ctx, r.q(`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`),
		s.ID, s.UserID, s.CreatedAt.Unix(), s.ExpiresAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("session %s: %w", s.ID, ports.ErrDuplicate)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, id string) (ports.SessionRecord, error) {
	var (
		s                ports.SessionRecord
		created, expires int64
	)
	err := r.db.QueryRowContext(ctx, r.q(`SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?`), id).
		Scan(&s.ID, &s.UserID, &created, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, fmt.Errorf("session %s: %w", id, ports.ErrNotFound)
		}
		return s, fmt.Errorf("scan session: %w", err)
	}
	s.CreatedAt = time.Unix(created, 0)
	s.ExpiresAt = time.Unix(expires, 0)
	return s, nil
}

func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, r.q(`DELETE FROM sessions WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.q(`DELETE FROM sessions WHERE expires_at < ?`), now.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return n, nil
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ports.ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

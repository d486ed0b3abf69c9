package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"smartledger/internal/auth"
	"smartledger/internal/backup"
	"smartledger/internal/cache"
	"smartledger/internal/categorize"
	"smartledger/internal/core"
	"smartledger/internal/log"
	"smartledger/internal/ports"
)

var (
	ErrConfirmationRequired = errors.New("deletion requires confirmation")
	ErrUnauthenticated      = errors.New("not signed in")
)

var tracer = otel.Tracer("smartledger/internal/services")

// TransactionInput is what a user enters for a new transaction. The category
// is always inferred.
type TransactionInput struct {
	Date        core.Date  `json:"date"`
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
	Kind        core.Kind  `json:"type"`
}

// Ledger orchestrates every operation on a user's transactions. Reads go
// through a per-user snapshot cache that is dropped on every change.
type Ledger struct {
	store       ports.TransactionStore
	categorizer *categorize.Fallback
	importer    *backup.Importer
	notifier    ChangeNotifier
	snapshots   cache.Cache[[]core.Transaction]
	logger      *log.Logger
	stored      *log.StructuredLogger

	// generations counts invalidations per user. A load only fills the cache
	// when no invalidation happened while it ran.
	mu          sync.Mutex
	generations map[string]uint64
}

type LedgerOption func(*Ledger)

// WithNotifier sets where change notifications go. Without one, changes are
// only reflected in this Ledger's own cache.
func WithNotifier(n ChangeNotifier) LedgerOption {
	return func(l *Ledger) { l.notifier = n }
}

func WithSnapshotCache(c cache.Cache[[]core.Transaction]) LedgerOption {
	return func(l *Ledger) { l.snapshots = c }
}

func NewLedger(store ports.TransactionStore, categorizer *categorize.Fallback, importer *backup.Importer, logger *log.Logger, opts ...LedgerOption) *Ledger {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentLedger)
	l := &Ledger{
		store:       store,
		categorizer: categorizer,
		importer:    importer,
		snapshots:   cache.NewLRUCache[[]core.Transaction](256, 5*time.Minute),
		logger:      logger,
		stored:      log.NewStructuredLogger(logger),
		generations: make(map[string]uint64),
	}
	if l.importer == nil {
		l.importer = backup.NewImporter(store, backup.DefaultBatchSize, logger)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func userOf(sess *auth.Session) (string, error) {
	if sess == nil || sess.UserID() == "" {
		return "", ErrUnauthenticated
	}
	return sess.UserID(), nil
}

// Add categorizes and stores a new transaction.
func (l *Ledger) Add(ctx context.Context, sess *auth.Session, in TransactionInput) (core.Transaction, error) {
	uid, err := userOf(sess)
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		Date:        in.Date,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Kind:        in.Kind,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	tx.Category = l.categorizer.Categorize(ctx, categorize.Request{
		Description: tx.Description,
		Amount:      tx.Amount,
		Kind:        tx.Kind,
	})
	tx.IsAutoCategorized = true

	stored, err := l.store.CreateTransaction(ctx, uid, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	l.stored.LogTransactionStored(ctx, log.OpCreate, uid, stored.ID, string(stored.Kind), stored.Category, stored.Amount.Cents)
	l.changed(ctx, uid, log.OpCreate)
	return stored, nil
}

// Update replaces a stored transaction. Changing the kind resets the category
// to the new kind's default; otherwise an empty category keeps the stored one.
// A category set by hand is no longer marked auto-categorized.
func (l *Ledger) Update(ctx context.Context, sess *auth.Session, tx core.Transaction) (core.Transaction, error) {
	uid, err := userOf(sess)
	if err != nil {
		return core.Transaction{}, err
	}
	prev, err := l.find(ctx, uid, tx.ID)
	if err != nil {
		return core.Transaction{}, err
	}

	tx.Description = strings.TrimSpace(tx.Description)
	tx.Category = strings.TrimSpace(tx.Category)
	switch {
	case tx.Kind != prev.Kind:
		tx.Category = core.DefaultCategory(tx.Kind)
		tx.IsAutoCategorized = false
	case tx.Category == "" || tx.Category == prev.Category:
		tx.Category = prev.Category
		tx.IsAutoCategorized = prev.IsAutoCategorized
	default:
		tx.IsAutoCategorized = false
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	if err := l.store.UpdateTransaction(ctx, uid, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	l.stored.LogTransactionStored(ctx, log.OpUpdate, uid, tx.ID, string(tx.Kind), tx.Category, tx.Amount.Cents)
	l.changed(ctx, uid, log.OpUpdate)
	return tx, nil
}

// Delete removes one transaction. Nothing is touched unless confirmed.
func (l *Ledger) Delete(ctx context.Context, sess *auth.Session, id string, confirmed bool) error {
	uid, err := userOf(sess)
	if err != nil {
		return err
	}
	if !confirmed {
		return ErrConfirmationRequired
	}
	if err := l.store.DeleteTransaction(ctx, uid, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	l.logger.InfoContext(ctx, "Transaction deleted", log.FieldOperation, log.OpDelete, log.FieldUserID, uid, log.FieldTxID, id)
	l.changed(ctx, uid, log.OpDelete)
	return nil
}

// List returns the user's ledger newest first, narrowed by query when it is
// not blank.
func (l *Ledger) List(ctx context.Context, sess *auth.Session, query string) ([]core.Transaction, error) {
	uid, err := userOf(sess)
	if err != nil {
		return nil, err
	}
	txs, err := l.Snapshot(ctx, uid)
	if err != nil {
		return nil, err
	}
	return core.FilterTransactions(slices.Clone(txs), query), nil
}

// Groups is List bucketed by day, newest day first.
func (l *Ledger) Groups(ctx context.Context, sess *auth.Session, query string) ([]core.DayGroup, error) {
	txs, err := l.List(ctx, sess, query)
	if err != nil {
		return nil, err
	}
	return core.GroupByDate(txs), nil
}

func (l *Ledger) Report(ctx context.Context, sess *auth.Session, year, month int) (core.MonthlyReport, error) {
	uid, err := userOf(sess)
	if err != nil {
		return core.MonthlyReport{}, err
	}
	if month < 1 || month > 12 {
		return core.MonthlyReport{}, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	if year < 1 || year > 9999 {
		return core.MonthlyReport{}, fmt.Errorf("%w: year %d", core.ErrInvalidDate, year)
	}
	txs, err := l.Snapshot(ctx, uid)
	if err != nil {
		return core.MonthlyReport{}, err
	}
	return core.ComputeReport(txs, year, month), nil
}

// Export writes the user's full ledger as a backup document.
func (l *Ledger) Export(ctx context.Context, sess *auth.Session, w io.Writer) error {
	uid, err := userOf(sess)
	if err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "ledger.Export")
	defer span.End()

	txs, err := l.Snapshot(ctx, uid)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load ledger")
		return err
	}
	span.SetAttributes(attribute.Int(log.FieldCount, len(txs)))
	if err := backup.Export(w, txs); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode")
		return err
	}
	l.logger.InfoContext(ctx, "Ledger exported", log.FieldOperation, log.OpExport, log.FieldUserID, uid, log.FieldCount, len(txs))
	return nil
}

// Import validates payload and replaces the user's ledger with it. An invalid
// payload returns backup.ErrInvalidBackup and changes nothing.
func (l *Ledger) Import(ctx context.Context, sess *auth.Session, payload []byte) (backup.Result, error) {
	uid, err := userOf(sess)
	if err != nil {
		return backup.Result{}, err
	}
	txs, err := backup.Decode(payload)
	if err != nil {
		l.logger.WarnContext(ctx, "Rejected backup", log.FieldUserID, uid, "error", err)
		return backup.Result{}, err
	}
	res, err := l.importer.Replace(ctx, uid, txs)
	if res.Deleted > 0 || res.Imported > 0 || err == nil {
		l.changed(ctx, uid, log.OpImport)
	}
	return res, err
}

// Snapshot returns the cached ledger of userID, loading it from the store on
// a miss. Callers must not modify the returned slice.
func (l *Ledger) Snapshot(ctx context.Context, userID string) ([]core.Transaction, error) {
	if txs, ok := l.snapshots.Get(userID); ok {
		return txs, nil
	}
	l.mu.Lock()
	gen := l.generations[userID]
	l.mu.Unlock()

	txs, err := l.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	core.SortByDateDesc(txs)

	l.mu.Lock()
	if l.generations[userID] == gen {
		l.snapshots.Set(userID, txs)
	}
	l.mu.Unlock()
	return txs, nil
}

// Invalidate drops the cached snapshot of userID and keeps loads that started
// before the call from caching what they read.
func (l *Ledger) Invalidate(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.generations[userID]++
	l.snapshots.Delete(userID)
}

func (l *Ledger) find(ctx context.Context, userID, id string) (core.Transaction, error) {
	txs, err := l.Snapshot(ctx, userID)
	if err != nil {
		return core.Transaction{}, err
	}
	for _, tx := range txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, ports.ErrNotFound)
}

func (l *Ledger) changed(ctx context.Context, userID, reason string) {
	l.Invalidate(userID)
	if l.notifier != nil {
		l.notifier.LedgerChanged(context.WithoutCancel(ctx), userID, reason)
	}
}

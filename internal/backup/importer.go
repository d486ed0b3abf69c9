package backup

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"smartledger/internal/core"
	"smartledger/internal/log"
	"smartledger/internal/ports"
)

// DefaultBatchSize keeps each batch well below ports.MaxBatchOps.
const DefaultBatchSize = 400

var tracer = otel.Tracer("smartledger/internal/backup")

// Store is what a full replace needs from the backend.
type Store interface {
	ports.TransactionReader
	ports.BatchWriter
}

type Result struct {
	Deleted  int
	Imported int
}

type Importer struct {
	store     Store
	batchSize int
	logger    *log.Logger
	newID     func() string
}

func NewImporter(store Store, batchSize int, logger *log.Logger) *Importer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > ports.MaxBatchOps {
		batchSize = ports.MaxBatchOps
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Importer{
		store:     store,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentBackup),
		newID:     uuid.NewString,
	}
}

// Replace deletes every transaction of userID and then writes txs with fresh
// IDs, one batch at a time. Batches already committed stay committed when a
// later one fails; the returned Result says how far it got.
//
// Replace is not cancelled with ctx once it has started.
func (im *Importer) Replace(ctx context.Context, userID string, txs []core.Transaction) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracer.Start(ctx, "backup.Replace")
	defer span.End()
	span.SetAttributes(
		attribute.String(log.FieldUserID, userID),
		attribute.Int(log.FieldCount, len(txs)),
		attribute.Int(log.FieldBatch, im.batchSize),
	)

	var res Result
	fail := func(stage string, err error) (Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		im.logger.ErrorContext(ctx, "Import failed",
			"stage", stage,
			"error", err,
			log.FieldUserID, userID,
			"deleted", res.Deleted,
			"imported", res.Imported,
		)
		return res, fmt.Errorf("%w: %s after %d deleted and %d imported records: %w",
			ErrImportFailed, stage, res.Deleted, res.Imported, err)
	}

	existing, err := im.store.ListTransactions(ctx, userID)
	if err != nil {
		return fail("listing existing transactions", err)
	}
	ids := make([]string, len(existing))
	for i, tx := range existing {
		ids[i] = tx.ID
	}
	for start := 0; start < len(ids); start += im.batchSize {
		end := min(start+im.batchSize, len(ids))
		if err := im.store.DeleteTransactions(ctx, userID, ids[start:end]); err != nil {
			return fail("deleting", err)
		}
		res.Deleted += end - start
	}

	for start := 0; start < len(txs); start += im.batchSize {
		end := min(start+im.batchSize, len(txs))
		batch := make([]core.Transaction, 0, end-start)
		for _, tx := range txs[start:end] {
			tx.ID = im.newID()
			batch = append(batch, tx)
		}
		if err := im.store.CreateTransactions(ctx, userID, batch); err != nil {
			return fail("writing", err)
		}
		res.Imported += len(batch)
		im.logger.DebugContext(ctx, "Committed import batch", log.FieldUserID, userID, log.FieldCount, res.Imported)
	}

	im.logger.InfoContext(ctx, "Import completed",
		log.FieldOperation, log.OpImport,
		log.FieldUserID, userID,
		"deleted", res.Deleted,
		"imported", res.Imported,
	)
	return res, nil
}

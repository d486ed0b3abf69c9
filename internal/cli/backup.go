package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"smartledger/internal/backup"
	"smartledger/internal/log"
	"smartledger/internal/ports"
)

// BackupConfig is the parsed command line of ledger-backup.
type BackupConfig struct {
	Email  string
	Export string
	Import string
}

// ParseBackupConfig parses flags into a BackupConfig. Exactly one of -export
// and -import must be given; "-" means stdout or stdin.
func ParseBackupConfig(fs *flag.FlagSet, args []string) (BackupConfig, error) {
	var cfg BackupConfig
	fs.StringVar(&cfg.Email, "email", "", "email of the user whose ledger is exported or replaced")
	fs.StringVar(&cfg.Export, "export", "", "write the ledger to this file")
	fs.StringVar(&cfg.Import, "import", "", "replace the ledger with the records in this file")
	if err := fs.Parse(args); err != nil {
		return BackupConfig{}, err
	}

	cfg.Email = strings.ToLower(strings.TrimSpace(cfg.Email))
	if cfg.Email == "" {
		return BackupConfig{}, errors.New("-email is required")
	}
	if (cfg.Export == "") == (cfg.Import == "") {
		return BackupConfig{}, errors.New("exactly one of -export or -import is required")
	}
	return cfg, nil
}

// BackupStore is the storage the command works on.
type BackupStore interface {
	backup.Store
	UserByEmail(ctx context.Context, email string) (ports.UserRecord, error)
}

// ChangePublisher tells running servers that a ledger was replaced.
type ChangePublisher interface {
	PublishLedgerChanged(ctx context.Context, userID, reason string) error
}

// RunBackup exports or imports one user's ledger. publisher may be nil.
func RunBackup(ctx context.Context, cfg BackupConfig, store BackupStore, importer *backup.Importer, publisher ChangePublisher, stdin io.Reader, stdout io.Writer, logger *log.Logger) error {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentBackup)

	user, err := store.UserByEmail(ctx, cfg.Email)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return fmt.Errorf("no user with email %s", cfg.Email)
		}
		return fmt.Errorf("look up user: %w", err)
	}

	if cfg.Export != "" {
		return exportLedger(ctx, cfg.Export, user.ID, store, stdout, logger)
	}

	payload, err := readInput(cfg.Import, stdin)
	if err != nil {
		return err
	}
	txs, err := backup.Decode(payload)
	if err != nil {
		return err
	}
	res, err := importer.Replace(ctx, user.ID, txs)
	if res.Deleted > 0 || res.Imported > 0 {
		notifyServers(ctx, publisher, user.ID, logger)
	}
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "Ledger replaced",
		log.FieldUserID, user.ID,
		"deleted", res.Deleted,
		"imported", res.Imported)
	return nil
}

func exportLedger(ctx context.Context, path, userID string, store backup.Store, stdout io.Writer, logger *log.Logger) error {
	txs, err := store.ListTransactions(ctx, userID)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}

	var buf bytes.Buffer
	if err := backup.Export(&buf, txs); err != nil {
		return err
	}
	if path == "-" {
		_, err = buf.WriteTo(stdout)
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logger.InfoContext(ctx, "Ledger exported", log.FieldUserID, userID, "count", len(txs), "path", path)
	return nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func notifyServers(ctx context.Context, publisher ChangePublisher, userID string, logger *log.Logger) {
	if publisher == nil {
		return
	}
	if err := publisher.PublishLedgerChanged(ctx, userID, log.OpImport); err != nil {
		logger.WarnContext(ctx, "Failed to notify running servers", log.FieldUserID, userID, "error", err)
	}
}

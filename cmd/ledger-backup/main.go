// Command ledger-backup exports one user's ledger to a file or replaces it
// from one, using the same storage backend as the server.
package main

import (
	"flag"
	"fmt"
	"os"

	"smartledger/internal/amqp"
	"smartledger/internal/backup"
	"smartledger/internal/cli"
	"smartledger/internal/config"
	"smartledger/internal/log"
)

func main() {
	fs := flag.NewFlagSet("ledger-backup", flag.ExitOnError)
	bc, err := cli.ParseBackupConfig(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fs.Usage()
		os.Exit(2)
	}

	cfg, logger := cli.MustLoad()
	if err := run(cfg, bc, logger); err != nil {
		logger.Error("Backup command failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, bc cli.BackupConfig, logger *log.Logger) error {
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	result, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	var publisher cli.ChangePublisher
	if cfg.AMQPEnabled() && bc.Import != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, running servers will not refresh", "error", err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	importer := backup.NewImporter(result.Store, cfg.ImportBatchSize, logger)
	return cli.RunBackup(ctx, bc, result.Store, importer, publisher, os.Stdin, os.Stdout, logger)
}

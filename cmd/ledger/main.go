package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"smartledger/internal/amqp"
	"smartledger/internal/auth"
	"smartledger/internal/backup"
	"smartledger/internal/cache"
	"smartledger/internal/categorize"
	"smartledger/internal/cli"
	"smartledger/internal/config"
	"smartledger/internal/core"
	apphttp "smartledger/internal/http"
	"smartledger/internal/jobs"
	"smartledger/internal/live"
	"smartledger/internal/log"
	"smartledger/internal/services"
	"smartledger/internal/telemetry"
)

const serviceName = "smart-ledger"

func main() {
	cfg, logger := cli.MustLoad()
	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint, logger)
	if err != nil {
		logger.Warn("Tracing setup failed, continuing without export", "error", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("Tracing shutdown error", "error", err)
		}
	}()

	result, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}
	store := result.Store

	authSvc := auth.NewService(store, store, []byte(cfg.JWTSecret), cfg.SessionTTL, logger)

	var model categorize.Categorizer
	if cfg.CategorizationEnabled() {
		gemini, err := categorize.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("Gemini client unavailable, using default categories", "error", err)
		} else {
			model = gemini
			logger.Info("Categorization enabled", "model", cfg.GeminiModel)
		}
	} else {
		logger.Info("GEMINI_API_KEY not set, using default categories")
	}
	categorizer := categorize.NewFallback(model, cfg.CategorizeTimeout, logger)

	importer := backup.NewImporter(store, cfg.ImportBatchSize, logger)
	snapshots := cache.NewLRUCache[[]core.Transaction](1024, 10*time.Minute)
	hub := live.NewHub(store.ListTransactions, logger)

	var (
		notifier   services.ChangeNotifier = services.NewHubNotifier(hub, logger)
		amqpClient *amqp.Client
	)
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, change notifications stay local", "error", err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
			notifier = amqp.NewNotifier(amqpClient, hub.Notify, logger)
			logger.Info("AMQP change notifications enabled", "exchange", cfg.AMQPExchange)
		}
	}

	ledger := services.NewLedger(store, categorizer, importer, logger,
		services.WithNotifier(notifier),
		services.WithSnapshotCache(snapshots))
	hub.OnChange(ledger.Invalidate)

	scheduler, err := jobs.NewScheduler(cfg.SessionPurgeSchedule, authSvc, cache.Group{snapshots}, logger)
	if err != nil {
		return err
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:             ledger,
		Auth:               authSvc,
		Live:               hub,
		Ready:              store.Ping,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting smart ledger server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"amqp", amqpClient != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	if amqpClient != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeLedgerChanges(gctx, func(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
				return hub.Notify(ctx, msg.UserID)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"scadenze/internal/amqp"
	"scadenze/internal/backend"
	"scadenze/internal/cli"
	applog "scadenze/internal/log"
	"scadenze/internal/services"
	"scadenze/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentWorker)

	logger.Info("Starting scadenze-worker", "ledger", cfg.LedgerBackend)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ledgerCfg, err := backend.FromAppConfig(cfg, repo)
	if err != nil {
		logger.Error("Invalid ledger configuration", "error", err)
		os.Exit(1)
	}
	ledger, err := backend.NewFactory(logger).CreateLedger(context.Background(), ledgerCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err)
		os.Exit(1)
	}
	if ledger.Cleanup != nil {
		defer ledger.Cleanup()
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	postingWorker := worker.NewPostingWorker(services.NewPostingService(repo, ledger.Ledger), cfg.SyncBatchSize)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Postings whose ledger append failed while the worker was down.
	logger.Info("Performing startup posting check")
	if err := postingWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup posting check failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeOccurrenceDue(gctx, postingWorker.HandleOccurrenceDue)
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if err := postingWorker.ProcessPending(gctx); err != nil {
					logger.Error("Periodic ledger retry failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}

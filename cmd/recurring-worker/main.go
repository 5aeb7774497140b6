package main

import (
	"os"
	"time"

	"scadenze/internal/amqp"
	"scadenze/internal/cli"
	applog "scadenze/internal/log"
	"scadenze/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentProcessor)

	logger.Info("Starting recurring-worker")

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Due occurrences are handed to scadenze-worker over AMQP; without a
	// broker there is nobody to post them, so the worker refuses to start.
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// The server keeps its own projection cache; cursors are not part of a
	// projection, so there is nothing to invalidate from here.
	processor := services.NewRecurringProcessor(repo, amqpClient, nil)

	interval := cfg.RecurringProcessorInterval
	logger.Info("Recurring processor configured",
		"interval", interval,
		"sqlite_db", cfg.SQLiteDBPath)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	run := func(now time.Time) {
		res, err := processor.ProcessDue(ctx, now)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("Processing due occurrences failed", "error", err)
			}
			return
		}
		logger.Info("Processing complete",
			"rules", res.Rules,
			"published", res.Published,
			"skipped", res.Skipped,
			"failed", res.Failed,
			"next_check", now.Add(interval).Format("15:04:05"))
	}

	logger.Info("Running initial processing")
	run(time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				run(now)
			}
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring-worker shutdown complete")
}

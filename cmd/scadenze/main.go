package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"scadenze/internal/cache"
	"scadenze/internal/cli"
	apphttp "scadenze/internal/http"
	applog "scadenze/internal/log"
	"scadenze/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentApp)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sched := services.NewScheduleService(repo, services.ScheduleConfig{
		HorizonDays:   cfg.ForecastHorizonDays,
		MaxWindowDays: cfg.MaxWindowDays,
		CacheSize:     cfg.CacheSize,
		CacheTTL:      cfg.CacheTTL,
	}, services.SingleCurrency(cfg.ReportingCurrency))

	cacheManager := cache.NewManager()
	cacheManager.Register(sched.Cache())
	cacheManager.StartCleanup(cfg.CacheTTL)
	defer cacheManager.Stop()

	// The server only lists postings; appending is the posting worker's job.
	postings := services.NewPostingService(repo, repo)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Rules:    services.NewRuleService(repo, sched),
		Schedule: sched,
		Postings: postings,
		Ready:    repo.Ping,
	}, apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		DefaultWindowDays:  cfg.ForecastHorizonDays,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting scadenze server",
		"port", cfg.Port,
		"reporting_currency", cfg.ReportingCurrency,
		"horizon_days", cfg.ForecastHorizonDays)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

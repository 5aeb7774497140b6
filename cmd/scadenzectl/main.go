// Command scadenzectl reads the schedule straight from the SQLite store:
// projected occurrences, the forecast summary and a calendar heatmap.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"scadenze/internal/cli"
	"scadenze/internal/config"
	"scadenze/internal/core"
	applog "scadenze/internal/log"
	"scadenze/internal/services"
	"scadenze/internal/storage"
)

var (
	flagDBPath   string
	flagCurrency string
	flagFrom     string
	flagTo       string
	flagDays     int
	flagToday    string

	scheduleConfig = services.DefaultScheduleConfig()
)

var rootCmd = &cobra.Command{
	Use:           "scadenzectl",
	Short:         "Inspect recurring deadlines and the projected schedule",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	cli.LoadEnvFile()
	defaults := config.Default()
	if cfg, err := config.Load(); err == nil {
		defaults = cfg
	}
	scheduleConfig.HorizonDays = defaults.ForecastHorizonDays
	scheduleConfig.MaxWindowDays = defaults.MaxWindowDays

	// Keep the store's own logging out of the rendered output.
	applog.SetDefault(applog.New(applog.Config{Level: applog.ParseLevel("error"), Output: os.Stderr}))

	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", defaults.SQLiteDBPath, "SQLite database path")
	rootCmd.PersistentFlags().StringVar(&flagCurrency, "currency", defaults.ReportingCurrency, "Reporting currency for totals")
	rootCmd.PersistentFlags().StringVar(&flagToday, "today", "", "Reference date, YYYY-MM-DD (default: today)")
}

func openRepo() (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(flagDBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", flagDBPath, err)
	}
	return repo, nil
}

// openSchedule opens the store and the schedule service reading from it.
func openSchedule() (*storage.SQLiteRepository, *services.ScheduleService, error) {
	repo, err := openRepo()
	if err != nil {
		return nil, nil, err
	}
	return repo, services.NewScheduleService(repo, scheduleConfig, services.SingleCurrency(flagCurrency)), nil
}

func referenceDate() (core.Date, error) {
	if flagToday == "" {
		return core.Today(), nil
	}
	d, err := core.ParseDate(flagToday)
	if err != nil {
		return core.Date{}, fmt.Errorf("--today: %w", err)
	}
	return d, nil
}

// window resolves --from/--to. from defaults to the reference date, to to
// from plus defaultDays.
func window(defaultDays int) (core.Date, core.Date, error) {
	from, err := referenceDate()
	if err != nil {
		return core.Date{}, core.Date{}, err
	}
	if flagFrom != "" {
		if from, err = core.ParseDate(flagFrom); err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("--from: %w", err)
		}
	}
	to := from.AddDays(defaultDays)
	if flagTo != "" {
		if to, err = core.ParseDate(flagTo); err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("--to: %w", err)
		}
	}
	if to.Before(from) {
		return core.Date{}, core.Date{}, core.ErrReversedDateRange
	}
	return from, to, nil
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

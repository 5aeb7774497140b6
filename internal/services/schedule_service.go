package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"scadenze/internal/cache"
	"scadenze/internal/core"
	"scadenze/internal/schedule"
	"scadenze/internal/storage"
)

// ScheduleConfig tunes the schedule views.
type ScheduleConfig struct {
	HorizonDays int
	// MaxWindowDays bounds to - from for every view; 0 means unbounded.
	MaxWindowDays int
	CacheSize     int
	CacheTTL      time.Duration
}

func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{
		HorizonDays:   30,
		MaxWindowDays: 366,
		CacheSize:     64,
		CacheTTL:      5 * time.Minute,
	}
}

// ScheduleService builds schedule views from a consistent snapshot of the
// store. Merged windows are cached until the next write.
type ScheduleService struct {
	storage *storage.SQLiteRepository
	cache   *cache.LRUCache[schedule.MergeResult]
	config  ScheduleConfig
	convert schedule.Converter
}

func NewScheduleService(storage *storage.SQLiteRepository, config ScheduleConfig, convert schedule.Converter) *ScheduleService {
	if convert == nil {
		convert = schedule.IdentityConverter
	}
	return &ScheduleService{
		storage: storage,
		cache:   cache.NewLRUCache[schedule.MergeResult](config.CacheSize, config.CacheTTL),
		config:  config,
		convert: convert,
	}
}

// Cache exposes the projection cache so it can be registered for cleanup.
func (s *ScheduleService) Cache() *cache.LRUCache[schedule.MergeResult] {
	return s.cache
}

// Invalidate drops every cached window.
func (s *ScheduleService) Invalidate() {
	s.cache.Purge()
}

// snapshot loads rules, overrides, one-off items and accounts concurrently.
func (s *ScheduleService) snapshot(ctx context.Context) (schedule.MergeInput, error) {
	var in schedule.MergeInput
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rules, err := s.storage.ListActiveRules(gctx)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		in.Rules = rules
		return nil
	})
	g.Go(func() error {
		overrides, err := s.storage.ListOverrides(gctx)
		if err != nil {
			return fmt.Errorf("load overrides: %w", err)
		}
		in.Overrides = overrides
		return nil
	})
	g.Go(func() error {
		items, err := s.storage.ListOneOffs(gctx)
		if err != nil {
			return fmt.Errorf("load one-off items: %w", err)
		}
		in.OneOffs = items
		return nil
	})
	g.Go(func() error {
		accounts, err := s.storage.AccountDirectory(gctx)
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		in.Accounts = accounts
		return nil
	})

	if err := g.Wait(); err != nil {
		return schedule.MergeInput{}, err
	}
	return in, nil
}

// Schedule returns the merged schedule for [from, to].
func (s *ScheduleService) Schedule(ctx context.Context, from, to core.Date) (schedule.MergeResult, error) {
	if err := from.Validate(); err != nil {
		return schedule.MergeResult{}, fmt.Errorf("invalid from date: %w", err)
	}
	if err := to.Validate(); err != nil {
		return schedule.MergeResult{}, fmt.Errorf("invalid to date: %w", err)
	}
	if to.Before(from) {
		return schedule.MergeResult{}, core.ErrReversedDateRange
	}
	if span := from.DaysUntil(to); s.config.MaxWindowDays > 0 && span > s.config.MaxWindowDays {
		return schedule.MergeResult{}, fmt.Errorf("%w: %d days, at most %d", core.ErrWindowTooLarge, span, s.config.MaxWindowDays)
	}

	key := from.String() + ".." + to.String()
	if res, ok := s.cache.Get(key); ok {
		return res, nil
	}

	gen := s.cache.Generation()
	in, err := s.snapshot(ctx)
	if err != nil {
		return schedule.MergeResult{}, err
	}
	in.WindowStart, in.WindowEnd = from, to

	res := schedule.MergeAll(in)
	for _, f := range res.Failures {
		slog.ErrorContext(ctx, "Rule left out of schedule",
			"rule_id", f.RuleID,
			"error", f.Err)
	}

	// A write during the snapshot makes res stale; it is served but not cached.
	s.cache.SetFor(gen, key, res)
	return res, nil
}

// Forecast sums the next horizonDays of the schedule starting at today.
// A non-positive horizon uses the configured default.
func (s *ScheduleService) Forecast(ctx context.Context, today core.Date, horizonDays int) (schedule.Summary, error) {
	if horizonDays <= 0 {
		horizonDays = s.config.HorizonDays
	}
	res, err := s.Schedule(ctx, today, today.AddDays(horizonDays))
	if err != nil {
		return schedule.Summary{}, err
	}
	sum := schedule.ForecastSummary(res.Occurrences, today, horizonDays, s.convert)
	if len(sum.Unconverted) > 0 {
		slog.WarnContext(ctx, "Forecast left out unconvertible occurrences",
			"count", len(sum.Unconverted))
	}
	return sum, nil
}

// Heatmap buckets the schedule for [from, to] by display date.
func (s *ScheduleService) Heatmap(ctx context.Context, from, to core.Date) (map[core.Date]schedule.DayActivity, error) {
	res, err := s.Schedule(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return schedule.BucketByDay(res.Occurrences, from, to), nil
}

// ErrUnconvertible is returned by a SingleCurrency converter for foreign amounts.
var ErrUnconvertible = errors.New("no exchange rate")

// SingleCurrency returns a converter that passes through amounts already in
// reporting (or of unknown currency) and rejects every other currency.
func SingleCurrency(reporting string) schedule.Converter {
	reporting = strings.ToUpper(strings.TrimSpace(reporting))
	return func(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
		if currency == "" || reporting == "" || strings.EqualFold(currency, reporting) {
			return amount, nil
		}
		return decimal.Zero, fmt.Errorf("%w: %s to %s", ErrUnconvertible, currency, reporting)
	}
}

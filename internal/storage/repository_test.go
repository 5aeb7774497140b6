package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"scadenze/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "scadenze.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleRule(id string) core.RecurrenceRule {
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	return core.RecurrenceRule{
		ID:               id,
		Description:      "Rent",
		SourceAccountID:  "checking",
		Kind:             core.KindExpense,
		Amount:           decimal.RequireFromString("1200.50"),
		Category:         "housing",
		Frequency:        core.Monthly,
		Interval:         1,
		StartDate:        core.NewDate(2024, 1, 31),
		DayOfMonthAnchor: 31,
		WeekendPolicy:    core.WeekendAfter,
		NextDueDate:      core.NewDate(2024, 1, 31),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestNewSQLiteRepositoryIsReopenable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scadenze.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		if err := repo.Ping(context.Background()); err != nil {
			t.Errorf("ping #%d: %v", i, err)
		}
		repo.Close()
	}
}

func TestRuleRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rule := sampleRule("r1")
	if err := repo.CreateRule(ctx, rule); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	got, err := repo.GetRule(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if !got.Amount.Equal(rule.Amount) {
		t.Errorf("amount = %s, want %s", got.Amount, rule.Amount)
	}
	if got.StartDate != rule.StartDate || got.NextDueDate != rule.NextDueDate {
		t.Errorf("dates = %s/%s, want %s/%s", got.StartDate, got.NextDueDate, rule.StartDate, rule.NextDueDate)
	}
	if !got.EndDate.IsZero() {
		t.Errorf("open-ended rule came back with end date %s", got.EndDate)
	}
	if got.WeekendPolicy != core.WeekendAfter || got.DayOfMonthAnchor != 31 || got.Category != "housing" {
		t.Errorf("unexpected rule %+v", got)
	}
	if !got.CreatedAt.Equal(rule.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, rule.CreatedAt)
	}
}

func TestRuleNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.GetRule(ctx, "missing"); !errors.Is(err, core.ErrRuleNotFound) {
		t.Errorf("GetRule error = %v, want ErrRuleNotFound", err)
	}
	if err := repo.UpdateRule(ctx, sampleRule("missing")); !errors.Is(err, core.ErrRuleNotFound) {
		t.Errorf("UpdateRule error = %v, want ErrRuleNotFound", err)
	}
	if err := repo.DeleteRule(ctx, "missing"); !errors.Is(err, core.ErrRuleNotFound) {
		t.Errorf("DeleteRule error = %v, want ErrRuleNotFound", err)
	}
}

func TestUpdateRuleCursorAndActiveList(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a, b := sampleRule("a"), sampleRule("b")
	b.CreatedAt = b.CreatedAt.Add(time.Minute)
	for _, r := range []core.RecurrenceRule{a, b} {
		if err := repo.CreateRule(ctx, r); err != nil {
			t.Fatalf("CreateRule: %v", err)
		}
	}

	b.NextDueDate = core.NewDate(2024, 3, 31)
	b.Exhausted = true
	b.PostedThrough = core.NewDate(2024, 3, 30)
	b.Description = "ignored by cursor update"
	if err := repo.UpdateRuleCursor(ctx, b); err != nil {
		t.Fatalf("UpdateRuleCursor: %v", err)
	}

	got, err := repo.GetRule(ctx, "b")
	if err != nil {
		t.Fatalf("GetRule: %v", err)
	}
	if !got.Exhausted || got.NextDueDate != core.NewDate(2024, 3, 31) || got.PostedThrough != core.NewDate(2024, 3, 30) {
		t.Errorf("cursor not persisted: %+v", got)
	}
	if got.Description != "Rent" {
		t.Errorf("description changed to %q", got.Description)
	}

	// A definition update leaves the posted-through mark alone.
	got.Description = "Rent, new landlord"
	got.PostedThrough = core.Date{}
	if err := repo.UpdateRule(ctx, got); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}
	if got, _ = repo.GetRule(ctx, "b"); got.PostedThrough != core.NewDate(2024, 3, 30) {
		t.Errorf("PostedThrough = %v after UpdateRule", got.PostedThrough)
	}

	all, err := repo.ListRules(ctx)
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
		t.Errorf("ListRules order = %v", all)
	}

	active, err := repo.ListActiveRules(ctx)
	if err != nil {
		t.Fatalf("ListActiveRules: %v", err)
	}
	if len(active) != 1 || active[0].ID != "a" {
		t.Errorf("ListActiveRules = %v", active)
	}
}

func TestSkipToggleKeepsAmendValues(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if err := repo.CreateRule(ctx, sampleRule("r1")); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	day := core.NewDate(2024, 2, 29)
	desc := "Rent (discounted)"
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	amend := core.Override{
		RuleID:       "r1",
		OriginalDate: day,
		Date:         core.NewDate(2024, 3, 1),
		Amount:       decimal.NewNullDecimal(decimal.NewFromInt(900)),
		Description:  &desc,
		UpdatedAt:    now,
	}
	if err := repo.UpsertOverride(ctx, amend); err != nil {
		t.Fatalf("UpsertOverride: %v", err)
	}

	if err := repo.SetOverrideSkipped(ctx, "r1", day, true, now); err != nil {
		t.Fatalf("skip: %v", err)
	}
	if err := repo.SetOverrideSkipped(ctx, "r1", day, false, now); err != nil {
		t.Fatalf("unskip: %v", err)
	}

	got, err := repo.GetOverride(ctx, "r1", day)
	if err != nil {
		t.Fatalf("GetOverride: %v", err)
	}
	if got.IsSkipped {
		t.Error("override still skipped")
	}
	if !got.Amount.Valid || !got.Amount.Decimal.Equal(decimal.NewFromInt(900)) {
		t.Errorf("amount = %v, want 900", got.Amount)
	}
	if got.Description == nil || *got.Description != desc {
		t.Errorf("description = %v, want %q", got.Description, desc)
	}
	if got.Date != core.NewDate(2024, 3, 1) {
		t.Errorf("date = %s, want 2024-03-01", got.Date)
	}
}

func TestSkipWithoutAmendCreatesBareOverride(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if err := repo.CreateRule(ctx, sampleRule("r1")); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	day := core.NewDate(2024, 3, 31)
	if err := repo.SetOverrideSkipped(ctx, "r1", day, true, time.Now()); err != nil {
		t.Fatalf("SetOverrideSkipped: %v", err)
	}

	overrides, err := repo.ListRuleOverrides(ctx, "r1")
	if err != nil {
		t.Fatalf("ListRuleOverrides: %v", err)
	}
	if len(overrides) != 1 {
		t.Fatalf("got %d overrides, want 1", len(overrides))
	}
	o := overrides[0]
	if !o.IsSkipped || o.IsAmend() {
		t.Errorf("want bare skip, got %+v", o)
	}

	if err := repo.DeleteOverride(ctx, "r1", day); err != nil {
		t.Fatalf("DeleteOverride: %v", err)
	}
	if err := repo.DeleteOverride(ctx, "r1", day); !errors.Is(err, core.ErrOverrideNotFound) {
		t.Errorf("second delete error = %v, want ErrOverrideNotFound", err)
	}
}

func TestDeleteRuleRemovesOverrides(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if err := repo.CreateRule(ctx, sampleRule("r1")); err != nil {
		t.Fatalf("CreateRule: %v", err)
	}
	if err := repo.SetOverrideSkipped(ctx, "r1", core.NewDate(2024, 3, 31), true, time.Now()); err != nil {
		t.Fatalf("SetOverrideSkipped: %v", err)
	}

	if err := repo.DeleteRule(ctx, "r1"); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	all, err := repo.ListOverrides(ctx)
	if err != nil {
		t.Fatalf("ListOverrides: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("overrides left behind: %v", all)
	}
}

func TestOneOffLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	item := core.OneOffItem{
		ID:          "o1",
		Description: "Car tax",
		Amount:      decimal.RequireFromString("-180.40"),
		DueDate:     core.NewDate(2024, 1, 26),
		Status:      core.StatusUnpaid,
		AccountID:   "checking",
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.CreateOneOff(ctx, item); err != nil {
		t.Fatalf("CreateOneOff: %v", err)
	}

	paid := item.MarkPaid("savings", core.NewDate(2024, 1, 25))
	if err := repo.SettleOneOff(ctx, paid); err != nil {
		t.Fatalf("SettleOneOff: %v", err)
	}

	got, err := repo.GetOneOff(ctx, "o1")
	if err != nil {
		t.Fatalf("GetOneOff: %v", err)
	}
	if got.Status != core.StatusPaid || got.SettledAccountID != "savings" || got.SettledDate != core.NewDate(2024, 1, 25) {
		t.Errorf("unexpected settled item %+v", got)
	}
	if !got.Amount.Equal(item.Amount) {
		t.Errorf("amount = %s, want %s", got.Amount, item.Amount)
	}

	if _, err := repo.GetOneOff(ctx, "nope"); !errors.Is(err, core.ErrOneOffNotFound) {
		t.Errorf("GetOneOff error = %v, want ErrOneOffNotFound", err)
	}
	if err := repo.SettleOneOff(ctx, core.OneOffItem{ID: "nope", Status: core.StatusPaid}); !errors.Is(err, core.ErrOneOffNotFound) {
		t.Errorf("SettleOneOff error = %v, want ErrOneOffNotFound", err)
	}
}

func TestAccountDirectory(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	accounts := []core.Account{
		{ID: "checking", Label: "Checking", Currency: "EUR"},
		{ID: "brokerage", Label: "Brokerage", Currency: "USD"},
	}
	for _, a := range accounts {
		if err := repo.CreateAccount(ctx, a, time.Now()); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
	}

	dir, err := repo.AccountDirectory(ctx)
	if err != nil {
		t.Fatalf("AccountDirectory: %v", err)
	}
	if dir.Lookup("brokerage").Currency != "USD" {
		t.Errorf("brokerage = %+v", dir.Lookup("brokerage"))
	}
	if _, err := repo.GetAccount(ctx, "nope"); !errors.Is(err, core.ErrAccountNotFound) {
		t.Errorf("GetAccount error = %v, want ErrAccountNotFound", err)
	}
}

func TestRecordPostingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	p := core.Posting{
		RuleID:        "r1",
		ScheduledDate: core.NewDate(2024, 3, 31),
		Date:          core.NewDate(2024, 4, 1),
		SignedAmount:  decimal.NewFromInt(-1200),
		Description:   "Rent",
		AccountID:     "checking",
		Kind:          core.KindExpense,
		PostedAt:      time.Now(),
	}

	first, created, err := repo.RecordPosting(ctx, p)
	if err != nil {
		t.Fatalf("RecordPosting: %v", err)
	}
	if !created || first.ID == 0 {
		t.Fatalf("first record: created=%v id=%d", created, first.ID)
	}

	ref, err := repo.Append(ctx, first)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := repo.MarkPostingLedgered(ctx, first.ID, ref); err != nil {
		t.Fatalf("MarkPostingLedgered: %v", err)
	}

	second, created, err := repo.RecordPosting(ctx, p)
	if err != nil {
		t.Fatalf("RecordPosting again: %v", err)
	}
	if created {
		t.Error("duplicate posting was created")
	}
	if second.ID != first.ID || !second.IsLedgered() {
		t.Errorf("second = %+v, want ledgered row %d", second, first.ID)
	}

	list, err := repo.ListPostings(ctx, core.NewDate(2024, 4, 1), core.NewDate(2024, 4, 30))
	if err != nil {
		t.Fatalf("ListPostings: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d postings, want 1", len(list))
	}
}

func TestListUnledgeredPostings(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for i, day := range []int{1, 2, 3} {
		p := core.Posting{
			RuleID:        "r1",
			ScheduledDate: core.NewDate(2024, 4, day),
			Date:          core.NewDate(2024, 4, day),
			SignedAmount:  decimal.NewFromInt(-10),
			Description:   "Coffee",
			AccountID:     "checking",
			Kind:          core.KindExpense,
			PostedAt:      time.Now(),
		}
		stored, _, err := repo.RecordPosting(ctx, p)
		if err != nil {
			t.Fatalf("RecordPosting #%d: %v", i, err)
		}
		if day == 2 {
			if err := repo.MarkPostingLedgered(ctx, stored.ID, "mem:1"); err != nil {
				t.Fatalf("MarkPostingLedgered: %v", err)
			}
		}
	}

	pending, err := repo.ListUnledgeredPostings(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnledgeredPostings: %v", err)
	}
	if len(pending) != 2 || pending[0].ScheduledDate.Day() != 1 || pending[1].ScheduledDate.Day() != 3 {
		t.Errorf("unexpected pending postings: %+v", pending)
	}

	limited, err := repo.ListUnledgeredPostings(ctx, 1)
	if err != nil {
		t.Fatalf("ListUnledgeredPostings limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("got %d postings, want 1", len(limited))
	}
}

package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"scadenze/internal/core"
	ports "scadenze/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultSheetName is the ledger sheet base name; the posting year is
// prefixed, e.g. "2024 Scadenze".
const DefaultSheetName = "Scadenze"

// Config selects the spreadsheet and the service account used to write it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string

	// Row counts per sheet, so consecutive appends skip the column read.
	mu                 sync.Mutex
	rowCounts          map[string]cachedRows
	cacheValidDuration time.Duration
}

type cachedRows struct {
	count     int
	expiresAt time.Time
}

// Ensure interface conformance
var _ ports.Ledger = (*Client)(nil)

// New creates a Sheets ledger client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetBase string) *Client {
	if strings.TrimSpace(sheetBase) == "" {
		sheetBase = DefaultSheetName
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      strings.TrimSpace(spreadsheetID),
		sheetBase:          strings.TrimSpace(sheetBase),
		rowCounts:          make(map[string]cachedRows),
		cacheValidDuration: 5 * time.Minute,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Inline JSON wins over a file; GOOGLE_APPLICATION_CREDENTIALS is the last resort.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// Append writes the posting as a new row of the sheet for its year.
// Columns: A date, B description, C amount, D kind, E category, F account,
// G rule id, H scheduled date.
func (c *Client) Append(ctx context.Context, p core.Posting) (string, error) {
	if err := p.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.sheetBase, p.Date.Year())
	rows, err := c.rowCount(ctx, sheet)
	if err != nil {
		return "", err
	}
	nextRow := rows + 1

	rng := fmt.Sprintf("%s!A%d:H%d", sheet, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{{
		p.Date.String(),
		p.Description,
		p.SignedAmount.StringFixed(core.AmountPlaces),
		string(p.Kind),
		p.Category,
		p.AccountID,
		p.RuleID,
		p.ScheduledDate.String(),
	}}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		c.invalidateRowCount(sheet)
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}
	c.storeRowCount(sheet, nextRow)

	slog.InfoContext(ctx, "Posting appended to Google Sheets",
		"rule_id", p.RuleID,
		"scheduled_date", p.ScheduledDate,
		"range", rng)
	return rng, nil
}

// ListPostings reads the yearly sheets covering [from, to].
func (c *Client) ListPostings(ctx context.Context, from, to core.Date) ([]core.Posting, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}

	var out []core.Posting
	for year := from.Year(); year <= to.Year(); year++ {
		rng := fmt.Sprintf("%s!A:H", yearPrefixedName(c.sheetBase, year))
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rng, err)
		}
		for _, p := range parseLedgerRows(resp.Values) {
			if p.Date.Before(from) || p.Date.After(to) {
				continue
			}
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Client) rowCount(ctx context.Context, sheet string) (int, error) {
	c.mu.Lock()
	cached, ok := c.rowCounts[sheet]
	c.mu.Unlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.count, nil
	}

	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to get sheet dimensions for %s: %w", sheet, err)
	}
	c.storeRowCount(sheet, len(resp.Values))
	return len(resp.Values), nil
}

func (c *Client) storeRowCount(sheet string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rowCounts[sheet] = cachedRows{count: n, expiresAt: time.Now().Add(c.cacheValidDuration)}
}

func (c *Client) invalidateRowCount(sheet string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rowCounts, sheet)
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

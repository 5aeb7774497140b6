package sheets

import (
	"context"

	"scadenze/internal/core"
)

// Ports for outbound ledger adapters. The ledger is where posted
// occurrences end up: a Google spreadsheet, the SQLite posting table, or
// memory for tests and local runs.
type (
	LedgerWriter interface {
		Append(ctx context.Context, p core.Posting) (rowRef string, err error)
	}

	// LedgerReader lists what the ledger holds for a date range.
	LedgerReader interface {
		// ListPostings returns postings whose posted date lies in [from, to].
		ListPostings(ctx context.Context, from, to core.Date) ([]core.Posting, error)
	}

	Ledger interface {
		LedgerWriter
		LedgerReader
	}
)

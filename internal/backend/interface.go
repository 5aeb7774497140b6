package backend

import (
	"context"

	ports "scadenze/internal/sheets"
)

// CleanupFunc releases whatever a ledger holds open.
type CleanupFunc func() error

// LedgerResult holds the ledger a posting worker appends to.
type LedgerResult struct {
	Ledger  ports.LedgerWriter
	Type    LedgerType
	Cleanup CleanupFunc
}

// Factory creates the ledger selected by configuration.
type Factory interface {
	CreateLedger(ctx context.Context, config Config) (*LedgerResult, error)
}

// Config selects and configures the ledger backend.
type Config struct {
	Type LedgerType

	// SQLite keeps postings in the posting table itself; the repository is
	// opened by the caller and shared.
	SQLite ports.LedgerWriter

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// LedgerType names a ledger backend.
type LedgerType string

const (
	SQLiteLedger LedgerType = "sqlite"
	SheetsLedger LedgerType = "sheets"
	MemoryLedger LedgerType = "memory"
)

// String implements fmt.Stringer
func (lt LedgerType) String() string {
	return string(lt)
}

// IsValid returns true if the ledger type is known.
func (lt LedgerType) IsValid() bool {
	switch lt {
	case SQLiteLedger, SheetsLedger, MemoryLedger:
		return true
	default:
		return false
	}
}

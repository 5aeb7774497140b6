package backend

import (
	"context"
	"fmt"

	applog "scadenze/internal/log"
	gsheet "scadenze/internal/sheets/google"
	"scadenze/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new ledger factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentLedger),
	}
}

// CreateLedger implements Factory.CreateLedger
func (f *DefaultFactory) CreateLedger(ctx context.Context, config Config) (*LedgerResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteLedger:
		f.logger.Info("Using SQLite posting table as ledger")
		return &LedgerResult{Ledger: config.SQLite, Type: SQLiteLedger}, nil
	case SheetsLedger:
		return f.createSheetsLedger(ctx, config)
	case MemoryLedger:
		f.logger.Warn("Using in-memory ledger; postings are lost on restart")
		return &LedgerResult{Ledger: memory.New(), Type: MemoryLedger}, nil
	default:
		return nil, fmt.Errorf("unsupported ledger type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsLedger(ctx context.Context, config Config) (*LedgerResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets ledger: %w", err)
	}

	f.logger.Info("Initialized Google Sheets ledger",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)

	return &LedgerResult{Ledger: cli, Type: SheetsLedger}, nil
}

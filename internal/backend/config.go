package backend

import (
	"errors"
	"fmt"

	"scadenze/internal/config"
	ports "scadenze/internal/sheets"
)

// FromAppConfig converts the application config to a ledger config. The
// SQLite ledger appends into repo.
func FromAppConfig(appConfig *config.Config, repo ports.LedgerWriter) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	ledgerType := LedgerType(appConfig.LedgerBackend)
	if !ledgerType.IsValid() {
		return Config{}, fmt.Errorf("invalid ledger backend in config: %s", appConfig.LedgerBackend)
	}

	return Config{
		Type:   ledgerType,
		SQLite: repo,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
	}, nil
}

// Validate validates the ledger configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid ledger type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteLedger:
		if c.SQLite == nil {
			return errors.New("sqlite ledger needs an open repository")
		}
	case SheetsLedger:
		if c.GoogleSpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets ledger")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			return errors.New("either GoogleServiceAccountJSON or GoogleServiceAccountFile must be provided for sheets ledger")
		}
	case MemoryLedger:
	}

	return nil
}

// GetLedgerTypes returns all valid ledger types
func GetLedgerTypes() []LedgerType {
	return []LedgerType{SQLiteLedger, SheetsLedger, MemoryLedger}
}

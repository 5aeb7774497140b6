package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg := *Default()
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "scadenze.db")
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	tests := []struct {
		name        string
		modify      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "defaults are valid",
			modify:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "memory ledger without AMQP",
			modify:  func(c *Config) { c.LedgerBackend = LedgerMemory; c.AMQPURL = "" },
			wantErr: false,
		},
		{
			name:        "invalid port - non-numeric",
			modify:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range low",
			modify:      func(c *Config) { c.Port = "0" },
			wantErr:     true,
			errorString: "invalid port 0: must be between 1 and 65535",
		},
		{
			name:        "invalid port - out of range high",
			modify:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "invalid ledger backend",
			modify:      func(c *Config) { c.LedgerBackend = "invalid" },
			wantErr:     true,
			errorString: "invalid ledger backend 'invalid': must be one of [sqlite sheets memory]",
		},
		{
			name:        "missing database path",
			modify:      func(c *Config) { c.SQLiteDBPath = "" },
			wantErr:     true,
			errorString: "SQLite database path cannot be empty",
		},
		{
			name:        "invalid AMQP scheme",
			modify:      func(c *Config) { c.AMQPURL = "http://localhost:5672/" },
			wantErr:     true,
			errorString: "invalid AMQP URL scheme 'http': must be 'amqp' or 'amqps'",
		},
		{
			name:        "AMQP without queue",
			modify:      func(c *Config) { c.AMQPQueue = "" },
			wantErr:     true,
			errorString: "AMQP queue name cannot be empty when AMQP URL is provided",
		},
		{
			name:        "sheets ledger without spreadsheet",
			modify:      func(c *Config) { c.LedgerBackend = LedgerSheets; c.GoogleServiceAccountJSON = "{}" },
			wantErr:     true,
			errorString: "Google Spreadsheet ID is required when using sheets ledger",
		},
		{
			name:        "sheets ledger without credentials",
			modify:      func(c *Config) { c.LedgerBackend = LedgerSheets; c.GoogleSpreadsheetID = "sheet" },
			wantErr:     true,
			errorString: "must be provided for sheets ledger",
		},
		{
			name: "sheets ledger with inline credentials",
			modify: func(c *Config) {
				c.LedgerBackend = LedgerSheets
				c.GoogleSpreadsheetID = "sheet"
				c.GoogleServiceAccountJSON = "{}"
			},
			wantErr: false,
		},
		{
			name:        "sync batch size too large",
			modify:      func(c *Config) { c.SyncBatchSize = 5000 },
			wantErr:     true,
			errorString: "invalid sync batch size 5000: must be at most 1000",
		},
		{
			name:        "sync interval too short",
			modify:      func(c *Config) { c.SyncInterval = 10 * time.Millisecond },
			wantErr:     true,
			errorString: "invalid sync interval 10ms: must be at least 1 second",
		},
		{
			name:        "processor interval too long",
			modify:      func(c *Config) { c.RecurringProcessorInterval = 48 * time.Hour },
			wantErr:     true,
			errorString: "invalid recurring processor interval 48h0m0s: must be at most 24 hours",
		},
		{
			name:        "zero forecast horizon",
			modify:      func(c *Config) { c.ForecastHorizonDays = 0 },
			wantErr:     true,
			errorString: "invalid forecast horizon 0: must be between 1 and the max window (366 days)",
		},
		{
			name:        "forecast horizon past the max window",
			modify:      func(c *Config) { c.MaxWindowDays = 60; c.ForecastHorizonDays = 90 },
			wantErr:     true,
			errorString: "invalid forecast horizon 90",
		},
		{
			name:        "zero max window",
			modify:      func(c *Config) { c.MaxWindowDays = 0 },
			wantErr:     true,
			errorString: "invalid max window 0: must be between 1 and 3660 days",
		},
		{
			name:        "bad reporting currency",
			modify:      func(c *Config) { c.ReportingCurrency = "EURO" },
			wantErr:     true,
			errorString: "invalid reporting currency 'EURO'",
		},
		{
			name:        "negative cache size",
			modify:      func(c *Config) { c.CacheSize = -1 },
			wantErr:     true,
			errorString: "invalid cache size -1: must not be negative",
		},
		{
			name:        "unknown log level",
			modify:      func(c *Config) { c.LogLevel = "trace" },
			wantErr:     true,
			errorString: "invalid log level 'trace'",
		},
		{
			name: "multiple errors are collected",
			modify: func(c *Config) {
				c.Port = "abc"
				c.RateLimitPerMinute = 0
			},
			wantErr:     true,
			errorString: "invalid rate limit 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.modify(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errorString) {
				t.Errorf("Config.Validate() error = %v, want it to contain %q", err, tt.errorString)
			}
		})
	}
}

func TestConfig_ValidateServiceAccountFile(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(keyFile, []byte(`{"type":"service_account"}`), 0644); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	cfg := validConfig(t)
	cfg.LedgerBackend = LedgerSheets
	cfg.GoogleSpreadsheetID = "sheet"
	cfg.GoogleServiceAccountFile = keyFile
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with existing key file: %v", err)
	}

	cfg.GoogleServiceAccountFile = "/non/existent/sa.json"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "Google service account file does not exist") {
		t.Errorf("Validate() with missing key file: %v", err)
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SCADENZE_CONFIG", "PORT", "LEDGER_BACKEND", "SQLITE_DB_PATH", "AMQP_URL",
		"SYNC_BATCH_SIZE", "SYNC_INTERVAL", "RECURRING_PROCESSOR_INTERVAL",
		"FORECAST_HORIZON_DAYS", "MAX_WINDOW_DAYS", "REPORTING_CURRENCY", "CACHE_TTL", "CACHE_SIZE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		clearEnv(t)
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Port != "8081" {
			t.Errorf("Load() Port = %v, want 8081", cfg.Port)
		}
		if cfg.LedgerBackend != LedgerSQLite {
			t.Errorf("Load() LedgerBackend = %v, want sqlite", cfg.LedgerBackend)
		}
		if cfg.SQLiteDBPath != "./data/scadenze.db" {
			t.Errorf("Load() SQLiteDBPath = %v, want ./data/scadenze.db", cfg.SQLiteDBPath)
		}
		if cfg.RecurringProcessorInterval != time.Hour {
			t.Errorf("Load() RecurringProcessorInterval = %v, want 1h", cfg.RecurringProcessorInterval)
		}
		if cfg.ForecastHorizonDays != 30 {
			t.Errorf("Load() ForecastHorizonDays = %v, want 30", cfg.ForecastHorizonDays)
		}
		if cfg.MaxWindowDays != 366 {
			t.Errorf("Load() MaxWindowDays = %v, want 366", cfg.MaxWindowDays)
		}
	})

	t.Run("environment variables", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PORT", "9090")
		t.Setenv("LEDGER_BACKEND", "Memory")
		t.Setenv("SQLITE_DB_PATH", "/tmp/test.db")
		t.Setenv("SYNC_BATCH_SIZE", "25")
		t.Setenv("SYNC_INTERVAL", "45s")
		t.Setenv("REPORTING_CURRENCY", "usd")
		t.Setenv("CACHE_TTL", "2m")
		t.Setenv("MAX_WINDOW_DAYS", "731")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}

		if cfg.Port != "9090" {
			t.Errorf("Load() Port = %v, want 9090", cfg.Port)
		}
		if cfg.LedgerBackend != LedgerMemory {
			t.Errorf("Load() LedgerBackend = %v, want memory", cfg.LedgerBackend)
		}
		if cfg.SQLiteDBPath != "/tmp/test.db" {
			t.Errorf("Load() SQLiteDBPath = %v, want /tmp/test.db", cfg.SQLiteDBPath)
		}
		if cfg.SyncBatchSize != 25 {
			t.Errorf("Load() SyncBatchSize = %v, want 25", cfg.SyncBatchSize)
		}
		if cfg.SyncInterval != 45*time.Second {
			t.Errorf("Load() SyncInterval = %v, want 45s", cfg.SyncInterval)
		}
		if cfg.ReportingCurrency != "USD" {
			t.Errorf("Load() ReportingCurrency = %v, want USD", cfg.ReportingCurrency)
		}
		if cfg.MaxWindowDays != 731 {
			t.Errorf("Load() MaxWindowDays = %v, want 731", cfg.MaxWindowDays)
		}
		if cfg.CacheTTL != 2*time.Minute {
			t.Errorf("Load() CacheTTL = %v, want 2m", cfg.CacheTTL)
		}
	})

	t.Run("invalid environment variables use defaults", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SYNC_BATCH_SIZE", "invalid")
		t.Setenv("SYNC_INTERVAL", "invalid")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.SyncBatchSize != 10 {
			t.Errorf("Load() SyncBatchSize = %v, want 10 (default for invalid input)", cfg.SyncBatchSize)
		}
		if cfg.SyncInterval != 30*time.Second {
			t.Errorf("Load() SyncInterval = %v, want 30s (default for invalid input)", cfg.SyncInterval)
		}
	})

	t.Run("toml file with env override", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "scadenze.toml")
		content := `
port = "7070"
ledger_backend = "memory"
forecast_horizon_days = 90
cache_ttl = "10m"
recurring_processor_interval = "15m"
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv("SCADENZE_CONFIG", path)
		t.Setenv("PORT", "6060")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Port != "6060" {
			t.Errorf("Port = %v, want env override 6060", cfg.Port)
		}
		if cfg.LedgerBackend != LedgerMemory {
			t.Errorf("LedgerBackend = %v, want memory", cfg.LedgerBackend)
		}
		if cfg.ForecastHorizonDays != 90 {
			t.Errorf("ForecastHorizonDays = %v, want 90", cfg.ForecastHorizonDays)
		}
		if cfg.CacheTTL != 10*time.Minute {
			t.Errorf("CacheTTL = %v, want 10m", cfg.CacheTTL)
		}
		if cfg.RecurringProcessorInterval != 15*time.Minute {
			t.Errorf("RecurringProcessorInterval = %v, want 15m", cfg.RecurringProcessorInterval)
		}
		if cfg.AMQPQueue != "occurrence_due" {
			t.Errorf("AMQPQueue = %v, want default kept", cfg.AMQPQueue)
		}
	})

	t.Run("broken toml file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "broken.toml")
		if err := os.WriteFile(path, []byte("port = \n"), 0644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv("SCADENZE_CONFIG", path)

		if _, err := Load(); err == nil {
			t.Error("Load() should fail on a malformed config file")
		}
	})

	t.Run("missing toml file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("SCADENZE_CONFIG", filepath.Join(t.TempDir(), "absent.toml"))
		if _, err := Load(); err == nil {
			t.Error("Load() should fail when SCADENZE_CONFIG points nowhere")
		}
	})
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"

	"moneymate/internal/currency"
)

type Config struct {
	// HTTP Server
	Port string `env:"PORT" envDefault:"8081"`

	// Backend selection: sqlite or memory
	DataBackend  string `env:"DATA_BACKEND" envDefault:"sqlite"`
	SQLiteDBPath string `env:"SQLITE_DB_PATH" envDefault:"./data/moneymate.db"`
	// Optional seed file for the memory backend
	MemorySeedFile string `env:"MEMORY_SEED_FILE"`

	// AMQP; an empty URL disables publishing
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"moneymate"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"sync_transactions"`

	// Google Sheets export; an empty spreadsheet ID disables it
	GoogleSpreadsheetID      string `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName          string `env:"GOOGLE_SHEET_NAME" envDefault:"Transactions"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`

	// Worker
	SyncBatchSize  int           `env:"SYNC_BATCH_SIZE" envDefault:"10"`
	SyncInterval   time.Duration `env:"SYNC_INTERVAL" envDefault:"30s"`
	SyncMaxRetries int           `env:"SYNC_MAX_RETRIES" envDefault:"3"`

	// Currency
	CurrencyAPIURL       string        `env:"CURRENCY_API_URL" envDefault:"https://api.frankfurter.app/"`
	CurrencyCacheTTL     time.Duration `env:"CURRENCY_CACHE_TTL" envDefault:"1h"`
	CurrencyHTTPTimeout  time.Duration `env:"CURRENCY_HTTP_TIMEOUT" envDefault:"10s"`
	CurrencyAssumeOnline string        `env:"CURRENCY_ASSUME_ONLINE"`
	RateRefreshInterval  time.Duration `env:"RATE_REFRESH_INTERVAL" envDefault:"1h"`
	DisplayCurrency      string        `env:"DISPLAY_CURRENCY" envDefault:"IDR"`

	AllowNegativeBalance bool `env:"ALLOW_NEGATIVE_BALANCE" envDefault:"false"`

	// Rate limiting for mutating requests
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config. Unparseable values are
// reported here; range checks are left to Validate.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.DataBackend = strings.ToLower(strings.TrimSpace(cfg.DataBackend))
	cfg.DisplayCurrency = currency.Normalize(cfg.DisplayCurrency)
	return cfg, nil
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool { return strings.TrimSpace(c.AMQPURL) != "" }

// SheetsEnabled reports whether the spreadsheet export is configured.
func (c *Config) SheetsEnabled() bool { return strings.TrimSpace(c.GoogleSpreadsheetID) != "" }

// AssumeOnline returns the forced connectivity answer for the rate client.
// ok is false when CURRENCY_ASSUME_ONLINE is unset and connectivity should be
// probed instead.
func (c *Config) AssumeOnline() (online, ok bool) {
	v := strings.TrimSpace(c.CurrencyAssumeOnline)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"sqlite", "memory"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPEnabled() {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SheetsEnabled() {
		if strings.TrimSpace(c.GoogleSheetName) == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	// Validate worker configuration
	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	if c.SyncMaxRetries < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync max retries %d: must be at least 1", c.SyncMaxRetries))
	}

	// Currency
	if u, err := url.Parse(c.CurrencyAPIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid currency API URL '%s': must be an absolute http(s) URL", c.CurrencyAPIURL))
	}
	if c.CurrencyCacheTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid currency cache TTL %v: must be at least 1 minute", c.CurrencyCacheTTL))
	}
	if c.CurrencyHTTPTimeout <= 0 || c.CurrencyHTTPTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid currency HTTP timeout %v: must be between 0 and 1 minute", c.CurrencyHTTPTimeout))
	}
	if c.RateRefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rate refresh interval %v: must be at least 1 minute", c.RateRefreshInterval))
	}
	if v := strings.TrimSpace(c.CurrencyAssumeOnline); v != "" {
		if _, err := strconv.ParseBool(v); err != nil {
			errors = append(errors, fmt.Sprintf("invalid CURRENCY_ASSUME_ONLINE '%s': must be a boolean", v))
		}
	}
	if !currency.IsSupported(c.DisplayCurrency) {
		errors = append(errors, fmt.Sprintf("unsupported display currency '%s'", c.DisplayCurrency))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

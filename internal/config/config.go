package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"bilancio/internal/budget"
	"bilancio/internal/log"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

var validBackends = []string{BackendMemory, BackendSQLite}

type Config struct {
	// HTTP Server
	Port string

	// Record store
	DataBackend   string
	DataDirectory string
	SQLiteDBPath  string

	// AMQP; an empty URL disables publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets report export; an empty spreadsheet id disables it.
	GoogleSpreadsheetID   string
	GoogleReportSheetName string

	LogLevel  string
	LogFormat string

	// Aggregation policy, overridable by the policy file.
	BalanceTolerance int64
	TagPrecedence    string
	BudgetTimezone   string
	LockWindow       time.Duration
	RecalcDebounce   time.Duration
	// RecalcInterval schedules a worker recalculation for missed messages;
	// zero disables it.
	RecalcInterval time.Duration

	AggregationWorkers int
	CurrencyCacheSize  int
	CurrencyCacheTTL   time.Duration

	PolicyFile string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:   getEnv("DATA_BACKEND", BackendMemory),
		DataDirectory: getEnv("DATA_DIRECTORY", "data"),
		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/bilancio.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "bilancio"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "journal_appended"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleReportSheetName: getEnv("GOOGLE_REPORT_SHEET_NAME", "Bilancio"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", log.FormatText),

		BalanceTolerance: int64(getEnvInt("BALANCE_TOLERANCE", 0)),
		TagPrecedence:    getEnv("TAG_PRECEDENCE", string(budget.BlacklistWins)),
		BudgetTimezone:   getEnv("BUDGET_TIMEZONE", "UTC"),
		LockWindow:       getEnvDuration("LOCK_WINDOW", 5*time.Second),
		RecalcDebounce:   getEnvDuration("RECALC_DEBOUNCE", 2*time.Second),
		RecalcInterval:   getEnvDuration("RECALC_INTERVAL", 15*time.Minute),

		AggregationWorkers: getEnvInt("AGGREGATION_WORKERS", 4),
		CurrencyCacheSize:  getEnvInt("CURRENCY_CACHE_SIZE", 256),
		CurrencyCacheTTL:   getEnvDuration("CURRENCY_CACHE_TTL", 10*time.Minute),

		PolicyFile: getEnv("POLICY_FILE", ""),
	}
}

// policy is the layout of the TOML policy file.
type policy struct {
	BalanceTolerance int64  `toml:"balance_tolerance"`
	TagPrecedence    string `toml:"tag_precedence"`
	BudgetTimezone   string `toml:"budget_timezone"`
	LockWindow       string `toml:"lock_window"`
	RecalcDebounce   string `toml:"recalc_debounce"`
}

// ApplyPolicyFile overlays the keys present in the TOML file at path. Keys
// the file does not define keep their current value; unknown keys are an
// error.
func (c *Config) ApplyPolicyFile(path string) error {
	var p policy
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return fmt.Errorf("read policy file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("policy file %s: unknown keys %s", path, strings.Join(keys, ", "))
	}

	if md.IsDefined("balance_tolerance") {
		c.BalanceTolerance = p.BalanceTolerance
	}
	if md.IsDefined("tag_precedence") {
		c.TagPrecedence = p.TagPrecedence
	}
	if md.IsDefined("budget_timezone") {
		c.BudgetTimezone = p.BudgetTimezone
	}
	if md.IsDefined("lock_window") {
		d, err := time.ParseDuration(p.LockWindow)
		if err != nil {
			return fmt.Errorf("policy file %s: lock_window: %w", path, err)
		}
		c.LockWindow = d
	}
	if md.IsDefined("recalc_debounce") {
		d, err := time.ParseDuration(p.RecalcDebounce)
		if err != nil {
			return fmt.Errorf("policy file %s: recalc_debounce: %w", path, err)
		}
		c.RecalcDebounce = d
	}
	return nil
}

// Location returns the time zone budget periods are computed in.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.BudgetTimezone)
}

// Precedence returns the configured tag precedence.
func (c *Config) Precedence() (budget.TagPrecedence, error) {
	return budget.ParseTagPrecedence(c.TagPrecedence)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
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

	if _, err := log.ParseFormat(c.LogFormat); err != nil {
		errors = append(errors, err.Error())
	}

	if c.BalanceTolerance < 0 {
		errors = append(errors, fmt.Sprintf("invalid balance tolerance %d: must not be negative", c.BalanceTolerance))
	}
	if _, err := c.Precedence(); err != nil {
		errors = append(errors, err.Error())
	}
	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid budget timezone '%s': %v", c.BudgetTimezone, err))
	}
	if c.LockWindow <= 0 {
		errors = append(errors, fmt.Sprintf("invalid lock window %v: must be positive", c.LockWindow))
	}
	if c.RecalcDebounce < 0 || c.RecalcDebounce > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recalc debounce %v: must be between 0 and 1 hour", c.RecalcDebounce))
	}
	if c.RecalcInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid recalc interval %v: must not be negative", c.RecalcInterval))
	}
	if c.AggregationWorkers < 1 || c.AggregationWorkers > 256 {
		errors = append(errors, fmt.Sprintf("invalid aggregation workers %d: must be between 1 and 256", c.AggregationWorkers))
	}
	if c.CurrencyCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid currency cache size %d: must be at least 1", c.CurrencyCacheSize))
	}
	if c.CurrencyCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid currency cache TTL %v: must be at least 1 second", c.CurrencyCacheTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

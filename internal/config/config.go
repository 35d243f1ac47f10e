package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is shared by every environment override
const EnvPrefix = "TIMELEDGER_"

type Config struct {
	// Database settings
	Database DatabaseConfig `yaml:"database"`

	// HTTP API settings
	Server ServerConfig `yaml:"server"`

	// Invoice settings
	Invoice InvoiceConfig `yaml:"invoice"`

	// Logging settings
	Log LogConfig `yaml:"log"`

	// User info for invoices and the CLI identity
	User UserConfig `yaml:"user"`

	// Timezone that defines calendar days
	Timezone string `yaml:"timezone" env:"TIMELEDGER_TIMEZONE" env-description:"IANA timezone for work dates"`
}

type DatabaseConfig struct {
	Path        string        `yaml:"path" env:"TIMELEDGER_DB_PATH" env-description:"Path to the SQLite database"`
	Driver      string        `yaml:"driver" env:"TIMELEDGER_DB_DRIVER" env-description:"sqlcipher or sqlite"`
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"TIMELEDGER_DB_BUSY_TIMEOUT" env-description:"How long writers wait for the lock"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr" env:"TIMELEDGER_SERVER_ADDR" env-description:"HTTP listen address"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"TIMELEDGER_SERVER_READ_TIMEOUT" env-description:"HTTP read timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"TIMELEDGER_SERVER_WRITE_TIMEOUT" env-description:"HTTP write timeout"`
}

type InvoiceConfig struct {
	DefaultDueDays int    `yaml:"default_due_days" env:"TIMELEDGER_INVOICE_DUE_DAYS" env-description:"Days until an invoice is due"`
	DefaultTaxRate string `yaml:"default_tax_rate" env:"TIMELEDGER_INVOICE_TAX_RATE" env-description:"Tax percentage applied to new invoices"`
	LineItems      string `yaml:"line_items" env:"TIMELEDGER_INVOICE_LINE_ITEMS" env-description:"per_rate or consolidated"`
	OutputDir      string `yaml:"output_dir" env:"TIMELEDGER_INVOICE_OUTPUT_DIR" env-description:"Directory for generated PDFs"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"TIMELEDGER_LOG_LEVEL" env-description:"debug, info, warn or error"`
	Format string `yaml:"format" env:"TIMELEDGER_LOG_FORMAT" env-description:"json or console"`
}

type UserConfig struct {
	ID      int64  `yaml:"id" env:"TIMELEDGER_USER_ID" env-description:"User the CLI acts as"`
	Name    string `yaml:"name" env:"TIMELEDGER_USER_NAME"`
	Email   string `yaml:"email" env:"TIMELEDGER_USER_EMAIL"`
	Address string `yaml:"address" env:"TIMELEDGER_USER_ADDRESS"`
	Phone   string `yaml:"phone" env:"TIMELEDGER_USER_PHONE"`
}

// configDir returns ~/.config/timeledger
func configDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir unavailable
		return filepath.Join(".", ".config", "timeledger")
	}
	return filepath.Join(homeDir, ".config", "timeledger")
}

// DefaultConfigPath returns ~/.config/timeledger/config.yaml
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	dir := configDir()

	return &Config{
		Database: DatabaseConfig{
			Path:        filepath.Join(dir, "timeledger.db"),
			Driver:      "sqlcipher",
			BusyTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Invoice: InvoiceConfig{
			DefaultDueDays: 30,
			DefaultTaxRate: "0",
			LineItems:      "per_rate",
			OutputDir:      filepath.Join(dir, "invoices"),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		User: UserConfig{
			ID: 1,
		},
		Timezone: "America/New_York",
	}
}

// Load loads config from the given path on top of the defaults. A missing
// file is not an error. Environment variables override both.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads from the default config path
func LoadDefault() (*Config, error) {
	return Load(DefaultConfigPath())
}

// Validate checks the values that cannot be fixed up later
func (c *Config) Validate() error {
	var problems []string

	switch c.Database.Driver {
	case "sqlcipher", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q must be sqlcipher or sqlite", c.Database.Driver))
	}
	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}
	if c.Invoice.DefaultDueDays < 0 {
		problems = append(problems, "invoice.default_due_days must not be negative")
	}
	if _, err := c.TaxRate(); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Invoice.LineItems {
	case "", "per_rate", "consolidated":
	default:
		problems = append(problems, fmt.Sprintf("invoice.line_items %q must be per_rate or consolidated", c.Invoice.LineItems))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("timezone %q: %v", c.Timezone, err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// TaxRate parses the default tax percentage
func (c *Config) TaxRate() (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.Invoice.DefaultTaxRate)
	if raw == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invoice.default_tax_rate %q is not a number", raw)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("invoice.default_tax_rate %s must be between 0 and 100", raw)
	}
	return rate, nil
}

// EnvUsage describes every environment override
func EnvUsage() (string, error) {
	return cleanenv.GetDescription(DefaultConfig(), nil)
}

// Save writes the config to the given path
func (c *Config) Save(path string) error {
	// Create parent directories if they don't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// EnsureDirectories creates all necessary directories (for database, invoices, etc.)
func (c *Config) EnsureDirectories() error {
	dbDir := filepath.Dir(c.Database.Path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return err
	}

	return os.MkdirAll(c.Invoice.OutputDir, 0755)
}

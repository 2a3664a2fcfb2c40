package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andy/tally/internal/logger"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file
const (
	EnvDBPath    = "TALLY_DB_PATH"
	EnvLogLevel  = "TALLY_LOG_LEVEL"
	EnvLogFormat = "TALLY_LOG_FORMAT"
	EnvUserID    = "TALLY_USER_ID"
)

type Config struct {
	// Database settings
	Database DatabaseConfig `yaml:"database"`

	// Invoice defaults
	Invoice InvoiceConfig `yaml:"invoice"`

	// The user all commands act as
	User UserConfig `yaml:"user"`

	Log logger.LogConfig `yaml:"log"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // Path to SQLite database
}

type InvoiceConfig struct {
	DefaultDueDays int             `yaml:"default_due_days"` // Days until invoice due
	DefaultTaxRate decimal.Decimal `yaml:"default_tax_rate"` // Percent (8.25 = 8.25%), 0 = no tax
	NumberPrefix   string          `yaml:"number_prefix"`    // Invoice number prefix (e.g., "INV")
	Currency       string          `yaml:"currency"`         // 3-letter code
}

type UserConfig struct {
	ID    int64  `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

func configDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir unavailable
		homeDir = "."
	}
	return filepath.Join(homeDir, ".config", "tally")
}

// DefaultConfigPath returns ~/.config/tally/config.yaml
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(configDir(), "tally.db"),
		},
		Invoice: InvoiceConfig{
			DefaultDueDays: 30,
			DefaultTaxRate: decimal.Zero,
			NumberPrefix:   "INV",
			Currency:       "USD",
		},
		User: UserConfig{
			ID: 1,
		},
		Log: logger.DefaultConfig(),
	}
}

// Load loads config from the given path, or defaults if the file doesn't exist.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadDefault loads .env from the working directory and then the default config path
func LoadDefault() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	return Load(DefaultConfigPath())
}

// LoadDotEnv sets variables from a .env file without overriding the real environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv(EnvUserID); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvUserID, v, err)
		}
		c.User.ID = id
	}
	return nil
}

// Validate returns an error if the config cannot be used
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.User.ID <= 0 {
		return errors.New("user id must be positive")
	}
	if c.Invoice.DefaultDueDays < 0 {
		return errors.New("default_due_days cannot be negative")
	}
	if c.Invoice.DefaultTaxRate.IsNegative() {
		return errors.New("default_tax_rate cannot be negative")
	}
	if strings.TrimSpace(c.Invoice.NumberPrefix) == "" {
		return errors.New("number_prefix is required")
	}
	if len(c.Invoice.Currency) != 3 {
		return fmt.Errorf("currency %q must be a 3-letter code", c.Invoice.Currency)
	}
	return nil
}

// Save writes the config to the given path
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// EnsureDirectories creates the database directory
func (c *Config) EnsureDirectories() error {
	return os.MkdirAll(filepath.Dir(c.Database.Path), 0700)
}

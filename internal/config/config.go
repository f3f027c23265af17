package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/fundflow-dev/fundflow/internal/currency"
)

// FileName is the project config written by `fundflow init`.
const FileName = "fundflow.yaml"

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the top-level fundflow.yaml configuration.
type Config struct {
	Platform   PlatformConfig   `yaml:"platform" toml:"platform"`
	Store      StoreConfig      `yaml:"store" toml:"store"`
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Settlement SettlementConfig `yaml:"settlement" toml:"settlement"`
	Currency   CurrencyConfig   `yaml:"currency" toml:"currency"`
}

// PlatformConfig identifies the platform and its base currency.
type PlatformConfig struct {
	Name         string `yaml:"name" toml:"name"`
	BaseCurrency string `yaml:"base_currency" toml:"base_currency"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr      string `yaml:"addr" toml:"addr"`
	AuthToken string `yaml:"auth_token,omitempty" toml:"auth_token,omitempty"`
}

// SettlementConfig bounds the conflict retry loop around settlement
// transactions. Durations use time.ParseDuration syntax.
type SettlementConfig struct {
	MaxAttempts int    `yaml:"max_attempts" toml:"max_attempts"`
	BackoffBase string `yaml:"backoff_base" toml:"backoff_base"`
	BackoffMax  string `yaml:"backoff_max" toml:"backoff_max"`
}

// CurrencyConfig holds units of each currency per one base unit.
type CurrencyConfig struct {
	Rates map[string]string `yaml:"rates" toml:"rates"`
}

// Load reads a config file from disk. Files ending in .toml are decoded as
// TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if isTOML(path) {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	return &cfg, nil
}

// Save writes a Config in the format implied by the path's extension.
func Save(path string, cfg *Config) error {
	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		data = buf.Bytes()
	} else {
		var err error
		data, err = yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default(platformName string) *Config {
	return &Config{
		Platform: PlatformConfig{
			Name:         platformName,
			BaseCurrency: "USD",
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
			DSN:    "fundflow.db",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Settlement: SettlementConfig{
			MaxAttempts: 4,
			BackoffBase: "25ms",
			BackoffMax:  "1s",
		},
		Currency: CurrencyConfig{
			Rates: currency.DefaultRates(),
		},
	}
}

// ApplyEnv overrides secrets and the database location from the
// environment. A postgres:// URL also switches the driver.
func ApplyEnv(cfg *Config) {
	if dsn := strings.TrimSpace(os.Getenv("FUNDFLOW_DATABASE_URL")); dsn != "" {
		cfg.Store.DSN = dsn
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			cfg.Store.Driver = DriverPostgres
		}
	}
	if token := strings.TrimSpace(os.Getenv("FUNDFLOW_AUTH_TOKEN")); token != "" {
		cfg.Server.AuthToken = token
	}
}

// Validate checks the fields every command relies on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Platform.BaseCurrency) == "" {
		return errors.New("platform.base_currency is required")
	}
	switch c.Store.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Store.Driver)
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		return errors.New("store.dsn is required")
	}
	if c.Settlement.MaxAttempts < 1 {
		return fmt.Errorf("settlement.max_attempts must be at least 1, got %d", c.Settlement.MaxAttempts)
	}
	if _, _, err := c.Settlement.Backoff(); err != nil {
		return err
	}
	if _, err := c.Converter(); err != nil {
		return err
	}
	return nil
}

// Backoff parses the retry backoff bounds.
func (s SettlementConfig) Backoff() (base, maxDelay time.Duration, err error) {
	base, err = parseDuration(s.BackoffBase, 25*time.Millisecond)
	if err != nil {
		return 0, 0, fmt.Errorf("settlement.backoff_base: %w", err)
	}
	maxDelay, err = parseDuration(s.BackoffMax, time.Second)
	if err != nil {
		return 0, 0, fmt.Errorf("settlement.backoff_max: %w", err)
	}
	return base, maxDelay, nil
}

// Converter builds the currency converter from the configured rates.
func (c *Config) Converter() (*currency.Converter, error) {
	rates := make(map[string]decimal.Decimal, len(c.Currency.Rates))
	for code, s := range c.Currency.Rates {
		r, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("currency.rates.%s: %w", code, err)
		}
		rates[code] = r
	}
	conv, err := currency.NewConverter(c.Platform.BaseCurrency, rates)
	if err != nil {
		return nil, fmt.Errorf("currency: %w", err)
	}
	return conv, nil
}

// ResolveDSN makes a relative sqlite path relative to the project directory.
func (c *Config) ResolveDSN(projectDir string) string {
	if c.Store.Driver != DriverSQLite || filepath.IsAbs(c.Store.DSN) || strings.HasPrefix(c.Store.DSN, "file:") {
		return c.Store.DSN
	}
	return filepath.Join(projectDir, c.Store.DSN)
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

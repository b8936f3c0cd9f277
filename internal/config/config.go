// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v9"
	"github.com/shopspring/decimal"

	"import-cost/core/tariff"
	apperrors "import-cost/internal/errors"
	"import-cost/internal/logging"
	"import-cost/internal/validation"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// Tariff locates the tariff configuration
	Tariff TariffConfig `json:"tariff"`

	// Engine overrides tariff rules for this installation
	Engine EngineConfig `json:"engine"`

	// Output contains output configuration
	Output OutputConfig `json:"output"`

	// Redis is the optional shared tariff source
	Redis RedisConfig `json:"redis"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`
}

// TariffConfig locates the tariff file
type TariffConfig struct {
	Path string `json:"path" env:"IMPORTCOST_TARIFF_PATH"`

	// Format overrides extension detection
	Format string `json:"format,omitempty" env:"IMPORTCOST_TARIFF_FORMAT" validate:"omitempty,oneof=json yaml yml hcl"`
}

// EngineConfig overrides the rules carried by the tariff
type EngineConfig struct {
	// LocalCurrency replaces the tariff's local currency when set
	LocalCurrency string `json:"local_currency,omitempty" env:"IMPORTCOST_LOCAL_CURRENCY" validate:"omitempty,currency"`

	// DefaultExchangeRate replaces the tariff's fallback rate when positive
	DefaultExchangeRate decimal.Decimal `json:"default_exchange_rate" env:"IMPORTCOST_DEFAULT_EXCHANGE_RATE" validate:"gte=0"`
}

// OutputConfig contains output-related settings
type OutputConfig struct {
	// DefaultFormat is the default output format
	DefaultFormat string `json:"default_format" env:"IMPORTCOST_OUTPUT_FORMAT" validate:"oneof=cli json"`
}

// RedisConfig points at the shared tariff key. An empty address disables it.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty" env:"IMPORTCOST_REDIS_ADDR"`
	Password string `json:"password,omitempty" env:"IMPORTCOST_REDIS_PASSWORD"`
	DB       int    `json:"db" env:"IMPORTCOST_REDIS_DB" validate:"gte=0"`
	Key      string `json:"key,omitempty" env:"IMPORTCOST_REDIS_KEY"`
	Channel  string `json:"channel,omitempty" env:"IMPORTCOST_REDIS_CHANNEL"`
}

// Enabled reports whether a Redis address is configured
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// Apply returns rules with the installation overrides applied
func (e EngineConfig) Apply(rules tariff.Rules) tariff.Rules {
	if e.LocalCurrency != "" {
		rules.LocalCurrency = tariff.Currency(e.LocalCurrency)
	}
	if e.DefaultExchangeRate.IsPositive() {
		rules.DefaultExchangeRate = e.DefaultExchangeRate
	}
	return rules
}

// Dir is the per-user configuration directory
func Dir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".import-cost")
}

// DefaultPath is where Load looks when no path is given
func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Version: "1.0",
		Tariff: TariffConfig{
			Path: filepath.Join(Dir(), "tariff.yaml"),
		},
		Output: OutputConfig{
			DefaultFormat: "cli",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, apperrors.Wrapf(apperrors.TypeConfigInvalid, err, "invalid config file %s", path)
		}
	case !os.IsNotExist(err):
		return nil, apperrors.Wrapf(apperrors.TypeInternal, err, "failed to read %s", path)
	}

	if err := env.Parse(config); err != nil {
		return nil, apperrors.Wrap(apperrors.TypeConfigInvalid, "invalid environment override", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return apperrors.Wrap(apperrors.TypeConfigInvalid, "invalid application config", err)
	}
	return nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}

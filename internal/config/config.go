// Package config loads the platform configuration from YAML with environment
// variable overrides and validates it before anything runs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the tycho platform.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Server   Server         `yaml:"server"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Logging  Logging        `yaml:"logging"`
	Gather   GatherConfig   `yaml:"gather"`
	Backtest BacktestConfig `yaml:"backtest"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GatherConfig controls daily-bar gathering.
type GatherConfig struct {
	USDaily GatherJobConfig `yaml:"us_daily"`
}

// GatherJobConfig holds parameters for a single data gathering job.
type GatherJobConfig struct {
	StartDate       string `yaml:"start_date"`
	SymbolsFile     string `yaml:"symbols_file"`
	BatchSize       int    `yaml:"batch_size"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// BacktestConfig defines simulation, execution, and risk parameters.
type BacktestConfig struct {
	InitialCapital  float64 `yaml:"initial_capital"`
	SlippagePct     float64 `yaml:"slippage_pct"`
	Commission      float64 `yaml:"commission"`
	MaxTradeRiskPct float64 `yaml:"max_trade_risk_pct"`
	MaxDrawdownPct  float64 `yaml:"max_drawdown_pct"`
	Seed            uint64  `yaml:"seed"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// DefaultPath returns the config path from the TYCHO_CONFIG environment
// variable, or "config.yaml" when unset.
func DefaultPath() string {
	if p := os.Getenv("TYCHO_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyDefaults fills unset simulation parameters with the platform defaults.
// A zero seed means "seed from entropy" and is left alone.
func applyDefaults(cfg *Config) {
	if cfg.Backtest.InitialCapital == 0 {
		cfg.Backtest.InitialCapital = 100_000
	}
	if cfg.Backtest.SlippagePct == 0 {
		cfg.Backtest.SlippagePct = 0.0005
	}
	if cfg.Backtest.Commission == 0 {
		cfg.Backtest.Commission = 1.0
	}
	if cfg.Backtest.MaxTradeRiskPct == 0 {
		cfg.Backtest.MaxTradeRiskPct = 0.02
	}
	if cfg.Backtest.MaxDrawdownPct == 0 {
		cfg.Backtest.MaxDrawdownPct = 0.20
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate fails fast on configuration values the simulation cannot run with.
func (c *Config) Validate() error {
	bt := c.Backtest
	if bt.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be positive, got %v", bt.InitialCapital)
	}
	if bt.SlippagePct < 0 || bt.SlippagePct >= 1 {
		return fmt.Errorf("backtest.slippage_pct must be in [0, 1), got %v", bt.SlippagePct)
	}
	if bt.Commission < 0 {
		return fmt.Errorf("backtest.commission must not be negative, got %v", bt.Commission)
	}
	if bt.MaxTradeRiskPct <= 0 || bt.MaxTradeRiskPct > 1 {
		return fmt.Errorf("backtest.max_trade_risk_pct must be in (0, 1], got %v", bt.MaxTradeRiskPct)
	}
	if bt.MaxDrawdownPct <= 0 || bt.MaxDrawdownPct > 1 {
		return fmt.Errorf("backtest.max_drawdown_pct must be in (0, 1], got %v", bt.MaxDrawdownPct)
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

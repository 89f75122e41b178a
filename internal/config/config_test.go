package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ALPACA_API_KEY", "ALPACA_API_SECRET",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
		"DATA_DIR", "SQLITE_PATH", "LOG_LEVEL",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadFullConfig(t *testing.T) {
	clearEnvOverrides(t)
	path := writeConfig(t, `
storage:
  data_dir: "/tmp/tycho/data"
  sqlite_path: "/tmp/tycho/tycho.db"
server:
  host: "0.0.0.0"
  port: 8080
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  base_url: "https://paper-api.alpaca.markets"
  data_url: "https://data.alpaca.markets"
logging:
  level: "info"
  format: "json"
gather:
  us_daily:
    start_date: "2020-01-01"
    symbols_file: "symbols.csv"
    batch_size: 500
    rate_limit_per_min: 200
backtest:
  initial_capital: 100000
  slippage_pct: 0.0005
  commission: 1.0
  max_trade_risk_pct: 0.02
  max_drawdown_pct: 0.2
  seed: 42
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/tycho/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/tycho/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/tycho/tycho.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/tycho/tycho.db")
	}

	// -- Server --
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Alpaca.APISecret != "test-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q", cfg.Alpaca.APISecret, "test-secret")
	}
	if cfg.Alpaca.BaseURL != "https://paper-api.alpaca.markets" {
		t.Errorf("Alpaca.BaseURL = %q, want %q", cfg.Alpaca.BaseURL, "https://paper-api.alpaca.markets")
	}

	// -- Logging --
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}

	// -- Gather --
	if cfg.Gather.USDaily.BatchSize != 500 {
		t.Errorf("Gather.USDaily.BatchSize = %d, want %d", cfg.Gather.USDaily.BatchSize, 500)
	}
	if cfg.Gather.USDaily.SymbolsFile != "symbols.csv" {
		t.Errorf("Gather.USDaily.SymbolsFile = %q, want %q", cfg.Gather.USDaily.SymbolsFile, "symbols.csv")
	}
	if cfg.Gather.USDaily.StartDate != "2020-01-01" {
		t.Errorf("Gather.USDaily.StartDate = %q, want %q", cfg.Gather.USDaily.StartDate, "2020-01-01")
	}

	// -- Backtest --
	if cfg.Backtest.InitialCapital != 100000 {
		t.Errorf("Backtest.InitialCapital = %f, want %f", cfg.Backtest.InitialCapital, 100000.0)
	}
	if cfg.Backtest.SlippagePct != 0.0005 {
		t.Errorf("Backtest.SlippagePct = %f, want %f", cfg.Backtest.SlippagePct, 0.0005)
	}
	if cfg.Backtest.MaxTradeRiskPct != 0.02 {
		t.Errorf("Backtest.MaxTradeRiskPct = %f, want %f", cfg.Backtest.MaxTradeRiskPct, 0.02)
	}
	if cfg.Backtest.Seed != 42 {
		t.Errorf("Backtest.Seed = %d, want %d", cfg.Backtest.Seed, 42)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnvOverrides(t)
	path := writeConfig(t, `
storage:
  data_dir: "/data"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Backtest.InitialCapital != 100_000 {
		t.Errorf("default InitialCapital = %v, want 100000", cfg.Backtest.InitialCapital)
	}
	if cfg.Backtest.SlippagePct != 0.0005 {
		t.Errorf("default SlippagePct = %v, want 0.0005", cfg.Backtest.SlippagePct)
	}
	if cfg.Backtest.Commission != 1.0 {
		t.Errorf("default Commission = %v, want 1.0", cfg.Backtest.Commission)
	}
	if cfg.Backtest.MaxTradeRiskPct != 0.02 {
		t.Errorf("default MaxTradeRiskPct = %v, want 0.02", cfg.Backtest.MaxTradeRiskPct)
	}
	if cfg.Backtest.MaxDrawdownPct != 0.20 {
		t.Errorf("default MaxDrawdownPct = %v, want 0.20", cfg.Backtest.MaxDrawdownPct)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default Logging = %+v, want info/json", cfg.Logging)
	}
}

func TestLoadRejectsInvalidBacktestParams(t *testing.T) {
	clearEnvOverrides(t)

	cases := []struct {
		name string
		yaml string
	}{
		{"negative capital", "backtest:\n  initial_capital: -5\n"},
		{"slippage out of range", "backtest:\n  slippage_pct: 1.5\n"},
		{"negative commission", "backtest:\n  commission: -1\n"},
		{"trade risk above one", "backtest:\n  max_trade_risk_pct: 2\n"},
		{"drawdown above one", "backtest:\n  max_drawdown_pct: 1.2\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.yaml)
			if _, err := Load(path); err == nil {
				t.Errorf("Load() accepted %s", tc.name)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnvOverrides(t)
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	// Set environment overrides.
	os.Setenv("ALPACA_API_KEY", "env-key")
	os.Setenv("DATA_DIR", "/env/data")
	defer os.Unsetenv("ALPACA_API_KEY")
	defer os.Unsetenv("DATA_DIR")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
}

func TestDefaultPath(t *testing.T) {
	os.Unsetenv("TYCHO_CONFIG")
	if got := DefaultPath(); got != "config.yaml" {
		t.Errorf("DefaultPath() = %q, want config.yaml", got)
	}

	os.Setenv("TYCHO_CONFIG", "/etc/tycho/config.yaml")
	defer os.Unsetenv("TYCHO_CONFIG")
	if got := DefaultPath(); got != "/etc/tycho/config.yaml" {
		t.Errorf("DefaultPath() = %q, want env value", got)
	}
}

package tycho

import (
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"tycho/internal/config"
	"tycho/internal/domain"
	"tycho/internal/httpapi"
	"tycho/internal/store"
	"tycho/internal/strategy"
	"tycho/internal/strategy/builtins"
	"tycho/internal/util"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	c := NewClient(baseURL)

	if c == nil {
		t.Fatal("expected non-nil client")
	}

	if c.baseURL != baseURL {
		t.Errorf("expected baseURL %q, got %q", baseURL, c.baseURL)
	}

	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func startTestServer(t *testing.T) *Client {
	t.Helper()

	dir := t.TempDir()
	parquet := store.NewParquetStore(dir)
	sqlite, err := store.NewSQLiteStore(filepath.Join(dir, "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 30)
	for i := range bars {
		price := 50 + float64(i)
		bars[i] = domain.Bar{
			Symbol:    "AAPL",
			Timestamp: start.AddDate(0, 0, i),
			Open:      price, High: price, Low: price, Close: price,
		}
	}
	if err := parquet.WriteBars(t.Context(), bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	registry := strategy.NewRegistry()
	builtins.Register(registry)
	defaults := config.BacktestConfig{
		InitialCapital:  10_000,
		Commission:      1,
		MaxTradeRiskPct: 1,
		MaxDrawdownPct:  1,
		Seed:            3,
	}
	srv := httpapi.NewServer(parquet, sqlite, parquet, registry, defaults, util.NewLogger("error", "text"))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL)
}

func TestClientRoundTrip(t *testing.T) {
	c := startTestServer(t)
	ctx := t.Context()

	strategies, err := c.Strategies(ctx)
	if err != nil {
		t.Fatalf("Strategies: %v", err)
	}
	if len(strategies) == 0 {
		t.Fatal("no strategies returned")
	}

	run, err := c.RunBacktest(ctx, httpapi.BacktestRequest{
		Strategy: "buy_hold",
		Symbols:  []string{"AAPL"},
		Start:    "2024-01-01",
		End:      "2024-02-01",
	})
	if err != nil {
		t.Fatalf("RunBacktest: %v", err)
	}
	if run.ID == "" {
		t.Fatal("run has no ID")
	}

	got, err := c.Run(ctx, run.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.Strategy != "buy_hold" {
		t.Errorf("Strategy = %q, want buy_hold", got.Strategy)
	}

	runs, err := c.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("got %d runs, want 1", len(runs))
	}

	equity, err := c.Equity(ctx, run.ID)
	if err != nil {
		t.Fatalf("Equity: %v", err)
	}
	if len(equity) != 30 {
		t.Errorf("equity has %d points, want 30", len(equity))
	}

	fills, err := c.Fills(ctx, run.ID)
	if err != nil {
		t.Fatalf("Fills: %v", err)
	}
	if len(fills) != 1 {
		t.Errorf("got %d fills, want 1", len(fills))
	}

	if err := c.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if _, err := c.Run(ctx, run.ID); err == nil {
		t.Error("deleted run still retrievable")
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	c := startTestServer(t)

	_, err := c.RunBacktest(t.Context(), httpapi.BacktestRequest{
		Strategy: "no_such_strategy",
		Symbols:  []string{"AAPL"},
		Start:    "2024-01-01",
		End:      "2024-02-01",
	})
	if err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

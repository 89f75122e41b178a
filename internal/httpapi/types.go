// Package httpapi provides the HTTP REST API for the tycho backtest
// platform: running backtests, browsing the run catalog, and fetching
// per-run equity curves and fill logs as JSON.
package httpapi

import (
	"time"

	"tycho/internal/backtest"
	"tycho/internal/store"
)

// StrategiesResponse lists the registered strategy names.
type StrategiesResponse struct {
	Strategies []string `json:"strategies"`
}

// BacktestRequest is the body of POST /api/backtests. Zero-valued simulation
// parameters fall back to the server's configured defaults.
type BacktestRequest struct {
	Strategy string             `json:"strategy"`
	Params   map[string]float64 `json:"params,omitempty"`
	Symbols  []string           `json:"symbols"`
	Start    string             `json:"start"` // YYYY-MM-DD
	End      string             `json:"end"`   // YYYY-MM-DD

	// Weights maps symbol to target weight for multi-symbol runs. Missing
	// symbols default to an equal split.
	Weights map[string]float64 `json:"weights,omitempty"`

	InitialCapital float64 `json:"initial_capital,omitempty"`
	SlippagePct    float64 `json:"slippage_pct,omitempty"`
	Commission     float64 `json:"commission,omitempty"`
	Seed           uint64  `json:"seed,omitempty"`
}

// RunsResponse lists catalog entries, newest first.
type RunsResponse struct {
	Runs []store.Run `json:"runs"`
}

// EquityResponse holds the persisted equity curve of one run.
type EquityResponse struct {
	RunID  string             `json:"run_id"`
	Points []store.EquityPoint `json:"points"`
}

// FillJSON is the JSON representation of one executed trade.
type FillJSON struct {
	Timestamp  time.Time `json:"timestamp"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Quantity   int64     `json:"quantity"`
	Price      float64   `json:"price"`
	Commission float64   `json:"commission"`
	TotalCost  float64   `json:"total_cost"`
}

// FillsResponse holds the persisted fill log of one run.
type FillsResponse struct {
	RunID string     `json:"run_id"`
	Fills []FillJSON `json:"fills"`
}

func convertFills(fills []backtest.Fill) []FillJSON {
	out := make([]FillJSON, 0, len(fills))
	for _, f := range fills {
		out = append(out, FillJSON{
			Timestamp:  f.Timestamp,
			Symbol:     f.Symbol,
			Side:       string(f.Side),
			Quantity:   f.Quantity,
			Price:      f.Price,
			Commission: f.Commission,
			TotalCost:  f.TotalCost(),
		})
	}
	return out
}

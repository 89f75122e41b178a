// Package store defines storage interfaces for persisting and retrieving
// market data, backtest run records, and per-run result artifacts.
package store

import (
	"context"
	"time"

	"tycho/internal/analysis"
	"tycho/internal/backtest"
	"tycho/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// Run is one catalog entry: the configuration a backtest ran with and the
// summary metrics it produced. The heavyweight equity curve and fill log live
// in the artifact store, keyed by ID.
type Run struct {
	ID             string             `json:"id"`
	Strategy       string             `json:"strategy"`
	Params         map[string]float64 `json:"params,omitempty"`
	Symbols        []string           `json:"symbols"`
	Start          time.Time          `json:"start"`
	End            time.Time          `json:"end"`
	InitialCapital float64            `json:"initial_capital"`
	Metrics        analysis.Metrics   `json:"metrics"`
	CreatedAt      time.Time          `json:"created_at"`
}

// RunStore persists and retrieves backtest run records.
type RunStore interface {
	// SaveRun inserts a new run record.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun retrieves a single run by its ID.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	// A non-positive limit returns everything.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// DeleteRun removes a run record by ID.
	DeleteRun(ctx context.Context, id string) error
}

// EquityPoint is one row of a persisted equity curve.
type EquityPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Cash          float64   `json:"cash"`
	HoldingsValue float64   `json:"holdings_value"`
	Total         float64   `json:"total"`
	Returns       float64   `json:"returns"`
}

// ArtifactStore persists and retrieves per-run result artifacts.
type ArtifactStore interface {
	// WriteRunArtifacts persists the equity curve and fill log of a run.
	WriteRunArtifacts(ctx context.Context, runID string, result *backtest.Result) error

	// ReadEquity returns the persisted equity curve for a run.
	ReadEquity(ctx context.Context, runID string) ([]EquityPoint, error)

	// ReadFills returns the persisted fill log for a run.
	ReadFills(ctx context.Context, runID string) ([]backtest.Fill, error)
}

package backtest

import "time"

// Snapshot is one row of portfolio state, keyed by timestamp. The backtest
// loops append one Snapshot per timeline date; the RiskManager reads the
// current day's running Snapshot when assessing an order.
type Snapshot struct {
	Timestamp     time.Time
	Cash          float64
	HoldingsValue float64
	Total         float64 // Cash + HoldingsValue
	Returns       float64 // period return vs the prior row (0 on the first row)

	// Positions maps symbol to held whole-share quantity.
	Positions map[string]int64

	// Prices maps symbol to the as-of price used for mark-to-market on this
	// row. Symbols with no resolvable price (no bar at or before this
	// timestamp) are absent.
	Prices map[string]float64
}

// Result is the complete output of a backtest run: the full per-bar history
// and the accumulated trade log. A run that never trades still produces a
// history covering the whole timeline; callers distinguish "no signal fired"
// from an error by checking len(Fills), not by catching one.
type Result struct {
	InitialCapital float64
	History        []Snapshot
	Fills          []Fill
}

// FinalTotal returns the last row's total equity, or the initial capital for
// an empty history.
func (r *Result) FinalTotal() float64 {
	if len(r.History) == 0 {
		return r.InitialCapital
	}
	return r.History[len(r.History)-1].Total
}

// Returns extracts the per-bar return series from the history.
func (r *Result) Returns() []float64 {
	out := make([]float64, len(r.History))
	for i := range r.History {
		out[i] = r.History[i].Returns
	}
	return out
}

func clonePositions(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clonePrices(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Package analysis computes performance statistics from backtest results.
// It is decoupled from the simulation loop: everything here derives from the
// recorded equity history and fill log.
package analysis

import (
	"fmt"
	"math"
	"time"

	"tycho/internal/backtest"
)

// tradingDaysPerYear scales daily return volatility to an annual figure.
const tradingDaysPerYear = 252

// Metrics is the summary statistics block for one backtest run.
type Metrics struct {
	FinalValue           float64 `json:"final_value"`
	TotalReturn          float64 `json:"total_return"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	SortinoRatio         float64 `json:"sortino_ratio"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	MaxDrawdownDuration  int     `json:"max_drawdown_duration_days"`
	TradeCount           int     `json:"trade_count"`
}

// Compute derives the full metrics block from a run result.
func Compute(result *backtest.Result) (Metrics, error) {
	if result == nil || len(result.History) == 0 {
		return Metrics{}, fmt.Errorf("empty portfolio history")
	}
	if result.InitialCapital <= 0 {
		return Metrics{}, fmt.Errorf("initial capital must be positive, got %v", result.InitialCapital)
	}

	history := result.History
	returns := result.Returns()

	m := Metrics{
		FinalValue: result.FinalTotal(),
		TradeCount: len(result.Fills),
	}
	m.TotalReturn = m.FinalValue/result.InitialCapital - 1

	// Calendar-day annualization over the simulated span.
	days := history[len(history)-1].Timestamp.Sub(history[0].Timestamp).Hours() / 24
	if days > 0 {
		m.AnnualizedReturn = math.Pow(1+m.TotalReturn, 365.0/days) - 1
	}

	m.AnnualizedVolatility = sampleStd(returns) * math.Sqrt(tradingDaysPerYear)
	if m.AnnualizedVolatility != 0 {
		m.SharpeRatio = m.AnnualizedReturn / m.AnnualizedVolatility
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if downsideStd := sampleStd(downside) * math.Sqrt(tradingDaysPerYear); downsideStd != 0 {
		m.SortinoRatio = m.AnnualizedReturn / downsideStd
	}

	drawdowns := DrawdownSeries(history)
	for _, dd := range drawdowns {
		if dd < m.MaxDrawdown {
			m.MaxDrawdown = dd
		}
	}
	m.MaxDrawdownDuration = longestUnderwater(drawdowns)

	return m, nil
}

// DrawdownSeries returns per-row drawdown relative to the running equity peak.
// Values are zero at peaks and negative underwater.
func DrawdownSeries(history []backtest.Snapshot) []float64 {
	out := make([]float64, len(history))
	var peak float64
	for i, row := range history {
		if row.Total > peak {
			peak = row.Total
		}
		if peak > 0 {
			out[i] = (row.Total - peak) / peak
		}
	}
	return out
}

// longestUnderwater returns the length of the longest consecutive stretch of
// negative drawdown rows.
func longestUnderwater(drawdowns []float64) int {
	var longest, run int
	for _, dd := range drawdowns {
		if dd < 0 {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return longest
}

// Period is an aggregation bucket for AggregateReturns.
type Period string

const (
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// PeriodReturn is the compounded return over one aggregation bucket.
type PeriodReturn struct {
	Label  string  `json:"label"`
	Return float64 `json:"return"`
}

// AggregateReturns compounds per-row returns into weekly, monthly, or yearly
// buckets, in chronological order.
func AggregateReturns(history []backtest.Snapshot, period Period) ([]PeriodReturn, error) {
	var label func(time.Time) string
	switch period {
	case Weekly:
		label = func(ts time.Time) string {
			year, week := ts.ISOWeek()
			return fmt.Sprintf("%04d-W%02d", year, week)
		}
	case Monthly:
		label = func(ts time.Time) string { return ts.Format("2006-01") }
	case Yearly:
		label = func(ts time.Time) string { return ts.Format("2006") }
	default:
		return nil, fmt.Errorf("unknown aggregation period %q", period)
	}

	var out []PeriodReturn
	for i, row := range history {
		if i == 0 {
			// The first row has no prior value to return against.
			continue
		}
		l := label(row.Timestamp)
		if len(out) == 0 || out[len(out)-1].Label != l {
			out = append(out, PeriodReturn{Label: l, Return: row.Returns})
			continue
		}
		last := &out[len(out)-1]
		last.Return = (1+last.Return)*(1+row.Returns) - 1
	}
	return out, nil
}

// sampleStd returns the sample standard deviation (n-1 denominator), matching
// the convention of most statistics toolkits. Fewer than two observations
// yield zero.
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

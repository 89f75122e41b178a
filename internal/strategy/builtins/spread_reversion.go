package builtins

import (
	"fmt"
	"math"
	"sort"
	"time"

	"tycho/internal/domain"
	"tycho/internal/strategy"
)

// Compile-time interface checks.
var (
	_ strategy.PortfolioStrategy = (*SpreadReversion)(nil)
	_ strategy.PortfolioStrategy = (*PairsSpread)(nil)
)

// SpreadReversion trades the mean-reverting spread of a weighted basket. The
// spread is the weighted sum of closes; when its rolling z-score drops below
// -threshold the whole portfolio enters, and it exits once the spread crosses
// back over its mean.
type SpreadReversion struct {
	weights   map[string]float64
	window    int
	threshold float64
}

// NewSpreadReversion creates a SpreadReversion strategy. weights must be
// non-empty; window is the z-score lookback in bars; threshold is in standard
// deviations.
func NewSpreadReversion(weights map[string]float64, window int, threshold float64) (*SpreadReversion, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("spread reversion weights must not be empty")
	}
	if window <= 1 {
		return nil, fmt.Errorf("spread reversion window must exceed 1, got %d", window)
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("spread reversion threshold must be positive, got %v", threshold)
	}
	return &SpreadReversion{
		weights:   weights,
		window:    window,
		threshold: threshold,
	}, nil
}

// Name returns "spread_reversion".
func (s *SpreadReversion) Name() string {
	return "spread_reversion"
}

// GeneratePortfolioSignals computes the basket spread on the dates where
// every weighted symbol has a bar, then walks its z-score with a flat/long
// state machine, emitting portfolio-wide enter and exit points.
func (s *SpreadReversion) GeneratePortfolioSignals(prices map[string][]domain.Bar) (map[string][]domain.SignalPoint, error) {
	dates, spread, err := s.spreadSeries(prices)
	if err != nil {
		return nil, err
	}
	if len(spread) < s.window {
		return nil, fmt.Errorf("spread reversion needs at least %d aligned bars, got %d", s.window, len(spread))
	}

	var points []domain.SignalPoint
	long := false
	for i := s.window - 1; i < len(spread); i++ {
		lookback := spread[i-s.window+1 : i+1]
		mean := meanOf(lookback)
		std := sampleStdOf(lookback, mean)
		if std == 0 {
			continue
		}
		z := (spread[i] - mean) / std

		switch {
		case !long && z < -s.threshold:
			points = append(points, domain.SignalPoint{Timestamp: dates[i], Code: domain.SignalEnter})
			long = true
		case long && z >= 0:
			points = append(points, domain.SignalPoint{Timestamp: dates[i], Code: domain.SignalExit})
			long = false
		}
	}

	return map[string][]domain.SignalPoint{domain.PortfolioSymbol: points}, nil
}

// spreadSeries aligns the weighted symbols on their common trading days and
// returns the dated weighted-sum spread.
func (s *SpreadReversion) spreadSeries(prices map[string][]domain.Bar) ([]time.Time, []float64, error) {
	type dayPrice map[int64]float64

	bySymbol := make(map[string]dayPrice, len(s.weights))
	for sym := range s.weights {
		bars, ok := prices[sym]
		if !ok || len(bars) == 0 {
			return nil, nil, fmt.Errorf("spread reversion: no price series for weighted symbol %s", sym)
		}
		m := make(dayPrice, len(bars))
		for _, bar := range bars {
			m[bar.Timestamp.UnixNano()] = bar.Close
		}
		bySymbol[sym] = m
	}

	// Common dates, taken from any one symbol and filtered by the rest.
	var first string
	for sym := range s.weights {
		if first == "" || sym < first {
			first = sym
		}
	}
	var dates []time.Time
	for _, bar := range prices[first] {
		key := bar.Timestamp.UnixNano()
		shared := true
		for sym := range s.weights {
			if _, ok := bySymbol[sym][key]; !ok {
				shared = false
				break
			}
		}
		if shared {
			dates = append(dates, bar.Timestamp)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	spread := make([]float64, len(dates))
	for i, ts := range dates {
		key := ts.UnixNano()
		for sym, w := range s.weights {
			spread[i] += w * bySymbol[sym][key]
		}
	}
	return dates, spread, nil
}

// PairsSpread is the two-asset special case of SpreadReversion.
type PairsSpread struct {
	*SpreadReversion
}

// NewPairsSpread creates a PairsSpread strategy. weights must contain exactly
// two symbols, typically with opposite signs.
func NewPairsSpread(weights map[string]float64, window int, threshold float64) (*PairsSpread, error) {
	if len(weights) != 2 {
		return nil, fmt.Errorf("pairs spread requires exactly 2 symbols, got %d", len(weights))
	}
	inner, err := NewSpreadReversion(weights, window, threshold)
	if err != nil {
		return nil, err
	}
	return &PairsSpread{SpreadReversion: inner}, nil
}

// Name returns "pairs_spread".
func (p *PairsSpread) Name() string {
	return "pairs_spread"
}

func meanOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func sampleStdOf(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

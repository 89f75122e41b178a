// Package builtins provides built-in strategy implementations that ship with
// the tycho platform.
package builtins

import (
	"fmt"

	"tycho/internal/domain"
	"tycho/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It emits an
// enter signal when the short-period SMA crosses above the long-period SMA,
// and an exit signal when it crosses back below. Non-cross days emit nothing.
type SMACross struct {
	shortWindow int
	longWindow  int
}

// NewSMACross creates an SMACross strategy. The windows must be positive and
// the short window strictly smaller than the long one.
func NewSMACross(short, long int) (*SMACross, error) {
	if short <= 0 || long <= 0 {
		return nil, fmt.Errorf("sma windows must be positive, got short=%d long=%d", short, long)
	}
	if short >= long {
		return nil, fmt.Errorf("short window %d must be smaller than long window %d", short, long)
	}
	return &SMACross{
		shortWindow: short,
		longWindow:  long,
	}, nil
}

// Name returns "sma_cross".
func (s *SMACross) Name() string {
	return "sma_cross"
}

// GenerateSignals computes both moving averages over the close series and
// emits signals where the desired position flips. Early bars use the mean of
// however many closes are available, so the strategy is defined from bar 0.
func (s *SMACross) GenerateSignals(bars []domain.Bar) ([]domain.SignalPoint, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("sma_cross: empty bar series")
	}

	closes := closeSeries(bars)
	short := rollingMean(closes, s.shortWindow)
	long := rollingMean(closes, s.longWindow)

	var points []domain.SignalPoint
	prevLong := false
	for i := range bars {
		wantLong := short[i] > long[i]
		if wantLong == prevLong {
			continue
		}
		code := domain.SignalExit
		if wantLong {
			code = domain.SignalEnter
		}
		points = append(points, domain.SignalPoint{Timestamp: bars[i].Timestamp, Code: code})
		prevLong = wantLong
	}
	return points, nil
}

func closeSeries(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, bar := range bars {
		out[i] = bar.Close
	}
	return out
}

// rollingMean computes a trailing mean over up to window values; positions
// before a full window average whatever is available.
func rollingMean(xs []float64, window int) []float64 {
	out := make([]float64, len(xs))
	var sum float64
	for i, x := range xs {
		sum += x
		n := window
		if i < window {
			n = i + 1
		} else {
			sum -= xs[i-window]
		}
		out[i] = sum / float64(n)
	}
	return out
}

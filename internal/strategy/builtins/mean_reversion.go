package builtins

import (
	"fmt"

	"tycho/internal/domain"
	"tycho/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*MeanReversion)(nil)

// MeanReversion trades deviations from a rolling moving average: enter when
// the close sits below the average by more than the threshold, exit when it
// sits above by more than the threshold.
type MeanReversion struct {
	window    int
	threshold float64
}

// NewMeanReversion creates a MeanReversion strategy with the given rolling
// window (bars) and deviation threshold (fraction of the moving average).
func NewMeanReversion(window int, threshold float64) (*MeanReversion, error) {
	if window <= 0 {
		return nil, fmt.Errorf("mean reversion window must be positive, got %d", window)
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("mean reversion threshold must be positive, got %v", threshold)
	}
	return &MeanReversion{
		window:    window,
		threshold: threshold,
	}, nil
}

// Name returns "mean_reversion".
func (m *MeanReversion) Name() string {
	return "mean_reversion"
}

// GenerateSignals emits enter/exit points on the bars whose deviation from
// the rolling mean breaches the threshold. In-band bars emit nothing.
func (m *MeanReversion) GenerateSignals(bars []domain.Bar) ([]domain.SignalPoint, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("mean_reversion: empty bar series")
	}

	closes := closeSeries(bars)
	mavg := rollingMean(closes, m.window)

	var points []domain.SignalPoint
	for i := range bars {
		deviation := (closes[i] - mavg[i]) / mavg[i]
		switch {
		case deviation < -m.threshold:
			points = append(points, domain.SignalPoint{Timestamp: bars[i].Timestamp, Code: domain.SignalEnter})
		case deviation > m.threshold:
			points = append(points, domain.SignalPoint{Timestamp: bars[i].Timestamp, Code: domain.SignalExit})
		}
	}
	return points, nil
}

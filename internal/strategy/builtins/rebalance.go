package builtins

import (
	"fmt"
	"sort"
	"time"

	"tycho/internal/domain"
	"tycho/internal/strategy"
)

// Compile-time interface check.
var _ strategy.PortfolioStrategy = (*Rebalance)(nil)

// Rebalance emits a portfolio-wide rebalance signal on the first trading day
// of each calendar period, bringing every asset back to its target weight.
type Rebalance struct {
	frequency string
}

// NewRebalance creates a Rebalance strategy. frequency is "monthly" or
// "quarterly".
func NewRebalance(frequency string) (*Rebalance, error) {
	switch frequency {
	case "monthly", "quarterly":
		return &Rebalance{frequency: frequency}, nil
	}
	return nil, fmt.Errorf("rebalance frequency must be monthly or quarterly, got %q", frequency)
}

// Name returns "rebalance".
func (r *Rebalance) Name() string {
	return "rebalance"
}

// GeneratePortfolioSignals scans the union of all assets' trading days and
// emits one rebalance point, keyed under the portfolio pseudo-symbol, on the
// first day of each new period.
func (r *Rebalance) GeneratePortfolioSignals(prices map[string][]domain.Bar) (map[string][]domain.SignalPoint, error) {
	if len(prices) == 0 {
		return nil, fmt.Errorf("rebalance: empty price panel")
	}

	seen := make(map[int64]time.Time)
	for _, bars := range prices {
		for _, bar := range bars {
			seen[bar.Timestamp.UnixNano()] = bar.Timestamp
		}
	}
	days := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		days = append(days, ts)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var points []domain.SignalPoint
	prevPeriod := ""
	for _, ts := range days {
		p := r.periodOf(ts)
		if p == prevPeriod {
			continue
		}
		points = append(points, domain.SignalPoint{Timestamp: ts, Code: domain.SignalRebalance})
		prevPeriod = p
	}

	return map[string][]domain.SignalPoint{domain.PortfolioSymbol: points}, nil
}

func (r *Rebalance) periodOf(ts time.Time) string {
	if r.frequency == "quarterly" {
		return fmt.Sprintf("%04d-Q%d", ts.Year(), (int(ts.Month())-1)/3+1)
	}
	return ts.Format("2006-01")
}

package builtins

import (
	"fmt"

	"tycho/internal/strategy"
)

// Register installs every built-in strategy factory. Defaults match the
// conventional parameterizations: 40/100 crossover windows, a 20-bar 5%
// reversion band, monthly rebalancing, and a 20-bar 1-sigma spread band.
func Register(r *strategy.Registry) {
	r.Register("sma_cross", func(p strategy.Params) (strategy.Strategy, error) {
		return NewSMACross(p.Int("short_window", 40), p.Int("long_window", 100))
	})
	r.Register("mean_reversion", func(p strategy.Params) (strategy.Strategy, error) {
		return NewMeanReversion(p.Int("window", 20), p.Float("threshold", 0.05))
	})
	r.Register("buy_hold", func(strategy.Params) (strategy.Strategy, error) {
		return NewBuyHold(), nil
	})

	r.RegisterPortfolio("rebalance", func(p strategy.Params, _ map[string]float64) (strategy.PortfolioStrategy, error) {
		freq, err := rebalanceFrequency(p.Int("interval_months", 1))
		if err != nil {
			return nil, err
		}
		return NewRebalance(freq)
	})
	r.RegisterPortfolio("spread_reversion", func(p strategy.Params, weights map[string]float64) (strategy.PortfolioStrategy, error) {
		return NewSpreadReversion(weights, p.Int("window", 20), p.Float("threshold", 1.0))
	})
	r.RegisterPortfolio("pairs_spread", func(p strategy.Params, weights map[string]float64) (strategy.PortfolioStrategy, error) {
		return NewPairsSpread(weights, p.Int("window", 20), p.Float("threshold", 1.0))
	})
}

// rebalanceFrequency maps the numeric interval_months parameter onto the
// supported cadences.
func rebalanceFrequency(months int) (string, error) {
	switch months {
	case 1:
		return "monthly", nil
	case 3:
		return "quarterly", nil
	}
	return "", fmt.Errorf("rebalance interval_months must be 1 or 3, got %d", months)
}

package backtest

import (
	"math/rand/v2"
)

// Default execution frictions.
const (
	DefaultSlippagePct = 0.0005 // ±0.05% uniform slippage
	DefaultCommission  = 1.0    // flat fee per trade, in account currency
)

// Simulator converts an approved order into a fill, modeling two frictions:
// uniform random slippage around the reference price and a fixed per-trade
// commission. It never rejects an order — rejection is the RiskManager's job,
// which runs strictly before execution.
type Simulator struct {
	slippagePct float64
	commission  float64
	rng         *rand.Rand
}

// NewSimulator creates a Simulator. rng is the random source used for
// slippage draws; pass a seeded generator for reproducible runs, or nil for
// an independently seeded one. A zero slippagePct makes fills deterministic.
func NewSimulator(slippagePct, commission float64, rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Simulator{
		slippagePct: slippagePct,
		commission:  commission,
		rng:         rng,
	}
}

// SlippagePct returns the configured slippage fraction. Backtest loops use it
// to size buys with enough headroom that a worst-case fill stays affordable.
func (s *Simulator) SlippagePct() float64 { return s.slippagePct }

// Commission returns the fixed per-trade commission.
func (s *Simulator) Commission() float64 { return s.commission }

// Execute simulates the execution of an order at the given reference price.
// The fill price is refPrice perturbed by a uniform draw from
// [-slippagePct, +slippagePct].
func (s *Simulator) Execute(order Order, refPrice float64) Fill {
	slippage := (s.rng.Float64()*2 - 1) * s.slippagePct
	fillPrice := refPrice * (1 + slippage)

	return Fill{
		Timestamp:  order.Timestamp,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      fillPrice,
		Commission: s.commission,
	}
}

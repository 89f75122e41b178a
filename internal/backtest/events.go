// Package backtest implements the event-driven portfolio simulation engine:
// order/fill events, a simulated execution handler, a pre-trade risk manager,
// and the single-asset and portfolio bar loops.
package backtest

import (
	"time"

	"tycho/internal/domain"
)

// OrderType identifies how an order should be executed. The simulator only
// supports market orders.
type OrderType string

// OrderTypeMarket is a market order, filled at the prevailing price plus
// simulated slippage.
const OrderTypeMarket OrderType = "MKT"

// Order is the intention to trade, created by a backtest loop for every
// actionable signal. It is consumed by the RiskManager (which may shrink the
// quantity or discard the order) and then by the Simulator. Orders are never
// persisted; only the resulting Fill is logged.
type Order struct {
	Timestamp time.Time
	Symbol    string
	Type      OrderType
	Quantity  int64 // always positive; direction carried by Side
	Side      domain.Side
}

// Fill is the realized outcome of an executed order, including the simulated
// slippage and commission. Fills are append-only entries in a run's trade log
// and immutable once created.
type Fill struct {
	Timestamp  time.Time
	Symbol     string
	Side       domain.Side
	Quantity   int64
	Price      float64
	Commission float64
}

// TotalCost returns the cash impact of the fill. Commission always works
// against the trader: it increases the cost of a BUY and reduces the proceeds
// of a SELL.
func (f Fill) TotalCost() float64 {
	notional := float64(f.Quantity) * f.Price
	if f.Side == domain.SideBuy {
		return notional + f.Commission
	}
	return notional - f.Commission
}

package backtest

import (
	"fmt"

	"tycho/internal/domain"
)

// Default risk thresholds.
const (
	DefaultMaxTradeRiskPct = 0.02 // 2% of equity per trade
	DefaultMaxDrawdownPct  = 0.20 // 20% drawdown halts new buys
)

// RiskManager is the sole gate between a candidate order and execution. It
// enforces two portfolio-level rules: a drawdown ceiling that halts new buys,
// and a per-trade notional cap that shrinks oversized buys. One RiskManager
// is scoped to one backtest run; its high-water-mark state is reset only by
// constructing a new instance.
type RiskManager struct {
	maxTradeRiskPct float64
	maxDrawdownPct  float64
	highWaterMark   float64
}

// NewRiskManager creates a RiskManager with the given thresholds.
//
//   - maxTradeRiskPct: maximum fraction of total equity a single BUY may
//     commit (e.g. 0.02 for 2%).
//   - maxDrawdownPct: drawdown from the equity high-water-mark beyond which
//     all new BUY orders are rejected (e.g. 0.20 for 20%).
func NewRiskManager(maxTradeRiskPct, maxDrawdownPct float64) (*RiskManager, error) {
	if maxTradeRiskPct <= 0 || maxTradeRiskPct > 1 {
		return nil, fmt.Errorf("max trade risk pct must be in (0, 1], got %v", maxTradeRiskPct)
	}
	if maxDrawdownPct <= 0 || maxDrawdownPct > 1 {
		return nil, fmt.Errorf("max drawdown pct must be in (0, 1], got %v", maxDrawdownPct)
	}
	return &RiskManager{
		maxTradeRiskPct: maxTradeRiskPct,
		maxDrawdownPct:  maxDrawdownPct,
	}, nil
}

// HighWaterMark returns the highest total equity observed so far. It is
// monotonically non-decreasing and updated on every Assess call, not only on
// fills.
func (rm *RiskManager) HighWaterMark() float64 { return rm.highWaterMark }

// Assess evaluates a proposed order against the portfolio's risk rules using
// the current state snapshot. It returns the approved order — possibly with
// its quantity scaled down — and true, or a zero Order and false when the
// order is rejected.
//
// SELL orders are always approved: exiting risk is never blocked, even in a
// deep drawdown. The snapshot must carry a price for the order's symbol; a
// missing price is a hard rejection rather than a crash.
func (rm *RiskManager) Assess(order Order, snap Snapshot) (Order, bool) {
	equity := snap.Total

	// Update the high-water mark first so the drawdown below reflects the
	// latest peak.
	if equity > rm.highWaterMark {
		rm.highWaterMark = equity
	}

	// Drawdown ceiling: halt new buys once equity has fallen too far from
	// the peak.
	if rm.highWaterMark > 0 {
		drawdown := (rm.highWaterMark - equity) / rm.highWaterMark
		if drawdown > rm.maxDrawdownPct && order.Side == domain.SideBuy {
			return Order{}, false
		}
	}

	if order.Side == domain.SideBuy {
		price, ok := snap.Prices[order.Symbol]
		if !ok || price <= 0 {
			return Order{}, false
		}

		maxNotional := equity * rm.maxTradeRiskPct
		proposed := float64(order.Quantity) * price
		if proposed > maxNotional {
			scaled := int64(maxNotional / price)
			if scaled == 0 {
				// Too small to execute once capped.
				return Order{}, false
			}
			order.Quantity = scaled
		}
	}

	return order, true
}

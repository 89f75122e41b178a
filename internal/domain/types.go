// Package domain defines the core data types shared across the tycho
// platform: OHLCV bars, trading signals, and order sides.
package domain

import "time"

// Market identifies the market a symbol trades in.
type Market string

// Supported markets.
const (
	MarketUS Market = "us"
)

// Bar is a single OHLCV bar for a symbol.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// Side is the direction of an order or fill.
type Side string

// Order sides.
const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// SignalCode is a numeric trading instruction emitted by a strategy for one
// (symbol, timestamp) pair.
type SignalCode int

// Signal codes. Hold means no action; Enter opens a long position; Exit
// closes it; Rebalance trades toward the symbol's target weight.
const (
	SignalExit      SignalCode = -1
	SignalHold      SignalCode = 0
	SignalEnter     SignalCode = 1
	SignalRebalance SignalCode = 2
)

// SignalPoint is one strategy instruction at one timestamp.
type SignalPoint struct {
	Timestamp time.Time
	Code      SignalCode
}

// PortfolioSymbol is the pseudo-symbol under which portfolio-wide signals
// are keyed in a signal panel. A non-hold signal under this key takes
// precedence over any per-symbol signal at the same timestamp.
const PortfolioSymbol = "Portfolio"

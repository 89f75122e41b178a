package backtest

import (
	"fmt"
	"log/slog"

	"tycho/internal/domain"
)

// positionState is the explicit hold-until-changed state of the single-asset
// loop. Signals describe transitions, not per-bar positions: an Enter while
// FLAT opens a long, an Exit (or Hold while long) closes it, everything else
// is a no-op.
type positionState int

const (
	stateFlat positionState = iota
	stateLong
)

// SingleAsset simulates one asset with whole-share, cash-constrained,
// long-or-flat positioning. No shorting.
type SingleAsset struct {
	initialCapital float64
	exec           *Simulator
	log            *slog.Logger
}

// NewSingleAsset creates a single-asset backtester. exec may be nil, in which
// case a default Simulator is used.
func NewSingleAsset(initialCapital float64, exec *Simulator, log *slog.Logger) (*SingleAsset, error) {
	if initialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive, got %v", initialCapital)
	}
	if exec == nil {
		exec = NewSimulator(DefaultSlippagePct, DefaultCommission, nil)
	}
	if log == nil {
		log = slog.Default()
	}
	return &SingleAsset{
		initialCapital: initialCapital,
		exec:           exec,
		log:            log.With("backtest", "single"),
	}, nil
}

// Run walks the bar series in order, consuming the signal series, and
// returns the full per-bar history plus the trade log. Malformed input
// (empty series, non-positive closes, out-of-order bars) fails fast before
// the loop; a trade that cannot be afforded or sized is a silent no-op for
// that bar and the simulation always completes.
func (b *SingleAsset) Run(bars []domain.Bar, signals []domain.SignalPoint) (*Result, error) {
	if err := validateBars(bars); err != nil {
		return nil, err
	}

	symbol := bars[0].Symbol
	sigAt := make(map[int64]domain.SignalCode, len(signals))
	for _, sp := range signals {
		sigAt[sp.Timestamp.UnixNano()] = sp.Code
	}

	result := &Result{InitialCapital: b.initialCapital}
	cash := b.initialCapital
	var position int64
	state := stateFlat

	for i, bar := range bars {
		code, hasSignal := sigAt[bar.Timestamp.UnixNano()]
		if hasSignal {
			switch {
			case code == domain.SignalEnter && state == stateFlat:
				qty := b.affordableQuantity(cash, bar.Close)
				if qty > 0 {
					order := Order{
						Timestamp: bar.Timestamp,
						Symbol:    symbol,
						Type:      OrderTypeMarket,
						Quantity:  qty,
						Side:      domain.SideBuy,
					}
					fill := b.exec.Execute(order, bar.Close)
					cost := fill.TotalCost()
					if cost <= cash {
						cash -= cost
						position = fill.Quantity
						state = stateLong
						result.Fills = append(result.Fills, fill)
					} else {
						// Sizing buffers for worst-case slippage, so this
						// only fires on misconfigured frictions. The fill is
						// rejected outright, not logged.
						b.log.Warn("buy rejected: fill exceeds available cash",
							"symbol", symbol, "cost", cost, "cash", cash)
					}
				}

			case (code == domain.SignalExit || code == domain.SignalHold) && state == stateLong:
				order := Order{
					Timestamp: bar.Timestamp,
					Symbol:    symbol,
					Type:      OrderTypeMarket,
					Quantity:  position,
					Side:      domain.SideSell,
				}
				fill := b.exec.Execute(order, bar.Close)
				cash += fill.TotalCost()
				position = 0
				state = stateFlat
				result.Fills = append(result.Fills, fill)
			}
		}

		holdings := float64(position) * bar.Close
		total := cash + holdings
		returns := 0.0
		if i > 0 {
			if prev := result.History[i-1].Total; prev != 0 {
				returns = total/prev - 1
			}
		}
		result.History = append(result.History, Snapshot{
			Timestamp:     bar.Timestamp,
			Cash:          cash,
			HoldingsValue: holdings,
			Total:         total,
			Returns:       returns,
			Positions:     map[string]int64{symbol: position},
			Prices:        map[string]float64{symbol: bar.Close},
		})
	}

	return result, nil
}

// affordableQuantity sizes a buy so that even a worst-case slippage fill plus
// commission stays within available cash.
func (b *SingleAsset) affordableQuantity(cash, price float64) int64 {
	if price <= 0 {
		return 0
	}
	worstPrice := price * (1 + b.exec.SlippagePct())
	budget := cash - b.exec.Commission()
	if budget <= 0 {
		return 0
	}
	return int64(budget / worstPrice)
}

// validateBars rejects malformed price input before the simulation loop
// starts: empty series, non-positive closes, or a non-increasing timestamp
// order.
func validateBars(bars []domain.Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("price series is empty")
	}
	for i, bar := range bars {
		if bar.Close <= 0 {
			return fmt.Errorf("bar %d (%s): non-positive close %v",
				i, bar.Timestamp.Format("2006-01-02"), bar.Close)
		}
		if i > 0 && !bar.Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("bar %d (%s): timestamps not strictly increasing",
				i, bar.Timestamp.Format("2006-01-02"))
		}
	}
	return nil
}

package backtest

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"tycho/internal/domain"
)

// Portfolio simulates a set of assets sharing one cash pool. It supports
// per-asset directional signals (1/-1), rebalance signals (2), and
// portfolio-wide signals keyed under domain.PortfolioSymbol, which take
// precedence over per-asset signals at the same timestamp when non-zero.
//
// Within a day, assets are processed in sorted symbol order. Cash is shared,
// so this ordering decides which trades succeed when capital is tight; it is
// fixed and deterministic, never per-run arbitrary.
type Portfolio struct {
	initialCapital float64
	exec           *Simulator
	risk           *RiskManager
	log            *slog.Logger
}

// NewPortfolio creates a portfolio backtester. exec and risk may be nil, in
// which case defaults are constructed (one fresh RiskManager per Portfolio,
// so high-water-mark state is never shared across runs).
func NewPortfolio(initialCapital float64, exec *Simulator, risk *RiskManager, log *slog.Logger) (*Portfolio, error) {
	if initialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive, got %v", initialCapital)
	}
	if exec == nil {
		exec = NewSimulator(DefaultSlippagePct, DefaultCommission, nil)
	}
	if risk == nil {
		var err error
		risk, err = NewRiskManager(DefaultMaxTradeRiskPct, DefaultMaxDrawdownPct)
		if err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Portfolio{
		initialCapital: initialCapital,
		exec:           exec,
		risk:           risk,
		log:            log.With("backtest", "portfolio"),
	}, nil
}

// Run simulates the portfolio over the master timeline — the sorted union of
// every asset's price dates and every signal source's dates. Days that match
// no signal source are pure mark-to-market days. Held positions are marked at
// their most recent available price (as-of), so one asset's holiday does not
// block another's trades.
func (p *Portfolio) Run(
	prices map[string][]domain.Bar,
	signals map[string][]domain.SignalPoint,
	weights map[string]float64,
) (*Result, error) {
	if len(prices) == 0 {
		return nil, fmt.Errorf("price panel is empty")
	}
	for sym, bars := range prices {
		if err := validateBars(bars); err != nil {
			return nil, fmt.Errorf("symbol %s: %w", sym, err)
		}
	}

	symbols := make([]string, 0, len(prices))
	for sym := range prices {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	timeline, signalDates := buildTimeline(prices, signals)
	if len(timeline) == 0 {
		return nil, fmt.Errorf("no price or signal dates to simulate")
	}

	sigAt := make(map[string]map[int64]domain.SignalCode, len(signals))
	for source, points := range signals {
		m := make(map[int64]domain.SignalCode, len(points))
		for _, sp := range points {
			m[sp.Timestamp.UnixNano()] = sp.Code
		}
		sigAt[source] = m
	}

	result := &Result{InitialCapital: p.initialCapital}
	cash := p.initialCapital
	positions := make(map[string]int64, len(symbols))

	var prevTotal float64
	for i, ts := range timeline {
		// Mark every held position to its as-of price.
		pricesToday := make(map[string]float64, len(symbols))
		for _, sym := range symbols {
			if px, ok := asOfClose(prices[sym], ts); ok {
				pricesToday[sym] = px
			}
		}
		holdings := markToMarket(positions, pricesToday)
		total := cash + holdings

		if _, isSignalDay := signalDates[ts.UnixNano()]; isSignalDay {
			portfolioSig := sigAt[domain.PortfolioSymbol][ts.UnixNano()]

			for _, sym := range symbols {
				sig := portfolioSig
				if sig == domain.SignalHold {
					sig = sigAt[sym][ts.UnixNano()]
				}
				if sig == domain.SignalHold {
					continue
				}

				px, ok := pricesToday[sym]
				if !ok {
					// No resolvable price for this asset today — it cannot
					// be sized or executed, but other assets still trade.
					continue
				}

				order := p.resolveOrder(ts, sym, sig, px, total, positions[sym], weights)
				if order == nil {
					continue
				}

				snap := Snapshot{
					Timestamp:     ts,
					Cash:          cash,
					HoldingsValue: holdings,
					Total:         total,
					Positions:     clonePositions(positions),
					Prices:        pricesToday,
				}
				approved, ok := p.risk.Assess(*order, snap)
				if !ok {
					p.log.Debug("order rejected by risk manager",
						"symbol", sym, "side", order.Side, "quantity", order.Quantity)
					continue
				}

				fill := p.exec.Execute(approved, px)
				if fill.Side == domain.SideBuy {
					cost := fill.TotalCost()
					if cost > cash {
						p.log.Warn("buy skipped: insufficient shared cash",
							"symbol", sym, "cost", cost, "cash", cash)
						continue
					}
					cash -= cost
					positions[sym] += fill.Quantity
				} else {
					cash += fill.TotalCost()
					positions[sym] -= fill.Quantity
				}
				result.Fills = append(result.Fills, fill)

				// Later assets in this same day see the post-trade cash and
				// equity; capital contention is ordered, not implicit.
				holdings = markToMarket(positions, pricesToday)
				total = cash + holdings
			}
		}

		returns := 0.0
		if i > 0 && prevTotal != 0 {
			returns = total/prevTotal - 1
		}
		prevTotal = total

		result.History = append(result.History, Snapshot{
			Timestamp:     ts,
			Cash:          cash,
			HoldingsValue: holdings,
			Total:         total,
			Returns:       returns,
			Positions:     clonePositions(positions),
			Prices:        clonePrices(pricesToday),
		})
	}

	return result, nil
}

// resolveOrder translates an effective signal into a candidate order, or nil
// when the signal is a no-op in the current state (e.g. Enter while already
// long, or a rebalance that is already on target).
func (p *Portfolio) resolveOrder(
	ts time.Time,
	symbol string,
	sig domain.SignalCode,
	price, total float64,
	current int64,
	weights map[string]float64,
) *Order {
	switch sig {
	case domain.SignalEnter:
		if current != 0 {
			return nil
		}
		qty := int64(total * weights[symbol] / price)
		if qty <= 0 {
			return nil
		}
		return &Order{Timestamp: ts, Symbol: symbol, Type: OrderTypeMarket, Quantity: qty, Side: domain.SideBuy}

	case domain.SignalExit:
		if current <= 0 {
			return nil
		}
		return &Order{Timestamp: ts, Symbol: symbol, Type: OrderTypeMarket, Quantity: current, Side: domain.SideSell}

	case domain.SignalRebalance:
		target := int64(total * weights[symbol] / price)
		delta := target - current
		switch {
		case delta > 0:
			return &Order{Timestamp: ts, Symbol: symbol, Type: OrderTypeMarket, Quantity: delta, Side: domain.SideBuy}
		case delta < 0:
			return &Order{Timestamp: ts, Symbol: symbol, Type: OrderTypeMarket, Quantity: -delta, Side: domain.SideSell}
		}
	}
	return nil
}

// buildTimeline returns the sorted union of all price and signal timestamps,
// plus the set of signal timestamps (days that trigger trade processing).
func buildTimeline(
	prices map[string][]domain.Bar,
	signals map[string][]domain.SignalPoint,
) ([]time.Time, map[int64]struct{}) {
	seen := make(map[int64]time.Time)
	for _, bars := range prices {
		for _, bar := range bars {
			seen[bar.Timestamp.UnixNano()] = bar.Timestamp
		}
	}
	signalDates := make(map[int64]struct{})
	for _, points := range signals {
		for _, sp := range points {
			seen[sp.Timestamp.UnixNano()] = sp.Timestamp
			signalDates[sp.Timestamp.UnixNano()] = struct{}{}
		}
	}

	timeline := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		timeline = append(timeline, ts)
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Before(timeline[j]) })
	return timeline, signalDates
}

// asOfClose returns the close of the most recent bar at or before ts, or
// false when the series has no bar that early.
func asOfClose(bars []domain.Bar, ts time.Time) (float64, bool) {
	// First index with timestamp strictly after ts.
	idx := sort.Search(len(bars), func(i int) bool {
		return bars[i].Timestamp.After(ts)
	})
	if idx == 0 {
		return 0, false
	}
	return bars[idx-1].Close, true
}

func markToMarket(positions map[string]int64, prices map[string]float64) float64 {
	var holdings float64
	for sym, qty := range positions {
		if px, ok := prices[sym]; ok {
			holdings += float64(qty) * px
		}
	}
	return holdings
}

package backtest

import (
	"math/rand/v2"
	"testing"

	"tycho/internal/domain"
)

// barsFrom builds n constant-price daily bars starting at day(start).
func barsFrom(symbol string, start, n int, price float64) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := 0; i < n; i++ {
		bars[i] = domain.Bar{
			Symbol:    symbol,
			Timestamp: day(start + i),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
		}
	}
	return bars
}

// permissiveRisk disables sizing caps and the drawdown gate so tests can
// exercise the portfolio loop itself.
func permissiveRisk(t *testing.T) *RiskManager {
	t.Helper()
	rm, err := NewRiskManager(1.0, 1.0)
	if err != nil {
		t.Fatalf("NewRiskManager: %v", err)
	}
	return rm
}

func newTestPortfolio(t *testing.T, capital float64) *Portfolio {
	t.Helper()
	p, err := NewPortfolio(capital, deterministicSim(1), permissiveRisk(t), nil)
	if err != nil {
		t.Fatalf("NewPortfolio: %v", err)
	}
	return p
}

func TestPortfolioValidation(t *testing.T) {
	if _, err := NewPortfolio(-1, nil, nil, nil); err == nil {
		t.Error("NewPortfolio accepted negative capital")
	}

	p := newTestPortfolio(t, 10_000)
	if _, err := p.Run(nil, nil, nil); err == nil {
		t.Error("Run accepted an empty price panel")
	}

	bad := map[string][]domain.Bar{"AAA": {{Symbol: "AAA", Timestamp: day(0), Close: -5}}}
	if _, err := p.Run(bad, nil, nil); err == nil {
		t.Error("Run accepted a non-positive close")
	}
}

func TestPortfolioTimelineCompleteness(t *testing.T) {
	prices := map[string][]domain.Bar{
		"AAA": barsFrom("AAA", 0, 5, 100), // days 0..4
		"BBB": barsFrom("BBB", 2, 6, 50),  // days 2..7
	}
	signals := map[string][]domain.SignalPoint{
		"AAA": {{Timestamp: day(10), Code: domain.SignalHold}}, // signal-only date
	}

	p := newTestPortfolio(t, 10_000)
	result, err := p.Run(prices, signals, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Union of days 0..7 plus the signal-only day 10.
	if len(result.History) != 9 {
		t.Fatalf("history has %d rows, want 9", len(result.History))
	}
	for i := 1; i < len(result.History); i++ {
		if !result.History[i-1].Timestamp.Before(result.History[i].Timestamp) {
			t.Fatalf("history not strictly increasing at row %d", i)
		}
	}
	if !result.History[8].Timestamp.Equal(day(10)) {
		t.Errorf("last row = %v, want the signal-only date %v",
			result.History[8].Timestamp, day(10))
	}
}

func TestPortfolioCapitalConservation(t *testing.T) {
	prices := map[string][]domain.Bar{
		"AAA": barsFrom("AAA", 0, 10, 100),
		"BBB": barsFrom("BBB", 0, 10, 50),
	}

	p := newTestPortfolio(t, 10_000)
	result, err := p.Run(prices, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Fills) != 0 {
		t.Fatalf("got %d fills with no signals, want 0", len(result.Fills))
	}
	for i, row := range result.History {
		if row.Total != 10_000 {
			t.Fatalf("day %d: total = %v, want exactly 10000", i, row.Total)
		}
	}
}

func TestPortfolioEnterSizesByWeight(t *testing.T) {
	prices := map[string][]domain.Bar{"AAA": barsFrom("AAA", 0, 10, 100)}
	signals := map[string][]domain.SignalPoint{
		"AAA": {{Timestamp: day(0), Code: domain.SignalEnter}},
	}
	weights := map[string]float64{"AAA": 0.6}

	p := newTestPortfolio(t, 10_000)
	result, err := p.Run(prices, signals, weights)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(result.Fills))
	}
	// floor(10000 * 0.6 / 100) = 60 whole shares.
	if got := result.Fills[0].Quantity; got != 60 {
		t.Errorf("entry quantity = %d, want 60", got)
	}
	if got := result.History[0].Positions["AAA"]; got != 60 {
		t.Errorf("position after entry = %d, want 60", got)
	}
}

func TestPortfolioRebalanceMovesToTargets(t *testing.T) {
	prices := map[string][]domain.Bar{
		"AAA": barsFrom("AAA", 0, 10, 100),
		"BBB": barsFrom("BBB", 0, 10, 50),
	}
	signals := map[string][]domain.SignalPoint{
		domain.PortfolioSymbol: {{Timestamp: day(0), Code: domain.SignalRebalance}},
	}
	weights := map[string]float64{"AAA": 0.5, "BBB": 0.5}

	p := newTestPortfolio(t, 10_000)
	result, err := p.Run(prices, signals, weights)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Fills) != 2 {
		t.Fatalf("got %d fills, want 2", len(result.Fills))
	}
	for _, fill := range result.Fills {
		if fill.Side != domain.SideBuy {
			t.Errorf("rebalance from flat produced a %s fill, want BUY", fill.Side)
		}
	}

	// AAA trades first: floor(10000*0.5/100) = 50. BBB sees post-trade equity.
	row := result.History[0]
	if row.Positions["AAA"] != 50 {
		t.Errorf("AAA position = %d, want 50", row.Positions["AAA"])
	}
	if row.Positions["BBB"] != 99 {
		t.Errorf("BBB position = %d, want 99", row.Positions["BBB"])
	}
}

func TestPortfolioWideSignalPrecedence(t *testing.T) {
	prices := map[string][]domain.Bar{
		"AAA": barsFrom("AAA", 0, 10, 100),
		"BBB": barsFrom("BBB", 0, 10, 50),
	}
	signals := map[string][]domain.SignalPoint{
		"AAA": {
			{Timestamp: day(0), Code: domain.SignalEnter},
			{Timestamp: day(3), Code: domain.SignalEnter}, // overridden below
		},
		"BBB": {{Timestamp: day(0), Code: domain.SignalEnter}},
		domain.PortfolioSymbol: {
			{Timestamp: day(3), Code: domain.SignalExit},
		},
	}
	weights := map[string]float64{"AAA": 0.4, "BBB": 0.4}

	p := newTestPortfolio(t, 10_000)
	result, err := p.Run(prices, signals, weights)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Two entries on day 0, two exits on day 3; AAA's own enter signal on
	// day 3 must lose to the portfolio-wide exit.
	if len(result.Fills) != 4 {
		t.Fatalf("got %d fills, want 4", len(result.Fills))
	}
	for _, fill := range result.Fills[2:] {
		if fill.Side != domain.SideSell {
			t.Errorf("day-3 fill for %s is %s, want SELL", fill.Symbol, fill.Side)
		}
	}
	last := result.History[len(result.History)-1]
	if last.Positions["AAA"] != 0 || last.Positions["BBB"] != 0 {
		t.Errorf("positions after portfolio exit = %v, want all flat", last.Positions)
	}
}

func TestPortfolioMissingPriceSkipsAsset(t *testing.T) {
	prices := map[string][]domain.Bar{
		"AAA": barsFrom("AAA", 0, 10, 100),
		"BBB": barsFrom("BBB", 5, 5, 50), // no BBB price until day 5
	}
	signals := map[string][]domain.SignalPoint{
		"AAA": {{Timestamp: day(1), Code: domain.SignalEnter}},
		"BBB": {{Timestamp: day(1), Code: domain.SignalEnter}},
	}
	weights := map[string]float64{"AAA": 0.5, "BBB": 0.5}

	p := newTestPortfolio(t, 10_000)
	result, err := p.Run(prices, signals, weights)
	if err != nil {
		t.Fatalf("Run: %v (unresolvable price must not abort the run)", err)
	}
	if len(result.Fills) != 1 {
		t.Fatalf("got %d fills, want 1 (AAA only)", len(result.Fills))
	}
	if result.Fills[0].Symbol != "AAA" {
		t.Errorf("fill symbol = %s, want AAA", result.Fills[0].Symbol)
	}
	last := result.History[len(result.History)-1]
	if last.Positions["BBB"] != 0 {
		t.Errorf("BBB position = %d, want 0", last.Positions["BBB"])
	}
}

func TestPortfolioSharedCashOrdering(t *testing.T) {
	prices := map[string][]domain.Bar{
		"AAA": barsFrom("AAA", 0, 5, 400),
		"BBB": barsFrom("BBB", 0, 5, 400),
	}
	signals := map[string][]domain.SignalPoint{
		"AAA": {{Timestamp: day(0), Code: domain.SignalEnter}},
		"BBB": {{Timestamp: day(0), Code: domain.SignalEnter}},
	}
	// Both want the whole pool; AAA is first in symbol order and drains it.
	weights := map[string]float64{"AAA": 1.0, "BBB": 1.0}

	p := newTestPortfolio(t, 1_000)
	result, err := p.Run(prices, signals, weights)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(result.Fills))
	}
	if result.Fills[0].Symbol != "AAA" {
		t.Errorf("filled symbol = %s, want AAA (deterministic sorted order)", result.Fills[0].Symbol)
	}
	if result.History[0].Cash < 0 {
		t.Errorf("cash went negative: %v", result.History[0].Cash)
	}
}

func TestPortfolioIdempotence(t *testing.T) {
	prices := map[string][]domain.Bar{
		"AAA": linearBars("AAA", 30, 100, 130),
		"BBB": barsFrom("BBB", 0, 30, 50),
	}
	signals := map[string][]domain.SignalPoint{
		"AAA": {
			{Timestamp: day(0), Code: domain.SignalEnter},
			{Timestamp: day(20), Code: domain.SignalExit},
		},
		"BBB": {{Timestamp: day(5), Code: domain.SignalEnter}},
		domain.PortfolioSymbol: {
			{Timestamp: day(25), Code: domain.SignalRebalance},
		},
	}
	weights := map[string]float64{"AAA": 0.5, "BBB": 0.3}

	run := func() *Result {
		p, err := NewPortfolio(10_000,
			NewSimulator(0, 1.0, rand.New(rand.NewPCG(11, 11))),
			permissiveRisk(t), nil)
		if err != nil {
			t.Fatalf("NewPortfolio: %v", err)
		}
		result, err := p.Run(prices, signals, weights)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return result
	}

	a, b := run(), run()
	if len(a.Fills) != len(b.Fills) {
		t.Fatalf("fill counts diverged: %d vs %d", len(a.Fills), len(b.Fills))
	}
	for i := range a.Fills {
		if a.Fills[i] != b.Fills[i] {
			t.Fatalf("fill %d diverged: %+v vs %+v", i, a.Fills[i], b.Fills[i])
		}
	}
	if len(a.History) != len(b.History) {
		t.Fatalf("history lengths diverged: %d vs %d", len(a.History), len(b.History))
	}
	for i := range a.History {
		if a.History[i].Total != b.History[i].Total {
			t.Fatalf("day %d: totals diverged: %v vs %v",
				i, a.History[i].Total, b.History[i].Total)
		}
	}
}

package backtest

import (
	"testing"
	"time"

	"tycho/internal/domain"
)

func snapshotWith(total float64, prices map[string]float64) Snapshot {
	return Snapshot{
		Timestamp: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		Cash:      total,
		Total:     total,
		Positions: map[string]int64{},
		Prices:    prices,
	}
}

func TestRiskManagerValidation(t *testing.T) {
	if _, err := NewRiskManager(0, 0.2); err == nil {
		t.Error("NewRiskManager accepted zero trade risk pct")
	}
	if _, err := NewRiskManager(0.02, 1.5); err == nil {
		t.Error("NewRiskManager accepted drawdown pct > 1")
	}
	if _, err := NewRiskManager(0.02, 0.2); err != nil {
		t.Errorf("NewRiskManager rejected valid thresholds: %v", err)
	}
}

func TestRiskManagerHighWaterMark(t *testing.T) {
	rm, _ := NewRiskManager(0.02, 0.2)

	// HWM rises with equity and is updated on every assessment.
	rm.Assess(testOrder(1, domain.SideSell), snapshotWith(100_000, nil))
	if rm.HighWaterMark() != 100_000 {
		t.Fatalf("HWM = %v, want 100000", rm.HighWaterMark())
	}
	rm.Assess(testOrder(1, domain.SideSell), snapshotWith(120_000, nil))
	if rm.HighWaterMark() != 120_000 {
		t.Fatalf("HWM = %v, want 120000", rm.HighWaterMark())
	}

	// HWM never declines.
	rm.Assess(testOrder(1, domain.SideSell), snapshotWith(90_000, nil))
	if rm.HighWaterMark() != 120_000 {
		t.Errorf("HWM declined to %v, want 120000", rm.HighWaterMark())
	}
}

func TestRiskManagerDrawdownGate(t *testing.T) {
	rm, _ := NewRiskManager(0.02, 0.2)
	prices := map[string]float64{"AAPL": 10}

	// Establish a peak, then breach the 20% ceiling.
	rm.Assess(testOrder(1, domain.SideSell), snapshotWith(100_000, prices))
	breached := snapshotWith(75_000, prices) // 25% drawdown

	if _, ok := rm.Assess(testOrder(10, domain.SideBuy), breached); ok {
		t.Error("BUY approved during drawdown breach, want rejection")
	}
	// Exiting risk is never blocked.
	if _, ok := rm.Assess(testOrder(10, domain.SideSell), breached); !ok {
		t.Error("SELL rejected during drawdown breach, want approval")
	}
}

func TestRiskManagerPositionSizeCap(t *testing.T) {
	rm, _ := NewRiskManager(0.02, 0.2)
	snap := snapshotWith(100_000, map[string]float64{"AAPL": 150})

	// 100 shares * 150 = 15,000 notional, cap is 2,000.
	approved, ok := rm.Assess(testOrder(100, domain.SideBuy), snap)
	if !ok {
		t.Fatal("oversized BUY rejected outright, want scaled approval")
	}
	if notional := float64(approved.Quantity) * 150; notional > 2_000 {
		t.Errorf("scaled notional %v exceeds 2000 cap", notional)
	}
	if approved.Quantity != 13 { // floor(2000/150)
		t.Errorf("scaled quantity = %d, want 13", approved.Quantity)
	}
}

func TestRiskManagerRejectsUnsizableBuy(t *testing.T) {
	rm, _ := NewRiskManager(0.02, 0.2)
	// Cap = 2,000 but one share costs 5,000: scales to zero.
	snap := snapshotWith(100_000, map[string]float64{"BRK": 5_000})

	if _, ok := rm.Assess(testOrder(3, domain.SideBuy), snap); ok {
		t.Error("BUY approved although cap scales quantity to zero")
	}
}

func TestRiskManagerMissingPriceIsHardRejection(t *testing.T) {
	rm, _ := NewRiskManager(0.02, 0.2)
	snap := snapshotWith(100_000, map[string]float64{}) // no price entry

	if _, ok := rm.Assess(testOrder(10, domain.SideBuy), snap); ok {
		t.Error("BUY approved without a snapshot price, want rejection")
	}
}

func TestRiskManagerApprovesSmallBuyUnchanged(t *testing.T) {
	rm, _ := NewRiskManager(0.02, 0.2)
	snap := snapshotWith(100_000, map[string]float64{"AAPL": 150})

	approved, ok := rm.Assess(testOrder(5, domain.SideBuy), snap) // 750 notional
	if !ok {
		t.Fatal("compliant BUY rejected")
	}
	if approved.Quantity != 5 {
		t.Errorf("compliant BUY resized to %d, want 5", approved.Quantity)
	}
}

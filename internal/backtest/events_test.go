package backtest

import (
	"testing"
	"time"

	"tycho/internal/domain"
)

func TestFillTotalCostBuy(t *testing.T) {
	fill := Fill{
		Timestamp:  time.Now(),
		Symbol:     "AAPL",
		Side:       domain.SideBuy,
		Quantity:   10,
		Price:      50,
		Commission: 1,
	}
	if got := fill.TotalCost(); got != 501 {
		t.Errorf("BUY TotalCost = %v, want 501", got)
	}
}

func TestFillTotalCostSell(t *testing.T) {
	fill := Fill{
		Timestamp:  time.Now(),
		Symbol:     "AAPL",
		Side:       domain.SideSell,
		Quantity:   10,
		Price:      50,
		Commission: 1,
	}
	if got := fill.TotalCost(); got != 499 {
		t.Errorf("SELL TotalCost = %v, want 499", got)
	}
}

package builtins

import (
	"fmt"

	"tycho/internal/domain"
	"tycho/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*BuyHold)(nil)

// BuyHold enters on the first bar and never exits. It serves as the default
// benchmark strategy.
type BuyHold struct{}

// NewBuyHold creates a BuyHold strategy.
func NewBuyHold() *BuyHold {
	return &BuyHold{}
}

// Name returns "buy_hold".
func (b *BuyHold) Name() string {
	return "buy_hold"
}

// GenerateSignals emits a single enter point on the first bar.
func (b *BuyHold) GenerateSignals(bars []domain.Bar) ([]domain.SignalPoint, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("buy_hold: empty bar series")
	}
	return []domain.SignalPoint{
		{Timestamp: bars[0].Timestamp, Code: domain.SignalEnter},
	}, nil
}

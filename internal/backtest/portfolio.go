// Package backtest implements the deterministic portfolio replay engine:
// per-strategy simulation over time-ordered bars, trade accounting, and
// derived risk metrics.
package backtest

// Portfolio is the simulated account state for one strategy during one
// backtest run. Positions hold signed share quantities (negative = short).
// Only the simulator's execution step mutates a Portfolio.
type Portfolio struct {
	Equity          float64
	AvailableMargin float64
	Positions       map[string]int64
	EntryPrices     map[string]float64

	// TradeQtyHint, when positive, caps the share count of every opened
	// position. Zero means margin-proportional sizing alone decides.
	TradeQtyHint int64
}

// NewPortfolio creates a Portfolio funded with initialCapital.
func NewPortfolio(initialCapital float64) *Portfolio {
	return &Portfolio{
		Equity:          initialCapital,
		AvailableMargin: initialCapital,
		Positions:       make(map[string]int64),
		EntryPrices:     make(map[string]float64),
	}
}

// Position returns the signed position for a symbol (0 when flat).
func (p *Portfolio) Position(symbol string) int64 {
	return p.Positions[symbol]
}

// EntryPrice returns the recorded entry price for a symbol's open position.
func (p *Portfolio) EntryPrice(symbol string) float64 {
	return p.EntryPrices[symbol]
}

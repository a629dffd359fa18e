package backtest

// TradeRecord is one closed trade's realized profit or loss.
type TradeRecord struct {
	RealizedPnL float64
}

// Result is the finalized output of one strategy's run over one bar series.
// The simulator mutates it bar by bar and finalizes it exactly once; after
// that it is read-only.
type Result struct {
	StrategyName   string
	Symbol         string
	InitialCapital float64
	FinalEquity    float64
	EquityCurve    []float64
	Trades         []TradeRecord

	// Derived metrics, filled in by finalize.
	TotalReturnPct float64
	MaxDrawdownPct float64
	SharpeRatio    float64
	WinRatePct     float64
	TotalTrades    int
}

// TradePnLs returns the per-trade realized PnL series.
func (r *Result) TradePnLs() []float64 {
	pnls := make([]float64, len(r.Trades))
	for i, t := range r.Trades {
		pnls[i] = t.RealizedPnL
	}
	return pnls
}

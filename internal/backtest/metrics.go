package backtest

import "math"

// finalize derives the reporting metrics from a completed run and returns the
// same Result for chaining. After finalize the Result is never mutated.
func finalize(res *Result) *Result {
	res.TotalTrades = len(res.Trades)
	res.TotalReturnPct = totalReturnPct(res.InitialCapital, res.FinalEquity)
	res.MaxDrawdownPct = maxDrawdownPct(res.EquityCurve)
	res.WinRatePct = winRatePct(res.Trades)
	res.SharpeRatio = sharpeRatio(res.TradePnLs())
	return res
}

// totalReturnPct is (final − initial) / initial × 100, or 0 when the initial
// capital is not positive.
func totalReturnPct(initial, final float64) float64 {
	if initial <= 0 {
		return 0
	}
	return (final - initial) / initial * 100
}

// maxDrawdownPct tracks a running peak across the equity curve and returns
// the largest percentage decline from that peak, capped at 100. Equity can
// go negative when a short realizes a loss larger than capital; a decline
// past zero still reports as a total (100%) drawdown. An empty curve
// yields 0.
func maxDrawdownPct(curve []float64) float64 {
	if len(curve) == 0 {
		return 0
	}

	peak := curve[0]
	maxDD := 0.0
	for _, equity := range curve {
		if equity > peak {
			peak = equity
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - equity) / peak * 100
		if dd > 100 {
			dd = 100
		}
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// winRatePct is winning trades over total trades × 100, or 0 with no trades.
func winRatePct(trades []TradeRecord) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.RealizedPnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades)) * 100
}

// sharpeRatio is mean per-trade PnL over its population standard deviation,
// with a zero risk-free rate. Fewer than 2 trades or zero variance yields 0.
// Per-trade sampling (rather than per-period returns) is required for
// compatibility with the downstream ranking logic.
func sharpeRatio(pnls []float64) float64 {
	if len(pnls) < 2 {
		return 0
	}

	sum := 0.0
	for _, p := range pnls {
		sum += p
	}
	mean := sum / float64(len(pnls))

	sumSq := 0.0
	for _, p := range pnls {
		d := p - mean
		sumSq += d * d
	}
	stddev := math.Sqrt(sumSq / float64(len(pnls)))

	if stddev == 0 {
		return 0
	}
	return mean / stddev
}

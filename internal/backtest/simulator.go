package backtest

import (
	"context"
	"log/slog"
	"math"

	"tradebench/internal/domain"
)

// marginFraction is the share of available margin committed when opening a
// position: qty = floor(availableMargin * marginFraction / close). This
// sizing is intentionally simple and must stay bit-for-bit stable; the
// downstream ranking layer compares results across revisions.
const marginFraction = 0.95

// Simulator deterministically replays one time-ordered bar sequence against
// N independent strategies, each with its own Portfolio, producing one Result
// per strategy. Replay is strictly sequential per strategy: each bar's
// execution depends on the prior bar's resulting position.
type Simulator struct {
	log *slog.Logger
}

// NewSimulator creates a Simulator.
func NewSimulator() *Simulator {
	return &Simulator{log: slog.Default().With("component", "simulator")}
}

// Run replays bars against every strategy and returns finalized results in
// strategy order. Bars must already be sorted by ascending timestamp. A
// strategy evaluation error is logged and treated as no signal for that
// (strategy, bar) pair; the run always completes.
func (s *Simulator) Run(ctx context.Context, strategies []Strategy, bars []domain.Bar, initialCapital float64) []*Result {
	results := make([]*Result, 0, len(strategies))

	for _, strat := range strategies {
		if err := strat.Init(ctx); err != nil {
			s.log.Error("strategy init failed, skipping", "strategy", strat.Name(), "err", err)
			results = append(results, finalize(&Result{
				StrategyName:   strat.Name(),
				InitialCapital: initialCapital,
				FinalEquity:    initialCapital,
			}))
			continue
		}
		results = append(results, s.runOne(strat, bars, initialCapital))
	}

	return results
}

// runOne replays the bar series for a single strategy.
func (s *Simulator) runOne(strat Strategy, bars []domain.Bar, initialCapital float64) *Result {
	pf := NewPortfolio(initialCapital)
	res := &Result{
		StrategyName:   strat.Name(),
		InitialCapital: initialCapital,
		EquityCurve:    make([]float64, 0, len(bars)),
	}
	if len(bars) > 0 {
		res.Symbol = bars[0].Symbol
	}

	for i, bar := range bars {
		signal, err := strat.Evaluate(pf, bar)
		if err != nil {
			s.log.Warn("strategy evaluation failed, treating as no signal",
				"strategy", strat.Name(),
				"symbol", bar.Symbol,
				"bar", i,
				"err", err,
			)
		} else {
			s.execute(pf, res, bar, signal)
		}

		// Unconditional liquidation at the end of the series so every run
		// finishes flat.
		if i == len(bars)-1 {
			s.closePosition(pf, res, bar.Symbol, bar.Close)
		}

		res.EquityCurve = append(res.EquityCurve, pf.Equity)
	}

	res.FinalEquity = pf.Equity
	return finalize(res)
}

// execute applies the market-order execution policy for one signal: fills
// are immediate at the bar's close, an opposing position is closed before a
// new one opens, and a signal in the direction already held is a no-op.
func (s *Simulator) execute(pf *Portfolio, res *Result, bar domain.Bar, signal domain.Signal) {
	pos := pf.Position(bar.Symbol)

	switch signal.Direction {
	case domain.DirectionLong:
		if pos > 0 {
			return
		}
		if pos < 0 {
			s.closePosition(pf, res, bar.Symbol, bar.Close)
		}
		s.openPosition(pf, bar.Symbol, bar.Close, +1)

	case domain.DirectionShort:
		if pos < 0 {
			return
		}
		if pos > 0 {
			s.closePosition(pf, res, bar.Symbol, bar.Close)
		}
		s.openPosition(pf, bar.Symbol, bar.Close, -1)
	}
}

// openPosition opens a new position sized by the margin-proportional rule.
// Opening is skipped when the computed quantity floors to zero.
func (s *Simulator) openPosition(pf *Portfolio, symbol string, price float64, sign int64) {
	if price <= 0 {
		return
	}
	qty := int64(math.Floor(pf.AvailableMargin * marginFraction / price))
	if pf.TradeQtyHint > 0 && qty > pf.TradeQtyHint {
		qty = pf.TradeQtyHint
	}
	if qty == 0 {
		return
	}

	pf.Positions[symbol] = sign * qty
	pf.EntryPrices[symbol] = price
	pf.AvailableMargin -= float64(qty) * price
}

// closePosition fully closes any open position for the symbol at the given
// price, realizing PnL and recording a trade. Flat positions are a no-op.
func (s *Simulator) closePosition(pf *Portfolio, res *Result, symbol string, price float64) {
	pos := pf.Position(symbol)
	if pos == 0 {
		return
	}

	entry := pf.EntryPrice(symbol)
	absQty := pos
	if absQty < 0 {
		absQty = -absQty
	}

	var pnl float64
	if pos > 0 {
		pnl = (price - entry) * float64(absQty)
	} else {
		pnl = (entry - price) * float64(absQty)
	}

	pf.Equity += pnl
	// Release the reserved entry value plus the realized PnL.
	pf.AvailableMargin += float64(absQty)*entry + pnl

	delete(pf.Positions, symbol)
	delete(pf.EntryPrices, symbol)

	res.Trades = append(res.Trades, TradeRecord{RealizedPnL: pnl})
}

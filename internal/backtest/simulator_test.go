package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"tradebench/internal/domain"
)

// scripted replays a fixed signal sequence, one per bar.
type scripted struct {
	name    string
	signals []domain.Signal
	errAt   map[int]error
	i       int

	// margin observed at each Evaluate call, for no-op assertions.
	marginSeen []float64
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Init(_ context.Context) error {
	s.i = 0
	s.marginSeen = s.marginSeen[:0]
	return nil
}

func (s *scripted) Evaluate(p *Portfolio, _ domain.Bar) (domain.Signal, error) {
	idx := s.i
	s.i++
	s.marginSeen = append(s.marginSeen, p.AvailableMargin)

	if err, ok := s.errAt[idx]; ok {
		return domain.Signal{}, err
	}
	if idx < len(s.signals) {
		return s.signals[idx], nil
	}
	return domain.Signal{Direction: domain.DirectionNeutral}, nil
}

func mkBars(symbol string, closes ...float64) []domain.Bar {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Symbol:    symbol,
			Timestamp: base.AddDate(0, 0, i),
			Timeframe: domain.TimeframeDay,
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func sig(d domain.Direction) domain.Signal {
	return domain.Signal{Direction: d, Confidence: 1}
}

func TestSimulatorLongThenLiquidate(t *testing.T) {
	// Initial capital 10,000; closes [100, 110]; LONG at bar 0, NEUTRAL at
	// bar 1 (last bar forces liquidation).
	strat := &scripted{
		name:    "long-once",
		signals: []domain.Signal{sig(domain.DirectionLong), sig(domain.DirectionNeutral)},
	}
	bars := mkBars("X", 100, 110)

	results := NewSimulator().Run(context.Background(), []Strategy{strat}, bars, 10000)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	res := results[0]

	// qty = floor(10000*0.95/100) = 95, forced close PnL = (110-100)*95 = 950.
	if got, want := res.FinalEquity, 10950.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("FinalEquity = %v, want %v", got, want)
	}
	if res.TotalTrades != 1 {
		t.Errorf("TotalTrades = %d, want 1", res.TotalTrades)
	}
	if got, want := res.Trades[0].RealizedPnL, 950.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("trade PnL = %v, want %v", got, want)
	}
	if res.WinRatePct != 100 {
		t.Errorf("WinRatePct = %v, want 100", res.WinRatePct)
	}
	if res.MaxDrawdownPct != 0 {
		t.Errorf("MaxDrawdownPct = %v, want 0", res.MaxDrawdownPct)
	}
	if res.SharpeRatio != 0 {
		t.Errorf("SharpeRatio = %v, want 0 for a single trade", res.SharpeRatio)
	}
}

func TestSimulatorShortThenLiquidate(t *testing.T) {
	strat := &scripted{
		name:    "short-once",
		signals: []domain.Signal{sig(domain.DirectionShort), sig(domain.DirectionNeutral)},
	}
	bars := mkBars("X", 100, 110)

	res := NewSimulator().Run(context.Background(), []Strategy{strat}, bars, 10000)[0]

	// Short 95 @ 100, forced close @ 110: PnL = (100-110)*95 = -950.
	if got, want := res.FinalEquity, 9050.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("FinalEquity = %v, want %v", got, want)
	}
	if res.WinRatePct != 0 {
		t.Errorf("WinRatePct = %v, want 0", res.WinRatePct)
	}
	if res.TotalTrades != 1 {
		t.Errorf("TotalTrades = %d, want 1", res.TotalTrades)
	}
}

func TestSimulatorShortBlowupBoundsDrawdown(t *testing.T) {
	// A short against a sharply rising market realizes a loss larger than
	// capital: short 95 @ 100, forced close @ 250 = (100-250)*95 = -14250,
	// leaving equity at -4250. Drawdown must still report within [0, 100].
	strat := &scripted{
		name:    "short-blowup",
		signals: []domain.Signal{sig(domain.DirectionShort), sig(domain.DirectionNeutral)},
	}
	bars := mkBars("X", 100, 250)

	res := NewSimulator().Run(context.Background(), []Strategy{strat}, bars, 10000)[0]

	if got, want := res.FinalEquity, -4250.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("FinalEquity = %v, want %v", got, want)
	}
	if res.MaxDrawdownPct != 100 {
		t.Errorf("MaxDrawdownPct = %v, want 100 when equity goes negative", res.MaxDrawdownPct)
	}
	if res.MaxDrawdownPct < 0 || res.MaxDrawdownPct > 100 {
		t.Errorf("MaxDrawdownPct = %v, out of [0, 100]", res.MaxDrawdownPct)
	}
}

func TestSimulatorLongWhileLongIsNoOp(t *testing.T) {
	strat := &scripted{
		name: "double-long",
		signals: []domain.Signal{
			sig(domain.DirectionLong),
			sig(domain.DirectionLong),
			sig(domain.DirectionNeutral),
		},
	}
	bars := mkBars("X", 100, 105, 110)

	res := NewSimulator().Run(context.Background(), []Strategy{strat}, bars, 10000)[0]

	// Only the forced liquidation trade should exist.
	if res.TotalTrades != 1 {
		t.Fatalf("TotalTrades = %d, want 1", res.TotalTrades)
	}

	// Margin after opening at bar 0 must be unchanged by the repeat LONG:
	// the margin seen at bar 2's evaluate equals the margin at bar 1's.
	if strat.marginSeen[2] != strat.marginSeen[1] {
		t.Errorf("repeat LONG changed margin: %v -> %v", strat.marginSeen[1], strat.marginSeen[2])
	}
}

func TestSimulatorReversalClosesThenOpens(t *testing.T) {
	strat := &scripted{
		name: "reverse",
		signals: []domain.Signal{
			sig(domain.DirectionLong),
			sig(domain.DirectionShort),
			sig(domain.DirectionNeutral),
		},
	}
	bars := mkBars("X", 100, 120, 90)

	res := NewSimulator().Run(context.Background(), []Strategy{strat}, bars, 10000)[0]

	// Trade 1: long 95 @ 100 closed @ 120 = +1900.
	// Trade 2: the short opened @ 120 force-closed @ 90.
	if res.TotalTrades != 2 {
		t.Fatalf("TotalTrades = %d, want 2", res.TotalTrades)
	}
	if got, want := res.Trades[0].RealizedPnL, 1900.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("first trade PnL = %v, want %v", got, want)
	}
	if res.Trades[1].RealizedPnL <= 0 {
		t.Errorf("short into falling market should profit, got %v", res.Trades[1].RealizedPnL)
	}
}

func TestSimulatorEquityConservation(t *testing.T) {
	strat := &scripted{
		name: "churn",
		signals: []domain.Signal{
			sig(domain.DirectionLong),
			sig(domain.DirectionShort),
			sig(domain.DirectionLong),
			sig(domain.DirectionShort),
			sig(domain.DirectionNeutral),
			sig(domain.DirectionLong),
		},
	}
	bars := mkBars("X", 100, 97, 103, 101, 108, 95)

	res := NewSimulator().Run(context.Background(), []Strategy{strat}, bars, 25000)[0]

	var sum float64
	for _, tr := range res.Trades {
		sum += tr.RealizedPnL
	}
	if got, want := res.FinalEquity, res.InitialCapital+sum; math.Abs(got-want) > 1e-6 {
		t.Errorf("FinalEquity = %v, want initial+sum(PnL) = %v", got, want)
	}
	if res.MaxDrawdownPct < 0 || res.MaxDrawdownPct > 100 {
		t.Errorf("MaxDrawdownPct = %v, want within [0, 100]", res.MaxDrawdownPct)
	}
}

func TestSimulatorEvaluationErrorIsNoOp(t *testing.T) {
	strat := &scripted{
		name:    "flaky",
		signals: []domain.Signal{sig(domain.DirectionLong), sig(domain.DirectionLong), sig(domain.DirectionNeutral)},
		errAt:   map[int]error{0: errors.New("indicator blew up")},
	}
	bars := mkBars("X", 100, 100, 110)

	res := NewSimulator().Run(context.Background(), []Strategy{strat}, bars, 10000)[0]

	// Bar 0 errored, so the long opens at bar 1 instead and the run completes.
	if res.TotalTrades != 1 {
		t.Fatalf("TotalTrades = %d, want 1", res.TotalTrades)
	}
	if got, want := res.FinalEquity, 10950.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("FinalEquity = %v, want %v", got, want)
	}
	if len(res.EquityCurve) != len(bars) {
		t.Errorf("equity curve has %d points, want %d", len(res.EquityCurve), len(bars))
	}
}

func TestSimulatorSkipsZeroQuantityOpen(t *testing.T) {
	strat := &scripted{
		name:    "tiny",
		signals: []domain.Signal{sig(domain.DirectionLong), sig(domain.DirectionNeutral)},
	}
	// Price far above what 95% of capital can buy a single share of.
	bars := mkBars("X", 50000, 60000)

	res := NewSimulator().Run(context.Background(), []Strategy{strat}, bars, 10000)[0]

	if res.TotalTrades != 0 {
		t.Errorf("TotalTrades = %d, want 0 when sizing floors to zero", res.TotalTrades)
	}
	if res.FinalEquity != 10000 {
		t.Errorf("FinalEquity = %v, want unchanged 10000", res.FinalEquity)
	}
}

func TestSimulatorTradeQtyHintCapsSize(t *testing.T) {
	strat := &scripted{
		name:    "capped",
		signals: []domain.Signal{sig(domain.DirectionLong), sig(domain.DirectionNeutral)},
	}
	// Margin sizing alone would buy 95 shares; the hint caps it at 10.
	bars := mkBars("X", 100, 110)

	sim := NewSimulator()
	pf := NewPortfolio(10000)
	pf.TradeQtyHint = 10
	res := &Result{StrategyName: strat.name, InitialCapital: 10000}
	if err := strat.Init(context.Background()); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	for i, bar := range bars {
		signal, err := strat.Evaluate(pf, bar)
		if err != nil {
			t.Fatalf("Evaluate returned error: %v", err)
		}
		sim.execute(pf, res, bar, signal)
		if i == len(bars)-1 {
			sim.closePosition(pf, res, bar.Symbol, bar.Close)
		}
	}

	if len(res.Trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(res.Trades))
	}
	// 10 shares from 100 to 110 = +100.
	if got, want := res.Trades[0].RealizedPnL, 100.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("trade PnL = %v, want %v", got, want)
	}
}

func TestSimulatorEmptyBars(t *testing.T) {
	strat := &scripted{name: "idle"}
	res := NewSimulator().Run(context.Background(), []Strategy{strat}, nil, 10000)[0]

	if res.FinalEquity != 10000 {
		t.Errorf("FinalEquity = %v, want 10000", res.FinalEquity)
	}
	if res.MaxDrawdownPct != 0 || res.SharpeRatio != 0 || res.WinRatePct != 0 {
		t.Errorf("metrics on empty run = (%v, %v, %v), want zeros",
			res.MaxDrawdownPct, res.SharpeRatio, res.WinRatePct)
	}
}

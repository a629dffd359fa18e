package builtins

import (
	"context"
	"testing"
	"time"

	"tradebench/internal/backtest"
	"tradebench/internal/domain"
)

func feedCloses(t *testing.T, s backtest.Strategy, closes []float64) []domain.Signal {
	t.Helper()

	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	pf := backtest.NewPortfolio(10000)
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	signals := make([]domain.Signal, 0, len(closes))
	for i, c := range closes {
		sig, err := s.Evaluate(pf, domain.Bar{
			Symbol:    "TEST",
			Timestamp: base.AddDate(0, 0, i),
			Timeframe: domain.TimeframeDay,
			Close:     c,
		})
		if err != nil {
			t.Fatalf("Evaluate(bar %d) returned error: %v", i, err)
		}
		signals = append(signals, sig)
	}
	return signals
}

func TestSMACrossSignals(t *testing.T) {
	s := NewSMACross(2, 3)
	signals := feedCloses(t, s, []float64{10, 10, 10, 20, 1, 1})

	// Warmup bars stay neutral.
	for i := 0; i < 3; i++ {
		if signals[i].Direction != domain.DirectionNeutral {
			t.Errorf("bar %d direction = %s, want NEUTRAL during warmup", i, signals[i].Direction)
		}
	}
	if signals[3].Direction != domain.DirectionLong {
		t.Errorf("bar 3 direction = %s, want LONG on upward cross", signals[3].Direction)
	}
	if signals[5].Direction != domain.DirectionShort {
		t.Errorf("bar 5 direction = %s, want SHORT on downward cross", signals[5].Direction)
	}
}

func TestSMACrossInitResetsState(t *testing.T) {
	s := NewSMACross(2, 3)
	feedCloses(t, s, []float64{10, 10, 10, 20})

	// A second run over the same series must reproduce the same signals.
	signals := feedCloses(t, s, []float64{10, 10, 10, 20})
	if signals[3].Direction != domain.DirectionLong {
		t.Errorf("after reset, bar 3 direction = %s, want LONG", signals[3].Direction)
	}
}

func TestMomentumSignals(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   domain.Direction
	}{
		{"breakout long", []float64{100, 100, 106}, domain.DirectionLong},
		{"breakdown short", []float64{100, 100, 94}, domain.DirectionShort},
		{"inside threshold", []float64{100, 100, 102}, domain.DirectionNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMomentum(2, 0.05)
			signals := feedCloses(t, m, tt.closes)
			last := signals[len(signals)-1]
			if last.Direction != tt.want {
				t.Errorf("direction = %s, want %s", last.Direction, tt.want)
			}
		})
	}
}

func TestMomentumWarmup(t *testing.T) {
	m := NewMomentum(5, 0.05)
	signals := feedCloses(t, m, []float64{100, 200, 300})
	for i, sig := range signals {
		if sig.Direction != domain.DirectionNeutral {
			t.Errorf("bar %d direction = %s, want NEUTRAL before lookback fills", i, sig.Direction)
		}
	}
}

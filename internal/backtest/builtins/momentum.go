package builtins

import (
	"context"
	"fmt"

	"tradebench/internal/backtest"
	"tradebench/internal/domain"
)

// Compile-time interface check.
var _ backtest.Strategy = (*Momentum)(nil)

// Momentum signals in the direction of the N-bar rate of change when it
// exceeds a threshold fraction (e.g. 0.05 for 5%).
type Momentum struct {
	lookback  int
	threshold float64
	closes    []float64
}

// NewMomentum creates a Momentum strategy with the given lookback and
// rate-of-change threshold.
func NewMomentum(lookback int, threshold float64) *Momentum {
	return &Momentum{
		lookback:  lookback,
		threshold: threshold,
	}
}

// Name returns "momentum".
func (m *Momentum) Name() string {
	return "momentum"
}

// Init resets the price history carried over from a previous run.
func (m *Momentum) Init(_ context.Context) error {
	m.closes = m.closes[:0]
	return nil
}

// Evaluate signals LONG when the lookback return exceeds the threshold and
// SHORT when it falls below the negative threshold.
func (m *Momentum) Evaluate(_ *backtest.Portfolio, bar domain.Bar) (domain.Signal, error) {
	m.closes = append(m.closes, bar.Close)
	if len(m.closes) <= m.lookback {
		return domain.Signal{Direction: domain.DirectionNeutral}, nil
	}

	base := m.closes[len(m.closes)-1-m.lookback]
	if base == 0 {
		return domain.Signal{Direction: domain.DirectionNeutral}, nil
	}
	roc := (bar.Close - base) / base

	switch {
	case roc > m.threshold:
		return domain.Signal{
			Direction:  domain.DirectionLong,
			Confidence: min(roc/m.threshold/2, 1),
			Reason:     fmt.Sprintf("%d-bar return %.2f%% above threshold", m.lookback, roc*100),
		}, nil
	case roc < -m.threshold:
		return domain.Signal{
			Direction:  domain.DirectionShort,
			Confidence: min(-roc/m.threshold/2, 1),
			Reason:     fmt.Sprintf("%d-bar return %.2f%% below threshold", m.lookback, roc*100),
		}, nil
	}
	return domain.Signal{Direction: domain.DirectionNeutral}, nil
}

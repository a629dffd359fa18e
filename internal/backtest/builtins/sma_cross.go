// Package builtins provides the strategy implementations that ship with
// tradebench. The production strategy catalogue lives outside this module
// and plugs in through the same Evaluate contract.
package builtins

import (
	"context"

	"tradebench/internal/backtest"
	"tradebench/internal/domain"
)

// Compile-time interface check.
var _ backtest.Strategy = (*SMACross)(nil)

// SMACross is a simple moving average crossover strategy: it signals LONG
// when the short-period SMA crosses above the long-period SMA, and SHORT
// when it crosses below.
type SMACross struct {
	shortPeriod int
	longPeriod  int
	closes      []float64
	prevDiff    float64
	havePrev    bool
}

// NewSMACross creates an SMACross strategy with the specified short and long
// moving average periods.
func NewSMACross(short, long int) *SMACross {
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
	}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Init resets the price history carried over from a previous run.
func (s *SMACross) Init(_ context.Context) error {
	s.closes = s.closes[:0]
	s.prevDiff = 0
	s.havePrev = false
	return nil
}

// Evaluate appends the bar close to the price history and signals on a
// crossover once both averages have enough data.
func (s *SMACross) Evaluate(_ *backtest.Portfolio, bar domain.Bar) (domain.Signal, error) {
	s.closes = append(s.closes, bar.Close)
	if len(s.closes) < s.longPeriod {
		return domain.Signal{Direction: domain.DirectionNeutral}, nil
	}

	diff := sma(s.closes, s.shortPeriod) - sma(s.closes, s.longPeriod)
	defer func() {
		s.prevDiff = diff
		s.havePrev = true
	}()

	if !s.havePrev {
		return domain.Signal{Direction: domain.DirectionNeutral}, nil
	}

	switch {
	case s.prevDiff <= 0 && diff > 0:
		return domain.Signal{
			Direction:  domain.DirectionLong,
			Confidence: 0.6,
			Reason:     "short SMA crossed above long SMA",
		}, nil
	case s.prevDiff >= 0 && diff < 0:
		return domain.Signal{
			Direction:  domain.DirectionShort,
			Confidence: 0.6,
			Reason:     "short SMA crossed below long SMA",
		}, nil
	}
	return domain.Signal{Direction: domain.DirectionNeutral}, nil
}

// sma averages the last period values of closes.
func sma(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period)
}

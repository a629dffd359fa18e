// Package store defines storage interfaces and implementations for persisting
// bars, mirrored market data, and per-strategy backtest performance.
package store

import (
	"context"
	"time"

	"tradebench/internal/domain"
)

// InsertStats reports the outcome of a batch insert. BySymbol attributes
// inserted row counts back to their symbols even when one physical batch
// interleaves rows from many symbols.
type InsertStats struct {
	Inserted int64
	Skipped  int64
	BySymbol map[string]int64
}

// StrategyPerformance is one persisted row of backtest metrics for a
// (strategy, symbol) pair. This table feeds the downstream ranking layer.
type StrategyPerformance struct {
	Strategy       string
	Symbol         string
	InitialCapital float64
	FinalEquity    float64
	TotalReturnPct float64
	MaxDrawdownPct float64
	SharpeRatio    float64
	WinRatePct     float64
	TotalTrades    int
	RunAt          time.Time
}

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// InsertBars persists a batch of bars, trying the bulk path first and
	// falling back to per-row inserts on failure. Duplicate rows (by symbol,
	// timestamp, timeframe) are skipped, never upserted.
	InsertBars(ctx context.Context, bars []domain.Bar) (InsertStats, error)

	// ReadBars returns bars for the symbol and timeframe within [start, end],
	// ordered by ascending timestamp.
	ReadBars(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with persisted bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// Truncator clears all destination tables ahead of an ingestion run.
type Truncator interface {
	// TruncateAll deletes every row from the bars, market_data, and
	// strategy_performance tables inside a single transaction.
	TruncateAll(ctx context.Context) error
}

// PerformanceStore persists per-strategy backtest metrics.
type PerformanceStore interface {
	// SavePerformance inserts the given performance rows.
	SavePerformance(ctx context.Context, rows []StrategyPerformance) error
}

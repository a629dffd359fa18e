// Package provider defines the historical-data provider interface and its
// implementations: a generic HTTP JSON endpoint and the Alpaca market-data
// API.
package provider

import (
	"context"
	"time"

	"tradebench/internal/domain"
)

// BarProvider fetches historical OHLCV bars for one symbol over a date range.
// Implementations must return bars in ascending timestamp order.
type BarProvider interface {
	// FetchBars returns all bars for symbol with timestamps in [start, end].
	FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

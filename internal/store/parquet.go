package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
)

// ResultArchive exports finalized backtest output to Parquet files on disk
// for offline analysis. Files are organized by strategy and symbol:
//
//	<DataDir>/results/<STRATEGY>/<SYMBOL>-equity.parquet
//	<DataDir>/results/<STRATEGY>/<SYMBOL>-trades.parquet
type ResultArchive struct {
	DataDir string
}

// NewResultArchive creates a ResultArchive rooted at the given data directory.
func NewResultArchive(dataDir string) *ResultArchive {
	return &ResultArchive{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// EquityRecord is one point of a strategy's equity curve.
type EquityRecord struct {
	Strategy string  `parquet:"strategy"`
	Symbol   string  `parquet:"symbol"`
	BarIndex int64   `parquet:"bar_index"`
	Equity   float64 `parquet:"equity"`
}

// TradePnLRecord is one realized trade from a strategy's trade ledger.
type TradePnLRecord struct {
	Strategy    string  `parquet:"strategy"`
	Symbol      string  `parquet:"symbol"`
	TradeIndex  int64   `parquet:"trade_index"`
	RealizedPnL float64 `parquet:"realized_pnl"`
}

// ---------------------------------------------------------------------------
// Export
// ---------------------------------------------------------------------------

// ExportRun writes one strategy/symbol run's equity curve and trade ledger.
// Existing files for the same run are overwritten; results are immutable once
// finalized, so there is nothing to merge.
func (a *ResultArchive) ExportRun(strategy, symbol string, equityCurve, tradePnLs []float64) error {
	equity := make([]EquityRecord, len(equityCurve))
	for i, e := range equityCurve {
		equity[i] = EquityRecord{Strategy: strategy, Symbol: symbol, BarIndex: int64(i), Equity: e}
	}
	if err := writeParquetFile(a.equityPath(strategy, symbol), equity); err != nil {
		return fmt.Errorf("writing equity curve for %s/%s: %w", strategy, symbol, err)
	}

	trades := make([]TradePnLRecord, len(tradePnLs))
	for i, pnl := range tradePnLs {
		trades[i] = TradePnLRecord{Strategy: strategy, Symbol: symbol, TradeIndex: int64(i), RealizedPnL: pnl}
	}
	if err := writeParquetFile(a.tradesPath(strategy, symbol), trades); err != nil {
		return fmt.Errorf("writing trades for %s/%s: %w", strategy, symbol, err)
	}
	return nil
}

// ReadEquityCurve reads back an exported equity curve.
func (a *ResultArchive) ReadEquityCurve(strategy, symbol string) ([]EquityRecord, error) {
	return readParquetFile[EquityRecord](a.equityPath(strategy, symbol))
}

// ReadTrades reads back an exported trade ledger.
func (a *ResultArchive) ReadTrades(strategy, symbol string) ([]TradePnLRecord, error) {
	return readParquetFile[TradePnLRecord](a.tradesPath(strategy, symbol))
}

func (a *ResultArchive) equityPath(strategy, symbol string) string {
	return filepath.Join(a.DataDir, "results", strategy, symbol+"-equity.parquet")
}

func (a *ResultArchive) tradesPath(strategy, symbol string) string {
	return filepath.Join(a.DataDir, "results", strategy, symbol+"-trades.parquet")
}

// ---------------------------------------------------------------------------
// Generic parquet helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

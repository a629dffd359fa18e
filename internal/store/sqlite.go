package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"tradebench/internal/domain"
)

// Compile-time interface checks.
var _ BarStore = (*SQLiteStore)(nil)
var _ Truncator = (*SQLiteStore)(nil)
var _ PerformanceStore = (*SQLiteStore)(nil)

// maxBulkRows caps rows per multi-row INSERT statement so the bound-parameter
// count stays well under the SQLite host parameter limit.
const maxBulkRows = 500

const schema = `
CREATE TABLE IF NOT EXISTS bars (
	timestamp   INTEGER NOT NULL,
	symbol      TEXT    NOT NULL,
	name        TEXT    NOT NULL DEFAULT '',
	market      TEXT    NOT NULL DEFAULT 'us',
	timeframe   TEXT    NOT NULL,
	open        REAL    NOT NULL,
	high        REAL    NOT NULL,
	low         REAL    NOT NULL,
	close       REAL    NOT NULL,
	volume      REAL    NOT NULL,
	is_complete INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (symbol, timestamp, timeframe)
);

CREATE TABLE IF NOT EXISTS market_data (
	symbol     TEXT    NOT NULL,
	timestamp  INTEGER NOT NULL,
	timeframe  TEXT    NOT NULL,
	asset_type TEXT    NOT NULL DEFAULT 'equity',
	open       REAL    NOT NULL,
	high       REAL    NOT NULL,
	low        REAL    NOT NULL,
	close      REAL    NOT NULL,
	volume     REAL    NOT NULL,
	PRIMARY KEY (symbol, timestamp, timeframe, asset_type)
);

CREATE TABLE IF NOT EXISTS strategy_performance (
	strategy         TEXT    NOT NULL,
	symbol           TEXT    NOT NULL,
	initial_capital  REAL    NOT NULL,
	final_equity     REAL    NOT NULL,
	total_return_pct REAL    NOT NULL,
	max_drawdown_pct REAL    NOT NULL,
	sharpe_ratio     REAL    NOT NULL,
	win_rate_pct     REAL    NOT NULL,
	total_trades     INTEGER NOT NULL,
	run_at           INTEGER NOT NULL
);
`

// SQLiteStore implements BarStore, Truncator, and PerformanceStore backed by
// a SQLite database.
type SQLiteStore struct {
	db        *sql.DB
	assetType string
	log       *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, initializes
// the schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// One writer at a time; SQLite serializes writes anyway and the ingestion
	// pipeline funnels all writes through a single goroutine.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &SQLiteStore{
		db:        db,
		assetType: "equity",
		log:       slog.Default().With("component", "sqlite-store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// InsertBars persists a batch of bars. It first attempts the bulk path: a
// small number of multi-row INSERT statements inside one transaction, which
// fails wholesale on any error including a duplicate key. On failure it
// retries with the conservative per-row path, which skips duplicates via
// INSERT OR IGNORE and reports exact per-row counts.
func (s *SQLiteStore) InsertBars(ctx context.Context, bars []domain.Bar) (InsertStats, error) {
	if len(bars) == 0 {
		return InsertStats{BySymbol: map[string]int64{}}, nil
	}

	stats, err := s.insertBarsBulk(ctx, bars)
	if err == nil {
		return stats, nil
	}

	s.log.Warn("bulk insert failed, retrying per-row", "rows", len(bars), "err", err)
	return s.insertBarsFallback(ctx, bars)
}

// insertBarsBulk writes all bars with multi-row INSERT statements in a single
// transaction. Any failure rolls back the whole batch.
func (s *SQLiteStore) insertBarsBulk(ctx context.Context, bars []domain.Bar) (InsertStats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return InsertStats{}, fmt.Errorf("beginning bulk tx: %w", err)
	}
	defer tx.Rollback()

	for offset := 0; offset < len(bars); offset += maxBulkRows {
		end := min(offset+maxBulkRows, len(bars))
		chunk := bars[offset:end]

		placeholders := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*10)
		for _, b := range chunk {
			placeholders = append(placeholders, "(?,?,?,?,?,?,?,?,?,?,1)")
			args = append(args,
				b.Timestamp.Unix(), b.Symbol, b.Name, "us", string(b.Timeframe),
				b.Open, b.High, b.Low, b.Close, b.Volume,
			)
		}

		stmt := "INSERT INTO bars (timestamp, symbol, name, market, timeframe, open, high, low, close, volume, is_complete) VALUES " +
			strings.Join(placeholders, ",")
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return InsertStats{}, fmt.Errorf("bulk insert chunk: %w", err)
		}
	}

	if err := s.mirrorMarketData(ctx, tx, bars); err != nil {
		return InsertStats{}, err
	}

	if err := tx.Commit(); err != nil {
		return InsertStats{}, fmt.Errorf("committing bulk tx: %w", err)
	}

	stats := InsertStats{Inserted: int64(len(bars)), BySymbol: make(map[string]int64)}
	for _, b := range bars {
		stats.BySymbol[b.Symbol]++
	}
	return stats, nil
}

// insertBarsFallback writes bars one row at a time inside a single
// transaction, skipping duplicates and attributing inserted counts exactly.
func (s *SQLiteStore) insertBarsFallback(ctx context.Context, bars []domain.Bar) (InsertStats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return InsertStats{}, fmt.Errorf("beginning fallback tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO bars (timestamp, symbol, name, market, timeframe, open, high, low, close, volume, is_complete)
		 VALUES (?,?,?,?,?,?,?,?,?,?,1)`)
	if err != nil {
		return InsertStats{}, fmt.Errorf("preparing fallback stmt: %w", err)
	}
	defer stmt.Close()

	stats := InsertStats{BySymbol: make(map[string]int64)}
	for _, b := range bars {
		res, err := stmt.ExecContext(ctx,
			b.Timestamp.Unix(), b.Symbol, b.Name, "us", string(b.Timeframe),
			b.Open, b.High, b.Low, b.Close, b.Volume,
		)
		if err != nil {
			return InsertStats{}, fmt.Errorf("fallback insert %s@%d: %w", b.Symbol, b.Timestamp.Unix(), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return InsertStats{}, fmt.Errorf("fallback rows affected: %w", err)
		}
		if n > 0 {
			stats.Inserted++
			stats.BySymbol[b.Symbol]++
		} else {
			stats.Skipped++
		}
	}

	if err := s.mirrorMarketData(ctx, tx, bars); err != nil {
		return InsertStats{}, err
	}

	if err := tx.Commit(); err != nil {
		return InsertStats{}, fmt.Errorf("committing fallback tx: %w", err)
	}
	return stats, nil
}

// mirrorMarketData copies the batch into the secondary market_data table
// within the caller's transaction. Duplicates in the mirror are ignored; the
// mirror never affects per-symbol attribution.
func (s *SQLiteStore) mirrorMarketData(ctx context.Context, tx *sql.Tx, bars []domain.Bar) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO market_data (symbol, timestamp, timeframe, asset_type, open, high, low, close, volume)
		 VALUES (?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("preparing market_data stmt: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			b.Symbol, b.Timestamp.Unix(), string(b.Timeframe), s.assetType,
			b.Open, b.High, b.Low, b.Close, b.Volume,
		); err != nil {
			return fmt.Errorf("mirroring market_data %s@%d: %w", b.Symbol, b.Timestamp.Unix(), err)
		}
	}
	return nil
}

// ReadBars returns bars for the symbol and timeframe within [start, end],
// ordered by ascending timestamp.
func (s *SQLiteStore) ReadBars(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end time.Time) ([]domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, symbol, name, timeframe, open, high, low, close, volume
		 FROM bars
		 WHERE symbol = ? AND timeframe = ? AND timestamp BETWEEN ? AND ?
		 ORDER BY timestamp ASC`,
		symbol, string(timeframe), start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("querying bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var (
			ts int64
			b  domain.Bar
			tf string
		)
		if err := rows.Scan(&ts, &b.Symbol, &b.Name, &tf, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scanning bar row: %w", err)
		}
		b.Timestamp = time.Unix(ts, 0).UTC()
		b.Timeframe = domain.Timeframe(tf)
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ListSymbols returns all distinct symbols with persisted bars, sorted.
func (s *SQLiteStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("listing symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scanning symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// ---------------------------------------------------------------------------
// Truncator implementation
// ---------------------------------------------------------------------------

// TruncateAll deletes all rows from the bars, market_data, and
// strategy_performance tables in a single transaction. A failure rolls back
// every table so the run never proceeds on a half-truncated store.
func (s *SQLiteStore) TruncateAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning truncate tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"bars", "market_data", "strategy_performance"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("truncating %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing truncate tx: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// PerformanceStore implementation
// ---------------------------------------------------------------------------

// SavePerformance inserts the given strategy performance rows.
func (s *SQLiteStore) SavePerformance(ctx context.Context, perf []StrategyPerformance) error {
	if len(perf) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning performance tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO strategy_performance
		 (strategy, symbol, initial_capital, final_equity, total_return_pct, max_drawdown_pct, sharpe_ratio, win_rate_pct, total_trades, run_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("preparing performance stmt: %w", err)
	}
	defer stmt.Close()

	for _, p := range perf {
		if _, err := stmt.ExecContext(ctx,
			p.Strategy, p.Symbol, p.InitialCapital, p.FinalEquity,
			p.TotalReturnPct, p.MaxDrawdownPct, p.SharpeRatio, p.WinRatePct,
			p.TotalTrades, p.RunAt.Unix(),
		); err != nil {
			return fmt.Errorf("inserting performance %s/%s: %w", p.Strategy, p.Symbol, err)
		}
	}

	return tx.Commit()
}

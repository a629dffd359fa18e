package backtest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradebench/internal/domain"
)

// BarReader is the slice of the store the runner needs: time-ordered bars
// for one symbol.
type BarReader interface {
	ReadBars(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end time.Time) ([]domain.Bar, error)
}

// StrategyFactory builds a fresh set of strategies for one backtest run.
// Each symbol's run gets its own instances so indicator memory is never
// shared across concurrent runs.
type StrategyFactory func() []Strategy

// BatchRunner runs independent backtests for many symbols concurrently.
// Each worker owns a disjoint symbol's portfolios and results, so the only
// shared state is the results map, guarded by a mutex.
type BatchRunner struct {
	reader     BarReader
	sim        *Simulator
	maxWorkers int
	log        *slog.Logger
}

// NewBatchRunner creates a BatchRunner reading bars from the given reader.
func NewBatchRunner(reader BarReader, maxWorkers int) *BatchRunner {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &BatchRunner{
		reader:     reader,
		sim:        NewSimulator(),
		maxWorkers: maxWorkers,
		log:        slog.Default().With("component", "batch-runner"),
	}
}

// RunSymbols backtests every symbol against the factory's strategies and
// returns results keyed by symbol. A symbol whose bars cannot be read is
// logged and omitted; the batch itself never fails.
func (r *BatchRunner) RunSymbols(
	ctx context.Context,
	symbols []string,
	factory StrategyFactory,
	timeframe domain.Timeframe,
	start, end time.Time,
	initialCapital float64,
) map[string][]*Result {
	var (
		mu      sync.Mutex
		results = make(map[string][]*Result, len(symbols))
		wg      sync.WaitGroup
		sem     = make(chan struct{}, r.maxWorkers)
	)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			bars, err := r.reader.ReadBars(ctx, sym, timeframe, start, end)
			if err != nil {
				r.log.Error("reading bars failed, skipping symbol", "symbol", sym, "err", err)
				return
			}
			if len(bars) == 0 {
				r.log.Warn("no bars for symbol, skipping", "symbol", sym)
				return
			}

			runResults := r.sim.Run(ctx, factory(), bars, initialCapital)

			mu.Lock()
			results[sym] = runResults
			mu.Unlock()
		}(symbol)
	}

	wg.Wait()
	return results
}

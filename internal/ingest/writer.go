package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tradebench/internal/domain"
	"tradebench/internal/store"
)

// globalWriter is the single consumer of the ingestion queue. It accumulates
// points into an in-memory batch and flushes on a size or time threshold,
// attributing inserted counts back per symbol.
type globalWriter struct {
	store         store.BarStore
	queue         <-chan domain.Bar
	producersDone *atomic.Bool
	batchSize     int
	flushInterval time.Duration
	pollInterval  time.Duration

	inserted  sync.Map // symbol → *atomic.Int64
	attempted atomic.Int64

	log *slog.Logger
}

// run drains the queue until all producers are finished and the queue is
// empty, then performs one final flush. It never aborts on write failures;
// a failed batch is logged and its rows are counted as not inserted.
func (w *globalWriter) run(ctx context.Context) {
	batch := make([]domain.Bar, 0, w.batchSize)
	lastFlush := time.Now()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.attempted.Add(int64(len(batch)))

		stats, err := w.store.InsertBars(ctx, batch)
		if err != nil {
			w.log.Error("batch write failed on both paths", "rows", len(batch), "err", err)
		} else {
			for sym, n := range stats.BySymbol {
				w.addInserted(sym, n)
			}
		}

		batch = batch[:0]
		lastFlush = time.Now()
	}

	for {
		if w.producersDone.Load() && len(w.queue) == 0 {
			break
		}

		select {
		case bar := <-w.queue:
			batch = append(batch, bar)
			if len(batch) >= w.batchSize {
				flush()
			}
		case <-time.After(w.pollInterval):
			// Fall through to re-evaluate the completion condition.
		}

		if len(batch) > 0 && time.Since(lastFlush) >= w.flushInterval {
			flush()
		}
	}

	flush()
}

// addInserted credits n inserted rows to the symbol's counter.
func (w *globalWriter) addInserted(symbol string, n int64) {
	v, _ := w.inserted.LoadOrStore(symbol, new(atomic.Int64))
	v.(*atomic.Int64).Add(n)
}

// insertedFor returns the inserted count recorded for the symbol so far.
func (w *globalWriter) insertedFor(symbol string) int64 {
	v, ok := w.inserted.Load(symbol)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// Package ingest implements the concurrent historical-data ingestion
// pipeline: per-symbol fetch workers feeding a bounded queue drained by a
// single global writer, guarded by a one-time truncation gate.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"

	"tradebench/internal/store"
)

// Gate performs a one-time, idempotent truncation of the destination tables
// before the first write of an ingestion run. Only the caller that wins the
// compare-and-set performs the truncation; everyone else observes the flag
// and skips. A failed truncation resets the flag so the run can be retried,
// and the error is fatal for the current run.
type Gate struct {
	truncated atomic.Bool
	store     store.Truncator
}

// NewGate creates a Gate over the given truncator.
func NewGate(t store.Truncator) *Gate {
	return &Gate{store: t}
}

// Ensure truncates the destination tables exactly once. Safe for concurrent
// use; losers of the CAS return immediately.
func (g *Gate) Ensure(ctx context.Context) error {
	if !g.truncated.CompareAndSwap(false, true) {
		return nil
	}

	if err := g.store.TruncateAll(ctx); err != nil {
		g.truncated.Store(false)
		return fmt.Errorf("truncating destination tables: %w", err)
	}
	return nil
}

// Done reports whether the truncation has completed for this run.
func (g *Gate) Done() bool {
	return g.truncated.Load()
}

package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tradebench/internal/config"
	"tradebench/internal/domain"
	"tradebench/internal/provider"
	"tradebench/internal/store"
)

// Options tunes the ingestion pipeline. Zero values fall back to the
// documented defaults.
type Options struct {
	MaxConcurrent int           // simultaneous symbol fetch tasks (default 8)
	QueueCapacity int           // bounded ingestion queue size (default 10000)
	BatchSize     int           // writer flush size threshold (default 2000)
	FlushInterval time.Duration // writer flush time threshold (default 500ms)
	PollInterval  time.Duration // writer empty-queue poll timeout (default 100ms)
	BatchDays     int           // provider window size in days (default 365)
	WaitTimeout   time.Duration // how long Run waits for the writer (default 10m)
	Timeframe     domain.Timeframe
}

// OptionsFromConfig maps the ingest configuration onto pipeline Options.
func OptionsFromConfig(cfg config.IngestConfig) Options {
	return Options{
		MaxConcurrent: cfg.MaxConcurrent,
		QueueCapacity: cfg.QueueCapacity,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval(),
		BatchDays:     cfg.BatchDays,
		WaitTimeout:   cfg.WaitTimeout(),
		Timeframe:     domain.Timeframe(cfg.Timeframe),
	}
}

func (o *Options) applyDefaults() {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 8
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 10000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 2000
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
	if o.BatchDays <= 0 {
		o.BatchDays = 365
	}
	if o.WaitTimeout <= 0 {
		o.WaitTimeout = 10 * time.Minute
	}
	if o.Timeframe == "" {
		o.Timeframe = domain.TimeframeDay
	}
}

// Pipeline wires per-symbol fetch workers, the bounded ingestion queue, the
// global writer, and the truncation gate into one downloadable unit of work.
type Pipeline struct {
	provider provider.BarProvider
	store    store.BarStore
	gate     *Gate
	opts     Options
	log      *slog.Logger
}

// NewPipeline creates a Pipeline. gate may be nil when the destination tables
// are managed externally (tests, incremental refreshes).
func NewPipeline(p provider.BarProvider, s store.BarStore, gate *Gate, opts Options) *Pipeline {
	opts.applyDefaults()
	return &Pipeline{
		provider: p,
		store:    s,
		gate:     gate,
		opts:     opts,
		log:      slog.Default().With("component", "ingest"),
	}
}

// Run downloads the requested number of years of bars for every symbol and
// persists them. It launches one fetch task per symbol, capped by a counting
// semaphore, all feeding one bounded queue drained by a single writer.
//
// Run always returns a Summary; per-symbol failures surface as zero or
// partial counts rather than errors. The only fatal error is a truncation
// failure, which aborts before any fetch starts.
func (p *Pipeline) Run(ctx context.Context, symbols []string, years int) (*Summary, error) {
	runStart := time.Now()

	if p.gate != nil {
		if err := p.gate.Ensure(ctx); err != nil {
			return nil, err
		}
	}

	queue := make(chan domain.Bar, p.opts.QueueCapacity)
	var producersDone atomic.Bool

	writer := &globalWriter{
		store:         p.store,
		queue:         queue,
		producersDone: &producersDone,
		batchSize:     p.opts.BatchSize,
		flushInterval: p.opts.FlushInterval,
		pollInterval:  p.opts.PollInterval,
		log:           p.log.With("role", "writer"),
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writer.run(ctx)
	}()

	// Fetch workers: one goroutine per symbol, gated by the semaphore.
	var (
		wg      sync.WaitGroup
		sem     = make(chan struct{}, p.opts.MaxConcurrent)
		fetched = make([]atomic.Int64, len(symbols))
	)

	for i, symbol := range symbols {
		wg.Add(1)
		go func(idx int, sym string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			n := p.fetchSymbol(ctx, sym, years, queue)
			fetched[idx].Store(n)
		}(i, symbol)
	}

	go func() {
		wg.Wait()
		producersDone.Store(true)
	}()

	// Block on the writer's completion signal, bounded by the wait timeout.
	// A timeout is a warning, not a failure; partial counts are returned.
	timedOut := false
	select {
	case <-writerDone:
	case <-time.After(p.opts.WaitTimeout):
		p.log.Warn("timed out waiting for writer to drain", "timeout", p.opts.WaitTimeout)
		timedOut = true
	}

	summary := &Summary{
		Results:        make([]DownloadResult, 0, len(symbols)),
		Elapsed:        time.Since(runStart),
		WriterTimedOut: timedOut,
		TotalAttempted: writer.attempted.Load(),
	}
	for i, symbol := range symbols {
		totalFetched := fetched[i].Load()
		inserted := writer.insertedFor(symbol)
		r := DownloadResult{
			Symbol:       symbol,
			TotalFetched: totalFetched,
			Inserted:     inserted,
			Skipped:      totalFetched - inserted,
		}
		summary.Results = append(summary.Results, r)
		summary.TotalFetched += r.TotalFetched
		summary.TotalInserted += r.Inserted
		summary.TotalSkipped += r.Skipped
	}

	p.log.Info("ingestion run finished",
		"symbols", len(symbols),
		"fetched", summary.TotalFetched,
		"inserted", summary.TotalInserted,
		"skipped", summary.TotalSkipped,
		"elapsed", summary.Elapsed.Round(time.Millisecond),
		"timedOut", timedOut,
	)
	return summary, nil
}

// fetchSymbol walks fixed-size date windows from now backward and pushes
// every decoded bar onto the queue. A failed window is logged and skipped so
// partial data still lands; the send blocks when the queue is full, which is
// how writer throughput throttles fetch rate.
func (p *Pipeline) fetchSymbol(ctx context.Context, symbol string, years int, queue chan<- domain.Bar) int64 {
	totalDays := years * 365
	windows := (totalDays + p.opts.BatchDays - 1) / p.opts.BatchDays

	var fetched int64
	end := time.Now().UTC()

	for i := 0; i < windows; i++ {
		if ctx.Err() != nil {
			return fetched
		}

		start := end.AddDate(0, 0, -p.opts.BatchDays)
		bars, err := p.provider.FetchBars(ctx, symbol, start, end)
		if err != nil {
			p.log.Warn("window fetch failed, skipping",
				"symbol", symbol,
				"window", i+1,
				"windows", windows,
				"err", err,
			)
			end = start
			continue
		}

		for _, bar := range bars {
			if bar.Timeframe == "" {
				bar.Timeframe = p.opts.Timeframe
			}
			select {
			case queue <- bar:
				fetched++
			case <-ctx.Done():
				return fetched
			}
		}

		end = start
	}

	return fetched
}

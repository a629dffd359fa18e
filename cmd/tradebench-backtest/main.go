// Command tradebench-backtest replays persisted bars through the registered
// strategies, stores per-strategy performance rows, and archives results to
// Parquet.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"tradebench/internal/backtest"
	"tradebench/internal/backtest/builtins"
	"tradebench/internal/config"
	"tradebench/internal/domain"
	"tradebench/internal/store"
	"tradebench/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/tradebench.yaml", "path to config file")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (overrides config)")
	startFlag := flag.String("start", "", "start date YYYY-MM-DD (overrides config)")
	endFlag := flag.String("end", "", "end date YYYY-MM-DD (overrides config)")
	flag.Parse()

	if p := os.Getenv("TRADEBENCH_CONFIG"); p != "" {
		*cfgPath = p
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	sqlStore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer sqlStore.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	symbols := cfg.Backtest.Symbols
	if *symbolsFlag != "" {
		symbols = strings.Split(*symbolsFlag, ",")
	}
	if len(symbols) == 0 {
		symbols, err = sqlStore.ListSymbols(ctx)
		if err != nil {
			log.Fatalf("failed to list symbols: %v", err)
		}
	}
	if len(symbols) == 0 {
		log.Fatal("no symbols to backtest; run tradebench-ingest first")
	}

	start, end, err := resolveRange(cfg.Backtest, *startFlag, *endFlag)
	if err != nil {
		log.Fatalf("invalid date range: %v", err)
	}

	factory := func() []backtest.Strategy {
		return []backtest.Strategy{
			builtins.NewSMACross(10, 30),
			builtins.NewMomentum(20, 0.05),
		}
	}

	runner := backtest.NewBatchRunner(sqlStore, cfg.Backtest.MaxWorkers)

	logger.Info("starting backtest batch",
		"symbols", len(symbols),
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
		"capital", cfg.Backtest.InitialCapital,
	)

	results := runner.RunSymbols(ctx, symbols, factory,
		domain.Timeframe(cfg.Ingest.Timeframe), start, end, cfg.Backtest.InitialCapital)

	archive := store.NewResultArchive(cfg.Storage.DataDir)
	runAt := time.Now().UTC()

	var perf []store.StrategyPerformance
	sortedSymbols := make([]string, 0, len(results))
	for sym := range results {
		sortedSymbols = append(sortedSymbols, sym)
	}
	sort.Strings(sortedSymbols)

	for _, sym := range sortedSymbols {
		for _, res := range results[sym] {
			perf = append(perf, store.StrategyPerformance{
				Strategy:       res.StrategyName,
				Symbol:         sym,
				InitialCapital: res.InitialCapital,
				FinalEquity:    res.FinalEquity,
				TotalReturnPct: res.TotalReturnPct,
				MaxDrawdownPct: res.MaxDrawdownPct,
				SharpeRatio:    res.SharpeRatio,
				WinRatePct:     res.WinRatePct,
				TotalTrades:    res.TotalTrades,
				RunAt:          runAt,
			})

			if err := archive.ExportRun(res.StrategyName, sym, res.EquityCurve, res.TradePnLs()); err != nil {
				logger.Error("archiving result failed", "strategy", res.StrategyName, "symbol", sym, "err", err)
			}

			fmt.Printf("%-10s %-12s return=%8.2f%% drawdown=%6.2f%% sharpe=%6.3f winrate=%6.2f%% trades=%d\n",
				sym, res.StrategyName, res.TotalReturnPct, res.MaxDrawdownPct,
				res.SharpeRatio, res.WinRatePct, res.TotalTrades)
		}
	}

	if err := sqlStore.SavePerformance(ctx, perf); err != nil {
		log.Fatalf("failed to save strategy performance: %v", err)
	}

	logger.Info("backtest batch finished", "symbols", len(results), "rows", len(perf))
}

// resolveRange picks the backtest window: explicit flags win over config,
// and an unset window defaults to the last five years.
func resolveRange(cfg config.BacktestConfig, startFlag, endFlag string) (time.Time, time.Time, error) {
	startStr := cfg.StartDate
	if startFlag != "" {
		startStr = startFlag
	}
	endStr := cfg.EndDate
	if endFlag != "" {
		endStr = endFlag
	}

	end := time.Now().UTC()
	if endStr != "" {
		var err error
		end, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing end date %q: %w", endStr, err)
		}
	}

	start := end.AddDate(-5, 0, 0)
	if startStr != "" {
		var err error
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing start date %q: %w", startStr, err)
		}
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s is not before end %s", startStr, endStr)
	}
	return start, end, nil
}

// Command tradebench-ingest downloads years of historical bars for the
// configured symbols and persists them through the ingestion pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tradebench/internal/config"
	"tradebench/internal/domain"
	"tradebench/internal/ingest"
	"tradebench/internal/provider"
	"tradebench/internal/store"
	"tradebench/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/tradebench.yaml", "path to config file")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols (overrides config)")
	years := flag.Int("years", 0, "years of history to fetch (overrides config)")
	noTruncate := flag.Bool("no-truncate", false, "skip the destination table reset")
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

	symbols := cfg.Ingest.Symbols
	if *symbolsFlag != "" {
		symbols = strings.Split(*symbolsFlag, ",")
	}
	if len(symbols) == 0 {
		log.Fatal("no symbols configured")
	}

	runYears := cfg.Ingest.Years
	if *years > 0 {
		runYears = *years
	}

	sqlStore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer sqlStore.Close()

	var barProvider provider.BarProvider
	switch cfg.Provider.Source {
	case "alpaca":
		barProvider = provider.NewAlpacaProvider(cfg.Provider)
	default:
		barProvider = provider.NewHTTPProvider(cfg.Provider, domain.Timeframe(cfg.Ingest.Timeframe))
	}

	var gate *ingest.Gate
	if !*noTruncate {
		gate = ingest.NewGate(sqlStore)
	}

	pipeline := ingest.NewPipeline(barProvider, sqlStore, gate, ingest.OptionsFromConfig(cfg.Ingest))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting ingestion",
		"symbols", len(symbols),
		"years", runYears,
		"provider", cfg.Provider.Source,
	)

	summary, err := pipeline.Run(ctx, symbols, runYears)
	if err != nil {
		log.Fatalf("ingestion aborted: %v", err)
	}

	for _, r := range summary.Results {
		fmt.Printf("%-10s fetched=%-8d inserted=%-8d skipped=%d\n",
			r.Symbol, r.TotalFetched, r.Inserted, r.Skipped)
	}
	fmt.Printf("total: fetched=%d inserted=%d skipped=%d elapsed=%s\n",
		summary.TotalFetched, summary.TotalInserted, summary.TotalSkipped, summary.Elapsed.Round(time.Millisecond))
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"borsatahmin/config"
	"borsatahmin/db"
	"borsatahmin/forecast"
	"borsatahmin/logger"
	"borsatahmin/market"
	"borsatahmin/ml"
	"borsatahmin/pipeline"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the yaml configuration")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols, default: target stocks from config")
	horizonFlag := flag.String("horizon", "", "investment horizon, default from config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	symbols := cfg.TargetStocks
	if *symbolsFlag != "" {
		symbols = strings.Split(*symbolsFlag, ",")
		for i := range symbols {
			symbols[i] = strings.TrimSpace(symbols[i])
		}
	}
	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "no symbols to train")
		os.Exit(1)
	}

	horizonStr := *horizonFlag
	if horizonStr == "" {
		horizonStr = cfg.Model.InvestmentHorizon
	}
	horizon, err := config.ParseHorizon(horizonStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cache, err := market.NewDiskCache(cfg.CacheDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cache: %v\n", err)
		os.Exit(1)
	}
	providers := market.NewProviderManager(15*time.Second,
		market.NewYahooProvider(),
		market.NewLegacyBISTProvider(os.Getenv("LEGACY_FEED_URL")),
	)
	fetcher := market.NewFetcher(providers, cache, cfg.MarketIndex.BIST100Symbol, cfg.Model.MinVolumeThreshold)

	var history *db.Store
	if cfg.Database.Path != "" {
		if history, err = db.Open(cfg.Database.Path); err != nil {
			logger.L().Warnw("history database unavailable", "error", err)
			history = nil
		} else {
			defer history.Close()
		}
	}

	estimator := forecast.NewEstimator(cfg, market.NewIstanbulCalendar())
	store := ml.NewStore(cfg.ModelDir)
	engine := pipeline.NewEngine(cfg, fetcher, store, estimator, history)

	ctx := context.Background()
	failed := 0
	fmt.Printf("training %d symbols for %s\n\n", len(symbols), horizon)
	for i, symbol := range symbols {
		started := time.Now()
		clf, err := engine.Train(ctx, symbol, horizon)
		if err != nil {
			failed++
			fmt.Printf("[%d/%d] %-10s FAILED  %v\n", i+1, len(symbols), symbol, err)
			continue
		}
		fmt.Printf("[%d/%d] %-10s acc=%.3f f1=%.3f band=%s took=%s\n",
			i+1, len(symbols), symbol,
			clf.Metrics.Accuracy, clf.Metrics.F1, clf.Volatility.Band,
			time.Since(started).Round(time.Second))
	}

	fmt.Printf("\ndone: %d trained, %d failed\n", len(symbols)-failed, failed)
	if failed == len(symbols) {
		os.Exit(1)
	}
}

package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"borsatahmin/config"
	"borsatahmin/db"
	"borsatahmin/forecast"
	httpserver "borsatahmin/http"
	"borsatahmin/logger"
	"borsatahmin/market"
	"borsatahmin/ml"
	"borsatahmin/monitoring"
	"borsatahmin/notify"
	"borsatahmin/pipeline"
	"borsatahmin/trading"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the yaml configuration")
	flag.Parse()

	// .env is optional, real deployments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			panic(err)
		}
		cfg = config.Default()
	}

	if err := logger.Init(cfg.Log); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.L()

	watcher, err := config.NewWatcher(*configPath, cfg)
	if err != nil {
		log.Warnw("config hot reload disabled", "error", err)
	} else {
		defer watcher.Close()
	}

	cache, err := market.NewDiskCache(cfg.CacheDir)
	if err != nil {
		log.Fatalw("cache directory unusable", "dir", cfg.CacheDir, "error", err)
	}

	providers := market.NewProviderManager(15*time.Second,
		market.NewYahooProvider(),
		market.NewLegacyBISTProvider(os.Getenv("LEGACY_FEED_URL")),
	)
	fetcher := market.NewFetcher(providers, cache, cfg.MarketIndex.BIST100Symbol, cfg.Model.MinVolumeThreshold)

	var history *db.Store
	if cfg.Database.Path != "" {
		history, err = db.Open(cfg.Database.Path)
		if err != nil {
			log.Warnw("history database unavailable, continuing without persistence", "error", err)
		} else {
			defer history.Close()
		}
	}

	var notifier notify.Notifier = notify.Noop{}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		notifier = notify.NewTelegram(token, os.Getenv("TELEGRAM_CHAT_ID"))
		log.Info("telegram notifications enabled")
	}

	calendar := market.NewIstanbulCalendar()
	estimator := forecast.NewEstimator(cfg, calendar)
	store := ml.NewStore(cfg.ModelDir)
	engine := pipeline.NewEngine(cfg, fetcher, store, estimator, history).WithNotifier(notifier)

	regime := market.NewRegimeDetector(fetcher)
	recommender := trading.NewRecommender(cfg, fetcher, regime, engine)

	if watcher != nil {
		watcher.OnSwap(engine.SwapConfig)
		watcher.OnSwap(recommender.SwapConfig)
	}

	hub := monitoring.NewHub()

	server := httpserver.NewServer(httpserver.Deps{
		Cfg:         cfg,
		Engine:      engine,
		Recommender: recommender,
		Regime:      regime,
		Fetcher:     fetcher,
		Store:       store,
		History:     history,
		Hub:         hub,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infow("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Errorw("server error", "error", err)
		}
	}

	if err := server.Stop(); err != nil {
		log.Errorw("shutdown incomplete", "error", err)
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"borsatahmin/config"
	"borsatahmin/db"
	"borsatahmin/forecast"
	"borsatahmin/logger"
	"borsatahmin/market"
	"borsatahmin/ml"
	"borsatahmin/notify"
)

// Batch fan-out limits. Worker calls are independent; results are aggregated
// after all of them finish.
const (
	maxWorkers    = 5
	symbolTimeout = 30 * time.Second
)

// ProgressFunc receives batch progress updates, typically bridged to the
// websocket hub.
type ProgressFunc func(stage, symbol string, done, total int)

// Engine wires fetching, training, prediction and target estimation into the
// operations the HTTP layer and CLI expose.
type Engine struct {
	cfg       atomic.Pointer[config.Config]
	fetcher   *market.Fetcher
	store     *ml.Store
	estimator *forecast.Estimator
	history   *db.Store
	notifier  notify.Notifier

	models *lru.Cache[string, *ml.Classifier]
}

// NewEngine builds an engine. history may be nil when persistence is not
// configured.
func NewEngine(cfg *config.Config, fetcher *market.Fetcher, store *ml.Store, estimator *forecast.Estimator, history *db.Store) *Engine {
	cache, _ := lru.New[string, *ml.Classifier](32)
	e := &Engine{
		fetcher:   fetcher,
		store:     store,
		estimator: estimator,
		history:   history,
		notifier:  notify.Noop{},
		models:    cache,
	}
	e.cfg.Store(cfg)
	return e
}

// SwapConfig installs a new configuration snapshot. Wired to the hot-reload
// watcher; in-flight operations keep the snapshot they started with.
func (e *Engine) SwapConfig(cfg *config.Config) {
	if cfg != nil {
		e.cfg.Store(cfg)
	}
}

// WithNotifier routes training completions to an external channel.
func (e *Engine) WithNotifier(n notify.Notifier) *Engine {
	if n != nil {
		e.notifier = n
	}
	return e
}

// Train fetches history, builds the labelled frame and fits a fresh model,
// persisting the artifact and logging the run.
func (e *Engine) Train(ctx context.Context, symbol string, horizon config.Horizon) (*ml.Classifier, error) {
	started := time.Now()

	bars, err := e.fetcher.Fetch(ctx, symbol, e.trainingPeriod(horizon), market.IntervalDaily)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", symbol, err)
	}
	if err := ValidateBars(bars, ml.MinTrainingRows); err != nil {
		return nil, fmt.Errorf("train %s: %w", symbol, err)
	}
	index, err := e.fetcher.FetchIndex(ctx, e.trainingPeriod(horizon), market.IntervalDaily)
	if err != nil {
		logger.L().Warnw("index unavailable, training without market features", "symbol", symbol, "error", err)
		index = nil
	}

	cfg := e.cfg.Load()
	hc := cfg.HorizonFor(horizon)
	result, err := ml.BuildTrainingFrame(bars, index, hc, horizon)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", symbol, err)
	}

	clf := ml.NewClassifier(symbol, horizon)
	if err := clf.Train(result, cfg.Model.TrainTestSplit); err != nil {
		return nil, fmt.Errorf("train %s: %w", symbol, err)
	}

	path, err := e.store.Save(clf)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", symbol, err)
	}
	e.models.Add(modelKey(symbol, horizon), clf)

	logger.L().Infow("model trained",
		"symbol", symbol, "horizon", horizon,
		"accuracy", clf.Metrics.Accuracy, "f1", clf.Metrics.F1,
		"rows", result.Frame.Len(), "took", time.Since(started))

	if e.history != nil {
		if derr := e.history.SaveTraining(&db.TrainingRecord{
			Symbol:    symbol,
			Horizon:   string(horizon),
			Metrics:   clf.Metrics,
			Duration:  time.Since(started),
			ModelFile: path,
		}); derr != nil {
			logger.L().Warnw("training log write failed", "symbol", symbol, "error", derr)
		}
	}

	if nerr := e.notifier.Notify(ctx, "Model eğitimi tamamlandı",
		fmt.Sprintf("%s %s: doğruluk %.1f%%, F1 %.2f", symbol, horizon, clf.Metrics.Accuracy*100, clf.Metrics.F1)); nerr != nil {
		logger.L().Debugw("notification failed", "error", nerr)
	}
	return clf, nil
}

// Model returns the classifier for (symbol, horizon), loading it from disk
// or, when auto-training is enabled and no artifact exists, training one.
func (e *Engine) Model(ctx context.Context, symbol string, horizon config.Horizon) (*ml.Classifier, error) {
	key := modelKey(symbol, horizon)
	if clf, ok := e.models.Get(key); ok {
		return clf, nil
	}

	clf, err := e.store.LoadLatest(symbol, horizon)
	if err == nil {
		e.models.Add(key, clf)
		return clf, nil
	}
	if !errors.Is(err, ml.ErrModelNotFound) {
		// Corrupt artifact. Retrain rather than fail the request.
		logger.L().Warnw("model artifact unreadable, retraining", "symbol", symbol, "error", err)
		return e.Train(ctx, symbol, horizon)
	}
	if !e.cfg.Load().Model.AutoTrain {
		return nil, err
	}
	return e.Train(ctx, symbol, horizon)
}

// Predict scores the latest complete bar for the symbol. Implements the
// recommender's prediction source.
func (e *Engine) Predict(ctx context.Context, symbol string, horizon config.Horizon) (*ml.Prediction, error) {
	clf, err := e.Model(ctx, symbol, horizon)
	if err != nil {
		return nil, err
	}

	bars, err := e.fetcher.Fetch(ctx, symbol, "1y", market.IntervalDaily)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", symbol, err)
	}
	index, err := e.fetcher.FetchIndex(ctx, "1y", market.IntervalDaily)
	if err != nil {
		index = nil
	}

	frame, err := ml.BuildInferenceFrame(bars, index)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", symbol, err)
	}
	pred, err := clf.Predict(frame)
	if err != nil {
		return nil, err
	}

	if e.history != nil {
		if derr := e.history.SavePrediction(pred); derr != nil {
			logger.L().Warnw("prediction log write failed", "symbol", symbol, "error", derr)
		}
	}
	return pred, nil
}

// Analysis is the per-symbol output of a full analyse pass.
type Analysis struct {
	Symbol     string                 `json:"symbol"`
	Prediction *ml.Prediction         `json:"prediction"`
	Targets    *forecast.PriceTargets `json:"targets"`
	Volatility *ml.VolatilityInfo     `json:"volatility,omitempty"`
}

// Analyze predicts direction and derives price targets for one symbol.
func (e *Engine) Analyze(ctx context.Context, symbol string, horizon config.Horizon) (*Analysis, error) {
	clf, err := e.Model(ctx, symbol, horizon)
	if err != nil {
		return nil, err
	}
	pred, err := e.Predict(ctx, symbol, horizon)
	if err != nil {
		return nil, err
	}

	bars, err := e.fetcher.Fetch(ctx, symbol, "1y", market.IntervalDaily)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", symbol, err)
	}

	vol := market.AnnualisedVolatility(bars, 20)
	targets, err := e.estimator.Estimate(pred, bars, vol, clf.Metrics.Accuracy)
	if err != nil {
		return nil, err
	}

	return &Analysis{
		Symbol:     symbol,
		Prediction: pred,
		Targets:    targets,
		Volatility: clf.Volatility,
	}, nil
}

// BatchResult aggregates a fan-out analysis. Skipped symbols map to the
// reason they were left out; the batch never aborts on one failure.
type BatchResult struct {
	Analyses []*Analysis       `json:"analyses"`
	Skipped  map[string]string `json:"skipped,omitempty"`
	Started  time.Time         `json:"started"`
	Finished time.Time         `json:"finished"`
}

// AnalyzeBatch fans the analyse pass out across the universe with a bounded
// worker pool and per-symbol timeout.
func (e *Engine) AnalyzeBatch(ctx context.Context, symbols []string, horizon config.Horizon, progress ProgressFunc) *BatchResult {
	result := &BatchResult{
		Skipped: make(map[string]string),
		Started: time.Now(),
	}

	type item struct {
		analysis *Analysis
		symbol   string
		err      error
	}

	sem := make(chan struct{}, maxWorkers)
	results := make(chan item, len(symbols))
	var wg sync.WaitGroup

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			symCtx, cancel := context.WithTimeout(ctx, symbolTimeout)
			defer cancel()

			analysis, err := e.Analyze(symCtx, symbol, horizon)
			results <- item{analysis: analysis, symbol: symbol, err: err}
		}(symbol)
	}
	wg.Wait()
	close(results)

	done := 0
	for it := range results {
		done++
		if it.err != nil {
			logger.L().Warnw("symbol skipped in batch", "symbol", it.symbol, "error", it.err)
			result.Skipped[it.symbol] = it.err.Error()
		} else {
			result.Analyses = append(result.Analyses, it.analysis)
		}
		if progress != nil {
			progress("analyze", it.symbol, done, len(symbols))
		}
	}
	result.Finished = time.Now()
	return result
}

func (e *Engine) trainingPeriod(horizon config.Horizon) string {
	if horizon == config.LongTerm {
		return "5y"
	}
	return "2y"
}

func modelKey(symbol string, horizon config.Horizon) string {
	return symbol + "|" + string(horizon)
}

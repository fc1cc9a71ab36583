package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseHorizon(t *testing.T) {
	for _, s := range []string{"SHORT_TERM", "MEDIUM_TERM", "LONG_TERM"} {
		h, err := ParseHorizon(s)
		if err != nil || string(h) != s {
			t.Errorf("ParseHorizon(%q) = (%v, %v)", s, h, err)
		}
	}
	if _, err := ParseHorizon("WEEKLY"); err == nil {
		t.Error("ParseHorizon accepted an unknown horizon")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Model.TrainTestSplit != 0.8 {
		t.Errorf("train_test_split default = %v", cfg.Model.TrainTestSplit)
	}
	if cfg.Model.InvestmentHorizon != string(MediumTerm) {
		t.Errorf("investment_horizon default = %q", cfg.Model.InvestmentHorizon)
	}
	if cfg.MarketIndex.BIST100Symbol != "XU100.IS" {
		t.Errorf("index symbol default = %q", cfg.MarketIndex.BIST100Symbol)
	}
	if len(cfg.Horizons) != 3 {
		t.Errorf("expected 3 horizon configs, got %d", len(cfg.Horizons))
	}
	if cfg.Recommender.MinCashReserve != 30000 {
		t.Errorf("min_cash_reserve default = %v", cfg.Recommender.MinCashReserve)
	}
	if _, ok := cfg.Risk.VolatilityBands["very_high"]; !ok {
		t.Error("volatility band ladder incomplete")
	}
}

func TestHorizonFor(t *testing.T) {
	cfg := Default()
	if hc := cfg.HorizonFor(ShortTerm); hc.PredictionDays != 5 {
		t.Errorf("short horizon days = %d, want 5", hc.PredictionDays)
	}

	// A missing entry falls back to medium defaults instead of zeroes.
	cfg.Horizons = map[string]HorizonConfig{}
	hc := cfg.HorizonFor(LongTerm)
	if hc.PredictionDays != 10 || hc.ThresholdUp != 0.02 {
		t.Errorf("fallback horizon = %+v", hc)
	}
}

func TestLoadValidates(t *testing.T) {
	write := func(t *testing.T, body string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	good := `
target_stocks:
  - THYAO.IS
  - GARAN.IS
model_config:
  train_test_split: 0.75
  investment_horizon: SHORT_TERM
`
	cfg, err := Load(write(t, good))
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Model.TrainTestSplit != 0.75 || len(cfg.TargetStocks) != 2 {
		t.Errorf("loaded config = %+v", cfg.Model)
	}
	// Omitted sections still get defaults.
	if cfg.Http.Port != 8090 {
		t.Errorf("http port default = %d", cfg.Http.Port)
	}

	badSplit := `
model_config:
  train_test_split: 0.5
`
	if _, err := Load(write(t, badSplit)); err == nil {
		t.Error("Load accepted train_test_split outside [0.7, 0.9]")
	}

	badHorizon := `
model_config:
  investment_horizon: YEARLY
`
	if _, err := Load(write(t, badHorizon)); err == nil {
		t.Error("Load accepted an unknown horizon")
	}

	badThresholds := `
investment_horizon_configs:
  SHORT_TERM:
    prediction_days: 5
    threshold_up: -0.01
    threshold_down: -0.02
`
	if _, err := Load(write(t, badThresholds)); err == nil {
		t.Error("Load accepted thresholds that do not straddle zero")
	}
}

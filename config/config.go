// Package config loads and watches the service configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"borsatahmin/logger"
)

// Horizon identifies the investment window a model is trained for. The value
// is embedded in model filenames, so the strings are part of the on-disk
// contract.
type Horizon string

const (
	ShortTerm  Horizon = "SHORT_TERM"
	MediumTerm Horizon = "MEDIUM_TERM"
	LongTerm   Horizon = "LONG_TERM"
)

// ParseHorizon validates a horizon string coming from config or an API call.
func ParseHorizon(s string) (Horizon, error) {
	switch Horizon(s) {
	case ShortTerm, MediumTerm, LongTerm:
		return Horizon(s), nil
	}
	return "", fmt.Errorf("unknown investment horizon %q", s)
}

// HorizonConfig sets the label shift and base direction thresholds for one
// horizon. Thresholds are fractional returns (0.02 == 2%).
type HorizonConfig struct {
	PredictionDays int     `yaml:"prediction_days"`
	ThresholdUp    float64 `yaml:"threshold_up"`
	ThresholdDown  float64 `yaml:"threshold_down"`
}

// VolatilityRiskConfig maps an annualised-volatility band to risk limits.
type VolatilityRiskConfig struct {
	StopLossPct   float64 `yaml:"stop_loss_pct"`
	TakeProfitPct float64 `yaml:"take_profit_pct"`
	PositionSize  float64 `yaml:"position_size"`
	MaxTrades     int     `yaml:"max_trades"`
}

// ModelConfig carries data and training settings shared by all symbols.
type ModelConfig struct {
	Interval           string  `yaml:"interval"`
	InvestmentHorizon  string  `yaml:"investment_horizon"`
	LookbackWindow     string  `yaml:"lookback_window"`
	MinVolumeThreshold float64 `yaml:"min_volume_threshold"`
	TrainTestSplit     float64 `yaml:"train_test_split"`
	AutoTrain          bool    `yaml:"auto_train"`
}

// RecommenderConfig holds the tunable knobs of the portfolio recommender.
// Defaults mirror the values the action rules were calibrated with.
type RecommenderConfig struct {
	MinCashReserve    float64 `yaml:"min_cash_reserve"`
	NewPositionCutoff float64 `yaml:"new_position_cutoff"`
	RelaxedCutoff     float64 `yaml:"relaxed_cutoff"`
	MaxNewPositions   int     `yaml:"max_new_positions"`
	MinNewPositions   int     `yaml:"min_new_positions"`
}

type Config struct {
	TargetStocks []string `yaml:"target_stocks"`

	Model    ModelConfig               `yaml:"model_config"`
	Horizons map[string]HorizonConfig  `yaml:"investment_horizon_configs"`
	Risk     struct {
		VolatilityBands map[string]VolatilityRiskConfig `yaml:"volatility_risk_configs"`
	} `yaml:"risk_management"`
	MarketIndex struct {
		BIST100Symbol string `yaml:"bist100_symbol"`
	} `yaml:"market_index"`

	Recommender RecommenderConfig `yaml:"recommender"`

	CacheDir string `yaml:"cache_dir"`
	ModelDir string `yaml:"model_dir"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Http struct {
		Port int `yaml:"port"`
	} `yaml:"http"`
	Log logger.Config `yaml:"log"`
}

// Load reads the yaml config and fills defaults for anything omitted.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfg Config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config usable without a file, mostly for tests and CLIs.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Model.Interval == "" {
		c.Model.Interval = "1d"
	}
	if c.Model.InvestmentHorizon == "" {
		c.Model.InvestmentHorizon = string(MediumTerm)
	}
	if c.Model.LookbackWindow == "" {
		c.Model.LookbackWindow = "2y"
	}
	if c.Model.MinVolumeThreshold == 0 {
		c.Model.MinVolumeThreshold = 100000
	}
	if c.Model.TrainTestSplit == 0 {
		c.Model.TrainTestSplit = 0.8
	}
	if c.Horizons == nil {
		c.Horizons = map[string]HorizonConfig{
			string(ShortTerm):  {PredictionDays: 5, ThresholdUp: 0.01, ThresholdDown: -0.01},
			string(MediumTerm): {PredictionDays: 10, ThresholdUp: 0.02, ThresholdDown: -0.02},
			string(LongTerm):   {PredictionDays: 30, ThresholdUp: 0.035, ThresholdDown: -0.035},
		}
	}
	if c.Risk.VolatilityBands == nil {
		c.Risk.VolatilityBands = map[string]VolatilityRiskConfig{
			"low":       {StopLossPct: 0.04, TakeProfitPct: 0.08, PositionSize: 0.25, MaxTrades: 8},
			"medium":    {StopLossPct: 0.05, TakeProfitPct: 0.10, PositionSize: 0.20, MaxTrades: 6},
			"high":      {StopLossPct: 0.07, TakeProfitPct: 0.14, PositionSize: 0.15, MaxTrades: 4},
			"very_high": {StopLossPct: 0.10, TakeProfitPct: 0.20, PositionSize: 0.10, MaxTrades: 3},
		}
	}
	if c.MarketIndex.BIST100Symbol == "" {
		c.MarketIndex.BIST100Symbol = "XU100.IS"
	}
	if c.CacheDir == "" {
		c.CacheDir = "cache/raw"
	}
	if c.ModelDir == "" {
		c.ModelDir = "models"
	}
	if c.Http.Port == 0 {
		c.Http.Port = 8090
	}

	r := &c.Recommender
	if r.MinCashReserve == 0 {
		r.MinCashReserve = 30000
	}
	if r.NewPositionCutoff == 0 {
		r.NewPositionCutoff = 0.48
	}
	if r.RelaxedCutoff == 0 {
		r.RelaxedCutoff = 0.45
	}
	if r.MaxNewPositions == 0 {
		r.MaxNewPositions = 7
	}
	if r.MinNewPositions == 0 {
		r.MinNewPositions = 3
	}
}

func (c *Config) validate() error {
	if c.Model.TrainTestSplit < 0.7 || c.Model.TrainTestSplit > 0.9 {
		return errors.New("model_config.train_test_split must be in [0.7, 0.9]")
	}
	if _, err := ParseHorizon(c.Model.InvestmentHorizon); err != nil {
		return err
	}
	for name, h := range c.Horizons {
		if h.PredictionDays <= 0 {
			return fmt.Errorf("horizon %s: prediction_days must be positive", name)
		}
		if h.ThresholdUp <= 0 || h.ThresholdDown >= 0 {
			return fmt.Errorf("horizon %s: thresholds must straddle zero", name)
		}
	}
	return nil
}

// HorizonFor returns the config for a horizon, falling back to the medium
// defaults so a missing entry never breaks labelling.
func (c *Config) HorizonFor(h Horizon) HorizonConfig {
	if hc, ok := c.Horizons[string(h)]; ok {
		return hc
	}
	return HorizonConfig{PredictionDays: 10, ThresholdUp: 0.02, ThresholdDown: -0.02}
}

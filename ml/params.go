package ml

// GBDTParams are the boosting hyperparameters. Stored in the model artifact
// so a loaded model reports how it was trained.
type GBDTParams struct {
	NEstimators        int     `json:"n_estimators"`
	LearningRate       float64 `json:"learning_rate"`
	MaxDepth           int     `json:"max_depth"`
	Subsample          float64 `json:"subsample"`
	ColsampleByTree    float64 `json:"colsample_bytree"`
	MinChildWeight     float64 `json:"min_child_weight"`
	Alpha              float64 `json:"alpha"`
	Lambda             float64 `json:"lambda"`
	EarlyStopping      int     `json:"early_stopping_rounds"`
	ValidationFraction float64 `json:"validation_fraction"`
	Seed               int64   `json:"seed"`
}

// VolatilityParams couples risk limits with boosting hyperparameters for one
// volatility band. Shared by the trainer and the target estimator so both
// sides of the system agree on what "volatile" means.
type VolatilityParams struct {
	ConfidenceThreshold float64    `json:"confidence_threshold"`
	StopLossPct         float64    `json:"stop_loss_pct"`
	TakeProfitPct       float64    `json:"take_profit_pct"`
	PositionSize        float64    `json:"position_size"`
	MaxTrades           int        `json:"max_trades"`
	GBDT                GBDTParams `json:"gbdt"`
}

// SelectParams picks parameters from the symbol's annualised volatility.
// Noisy symbols get shallower, more regularised models and tighter risk caps;
// calm ones can afford more capacity and wider targets.
func SelectParams(annualisedVol float64) VolatilityParams {
	switch {
	case annualisedVol > 0.6:
		return VolatilityParams{
			ConfidenceThreshold: 0.65,
			StopLossPct:         0.10,
			TakeProfitPct:       0.20,
			PositionSize:        0.05,
			MaxTrades:           2,
			GBDT: GBDTParams{
				NEstimators:        150,
				LearningRate:       0.05,
				MaxDepth:           3,
				Subsample:          0.7,
				ColsampleByTree:    0.7,
				MinChildWeight:     5,
				Alpha:              0.1,
				Lambda:             2.0,
				EarlyStopping:      20,
				ValidationFraction: 0.2,
				Seed:               42,
			},
		}
	case annualisedVol > 0.4:
		return VolatilityParams{
			ConfidenceThreshold: 0.60,
			StopLossPct:         0.07,
			TakeProfitPct:       0.14,
			PositionSize:        0.08,
			MaxTrades:           3,
			GBDT: GBDTParams{
				NEstimators:        200,
				LearningRate:       0.05,
				MaxDepth:           4,
				Subsample:          0.8,
				ColsampleByTree:    0.8,
				MinChildWeight:     3,
				Alpha:              0.05,
				Lambda:             1.5,
				EarlyStopping:      25,
				ValidationFraction: 0.2,
				Seed:               42,
			},
		}
	default:
		return VolatilityParams{
			ConfidenceThreshold: 0.55,
			StopLossPct:         0.04,
			TakeProfitPct:       0.08,
			PositionSize:        0.10,
			MaxTrades:           5,
			GBDT: GBDTParams{
				NEstimators:        250,
				LearningRate:       0.08,
				MaxDepth:           5,
				Subsample:          0.9,
				ColsampleByTree:    0.9,
				MinChildWeight:     2,
				Alpha:              0,
				Lambda:             1.0,
				EarlyStopping:      30,
				ValidationFraction: 0.2,
				Seed:               42,
			},
		}
	}
}

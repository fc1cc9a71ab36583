package ml

import (
	"fmt"
	"time"

	"borsatahmin/config"
)

// Prediction directions.
const (
	DirectionUp   = "UP"
	DirectionDown = "DOWN"
)

// Prediction is the classifier output for the latest market state.
type Prediction struct {
	Symbol     string         `json:"symbol"`
	Horizon    config.Horizon `json:"horizon"`
	Direction  string         `json:"direction"`
	ProbUp     float64        `json:"prob_up"`
	Confidence float64        `json:"confidence"`
	Price      float64        `json:"price"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Classifier binds a trained GBDT to its scaler, feature list and training
// provenance for one symbol and horizon.
type Classifier struct {
	Symbol     string             `json:"symbol"`
	Horizon    config.Horizon     `json:"horizon"`
	Features   []string           `json:"features"`
	Scaler     *StandardScaler    `json:"scaler"`
	Model      *GBDT              `json:"model"`
	Metrics    Metrics            `json:"metrics"`
	Importance []FeatureImportance `json:"importance"`
	Volatility *VolatilityInfo    `json:"volatility"`
	TrainedAt  time.Time          `json:"trained_at"`
}

func NewClassifier(symbol string, horizon config.Horizon) *Classifier {
	return &Classifier{Symbol: symbol, Horizon: horizon}
}

// Train fits the model on a time-ordered split of the labelled frame. The
// oldest splitRatio fraction trains, the newest remainder validates. Rows are
// never shuffled across the boundary.
func (c *Classifier) Train(result *BuildResult, splitRatio float64) error {
	frame := result.Frame
	if frame.Len() < MinTrainingRows {
		return fmt.Errorf("%w: %d rows", ErrInsufficientHistory, frame.Len())
	}

	c.Features = frame.FeatureColumns()
	matrix, err := frame.Matrix(c.Features)
	if err != nil {
		return fmt.Errorf("train %s: %w", c.Symbol, err)
	}
	labels, err := frame.IntColumn("direction_binary")
	if err != nil {
		return fmt.Errorf("train %s: %w", c.Symbol, err)
	}

	cut := int(float64(frame.Len()) * splitRatio)
	if cut < MinTrainingRows/2 || frame.Len()-cut < 10 {
		return fmt.Errorf("%w: split %d/%d too thin", ErrInsufficientHistory, cut, frame.Len()-cut)
	}

	c.Scaler = &StandardScaler{}
	if err := c.Scaler.Fit(matrix[:cut]); err != nil {
		return fmt.Errorf("train %s: %w", c.Symbol, err)
	}
	trainX, err := c.Scaler.Transform(matrix[:cut])
	if err != nil {
		return err
	}
	testX, err := c.Scaler.Transform(matrix[cut:])
	if err != nil {
		return err
	}
	trainY := labels[:cut]
	testY := labels[cut:]

	params := SelectParams(result.Volatility.AnnualisedVol).GBDT

	// Early stopping watches an inner validation slice carved off the end of
	// the training portion. The test split stays untouched until evaluation.
	innerCut := cut - int(float64(cut)*params.ValidationFraction)
	if innerCut < 10 || innerCut >= cut {
		innerCut = cut
	}

	c.Model = NewGBDT(params)
	if err := c.Model.Fit(trainX[:innerCut], trainY[:innerCut], trainX[innerCut:], trainY[innerCut:]); err != nil {
		return fmt.Errorf("train %s: %w", c.Symbol, err)
	}

	probs := make([]float64, len(testX))
	for i, row := range testX {
		p, perr := c.Model.PredictProb(row)
		if perr != nil {
			return perr
		}
		probs[i] = p
	}
	c.Metrics = Evaluate(probs, testY)
	c.Metrics.TrainRows = len(trainY)
	c.Importance = RankImportance(c.Features, c.Model.FeatureGains())
	c.Volatility = result.Volatility
	c.TrainedAt = time.Now()
	return nil
}

// Predict scores the newest complete row of an inference frame.
func (c *Classifier) Predict(frame *Frame) (*Prediction, error) {
	if c.Model == nil || c.Scaler == nil {
		return nil, fmt.Errorf("predict %s: model not trained", c.Symbol)
	}

	row, err := LatestVector(frame, c.Features)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", c.Symbol, err)
	}
	scaled, err := c.Scaler.TransformRow(row)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", c.Symbol, err)
	}
	probUp, err := c.Model.PredictProb(scaled)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", c.Symbol, err)
	}

	direction := DirectionDown
	confidence := 1 - probUp
	if probUp >= 0.5 {
		direction = DirectionUp
		confidence = probUp
	}

	price := 0.0
	if closes := frame.Column("close"); len(closes) > 0 {
		price = closes[len(closes)-1]
	}

	return &Prediction{
		Symbol:     c.Symbol,
		Horizon:    c.Horizon,
		Direction:  direction,
		ProbUp:     probUp,
		Confidence: confidence,
		Price:      price,
		Timestamp:  frame.Index()[frame.Len()-1],
	}, nil
}

package ml

import (
	"errors"
	"fmt"

	"borsatahmin/config"
	"borsatahmin/market"
)

// ErrInsufficientHistory is returned when too few complete rows survive
// feature warmup for training or inference.
var ErrInsufficientHistory = errors.New("insufficient history after feature warmup")

// MinTrainingRows is the floor on complete rows before a model can be fit.
const MinTrainingRows = 100

// BuildResult bundles the labelled frame with the volatility profile used to
// derive the label thresholds.
type BuildResult struct {
	Frame      *Frame
	Volatility *VolatilityInfo
}

// BuildTrainingFrame computes the full feature matrix plus label columns for
// one symbol. The returned frame has warmup and unlabelled tail rows removed.
func BuildTrainingFrame(bars, index market.Series, hc config.HorizonConfig, horizon config.Horizon) (*BuildResult, error) {
	if len(bars) < MinTrainingRows {
		return nil, fmt.Errorf("%w: %d bars", ErrInsufficientHistory, len(bars))
	}

	frame := newBaseFrame(bars)
	buildTechnicalFeatures(frame, bars)
	buildMomentumFeatures(frame, bars)
	buildIndexFeatures(frame, bars, index)
	buildTemporalFeatures(frame, frame.Index())
	vol := buildLabels(frame, bars, hc, horizon)

	clean := frame.DropNaN()
	if clean.Len() < MinTrainingRows {
		return nil, fmt.Errorf("%w: %d complete rows", ErrInsufficientHistory, clean.Len())
	}
	return &BuildResult{Frame: clean, Volatility: vol}, nil
}

// BuildInferenceFrame computes features without labels, so the most recent
// bar keeps its row. Used to score the latest market state.
func BuildInferenceFrame(bars, index market.Series) (*Frame, error) {
	if len(bars) < MinTrainingRows {
		return nil, fmt.Errorf("%w: %d bars", ErrInsufficientHistory, len(bars))
	}

	frame := newBaseFrame(bars)
	buildTechnicalFeatures(frame, bars)
	buildMomentumFeatures(frame, bars)
	buildIndexFeatures(frame, bars, index)
	buildTemporalFeatures(frame, frame.Index())

	clean := frame.DropNaN()
	if clean.Len() == 0 {
		return nil, fmt.Errorf("%w: no complete rows", ErrInsufficientHistory)
	}
	return clean, nil
}

// LatestVector extracts the newest feature row in the given column order.
func LatestVector(frame *Frame, columns []string) ([]float64, error) {
	if frame.Len() == 0 {
		return nil, ErrInsufficientHistory
	}
	return frame.Row(frame.Len()-1, columns)
}

// newBaseFrame seeds a frame with the raw OHLCV columns. They are excluded
// from the feature list but kept for downstream target calculations.
func newBaseFrame(bars market.Series) *Frame {
	frame := NewFrame(bars.Timestamps())
	frame.MustAdd("open", bars.Opens())
	frame.MustAdd("high", bars.Highs())
	frame.MustAdd("low", bars.Lows())
	frame.MustAdd("close", bars.Closes())
	frame.MustAdd("volume", bars.Volumes())
	return frame
}

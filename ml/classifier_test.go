package ml

import (
	"errors"
	"math"
	"testing"

	"borsatahmin/config"
)

func TestBuildTrainingFrameTooShort(t *testing.T) {
	bars := makeBars(50, func(i int) float64 { return 100 + float64(i) })
	hc := config.HorizonConfig{PredictionDays: 5, ThresholdUp: 0.01, ThresholdDown: -0.01}

	_, err := BuildTrainingFrame(bars, nil, hc, config.ShortTerm)
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("err = %v, want ErrInsufficientHistory", err)
	}
}

func TestClassifierEndToEnd(t *testing.T) {
	// A cyclical series gives the model a learnable signal while staying
	// deterministic.
	bars := makeBars(400, func(i int) float64 {
		return 100 * (1 + 0.15*math.Sin(float64(i)/15)) * (1 + 0.001*float64(i))
	})
	hc := config.HorizonConfig{PredictionDays: 10, ThresholdUp: 0.02, ThresholdDown: -0.02}

	result, err := BuildTrainingFrame(bars, nil, hc, config.MediumTerm)
	if err != nil {
		t.Fatal(err)
	}

	// Label columns never reach the model input.
	for _, name := range result.Frame.FeatureColumns() {
		for _, label := range LabelColumns {
			if name == label {
				t.Fatalf("label %s in feature columns", label)
			}
		}
	}

	clf := NewClassifier("TEST", config.MediumTerm)
	if err := clf.Train(result, 0.8); err != nil {
		t.Fatal(err)
	}
	if clf.Metrics.Accuracy <= 0 || clf.Metrics.Accuracy > 1 {
		t.Errorf("accuracy = %v out of range", clf.Metrics.Accuracy)
	}
	if len(clf.Importance) != len(clf.Features) {
		t.Errorf("importance has %d entries, features %d", len(clf.Importance), len(clf.Features))
	}

	frame, err := BuildInferenceFrame(bars, nil)
	if err != nil {
		t.Fatal(err)
	}
	pred, err := clf.Predict(frame)
	if err != nil {
		t.Fatal(err)
	}
	if pred.Confidence < 0.5 || pred.Confidence > 1.0 {
		t.Errorf("confidence = %v, want [0.5, 1.0]", pred.Confidence)
	}
	if pred.Direction != DirectionUp && pred.Direction != DirectionDown {
		t.Errorf("direction = %q", pred.Direction)
	}
	if pred.Direction == DirectionUp && pred.Confidence != pred.ProbUp {
		t.Errorf("UP confidence %v != prob_up %v", pred.Confidence, pred.ProbUp)
	}
	if pred.Price <= 0 {
		t.Errorf("price = %v", pred.Price)
	}
}

func TestScalerFitOnTrainOnly(t *testing.T) {
	s := &StandardScaler{}
	rows := [][]float64{{1, 10}, {2, 20}, {3, 30}}
	if err := s.Fit(rows); err != nil {
		t.Fatal(err)
	}
	if s.Means[0] != 2 || s.Means[1] != 20 {
		t.Errorf("means = %v", s.Means)
	}

	scaled, err := s.TransformRow([]float64{2, 20})
	if err != nil {
		t.Fatal(err)
	}
	if scaled[0] != 0 || scaled[1] != 0 {
		t.Errorf("centred row = %v, want zeros", scaled)
	}

	if _, err := s.TransformRow([]float64{1}); err == nil {
		t.Fatal("TransformRow() accepted a short row")
	}
}

func TestSelectParamsBands(t *testing.T) {
	high := SelectParams(0.7)
	mid := SelectParams(0.5)
	low := SelectParams(0.2)

	if high.GBDT.MaxDepth >= low.GBDT.MaxDepth {
		t.Errorf("high-vol depth %d should be shallower than low-vol %d", high.GBDT.MaxDepth, low.GBDT.MaxDepth)
	}
	if high.StopLossPct <= mid.StopLossPct || mid.StopLossPct <= low.StopLossPct {
		t.Errorf("stop-loss ladder not monotonic: %v %v %v", high.StopLossPct, mid.StopLossPct, low.StopLossPct)
	}
	if high.MaxTrades >= low.MaxTrades {
		t.Errorf("max trades should shrink with volatility")
	}
}

package forecast

import (
	"math"
	"testing"
	"time"

	"borsatahmin/config"
	"borsatahmin/market"
	"borsatahmin/ml"
)

func fixedClock() time.Time {
	return time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
}

func testBars(n int, price func(i int) float64) market.Series {
	start := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	bars := make(market.Series, 0, n)
	for i := 0; i < n; i++ {
		p := price(i)
		bars = append(bars, market.Bar{
			Symbol:    "TEST",
			Open:      p * 0.995,
			High:      p * 1.01,
			Low:       p * 0.99,
			Close:     p,
			Volume:    1_000_000,
			Timestamp: start.AddDate(0, 0, i),
		})
	}
	return bars
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Risk.VolatilityBands = map[string]config.VolatilityRiskConfig{
		"low":       {StopLossPct: 0.05, TakeProfitPct: 0.10},
		"medium":    {StopLossPct: 0.06, TakeProfitPct: 0.12},
		"high":      {StopLossPct: 0.08, TakeProfitPct: 0.16},
		"very_high": {StopLossPct: 0.10, TakeProfitPct: 0.20},
	}
	return cfg
}

func TestEstimateUpTargets(t *testing.T) {
	bars := testBars(120, func(int) float64 { return 100 })
	est := NewEstimator(testConfig(), nil).WithClock(fixedClock)

	pred := &ml.Prediction{Symbol: "TEST", Direction: ml.DirectionUp, ProbUp: 0.80, Confidence: 0.80, Price: 100}
	// Volatility 0.25 lands in the low band: stop 5%, take 10%.
	out, err := est.Estimate(pred, bars, 0.25, 0.75)
	if err != nil {
		t.Fatal(err)
	}

	approx := func(got, want float64, name string) {
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	approx(out.Conservative, 104.50, "conservative")
	approx(out.Moderate, 109.00, "moderate")
	approx(out.Aggressive, 113.50, "aggressive")
	approx(out.StopLoss, 95.00, "stop_loss")
	approx(out.RiskReward, 1.80, "risk_reward")

	if !(out.Conservative < out.Moderate && out.Moderate < out.Aggressive) {
		t.Error("targets not strictly ordered")
	}
	if out.StopLoss >= out.CurrentPrice {
		t.Error("stop above current for an UP prediction")
	}
}

func TestEstimateDownMirrors(t *testing.T) {
	bars := testBars(120, func(int) float64 { return 100 })
	est := NewEstimator(testConfig(), nil).WithClock(fixedClock)

	pred := &ml.Prediction{Symbol: "TEST", Direction: ml.DirectionDown, ProbUp: 0.25, Confidence: 0.75, Price: 100}
	out, err := est.Estimate(pred, bars, 0.25, 0.6)
	if err != nil {
		t.Fatal(err)
	}

	if !(out.Conservative > out.Moderate && out.Moderate > out.Aggressive) {
		t.Errorf("DOWN targets not descending: %v %v %v", out.Conservative, out.Moderate, out.Aggressive)
	}
	if out.Aggressive >= out.CurrentPrice {
		t.Error("DOWN targets should sit below current price")
	}
	if out.StopLoss <= out.CurrentPrice {
		t.Error("DOWN stop-loss should sit above current price")
	}
}

func TestTimeTargetBounds(t *testing.T) {
	bars := testBars(120, func(i int) float64 { return 100 + 0.1*float64(i) })
	est := NewEstimator(testConfig(), nil).WithClock(fixedClock)

	pred := &ml.Prediction{Symbol: "TEST", Direction: ml.DirectionUp, ProbUp: 0.7, Confidence: 0.7, Price: 100}
	out, err := est.Estimate(pred, bars, 0.35, 0.6)
	if err != nil {
		t.Fatal(err)
	}

	for kind, tt := range out.Times {
		if tt.MinDays < 7 {
			t.Errorf("%s: min_days = %d below 7", kind, tt.MinDays)
		}
		if tt.MinDays > tt.EstimatedDays || tt.EstimatedDays > tt.MaxDays {
			t.Errorf("%s: days not ordered: %d %d %d", kind, tt.MinDays, tt.EstimatedDays, tt.MaxDays)
		}
		if tt.EstimatedDays < 14 || tt.EstimatedDays > 180 {
			t.Errorf("%s: estimated_days = %d outside [14, 180]", kind, tt.EstimatedDays)
		}
		if tt.MaxDays > 540 {
			t.Errorf("%s: max_days = %d above 540", kind, tt.MaxDays)
		}
		if tt.MaxDays < 3*tt.EstimatedDays-1 {
			t.Errorf("%s: max_days = %d, want >= 3*estimated-1", kind, tt.MaxDays)
		}
		if !tt.EstimatedDate.After(fixedClock()) {
			t.Errorf("%s: estimated date not in the future", kind)
		}
		if tt.Chart == nil {
			t.Errorf("%s: chart snapshot missing", kind)
		}
	}
}

func TestZeroVolatilityClampsToFloor(t *testing.T) {
	bars := testBars(120, func(int) float64 { return 100 })
	est := NewEstimator(testConfig(), nil).WithClock(fixedClock)

	pred := &ml.Prediction{Symbol: "TEST", Direction: ml.DirectionUp, ProbUp: 0.9, Confidence: 0.9, Price: 100}
	out, err := est.Estimate(pred, bars, 0, 0.8)
	if err != nil {
		t.Fatal(err)
	}
	// Zero volatility zeroes the base estimate; the floor clamp takes over.
	for kind, tt := range out.Times {
		if tt.EstimatedDays != 14 {
			t.Errorf("%s: estimated_days = %d, want clamp to 14", kind, tt.EstimatedDays)
		}
		if tt.MinDays != 10 {
			t.Errorf("%s: min_days = %d, want max(7, ceil(14*0.7)) = 10", kind, tt.MinDays)
		}
		if tt.MaxDays != 42 {
			t.Errorf("%s: max_days = %d, want 42", kind, tt.MaxDays)
		}
	}
}

func TestModelPerformanceBands(t *testing.T) {
	tests := []struct {
		accuracy, confidence, want float64
	}{
		{0.9, 0.9, 0.8},  // reliability 0.81
		{0.9, 0.8, 0.9},  // reliability 0.72
		{0.75, 0.8, 1.0}, // reliability 0.60
		{0.5, 0.6, 1.2},  // reliability 0.30
		{0, 0.9, 1.0},    // no metrics, neutral
	}
	for _, tt := range tests {
		mp := modelPerformance(tt.accuracy, tt.confidence)
		if mp.Factor != tt.want {
			t.Errorf("modelPerformance(%v, %v).Factor = %v, want %v", tt.accuracy, tt.confidence, mp.Factor, tt.want)
		}
	}
}

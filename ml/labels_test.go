package ml

import (
	"math"
	"testing"
	"time"

	"borsatahmin/config"
	"borsatahmin/market"
)

func makeBars(n int, price func(i int) float64) market.Series {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
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

func TestStabilityBand(t *testing.T) {
	tests := []struct {
		vol  float64
		want string
	}{
		{0.10, BandVeryStable},
		{0.20, BandVeryStable},
		{0.25, BandStable},
		{0.30, BandMedium},
		{0.45, BandMedium},
		{0.55, BandVolatile},
		{0.90, BandVeryVolatile},
	}
	for _, tt := range tests {
		if got, _ := StabilityBand(tt.vol); got != tt.want {
			t.Errorf("StabilityBand(%.2f) = %s, want %s", tt.vol, got, tt.want)
		}
	}
}

func TestAdaptiveThresholdsMediumHorizon(t *testing.T) {
	hc := config.HorizonConfig{PredictionDays: 10, ThresholdUp: 0.02, ThresholdDown: -0.02}

	up, down, scale, band := AdaptiveThresholds(hc, config.MediumTerm, 0.30)
	if band != BandMedium {
		t.Fatalf("band = %s, want %s", band, BandMedium)
	}
	if scale != 1.0 {
		t.Fatalf("scale = %v, want 1.0", scale)
	}
	if math.Abs(up-0.02) > 1e-12 {
		t.Errorf("threshold_up = %v, want 0.02", up)
	}
	if math.Abs(down+0.02) > 1e-12 {
		t.Errorf("threshold_down = %v, want -0.02", down)
	}
}

func TestAdaptiveThresholdsClamped(t *testing.T) {
	wide := config.HorizonConfig{PredictionDays: 30, ThresholdUp: 0.50, ThresholdDown: -0.50}
	up, down, _, _ := AdaptiveThresholds(wide, config.LongTerm, 0.90)
	if up != 0.20 {
		t.Errorf("threshold_up = %v, want clamp at 0.20", up)
	}
	if down != -0.20 {
		t.Errorf("threshold_down = %v, want clamp at -0.20", down)
	}

	tight := config.HorizonConfig{PredictionDays: 5, ThresholdUp: 0.0001, ThresholdDown: -0.0001}
	up, down, _, _ = AdaptiveThresholds(tight, config.ShortTerm, 0.10)
	if up != 0.001 {
		t.Errorf("threshold_up = %v, want floor 0.001", up)
	}
	if down != -0.001 {
		t.Errorf("threshold_down = %v, want floor -0.001", down)
	}
}

func TestBuildLabelsZeroVolatility(t *testing.T) {
	// Identical closes must still produce valid labels with no NaN blowups
	// outside the unlabelled tail.
	bars := makeBars(150, func(int) float64 { return 42.0 })
	hc := config.HorizonConfig{PredictionDays: 10, ThresholdUp: 0.02, ThresholdDown: -0.02}

	frame := NewFrame(bars.Timestamps())
	frame.MustAdd("close", bars.Closes())
	info := buildLabels(frame, bars, hc, config.MediumTerm)

	if info.Band != BandVeryStable {
		t.Errorf("band = %s, want %s", info.Band, BandVeryStable)
	}
	if info.ThresholdUp < 0.001 {
		t.Errorf("threshold_up = %v below floor", info.ThresholdUp)
	}

	direction := frame.Column("direction_binary")
	for i := 0; i < 140; i++ {
		if math.IsNaN(direction[i]) {
			t.Fatalf("direction_binary[%d] is NaN", i)
		}
		if direction[i] != 0 {
			t.Errorf("direction_binary[%d] = %v, want 0 for flat series", i, direction[i])
		}
	}
	volAdj := frame.Column("future_return_vol_adj")
	for i := 30; i < 140; i++ {
		if math.IsNaN(volAdj[i]) || math.IsInf(volAdj[i], 0) {
			t.Fatalf("future_return_vol_adj[%d] = %v", i, volAdj[i])
		}
	}
}

func TestDirectionBinaryRule(t *testing.T) {
	// Rising 1% a day: 10-day future return ~10.5%, clearly above threshold.
	bars := makeBars(150, func(i int) float64 { return 100 * math.Pow(1.01, float64(i)) })
	hc := config.HorizonConfig{PredictionDays: 10, ThresholdUp: 0.02, ThresholdDown: -0.02}

	frame := NewFrame(bars.Timestamps())
	frame.MustAdd("close", bars.Closes())
	buildLabels(frame, bars, hc, config.MediumTerm)

	direction := frame.Column("direction")
	binary := frame.Column("direction_binary")
	for i := 30; i < 140; i++ {
		if direction[i] != 1 {
			t.Fatalf("direction[%d] = %v, want 1", i, direction[i])
		}
		if binary[i] != 1 {
			t.Fatalf("direction_binary[%d] = %v, want 1", i, binary[i])
		}
	}
}

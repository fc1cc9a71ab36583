package ml

import (
	"math"
	"testing"
)

func flatThen(last float64) []float64 {
	return []float64{100, 100, 100, 100, 100, last}
}

func TestDivergenceThresholdAppliesToBothSides(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		index  []float64
		col    string
		want   float64
	}{
		{"index dip beyond threshold fires positive", flatThen(101.5), flatThen(98.8), "divergence_pos", 1},
		{"index dip inside threshold stays quiet", flatThen(101.5), flatThen(99.4), "divergence_pos", 0},
		{"index rally beyond threshold fires negative", flatThen(98.5), flatThen(101.2), "divergence_neg", 1},
		{"index rally inside threshold stays quiet", flatThen(98.5), flatThen(100.6), "divergence_neg", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			frame := NewFrame(frameIndex(len(tc.closes)))
			addDivergence(frame, tc.closes, tc.index, "divergence_pos", "divergence_neg", 5, 0.01)
			if got := frame.Column(tc.col)[5]; got != tc.want {
				t.Errorf("%s = %v, want %v", tc.col, got, tc.want)
			}
		})
	}
}

func TestIndexMomentumNormalisedByMeanAbs(t *testing.T) {
	bars := makeBars(150, func(i int) float64 { return 100 * math.Pow(1.01, float64(i)) })
	index := makeBars(150, func(i int) float64 { return 1000 * math.Pow(1.005, float64(i)) })

	frame := NewFrame(bars.Timestamps())
	buildIndexFeatures(frame, bars, index)

	last := len(bars) - 1
	wantMom := math.Pow(1.005, 20) - 1
	if got := frame.Column("index_momentum")[last]; math.Abs(got-wantMom) > 1e-9 {
		t.Errorf("index_momentum = %v, want %v", got, wantMom)
	}
	// Constant-growth momentum equals its own 60-bar mean absolute value.
	if got := frame.Column("index_momentum_norm")[last]; math.Abs(got-1) > 1e-9 {
		t.Errorf("index_momentum_norm = %v, want 1", got)
	}
}

func TestRelativeStrengthSumsReturns(t *testing.T) {
	bars := makeBars(30, func(i int) float64 {
		if i%2 == 0 {
			return 100
		}
		return 110
	})
	index := makeBars(30, func(i int) float64 { return 1000 })

	frame := NewFrame(bars.Timestamps())
	buildIndexFeatures(frame, bars, index)

	closes := bars.Closes()
	last := len(closes) - 1
	wantSum := 0.0
	for i := last - 4; i <= last; i++ {
		wantSum += closes[i]/closes[i-1] - 1
	}

	got := frame.Column("rel_strength_5")[last]
	if math.Abs(got-wantSum) > 1e-12 {
		t.Errorf("rel_strength_5 = %v, want summed returns %v", got, wantSum)
	}
	// On an alternating series the cumulative change is a different number.
	cumulative := closes[last]/closes[last-5] - 1
	if math.Abs(got-cumulative) < 1e-9 {
		t.Errorf("rel_strength_5 tracks cumulative change %v, want summed returns", cumulative)
	}
}

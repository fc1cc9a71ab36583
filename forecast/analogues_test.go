package forecast

import (
	"math"
	"testing"
)

func TestMineAnaloguesSteadyClimb(t *testing.T) {
	// 1% per day: a 5% move completes in exactly five bars from any start.
	bars := testBars(100, func(i int) float64 { return 100 * math.Pow(1.01, float64(i)) })

	stats := MineAnalogues(bars, 0.05)
	if stats.Count == 0 {
		t.Fatal("no analogues found in a steadily climbing series")
	}
	if stats.MeanDays != 5 {
		t.Errorf("mean_days = %v, want 5", stats.MeanDays)
	}
	if stats.MinDays != 5 || stats.MaxDays != 5 {
		t.Errorf("min/max = %d/%d, want 5/5", stats.MinDays, stats.MaxDays)
	}
	if stats.StdDays != 0 {
		t.Errorf("std_days = %v, want 0", stats.StdDays)
	}
}

func TestMineAnaloguesEdgeCases(t *testing.T) {
	bars := testBars(100, func(int) float64 { return 100 })

	if stats := MineAnalogues(bars, 0); stats.Count != 0 {
		t.Errorf("zero target move produced %d analogues", stats.Count)
	}
	if stats := MineAnalogues(bars[:20], 0.05); stats.Count != 0 {
		t.Errorf("short history produced %d analogues", stats.Count)
	}
	// A flat series never travels 5%.
	if stats := MineAnalogues(bars, 0.05); stats.Count != 0 {
		t.Errorf("flat series produced %d analogues", stats.Count)
	}
}

func TestAnalogueFactor(t *testing.T) {
	flat := testBars(100, func(int) float64 { return 100 })

	// No analogues means no adjustment.
	empty := &AnalogueStats{}
	if got := empty.Factor(20, flat); got != 1.0 {
		t.Errorf("empty Factor() = %v, want 1", got)
	}

	// History resolving faster than the base estimate shrinks it.
	fast := &AnalogueStats{Count: 10, MeanDays: 15}
	if got := fast.Factor(20, flat); got != 0.75 {
		t.Errorf("Factor() = %v, want 15/20 = 0.75", got)
	}
}

func TestAnalogueFactorVolatilityRatio(t *testing.T) {
	// Quiet first 80 bars, wide swings in the last 21: recent volatility far
	// above the long-term level, which should compress the estimate.
	heating := testBars(101, func(i int) float64 {
		if i < 80 {
			return 100 + 0.1*float64(i%2)
		}
		return 100 + 5*float64(i%2)
	})
	empty := &AnalogueStats{}
	if got := empty.Factor(20, heating); got != 0.8 {
		t.Errorf("Factor() = %v, want 0.8 when recent volatility spikes", got)
	}

	// Mirror image: wild history calming down stretches the estimate.
	cooling := testBars(101, func(i int) float64 {
		if i < 80 {
			return 100 + 5*float64(i%2)
		}
		return 100 + 0.1*float64(i%2)
	})
	if got := empty.Factor(20, cooling); got != 1.3 {
		t.Errorf("Factor() = %v, want 1.3 when recent volatility fades", got)
	}
}

package market

import (
	"math"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name                       string
		oneWeek, twoWeek, fourWeek float64
		wantTrend, wantHint        string
	}{
		{"sharp two-week drop", -0.012, -0.041, -0.02, TrendDown, HintBuyTheDip},
		{"sharp one-week drop", -0.025, -0.01, 0.01, TrendDown, HintBuyTheDip},
		{"strong two-week rally", 0.01, 0.035, 0.05, TrendUp, HintRealiseGains},
		{"strong one-week rally", 0.025, 0.01, 0.02, TrendUp, HintRealiseGains},
		{"drift", 0.005, 0.01, 0.02, TrendNeutral, ""},
		{"exactly at thresholds", -0.02, -0.03, 0, TrendNeutral, ""},
	}
	for _, tt := range tests {
		trend, hint := Classify(tt.oneWeek, tt.twoWeek, tt.fourWeek)
		if trend != tt.wantTrend || hint != tt.wantHint {
			t.Errorf("%s: Classify() = (%q, %q), want (%q, %q)", tt.name, trend, hint, tt.wantTrend, tt.wantHint)
		}
	}
}

func TestPercentChange(t *testing.T) {
	closes := []float64{100, 102, 101, 104}
	if got := PercentChange(closes, 1); got != 104.0/101.0-1 {
		t.Errorf("PercentChange(1) = %v", got)
	}
	if got := PercentChange(closes, 3); math.Abs(got-0.04) > 1e-12 {
		t.Errorf("PercentChange(3) = %v, want 0.04", got)
	}
	if got := PercentChange(closes, 10); got != 0 {
		t.Errorf("PercentChange beyond history = %v, want 0", got)
	}
}

package ml

import (
	"math"
	"testing"
)

func TestRollingMeanSkipsWarmupHead(t *testing.T) {
	values := []float64{math.NaN(), math.NaN(), 1, 2, 3, 4}
	got := RollingMean(values, 3)

	for i := 0; i <= 3; i++ {
		if !math.IsNaN(got[i]) {
			t.Errorf("RollingMean[%d] = %v, want NaN inside the warmup", i, got[i])
		}
	}
	if got[4] != 2 {
		t.Errorf("RollingMean[4] = %v, want 2", got[4])
	}
	if got[5] != 3 {
		t.Errorf("RollingMean[5] = %v, want 3", got[5])
	}
}

func TestRollingSumSkipsWarmupHead(t *testing.T) {
	values := []float64{math.NaN(), 1, 2, 3, 4}
	got := RollingSum(values, 3)

	if !math.IsNaN(got[2]) {
		t.Errorf("RollingSum[2] = %v, want NaN inside the warmup", got[2])
	}
	if got[3] != 6 {
		t.Errorf("RollingSum[3] = %v, want 6", got[3])
	}
	if got[4] != 9 {
		t.Errorf("RollingSum[4] = %v, want 9", got[4])
	}
}

func TestRollingBetaMinimumObservations(t *testing.T) {
	const n = 60

	sparse := func(valid int) (a, b []float64) {
		a = nanSlice(n)
		b = nanSlice(n)
		for i := n - valid; i < n; i++ {
			a[i] = float64(i)
			b[i] = 2 * float64(i)
		}
		return a, b
	}

	// 12 valid pairs clear the 10-observation floor even on a 60-bar window.
	a, b := sparse(12)
	beta := RollingBeta(a, b, n, indexMinObs)
	if math.IsNaN(beta[n-1]) {
		t.Fatal("RollingBeta refused a window with 12 valid pairs")
	}
	if math.Abs(beta[n-1]-0.5) > 1e-12 {
		t.Errorf("beta = %v, want 0.5 for b = 2a", beta[n-1])
	}
	corr := RollingCorr(a, b, n, indexMinObs)
	if math.Abs(corr[n-1]-1) > 1e-12 {
		t.Errorf("corr = %v, want 1 for b = 2a", corr[n-1])
	}

	// 9 valid pairs stay below the floor.
	a, b = sparse(9)
	beta = RollingBeta(a, b, n, indexMinObs)
	if !math.IsNaN(beta[n-1]) {
		t.Errorf("RollingBeta emitted %v from 9 valid pairs", beta[n-1])
	}
}

package ml

import (
	"math"

	"borsatahmin/market"
)

// buildMomentumFeatures appends multi-window momentum, cross-sectional rank
// proxies and mean reversion features.
func buildMomentumFeatures(frame *Frame, bars market.Series) {
	n := len(bars)
	closes := bars.Closes()

	for _, p := range []int{5, 10, 20} {
		frame.MustAdd(fmtPeriod("pct_change_%d", p), PctChange(closes, p))
	}

	// Momentum rank over a rolling year approximates the cross-sectional
	// percentile without needing the full universe at feature time.
	mom20 := PctChange(closes, 20)
	frame.MustAdd("momentum_rank", RankPercentile(mom20, 60))

	returns := PctChange(closes, 1)
	vol20 := RollingStd(returns, 20)
	volAdj := nanSlice(n)
	for i := range volAdj {
		if math.IsNaN(mom20[i]) || math.IsNaN(vol20[i]) || vol20[i] == 0 {
			continue
		}
		volAdj[i] = mom20[i] / (vol20[i] * math.Sqrt(20))
	}
	frame.MustAdd("vol_adj_momentum", volAdj)

	// Trend strength is the 20-day regression slope normalised by price.
	frame.MustAdd("trend_strength", trendSlopeSeries(closes, 20))

	// Mean reversion: distance from the 20-day mean in standard deviations.
	mean20 := RollingMean(closes, 20)
	sd20 := RollingStd(closes, 20)
	meanRev := nanSlice(n)
	for i := range meanRev {
		if math.IsNaN(mean20[i]) || math.IsNaN(sd20[i]) || sd20[i] == 0 {
			continue
		}
		meanRev[i] = (closes[i] - mean20[i]) / sd20[i]
	}
	frame.MustAdd("mean_reversion", meanRev)
}

// trendSlopeSeries fits a least-squares line to each trailing window and
// returns the slope as a fraction of the window's mean price.
func trendSlopeSeries(closes []float64, window int) []float64 {
	out := nanSlice(len(closes))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(closes); i++ {
		seg := closes[i-window+1 : i+1]
		slope, mean := linearSlope(seg)
		if mean != 0 {
			out[i] = slope / mean * float64(window)
		}
	}
	return out
}

func linearSlope(values []float64) (slope, mean float64) {
	n := float64(len(values))
	if n < 2 {
		return 0, 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	return (n*sumXY - sumX*sumY) / denom, sumY / n
}

package ml

import (
	"math"
	"time"

	"borsatahmin/market"
)

// Divergence windows and magnitude floors. Overridable from configuration;
// the defaults are part of the feature contract.
var (
	DivergenceShortBars  = 5
	DivergenceShortLimit = 0.01
	DivergenceLongBars   = 20
	DivergenceLongLimit  = 0.005
)

// Minimum valid observation pairs before beta and correlation windows emit a
// value, regardless of window length.
const indexMinObs = 10

func addDivergence(frame *Frame, closes, indexCloses []float64, posName, negName string, bars int, limit float64) {
	stock := PctChange(closes, bars)
	idx := PctChange(indexCloses, bars)
	pos := nanSlice(len(closes))
	neg := nanSlice(len(closes))
	for i := range pos {
		if math.IsNaN(stock[i]) || math.IsNaN(idx[i]) {
			continue
		}
		pos[i] = boolFeature(stock[i] > limit && idx[i] < -limit)
		neg[i] = boolFeature(stock[i] < -limit && idx[i] > limit)
	}
	frame.MustAdd(posName, pos)
	frame.MustAdd(negName, neg)
}

// buildIndexFeatures appends beta, correlation, relative strength and
// divergence features against the market index. When the index series is
// empty the columns are filled with neutral values so single-symbol training
// still works.
func buildIndexFeatures(frame *Frame, bars market.Series, index market.Series) {
	n := len(bars)
	closes := bars.Closes()
	returns := PctChange(closes, 1)

	indexCloses := alignIndex(bars, index)
	if indexCloses == nil {
		addNeutralIndexColumns(frame, n)
		return
	}
	indexReturns := PctChange(indexCloses, 1)

	for _, w := range []int{20, 60, 120} {
		frame.MustAdd(fmtPeriod("beta_%d", w), RollingBeta(returns, indexReturns, w, indexMinObs))
		frame.MustAdd(fmtPeriod("corr_%d", w), RollingCorr(returns, indexReturns, w, indexMinObs))
	}

	// Relative strength is the difference of summed one-bar returns, not the
	// difference of cumulative changes.
	for _, w := range []int{5, 20, 60} {
		stock := RollingSum(returns, w)
		idx := RollingSum(indexReturns, w)
		rel := nanSlice(n)
		for i := range rel {
			if !math.IsNaN(stock[i]) && !math.IsNaN(idx[i]) {
				rel[i] = stock[i] - idx[i]
			}
		}
		frame.MustAdd(fmtPeriod("rel_strength_%d", w), rel)
	}

	// Divergence flags: the stock moving against the index, beyond a minimum
	// magnitude chosen to suppress noise. Two windows, tighter limit on the
	// longer one.
	addDivergence(frame, closes, indexCloses, "divergence_pos", "divergence_neg", DivergenceShortBars, DivergenceShortLimit)
	addDivergence(frame, closes, indexCloses, "divergence_pos_20d", "divergence_neg_20d", DivergenceLongBars, DivergenceLongLimit)

	idxMom := PctChange(indexCloses, 20)
	frame.MustAdd("index_momentum", idxMom)

	// Normalised by the 60-bar mean absolute momentum.
	absMom := nanSlice(n)
	for i := range absMom {
		if !math.IsNaN(idxMom[i]) {
			absMom[i] = math.Abs(idxMom[i])
		}
	}
	momScale := RollingMean(absMom, 60)
	momNorm := nanSlice(n)
	for i := range momNorm {
		if !math.IsNaN(idxMom[i]) && !math.IsNaN(momScale[i]) && momScale[i] > 0 {
			momNorm[i] = idxMom[i] / momScale[i]
		}
	}
	frame.MustAdd("index_momentum_norm", momNorm)

	ratio := nanSlice(n)
	for i := range ratio {
		if indexCloses[i] > 0 {
			ratio[i] = closes[i] / indexCloses[i] * 1000
		}
	}
	frame.MustAdd("price_index_ratio", ratio)

	frame.MustAdd("index_rsi", RSISeries(indexCloses, 14))
	idxMACD, _, _ := MACDSeries(indexCloses)
	idxMACDNorm := nanSlice(n)
	for i := range idxMACDNorm {
		if indexCloses[i] > 0 {
			idxMACDNorm[i] = idxMACD[i] / indexCloses[i]
		}
	}
	frame.MustAdd("index_macd", idxMACDNorm)
}

// alignIndex maps index closes onto the stock's timestamps, carrying the last
// known index close across gaps. Returns nil when overlap is too thin.
func alignIndex(bars market.Series, index market.Series) []float64 {
	if len(index) == 0 {
		return nil
	}
	byDay := make(map[string]float64, len(index))
	for _, b := range index {
		byDay[dayKey(b.Timestamp)] = b.Close
	}

	out := make([]float64, len(bars))
	last := 0.0
	matched := 0
	for i, b := range bars {
		if v, ok := byDay[dayKey(b.Timestamp)]; ok {
			last = v
			matched++
		}
		out[i] = last
	}
	if matched < len(bars)/2 {
		return nil
	}
	// Backfill the head before the first overlap.
	for i := 0; i < len(out) && out[i] == 0; i++ {
		out[i] = last
	}
	return out
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

var indexColumnNames = []string{
	"beta_20", "corr_20", "beta_60", "corr_60", "beta_120", "corr_120",
	"rel_strength_5", "rel_strength_20", "rel_strength_60",
	"divergence_pos", "divergence_neg", "divergence_pos_20d", "divergence_neg_20d",
	"index_momentum", "index_momentum_norm", "price_index_ratio",
	"index_rsi", "index_macd",
}

func addNeutralIndexColumns(frame *Frame, n int) {
	for _, name := range indexColumnNames {
		col := make([]float64, n)
		switch name {
		case "beta_20", "beta_60", "beta_120", "price_index_ratio":
			for i := range col {
				col[i] = 1
			}
		case "index_rsi":
			for i := range col {
				col[i] = 50
			}
		}
		frame.MustAdd(name, col)
	}
}

package ml

import "math"

// Rolling primitives return series aligned to their input, with NaN during
// the warmup window so DropNaN can trim incomplete rows in one pass.

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// RollingMean emits NaN for any window still inside a warmup head, so rolling
// outputs can be stacked without poisoning the running sum.
func RollingMean(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 || len(values) < window {
		return out
	}
	sum := 0.0
	invalid := 0
	for i, v := range values {
		if math.IsNaN(v) {
			invalid++
		} else {
			sum += v
		}
		if i >= window {
			if old := values[i-window]; math.IsNaN(old) {
				invalid--
			} else {
				sum -= old
			}
		}
		if i >= window-1 && invalid == 0 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

func RollingStd(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 1 || len(values) < window {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		seg := values[i-window+1 : i+1]
		mean := 0.0
		for _, v := range seg {
			mean += v
		}
		mean /= float64(window)
		variance := 0.0
		for _, v := range seg {
			d := v - mean
			variance += d * d
		}
		out[i] = math.Sqrt(variance / float64(window-1))
	}
	return out
}

func RollingMin(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := window - 1; i < len(values); i++ {
		m := values[i-window+1]
		for _, v := range values[i-window+2 : i+1] {
			if v < m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

func RollingMax(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := window - 1; i < len(values); i++ {
		m := values[i-window+1]
		for _, v := range values[i-window+2 : i+1] {
			if v > m {
				m = v
			}
		}
		out[i] = m
	}
	return out
}

// RollingSum has the same NaN-window behaviour as RollingMean.
func RollingSum(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 || len(values) < window {
		return out
	}
	sum := 0.0
	invalid := 0
	for i, v := range values {
		if math.IsNaN(v) {
			invalid++
		} else {
			sum += v
		}
		if i >= window {
			if old := values[i-window]; math.IsNaN(old) {
				invalid--
			} else {
				sum -= old
			}
		}
		if i >= window-1 && invalid == 0 {
			out[i] = sum
		}
	}
	return out
}

// EMA seeds from the first value, matching the indicator helpers used on the
// signal side.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	k := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// PctChange is the fractional change over n bars.
func PctChange(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	for i := n; i < len(values); i++ {
		if values[i-n] != 0 {
			out[i] = values[i]/values[i-n] - 1
		}
	}
	return out
}

// LogReturns is ln(v_t / v_{t-1}).
func LogReturns(values []float64) []float64 {
	out := nanSlice(len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 && values[i] > 0 {
			out[i] = math.Log(values[i] / values[i-1])
		}
	}
	return out
}

// Shift moves values forward by n (NaN head); negative n pulls future values
// back (NaN tail), which is how label columns are built.
func Shift(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	for i := range values {
		j := i - n
		if j >= 0 && j < len(values) {
			out[i] = values[j]
		}
	}
	return out
}

// RSISeries is Wilder's RSI over the full series.
func RSISeries(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if len(closes) <= period {
		return out
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		diff := closes[i] - closes[i-1]
		if diff >= 0 {
			avgGain += diff
		} else {
			avgLoss -= diff
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiFrom(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if diff >= 0 {
			gain = diff
		} else {
			loss = -diff
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFrom(avgGain, avgLoss)
	}
	return out
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDSeries returns the MACD line, its signal, and the histogram.
func MACDSeries(closes []float64) (macd, signal, hist []float64) {
	ema12 := EMA(closes, 12)
	ema26 := EMA(closes, 26)
	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = ema12[i] - ema26[i]
	}
	signal = EMA(macd, 9)
	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = macd[i] - signal[i]
	}
	return macd, signal, hist
}

// ATRSeries is the simple moving average of the true range.
func ATRSeries(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	tr := nanSlice(n)
	for i := 1; i < n; i++ {
		t := highs[i] - lows[i]
		if hc := math.Abs(highs[i] - closes[i-1]); hc > t {
			t = hc
		}
		if lc := math.Abs(lows[i] - closes[i-1]); lc > t {
			t = lc
		}
		tr[i] = t
	}

	out := nanSlice(n)
	for i := period; i < n; i++ {
		sum := 0.0
		for _, v := range tr[i-period+1 : i+1] {
			sum += v
		}
		out[i] = sum / float64(period)
	}
	return out
}

// StochasticSeries returns %K and its d-period SMA %D.
func StochasticSeries(highs, lows, closes []float64, kPeriod, dPeriod int) (k, d []float64) {
	n := len(closes)
	k = nanSlice(n)
	hh := RollingMax(highs, kPeriod)
	ll := RollingMin(lows, kPeriod)
	for i := kPeriod - 1; i < n; i++ {
		spread := hh[i] - ll[i]
		if spread == 0 {
			k[i] = 50
			continue
		}
		k[i] = (closes[i] - ll[i]) / spread * 100
	}
	d = RollingMean(k, dPeriod)
	return k, d
}

// WilliamsRSeries is the Williams %R oscillator in [-100, 0].
func WilliamsRSeries(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	hh := RollingMax(highs, period)
	ll := RollingMin(lows, period)
	for i := period - 1; i < n; i++ {
		spread := hh[i] - ll[i]
		if spread == 0 {
			out[i] = -50
			continue
		}
		out[i] = (hh[i] - closes[i]) / spread * -100
	}
	return out
}

// CCISeries is the commodity channel index over typical prices.
func CCISeries(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	tp := make([]float64, n)
	for i := range tp {
		tp[i] = (highs[i] + lows[i] + closes[i]) / 3
	}
	sma := RollingMean(tp, period)

	out := nanSlice(n)
	for i := period - 1; i < n; i++ {
		meanDev := 0.0
		for _, v := range tp[i-period+1 : i+1] {
			meanDev += math.Abs(v - sma[i])
		}
		meanDev /= float64(period)
		if meanDev == 0 {
			out[i] = 0
			continue
		}
		out[i] = (tp[i] - sma[i]) / (0.015 * meanDev)
	}
	return out
}

// ADXSeries is the average directional index with Wilder smoothing.
func ADXSeries(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if n <= 2*period {
		return out
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		up := highs[i] - highs[i-1]
		down := lows[i-1] - lows[i]
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
		t := highs[i] - lows[i]
		if hc := math.Abs(highs[i] - closes[i-1]); hc > t {
			t = hc
		}
		if lc := math.Abs(lows[i] - closes[i-1]); lc > t {
			t = lc
		}
		tr[i] = t
	}

	smTR, smPlus, smMinus := 0.0, 0.0, 0.0
	for i := 1; i <= period; i++ {
		smTR += tr[i]
		smPlus += plusDM[i]
		smMinus += minusDM[i]
	}

	dx := nanSlice(n)
	for i := period; i < n; i++ {
		if i > period {
			smTR = smTR - smTR/float64(period) + tr[i]
			smPlus = smPlus - smPlus/float64(period) + plusDM[i]
			smMinus = smMinus - smMinus/float64(period) + minusDM[i]
		}
		if smTR == 0 {
			dx[i] = 0
			continue
		}
		pdi := smPlus / smTR * 100
		mdi := smMinus / smTR * 100
		if pdi+mdi == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = math.Abs(pdi-mdi) / (pdi + mdi) * 100
	}

	// First ADX is the mean of the first period DX values, then smoothed.
	first := 0.0
	for i := period; i < 2*period; i++ {
		first += dx[i]
	}
	out[2*period-1] = first / float64(period)
	for i := 2 * period; i < n; i++ {
		out[i] = (out[i-1]*float64(period-1) + dx[i]) / float64(period)
	}
	return out
}

// OBVSeries is on-balance volume.
func OBVSeries(closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// RollingBeta is cov(a,b)/var(b) over the window, requiring minObs non-NaN
// pairs before emitting a value.
func RollingBeta(a, b []float64, window, minObs int) []float64 {
	out := nanSlice(len(a))
	for i := window - 1; i < len(a); i++ {
		cov, varB, n := windowCovVar(a[i-window+1:i+1], b[i-window+1:i+1])
		if n < minObs || varB == 0 {
			continue
		}
		out[i] = cov / varB
	}
	return out
}

// RollingCorr is the Pearson correlation over the window.
func RollingCorr(a, b []float64, window, minObs int) []float64 {
	out := nanSlice(len(a))
	for i := window - 1; i < len(a); i++ {
		sa := a[i-window+1 : i+1]
		sb := b[i-window+1 : i+1]
		cov, varB, n := windowCovVar(sa, sb)
		if n < minObs || varB == 0 {
			continue
		}
		varA, _, _ := windowCovVar(sa, sa)
		if varA == 0 {
			continue
		}
		out[i] = cov / math.Sqrt(varA*varB)
	}
	return out
}

func windowCovVar(a, b []float64) (cov, varB float64, n int) {
	meanA, meanB := 0.0, 0.0
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		meanA += a[i]
		meanB += b[i]
		n++
	}
	if n < 2 {
		return 0, 0, n
	}
	meanA /= float64(n)
	meanB /= float64(n)
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		cov += (a[i] - meanA) * (b[i] - meanB)
		varB += (b[i] - meanB) * (b[i] - meanB)
	}
	cov /= float64(n - 1)
	varB /= float64(n - 1)
	return cov, varB, n
}

// RankPercentile places each value within its trailing window in [0, 1].
func RankPercentile(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	for i := window - 1; i < len(values); i++ {
		below := 0
		for _, v := range values[i-window+1 : i+1] {
			if v <= values[i] {
				below++
			}
		}
		out[i] = float64(below-1) / float64(window-1)
	}
	return out
}

package ml

import (
	"fmt"
	"math"

	"borsatahmin/market"
)

func fmtPeriod(format string, period int) string {
	return fmt.Sprintf(format, period)
}

// buildTechnicalFeatures appends price, trend, oscillator, band, volume and
// gap features. Column order here is the model's feature order.
func buildTechnicalFeatures(frame *Frame, bars market.Series) {
	n := len(bars)
	opens := bars.Opens()
	highs := bars.Highs()
	lows := bars.Lows()
	closes := bars.Closes()
	volumes := bars.Volumes()

	returns := PctChange(closes, 1)
	frame.MustAdd("returns", returns)
	frame.MustAdd("log_returns", LogReturns(closes))

	hlRatio := nanSlice(n)
	coRatio := nanSlice(n)
	for i := 0; i < n; i++ {
		if lows[i] > 0 {
			hlRatio[i] = highs[i] / lows[i]
		}
		if opens[i] > 0 {
			coRatio[i] = closes[i] / opens[i]
		}
	}
	frame.MustAdd("high_low_ratio", hlRatio)
	frame.MustAdd("close_open_ratio", coRatio)

	frame.MustAdd("volatility_5d", scaleSeries(RollingStd(returns, 5), math.Sqrt(252)))
	frame.MustAdd("volatility_20d", scaleSeries(RollingStd(returns, 20), math.Sqrt(252)))

	atr := ATRSeries(highs, lows, closes, 14)
	atrNorm := nanSlice(n)
	for i := range atrNorm {
		if !math.IsNaN(atr[i]) && closes[i] > 0 {
			atrNorm[i] = atr[i] / closes[i]
		}
	}
	frame.MustAdd("atr_14", atrNorm)

	frame.MustAdd("rsi_14", RSISeries(closes, 14))

	macd, signal, hist := MACDSeries(closes)
	frame.MustAdd("macd", macd)
	frame.MustAdd("macd_signal", signal)
	frame.MustAdd("macd_histogram", hist)

	stochK, stochD := StochasticSeries(highs, lows, closes, 14, 3)
	frame.MustAdd("stoch_k", stochK)
	frame.MustAdd("stoch_d", stochD)

	frame.MustAdd("williams_r", WilliamsRSeries(highs, lows, closes, 14))
	frame.MustAdd("cci_20", CCISeries(highs, lows, closes, 20))
	frame.MustAdd("adx_14", ADXSeries(highs, lows, closes, 14))

	for _, p := range []int{5, 10, 20} {
		frame.MustAdd(fmtPeriod("roc_%d", p), PctChange(closes, p))
	}

	smas := map[int][]float64{}
	for _, p := range []int{5, 10, 20, 50} {
		sma := RollingMean(closes, p)
		smas[p] = sma
		frame.MustAdd(fmtPeriod("sma_%d", p), ratioSeries(closes, sma))
		frame.MustAdd(fmtPeriod("ema_%d", p), ratioSeries(closes, emaValid(closes, p)))
	}

	frame.MustAdd("sma_5_20_cross", crossSeries(smas[5], smas[20]))
	frame.MustAdd("sma_20_50_cross", crossSeries(smas[20], smas[50]))

	for _, p := range []int{5, 10, 20, 50} {
		delta := nanSlice(n)
		for i := range delta {
			if !math.IsNaN(smas[p][i]) && smas[p][i] > 0 {
				delta[i] = closes[i]/smas[p][i] - 1
			}
		}
		frame.MustAdd(fmtPeriod("price_sma_%d_delta", p), delta)
	}

	// Bollinger bands on a 20-day window with 2 standard deviations.
	mid := RollingMean(closes, 20)
	sd := RollingStd(closes, 20)
	bbUpper := nanSlice(n)
	bbLower := nanSlice(n)
	bbWidth := nanSlice(n)
	bbPos := nanSlice(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(mid[i]) || math.IsNaN(sd[i]) || mid[i] == 0 {
			continue
		}
		upper := mid[i] + 2*sd[i]
		lower := mid[i] - 2*sd[i]
		bbUpper[i] = upper / closes[i]
		bbLower[i] = lower / closes[i]
		bbWidth[i] = (upper - lower) / mid[i]
		if upper != lower {
			bbPos[i] = (closes[i] - lower) / (upper - lower)
		} else {
			bbPos[i] = 0.5
		}
	}
	frame.MustAdd("bb_upper", bbUpper)
	frame.MustAdd("bb_lower", bbLower)
	frame.MustAdd("bb_width", bbWidth)
	frame.MustAdd("bb_position", bbPos)

	volSMA := RollingMean(volumes, 20)
	volRatio := nanSlice(n)
	volSpike := nanSlice(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(volSMA[i]) || volSMA[i] == 0 {
			continue
		}
		volRatio[i] = volumes[i] / volSMA[i]
		if volRatio[i] > 2 {
			volSpike[i] = 1
		} else {
			volSpike[i] = 0
		}
	}
	frame.MustAdd("volume_sma_20", volSMA)
	frame.MustAdd("volume_ratio", volRatio)
	frame.MustAdd("volume_spike", volSpike)

	// OBV is normalised by cumulative volume so the scale stays comparable
	// across symbols.
	obv := OBVSeries(closes, volumes)
	cumVol := 0.0
	obvNorm := make([]float64, n)
	for i := 0; i < n; i++ {
		cumVol += volumes[i]
		if cumVol > 0 {
			obvNorm[i] = obv[i] / cumVol
		}
	}
	frame.MustAdd("obv", obvNorm)

	gap := nanSlice(n)
	gapUp := nanSlice(n)
	gapDown := nanSlice(n)
	for i := 1; i < n; i++ {
		if closes[i-1] == 0 {
			continue
		}
		g := opens[i]/closes[i-1] - 1
		gap[i] = g
		gapUp[i] = boolFeature(g > 0.01)
		gapDown[i] = boolFeature(g < -0.01)
	}
	frame.MustAdd("overnight_gap", gap)
	frame.MustAdd("gap_up", gapUp)
	frame.MustAdd("gap_down", gapDown)
}

// emaValid masks the EMA warmup so incomplete values are dropped with the
// rest of the frame.
func emaValid(values []float64, period int) []float64 {
	ema := EMA(values, period)
	out := nanSlice(len(values))
	for i := period - 1; i < len(values); i++ {
		out[i] = ema[i]
	}
	return out
}

func ratioSeries(closes, ma []float64) []float64 {
	out := nanSlice(len(closes))
	for i := range closes {
		if !math.IsNaN(ma[i]) && ma[i] != 0 {
			out[i] = closes[i] / ma[i]
		}
	}
	return out
}

func crossSeries(fast, slow []float64) []float64 {
	out := nanSlice(len(fast))
	for i := range fast {
		if math.IsNaN(fast[i]) || math.IsNaN(slow[i]) {
			continue
		}
		out[i] = boolFeature(fast[i] > slow[i])
	}
	return out
}

func scaleSeries(values []float64, factor float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * factor
	}
	return out
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

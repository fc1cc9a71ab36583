package ml

import (
	"math"

	"borsatahmin/config"
	"borsatahmin/market"
)

// Stability bands by annualised volatility. Band names surface in user-facing
// explanations, hence the Turkish labels.
const (
	BandVeryStable   = "Çok Stabil"
	BandStable       = "Stabil"
	BandMedium       = "Orta"
	BandVolatile     = "Volatil"
	BandVeryVolatile = "Çok Volatil"
)

// Threshold clamp bounds. Outside this range labels degenerate into all-one
// or all-zero classes.
const (
	minThreshold = 0.001
	maxThreshold = 0.20
)

// VolatilityInfo records how the adaptive thresholds were derived, for
// downstream explainers. Returned by Build rather than kept as state so the
// engineer stays stateless across requests.
type VolatilityInfo struct {
	AnnualisedVol float64        `json:"annualised_vol"`
	StdVol        float64        `json:"std_vol"`
	ATRVol        float64        `json:"atr_vol"`
	Band          string         `json:"band"`
	ScaleFactor   float64        `json:"scale_factor"`
	ThresholdUp   float64        `json:"threshold_up"`
	ThresholdDown float64        `json:"threshold_down"`
	Horizon       config.Horizon `json:"horizon"`
	HoldingDays   int            `json:"holding_days"`
}

// StabilityBand classifies annualised volatility into one of five bands.
func StabilityBand(vol float64) (string, int) {
	switch {
	case vol <= 0.20:
		return BandVeryStable, 0
	case vol <= 0.28:
		return BandStable, 1
	case vol <= 0.45:
		return BandMedium, 2
	case vol <= 0.70:
		return BandVolatile, 3
	default:
		return BandVeryVolatile, 4
	}
}

// thresholdScales maps horizon -> per-band multiplier on the base thresholds.
// Long-term labelling follows the trend, so scales stay close to one; short
// horizons widen thresholds on volatile symbols to keep label noise down.
var thresholdScales = map[config.Horizon][5]float64{
	config.ShortTerm:  {0.8, 0.9, 1.0, 1.3, 1.6},
	config.MediumTerm: {0.9, 0.95, 1.0, 1.15, 1.3},
	config.LongTerm:   {0.95, 1.0, 1.0, 1.05, 1.1},
}

// AdaptiveThresholds derives the final up/down thresholds for a symbol from
// the horizon base thresholds and the symbol's volatility profile.
func AdaptiveThresholds(hc config.HorizonConfig, horizon config.Horizon, vol float64) (up, down, scale float64, band string) {
	band, idx := StabilityBand(vol)
	scales, ok := thresholdScales[horizon]
	if !ok {
		scales = thresholdScales[config.MediumTerm]
	}
	scale = scales[idx]

	up = clampThreshold(hc.ThresholdUp * scale)
	down = -clampThreshold(math.Abs(hc.ThresholdDown) * scale)
	return up, down, scale, band
}

func clampThreshold(v float64) float64 {
	if v < minThreshold {
		return minThreshold
	}
	if v > maxThreshold {
		return maxThreshold
	}
	return v
}

// SymbolVolatility estimates annualised volatility as the mean of the
// close-to-close and ATR estimates over the given bars.
func SymbolVolatility(bars market.Series) (annualised, stdVol, atrVol float64) {
	if len(bars) < 21 {
		return 0, 0, 0
	}

	closes := bars.Closes()
	returns := make([]float64, 0, 20)
	for i := len(closes) - 20; i < len(closes); i++ {
		if closes[i-1] > 0 {
			returns = append(returns, closes[i]/closes[i-1]-1)
		}
	}
	stdVol = sampleStd(returns) * math.Sqrt(252)

	atr := market.CalculateATR(bars, 14)
	if last := bars.Last().Close; last > 0 {
		atrVol = atr / last * math.Sqrt(252)
	}

	if atrVol == 0 {
		return stdVol, stdVol, 0
	}
	return (stdVol + atrVol) / 2, stdVol, atrVol
}

// buildLabels appends the five label columns to the frame. The last
// HoldingDays rows carry NaN future values and fall out in DropNaN.
func buildLabels(frame *Frame, bars market.Series, hc config.HorizonConfig, horizon config.Horizon) *VolatilityInfo {
	closes := bars.Closes()
	n := len(closes)

	annualised, stdVol, atrVol := SymbolVolatility(bars)
	up, down, scale, band := AdaptiveThresholds(hc, horizon, annualised)

	futurePrice := Shift(closes, -hc.PredictionDays)
	futureReturn := nanSlice(n)
	direction := nanSlice(n)
	directionBinary := nanSlice(n)
	volAdj := nanSlice(n)

	returns := PctChange(closes, 1)
	retVol := RollingStd(returns, 20)

	for i := 0; i < n; i++ {
		if math.IsNaN(futurePrice[i]) || closes[i] == 0 {
			continue
		}
		fr := futurePrice[i]/closes[i] - 1
		futureReturn[i] = fr

		switch {
		case fr > up:
			direction[i] = 1
		case fr < down:
			direction[i] = -1
		default:
			direction[i] = 0
		}

		// No neutral class for the binary target: clear moves dominate the
		// threshold, marginal ones fall back to the sign.
		switch {
		case fr > up:
			directionBinary[i] = 1
		case fr < down:
			directionBinary[i] = 0
		case fr > 0:
			directionBinary[i] = 1
		default:
			directionBinary[i] = 0
		}

		if !math.IsNaN(retVol[i]) && retVol[i] > 0 {
			volAdj[i] = fr / retVol[i]
		} else {
			volAdj[i] = 0
		}
	}

	frame.MustAdd("future_price", futurePrice)
	frame.MustAdd("future_return", futureReturn)
	frame.MustAdd("direction", direction)
	frame.MustAdd("direction_binary", directionBinary)
	frame.MustAdd("future_return_vol_adj", volAdj)

	return &VolatilityInfo{
		AnnualisedVol: annualised,
		StdVol:        stdVol,
		ATRVol:        atrVol,
		Band:          band,
		ScaleFactor:   scale,
		ThresholdUp:   up,
		ThresholdDown: down,
		Horizon:       horizon,
		HoldingDays:   hc.PredictionDays,
	}
}

func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

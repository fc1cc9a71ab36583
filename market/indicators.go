package market

import "math"

// CalculateMA calculates the simple moving average over the last period bars
func CalculateMA(closes []float64, period int) float64 {
	if len(closes) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(period)
}

// CalculateRSI calculates the Relative Strength Index
func CalculateRSI(closes []float64, period int) float64 {
	if len(closes) <= period || period <= 0 {
		return 0
	}

	gains := 0.0
	losses := 0.0

	for i := len(closes) - period; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		if diff >= 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	if avgLoss == 0 {
		return 100
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// CalculateMACD calculates the MACD line, signal line, and histogram
func CalculateMACD(closes []float64) (float64, float64, float64) {
	if len(closes) < 26 {
		return 0, 0, 0
	}

	macdSeries := make([]float64, len(closes))
	ema12Series := CalculateEMASeries(closes, 12)
	ema26Series := CalculateEMASeries(closes, 26)

	for i := 0; i < len(closes); i++ {
		macdSeries[i] = ema12Series[i] - ema26Series[i]
	}

	signalSeries := CalculateEMASeries(macdSeries, 9)

	macd := macdSeries[len(macdSeries)-1]
	signal := signalSeries[len(signalSeries)-1]
	hist := macd - signal

	return macd, signal, hist
}

// CalculateEMASeries returns the full exponential moving average series
func CalculateEMASeries(data []float64, period int) []float64 {
	ema := make([]float64, len(data))
	if len(data) == 0 {
		return ema
	}

	k := 2.0 / float64(period+1)
	ema[0] = data[0]
	for i := 1; i < len(data); i++ {
		ema[i] = data[i]*k + ema[i-1]*(1-k)
	}
	return ema
}

// CalculateATR calculates the average true range over the last period bars
func CalculateATR(bars Series, period int) float64 {
	if len(bars) <= period || period <= 0 {
		return 0
	}
	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += trueRange(bars[i], bars[i-1])
	}
	return sum / float64(period)
}

func trueRange(cur, prev Bar) float64 {
	tr := cur.High - cur.Low
	if hc := math.Abs(cur.High - prev.Close); hc > tr {
		tr = hc
	}
	if lc := math.Abs(cur.Low - prev.Close); lc > tr {
		tr = lc
	}
	return tr
}

// AnnualisedVolatility averages the close-to-close estimate with the ATR
// estimate. Both are annualised with 252 trading days.
func AnnualisedVolatility(bars Series, period int) float64 {
	if len(bars) <= period || period <= 1 {
		return 0
	}

	closes := bars.Closes()
	returns := make([]float64, 0, period)
	for i := len(closes) - period; i < len(closes); i++ {
		if closes[i-1] > 0 {
			returns = append(returns, closes[i]/closes[i-1]-1)
		}
	}
	stdVol := stdDev(returns) * math.Sqrt(252)

	atr := CalculateATR(bars, 14)
	atrVol := 0.0
	if last := bars.Last().Close; last > 0 {
		atrVol = atr / last * math.Sqrt(252)
	}

	if atrVol == 0 {
		return stdVol
	}
	return (stdVol + atrVol) / 2
}

// VolumeRatio compares the latest volume with its moving average
func VolumeRatio(volumes []float64, period int) float64 {
	if len(volumes) < period || period <= 0 {
		return 0
	}
	avg := CalculateMA(volumes, period)
	if avg == 0 {
		return 0
	}
	return volumes[len(volumes)-1] / avg
}

// PercentChange is the fractional change over the last n bars
func PercentChange(closes []float64, n int) float64 {
	if len(closes) <= n || n <= 0 {
		return 0
	}
	base := closes[len(closes)-1-n]
	if base == 0 {
		return 0
	}
	return closes[len(closes)-1]/base - 1
}

func stdDev(values []float64) float64 {
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
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

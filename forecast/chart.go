package forecast

import (
	"math"

	"borsatahmin/market"
)

// Chart analysis labels.
const (
	TrendStrong = "Strong"
	TrendMedium = "Medium"
	TrendWeak   = "Weak"

	VolumeIncreasing = "Increasing"
	VolumeDecreasing = "Decreasing"
	VolumeStable     = "Stable"

	PatternStrongUptrend   = "Strong Uptrend"
	PatternStrongDowntrend = "Strong Downtrend"
	PatternSideways        = "Sideways"
	PatternHighVolatility  = "High Volatility"
	PatternMixedSignals    = "Mixed Signals"
	PatternInsufficient    = "Insufficient Data"
)

// minChartBars is the history floor below which the analyser reports
// insufficient data instead of guessing.
const minChartBars = 50

// ChartAnalysis is a snapshot of the recent chart structure, embedded in
// time-to-target estimates so explanations need no further state.
type ChartAnalysis struct {
	TrendStrength  float64 `json:"trend_strength"`
	TrendLabel     string  `json:"trend_label"`
	Support        float64 `json:"support"`
	Resistance     float64 `json:"resistance"`
	NearSupportRes bool    `json:"near_support_resistance"`
	VolumeTrend    string  `json:"volume_trend"`
	Pattern        string  `json:"pattern"`
}

// AnalyseChart summarises trend, support/resistance and volume structure over
// the most recent bars.
func AnalyseChart(bars market.Series) *ChartAnalysis {
	if len(bars) < minChartBars {
		return &ChartAnalysis{Pattern: PatternInsufficient, TrendLabel: TrendWeak, VolumeTrend: VolumeStable}
	}

	closes := bars.Closes()
	current := closes[len(closes)-1]

	sma20 := market.CalculateMA(closes, 20)
	sma50 := market.CalculateMA(closes, 50)

	out := &ChartAnalysis{}
	if sma50 > 0 {
		out.TrendStrength = math.Abs(sma20-sma50) / sma50
	}
	switch {
	case out.TrendStrength >= 0.10:
		out.TrendLabel = TrendStrong
	case out.TrendStrength >= 0.05:
		out.TrendLabel = TrendMedium
	default:
		out.TrendLabel = TrendWeak
	}

	tail := bars[len(bars)-20:]
	out.Support = tail[0].Low
	out.Resistance = tail[0].High
	for _, b := range tail {
		if b.Low < out.Support {
			out.Support = b.Low
		}
		if b.High > out.Resistance {
			out.Resistance = b.High
		}
	}
	if out.Support > 0 && out.Resistance > 0 {
		nearSupport := math.Abs(current-out.Support)/out.Support < 0.03
		nearResistance := math.Abs(current-out.Resistance)/out.Resistance < 0.03
		out.NearSupportRes = nearSupport || nearResistance
	}

	volumes := bars.Volumes()
	recent := mean(volumes[len(volumes)-5:])
	baseline := market.CalculateMA(volumes, 20)
	switch {
	case baseline == 0:
		out.VolumeTrend = VolumeStable
	case recent > baseline*1.2:
		out.VolumeTrend = VolumeIncreasing
	case recent < baseline*0.8:
		out.VolumeTrend = VolumeDecreasing
	default:
		out.VolumeTrend = VolumeStable
	}

	out.Pattern = classifyPattern(closes)
	return out
}

// classifyPattern labels the last 20-bar window by return and volatility.
func classifyPattern(closes []float64) string {
	window := closes[len(closes)-20:]
	if window[0] <= 0 {
		return PatternMixedSignals
	}
	ret := window[len(window)-1]/window[0] - 1

	returns := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		if window[i-1] > 0 {
			returns = append(returns, window[i]/window[i-1]-1)
		}
	}
	vol := stdev(returns) * math.Sqrt(252)

	switch {
	case vol > 0.60:
		return PatternHighVolatility
	case ret > 0.08:
		return PatternStrongUptrend
	case ret < -0.08:
		return PatternStrongDowntrend
	case math.Abs(ret) < 0.03:
		return PatternSideways
	default:
		return PatternMixedSignals
	}
}

// Factor converts the chart snapshot into the multiplicative time adjustment.
// Strong trends resolve targets faster, weak ones slower; congestion near
// support or resistance and fading volume both stretch the estimate.
func (c *ChartAnalysis) Factor() float64 {
	factor := 1.0
	switch c.TrendLabel {
	case TrendStrong:
		factor *= 0.6
	case TrendWeak:
		factor *= 1.8
	}
	if c.NearSupportRes {
		factor *= 1.5
	}
	switch c.VolumeTrend {
	case VolumeIncreasing:
		factor *= 0.7
	case VolumeDecreasing:
		factor *= 1.3
	}
	return factor
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	variance := 0.0
	for _, v := range values {
		d := v - m
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

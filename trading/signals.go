package trading

import (
	"time"

	"github.com/sdcoffey/big"
	"github.com/sdcoffey/techan"

	"borsatahmin/market"
	"borsatahmin/ml"
)

// TechnicalConfidenceCap bounds fallback signals so a heuristic can never
// outrank a trained model. Deliberate composition rule, do not raise it.
const TechnicalConfidenceCap = 0.60

// TechnicalSignal derives a pseudo-prediction from RSI, MACD, trend and
// volume when no model exists for the symbol. Returns nil when history is
// too short to read anything.
func TechnicalSignal(bars market.Series) *ml.Prediction {
	if len(bars) < 60 {
		return nil
	}

	series := toTimeSeries(bars)
	last := series.LastIndex()

	closePrice := techan.NewClosePriceIndicator(series)
	rsi := techan.NewRelativeStrengthIndexIndicator(closePrice, 14).Calculate(last).Float()
	macdLine := techan.NewMACDIndicator(closePrice, 12, 26)
	macdHist := techan.NewMACDHistogramIndicator(macdLine, 9).Calculate(last).Float()
	ema20 := techan.NewEMAIndicator(closePrice, 20).Calculate(last).Float()
	ema50 := techan.NewEMAIndicator(closePrice, 50).Calculate(last).Float()

	price := bars.Last().Close
	uptrend := ema20 > ema50
	volumeExpanding := market.VolumeRatio(bars.Volumes(), 20) > 1.2

	direction := ""
	confidence := 0.0
	switch {
	case rsi < 30 && (uptrend || volumeExpanding):
		// Oversold with some agreement behind the bounce.
		direction, confidence = ml.DirectionUp, 0.58
	case rsi < 35 && macdHist > 0:
		direction, confidence = ml.DirectionUp, 0.55
	case rsi > 70 && (!uptrend || volumeExpanding):
		direction, confidence = ml.DirectionDown, 0.58
	case rsi > 65 && macdHist < 0:
		direction, confidence = ml.DirectionDown, 0.55
	case macdHist > 0 && price > ema20 && uptrend:
		direction, confidence = ml.DirectionUp, 0.56
	case macdHist < 0 && price < ema20 && !uptrend:
		direction, confidence = ml.DirectionDown, 0.56
	case uptrend:
		direction, confidence = ml.DirectionUp, 0.52
	default:
		direction, confidence = ml.DirectionDown, 0.52
	}

	if confidence > TechnicalConfidenceCap {
		confidence = TechnicalConfidenceCap
	}
	probUp := confidence
	if direction == ml.DirectionDown {
		probUp = 1 - confidence
	}

	return &ml.Prediction{
		Symbol:     bars.Last().Symbol,
		Direction:  direction,
		ProbUp:     probUp,
		Confidence: confidence,
		Price:      price,
		Timestamp:  bars.Last().Timestamp,
	}
}

// toTimeSeries converts bars into a techan series.
func toTimeSeries(bars market.Series) *techan.TimeSeries {
	series := techan.NewTimeSeries()
	for _, b := range bars {
		period := techan.NewTimePeriod(b.Timestamp, 24*time.Hour)
		candle := techan.NewCandle(period)
		candle.OpenPrice = big.NewDecimal(b.Open)
		candle.MaxPrice = big.NewDecimal(b.High)
		candle.MinPrice = big.NewDecimal(b.Low)
		candle.ClosePrice = big.NewDecimal(b.Close)
		candle.Volume = big.NewDecimal(b.Volume)
		series.AddCandle(candle)
	}
	return series
}

package trading

import (
	"fmt"

	"borsatahmin/market"
	"borsatahmin/ml"
)

// Component weights of the universe score. Model opinion dominates; the rest
// breaks ties between similarly rated names.
const (
	weightMomentum   = 0.25
	weightVolatility = 0.10
	weightVolume     = 0.10
	weightTechnical  = 0.15
	weightModel      = 0.40
)

// CandidateScore is one universe member rated for a new position.
type CandidateScore struct {
	Symbol     string         `json:"symbol"`
	Score      float64        `json:"score"`
	Price      float64        `json:"price"`
	Prediction *ml.Prediction `json:"prediction,omitempty"`
	Details    []string       `json:"details,omitempty"`
}

// ScoreCandidate rates a non-held symbol on a 0-100 scale. The prediction
// may come from a model or the technical fallback; nil means no opinion.
func ScoreCandidate(symbol string, bars market.Series, pred *ml.Prediction) *CandidateScore {
	out := &CandidateScore{Symbol: symbol, Prediction: pred}
	if len(bars) < 60 {
		return out
	}
	closes := bars.Closes()
	out.Price = bars.Last().Close

	week := market.PercentChange(closes, 5)
	month := market.PercentChange(closes, 21)
	momentum := clampScore(50 + week*500 + month*250)

	vol := market.AnnualisedVolatility(bars, 20)
	volatility := clampScore(100 - vol*100)

	volRatio := market.VolumeRatio(bars.Volumes(), 20)
	volume := clampScore(volRatio * 50)

	technical := technicalScore(bars)

	model := 50.0
	if pred != nil {
		if pred.Direction == ml.DirectionUp {
			model = pred.Confidence * 100
		} else {
			model = (1 - pred.Confidence) * 100
		}
	}

	score := momentum*weightMomentum +
		volatility*weightVolatility +
		volume*weightVolume +
		technical*weightTechnical +
		model*weightModel

	// A bearish model verdict caps the composite no matter how strong the
	// tape looks.
	if pred != nil && pred.Direction == ml.DirectionDown {
		ceiling := 40.0
		if pred.Confidence > 0.60 {
			ceiling = 30.0
		}
		if score > ceiling {
			score = ceiling
		}
	}
	out.Score = score

	out.Details = append(out.Details,
		fmt.Sprintf("1 haftalık getiri %%%.1f, 1 aylık %%%.1f", week*100, month*100),
		fmt.Sprintf("yıllık volatilite %%%.0f", vol*100),
	)
	if volRatio > 1.2 {
		out.Details = append(out.Details, fmt.Sprintf("hacim ortalamanın %.1f katı", volRatio))
	}
	if pred != nil {
		out.Details = append(out.Details, fmt.Sprintf("model yönü %s, güven %.2f", pred.Direction, pred.Confidence))
	}
	return out
}

// technicalScore folds RSI, MACD and trend agreement into a 0-100 value.
func technicalScore(bars market.Series) float64 {
	closes := bars.Closes()
	score := 50.0

	rsi := market.CalculateRSI(closes, 14)
	switch {
	case rsi > 0 && rsi < 35:
		score += 20
	case rsi > 70:
		score -= 20
	}

	_, _, hist := market.CalculateMACD(closes)
	if hist > 0 {
		score += 15
	} else if hist < 0 {
		score -= 15
	}

	ma20 := market.CalculateMA(closes, 20)
	ma50 := market.CalculateMA(closes, 50)
	if ma20 > ma50 {
		score += 15
	} else if ma50 > 0 {
		score -= 15
	}
	return clampScore(score)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

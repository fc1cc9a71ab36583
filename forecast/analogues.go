package forecast

import (
	"math"

	"borsatahmin/market"
)

// AnalogueStats describes past moves of similar magnitude in the symbol's
// own history, used to ground time-to-target estimates empirically.
type AnalogueStats struct {
	TargetMove float64 `json:"target_move"`
	Count      int     `json:"count"`
	MeanDays   float64 `json:"mean_days"`
	StdDays    float64 `json:"std_days"`
	MinDays    int     `json:"min_days"`
	MaxDays    int     `json:"max_days"`
}

// MineAnalogues scans the last 100 bars for historical moves within 10% of
// the target magnitude. Each start bar contributes at most one hit, the
// first bar within the 50-bar look-ahead that reaches the move.
func MineAnalogues(bars market.Series, targetMove float64) *AnalogueStats {
	stats := &AnalogueStats{TargetMove: targetMove}
	if targetMove <= 0 {
		return stats
	}

	if len(bars) > 100 {
		bars = bars[len(bars)-100:]
	}
	closes := bars.Closes()
	n := len(closes)
	if n < 30 {
		return stats
	}

	var durations []int
	for i := 20; i < n-10; i++ {
		if closes[i] <= 0 {
			continue
		}
		end := i + 50
		if end > n {
			end = n
		}
		for j := i + 1; j < end; j++ {
			move := math.Abs(closes[j]/closes[i] - 1)
			if math.Abs(move-targetMove) < 0.1*targetMove {
				durations = append(durations, j-i)
				break
			}
		}
	}
	if len(durations) == 0 {
		return stats
	}

	stats.Count = len(durations)
	stats.MinDays = durations[0]
	stats.MaxDays = durations[0]
	sum := 0.0
	for _, d := range durations {
		sum += float64(d)
		if d < stats.MinDays {
			stats.MinDays = d
		}
		if d > stats.MaxDays {
			stats.MaxDays = d
		}
	}
	stats.MeanDays = sum / float64(len(durations))

	variance := 0.0
	for _, d := range durations {
		diff := float64(d) - stats.MeanDays
		variance += diff * diff
	}
	stats.StdDays = math.Sqrt(variance / float64(len(durations)))
	return stats
}

// Factor derives the historical time adjustment relative to the model's base
// estimate, scaled by how recent volatility compares with the long-term
// level. No analogues means no adjustment.
func (a *AnalogueStats) Factor(baseDays float64, bars market.Series) float64 {
	factor := 1.0
	if a.Count > 0 && baseDays > 0 {
		factor = a.MeanDays / baseDays
	}

	closes := bars.Closes()
	if len(closes) > 40 {
		recent := returnsStdev(closes[len(closes)-21:])
		longTerm := returnsStdev(closes)
		if longTerm > 0 {
			ratio := recent / longTerm
			if ratio > 1.2 {
				factor *= 0.8
			} else if ratio < 0.8 {
				factor *= 1.3
			}
		}
	}
	return factor
}

func returnsStdev(closes []float64) float64 {
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] > 0 {
			returns = append(returns, closes[i]/closes[i-1]-1)
		}
	}
	return stdev(returns)
}

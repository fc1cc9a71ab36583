package market

import (
	"context"
	"time"
)

// Regime trend states.
const (
	TrendUp      = "UPTREND"
	TrendDown    = "DOWNTREND"
	TrendNeutral = "NEUTRAL"
)

// Tactical hints attached to a regime for the recommender.
const (
	HintBuyTheDip    = "buy-the-dip"
	HintRealiseGains = "realise-gains"
)

// Regime classifies the market index trend over short lookbacks.
type Regime struct {
	Trend        string    `json:"trend"`
	WeeklyReturn float64   `json:"weekly_return"`
	TwoWeek      float64   `json:"two_week_return"`
	FourWeek     float64   `json:"four_week_return"`
	CurrentPrice float64   `json:"current_price"`
	TacticalHint string    `json:"tactical_hint,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// RegimeDetector reads the index at weekly resolution and classifies the
// recent trend.
type RegimeDetector struct {
	fetcher *Fetcher
	now     func() time.Time
}

func NewRegimeDetector(fetcher *Fetcher) *RegimeDetector {
	return &RegimeDetector{fetcher: fetcher, now: time.Now}
}

// Detect returns the current market regime, or nil when the index is
// unavailable. Callers treat a nil regime as "no overlay".
func (d *RegimeDetector) Detect(ctx context.Context) *Regime {
	weekly, err := d.fetcher.FetchIndex(ctx, "3mo", IntervalWeekly)
	if err != nil || len(weekly) < 5 {
		// Weekly feed unavailable; resample daily bars instead.
		daily, derr := d.fetcher.FetchIndex(ctx, "3mo", IntervalDaily)
		if derr != nil || len(daily) == 0 {
			return nil
		}
		weekly = ResampleWeekly(daily)
	}
	if len(weekly) < 5 {
		return nil
	}

	closes := weekly.Closes()
	oneWeek := PercentChange(closes, 1)
	twoWeek := PercentChange(closes, 2)
	fourWeek := PercentChange(closes, 4)

	trend, hint := Classify(oneWeek, twoWeek, fourWeek)
	return &Regime{
		Trend:        trend,
		WeeklyReturn: oneWeek,
		TwoWeek:      twoWeek,
		FourWeek:     fourWeek,
		CurrentPrice: weekly.Last().Close,
		TacticalHint: hint,
		Timestamp:    d.now(),
	}
}

// Classify applies the regime rules to precomputed returns. Split out so the
// thresholds are testable without a fetcher.
func Classify(oneWeek, twoWeek, fourWeek float64) (trend, hint string) {
	switch {
	case twoWeek < -0.03 || oneWeek < -0.02:
		return TrendDown, HintBuyTheDip
	case twoWeek > 0.03 || oneWeek > 0.02:
		return TrendUp, HintRealiseGains
	default:
		return TrendNeutral, ""
	}
}

package pipeline

import (
	"errors"
	"fmt"

	"borsatahmin/market"
)

var (
	ErrNoBars      = errors.New("no bars to analyse")
	ErrBadOrdering = errors.New("bars are not time-ordered")
	ErrBadPrices   = errors.New("bars contain invalid prices")
)

// ValidateBars checks an input series before it enters feature engineering.
// The fetcher already cleans provider output; this guards direct callers and
// test fixtures feeding the pipeline by hand.
func ValidateBars(bars market.Series, minBars int) error {
	if bars.Empty() {
		return ErrNoBars
	}
	if len(bars) < minBars {
		return fmt.Errorf("%w: have %d bars, need %d", ErrNoBars, len(bars), minBars)
	}
	for i, b := range bars {
		if b.Close <= 0 || b.Open <= 0 || b.High <= 0 || b.Low <= 0 {
			return fmt.Errorf("%w: bar %d at %s", ErrBadPrices, i, b.Timestamp.Format("2006-01-02"))
		}
		if b.High < b.Low {
			return fmt.Errorf("%w: bar %d high %.4f below low %.4f", ErrBadPrices, i, b.High, b.Low)
		}
		if i > 0 && !bars[i-1].Timestamp.Before(b.Timestamp) {
			return fmt.Errorf("%w: bar %d", ErrBadOrdering, i)
		}
	}
	return nil
}

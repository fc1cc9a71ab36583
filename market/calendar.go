package market

import (
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar rolls dates onto Borsa Istanbul trading days. Falls back to
// a weekday-only rule when the exchange calendar cannot be resolved.
type TradingCalendar struct {
	cal      *calendar.Calendar
	fallback bool
}

func NewIstanbulCalendar() *TradingCalendar {
	// MIC for Borsa Istanbul (ISO 10383).
	cal := calendar.GetCalendar("xist")
	if cal == nil {
		return &TradingCalendar{fallback: true}
	}
	return &TradingCalendar{cal: cal}
}

// IsTradingDay reports whether the exchange is open on the given date.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	if tc.fallback || tc.cal == nil {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return tc.cal.IsBusinessDay(t)
}

// AddTradingDays advances from start by n trading days.
func (tc *TradingCalendar) AddTradingDays(start time.Time, n int) time.Time {
	t := start
	for added := 0; added < n; {
		t = t.AddDate(0, 0, 1)
		if tc.IsTradingDay(t) {
			added++
		}
	}
	return t
}

// NextTradingDay rolls t forward to the nearest trading day, inclusive.
func (tc *TradingCalendar) NextTradingDay(t time.Time) time.Time {
	for !tc.IsTradingDay(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

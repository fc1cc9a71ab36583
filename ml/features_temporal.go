package ml

import "time"

// buildTemporalFeatures appends calendar features derived from the bar
// timestamps.
func buildTemporalFeatures(frame *Frame, index []time.Time) {
	n := len(index)
	dow := make([]float64, n)
	dom := make([]float64, n)
	month := make([]float64, n)
	quarter := make([]float64, n)
	isMonday := make([]float64, n)
	isFriday := make([]float64, n)
	isMonthEnd := make([]float64, n)

	for i, t := range index {
		dow[i] = float64(t.Weekday())
		dom[i] = float64(t.Day())
		month[i] = float64(t.Month())
		quarter[i] = float64((int(t.Month())-1)/3 + 1)
		isMonday[i] = boolFeature(t.Weekday() == time.Monday)
		isFriday[i] = boolFeature(t.Weekday() == time.Friday)
		isMonthEnd[i] = boolFeature(t.AddDate(0, 0, 3).Month() != t.Month())
	}

	frame.MustAdd("day_of_week", dow)
	frame.MustAdd("day_of_month", dom)
	frame.MustAdd("month", month)
	frame.MustAdd("quarter", quarter)
	frame.MustAdd("is_monday", isMonday)
	frame.MustAdd("is_friday", isFriday)
	frame.MustAdd("is_month_end", isMonthEnd)
}

package market

import "time"

// Bar is one OHLCV record. AdjClose is zero when the provider does not supply
// an adjusted close.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	AdjClose  float64   `json:"adj_close,omitempty"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Series is an ordered bar sequence for one symbol at one interval.
// Timestamps are strictly increasing after cleaning.
type Series []Bar

func (s Series) Empty() bool { return len(s) == 0 }

func (s Series) Last() Bar {
	if len(s) == 0 {
		return Bar{}
	}
	return s[len(s)-1]
}

func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

func (s Series) Opens() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Open
	}
	return out
}

func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.High
	}
	return out
}

func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Low
	}
	return out
}

func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}

func (s Series) Timestamps() []time.Time {
	out := make([]time.Time, len(s))
	for i, b := range s {
		out[i] = b.Timestamp
	}
	return out
}

// TailFrom returns the bars at or after the cutoff.
func (s Series) TailFrom(cutoff time.Time) Series {
	for i, b := range s {
		if !b.Timestamp.Before(cutoff) {
			return s[i:]
		}
	}
	return nil
}

// Intervals accepted by the adapter. Intraday intervals relax the volume
// filter by 8x because per-bar volume shrinks with bar length.
const (
	IntervalDaily  = "1d"
	IntervalHourly = "1h"
	Interval4H     = "4h"
	IntervalWeekly = "1wk"
)

func IsIntraday(interval string) bool {
	return interval == IntervalHourly || interval == Interval4H
}

package market

import (
	"context"
	"sort"
	"time"

	"borsatahmin/logger"
)

// Default cache TTLs. Interactive reads tolerate five-minute staleness; index
// data during batch training is refreshed at most daily because every symbol
// in the batch shares it.
const (
	DefaultTTL    = 5 * time.Minute
	IndexBatchTTL = 24 * time.Hour
)

// Fetcher is the market data adapter: provider fan-out, cleaning, and the
// TTL-guarded disk cache.
type Fetcher struct {
	providers   *ProviderManager
	cache       *DiskCache
	indexSymbol string
	minVolume   float64
	now         func() time.Time
}

func NewFetcher(providers *ProviderManager, cache *DiskCache, indexSymbol string, minVolume float64) *Fetcher {
	return &Fetcher{
		providers:   providers,
		cache:       cache,
		indexSymbol: indexSymbol,
		minVolume:   minVolume,
		now:         time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (f *Fetcher) WithClock(now func() time.Time) *Fetcher {
	f.now = now
	return f
}

// IndexSymbol returns the distinguished market-index symbol.
func (f *Fetcher) IndexSymbol() string { return f.indexSymbol }

// Fetch returns cleaned bars for a symbol, serving from cache when fresh.
// Missing upstream data yields an empty series, not an error.
func (f *Fetcher) Fetch(ctx context.Context, symbol, period, interval string) (Series, error) {
	return f.fetch(ctx, symbol, period, interval, f.cache.FileName(symbol, interval), DefaultTTL)
}

// FetchIndex returns the market index series cached under the shared index
// file so batch runs hit upstream once.
func (f *Fetcher) FetchIndex(ctx context.Context, period, interval string) (Series, error) {
	return f.fetch(ctx, f.indexSymbol, period, interval, f.cache.IndexFileName(f.indexSymbol), IndexBatchTTL)
}

// Update refreshes roughly the last 30 days for a symbol and merges them into
// the cached history.
func (f *Fetcher) Update(ctx context.Context, symbol, interval string) (Series, error) {
	path := f.cache.FileName(symbol, interval)

	recent, err := f.providers.FetchBars(ctx, symbol, "1mo", interval)
	if err != nil {
		logger.L().Warnw("incremental update failed", "symbol", symbol, "error", err)
		if cached, ok := f.cache.Load(path, 365*24*time.Hour); ok {
			return cached, nil
		}
		return nil, nil
	}
	recent = f.clean(recent, interval)

	existing, _ := f.cache.Load(path, 365*24*time.Hour)
	merged := mergeSeries(existing, recent)
	if err := f.cache.Store(path, merged); err != nil {
		logger.L().Warnw("cache store failed", "symbol", symbol, "error", err)
	}
	return merged, nil
}

func (f *Fetcher) fetch(ctx context.Context, symbol, period, interval, path string, ttl time.Duration) (Series, error) {
	if bars, ok := f.cache.Load(path, ttl); ok {
		return bars, nil
	}

	bars, err := f.providers.FetchBars(ctx, symbol, period, interval)
	if err != nil {
		logger.L().Warnw("upstream fetch failed", "symbol", symbol, "error", err)
		// Serve a stale cache over nothing; TTL filtered it above, so this
		// path only fires when upstream is down.
		if stale, ok := f.cache.Load(path, 365*24*time.Hour); ok {
			return stale, nil
		}
		return nil, nil
	}

	bars = f.clean(bars, interval)
	if interval == Interval4H {
		bars = resample(bars, 4)
	}
	if len(bars) == 0 {
		return nil, nil
	}

	if err := f.cache.Store(path, bars); err != nil {
		logger.L().Warnw("cache store failed", "symbol", symbol, "error", err)
	}
	return bars, nil
}

// clean drops null bars, enforces the volume floor, and sorts by timestamp.
// The volume threshold scales down 8x for intraday bars.
func (f *Fetcher) clean(bars Series, interval string) Series {
	threshold := f.minVolume
	if IsIntraday(interval) {
		threshold /= 8
	}

	out := make(Series, 0, len(bars))
	for _, b := range bars {
		if b.Close <= 0 || b.Open <= 0 || b.High <= 0 || b.Low <= 0 {
			continue
		}
		if b.Volume < threshold {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	// Enforce strictly increasing timestamps; keep the later record on dupes.
	dedup := out[:0]
	for _, b := range out {
		if len(dedup) > 0 && !b.Timestamp.After(dedup[len(dedup)-1].Timestamp) {
			dedup[len(dedup)-1] = b
			continue
		}
		dedup = append(dedup, b)
	}
	return dedup
}

// mergeSeries overlays recent bars onto history, recent winning on overlap.
func mergeSeries(history, recent Series) Series {
	if len(history) == 0 {
		return recent
	}
	if len(recent) == 0 {
		return history
	}
	cutoff := recent[0].Timestamp
	merged := make(Series, 0, len(history)+len(recent))
	for _, b := range history {
		if b.Timestamp.Before(cutoff) {
			merged = append(merged, b)
		}
	}
	return append(merged, recent...)
}

// resample folds n consecutive bars into one.
func resample(bars Series, n int) Series {
	if n <= 1 || len(bars) == 0 {
		return bars
	}
	out := make(Series, 0, len(bars)/n+1)
	for i := 0; i < len(bars); i += n {
		end := i + n
		if end > len(bars) {
			end = len(bars)
		}
		chunk := bars[i:end]
		merged := Bar{
			Symbol:    chunk[0].Symbol,
			Open:      chunk[0].Open,
			Close:     chunk[len(chunk)-1].Close,
			AdjClose:  chunk[len(chunk)-1].AdjClose,
			High:      chunk[0].High,
			Low:       chunk[0].Low,
			Timestamp: chunk[0].Timestamp,
		}
		for _, b := range chunk {
			if b.High > merged.High {
				merged.High = b.High
			}
			if b.Low < merged.Low {
				merged.Low = b.Low
			}
			merged.Volume += b.Volume
		}
		out = append(out, merged)
	}
	return out
}

// ResampleWeekly folds daily bars into ISO-week bars, used by the regime
// detector when a weekly feed is unavailable.
func ResampleWeekly(daily Series) Series {
	if len(daily) == 0 {
		return nil
	}
	var out Series
	var current Bar
	var haveWeek bool
	var curYear, curWeek int

	for _, b := range daily {
		y, w := b.Timestamp.ISOWeek()
		if !haveWeek || y != curYear || w != curWeek {
			if haveWeek {
				out = append(out, current)
			}
			current = b
			curYear, curWeek = y, w
			haveWeek = true
			continue
		}
		if b.High > current.High {
			current.High = b.High
		}
		if b.Low < current.Low {
			current.Low = b.Low
		}
		current.Close = b.Close
		current.AdjClose = b.AdjClose
		current.Volume += b.Volume
	}
	if haveWeek {
		out = append(out, current)
	}
	return out
}

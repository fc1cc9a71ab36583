package market

import (
	"path/filepath"
	"testing"
	"time"
)

func seriesFixture(symbol string, n int) Series {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	bars := make(Series, 0, n)
	for i := 0; i < n; i++ {
		p := 100 + float64(i)
		bars = append(bars, Bar{
			Symbol:    symbol,
			Open:      p - 0.5,
			High:      p + 1,
			Low:       p - 1,
			Close:     p,
			AdjClose:  p * 0.98,
			Volume:    1_000_000 + float64(i),
			Timestamp: start.AddDate(0, 0, i),
		})
	}
	return bars
}

func TestCacheFileNames(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if got := filepath.Base(cache.FileName("THYAO.IS", IntervalDaily)); got != "THYAO_cache.csv" {
		t.Errorf("FileName daily = %s", got)
	}
	if got := filepath.Base(cache.FileName("THYAO.IS", IntervalHourly)); got != "THYAO_1h_cache.csv" {
		t.Errorf("FileName hourly = %s", got)
	}
	if got := filepath.Base(cache.IndexFileName("XU100.IS")); got != "XU100_index.csv" {
		t.Errorf("IndexFileName = %s", got)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	path := cache.FileName("GARAN.IS", IntervalDaily)
	bars := seriesFixture("GARAN", 10)

	if err := cache.Store(path, bars); err != nil {
		t.Fatal(err)
	}

	loaded, ok := cache.Load(path, DefaultTTL)
	if !ok {
		t.Fatal("fresh cache reported a miss")
	}
	if len(loaded) != len(bars) {
		t.Fatalf("loaded %d bars, want %d", len(loaded), len(bars))
	}
	for i := range bars {
		if loaded[i].Close != bars[i].Close || loaded[i].Volume != bars[i].Volume {
			t.Errorf("bar %d mismatch: %+v vs %+v", i, loaded[i], bars[i])
		}
		if !loaded[i].Timestamp.Equal(bars[i].Timestamp) {
			t.Errorf("bar %d timestamp %v, want %v", i, loaded[i].Timestamp, bars[i].Timestamp)
		}
	}
}

func TestCacheExpiry(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	path := cache.FileName("ASELS", IntervalDaily)
	if err := cache.Store(path, seriesFixture("ASELS", 5)); err != nil {
		t.Fatal(err)
	}

	if _, ok := cache.Load(path, -time.Second); ok {
		t.Error("expired cache served a hit")
	}
	if _, ok := cache.Load(filepath.Join(t.TempDir(), "missing.csv"), DefaultTTL); ok {
		t.Error("missing file served a hit")
	}
}

func TestCacheStoreOverwrites(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	path := cache.FileName("EREGL", IntervalDaily)

	if err := cache.Store(path, seriesFixture("EREGL", 5)); err != nil {
		t.Fatal(err)
	}
	if err := cache.Store(path, seriesFixture("EREGL", 8)); err != nil {
		t.Fatal(err)
	}

	loaded, ok := cache.Load(path, DefaultTTL)
	if !ok || len(loaded) != 8 {
		t.Fatalf("after overwrite: ok=%v len=%d, want 8 bars", ok, len(loaded))
	}
}

package market

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// csvHeader mirrors the canonical column set of the cache files. The index
// column is the timestamp.
var csvHeader = []string{"timestamp", "open", "high", "low", "close", "adj_close", "volume"}

// DiskCache persists bar series as CSV files with TTL-based expiry. A small
// LRU in front avoids re-parsing files that were read moments ago.
type DiskCache struct {
	dir string
	mem *lru.Cache[string, cachedSeries]
}

type cachedSeries struct {
	bars    Series
	loaded  time.Time
	modTime time.Time
}

func NewDiskCache(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	mem, err := lru.New[string, cachedSeries](64)
	if err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir, mem: mem}, nil
}

// FileName maps a symbol to its cache file. The exchange suffix is stripped
// so THYAO.IS and the bare ticker share one file.
func (c *DiskCache) FileName(symbol, interval string) string {
	name := strings.TrimSuffix(symbol, ".IS")
	if interval != "" && interval != IntervalDaily {
		name = name + "_" + interval
	}
	return filepath.Join(c.dir, name+"_cache.csv")
}

// IndexFileName is the distinguished cache file shared by every symbol in a
// batch run.
func (c *DiskCache) IndexFileName(symbol string) string {
	name := strings.TrimSuffix(symbol, ".IS")
	return filepath.Join(c.dir, name+"_index.csv")
}

// Load returns the cached series when the file is younger than ttl.
// A miss (no file, expired, unreadable) returns ok=false.
func (c *DiskCache) Load(path string, ttl time.Duration) (Series, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if time.Since(info.ModTime()) > ttl {
		return nil, false
	}

	if entry, ok := c.mem.Get(path); ok && entry.modTime.Equal(info.ModTime()) {
		return entry.bars, true
	}

	bars, err := readCSV(path)
	if err != nil || len(bars) == 0 {
		return nil, false
	}
	c.mem.Add(path, cachedSeries{bars: bars, loaded: time.Now(), modTime: info.ModTime()})
	return bars, true
}

// Store writes the series via a temp file and atomic rename so concurrent
// readers never observe a half-written cache.
func (c *DiskCache) Store(path string, bars Series) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(csvHeader); err != nil {
		tmp.Close()
		return err
	}
	for _, b := range bars {
		record := []string{
			b.Timestamp.UTC().Format(time.RFC3339),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.AdjClose),
			formatFloat(b.Volume),
		}
		if err := w.Write(record); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	c.mem.Remove(path)
	return nil
}

func readCSV(path string) (Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, nil
	}

	// Column names are normalised to lowercase on write; tolerate provider
	// exports with "Adj Close" style headers.
	header := records[0]
	col := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		key = strings.ReplaceAll(key, " ", "_")
		col[key] = i
	}

	symbol := strings.TrimSuffix(filepath.Base(path), "_cache.csv")
	bars := make(Series, 0, len(records)-1)
	for _, rec := range records[1:] {
		ts, err := time.Parse(time.RFC3339, rec[col["timestamp"]])
		if err != nil {
			continue
		}
		bar := Bar{
			Symbol:    symbol,
			Open:      parseFloat(rec, col, "open"),
			High:      parseFloat(rec, col, "high"),
			Low:       parseFloat(rec, col, "low"),
			Close:     parseFloat(rec, col, "close"),
			AdjClose:  parseFloat(rec, col, "adj_close"),
			Volume:    parseFloat(rec, col, "volume"),
			Timestamp: ts,
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseFloat(rec []string, col map[string]int, name string) float64 {
	idx, ok := col[name]
	if !ok || idx >= len(rec) {
		return 0
	}
	v, err := strconv.ParseFloat(rec[idx], 64)
	if err != nil {
		return 0
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

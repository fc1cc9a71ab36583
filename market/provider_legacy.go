package market

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// LegacyBISTProvider reads an older Turkish end-of-day feed that serves
// semicolon-delimited rows encoded as ISO-8859-9. Used as a fallback when the
// chart API is unreachable; daily bars only.
type LegacyBISTProvider struct {
	BaseURL string
	Client  *http.Client
}

func NewLegacyBISTProvider(baseURL string) *LegacyBISTProvider {
	return &LegacyBISTProvider{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *LegacyBISTProvider) Name() string { return "legacy-bist" }

func (p *LegacyBISTProvider) FetchBars(ctx context.Context, symbol, period, interval string) (Series, error) {
	if interval != IntervalDaily && interval != IntervalWeekly {
		return nil, fmt.Errorf("legacy feed serves daily bars only, got %s", interval)
	}

	// The feed keys tickers without the exchange suffix.
	ticker := strings.TrimSuffix(symbol, ".IS")
	reqURL := fmt.Sprintf("%s/eod?sembol=%s&aralik=%s", p.BaseURL, url.QueryEscape(ticker), url.QueryEscape(period))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("legacy feed returned %d for %s", resp.StatusCode, ticker)
	}

	// Body is ISO-8859-9; header rows may contain Turkish text.
	scanner := bufio.NewScanner(transform.NewReader(resp.Body, charmap.ISO8859_9.NewDecoder()))

	var bars Series
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ";")
		if len(fields) < 6 {
			continue
		}

		ts, err := time.ParseInLocation("2006-01-02", fields[0], time.Local)
		if err != nil {
			continue
		}
		open, _ := strconv.ParseFloat(fields[1], 64)
		high, _ := strconv.ParseFloat(fields[2], 64)
		low, _ := strconv.ParseFloat(fields[3], 64)
		closePrice, _ := strconv.ParseFloat(fields[4], 64)
		volume, _ := strconv.ParseFloat(fields[5], 64)
		if closePrice <= 0 {
			continue
		}

		bars = append(bars, Bar{
			Symbol:    symbol,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			Timestamp: ts,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return bars, nil
}

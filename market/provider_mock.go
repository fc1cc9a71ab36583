package market

import (
	"context"
	"math"
	"time"
)

// MockProvider generates deterministic bars for tests and offline runs.
type MockProvider struct {
	StartPrice float64
	Bars       int
	// Fixed, when set, overrides the synthetic walk.
	Fixed map[string]Series
}

func NewMockProvider() *MockProvider {
	return &MockProvider{StartPrice: 100, Bars: 300}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) FetchBars(ctx context.Context, symbol, period, interval string) (Series, error) {
	if p.Fixed != nil {
		if bars, ok := p.Fixed[symbol]; ok {
			return bars, nil
		}
		return nil, ErrNoData
	}

	n := p.Bars
	if n <= 0 {
		n = 300
	}
	price := p.StartPrice
	if price <= 0 {
		price = 100
	}

	// Deterministic pseudo-walk seeded by the symbol so different symbols
	// do not produce identical series.
	seed := 0.0
	for _, r := range symbol {
		seed += float64(r)
	}

	start := time.Now().AddDate(0, 0, -n)
	bars := make(Series, 0, n)
	for i := 0; i < n; i++ {
		drift := math.Sin(seed+float64(i)/9.0) * 0.012
		price *= 1 + drift
		bars = append(bars, Bar{
			Symbol:    symbol,
			Open:      price * 0.995,
			High:      price * 1.012,
			Low:       price * 0.988,
			Close:     price,
			Volume:    500000 + 100000*math.Abs(math.Sin(seed+float64(i)/3.0)),
			Timestamp: start.AddDate(0, 0, i),
		})
	}
	return bars, nil
}

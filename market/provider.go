package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"borsatahmin/logger"
)

// ErrNoData signals that the upstream returned no usable bars for a symbol.
// Callers skip the symbol, they do not abort the batch.
var ErrNoData = errors.New("no market data available")

// Provider fetches raw bars for a symbol. period is a lookback like "2y" or
// "3mo", interval one of the Interval constants.
type Provider interface {
	Name() string
	FetchBars(ctx context.Context, symbol, period, interval string) (Series, error)
}

// ProviderManager tries providers in order until one returns data.
type ProviderManager struct {
	providers []Provider
	timeout   time.Duration
}

func NewProviderManager(timeout time.Duration, providers ...Provider) *ProviderManager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ProviderManager{providers: providers, timeout: timeout}
}

func (m *ProviderManager) FetchBars(ctx context.Context, symbol, period, interval string) (Series, error) {
	var lastErr error
	for _, p := range m.providers {
		reqCtx, cancel := context.WithTimeout(ctx, m.timeout)
		bars, err := p.FetchBars(reqCtx, symbol, period, interval)
		cancel()
		if err != nil {
			logger.L().Warnw("provider fetch failed", "provider", p.Name(), "symbol", symbol, "error", err)
			lastErr = err
			continue
		}
		if len(bars) == 0 {
			lastErr = ErrNoData
			continue
		}
		return bars, nil
	}
	if lastErr == nil {
		lastErr = ErrNoData
	}
	return nil, fmt.Errorf("all providers failed for %s: %w", symbol, lastErr)
}

package fxrate

import (
	"context"
	"fmt"
	"sync"
	"time"

	apphttp "MarketRelay/pkg/http"
	applogger "MarketRelay/pkg/logger"
)

const (
	DefaultURL  = "https://api.exchangerate-api.com/v4/latest/USD"
	DefaultRate = 33.0
)

type ratesResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// Provider keeps the latest USD to TRY rate, refreshed periodically.
// Until the first successful refresh it serves the fallback rate.
type Provider struct {
	http     *apphttp.Client
	url      string
	interval time.Duration
	logger   *applogger.Logger

	mu   sync.RWMutex
	rate float64
}

func New(url string, fallback float64, interval time.Duration, timeout time.Duration, l *applogger.Logger) *Provider {
	if url == "" {
		url = DefaultURL
	}
	if fallback <= 0 {
		fallback = DefaultRate
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Provider{
		http:     apphttp.NewClient(apphttp.WithTimeout(timeout)),
		url:      url,
		interval: interval,
		logger:   l,
		rate:     fallback,
	}
}

func (p *Provider) USDTRY() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rate
}

// Refresh fetches the rate once. On failure the previous rate is kept.
func (p *Provider) Refresh(ctx context.Context) error {
	var resp ratesResponse
	err := p.http.SendAndParse(ctx, &apphttp.RequestOptions{Method: apphttp.MethodGet, URL: p.url}, &resp)
	if err != nil {
		return fmt.Errorf("fx rate: %w", err)
	}
	rate, ok := resp.Rates["TRY"]
	if !ok || rate <= 0 {
		return fmt.Errorf("fx rate: TRY missing from response")
	}

	p.mu.Lock()
	p.rate = rate
	p.mu.Unlock()
	return nil
}

// Run refreshes immediately and then on every interval until ctx ends.
func (p *Provider) Run(ctx context.Context) {
	p.refreshAndLog(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refreshAndLog(ctx)
		}
	}
}

func (p *Provider) refreshAndLog(ctx context.Context) {
	if err := p.Refresh(ctx); err != nil {
		p.logger.Warn("USD/TRY refresh failed, keeping previous rate",
			applogger.Error(err),
			applogger.Float64("rate", p.USDTRY()))
		return
	}
	p.logger.Info("USD/TRY rate updated", applogger.Float64("rate", p.USDTRY()))
}

package repository

import (
	"context"
	"time"

	"MarketRelay/internal/domain/models"
)

// QuoteSource fetches one normalized snapshot from a provider.
type QuoteSource interface {
	Name() string
	Fetch(ctx context.Context) ([]models.Quote, error)
}

// ConfigReader is the read side of the config store used by collectors.
type ConfigReader interface {
	Interval(market string) time.Duration
	Paused(market string) bool
	Overrides() map[string]models.Override
}

// ConfigStore is the full admin-facing config store.
type ConfigStore interface {
	ConfigReader
	SetInterval(ctx context.Context, market string, ms int64) int64
	SetPaused(ctx context.Context, market string, paused bool) bool
	SetOverride(ctx context.Context, symbol string, o models.Override) bool
	RemoveOverride(ctx context.Context, symbol string)
	Snapshot() models.ConfigState
}

// EventBus is the publish/subscribe hub with last-value caching.
type EventBus interface {
	Publish(ev models.MarketEvent)
	Subscribe(fn func(models.MarketEvent)) (unsubscribe func())
	Last() (models.MarketEvent, bool)
	LastByType(eventType string) (models.MarketEvent, bool)
	Emit(signal string)
	OnSignal(signal string, fn func()) (unsubscribe func())
}

// ReferenceData serves the static exchange table and country whitelist.
type ReferenceData interface {
	Exchanges() []models.Exchange
	Companies(countryCode string) (models.CountryCompanies, bool)
}

// RateProvider returns the current USD to TRY conversion rate.
type RateProvider interface {
	USDTRY() float64
}

// Metrics receives operational measurements.
type Metrics interface {
	RecordFetch(market string, ok bool, seconds float64)
	RecordBackoff(market string, seconds float64)
	RecordEvent(eventType string, quotes int)
	StreamClientDelta(transport string, delta int)
	RecordPersistError(key string)
	RecordOrder(result string)
	RecordOverrides(n int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordFetch(string, bool, float64) {}
func (NopMetrics) RecordBackoff(string, float64)     {}
func (NopMetrics) RecordEvent(string, int)           {}
func (NopMetrics) StreamClientDelta(string, int)     {}
func (NopMetrics) RecordPersistError(string)         {}
func (NopMetrics) RecordOrder(string)                {}
func (NopMetrics) RecordOverrides(int)               {}

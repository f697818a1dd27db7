package usecase

import (
	"context"
	"errors"
	"testing"

	"MarketRelay/internal/domain/models"
	applogger "MarketRelay/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(name string, quotes []models.Quote, err error) *fakeSource {
	return &fakeSource{name: name, fetch: func(context.Context, int) ([]models.Quote, error) {
		return quotes, err
	}}
}

func TestFallbackPrefersPrimary(t *testing.T) {
	primary := named("getmidas", []models.Quote{quote("THYAO", 300)}, nil)
	secondary := named("tradingview", []models.Quote{quote("GARAN", 100)}, nil)
	f := NewFallbackSource(primary, secondary, applogger.Nop())

	quotes, served, err := f.FetchServed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "THYAO", quotes[0].Symbol)
	assert.Zero(t, secondary.calls.Load())
	assert.Equal(t, "getmidas", served)
	assert.Equal(t, "getmidas", f.Name())
}

func TestFallbackOnErrorOrEmpty(t *testing.T) {
	for name, primary := range map[string]*fakeSource{
		"error": named("getmidas", nil, errors.New("HTTP 500")),
		"empty": named("getmidas", nil, nil),
	} {
		t.Run(name, func(t *testing.T) {
			secondary := named("tradingview", []models.Quote{quote("GARAN", 100)}, nil)
			f := NewFallbackSource(primary, secondary, applogger.Nop())

			quotes, served, err := f.FetchServed(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "GARAN", quotes[0].Symbol)
			assert.Equal(t, "tradingview", served)
		})
	}
}

func TestFallbackBothFail(t *testing.T) {
	f := NewFallbackSource(
		named("getmidas", nil, errors.New("page changed")),
		named("tradingview", nil, errors.New("HTTP 429")),
		applogger.Nop())

	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page changed")
	assert.Contains(t, err.Error(), "HTTP 429")
}

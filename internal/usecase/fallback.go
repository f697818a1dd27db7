package usecase

import (
	"context"
	"errors"
	"fmt"

	"MarketRelay/internal/domain/models"
	drepo "MarketRelay/internal/domain/repository"
	applogger "MarketRelay/pkg/logger"
)

// ErrEmptyResult is returned when a source answered with no usable quotes.
var ErrEmptyResult = errors.New("no usable quotes")

// FallbackSource tries primary first and switches to secondary when the
// primary fails or returns nothing. The event source reflects whichever
// provider answered that fetch.
type FallbackSource struct {
	primary   drepo.QuoteSource
	secondary drepo.QuoteSource
	logger    *applogger.Logger
}

func NewFallbackSource(primary, secondary drepo.QuoteSource, l *applogger.Logger) *FallbackSource {
	return &FallbackSource{primary: primary, secondary: secondary, logger: l}
}

func (f *FallbackSource) Name() string { return f.primary.Name() }

func (f *FallbackSource) Fetch(ctx context.Context) ([]models.Quote, error) {
	quotes, _, err := f.FetchServed(ctx)
	return quotes, err
}

// FetchServed is Fetch plus the name of the provider that answered.
func (f *FallbackSource) FetchServed(ctx context.Context) ([]models.Quote, string, error) {
	quotes, err := f.primary.Fetch(ctx)
	if err == nil && len(quotes) > 0 {
		return quotes, f.primary.Name(), nil
	}
	if err == nil {
		err = ErrEmptyResult
	}
	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}

	f.logger.Warn("primary source failed, using fallback",
		applogger.String("primary", f.primary.Name()),
		applogger.String("fallback", f.secondary.Name()),
		applogger.Error(err))

	quotes, ferr := f.secondary.Fetch(ctx)
	if ferr != nil {
		return nil, "", fmt.Errorf("%s: %v; %s: %w", f.primary.Name(), err, f.secondary.Name(), ferr)
	}
	return quotes, f.secondary.Name(), nil
}

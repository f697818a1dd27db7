package coingecko

import (
	"context"
	"fmt"
	"time"

	"MarketRelay/internal/domain/models"
	"MarketRelay/internal/service/normalize"
	apphttp "MarketRelay/pkg/http"
)

const DefaultURL = "https://api.coingecko.com/api/v3/coins/markets"

var fields = normalize.FieldMap{
	Symbol:    []string{"symbol"},
	ID:        []string{"id"},
	Name:      []string{"name"},
	Price:     []string{"current_price"},
	Change:    []string{"price_change_24h"},
	ChangePct: []string{"price_change_percentage_24h"},
	Volume:    []string{"total_volume"},
	MarketCap: []string{"market_cap"},
}

var template = normalize.Template{
	AssetType: models.AssetCrypto,
	Category:  "CRYPTO",
	Currency:  "USD",
	KeepRaw:   true,
}

// Source fetches the top 100 coins by market cap.
type Source struct {
	http *apphttp.Client
	url  string
}

func NewSource(url string, timeout time.Duration) *Source {
	if url == "" {
		url = DefaultURL
	}
	return &Source{
		url:  url,
		http: apphttp.NewClient(apphttp.WithTimeout(timeout), apphttp.WithHeader("Accept", "application/json")),
	}
}

func (s *Source) Name() string { return "coingecko" }

func (s *Source) Fetch(ctx context.Context) ([]models.Quote, error) {
	var rows []map[string]interface{}
	err := s.http.SendAndParse(ctx, &apphttp.RequestOptions{
		Method: apphttp.MethodGet,
		URL:    s.url,
		QueryParams: map[string][]string{
			"vs_currency":             {"usd"},
			"order":                   {"market_cap_desc"},
			"per_page":                {"100"},
			"page":                    {"1"},
			"sparkline":               {"false"},
			"price_change_percentage": {"1h,24h,7d"},
		},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("coingecko markets: %w", err)
	}
	return normalize.Quotes(rows, fields, template, 0), nil
}

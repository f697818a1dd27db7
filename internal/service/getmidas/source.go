package getmidas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"MarketRelay/internal/domain/models"
	"MarketRelay/internal/service/normalize"
	apphttp "MarketRelay/pkg/http"
)

const (
	DefaultURL = "https://www.getmidas.com/canli-borsa/xu100-bist-100-hisseleri"

	// minQuoteRows is the smallest array of objects taken for the quote table.
	minQuoteRows = 20
	maxRows      = 100
)

var (
	ErrNoPageData = errors.New("getmidas: __NEXT_DATA__ not found")
	ErrNoQuotes   = errors.New("getmidas: no quote table in page data")

	nextData = regexp.MustCompile(`<script id="__NEXT_DATA__" type="application/json">([^<]+)</script>`)
)

var fields = normalize.FieldMap{
	Symbol:    []string{"symbol", "ticker", "code", "isin", "name"},
	Name:      []string{"name", "companyName", "description"},
	Price:     []string{"lastPrice", "price", "close", "currentPrice", "last", "value"},
	Change:    []string{"change", "changeAmount"},
	ChangePct: []string{"changePercentage", "changePercent", "change_pct", "percentage"},
	Volume:    []string{"volume", "volumeTraded"},
	MarketCap: []string{"marketCap"},
}

var template = normalize.Template{
	AssetType: models.AssetStock,
	Category:  "BIST",
	Currency:  "TRY",
}

// Source scrapes the BIST 100 table embedded in the GetMidas page.
type Source struct {
	http *apphttp.Client
	url  string
}

func NewSource(url string, timeout time.Duration) *Source {
	if url == "" {
		url = DefaultURL
	}
	return &Source{
		url: url,
		http: apphttp.NewClient(
			apphttp.WithTimeout(timeout),
			apphttp.WithHeader("User-Agent", "Mozilla/5.0"),
			apphttp.WithHeader("Accept", "text/html"),
		),
	}
}

func (s *Source) Name() string { return "getmidas" }

func (s *Source) Fetch(ctx context.Context) ([]models.Quote, error) {
	var page []byte
	err := s.http.SendAndParse(ctx, &apphttp.RequestOptions{Method: apphttp.MethodGet, URL: s.url}, &page)
	if err != nil {
		return nil, fmt.Errorf("getmidas page: %w", err)
	}
	return ParsePage(page)
}

// ParsePage extracts quotes from a page. An empty result is an error so
// callers can fall back to another provider.
func ParsePage(page []byte) ([]models.Quote, error) {
	m := nextData.FindSubmatch(page)
	if m == nil {
		return nil, ErrNoPageData
	}
	rows := findRows(json.RawMessage(m[1]))
	if rows == nil {
		return nil, ErrNoQuotes
	}
	quotes := normalize.Quotes(rows, fields, template, maxRows)
	if len(quotes) == 0 {
		return nil, ErrNoQuotes
	}
	return quotes, nil
}

// findRows walks the document depth-first in source order and returns the
// first array of at least minQuoteRows objects.
func findRows(raw json.RawMessage) []map[string]interface{} {
	switch leading(raw) {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil
		}
		if len(items) >= minQuoteRows && allObjects(items) {
			rows := make([]map[string]interface{}, 0, len(items))
			for _, it := range items {
				var row map[string]interface{}
				dec := json.NewDecoder(bytes.NewReader(it))
				dec.UseNumber()
				if err := dec.Decode(&row); err != nil {
					return nil
				}
				rows = append(rows, row)
			}
			return rows
		}
		for _, it := range items {
			if rows := findRows(it); rows != nil {
				return rows
			}
		}
	case '{':
		for _, v := range objectValues(raw) {
			if rows := findRows(v); rows != nil {
				return rows
			}
		}
	}
	return nil
}

func objectValues(raw json.RawMessage) []json.RawMessage {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil
	}
	var out []json.RawMessage
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return out
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return out
		}
		out = append(out, v)
	}
	return out
}

func allObjects(items []json.RawMessage) bool {
	for _, it := range items {
		if leading(it) != '{' {
			return false
		}
	}
	return true
}

func leading(raw []byte) byte {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

package tradingview

import (
	"context"
	"strings"

	"MarketRelay/internal/domain/models"
	"MarketRelay/internal/service/normalize"
)

// Source serves one preset as a repository.QuoteSource.
type Source struct {
	client *Client
	preset Preset
}

func NewSource(client *Client, preset Preset) *Source {
	return &Source{client: client, preset: preset}
}

func (s *Source) Name() string { return s.preset.Name }

// Fetch scans, moves popular symbols to the front and keeps the first MaxRows
// usable quotes.
func (s *Source) Fetch(ctx context.Context) ([]models.Quote, error) {
	rows, err := s.client.Scan(ctx, s.preset.Request)
	if err != nil {
		return nil, err
	}
	if len(s.preset.Popular) > 0 {
		rows = popularFirst(rows, s.preset.Popular)
	}
	return normalize.Quotes(rows, FieldMap, s.preset.Template, MaxRows), nil
}

func popularFirst(rows []map[string]interface{}, popular []string) []map[string]interface{} {
	rank := make(map[string]int, len(popular))
	for i, p := range popular {
		rank[strings.ToUpper(p)] = i
	}

	head := make([]map[string]interface{}, len(popular))
	tail := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		if i, ok := popularRank(rank, normalize.Text(row["symbol"])); ok {
			if head[i] == nil {
				head[i] = row
			}
			continue
		}
		tail = append(tail, row)
	}

	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range head {
		if row != nil {
			out = append(out, row)
		}
	}
	return append(out, tail...)
}

// popularRank matches the full ticker first, then the part after the
// exchange prefix ("FX_IDC:EURUSD" ranks as "EURUSD").
func popularRank(rank map[string]int, symbol string) (int, bool) {
	sym := strings.ToUpper(symbol)
	if i, ok := rank[sym]; ok {
		return i, true
	}
	if _, bare, found := strings.Cut(sym, ":"); found {
		i, ok := rank[bare]
		return i, ok
	}
	return 0, false
}

// Package normalize maps loosely typed provider rows onto models.Quote.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"MarketRelay/internal/domain/models"
)

// FieldMap lists, per quote field, the provider keys tried in order.
// The first key holding a usable value wins.
type FieldMap struct {
	Symbol    []string
	ID        []string
	Name      []string
	Price     []string
	Change    []string
	ChangePct []string
	Volume    []string
	MarketCap []string
	Currency  []string
	Exchange  []string
}

// Template holds constant attributes stamped onto every quote of a batch.
type Template struct {
	AssetType string
	Category  string
	Currency  string
	Exchange  string
	Country   string
	KeepRaw   bool
}

// Quote converts one row. ok is false when the row has no symbol or no
// finite positive price.
func (m FieldMap) Quote(row map[string]interface{}, t Template) (models.Quote, bool) {
	symbol := firstText(row, m.Symbol)
	if symbol == "" {
		return models.Quote{}, false
	}
	price, ok := firstPrice(row, m.Price)
	if !ok {
		return models.Quote{}, false
	}

	q := models.Quote{
		Symbol:    symbol,
		ID:        firstText(row, m.ID),
		Name:      firstText(row, m.Name),
		Price:     models.Float(price),
		Change:    firstNumber(row, m.Change),
		ChangePct: firstNumber(row, m.ChangePct),
		Volume:    firstNumber(row, m.Volume),
		MarketCap: firstNumber(row, m.MarketCap),
		Currency:  firstText(row, m.Currency),
		Exchange:  firstText(row, m.Exchange),
		AssetType: t.AssetType,
		Category:  t.Category,
		Country:   t.Country,
	}
	if q.Name == "" {
		q.Name = symbol
	}
	if q.Currency == "" {
		q.Currency = t.Currency
	}
	if t.Exchange != "" {
		q.Exchange = t.Exchange
	}
	if t.KeepRaw {
		if raw, err := json.Marshal(row); err == nil {
			q.Raw = raw
		}
	}
	return q, true
}

// Quotes converts rows, dropping unusable ones and duplicate symbols (first
// occurrence wins). limit <= 0 keeps everything.
func Quotes(rows []map[string]interface{}, m FieldMap, t Template, limit int) []models.Quote {
	out := make([]models.Quote, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		q, ok := m.Quote(row, t)
		if !ok {
			continue
		}
		key := strings.ToUpper(q.Symbol)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Dedupe drops later quotes whose symbol was already seen.
func Dedupe(quotes []models.Quote) []models.Quote {
	out := quotes[:0:0]
	seen := make(map[string]struct{}, len(quotes))
	for _, q := range quotes {
		key := strings.ToUpper(q.Symbol)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

// Number coerces numeric JSON values and numeric strings.
func Number(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Text renders scalar values as strings; nil and composite values give "".
func Text(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64, int, int64, bool:
		return fmt.Sprint(s)
	default:
		return ""
	}
}

// Columns zips a scanner row's positional values with their column names.
// Values beyond the known columns are keyed col_<index>.
func Columns(columns []string, values []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for i, v := range values {
		key := fmt.Sprintf("col_%d", i)
		if i < len(columns) {
			key = columns[i]
		}
		out[key] = v
	}
	return out
}

func firstText(row map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if s := Text(row[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(row map[string]interface{}, keys []string) *float64 {
	for _, k := range keys {
		if f, ok := Number(row[k]); ok {
			return &f
		}
	}
	return nil
}

func firstPrice(row map[string]interface{}, keys []string) (float64, bool) {
	for _, k := range keys {
		if f, ok := Number(row[k]); ok && models.ValidPrice(f) {
			return f, true
		}
	}
	return 0, false
}

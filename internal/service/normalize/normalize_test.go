package normalize

import (
	"encoding/json"
	"math"
	"testing"

	"MarketRelay/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMap = FieldMap{
	Symbol:    []string{"symbol", "ticker"},
	Name:      []string{"name", "description"},
	Price:     []string{"lastPrice", "close"},
	Change:    []string{"change_abs", "change"},
	ChangePct: []string{"change"},
	Volume:    []string{"volume"},
}

func TestQuoteCandidateOrder(t *testing.T) {
	q, ok := testMap.Quote(map[string]interface{}{
		"ticker":      "THYAO",
		"description": "Turk Hava Yollari",
		"lastPrice":   0.0,
		"close":       json.Number("301.5"),
		"change":      1.25,
		"volume":      "1,200",
	}, Template{AssetType: models.AssetStock, Category: "BIST"})
	require.True(t, ok)

	assert.Equal(t, "THYAO", q.Symbol)
	assert.Equal(t, "Turk Hava Yollari", q.Name)
	assert.Equal(t, 301.5, *q.Price)
	assert.Equal(t, 1.25, *q.Change)
	assert.Equal(t, 1.25, *q.ChangePct)
	assert.Equal(t, 1200.0, *q.Volume)
	assert.Nil(t, q.MarketCap)
	assert.Equal(t, models.AssetStock, q.AssetType)
	assert.Equal(t, "BIST", q.Category)
	assert.Nil(t, q.Raw)
}

func TestQuoteRejectsUnusableRows(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"no symbol":     {"close": 10.0},
		"no price":      {"symbol": "A"},
		"zero price":    {"symbol": "A", "close": 0.0},
		"negative":      {"symbol": "A", "close": -1.0},
		"not a number":  {"symbol": "A", "close": "n/a"},
		"infinite":      {"symbol": "A", "close": math.Inf(1)},
		"nan":           {"symbol": "A", "close": math.NaN()},
		"object symbol": {"symbol": map[string]interface{}{}, "close": 1.0},
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := testMap.Quote(row, Template{})
			assert.False(t, ok)
		})
	}
}

func TestQuoteNameFallsBackToSymbol(t *testing.T) {
	q, ok := testMap.Quote(map[string]interface{}{"symbol": "EURUSD", "close": 1.08}, Template{})
	require.True(t, ok)
	assert.Equal(t, "EURUSD", q.Name)
}

func TestQuoteKeepRaw(t *testing.T) {
	q, ok := testMap.Quote(map[string]interface{}{"symbol": "X", "close": 2.0, "extra": "y"}, Template{KeepRaw: true})
	require.True(t, ok)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(q.Raw, &raw))
	assert.Equal(t, "y", raw["extra"])
}

func TestQuotesDropsDuplicatesAndLimits(t *testing.T) {
	rows := []map[string]interface{}{
		{"symbol": "AAA", "close": 1.0},
		{"symbol": "bad"},
		{"symbol": "aaa", "close": 9.0},
		{"symbol": "BBB", "close": 2.0},
		{"symbol": "CCC", "close": 3.0},
	}

	out := Quotes(rows, testMap, Template{}, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "AAA", out[0].Symbol)
	assert.Equal(t, 1.0, *out[0].Price)
	assert.Equal(t, "BBB", out[1].Symbol)

	assert.Len(t, Quotes(rows, testMap, Template{}, 0), 3)
}

func TestDedupe(t *testing.T) {
	p := 1.0
	out := Dedupe([]models.Quote{{Symbol: "A", Price: &p}, {Symbol: "B"}, {Symbol: "a"}})
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].Symbol)
	assert.Equal(t, "B", out[1].Symbol)
}

func TestColumns(t *testing.T) {
	row := Columns([]string{"name", "close"}, []interface{}{"EURUSD", 1.1, "extra"})
	assert.Equal(t, "EURUSD", row["name"])
	assert.Equal(t, 1.1, row["close"])
	assert.Equal(t, "extra", row["col_2"])
}

func TestNumber(t *testing.T) {
	f, ok := Number(json.Number("12.5"))
	assert.True(t, ok)
	assert.Equal(t, 12.5, f)

	f, ok = Number(" 3 ")
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	_, ok = Number(nil)
	assert.False(t, ok)
	_, ok = Number(true)
	assert.False(t, ok)
}

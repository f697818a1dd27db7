package tradingview

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"MarketRelay/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanner(t *testing.T, rows []scanRow, seen *ScanRequest, headers *http.Header) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		if headers != nil {
			*headers = r.Header.Clone()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(scanResponse{TotalCount: len(rows), Data: rows})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func forexRow(symbol string, close float64) scanRow {
	// name, close, change, change_abs, ...
	return scanRow{S: symbol, D: []interface{}{symbol, close, 0.5, 0.01, 0, 0, 0, symbol + " desc"}}
}

func TestScanSendsPresetAndHeaders(t *testing.T) {
	var req ScanRequest
	var hdr http.Header
	srv := scanner(t, []scanRow{forexRow("FX:EURUSD", 1.08)}, &req, &hdr)

	c := NewClient(srv.URL, "sessionid=abc", time.Second)
	rows, err := c.Scan(context.Background(), Forex().Request)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "FX:EURUSD", rows[0]["symbol"])
	assert.Equal(t, "FX:EURUSD", rows[0]["name"])
	assert.Equal(t, "tr", req.Options.Lang)
	assert.Equal(t, [2]int{0, 300}, req.Range)
	assert.Equal(t, "forex", req.Filter[0].Right[0])
	assert.Equal(t, "sessionid=abc", hdr.Get("Cookie"))
	assert.Equal(t, "Mozilla/5.0", hdr.Get("User-Agent"))
	assert.Equal(t, "application/json", hdr.Get("Content-Type"))
}

func TestScanNoCookieWithoutSession(t *testing.T) {
	var hdr http.Header
	srv := scanner(t, nil, nil, &hdr)

	_, err := NewClient(srv.URL, "", time.Second).Scan(context.Background(), Crypto().Request)
	require.NoError(t, err)
	assert.Empty(t, hdr.Get("Cookie"))
}

func TestScanHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).Scan(context.Background(), Forex().Request)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestForexPopularFirstAndCap(t *testing.T) {
	rows := make([]scanRow, 0, 130)
	for i := 0; i < 120; i++ {
		rows = append(rows, forexRow(fmt.Sprintf("FX:AAA%03d", i), 1+float64(i)))
	}
	rows = append(rows, forexRow("FX_IDC:USDTRY", 34.2), forexRow("FX:EURUSD", 1.08))
	srv := scanner(t, rows, nil, nil)

	src := NewSource(NewClient(srv.URL, "", time.Second), Forex())
	quotes, err := src.Fetch(context.Background())
	require.NoError(t, err)

	require.Len(t, quotes, MaxRows)
	assert.Equal(t, "FX:EURUSD", quotes[0].Symbol)
	assert.Equal(t, "FX_IDC:USDTRY", quotes[1].Symbol)
	assert.Equal(t, "FX:AAA000", quotes[2].Symbol)
	assert.Equal(t, models.AssetForex, quotes[0].AssetType)
	assert.Equal(t, "FOREX", quotes[0].Category)
	assert.Equal(t, 0.01, *quotes[0].Change)
	assert.Equal(t, 0.5, *quotes[0].ChangePct)
	assert.Equal(t, "FX:EURUSD desc", quotes[0].Name)
	assert.NotEmpty(t, quotes[0].Raw)
	assert.Equal(t, "tradingview", src.Name())
}

func TestFetchDropsRowsWithoutPrice(t *testing.T) {
	srv := scanner(t, []scanRow{
		{S: "COMEX:GC1!", D: []interface{}{"GC1!", nil}},
		{S: "NYMEX:CL1!", D: []interface{}{"CL1!", 78.4}},
	}, nil, nil)

	quotes, err := NewSource(NewClient(srv.URL, "", time.Second), Commodity()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "NYMEX:CL1!", quotes[0].Symbol)
}

func TestExchangeScan(t *testing.T) {
	req := ExchangeScan("XETR", 100)
	assert.Equal(t, []string{"XETR"}, req.Filter[0].Right)
	assert.Equal(t, []string{"stock"}, req.Filter[1].Right)
	assert.Equal(t, "market_cap_basic", req.Sort.SortBy)
	assert.Equal(t, "desc", req.Sort.SortOrder)
	assert.Equal(t, [2]int{0, 100}, req.Range)
}

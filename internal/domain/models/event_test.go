package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, ev MarketEvent) map[string]interface{} {
	t.Helper()
	b, err := MarshalEvent(ev)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestEmptyDataEventKeepsDataKey(t *testing.T) {
	m := decode(t, NewDataEvent(EventForex, "tradingview", nil, time.UnixMilli(1)))

	require.Contains(t, m, "data")
	assert.Equal(t, []interface{}{}, m["data"])
	assert.Equal(t, 0.0, m["count"])
}

func TestWarningEventOmitsData(t *testing.T) {
	m := decode(t, NewWarningEvent("crypto", "HTTP 500", 20*time.Second, time.UnixMilli(1)))

	assert.NotContains(t, m, "data")
	assert.Equal(t, "HTTP 500", m["message"])
	assert.Equal(t, 20000.0, m["backoffMs"])
}

func TestDataEventRoundTrip(t *testing.T) {
	ev := NewDataEvent(EventCrypto, "binance", []Quote{{Symbol: "BTC", Price: Float(100)}}, time.UnixMilli(5))
	b, err := MarshalEvent(ev)
	require.NoError(t, err)

	var got MarketEvent
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, EventCrypto, got.Type)
	require.Len(t, got.Data, 1)
	assert.Equal(t, "BTC", got.Data[0].Symbol)
}

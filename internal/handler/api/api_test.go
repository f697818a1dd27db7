package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"MarketRelay/internal/domain/models"
	"MarketRelay/internal/service/configstore"
	"MarketRelay/internal/service/eventbus"
	"MarketRelay/internal/service/ratelimit"
	"MarketRelay/internal/usecase"
	xhttp "MarketRelay/pkg/http"
	"MarketRelay/pkg/http/middleware"
	applogger "MarketRelay/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "secret"

var fixedNow = time.UnixMilli(1_700_000_000_000)

type fixture struct {
	e      *echo.Echo
	bus    *eventbus.Bus
	config *configstore.Store
	admin  *AdminHandler
	stream *StreamHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := applogger.Nop()
	bus := eventbus.New(nil, l)
	config := configstore.New(nil, l, configstore.Defaults(10*time.Second, 0, 0, 0, 15*time.Second, 30*time.Second),
		configstore.WithClock(func() time.Time { return fixedNow }))

	public := NewPublicHandler(bus, testKey)
	public.now = func() time.Time { return fixedNow }
	admin := NewAdminHandler(config, bus, testKey, l)
	admin.now = func() time.Time { return fixedNow }
	trade := NewTradeHandler(usecase.NewOrderSimulator(bus, l), testKey)
	stream := NewStreamHandler(usecase.NewBroadcaster(bus, l, usecase.WithKeepAlive(time.Hour)), l)
	t.Cleanup(stream.Close)

	srv := xhttp.NewServer(l, []xhttp.Handler{public, admin, trade, stream}, xhttp.WithMetricsPath(""))
	return &fixture{e: srv.Echo(), bus: bus, config: config, admin: admin, stream: stream}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if !strings.Contains(path, "key=") {
		req.Header.Set("x-api-key", testKey)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func (f *fixture) publish(eventType string, quotes ...models.Quote) {
	f.bus.Publish(models.NewDataEvent(eventType, "test", quotes, fixedNow))
}

func quote(symbol string, price float64) models.Quote {
	return models.Quote{Symbol: symbol, Name: symbol, Price: models.Float(price)}
}

func TestHealthIsOpen(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true,"ts":1700000000000}`, rec.Body.String())
}

func TestLatest(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/latest", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"ok":false,"error":"unauthorized"}`, rec.Body.String())

	code, body := f.do(t, http.MethodGet, "/latest?key="+testKey, "")
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["last"])

	f.publish(models.EventCrypto, quote("BTC", 1))
	_, body = f.do(t, http.MethodGet, "/latest", "")
	last := body["last"].(map[string]interface{})
	assert.Equal(t, models.EventCrypto, last["type"])
	assert.Equal(t, 1.0, last["count"])
}

func TestSetIntervalClampsAndNormalizes(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/admin/api/interval", `{"market":"crypto","intervalMs":50}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, 200.0, body["intervalMs"])
	assert.Equal(t, models.MarketCrypto, body["market"])

	_, body = f.do(t, http.MethodPost, "/admin/api/interval", `{"intervalMs":"5000"}`)
	assert.Equal(t, 5000.0, body["intervalMs"])
	assert.Equal(t, models.MarketGlobal, body["market"])

	_, cfg := f.do(t, http.MethodGet, "/admin/api/config", "")
	intervals := cfg["intervals"].(map[string]interface{})
	assert.Equal(t, 200.0, intervals[models.MarketCrypto])
	assert.Equal(t, 5000.0, intervals[models.MarketGlobal])
	assert.Equal(t, 15000.0, intervals[models.MarketStock])
	assert.Contains(t, cfg, "overrides")
	assert.Contains(t, cfg, "paused")
}

func TestSetIntervalCeiling(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/admin/api/interval", `{"market":"crypto","intervalMs":18446744073710}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 86400000.0, body["intervalMs"])

	_, body = f.do(t, http.MethodPost, "/admin/api/interval", `{"market":"forex","intervalMs":1e30}`)
	assert.Equal(t, 86400000.0, body["intervalMs"])
}

func TestSetOverride(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/admin/api/override", `{"symbol":"BTCUSDT"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", body["error"])
	assert.NotEmpty(t, body["details"])

	code, _ = f.do(t, http.MethodPost, "/admin/api/override", `{"symbol":"BTCUSDT","type":"percent","value":5,"durationSec":10}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = f.do(t, http.MethodPost, "/admin/api/override", `{"symbol":"ETH","type":"set","value":"42","expiresAt":1}`)
	require.Equal(t, http.StatusOK, code)

	overrides := f.config.Overrides()
	assert.Equal(t, models.Override{Type: models.OverridePercent, Value: 5, ExpiresAt: fixedNow.UnixMilli() + 10_000}, overrides["BTCUSDT"])
	assert.Equal(t, models.Override{Type: models.OverrideSet, Value: 42}, overrides["ETH"], "past expiry means no expiry")

	code, _ = f.do(t, http.MethodDelete, "/admin/api/override/btcusdt", "")
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, f.config.Overrides(), "BTCUSDT")
}

func TestSetOverrideRejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodPost, "/admin/api/override", `{"symbol":"BTC","type":"double","value":2}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", body["error"])
	assert.Empty(t, f.config.Overrides())
}

func TestSetPaused(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		body   string
		market string
		want   bool
	}{
		{`{"paused":true}`, models.MarketGlobal, true},
		{`{"paused":"true","market":"forex"}`, models.MarketForex, true},
		{`{"paused":1,"market":"FOREX"}`, models.MarketForex, false},
		{`{}`, models.MarketGlobal, false},
	}
	for _, tc := range cases {
		code, body := f.do(t, http.MethodPost, "/admin/api/pause", tc.body)
		require.Equal(t, http.StatusOK, code, tc.body)
		assert.Equal(t, tc.want, body["paused"], tc.body)
		assert.Equal(t, tc.market, body["market"], tc.body)
		assert.Equal(t, tc.want, f.config.Paused(tc.market), tc.body)
	}
}

func TestRequestUpdateEmitsSignal(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	f.bus.OnSignal(models.SignalRequestUpdate, func() { calls.Add(1) })

	code, body := f.do(t, http.MethodPost, "/admin/api/request-update", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, int32(1), calls.Load())
}

func TestAdminRequiresKey(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/api/config?key=wrong", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	f.publish(models.EventCrypto, quote("BTC", 100), models.Quote{Symbol: "NOPRICE"})

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"missing side", `{"symbol":"btc","amount":1}`, http.StatusBadRequest, "bad_request"},
		{"zero amount", `{"symbol":"btc","side":"buy","amount":0}`, http.StatusBadRequest, "bad_request"},
		{"missing amount", `{"symbol":"btc","side":"buy"}`, http.StatusBadRequest, "bad_request"},
		{"invalid side", `{"symbol":"btc","side":"hold","amount":1}`, http.StatusBadRequest, "invalid_side"},
		{"unknown symbol", `{"symbol":"doge","side":"buy","amount":1}`, http.StatusNotFound, "symbol_not_found"},
		{"no price", `{"symbol":"noprice","side":"buy","amount":1}`, http.StatusBadRequest, "price_unavailable"},
		{"negative amount", `{"symbol":"btc","side":"sell","amount":-2}`, http.StatusBadRequest, "invalid_amount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := f.do(t, http.MethodPost, "/trade/orders", tc.body)
			assert.Equal(t, tc.status, code)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tc.code, body["error"])
		})
	}
}

func TestOrderLifecycle(t *testing.T) {
	f := newFixture(t)
	f.publish(models.EventCrypto, quote("BTC", 100))

	code, body := f.do(t, http.MethodPost, "/trade/orders", `{"symbol":"BTC","side":"BUY","amount":"0.5"}`)
	require.Equal(t, http.StatusOK, code)
	order := body["order"].(map[string]interface{})
	id := order["id"].(string)
	assert.Equal(t, "buy", order["side"])
	assert.Equal(t, 50.0, order["total"])
	assert.Equal(t, models.OrderFilled, order["status"])

	_, body = f.do(t, http.MethodGet, "/trade/orders", "")
	assert.Len(t, body["orders"], 1)

	code, body = f.do(t, http.MethodGet, "/trade/orders/"+id, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, body["order"].(map[string]interface{})["id"])

	code, body = f.do(t, http.MethodDelete, "/trade/orders/"+id, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.OrderFilled, body["order"].(map[string]interface{})["status"])

	code, body = f.do(t, http.MethodGet, "/trade/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["error"])

	code, _ = f.do(t, http.MethodDelete, "/trade/orders/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUnknownRouteUsesErrorShape(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["error"])
}

func TestTradeRateLimit(t *testing.T) {
	l := applogger.Nop()
	bus := eventbus.New(nil, l)
	trade := NewTradeHandler(usecase.NewOrderSimulator(bus, l), testKey, middleware.RateLimit(ratelimit.New(0.001, 2)))
	f := &fixture{e: xhttp.NewServer(l, []xhttp.Handler{trade}, xhttp.WithMetricsPath("")).Echo(), bus: bus}

	for i := 0; i < 2; i++ {
		code, _ := f.do(t, http.MethodGet, "/trade/orders", "")
		require.Equal(t, http.StatusOK, code)
	}
	code, body := f.do(t, http.MethodGet, "/trade/orders", "")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate_limited", body["error"])
}

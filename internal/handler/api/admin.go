package api

import (
	"context"
	"net/http"
	"time"

	"MarketRelay/internal/domain/models"
	drepo "MarketRelay/internal/domain/repository"
	"MarketRelay/internal/service/configstore"
	xhttp "MarketRelay/pkg/http"
	"MarketRelay/pkg/http/middleware"
	applogger "MarketRelay/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AdminHandler mutates the runtime config and triggers manual refreshes.
type AdminHandler struct {
	config drepo.ConfigStore
	bus    drepo.EventBus
	apiKey string
	guards []echo.MiddlewareFunc
	logger *applogger.Logger
	now    func() time.Time
}

// NewAdminHandler builds the admin routes. Guards run after the API key check.
func NewAdminHandler(config drepo.ConfigStore, bus drepo.EventBus, apiKey string, l *applogger.Logger, guards ...echo.MiddlewareFunc) *AdminHandler {
	return &AdminHandler{config: config, bus: bus, apiKey: apiKey, guards: guards, logger: l, now: time.Now}
}

func (h *AdminHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/admin/api", append([]echo.MiddlewareFunc{middleware.RequireAPIKey(h.apiKey)}, h.guards...)...)
	g.GET("/config", h.Config)
	g.POST("/interval", h.SetInterval)
	g.POST("/override", h.SetOverride)
	g.DELETE("/override/:symbol", h.RemoveOverride)
	g.POST("/pause", h.SetPaused)
	g.POST("/request-update", h.RequestUpdate)
}

func (h *AdminHandler) Config(c echo.Context) error {
	return xhttp.DataResponse(c, http.StatusOK, h.config.Snapshot())
}

func (h *AdminHandler) SetInterval(c echo.Context) error {
	req := &IntervalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ms, _ := number(req.IntervalMs)
	market := models.NormalizeMarket(req.Market)
	stored := h.config.SetInterval(persistCtx(c), market, configstore.Millis(ms))

	h.logger.Info("interval updated", applogger.String("market", market), applogger.Int64("interval_ms", stored))
	return xhttp.OKResponse(c, echo.Map{"intervalMs": stored, "market": market})
}

// SetOverride stores a price override. expiresAt (unix ms) wins over
// durationSec; an expiry that is not in the future is dropped and the
// override never expires.
func (h *AdminHandler) SetOverride(c echo.Context) error {
	req := &OverrideRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	value, _ := number(req.Value)
	now := h.now().UnixMilli()
	var exp int64
	if v, ok := number(req.ExpiresAt); ok && v != 0 {
		exp = int64(v)
	} else if d, ok := number(req.DurationSec); ok && d != 0 {
		exp = now + int64(d*1000)
	}

	o := models.Override{Type: req.Type, Value: value}
	if exp > now {
		o.ExpiresAt = exp
	}
	if !h.config.SetOverride(persistCtx(c), req.Symbol, o) {
		return xhttp.BadRequestResponse(c, nil)
	}

	h.logger.Info("override set",
		applogger.String("symbol", req.Symbol),
		applogger.String("type", o.Type),
		applogger.Float64("value", o.Value),
		applogger.Int64("expires_at", o.ExpiresAt))
	return xhttp.OKResponse(c, nil)
}

func (h *AdminHandler) RemoveOverride(c echo.Context) error {
	symbol := c.Param("symbol")
	h.config.RemoveOverride(persistCtx(c), symbol)
	h.logger.Info("override removed", applogger.String("symbol", symbol))
	return xhttp.OKResponse(c, nil)
}

func (h *AdminHandler) SetPaused(c echo.Context) error {
	req := &PauseRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	paused := req.Paused == true || req.Paused == "true"
	market := models.NormalizeMarket(req.Market)
	v := h.config.SetPaused(persistCtx(c), market, paused)

	h.logger.Info("pause updated", applogger.String("market", market), applogger.Bool("paused", v))
	return xhttp.OKResponse(c, echo.Map{"paused": v, "market": market})
}

func (h *AdminHandler) RequestUpdate(c echo.Context) error {
	h.bus.Emit(models.SignalRequestUpdate)
	return xhttp.OKResponse(c, nil)
}

// persistCtx keeps request values but outlives a client that hangs up
// mid-write.
func persistCtx(c echo.Context) context.Context {
	return context.WithoutCancel(c.Request().Context())
}

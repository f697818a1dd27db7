package api

import (
	"net/http"
	"time"

	drepo "MarketRelay/internal/domain/repository"
	"MarketRelay/pkg/http/middleware"

	"github.com/labstack/echo/v4"
)

// PublicHandler serves the liveness probe and the cached last event.
type PublicHandler struct {
	bus    drepo.EventBus
	apiKey string
	now    func() time.Time
}

func NewPublicHandler(bus drepo.EventBus, apiKey string) *PublicHandler {
	return &PublicHandler{bus: bus, apiKey: apiKey, now: time.Now}
}

func (h *PublicHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/latest", h.Latest, middleware.RequireAPIKey(h.apiKey))
}

func (h *PublicHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "ts": h.now().UnixMilli()})
}

// Latest returns the overall last event, or null before the first publish.
func (h *PublicHandler) Latest(c echo.Context) error {
	body := echo.Map{"ts": h.now().UnixMilli(), "last": nil}
	if ev, ok := h.bus.Last(); ok {
		body["last"] = ev
	}
	return c.JSON(http.StatusOK, body)
}

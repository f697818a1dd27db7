package api

import (
	"errors"
	"net/http"
	"strings"

	"MarketRelay/internal/domain/models"
	"MarketRelay/internal/usecase"
	xhttp "MarketRelay/pkg/http"
	"MarketRelay/pkg/http/middleware"

	"github.com/labstack/echo/v4"
)

const codeInvalidSide = "invalid_side"

// TradeHandler exposes the order simulator.
type TradeHandler struct {
	orders *usecase.OrderSimulator
	apiKey string
	guards []echo.MiddlewareFunc
}

func NewTradeHandler(orders *usecase.OrderSimulator, apiKey string, guards ...echo.MiddlewareFunc) *TradeHandler {
	return &TradeHandler{orders: orders, apiKey: apiKey, guards: guards}
}

func (h *TradeHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/trade", append([]echo.MiddlewareFunc{middleware.RequireAPIKey(h.apiKey)}, h.guards...)...)
	g.GET("/orders", h.List)
	g.GET("/orders/:id", h.Get)
	g.POST("/orders", h.Create)
	g.DELETE("/orders/:id", h.Cancel)
}

func (h *TradeHandler) List(c echo.Context) error {
	return xhttp.OKResponse(c, echo.Map{"orders": h.orders.ListOrders()})
}

func (h *TradeHandler) Get(c echo.Context) error {
	order, err := h.orders.GetOrder(c.Param("id"))
	if err != nil {
		return xhttp.AppErrorResponse(c, orderError(err))
	}
	return xhttp.OKResponse(c, echo.Map{"order": order})
}

// Create validates presence first (a zero amount counts as missing), then
// the side, and leaves price and amount checks to the simulator.
func (h *TradeHandler) Create(c echo.Context) error {
	req := &CreateOrderRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	amount, ok := number(req.Amount)
	if !ok || amount == 0 {
		return xhttp.BadRequestResponse(c, nil)
	}
	side := strings.ToLower(strings.TrimSpace(req.Side))
	if side != models.SideBuy && side != models.SideSell {
		return xhttp.ErrorResponse(c, http.StatusBadRequest, codeInvalidSide, nil)
	}

	order, err := h.orders.CreateOrder(c.Request().Context(), models.OrderRequest{
		Symbol: strings.ToLower(strings.TrimSpace(req.Symbol)),
		Side:   side,
		Amount: amount,
		Market: req.Market,
	})
	if err != nil {
		return xhttp.AppErrorResponse(c, orderError(err))
	}
	return xhttp.OKResponse(c, echo.Map{"order": order})
}

func (h *TradeHandler) Cancel(c echo.Context) error {
	order, err := h.orders.CancelOrder(c.Param("id"))
	if err != nil {
		return xhttp.AppErrorResponse(c, orderError(err))
	}
	return xhttp.OKResponse(c, echo.Map{"order": order})
}

// orderError maps simulator errors to their API code: unknown symbols and
// orders are 404, everything else 400.
func orderError(err error) *xhttp.AppError {
	status := http.StatusBadRequest
	if errors.Is(err, models.ErrSymbolNotFound) || errors.Is(err, models.ErrOrderNotFound) {
		status = http.StatusNotFound
	}
	return xhttp.NewAppError(err.Error(), "order rejected", status).WithError(err)
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"MarketRelay/internal/domain/models"
	"MarketRelay/internal/usecase"
	applogger "MarketRelay/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
)

// Origins are enforced by the CORS middleware before the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type StreamOption func(*StreamHandler)

// WithEventName adds an "event: <name>" line to every SSE frame.
func WithEventName(name string) StreamOption {
	return func(h *StreamHandler) { h.eventName = name }
}

// StreamHandler serves the push endpoints. Both are unauthenticated.
type StreamHandler struct {
	broadcaster *usecase.Broadcaster
	logger      *applogger.Logger
	eventName   string

	base context.Context
	stop context.CancelFunc
}

func NewStreamHandler(b *usecase.Broadcaster, l *applogger.Logger, opts ...StreamOption) *StreamHandler {
	h := &StreamHandler{broadcaster: b, logger: l}
	h.base, h.stop = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/stream", h.SSE)
	e.GET("/ws", h.WebSocket)
}

// Close ends every open stream. Used on shutdown, since http.Server.Shutdown
// does not interrupt active requests.
func (h *StreamHandler) Close() {
	h.stop()
}

func (h *StreamHandler) streamContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(h.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (h *StreamHandler) SSE(c echo.Context) error {
	res := c.Response()
	header := res.Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set(echo.HeaderCacheControl, "no-cache, no-transform")
	header.Set(echo.HeaderConnection, "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ctx, cancel := h.streamContext(c.Request().Context())
	defer cancel()

	err := h.broadcaster.Serve(ctx, "sse", &sseSink{res: res, event: h.eventName})
	if err != nil && !errors.Is(err, usecase.ErrClientLagging) {
		h.logger.Debug("sse stream ended", applogger.Error(err))
	}
	return nil
}

func (h *StreamHandler) WebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already replied
		h.logger.Debug("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	defer conn.Close()

	ctx, cancel := h.streamContext(c.Request().Context())
	defer cancel()

	// Inbound frames are ignored; reading keeps pongs flowing and detects
	// a closed peer.
	go func() {
		defer cancel()
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = h.broadcaster.Serve(ctx, "ws", wsSink{conn: conn})
	if err != nil && !errors.Is(err, usecase.ErrClientLagging) {
		h.logger.Debug("websocket stream ended", applogger.Error(err))
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(wsWriteWait))
	return nil
}

type sseSink struct {
	res   *echo.Response
	event string
}

func (s *sseSink) Send(ev models.MarketEvent) error {
	b, err := models.MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if s.event != "" {
		if _, err := fmt.Fprintf(s.res, "event: %s\n", s.event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.res, "data: %s\n\n", b); err != nil {
		return err
	}
	s.res.Flush()
	return nil
}

func (s *sseSink) KeepAlive(now time.Time) error {
	if _, err := fmt.Fprintf(s.res, ": ping %d\n\n", now.UnixMilli()); err != nil {
		return err
	}
	s.res.Flush()
	return nil
}

type wsSink struct {
	conn *websocket.Conn
}

func (s wsSink) Send(ev models.MarketEvent) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteJSON(ev)
}

func (s wsSink) KeepAlive(now time.Time) error {
	payload := []byte(strconv.FormatInt(now.UnixMilli(), 10))
	return s.conn.WriteControl(websocket.PingMessage, payload, time.Now().Add(wsWriteWait))
}

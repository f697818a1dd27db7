package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"MarketRelay/internal/domain/models"
	drepo "MarketRelay/internal/domain/repository"
	applogger "MarketRelay/pkg/logger"
)

type OrderOption func(*OrderSimulator)

func WithOrderClock(now func() time.Time) OrderOption {
	return func(o *OrderSimulator) { o.now = now }
}

func WithOrderMetrics(m drepo.Metrics) OrderOption {
	return func(o *OrderSimulator) { o.metrics = m }
}

// OrderSimulator fills market orders instantly at the last cached price.
// Orders live in memory only, newest first.
type OrderSimulator struct {
	bus     drepo.EventBus
	logger  *applogger.Logger
	metrics drepo.Metrics
	now     func() time.Time
	seq     atomic.Uint64

	mu     sync.RWMutex
	orders []*models.Order
}

func NewOrderSimulator(bus drepo.EventBus, l *applogger.Logger, opts ...OrderOption) *OrderSimulator {
	o := &OrderSimulator{
		bus:     bus,
		logger:  l,
		metrics: drepo.NopMetrics{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CreateOrder resolves the instrument, validates price and amount (in that
// order) and records a filled order.
func (o *OrderSimulator) CreateOrder(ctx context.Context, req models.OrderRequest) (models.Order, error) {
	q, ok := o.findInstrument(req.Symbol, req.Market)
	if !ok {
		o.metrics.RecordOrder(models.ErrSymbolNotFound.Error())
		return models.Order{}, models.ErrSymbolNotFound
	}
	price, ok := q.PriceValue()
	if !ok {
		o.metrics.RecordOrder(models.ErrPriceUnavailable.Error())
		return models.Order{}, models.ErrPriceUnavailable
	}
	if !models.ValidPrice(req.Amount) {
		o.metrics.RecordOrder(models.ErrInvalidAmount.Error())
		return models.Order{}, models.ErrInvalidAmount
	}

	total := price * req.Amount
	now := o.now().UnixMilli()
	market := req.Market
	if market == "" {
		market = strings.ToLower(q.AssetType)
	}
	if market == "" {
		market = "unknown"
	}

	order := &models.Order{
		ID:           fmt.Sprintf("%d-%d", now, o.seq.Add(1)),
		Symbol:       q.Symbol,
		InstrumentID: q.ID,
		Side:         req.Side,
		Amount:       req.Amount,
		Price:        price,
		Total:        total,
		Status:       models.OrderFilled,
		CreatedAt:    now,
		FilledAt:     now,
		Market:       market,
	}

	o.mu.Lock()
	o.orders = append([]*models.Order{order}, o.orders...)
	o.mu.Unlock()

	o.metrics.RecordOrder(models.OrderFilled)
	o.logger.Info("order filled",
		applogger.String("id", order.ID),
		applogger.String("symbol", order.Symbol),
		applogger.String("side", order.Side),
		applogger.Float64("price", price),
		applogger.Float64("amount", req.Amount))
	return *order, nil
}

// CancelOrder marks an open order cancelled. Filled orders are returned
// unchanged.
func (o *OrderSimulator) CancelOrder(id string) (models.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ord := range o.orders {
		if ord.ID != id {
			continue
		}
		if ord.Status != models.OrderFilled {
			ord.Status = models.OrderCancelled
			ord.CancelledAt = o.now().UnixMilli()
		}
		return *ord, nil
	}
	return models.Order{}, models.ErrOrderNotFound
}

func (o *OrderSimulator) ListOrders() []models.Order {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]models.Order, 0, len(o.orders))
	for _, ord := range o.orders {
		out = append(out, *ord)
	}
	return out
}

func (o *OrderSimulator) GetOrder(id string) (models.Order, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, ord := range o.orders {
		if ord.ID == id {
			return *ord, nil
		}
	}
	return models.Order{}, models.ErrOrderNotFound
}

// findInstrument looks in the cache for market when given, otherwise in the
// overall last event and then every known type in priority order.
func (o *OrderSimulator) findInstrument(key, market string) (models.Quote, bool) {
	var candidates []models.MarketEvent
	if market != "" {
		if ev, ok := o.bus.LastByType(models.EventTypeForMarket(market)); ok {
			candidates = append(candidates, ev)
		}
	} else {
		if ev, ok := o.bus.Last(); ok {
			candidates = append(candidates, ev)
		}
		for _, t := range models.EventPriority {
			if ev, ok := o.bus.LastByType(t); ok {
				candidates = append(candidates, ev)
			}
		}
	}

	for i := range candidates {
		if q, ok := candidates[i].Find(key); ok {
			return q, true
		}
	}
	return models.Quote{}, false
}

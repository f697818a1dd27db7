package usecase

import (
	"context"
	"errors"
	"time"

	"MarketRelay/internal/domain/models"
	drepo "MarketRelay/internal/domain/repository"
	applogger "MarketRelay/pkg/logger"

	"github.com/google/uuid"
)

const (
	DefaultKeepAlive = 15 * time.Second
	clientBuffer     = 256
)

// ErrClientLagging is returned by Serve when a client cannot keep up.
var ErrClientLagging = errors.New("stream client lagging")

// Sink is one connected stream client.
type Sink interface {
	Send(ev models.MarketEvent) error
	KeepAlive(now time.Time) error
}

type BroadcasterOption func(*Broadcaster)

// WithKeepAlive sets the heartbeat period.
func WithKeepAlive(d time.Duration) BroadcasterOption {
	return func(b *Broadcaster) {
		if d > 0 {
			b.keepAlive = d
		}
	}
}

func WithBroadcasterMetrics(m drepo.Metrics) BroadcasterOption {
	return func(b *Broadcaster) { b.metrics = m }
}

// Broadcaster relays bus events to stream clients.
type Broadcaster struct {
	bus       drepo.EventBus
	logger    *applogger.Logger
	metrics   drepo.Metrics
	keepAlive time.Duration
	now       func() time.Time
}

func NewBroadcaster(bus drepo.EventBus, l *applogger.Logger, opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		bus:       bus,
		logger:    l,
		metrics:   drepo.NopMetrics{},
		keepAlive: DefaultKeepAlive,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Serve streams to sink until ctx ends or a write fails. The cached overall
// last event is sent first, then every publish, with a heartbeat on each
// keep-alive tick.
func (b *Broadcaster) Serve(ctx context.Context, transport string, sink Sink) error {
	id := uuid.NewString()
	log := b.logger.With(applogger.String("client", id), applogger.String("transport", transport))

	events := make(chan models.MarketEvent, clientBuffer)
	lagging := make(chan struct{})
	var lagged bool
	unsubscribe := b.bus.Subscribe(func(ev models.MarketEvent) {
		select {
		case events <- ev:
		default:
			if !lagged {
				lagged = true
				close(lagging)
			}
		}
	})
	defer unsubscribe()

	b.metrics.StreamClientDelta(transport, 1)
	defer b.metrics.StreamClientDelta(transport, -1)
	log.Info("stream client connected")
	defer log.Info("stream client disconnected")

	// Subscribed before the snapshot read, so nothing is missed; an event
	// published in between can reach the client twice.
	if last, ok := b.bus.Last(); ok {
		if err := sink.Send(b.stamp(last)); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(b.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-lagging:
			log.Warn("stream client too slow, disconnecting")
			return ErrClientLagging
		case ev := <-events:
			if err := sink.Send(b.stamp(ev)); err != nil {
				return err
			}
		case <-ticker.C:
			if err := sink.KeepAlive(b.now()); err != nil {
				return err
			}
		}
	}
}

func (b *Broadcaster) stamp(ev models.MarketEvent) models.MarketEvent {
	if ev.TS == 0 {
		return ev.Stamped(b.now())
	}
	return ev
}

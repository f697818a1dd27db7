package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"MarketRelay/internal/domain/models"
	"MarketRelay/internal/domain/repository"
	"MarketRelay/pkg/cache"
	applogger "MarketRelay/pkg/logger"
)

const (
	defaultKey     = "market:last"
	persistTimeout = 10 * time.Second
)

// Option configures Bus.
type Option func(*Bus)

// WithKey sets the persistence key of the overall last event.
func WithKey(key string) Option {
	return func(b *Bus) { b.key = key }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m repository.Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

type subscriber struct {
	id uint64
	fn func(models.MarketEvent)
}

type signalHandler struct {
	id uint64
	fn func()
}

// Bus fans events out to subscribers and keeps last-value caches.
// Publishes are serialized and delivered synchronously in publish order;
// a slow subscriber delays the ones after it. Persistence of the overall
// last event runs in the background and never blocks Publish.
type Bus struct {
	pubMu  sync.Mutex
	mu     sync.RWMutex
	last   *models.MarketEvent
	byType map[string]models.MarketEvent
	subs   []subscriber
	sigs   map[string][]signalHandler
	nextID uint64

	persistMu sync.Mutex
	seq       uint64
	written   uint64
	wg        sync.WaitGroup

	backend cache.Service
	key     string
	log     *applogger.Logger
	metrics repository.Metrics
}

// New creates a bus. backend may be nil to disable persistence.
func New(backend cache.Service, l *applogger.Logger, opts ...Option) *Bus {
	if l == nil {
		l = applogger.Nop()
	}
	b := &Bus{
		byType:  make(map[string]models.MarketEvent),
		sigs:    make(map[string][]signalHandler),
		backend: backend,
		key:     defaultKey,
		log:     l,
		metrics: repository.NopMetrics{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish caches ev, schedules its persistence and delivers it to every
// subscriber before returning.
func (b *Bus) Publish(ev models.MarketEvent) {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.Lock()
	stored := ev
	b.last = &stored
	b.byType[ev.Type] = ev
	subs := append([]subscriber(nil), b.subs...)
	b.mu.Unlock()

	b.seq++
	b.persistAsync(ev, b.seq)
	b.metrics.RecordEvent(ev.Type, ev.Count)

	for _, s := range subs {
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s subscriber, ev models.MarketEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("subscriber panicked", applogger.Any("panic", r), applogger.String("type", ev.Type))
		}
	}()
	s.fn(ev)
}

// Subscribe registers fn for every future publish. The returned function
// detaches it and is safe to call more than once.
func (b *Bus) Subscribe(fn func(models.MarketEvent)) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Subscribers returns the number of attached subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Last returns the overall last event.
func (b *Bus) Last() (models.MarketEvent, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.last == nil {
		return models.MarketEvent{}, false
	}
	return *b.last, true
}

// LastByType returns the last event of the given type.
func (b *Bus) LastByType(eventType string) (models.MarketEvent, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ev, ok := b.byType[eventType]
	return ev, ok
}

// Emit invokes every handler registered for signal.
func (b *Bus) Emit(signal string) {
	b.mu.RLock()
	handlers := append([]signalHandler(nil), b.sigs[signal]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h.fn()
	}
}

// OnSignal registers fn for signal and returns its detach function.
func (b *Bus) OnSignal(signal string, fn func()) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.sigs[signal] = append(b.sigs[signal], signalHandler{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			hs := b.sigs[signal]
			for i, h := range hs {
				if h.id == id {
					b.sigs[signal] = append(hs[:i:i], hs[i+1:]...)
					break
				}
			}
		})
	}
}

// Hydrate restores the overall last event (and its per-type slot) from the
// backend. It does nothing if an event was already published.
func (b *Bus) Hydrate(ctx context.Context) {
	if b.backend == nil {
		return
	}

	var raw []byte
	if err := b.backend.Get(ctx, b.key, &raw); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			b.log.Warn("last event restore failed", applogger.String("key", b.key), applogger.Error(err))
		}
		return
	}

	var ev models.MarketEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.Type == "" {
		b.log.Warn("last event record malformed", applogger.String("key", b.key), applogger.Error(err))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last != nil {
		return
	}
	b.last = &ev
	if _, ok := b.byType[ev.Type]; !ok {
		b.byType[ev.Type] = ev
	}
	b.log.Info("last event restored", applogger.String("type", ev.Type), applogger.Int("count", ev.Count))
}

func (b *Bus) persistAsync(ev models.MarketEvent, seq uint64) {
	if b.backend == nil {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		b.persistMu.Lock()
		defer b.persistMu.Unlock()
		if seq <= b.written {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		data, err := json.Marshal(ev)
		if err == nil {
			err = b.backend.Set(ctx, b.key, data, 0)
		}
		if err != nil {
			b.metrics.RecordPersistError(b.key)
			b.log.Warn("last event persist failed", applogger.String("type", ev.Type), applogger.Error(err))
			return
		}
		b.written = seq
	}()
}

// Flush waits for pending persistence writes.
func (b *Bus) Flush() {
	b.wg.Wait()
}

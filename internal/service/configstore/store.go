package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"MarketRelay/internal/domain/models"
	"MarketRelay/internal/domain/repository"
	"MarketRelay/pkg/cache"
	applogger "MarketRelay/pkg/logger"
)

// Bounds applied to every stored interval, in milliseconds.
const (
	MinInterval int64 = 200
	MaxInterval int64 = 24 * 60 * 60 * 1000
)

// Millis converts a decoded millisecond value to int64 without overflow.
// NaN and non-positive values map to 0; anything above MaxInterval maps to
// MaxInterval.
func Millis(v float64) int64 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= float64(MaxInterval):
		return MaxInterval
	}
	return int64(v)
}

func bound(v int64) int64 {
	if v < MinInterval {
		return MinInterval
	}
	if v > MaxInterval {
		return MaxInterval
	}
	return v
}

const (
	defaultKey     = "admin:config"
	fallbackGlobal = int64(10000)
	persistTimeout = 5 * time.Second
)

// Option configures Store.
type Option func(*Store)

// WithKey sets the persistence key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithClock injects the time source used for override expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m repository.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithPausedMarkets marks markets paused before persisted state is loaded.
func WithPausedMarkets(markets []string) Option {
	return func(s *Store) {
		for _, m := range markets {
			s.state.Paused[models.NormalizeMarket(m)] = true
		}
	}
}

// Store holds intervals, pause flags and price overrides. Every mutator
// persists the whole state; persistence failures are logged and swallowed.
type Store struct {
	mu        sync.Mutex
	persistMu sync.Mutex
	state     models.ConfigState
	defaults  map[string]int64

	backend cache.Service
	key     string
	log     *applogger.Logger
	metrics repository.Metrics
	now     func() time.Time
}

// New creates a store seeded with per-market default intervals in ms.
// backend may be nil, in which case nothing is persisted.
func New(backend cache.Service, l *applogger.Logger, defaults map[string]int64, opts ...Option) *Store {
	if l == nil {
		l = applogger.Nop()
	}
	d := make(map[string]int64, len(defaults)+1)
	for k, v := range defaults {
		d[models.NormalizeMarket(k)] = v
	}
	if d[models.MarketGlobal] <= 0 {
		d[models.MarketGlobal] = fallbackGlobal
	}

	s := &Store{
		defaults: d,
		backend:  backend,
		key:      defaultKey,
		log:      l,
		metrics:  repository.NopMetrics{},
		now:      time.Now,
		state: models.ConfigState{
			Intervals: make(map[string]int64, len(d)),
			Overrides: make(map[string]models.Override),
			Paused:    make(map[string]bool, len(models.Markets)),
		},
	}
	for k, v := range d {
		s.state.Intervals[k] = v
	}
	for _, m := range models.Markets {
		s.state.Paused[m] = false
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defaults builds the default interval table. Zero per-market values
// inherit the global interval.
func Defaults(global, crypto, forex, commodity, stock, intl time.Duration) map[string]int64 {
	g := global.Milliseconds()
	or := func(d time.Duration) int64 {
		if d <= 0 {
			return g
		}
		return d.Milliseconds()
	}
	return map[string]int64{
		models.MarketGlobal:    g,
		models.MarketCrypto:    or(crypto),
		models.MarketForex:     or(forex),
		models.MarketCommodity: or(commodity),
		models.MarketStock:     or(stock),
		models.MarketIntl:      or(intl),
	}
}

// persisted accepts both the current shape and the legacy
// {intervalMs, paused: bool} record.
type persisted struct {
	Intervals  map[string]float64         `json:"intervals"`
	IntervalMs *float64                   `json:"intervalMs"`
	Overrides  map[string]models.Override `json:"overrides"`
	Paused     json.RawMessage            `json:"paused"`
}

// Load merges the persisted record over the defaults. A missing or
// unreadable record leaves the defaults in place.
func (s *Store) Load(ctx context.Context) {
	if s.backend == nil {
		return
	}

	var raw []byte
	if err := s.backend.Get(ctx, s.key, &raw); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("config load failed, using defaults", applogger.String("key", s.key), applogger.Error(err))
		}
		return
	}

	var p persisted
	if err := json.Unmarshal(raw, &p); err != nil {
		s.log.Warn("config record malformed, using defaults", applogger.String("key", s.key), applogger.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Intervals != nil {
		for k, v := range p.Intervals {
			if ms := Millis(v); ms > 0 {
				s.state.Intervals[models.NormalizeMarket(k)] = bound(ms)
			}
		}
	} else if p.IntervalMs != nil {
		if ms := Millis(*p.IntervalMs); ms > 0 {
			s.state.Intervals[models.MarketGlobal] = bound(ms)
		}
	}

	if p.Overrides != nil {
		s.state.Overrides = p.Overrides
	}

	if len(p.Paused) > 0 {
		var byMarket map[string]bool
		var legacy bool
		switch {
		case json.Unmarshal(p.Paused, &byMarket) == nil:
			for k, v := range byMarket {
				s.state.Paused[models.NormalizeMarket(k)] = v
			}
		case json.Unmarshal(p.Paused, &legacy) == nil:
			s.state.Paused[models.MarketGlobal] = legacy
		}
	}

	s.log.Info("config loaded", applogger.String("key", s.key), applogger.Int("overrides", len(s.state.Overrides)))
}

// Interval returns the poll interval for market, falling back to GLOBAL.
func (s *Store) Interval(market string) time.Duration {
	key := models.NormalizeMarket(market)

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.state.Intervals[key]; ok && v > 0 {
		return time.Duration(v) * time.Millisecond
	}
	if v, ok := s.state.Intervals[models.MarketGlobal]; ok && v > 0 {
		return time.Duration(v) * time.Millisecond
	}
	return time.Duration(s.defaults[models.MarketGlobal]) * time.Millisecond
}

// SetInterval stores ms for market and returns the value actually stored.
// Non-positive input falls back to the market default; the result is kept
// within [MinInterval, MaxInterval].
func (s *Store) SetInterval(ctx context.Context, market string, ms int64) int64 {
	key := models.NormalizeMarket(market)

	s.mu.Lock()
	v := ms
	if v <= 0 {
		v = s.defaults[key]
		if v <= 0 {
			v = s.defaults[models.MarketGlobal]
		}
	}
	v = bound(v)
	s.state.Intervals[key] = v
	s.mu.Unlock()

	s.persist(ctx)
	return v
}

// Paused reports the pause flag for market. Unknown markets inherit GLOBAL.
func (s *Store) Paused(market string) bool {
	key := models.NormalizeMarket(market)

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.state.Paused[key]; ok {
		return v
	}
	return s.state.Paused[models.MarketGlobal]
}

// SetPaused stores the pause flag and returns it.
func (s *Store) SetPaused(ctx context.Context, market string, paused bool) bool {
	key := models.NormalizeMarket(market)

	s.mu.Lock()
	s.state.Paused[key] = paused
	s.mu.Unlock()

	s.persist(ctx)
	return paused
}

// Overrides returns the active overrides. Expired entries are removed and,
// if any were, the state is persisted in the background.
func (s *Store) Overrides() map[string]models.Override {
	s.mu.Lock()
	purged := s.purgeExpiredLocked()
	out := make(map[string]models.Override, len(s.state.Overrides))
	for k, v := range s.state.Overrides {
		out[k] = v
	}
	s.mu.Unlock()

	if purged > 0 {
		s.log.Debug("expired overrides purged", applogger.Int("count", purged))
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			s.persist(ctx)
		}()
	}
	return out
}

func (s *Store) purgeExpiredLocked() int {
	now := s.now()
	n := 0
	for sym, o := range s.state.Overrides {
		if o.Expired(now) {
			delete(s.state.Overrides, sym)
			n++
		}
	}
	return n
}

// SetOverride stores an override for symbol. An empty symbol or type is rejected.
func (s *Store) SetOverride(ctx context.Context, symbol string, o models.Override) bool {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" || o.Type == "" {
		return false
	}

	s.mu.Lock()
	s.state.Overrides[symbol] = o
	s.mu.Unlock()

	s.persist(ctx)
	return true
}

// RemoveOverride deletes the override for symbol, matching case-insensitively.
func (s *Store) RemoveOverride(ctx context.Context, symbol string) {
	s.mu.Lock()
	for k := range s.state.Overrides {
		if strings.EqualFold(k, symbol) {
			delete(s.state.Overrides, k)
		}
	}
	s.mu.Unlock()

	s.persist(ctx)
}

// Snapshot returns the resolved view served by the admin API: every known
// market with its effective interval and pause flag, plus active overrides.
func (s *Store) Snapshot() models.ConfigState {
	overrides := s.Overrides()

	s.mu.Lock()
	out := s.state.Clone()
	s.mu.Unlock()

	for _, m := range models.Markets {
		out.Intervals[m] = s.Interval(m).Milliseconds()
		out.Paused[m] = s.Paused(m)
	}
	out.Overrides = overrides
	return out
}

// persist writes the full current state. persistMu orders concurrent writers
// so the last write always carries the newest state.
func (s *Store) persist(ctx context.Context) {
	if s.backend == nil {
		return
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	data, err := json.Marshal(s.state)
	s.mu.Unlock()
	if err != nil {
		s.log.Error("config encode failed", applogger.Error(err))
		return
	}

	if err := s.backend.Set(ctx, s.key, data, 0); err != nil {
		s.metrics.RecordPersistError(s.key)
		s.log.Warn("config persist failed", applogger.String("key", s.key), applogger.Error(err))
	}
}

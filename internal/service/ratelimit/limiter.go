package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultIdle = 10 * time.Minute

// Limiter keeps one token bucket per key (a client address, usually).
// Buckets untouched for longer than the idle window are dropped.
type Limiter struct {
	mu     sync.Mutex
	m      map[string]*bucket
	limit  rate.Limit
	burst  int
	idle   time.Duration
	now    func() time.Time
	lastGC time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Option configures Limiter.
type Option func(*Limiter)

// WithIdle sets how long an unused bucket is kept.
func WithIdle(d time.Duration) Option {
	return func(l *Limiter) { l.idle = d }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns a limiter refilling perSec tokens per second up to burst.
func New(perSec float64, burst int, opts ...Option) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		m:     make(map[string]*bucket),
		limit: rate.Limit(perSec),
		burst: burst,
		idle:  defaultIdle,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastGC = l.now()
	return l
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) >= l.idle {
		l.gcLocked(now)
	}

	b, ok := l.m[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.m[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func (l *Limiter) gcLocked(now time.Time) {
	for k, b := range l.m {
		if now.Sub(b.seen) >= l.idle {
			delete(l.m, k)
		}
	}
	l.lastGC = now
}

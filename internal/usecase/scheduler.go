package usecase

import (
	"context"
	"sync"
	"time"

	"MarketRelay/internal/domain/models"
	drepo "MarketRelay/internal/domain/repository"
	applogger "MarketRelay/pkg/logger"
	"MarketRelay/pkg/util"
)

const (
	DefaultRetries    = 3
	DefaultRetryDelay = 2 * time.Second
	DefaultMaxBackoff = 10 * time.Minute
	DefaultDebounce   = 2 * time.Second
)

// EventDecorator is implemented by sources that add metadata to the event
// built from their last fetch.
type EventDecorator interface {
	Decorate(ev *models.MarketEvent)
}

// ServedSource is implemented by sources that may answer from more than one
// provider. The returned name becomes the event source.
type ServedSource interface {
	FetchServed(ctx context.Context) ([]models.Quote, string, error)
}

// SchedulerOption configures Scheduler.
type SchedulerOption func(*Scheduler)

// WithInterval sets the interval used when the config store has none.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.interval = d }
}

// WithMarket sets the market key read from the config store.
func WithMarket(m string) SchedulerOption {
	return func(s *Scheduler) { s.market = models.NormalizeMarket(m) }
}

// WithEventType sets the published data event type.
func WithEventType(t string) SchedulerOption {
	return func(s *Scheduler) { s.eventType = t }
}

// WithFamily sets the warning prefix, e.g. "bist" for "bist_warning".
func WithFamily(f string) SchedulerOption {
	return func(s *Scheduler) { s.family = f }
}

// WithRetries sets how many extra attempts follow a failed fetch.
func WithRetries(n int) SchedulerOption {
	return func(s *Scheduler) { s.retries = n }
}

func WithRetryDelay(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.retryDelay = d }
}

func WithMaxBackoff(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.maxBackoff = d }
}

// WithDebounce sets the minimum gap between manual refreshes.
func WithDebounce(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.debounce = d }
}

func WithSchedulerMetrics(m drepo.Metrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler polls one QuoteSource on a self-rescheduling timer and publishes
// the result. Each cycle schedules the next one when it finishes, so two
// scheduled fetches never overlap. A manual refresh may run alongside one.
type Scheduler struct {
	source  drepo.QuoteSource
	config  drepo.ConfigReader
	bus     drepo.EventBus
	logger  *applogger.Logger
	metrics drepo.Metrics
	now     func() time.Time

	interval   time.Duration
	market     string
	eventType  string
	family     string
	retries    int
	retryDelay time.Duration
	maxBackoff time.Duration
	debounce   time.Duration

	mu         sync.Mutex
	running    bool
	ctx        context.Context
	cancel     context.CancelFunc
	timer      *time.Timer
	failures   int
	lastManual time.Time
	detach     func()
}

func NewScheduler(source drepo.QuoteSource, config drepo.ConfigReader, bus drepo.EventBus, l *applogger.Logger, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		source:     source,
		config:     config,
		bus:        bus,
		logger:     l,
		metrics:    drepo.NopMetrics{},
		now:        time.Now,
		interval:   10 * time.Second,
		market:     models.MarketGlobal,
		family:     source.Name(),
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
		maxBackoff: DefaultMaxBackoff,
		debounce:   DefaultDebounce,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.eventType == "" {
		s.eventType = s.source.Name()
	}
	s.logger = l.With(applogger.String("market", s.market), applogger.String("source", source.Name()))
	return s
}

// Start runs the first fetch synchronously, then keeps polling until the
// returned stop function is called or ctx ends.
func (s *Scheduler) Start(ctx context.Context) (stop func()) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return s.Stop
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	s.logger.Info("collector starting", applogger.String("type", s.eventType))
	next := s.runCycle(s.ctx)

	s.mu.Lock()
	if s.running {
		s.detach = s.bus.OnSignal(models.SignalRequestUpdate, s.requestUpdate)
	}
	s.mu.Unlock()
	s.schedule(next)

	go func() {
		<-s.ctx.Done()
		s.Stop()
	}()
	return s.Stop
}

// Stop halts polling. Results of a fetch still in flight are discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.detach != nil {
		s.detach()
		s.detach = nil
	}
	s.cancel()
	s.logger.Info("collector stopped")
}

// Running reports whether the scheduler is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) schedule(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.timer = time.AfterFunc(d, s.tick)
}

func (s *Scheduler) tick() {
	if !s.Running() {
		return
	}
	s.schedule(s.runCycle(s.ctx))
}

// requestUpdate triggers an extra fetch unless paused or debounced.
func (s *Scheduler) requestUpdate() {
	s.mu.Lock()
	if !s.running || s.config.Paused(s.market) {
		s.mu.Unlock()
		return
	}
	now := s.now()
	if !s.lastManual.IsZero() && now.Sub(s.lastManual) < s.debounce {
		s.mu.Unlock()
		return
	}
	s.lastManual = now
	ctx := s.ctx
	s.mu.Unlock()

	s.logger.Debug("manual refresh requested")
	go s.runCycle(ctx)
}

func (s *Scheduler) currentInterval() time.Duration {
	if d := s.config.Interval(s.market); d > 0 {
		return d
	}
	return s.interval
}

// runCycle performs one fetch and returns the delay before the next one.
func (s *Scheduler) runCycle(ctx context.Context) time.Duration {
	base := s.currentInterval()
	if s.config.Paused(s.market) {
		s.logger.Debug("paused, fetch skipped")
		return base
	}

	start := s.now()
	var (
		quotes []models.Quote
		served string
	)
	err := util.Retry(ctx, s.retries, s.retryDelay, func(ctx context.Context) error {
		var ferr error
		quotes, served, ferr = s.fetch(ctx)
		return ferr
	})
	s.metrics.RecordFetch(s.market, err == nil, s.now().Sub(start).Seconds())

	if ctx.Err() != nil || !s.Running() {
		return base
	}

	if err != nil {
		backoff := s.fail(base)
		s.logger.Warn("fetch failed, backing off",
			applogger.Error(err),
			applogger.Duration("backoff_ms", backoff))
		s.metrics.RecordBackoff(s.market, backoff.Seconds())
		s.bus.Publish(models.NewWarningEvent(s.family, err.Error(), backoff, s.now()))
		return backoff
	}

	s.mu.Lock()
	recovered := s.failures > 0
	s.failures = 0
	s.mu.Unlock()
	if recovered {
		s.metrics.RecordBackoff(s.market, 0)
	}

	quotes, adjusted := ApplyOverrides(quotes, s.config.Overrides())
	if adjusted > 0 {
		s.metrics.RecordOverrides(adjusted)
	}
	ev := models.NewDataEvent(s.eventType, served, quotes, s.now())
	if d, ok := s.source.(EventDecorator); ok {
		d.Decorate(&ev)
	}
	s.bus.Publish(ev)
	s.logger.Debug("published", applogger.String("type", ev.Type), applogger.Int("count", ev.Count))
	return base
}

func (s *Scheduler) fetch(ctx context.Context) ([]models.Quote, string, error) {
	if ss, ok := s.source.(ServedSource); ok {
		return ss.FetchServed(ctx)
	}
	quotes, err := s.source.Fetch(ctx)
	return quotes, s.source.Name(), err
}

// fail records a failure and returns the backoff: twice the interval on the
// first failure, doubling on each consecutive one, capped at maxBackoff.
func (s *Scheduler) fail(base time.Duration) time.Duration {
	s.mu.Lock()
	attempt := s.failures
	s.failures++
	s.mu.Unlock()

	first := 2 * base
	if first > s.maxBackoff {
		return s.maxBackoff
	}
	return util.Doubling(first, s.maxBackoff).ForAttempt(float64(attempt))
}

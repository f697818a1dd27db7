package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"MarketRelay/internal/handler/api"
	"MarketRelay/internal/repository"
	"MarketRelay/internal/service/configstore"
	"MarketRelay/internal/service/eventbus"
	"MarketRelay/internal/service/fxrate"
	"MarketRelay/internal/usecase"
	"MarketRelay/pkg/cache"
	"MarketRelay/pkg/config"
	xhttp "MarketRelay/pkg/http"
	pkgkafka "MarketRelay/pkg/kafka"
	applogger "MarketRelay/pkg/logger"
	"MarketRelay/pkg/queue"
)

const restoreTimeout = 10 * time.Second

// Collectors is the set of schedulers enabled by config.
type Collectors []*usecase.Scheduler

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	backend    cache.Service
	config     *configstore.Store
	bus        *eventbus.Bus
	collectors Collectors
	httpServer *xhttp.Server
	stream     *api.StreamHandler

	rates       *fxrate.Provider
	mirror      *repository.KafkaEventMirror
	mirrorQueue *queue.MemoryQueue
	producer    *pkgkafka.Producer
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	backend cache.Service,
	store *configstore.Store,
	bus *eventbus.Bus,
	collectors Collectors,
	httpServer *xhttp.Server,
	stream *api.StreamHandler,
) *App {
	return &App{
		cfg:        cfg,
		logger:     l,
		backend:    backend,
		config:     store,
		bus:        bus,
		collectors: collectors,
		httpServer: httpServer,
		stream:     stream,
	}
}

// SetRateProvider enables the periodic USD/TRY refresh.
func (a *App) SetRateProvider(p *fxrate.Provider) { a.rates = p }

// SetEventMirror enables mirroring of bus events to Kafka.
func (a *App) SetEventMirror(m *repository.KafkaEventMirror, q *queue.MemoryQueue, p *pkgkafka.Producer) {
	a.mirror = m
	a.mirrorQueue = q
	a.producer = p
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Serve(ctx)
}

// Serve starts everything and blocks until ctx ends, then shuts down.
func (a *App) Serve(ctx context.Context) error {
	restoreCtx, cancelRestore := context.WithTimeout(ctx, restoreTimeout)
	a.config.Load(restoreCtx)
	a.bus.Hydrate(restoreCtx)
	cancelRestore()

	var detachMirror func()
	if a.mirror != nil {
		if err := a.mirrorQueue.Start(); err != nil {
			return err
		}
		detachMirror = a.mirror.Attach(a.bus)
		a.logger.Info("kafka event mirror started", applogger.String("topic", a.cfg.Kafka.Topic))
	}

	runCtx, stopCollectors := context.WithCancel(ctx)
	defer stopCollectors()

	var wg sync.WaitGroup
	if a.rates != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.rates.Run(runCtx)
		}()
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	// Each collector's first fetch is synchronous; start them side by side.
	for _, c := range a.collectors {
		go c.Start(runCtx)
	}
	a.logger.Info("collectors started", applogger.Int("count", len(a.collectors)))

	<-ctx.Done()
	a.logger.Info("shutdown signal received")

	stopCollectors()
	for _, c := range a.collectors {
		c.Stop()
	}
	wg.Wait()
	return a.shutdown(detachMirror)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(detachMirror func()) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.stream.Close()
	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	a.bus.Flush()

	if detachMirror != nil {
		detachMirror()
		if err := a.mirrorQueue.Stop(ctx); err != nil {
			a.logger.Warn("event mirror stop error", applogger.Error(err))
		}
	}

	a.logger.RemoveCollector()
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if err := a.backend.Close(); err != nil {
		a.logger.Warn("persistence backend close error", applogger.Error(err))
	}

	a.logger.Info("shutdown complete")
	return nil
}

package di

import (
	"fmt"
	"time"

	"MarketRelay/internal/domain/models"
	"MarketRelay/internal/domain/repository"
	"MarketRelay/internal/handler/api"
	internalrepo "MarketRelay/internal/repository"
	"MarketRelay/internal/service/coingecko"
	"MarketRelay/internal/service/configstore"
	"MarketRelay/internal/service/eventbus"
	"MarketRelay/internal/service/fxrate"
	"MarketRelay/internal/service/getmidas"
	"MarketRelay/internal/service/ratelimit"
	"MarketRelay/internal/service/refdata"
	"MarketRelay/internal/service/tradingview"
	"MarketRelay/internal/usecase"
	"MarketRelay/pkg/cache"
	"MarketRelay/pkg/config"
	xhttp "MarketRelay/pkg/http"
	"MarketRelay/pkg/http/middleware"
	pkgkafka "MarketRelay/pkg/kafka"
	applogger "MarketRelay/pkg/logger"
	"MarketRelay/pkg/metrics"
	"MarketRelay/pkg/queue"
	"MarketRelay/pkg/server"

	"github.com/google/wire"
	"github.com/labstack/echo/v4"
)

// ProviderSet is the full application graph.
var ProviderSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideBackend,
	ProvideConfigStore,
	ProvideEventBus,
	ProvideReferenceData,
	ProvideRateProvider,
	ProvideTradingViewClient,
	ProvideCollectors,
	ProvideBroadcaster,
	ProvideOrderSimulator,
	ProvideStreamHandler,
	ProvideHandlers,
	ProvideHTTPServer,
	ProvideMirrorQueue,
	ProvideEventMirror,
	ProvideApp,
)

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the root logger. With Kafka enabled and a collect
// topic set, error entries are aggregated and shipped to that topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Log.CollectTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval: 30 * time.Second,
			Topic:        cfg.Log.CollectTopic,
			Publisher:    producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return repository.NopMetrics{}
	}
	return metrics.New(nil)
}

// ProvideBackend picks Redis when configured, else JSON files under the
// state directory. Without either, state is kept in memory only.
func ProvideBackend(cfg *config.Config, l *applogger.Logger) (cache.Service, error) {
	if cfg.RedisConfigured() {
		rc, err := cache.NewRedisCache(
			cache.WithRedisURL(cfg.Redis.URL),
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisAuth(cfg.Redis.Username, cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
			cache.WithRedisTLS(cfg.Redis.TLS),
			cache.WithRedisPrefix(cfg.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		l.Info("persistence backend ready", applogger.String("backend", "redis"))
		return rc, nil
	}

	if cfg.Persistence.StateDir == "" {
		l.Warn("no state dir configured, runtime state will not survive restarts")
		return cache.NewMemoryCache(), nil
	}

	fc, err := cache.NewFileCache(cfg.Persistence.StateDir)
	if err != nil {
		return nil, fmt.Errorf("state dir: %w", err)
	}
	l.Info("persistence backend ready",
		applogger.String("backend", "file"),
		applogger.String("dir", cfg.Persistence.StateDir))
	return fc, nil
}

func ProvideConfigStore(cfg *config.Config, backend cache.Service, m repository.Metrics, l *applogger.Logger) *configstore.Store {
	iv := cfg.Collector.Intervals
	return configstore.New(backend, l,
		configstore.Defaults(iv.Global, iv.Crypto, iv.Forex, iv.Commodity, iv.Stock, iv.Intl),
		configstore.WithKey(cfg.Persistence.ConfigKey),
		configstore.WithPausedMarkets(cfg.Collector.PausedMarkets),
		configstore.WithMetrics(m),
	)
}

func ProvideEventBus(cfg *config.Config, backend cache.Service, m repository.Metrics, l *applogger.Logger) *eventbus.Bus {
	return eventbus.New(backend, l,
		eventbus.WithKey(cfg.Persistence.EventKey),
		eventbus.WithMetrics(m),
	)
}

// ProvideReferenceData loads the exchange tables. They are only read by the
// intl collector, so an empty directory is used when it is disabled.
func ProvideReferenceData(cfg *config.Config) (*refdata.Directory, error) {
	if !cfg.CollectorEnabled(config.CollectorIntl) {
		return refdata.New(nil, nil), nil
	}
	dir, err := refdata.Load(cfg.Providers.ExchangesFile, cfg.Providers.CompaniesFile)
	if err != nil {
		return nil, fmt.Errorf("reference data: %w", err)
	}
	return dir, nil
}

func ProvideRateProvider(cfg *config.Config, l *applogger.Logger) *fxrate.Provider {
	p := cfg.Providers
	return fxrate.New(p.FXRateURL, p.FXDefaultRate, p.FXRefresh, cfg.Collector.HTTPTimeout, l)
}

func ProvideTradingViewClient(cfg *config.Config) *tradingview.Client {
	return tradingview.NewClient(cfg.Providers.TradingViewURL, cfg.Providers.TradingViewSession, cfg.Collector.HTTPTimeout)
}

// ProvideCollectors builds one scheduler per enabled collector family.
func ProvideCollectors(
	cfg *config.Config,
	store *configstore.Store,
	bus *eventbus.Bus,
	tv *tradingview.Client,
	ref *refdata.Directory,
	rates *fxrate.Provider,
	m repository.Metrics,
	l *applogger.Logger,
) server.Collectors {
	c := cfg.Collector
	p := cfg.Providers
	iv := c.Intervals

	opts := func(market, eventType, family string, interval time.Duration, extra ...usecase.SchedulerOption) []usecase.SchedulerOption {
		if interval <= 0 {
			interval = iv.Global
		}
		return append([]usecase.SchedulerOption{
			usecase.WithMarket(market),
			usecase.WithEventType(eventType),
			usecase.WithFamily(family),
			usecase.WithInterval(interval),
			usecase.WithRetries(c.Retries),
			usecase.WithRetryDelay(c.RetryDelay),
			usecase.WithMaxBackoff(c.MaxBackoff),
			usecase.WithDebounce(c.Debounce),
			usecase.WithSchedulerMetrics(m),
		}, extra...)
	}

	var out server.Collectors
	if cfg.CollectorEnabled(config.CollectorCrypto) {
		src := usecase.NewFallbackSource(
			coingecko.NewSource(p.CoinGeckoURL, c.HTTPTimeout),
			tradingview.NewSource(tv, tradingview.Crypto()),
			l,
		)
		out = append(out, usecase.NewScheduler(src, store, bus, l,
			opts(models.MarketCrypto, models.EventCrypto, "coingecko", iv.Crypto)...))
	}
	if cfg.CollectorEnabled(config.CollectorForex) {
		src := tradingview.NewSource(tv, tradingview.Forex())
		out = append(out, usecase.NewScheduler(src, store, bus, l,
			opts(models.MarketForex, models.EventForex, "forex", iv.Forex)...))
	}
	if cfg.CollectorEnabled(config.CollectorCommodity) {
		src := tradingview.NewSource(tv, tradingview.Commodity())
		out = append(out, usecase.NewScheduler(src, store, bus, l,
			opts(models.MarketCommodity, models.EventCommodity, "commodity", iv.Commodity)...))
	}
	if cfg.CollectorEnabled(config.CollectorStock) {
		src := usecase.NewFallbackSource(
			getmidas.NewSource(p.GetMidasURL, c.HTTPTimeout),
			tradingview.NewSource(tv, tradingview.BIST()),
			l,
		)
		out = append(out, usecase.NewScheduler(src, store, bus, l,
			opts(models.MarketStock, models.EventStock, "bist", iv.Stock)...))
	}
	if cfg.CollectorEnabled(config.CollectorIntl) {
		src := tradingview.NewExchangesSource(tv, ref, rates, l)
		out = append(out, usecase.NewScheduler(src, store, bus, l,
			opts(models.MarketIntl, models.EventIntl, "intl", iv.Intl, usecase.WithDebounce(c.IntlDebounce))...))
	}
	return out
}

func ProvideBroadcaster(cfg *config.Config, bus *eventbus.Bus, m repository.Metrics, l *applogger.Logger) *usecase.Broadcaster {
	return usecase.NewBroadcaster(bus, l,
		usecase.WithKeepAlive(cfg.Stream.KeepAlive),
		usecase.WithBroadcasterMetrics(m),
	)
}

func ProvideOrderSimulator(bus *eventbus.Bus, m repository.Metrics, l *applogger.Logger) *usecase.OrderSimulator {
	return usecase.NewOrderSimulator(bus, l, usecase.WithOrderMetrics(m))
}

func ProvideStreamHandler(cfg *config.Config, b *usecase.Broadcaster, l *applogger.Logger) *api.StreamHandler {
	return api.NewStreamHandler(b, l, api.WithEventName(cfg.Stream.EventName))
}

func ProvideHandlers(
	cfg *config.Config,
	store *configstore.Store,
	bus *eventbus.Bus,
	orders *usecase.OrderSimulator,
	stream *api.StreamHandler,
	l *applogger.Logger,
) []xhttp.Handler {
	key := cfg.Server.APIKey
	var guards []echo.MiddlewareFunc
	if cfg.Server.RateLimit > 0 {
		guards = append(guards, middleware.RateLimit(ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateBurst)))
	}
	return []xhttp.Handler{
		api.NewPublicHandler(bus, key),
		api.NewAdminHandler(store, bus, key, l, guards...),
		api.NewTradeHandler(orders, key, guards...),
		stream,
	}
}

func ProvideHTTPServer(cfg *config.Config, handlers []xhttp.Handler, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithMetricsPath(metricsPath),
	)
}

func ProvideMirrorQueue(l *applogger.Logger) *queue.MemoryQueue {
	return queue.NewMemoryQueue(l, &queue.QueueConfig{
		Workers:    1,
		QueueSize:  512,
		RetryLimit: 2,
		RetryDelay: 500 * time.Millisecond,
	})
}

// ProvideEventMirror returns nil when Kafka is disabled.
func ProvideEventMirror(cfg *config.Config, producer *pkgkafka.Producer, q *queue.MemoryQueue, l *applogger.Logger) *internalrepo.KafkaEventMirror {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEventMirror(producer, cfg.Kafka.Topic, q, l)
}

func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	backend cache.Service,
	store *configstore.Store,
	bus *eventbus.Bus,
	collectors server.Collectors,
	rates *fxrate.Provider,
	httpServer *xhttp.Server,
	stream *api.StreamHandler,
	producer *pkgkafka.Producer,
	mirrorQueue *queue.MemoryQueue,
	mirror *internalrepo.KafkaEventMirror,
) *server.App {
	app := server.New(cfg, l, backend, store, bus, collectors, httpServer, stream)
	if cfg.CollectorEnabled(config.CollectorIntl) {
		app.SetRateProvider(rates)
	}
	if mirror != nil {
		app.SetEventMirror(mirror, mirrorQueue, producer)
	}
	return app
}

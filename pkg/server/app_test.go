package server

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"MarketRelay/internal/domain/models"
	"MarketRelay/internal/handler/api"
	"MarketRelay/internal/repository"
	"MarketRelay/internal/service/configstore"
	"MarketRelay/internal/service/eventbus"
	"MarketRelay/internal/usecase"
	"MarketRelay/pkg/cache"
	"MarketRelay/pkg/config"
	xhttp "MarketRelay/pkg/http"
	pkgkafka "MarketRelay/pkg/kafka"
	applogger "MarketRelay/pkg/logger"
	"MarketRelay/pkg/queue"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct{}

func (staticSource) Name() string { return "static" }

func (staticSource) Fetch(context.Context) ([]models.Quote, error) {
	return []models.Quote{{Symbol: "BTC", Name: "Bitcoin", Price: models.Float(100)}}, nil
}

type recordingWriter struct {
	mu     sync.Mutex
	keys   []string
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range msgs {
		w.keys = append(w.keys, string(m.Key))
	}
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestServeRestoresRunsAndShutsDown(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Server.ShutdownTimeout = 2 * time.Second

	l := applogger.Nop()
	ctx := context.Background()
	backend := cache.NewMemoryCache()
	require.NoError(t, backend.Set(ctx, "admin:config", []byte(`{"paused":{"FOREX":true}}`), 0))
	restored, _ := json.Marshal(models.NewDataEvent(models.EventForex, "tradingview", nil, time.UnixMilli(1)))
	require.NoError(t, backend.Set(ctx, "market:last", restored, 0))

	store := configstore.New(backend, l, configstore.Defaults(time.Hour, 0, 0, 0, 0, 0))
	bus := eventbus.New(backend, l)
	collectors := Collectors{
		usecase.NewScheduler(staticSource{}, store, bus, l,
			usecase.WithMarket(models.MarketCrypto),
			usecase.WithEventType(models.EventCrypto)),
	}
	httpServer := xhttp.NewServer(l, nil, xhttp.WithPort(0), xhttp.WithMetricsPath(""))
	stream := api.NewStreamHandler(usecase.NewBroadcaster(bus, l), l)

	w := &recordingWriter{}
	producer := pkgkafka.NewProducerWithWriter(w, "none")
	q := queue.NewMemoryQueue(l, &queue.QueueConfig{Workers: 1})
	mirror := repository.NewKafkaEventMirror(producer, cfg.Kafka.Topic, q, l)

	app := New(cfg, l, backend, store, bus, collectors, httpServer, stream)
	app.SetEventMirror(mirror, q, producer)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- app.Serve(runCtx) }()

	require.Eventually(t, func() bool {
		_, ok := bus.LastByType(models.EventCrypto)
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, store.Paused(models.MarketForex))
	_, ok := bus.LastByType(models.EventForex)
	assert.True(t, ok, "hydrated event keeps its per-type slot")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	assert.False(t, collectors[0].Running())
	w.mu.Lock()
	defer w.mu.Unlock()
	assert.True(t, w.closed)
	assert.Contains(t, w.keys, models.EventCrypto)
}

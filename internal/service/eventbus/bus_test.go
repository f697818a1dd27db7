package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"MarketRelay/internal/domain/models"
	"MarketRelay/pkg/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(typ string, n int) models.MarketEvent {
	quotes := make([]models.Quote, n)
	for i := range quotes {
		quotes[i] = models.Quote{Symbol: typ, Price: models.Float(float64(i + 1))}
	}
	return models.NewDataEvent(typ, "test", quotes, time.UnixMilli(1_700_000_000_000))
}

func TestPublishUpdatesCaches(t *testing.T) {
	b := New(nil, nil)

	_, ok := b.Last()
	assert.False(t, ok)

	b.Publish(event(models.EventCrypto, 2))
	b.Publish(event(models.EventStock, 1))
	b.Publish(models.NewWarningEvent("forex", "boom", time.Second, time.Now()))

	last, ok := b.Last()
	require.True(t, ok)
	assert.Equal(t, "forex_warning", last.Type)

	crypto, ok := b.LastByType(models.EventCrypto)
	require.True(t, ok)
	assert.Equal(t, 2, crypto.Count)

	_, ok = b.LastByType(models.EventForex)
	assert.False(t, ok)
}

func TestSubscribersReceiveInPublishOrder(t *testing.T) {
	b := New(nil, nil)

	var got []string
	unsub := b.Subscribe(func(ev models.MarketEvent) { got = append(got, ev.Type) })

	b.Publish(event("a", 0))
	b.Publish(event("b", 0))
	unsub()
	unsub()
	b.Publish(event("c", 0))

	assert.Equal(t, []string{"a", "b"}, got)
	assert.Zero(t, b.Subscribers())
}

func TestConcurrentPublishesAreSerialized(t *testing.T) {
	b := New(nil, nil)

	var mu sync.Mutex
	inFlight, maxInFlight, total := 0, 0, 0
	b.Subscribe(func(models.MarketEvent) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		inFlight--
		total++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(event("x", 1))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
	assert.Equal(t, 10, total)
}

func TestPanickingSubscriberDoesNotStopFanOut(t *testing.T) {
	b := New(nil, nil)
	b.Subscribe(func(models.MarketEvent) { panic("bad subscriber") })

	called := false
	b.Subscribe(func(models.MarketEvent) { called = true })

	b.Publish(event("x", 0))
	assert.True(t, called)
}

func TestSignals(t *testing.T) {
	b := New(nil, nil)

	n := 0
	off := b.OnSignal(models.SignalRequestUpdate, func() { n++ })
	b.OnSignal("other", func() { t.Fatal("wrong signal") })

	b.Emit(models.SignalRequestUpdate)
	off()
	b.Emit(models.SignalRequestUpdate)

	assert.Equal(t, 1, n)
}

func TestPersistAndHydrate(t *testing.T) {
	mr := miniredis.RunT(t)
	backend := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")

	b := New(backend, nil)
	b.Publish(event(models.EventStock, 1))
	b.Publish(event(models.EventCrypto, 3))
	b.Flush()

	raw, err := mr.Get("market:last")
	require.NoError(t, err)
	var stored models.MarketEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, models.EventCrypto, stored.Type)

	restored := New(backend, nil)
	restored.Hydrate(context.Background())

	last, ok := restored.Last()
	require.True(t, ok)
	assert.Equal(t, models.EventCrypto, last.Type)
	assert.Equal(t, 3, last.Count)

	byType, ok := restored.LastByType(models.EventCrypto)
	require.True(t, ok)
	assert.Len(t, byType.Data, 3)
}

func TestHydrateDoesNotOverwriteLiveEvent(t *testing.T) {
	backend := cache.NewMemoryCache()
	ctx := context.Background()
	data, _ := json.Marshal(event("old", 1))
	require.NoError(t, backend.Set(ctx, "market:last", data, 0))

	b := New(backend, nil)
	b.Publish(event("new", 1))
	b.Hydrate(ctx)

	last, _ := b.Last()
	assert.Equal(t, "new", last.Type)
}

func TestHydrateMissingRecord(t *testing.T) {
	b := New(cache.NewMemoryCache(), nil)
	b.Hydrate(context.Background())
	_, ok := b.Last()
	assert.False(t, ok)
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"MarketRelay/internal/domain/models"
	"MarketRelay/internal/service/eventbus"
	applogger "MarketRelay/pkg/logger"
	"MarketRelay/pkg/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic string
	key   string
	value []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	fail int
}

func (p *fakePublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail > 0 {
		p.fail--
		return errors.New("broker unavailable")
	}
	p.msgs = append(p.msgs, published{topic: topic, key: string(key), value: value.([]byte)})
	return nil
}

func (p *fakePublisher) sent() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

func TestKafkaEventMirror(t *testing.T) {
	pub := &fakePublisher{fail: 1}
	q := queue.NewMemoryQueue(applogger.Nop(), &queue.QueueConfig{RetryLimit: 2, RetryDelay: time.Millisecond})
	mirror := NewKafkaEventMirror(pub, "market.events", q, applogger.Nop())
	require.NoError(t, q.Start())

	bus := eventbus.New(nil, applogger.Nop())
	detach := mirror.Attach(bus)

	now := time.UnixMilli(1_700_000_000_000)
	bus.Publish(models.NewDataEvent(models.EventCrypto, "coingecko", []models.Quote{{Symbol: "BTC", Price: models.Float(1)}}, now))
	bus.Publish(models.NewWarningEvent("forex", "boom", time.Second, now))
	detach()
	bus.Publish(models.NewDataEvent(models.EventStock, "getmidas", nil, now))

	require.NoError(t, q.Stop(context.Background()))

	msgs := pub.sent()
	require.Len(t, msgs, 2)
	assert.Equal(t, "market.events", msgs[0].topic)
	assert.Equal(t, models.EventCrypto, msgs[0].key)
	assert.Equal(t, "forex_warning", msgs[1].key)

	var ev models.MarketEvent
	require.NoError(t, json.Unmarshal(msgs[0].value, &ev))
	assert.Equal(t, "coingecko", ev.Source)
	assert.Equal(t, now.UnixMilli(), ev.TS)
	require.Len(t, ev.Data, 1)
	assert.Equal(t, "BTC", ev.Data[0].Symbol)
}

func TestKafkaEventMirrorRejectsBadPayload(t *testing.T) {
	q := queue.NewMemoryQueue(applogger.Nop(), nil)
	mirror := NewKafkaEventMirror(&fakePublisher{}, "t", q, applogger.Nop())
	assert.Error(t, mirror.Handle(context.Background(), 42))
}

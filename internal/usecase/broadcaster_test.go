package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"MarketRelay/internal/domain/models"
	applogger "MarketRelay/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSink struct {
	events chan models.MarketEvent
	pings  chan time.Time
	fail   error
}

func newChanSink() *chanSink {
	return &chanSink{events: make(chan models.MarketEvent, 16), pings: make(chan time.Time, 16)}
}

func (s *chanSink) Send(ev models.MarketEvent) error {
	if s.fail != nil {
		return s.fail
	}
	s.events <- ev
	return nil
}

func (s *chanSink) KeepAlive(now time.Time) error {
	s.pings <- now
	return nil
}

func receive(t *testing.T, ch <-chan models.MarketEvent) models.MarketEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return models.MarketEvent{}
	}
}

func TestServeSendsSnapshotThenEvents(t *testing.T) {
	bus := newBus()
	publish(bus, models.EventCrypto, quote("BTC", 1))

	b := NewBroadcaster(bus, applogger.Nop(), WithKeepAlive(time.Hour))
	sink := newChanSink()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx, "sse", sink) }()

	first := receive(t, sink.events)
	assert.Equal(t, models.EventCrypto, first.Type)

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	publish(bus, models.EventForex, quote("EURUSD", 1.1))
	publish(bus, models.EventStock, quote("THYAO", 300))
	assert.Equal(t, models.EventForex, receive(t, sink.events).Type)
	assert.Equal(t, models.EventStock, receive(t, sink.events).Type)

	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, bus.Subscribers())
}

func TestServeWithoutSnapshot(t *testing.T) {
	bus := newBus()
	b := NewBroadcaster(bus, applogger.Nop(), WithKeepAlive(time.Hour))
	sink := newChanSink()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Serve(ctx, "ws", sink) }()

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	select {
	case ev := <-sink.events:
		t.Fatalf("unexpected event %s", ev.Type)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestServeKeepAlive(t *testing.T) {
	b := NewBroadcaster(newBus(), applogger.Nop(), WithKeepAlive(10*time.Millisecond))
	sink := newChanSink()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Serve(ctx, "sse", sink) }()

	select {
	case <-sink.pings:
	case <-time.After(time.Second):
		t.Fatal("no keep-alive")
	}
}

func TestServeStopsOnWriteError(t *testing.T) {
	bus := newBus()
	publish(bus, models.EventCrypto, quote("BTC", 1))
	sink := newChanSink()
	sink.fail = errors.New("broken pipe")

	err := NewBroadcaster(bus, applogger.Nop()).Serve(context.Background(), "sse", sink)
	assert.EqualError(t, err, "broken pipe")
	assert.Zero(t, bus.Subscribers())
}

type blockingSink struct{ release chan struct{} }

func (s blockingSink) Send(models.MarketEvent) error {
	<-s.release
	return nil
}

func (s blockingSink) KeepAlive(time.Time) error { return nil }

func TestServeDisconnectsLaggingClient(t *testing.T) {
	bus := newBus()
	publish(bus, models.EventCrypto, quote("BTC", 1))
	sink := blockingSink{release: make(chan struct{})}

	done := make(chan error, 1)
	go func() { done <- NewBroadcaster(bus, applogger.Nop()).Serve(context.Background(), "ws", sink) }()
	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i <= clientBuffer; i++ {
		publish(bus, models.EventForex, quote("EURUSD", 1.1))
	}
	close(sink.release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClientLagging)
	case <-time.After(time.Second):
		t.Fatal("lagging client not disconnected")
	}
}

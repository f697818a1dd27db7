package repository

import (
	"context"
	"time"

	"MarketRelay/internal/domain/models"
	drepo "MarketRelay/internal/domain/repository"
	applogger "MarketRelay/pkg/logger"
	"MarketRelay/pkg/queue"
)

const (
	eventJobType          = "market_event"
	defaultPublishTimeout = 5 * time.Second
)

// EventPublisher is satisfied by *kafka.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// KafkaEventMirror copies every bus event to a Kafka topic, keyed by event
// type. Delivery goes through a bounded queue; when it is full the event is
// dropped rather than delaying the bus.
type KafkaEventMirror struct {
	producer EventPublisher
	topic    string
	queue    *queue.MemoryQueue
	logger   *applogger.Logger
	timeout  time.Duration
}

// NewKafkaEventMirror registers the mirror as a job on q.
func NewKafkaEventMirror(p EventPublisher, topic string, q *queue.MemoryQueue, l *applogger.Logger) *KafkaEventMirror {
	m := &KafkaEventMirror{
		producer: p,
		topic:    topic,
		queue:    q,
		logger:   l.With(applogger.String("topic", topic)),
		timeout:  defaultPublishTimeout,
	}
	q.RegisterJob(m)
	return m
}

func (m *KafkaEventMirror) Name() string { return "kafka_event_mirror" }

func (m *KafkaEventMirror) Type() string { return eventJobType }

// Handle publishes one event.
func (m *KafkaEventMirror) Handle(ctx context.Context, payload interface{}) error {
	ev, err := queue.ParsePayload[models.MarketEvent](payload)
	if err != nil {
		return err
	}
	value, err := models.MarshalEvent(*ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.producer.Publish(ctx, m.topic, []byte(ev.Type), value)
}

// Attach subscribes the mirror to bus and returns the detach function.
func (m *KafkaEventMirror) Attach(bus drepo.EventBus) func() {
	return bus.Subscribe(func(ev models.MarketEvent) {
		if err := m.queue.Enqueue(eventJobType, ev.Clone()); err != nil {
			m.logger.Warn("event not mirrored", applogger.String("type", ev.Type), applogger.Error(err))
		}
	})
}

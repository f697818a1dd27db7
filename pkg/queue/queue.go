package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"MarketRelay/pkg/logger"
	"MarketRelay/pkg/util"
)

var (
	ErrQueueFull  = errors.New("queue full")
	ErrNotRunning = errors.New("queue not running")
	ErrNoJob      = errors.New("no job registered")
)

type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers    int           // number of workers
	QueueSize  int           // pending messages before Enqueue fails
	RetryLimit int           // retries after the first attempt
	RetryDelay time.Duration // first retry delay, doubled per attempt
}

// Message represents a message in the queue
type Message struct {
	ID        string
	Type      string
	Payload   interface{}
	Attempts  int
	Timestamp time.Time
}

// MemoryQueue is a bounded in-process work queue. Enqueue never blocks: a
// full queue rejects the message so producers on hot paths stay fast.
type MemoryQueue struct {
	logger *logger.Logger
	config *QueueConfig
	jobs   map[string]Job

	mu        sync.RWMutex
	isRunning bool
	ch        chan Message
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	seq     atomic.Uint64
	dropped atomic.Uint64
}

func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig) *MemoryQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1024
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.RetryLimit < 0 {
		config.RetryLimit = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		logger: lgr,
		config: config,
		jobs:   make(map[string]Job),
		ch:     make(chan Message, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// RegisterJob registers a single job. Jobs must be registered before Start.
func (q *MemoryQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.Type()]; exists {
		q.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	q.jobs[job.Type()] = job
	q.logger.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// Start launches the workers.
func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.isRunning {
		return fmt.Errorf("queue already running")
	}
	if q.ctx.Err() != nil {
		return fmt.Errorf("queue stopped")
	}
	q.isRunning = true

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.logger.Info("queue started",
		logger.Int("workers", q.config.Workers),
		logger.Int("size", q.config.QueueSize))
	return nil
}

// Stop stops accepting messages and waits for the workers to drain the
// backlog. When ctx ends first, in-flight handlers are cancelled.
func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		q.cancel()
		return nil
	}
	q.isRunning = false
	close(q.ch)
	q.mu.Unlock()

	doneCh := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-ctx.Done():
		q.cancel()
		q.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-doneCh:
		q.cancel()
		q.logger.Info("queue stopped", logger.Int64("dropped", int64(q.dropped.Load())))
		return nil
	}
}

// Enqueue adds a message without blocking.
func (q *MemoryQueue) Enqueue(msgType string, payload interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.isRunning {
		return ErrNotRunning
	}
	if _, exists := q.jobs[msgType]; !exists {
		return fmt.Errorf("%w for type: %s", ErrNoJob, msgType)
	}

	msg := Message{
		ID:        strconv.FormatUint(q.seq.Add(1), 10),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// PublishMessage publishes a message (implements QueueService).
func (q *MemoryQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	return q.Enqueue(msgType, payload)
}

// Dropped returns the number of messages rejected because the queue was full.
func (q *MemoryQueue) Dropped() uint64 {
	return q.dropped.Load()
}

func (q *MemoryQueue) worker(id int) {
	defer q.wg.Done()
	q.logger.Debug("queue worker started", logger.Int("worker_id", id))

	for msg := range q.ch {
		q.processMessage(msg)
	}
	q.logger.Debug("queue worker stopping", logger.Int("worker_id", id))
}

func (q *MemoryQueue) processMessage(msg Message) {
	q.mu.RLock()
	job := q.jobs[msg.Type]
	q.mu.RUnlock()

	wait := util.Doubling(q.config.RetryDelay, q.config.RetryDelay<<uint(q.config.RetryLimit))
	for {
		start := time.Now()
		err := job.Handle(q.ctx, msg.Payload)
		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) {
			q.logger.Warn("message cancelled",
				logger.String("id", msg.ID),
				logger.String("job", job.Name()),
				logger.Int64("elapsed_ms", time.Since(start).Milliseconds()))
			return
		}

		q.logger.Error("message processing error",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempt", msg.Attempts+1),
			logger.Error(err))

		if msg.Attempts >= q.config.RetryLimit {
			q.logger.Error("max retries reached",
				logger.String("id", msg.ID),
				logger.String("job", job.Name()))
			return
		}

		t := time.NewTimer(wait.ForAttempt(float64(msg.Attempts)))
		msg.Attempts++
		select {
		case <-q.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// ParsePayload converts a payload into T. Values enqueued in-process come
// back as T or *T; maps and raw JSON are decoded.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var result T

	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case map[string]interface{}:
		jsonData, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal map to json: %w", err)
		}
		if err := json.Unmarshal(jsonData, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal json to struct: %w", err)
		}
		return &result, nil
	case json.RawMessage:
		if err := json.Unmarshal(p, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		return &result, nil
	case []byte:
		if err := json.Unmarshal(p, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		return &result, nil
	default:
		return nil, fmt.Errorf("invalid payload type: %T", payload)
	}
}

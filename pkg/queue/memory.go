package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"FinCast/pkg/logger"
)

// MemoryQueue runs jobs in process. It has the same retry and dead letter
// behaviour as RedisQueue but loses pending messages on exit.
type MemoryQueue struct {
	logger  *logger.Logger
	config  *QueueConfig
	jobs    map[string]Job
	ch      chan Message
	dead    []Message
	mu      sync.RWMutex
	wg      sync.WaitGroup
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewMemoryQueue(lgr *logger.Logger, config *QueueConfig) *MemoryQueue {
	cfg := config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &MemoryQueue{
		logger: lgr,
		config: cfg,
		jobs:   make(map[string]Job),
		ch:     make(chan Message, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (q *MemoryQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.Type()] = job
}

func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return fmt.Errorf("queue already running")
	}
	q.running = true
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.logger.Info("memory queue started", logger.Int("workers", q.config.Workers))
	return nil
}

// Enqueue fails fast when the buffer is full.
func (q *MemoryQueue) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return "", ErrNotRunning
	}
	if _, ok := q.jobs[msgType]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNoJob, msgType)
	}
	msg, err := newMessage(msgType, payload)
	if err != nil {
		return "", err
	}
	select {
	case q.ch <- msg:
		return msg.ID, nil
	default:
		return "", fmt.Errorf("queue full (%d pending)", cap(q.ch))
	}
}

func (q *MemoryQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case msg := <-q.ch:
			q.process(msg)
		}
	}
}

func (q *MemoryQueue) process(msg Message) {
	q.mu.RLock()
	job := q.jobs[msg.Type]
	q.mu.RUnlock()

	err := job.Handle(q.ctx, msg.Payload)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	msg.LastError = err.Error()
	if msg.Attempts >= q.config.RetryLimit {
		q.logger.Error("job failed permanently",
			logger.String("id", msg.ID),
			logger.String("type", msg.Type),
			logger.Int("attempts", msg.Attempts+1),
			logger.Error(err))
		q.mu.Lock()
		q.dead = append(q.dead, msg)
		q.mu.Unlock()
		return
	}

	msg.Attempts++
	delay := q.config.retryDelay(msg.Attempts)
	q.logger.Warn("job failed, retrying",
		logger.String("id", msg.ID),
		logger.String("type", msg.Type),
		logger.Int("attempt", msg.Attempts),
		logger.Duration("delay_ms", delay),
		logger.Error(err))

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-q.ctx.Done():
		case <-t.C:
			select {
			case q.ch <- msg:
			case <-q.ctx.Done():
			}
		}
	}()
}

// DeadLetters returns messages that exhausted their retries.
func (q *MemoryQueue) DeadLetters() []Message {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]Message(nil), q.dead...)
}

func (q *MemoryQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		q.logger.Info("memory queue stopped")
		return nil
	}
}

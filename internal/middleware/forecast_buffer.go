package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
)

var (
	ErrInvalidEvent = errors.New("invalid forecast event")
	ErrBufferFull   = errors.New("forecast buffer full")
)

// ForecastBuffer sits between the stream consumer and the forecast store.
// It validates events and forwards them; when the store is down the batch
// is parked and retried in the background with exponential backoff.
type ForecastBuffer struct {
	next    domrepo.ForecastWriter
	metrics domrepo.Metrics

	bufSize    int
	backoffMin time.Duration
	backoffMax time.Duration
	bufCh      chan []models.ForecastEvent

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	done    chan struct{}
}

type BufferOption func(*ForecastBuffer)

// WithBufferSize sets how many batches may wait for the store.
func WithBufferSize(n int) BufferOption {
	return func(b *ForecastBuffer) {
		if n > 0 {
			b.bufSize = n
		}
	}
}

func WithBackoff(min, max time.Duration) BufferOption {
	return func(b *ForecastBuffer) {
		if min > 0 {
			b.backoffMin = min
		}
		if max >= b.backoffMin {
			b.backoffMax = max
		}
	}
}

func NewForecastBuffer(next domrepo.ForecastWriter, metrics domrepo.Metrics, opts ...BufferOption) *ForecastBuffer {
	b := &ForecastBuffer{
		next:       next,
		metrics:    metrics,
		bufSize:    256,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.bufCh = make(chan []models.ForecastEvent, b.bufSize)
	return b
}

// Start launches the retry loop.
func (b *ForecastBuffer) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go b.loop(ctx)
}

// Stop ends the retry loop after one last attempt at what is parked.
func (b *ForecastBuffer) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.mu.Unlock()
	close(b.stopCh)
	<-b.done
}

// Pending is the number of parked batches.
func (b *ForecastBuffer) Pending() int { return len(b.bufCh) }

// WriteEvents implements ForecastWriter. A batch the store rejects is owned
// by the buffer once parked; only a full buffer surfaces the store error.
func (b *ForecastBuffer) WriteEvents(ctx context.Context, events []models.ForecastEvent) error {
	for i := range events {
		if err := validateEvent(&events[i]); err != nil {
			b.metrics.RecordError("buffer_validate")
			return err
		}
	}

	start := time.Now()
	err := b.next.WriteEvents(ctx, events)
	if err == nil {
		b.metrics.RecordLatency("buffer_write", time.Since(start).Seconds())
		return nil
	}

	b.metrics.RecordError("buffer_downstream")
	select {
	case b.bufCh <- events:
		return nil
	default:
		b.metrics.RecordError("buffer_full")
		return fmt.Errorf("%w: %v", ErrBufferFull, err)
	}
}

func (b *ForecastBuffer) loop(ctx context.Context) {
	defer close(b.done)
	backoff := b.backoffMin
	for {
		select {
		case <-b.stopCh:
			b.drain(ctx)
			return
		case <-ctx.Done():
			return
		case batch := <-b.bufCh:
			if err := b.next.WriteEvents(ctx, batch); err != nil {
				b.metrics.RecordError("buffer_flush")
				select {
				case b.bufCh <- batch:
				default:
					b.metrics.RecordError("buffer_drop")
				}
				if !sleep(ctx, b.stopCh, backoff) {
					continue
				}
				backoff *= 2
				if backoff > b.backoffMax {
					backoff = b.backoffMax
				}
				continue
			}
			backoff = b.backoffMin
		}
	}
}

// drain gives every parked batch a single attempt.
func (b *ForecastBuffer) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	for {
		select {
		case batch := <-b.bufCh:
			if err := b.next.WriteEvents(ctx, batch); err != nil {
				b.metrics.RecordError("buffer_drop")
			}
		default:
			return
		}
	}
}

func sleep(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func validateEvent(ev *models.ForecastEvent) error {
	switch {
	case ev.Version == "":
		return fmt.Errorf("%w: version empty", ErrInvalidEvent)
	case ev.Record.Date.IsZero():
		return fmt.Errorf("%w: date missing", ErrInvalidEvent)
	case ev.Step < 0:
		return fmt.Errorf("%w: negative step", ErrInvalidEvent)
	case math.IsInf(ev.Record.Predicted, 0) || math.IsInf(ev.Record.Actual, 0):
		return fmt.Errorf("%w: infinite value", ErrInvalidEvent)
	}
	return nil
}

var _ domrepo.ForecastWriter = (*ForecastBuffer)(nil)

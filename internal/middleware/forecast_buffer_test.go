package middleware

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
	"FinCast/pkg/metrics"
)

type flakyWriter struct {
	mu       sync.Mutex
	failures int
	events   []models.ForecastEvent
	calls    int
}

func (w *flakyWriter) WriteEvents(_ context.Context, events []models.ForecastEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.failures > 0 {
		w.failures--
		return errors.New("connection refused")
	}
	w.events = append(w.events, events...)
	return nil
}

func (w *flakyWriter) stored() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

func event(step int) models.ForecastEvent {
	return models.ForecastEvent{
		RunID:   "r1",
		Version: "api",
		Step:    step,
		Record: models.ForecastRecord{
			Date:      time.Date(2024, 1, 1+step, 0, 0, 0, 0, time.UTC),
			Predicted: 0.01,
			Actual:    0.02,
		},
	}
}

func TestForecastBufferPassThrough(t *testing.T) {
	w := &flakyWriter{}
	b := NewForecastBuffer(w, metrics.Nop{})

	require.NoError(t, b.WriteEvents(context.Background(), []models.ForecastEvent{event(0), event(1)}))
	assert.Equal(t, 2, w.stored())
	assert.Zero(t, b.Pending())
}

func TestForecastBufferRejectsInvalid(t *testing.T) {
	w := &flakyWriter{}
	b := NewForecastBuffer(w, metrics.Nop{})

	bad := event(0)
	bad.Version = ""
	assert.ErrorIs(t, b.WriteEvents(context.Background(), []models.ForecastEvent{bad}), ErrInvalidEvent)

	bad = event(0)
	bad.Record.Actual = math.Inf(1)
	assert.ErrorIs(t, b.WriteEvents(context.Background(), []models.ForecastEvent{bad}), ErrInvalidEvent)

	// NaN is a failed step, not an invalid event
	nan := event(1)
	nan.Record.Predicted = math.NaN()
	require.NoError(t, b.WriteEvents(context.Background(), []models.ForecastEvent{nan}))
	assert.Equal(t, 1, w.calls)
}

func TestForecastBufferRetriesParkedBatch(t *testing.T) {
	w := &flakyWriter{failures: 2}
	b := NewForecastBuffer(w, metrics.Nop{}, WithBackoff(time.Millisecond, 5*time.Millisecond))
	b.Start(context.Background())
	t.Cleanup(b.Stop)

	require.NoError(t, b.WriteEvents(context.Background(), []models.ForecastEvent{event(0)}))
	assert.Eventually(t, func() bool { return w.stored() == 1 }, time.Second, 5*time.Millisecond)
}

func TestForecastBufferFull(t *testing.T) {
	w := &flakyWriter{failures: 10}
	b := NewForecastBuffer(w, metrics.Nop{}, WithBufferSize(1))

	require.NoError(t, b.WriteEvents(context.Background(), []models.ForecastEvent{event(0)}))
	assert.Equal(t, 1, b.Pending())
	err := b.WriteEvents(context.Background(), []models.ForecastEvent{event(1)})
	assert.ErrorIs(t, err, ErrBufferFull)
}

func TestForecastBufferStopDrains(t *testing.T) {
	w := &flakyWriter{failures: 1}
	b := NewForecastBuffer(w, metrics.Nop{}, WithBackoff(time.Hour, time.Hour))

	require.NoError(t, b.WriteEvents(context.Background(), []models.ForecastEvent{event(0)}))
	require.Equal(t, 1, b.Pending())

	b.Start(context.Background())
	b.Stop()
	assert.Equal(t, 1, w.stored())
}

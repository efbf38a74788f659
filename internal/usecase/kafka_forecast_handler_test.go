package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinCast/internal/domain/models"
	pkgkafka "FinCast/pkg/kafka"
)

type memoryWriter struct {
	events []models.ForecastEvent
	err    error
}

func (w *memoryWriter) WriteEvents(_ context.Context, events []models.ForecastEvent) error {
	if w.err != nil {
		return w.err
	}
	w.events = append(w.events, events...)
	return nil
}

func TestKafkaForecastHandler(t *testing.T) {
	w := &memoryWriter{}
	m := newRecordingMetrics()
	h := NewKafkaForecastHandler("fincast.forecasts", w, m)
	assert.Equal(t, "fincast.forecasts", h.Topic())

	ev := models.ForecastEvent{
		RunID: "r1",
		Step:  3,
		Record: models.ForecastRecord{
			Date:      time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Predicted: 0.1, Actual: 0.2, R2: 0.3, MSE: 0.4,
		},
	}
	b, err := json.Marshal(ev)
	require.NoError(t, err)

	// version falls back to the message key
	require.NoError(t, h.Handle(context.Background(), []byte("csv"), b))
	require.Len(t, w.events, 1)
	assert.Equal(t, "csv", w.events[0].Version)
	assert.Equal(t, 3, w.events[0].Step)
	assert.Equal(t, 0.1, w.events[0].Record.Predicted)

	err = h.Handle(context.Background(), nil, []byte("not json"))
	assert.ErrorIs(t, err, pkgkafka.ErrSkip)
	err = h.Handle(context.Background(), nil, b)
	assert.ErrorIs(t, err, pkgkafka.ErrSkip)
	assert.Equal(t, []string{"consumer_unmarshal", "consumer_invalid"}, m.errors)

	w.err = errors.New("clickhouse down")
	err = h.Handle(context.Background(), []byte("api"), b)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, pkgkafka.ErrSkip)
}

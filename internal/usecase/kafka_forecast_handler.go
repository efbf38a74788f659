package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/middleware"
	pkgkafka "FinCast/pkg/kafka"
)

// KafkaForecastHandler consumes forecast events and writes them to storage.
type KafkaForecastHandler struct {
	topic   string
	writer  domrepo.ForecastWriter
	metrics domrepo.Metrics
}

func NewKafkaForecastHandler(topic string, writer domrepo.ForecastWriter, metrics domrepo.Metrics) *KafkaForecastHandler {
	return &KafkaForecastHandler{topic: topic, writer: writer, metrics: metrics}
}

func (h *KafkaForecastHandler) Topic() string { return h.topic }

// Handle stores one ForecastEvent. Undecodable payloads are skipped, not
// retried.
func (h *KafkaForecastHandler) Handle(ctx context.Context, key, value []byte) error {
	var ev models.ForecastEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("%w: decode forecast event: %v", pkgkafka.ErrSkip, err)
	}
	if ev.Version == "" {
		ev.Version = string(key)
	}
	if ev.Version == "" || ev.Record.Date.IsZero() {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("%w: forecast event without version or date", pkgkafka.ErrSkip)
	}

	start := time.Now()
	err := h.writer.WriteEvents(ctx, []models.ForecastEvent{ev})
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if errors.Is(err, middleware.ErrInvalidEvent) {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("%w: %v", pkgkafka.ErrSkip, err)
	}
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaForecastHandler)(nil)

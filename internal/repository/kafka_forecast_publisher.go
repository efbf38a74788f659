package repository

import (
	"context"

	"FinCast/internal/domain/models"
	pkgkafka "FinCast/pkg/kafka"
)

type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
}

// KafkaForecastPublisher streams every record of a run as a ForecastEvent
// keyed by version, so one version's events stay ordered on a partition.
type KafkaForecastPublisher struct {
	producer batchPublisher
	topic    string
}

func NewKafkaForecastPublisher(p *pkgkafka.Producer, topic string) *KafkaForecastPublisher {
	return &KafkaForecastPublisher{producer: p, topic: topic}
}

func (p *KafkaForecastPublisher) Name() string { return "kafka" }

func (p *KafkaForecastPublisher) Write(ctx context.Context, run models.RunSummary, records []models.ForecastRecord) error {
	if len(records) == 0 {
		return nil
	}
	key := []byte(run.Version)
	msgs := make([]pkgkafka.Message, len(records))
	for i, r := range records {
		msgs[i] = pkgkafka.Message{
			Key: key,
			Value: models.ForecastEvent{
				RunID:   run.RunID,
				Version: run.Version,
				Symbol:  run.Symbol,
				Step:    i,
				Record:  r,
			},
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

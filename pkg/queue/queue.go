package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotRunning = errors.New("queue not running")
	ErrNoJob      = errors.New("no job registered for type")
)

// Queue is the producer and worker side of a job queue.
type Queue interface {
	RegisterJob(job Job)
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
	Start() error
	Stop(ctx context.Context) error
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers    int           // number of workers
	QueueSize  int           // buffered messages (memory queue only)
	RetryLimit int           // retries after the first attempt
	BackoffMin time.Duration // delay before the first retry
	BackoffMax time.Duration // cap for the doubling delay
}

func (c *QueueConfig) withDefaults() *QueueConfig {
	out := QueueConfig{}
	if c != nil {
		out = *c
	}
	if out.Workers <= 0 {
		out.Workers = 1
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 64
	}
	if out.BackoffMin <= 0 {
		out.BackoffMin = time.Second
	}
	if out.BackoffMax < out.BackoffMin {
		out.BackoffMax = out.BackoffMin
	}
	return &out
}

// retryDelay doubles from BackoffMin per attempt, capped at BackoffMax.
func (c *QueueConfig) retryDelay(attempt int) time.Duration {
	d := c.BackoffMin
	for i := 1; i < attempt && d < c.BackoffMax; i++ {
		d *= 2
	}
	if d > c.BackoffMax {
		d = c.BackoffMax
	}
	return d
}

// Message represents a message in the queue
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func newMessage(msgType string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// ParsePayload decodes a job payload into T.
func ParsePayload[T any](payload json.RawMessage) (*T, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	return &out, nil
}

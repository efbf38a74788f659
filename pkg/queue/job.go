package queue

import (
	"context"
	"encoding/json"
)

// Job handles one message type.
type Job interface {
	// Type is the message type the job consumes.
	Type() string

	// Handle processes one payload. A returned error schedules a retry
	// until the retry limit, then the message goes to the dead letter list.
	Handle(ctx context.Context, payload json.RawMessage) error
}

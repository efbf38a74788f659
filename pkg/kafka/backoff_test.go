package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(100*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
	// first attempt stays within [min/2, min]
	d := backoffWithJitter(100*time.Millisecond, time.Second, 1)
	assert.GreaterOrEqual(t, d, 50*time.Millisecond)
}

type panicky struct{}

func (panicky) Topic() string { return "t" }
func (panicky) Handle(context.Context, []byte, []byte) error {
	panic("boom")
}

func TestSafeHandleRecovers(t *testing.T) {
	err := safeHandle(context.Background(), panicky{}, kafka.Message{Topic: "t"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, errors.Is(err, ErrSkip))
}

func TestEncode(t *testing.T) {
	b, err := encode(map[string]int{"a": 1})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))

	b, _ = encode("raw")
	assert.Equal(t, []byte("raw"), b)
}

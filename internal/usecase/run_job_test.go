package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applogger "FinCast/pkg/logger"
	"FinCast/pkg/queue"
)

func TestRunJobHandle(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "api", 20)
	p := newTestPipeline(t, dir, newRecordingMetrics())
	job := NewRunJob(p)

	assert.Equal(t, RunJobType, job.Type())
	require.NoError(t, job.Handle(context.Background(), json.RawMessage(`{"versions":["api"]}`)))
	assert.True(t, p.results.Exists("api"))

	// csv inputs are missing: a real failure the queue should retry
	assert.Error(t, job.Handle(context.Background(), json.RawMessage(`{"versions":["csv"]}`)))
	assert.Error(t, job.Handle(context.Background(), json.RawMessage(`{`)))
}

func TestOnlyInProgress(t *testing.T) {
	busy := fmt.Errorf("%w: api", ErrRunInProgress)
	assert.True(t, onlyInProgress(busy))
	assert.True(t, onlyInProgress(errors.Join(busy, busy)))
	assert.False(t, onlyInProgress(errors.Join(busy, errors.New("disk full"))))
	assert.False(t, onlyInProgress(errors.New("disk full")))
}

func TestDispatcherInProcess(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "api", 20)
	p := newTestPipeline(t, dir, newRecordingMetrics())
	d := NewRunDispatcher(context.Background(), p, nil, applogger.Nop())

	_, err := d.Submit(context.Background(), []string{"xls"})
	assert.ErrorIs(t, err, ErrUnknownVersion)

	acc, err := d.Submit(context.Background(), []string{"api"})
	require.NoError(t, err)
	assert.False(t, acc.Queued)
	assert.NotEmpty(t, acc.RunID)
	assert.Eventually(t, func() bool { return p.results.Exists("api") }, 5*time.Second, 10*time.Millisecond)
}

func TestDispatcherQueued(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "api", 20)
	p := newTestPipeline(t, dir, newRecordingMetrics())

	q := queue.NewMemoryQueue(applogger.Nop(), &queue.QueueConfig{Workers: 1, RetryLimit: 0})
	q.RegisterJob(NewRunJob(p))
	require.NoError(t, q.Start())
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	d := NewRunDispatcher(context.Background(), p, q, applogger.Nop())
	acc, err := d.Submit(context.Background(), []string{"api"})
	require.NoError(t, err)
	assert.True(t, acc.Queued)
	assert.Equal(t, []string{"api"}, acc.Versions)
	assert.Eventually(t, func() bool { return p.results.Exists("api") }, 5*time.Second, 10*time.Millisecond)
}

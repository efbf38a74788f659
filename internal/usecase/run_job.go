package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"FinCast/internal/domain/models"
	applogger "FinCast/pkg/logger"
	"FinCast/pkg/queue"
)

const RunJobType = "forecast.run"

var ErrUnknownVersion = errors.New("unknown data version")

// RunJobPayload is the queued body of a pipeline run.
type RunJobPayload struct {
	Versions []string `json:"versions"`
}

// RunJob executes queued pipeline runs.
type RunJob struct {
	pipeline *ForecastPipeline
}

func NewRunJob(p *ForecastPipeline) *RunJob { return &RunJob{pipeline: p} }

func (j *RunJob) Type() string { return RunJobType }

// Handle runs every version of the payload. Another process already running
// a version is not a failure worth retrying.
func (j *RunJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.ParsePayload[RunJobPayload](payload)
	if err != nil {
		return err
	}
	_, err = j.pipeline.RunAll(ctx, p.Versions)
	if err != nil && onlyInProgress(err) {
		return nil
	}
	return err
}

func onlyInProgress(err error) bool {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return errors.Is(err, ErrRunInProgress)
	}
	for _, e := range joined.Unwrap() {
		if !errors.Is(e, ErrRunInProgress) {
			return false
		}
	}
	return true
}

var _ queue.Job = (*RunJob)(nil)

// RunDispatcher accepts run requests from the dashboard. With a queue the
// run is enqueued; without one it starts in a background goroutine.
type RunDispatcher struct {
	pipeline *ForecastPipeline
	queue    queue.Queue
	l        *applogger.Logger
	// base context of in-process runs; cancelled on shutdown
	ctx context.Context
}

func NewRunDispatcher(ctx context.Context, p *ForecastPipeline, q queue.Queue, l *applogger.Logger) *RunDispatcher {
	return &RunDispatcher{pipeline: p, queue: q, l: l, ctx: ctx}
}

func (d *RunDispatcher) Submit(ctx context.Context, versions []string) (*models.RunAccepted, error) {
	if len(versions) == 0 {
		versions = d.pipeline.Versions()
	}
	for _, v := range versions {
		if !slices.Contains(d.pipeline.Versions(), v) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVersion, v)
		}
	}

	if d.queue != nil {
		id, err := d.queue.Enqueue(ctx, RunJobType, RunJobPayload{Versions: versions})
		if err != nil {
			return nil, fmt.Errorf("enqueue run: %w", err)
		}
		d.l.Info("run queued", applogger.String("job_id", id), applogger.Strings("versions", versions))
		return &models.RunAccepted{RunID: id, Versions: versions, Queued: true}, nil
	}

	id := uuid.NewString()
	go func() {
		if _, err := d.pipeline.RunAll(d.ctx, versions); err != nil {
			d.l.Error("in-process run failed", applogger.String("job_id", id), applogger.Error(err))
		}
	}()
	return &models.RunAccepted{RunID: id, Versions: versions}, nil
}

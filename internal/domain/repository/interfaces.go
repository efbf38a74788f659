package repository

import (
	"context"
	"errors"

	"FinCast/internal/domain/models"
)

// ErrResultsNotFound is returned when a version has no predictions table yet.
var ErrResultsNotFound = errors.New("results not found")

// ResultStore persists and reads back the flat predictions table.
type ResultStore interface {
	Save(ctx context.Context, version string, records []models.ForecastRecord) (string, error)
	Load(ctx context.Context, version string) ([]models.ForecastRecord, error)
	Tail(ctx context.Context, version string, n int) ([]models.ForecastRecord, error)
	Exists(version string) bool
}

// ForecastSink receives the records of a finished run.
type ForecastSink interface {
	Name() string
	Write(ctx context.Context, run models.RunSummary, records []models.ForecastRecord) error
}

// ForecastWriter stores single forecast events (stream consumer side).
type ForecastWriter interface {
	WriteEvents(ctx context.Context, events []models.ForecastEvent) error
}

// RunNotifier fans run summaries out to live subscribers.
type RunNotifier interface {
	Notify(ctx context.Context, s models.RunSummary)
}

// Metrics abstracts metrics recording for the forecasting pipeline.
type Metrics interface {
	RecordRun(version string, status models.RunStatus, seconds float64)
	RecordSteps(version string, total, failed int)
	RecordLastR2(version string, r2 float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

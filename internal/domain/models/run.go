package models

import "time"

// RunStatus distinguishes a run that produced records from one that
// legitimately produced none.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunEmpty     RunStatus = "empty"
)

// RunOutcome is the result of one pipeline run for a data version.
// Fatal conditions are never encoded here; they are returned as errors.
type RunOutcome struct {
	RunID            string
	Version          string
	Symbol           string
	Status           RunStatus
	Rows             int
	InitialTrainSize int
	StepSize         int
	Alpha            float64
	Records          []ForecastRecord
	Reason           string
	OutputPath       string
	StartedAt        time.Time
	FinishedAt       time.Time
}

// FailedSteps counts records whose fit failed.
func (o *RunOutcome) FailedSteps() int {
	n := 0
	for _, r := range o.Records {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Summary builds the event published when a run finishes.
func (o *RunOutcome) Summary() RunSummary {
	return RunSummary{
		RunID:            o.RunID,
		Version:          o.Version,
		Symbol:           o.Symbol,
		Status:           o.Status,
		Rows:             o.Rows,
		Records:          len(o.Records),
		FailedSteps:      o.FailedSteps(),
		InitialTrainSize: o.InitialTrainSize,
		StepSize:         o.StepSize,
		Reason:           o.Reason,
		OutputPath:       o.OutputPath,
		DurationMS:       o.FinishedAt.Sub(o.StartedAt).Milliseconds(),
		FinishedAt:       o.FinishedAt,
	}
}

// RunSummary is the compact description of a finished run.
type RunSummary struct {
	RunID            string    `json:"run_id"`
	Version          string    `json:"version"`
	Symbol           string    `json:"symbol"`
	Status           RunStatus `json:"status"`
	Rows             int       `json:"rows"`
	Records          int       `json:"records"`
	FailedSteps      int       `json:"failed_steps"`
	InitialTrainSize int       `json:"initial_train_size"`
	StepSize         int       `json:"step_size"`
	Reason           string    `json:"reason,omitempty"`
	OutputPath       string    `json:"output_path,omitempty"`
	DurationMS       int64     `json:"duration_ms"`
	FinishedAt       time.Time `json:"finished_at"`
}

// ForecastEvent is one record published on the forecast stream.
type ForecastEvent struct {
	RunID   string         `json:"run_id"`
	Version string         `json:"version"`
	Symbol  string         `json:"symbol"`
	Step    int            `json:"step"`
	Record  ForecastRecord `json:"record"`
}

package models

import "time"

// InsightStatus tells how an insight was produced.
type InsightStatus string

const (
	InsightOK      InsightStatus = "ok"
	InsightSkipped InsightStatus = "skipped"
	InsightFailed  InsightStatus = "error"
)

// Insight is the natural-language summary of a version's latest forecasts.
type Insight struct {
	Version     string        `json:"version"`
	Status      InsightStatus `json:"status"`
	Text        string        `json:"text"`
	Cached      bool          `json:"cached"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// ForecastSummary aggregates a predictions table for the dashboard.
type ForecastSummary struct {
	Version     string     `json:"version"`
	Count       int        `json:"count"`
	FailedSteps int        `json:"failed_steps"`
	From        *time.Time `json:"from,omitempty"`
	To          *time.Time `json:"to,omitempty"`
	MeanR2      *float64   `json:"mean_r2"`
	LastR2      *float64   `json:"last_r2"`
	MeanMSE     *float64   `json:"mean_mse"`
	// Out-of-sample error of the predictions against the realized returns.
	ForecastMSE *float64 `json:"forecast_mse"`
	HitRate     *float64 `json:"hit_rate"`
}

// VersionStatus reports whether a version has results on disk.
type VersionStatus struct {
	Version    string `json:"version"`
	HasResults bool   `json:"has_results"`
}

// ForecastsRequest lists records of a version.
type ForecastsRequest struct {
	Version string `param:"version" validate:"required,oneof=api csv"`
	Limit   int    `query:"limit" default:"100" validate:"gte=0,lte=10000"`
}

// VersionRequest addresses a single version.
type VersionRequest struct {
	Version string `param:"version" validate:"required,oneof=api csv"`
}

// ChartRequest selects a chart of a version.
type ChartRequest struct {
	Version string `param:"version" validate:"required,oneof=api csv"`
	Kind    string `param:"kind" validate:"required,oneof=predictions r2"`
}

// RunRequest asks for a pipeline run; empty Versions means all configured.
type RunRequest struct {
	Versions []string `json:"versions" validate:"omitempty,dive,oneof=api csv"`
}

// RunAccepted acknowledges a queued run.
type RunAccepted struct {
	RunID    string   `json:"run_id"`
	Versions []string `json:"versions"`
	Queued   bool     `json:"queued"`
}

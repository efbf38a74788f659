package models

import (
	"encoding/json"
	"math"
	"time"
)

// ForecastRecord is one walk-forward step: the out-of-sample prediction for
// Date plus in-sample fit diagnostics of the model that produced it.
type ForecastRecord struct {
	Date      time.Time
	Predicted float64
	Actual    float64
	R2        float64 // in-sample, over the training window
	MSE       float64 // in-sample, over the training window
	Err       error   // non-nil when the backend failed to fit this step
}

// Failed reports whether the step's fit failed.
func (r ForecastRecord) Failed() bool { return r.Err != nil }

// forecastRecordJSON is the wire form; NaN values travel as null.
type forecastRecordJSON struct {
	Date      time.Time `json:"date"`
	Predicted *float64  `json:"predicted_return"`
	Actual    *float64  `json:"actual_return"`
	R2        *float64  `json:"r2"`
	MSE       *float64  `json:"mse"`
	Error     string    `json:"error,omitempty"`
}

func (r ForecastRecord) MarshalJSON() ([]byte, error) {
	out := forecastRecordJSON{
		Date:      r.Date,
		Predicted: finite(r.Predicted),
		Actual:    finite(r.Actual),
		R2:        finite(r.R2),
		MSE:       finite(r.MSE),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

func (r *ForecastRecord) UnmarshalJSON(b []byte) error {
	var in forecastRecordJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	r.Date = in.Date
	r.Predicted = orNaN(in.Predicted)
	r.Actual = orNaN(in.Actual)
	r.R2 = orNaN(in.R2)
	r.MSE = orNaN(in.MSE)
	r.Err = nil
	if in.Error != "" {
		r.Err = StepError(in.Error)
	}
	return nil
}

// StepError carries a failed step's message across process boundaries.
type StepError string

func (e StepError) Error() string { return string(e) }

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// Dataset is the clean (features, target, dates) triple handed to the engine.
type Dataset struct {
	Columns []string
	X       [][]float64
	Y       []float64
	Dates   []time.Time
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Y)
}

package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"FinCast/internal/domain/models"
	domsvc "FinCast/internal/domain/service"

	"golang.org/x/sync/errgroup"
)

var (
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrInvalidParams = errors.New("invalid forecast parameters")
	ErrBackendFit    = errors.New("backend fit failed")
)

// Params are the walk-forward inputs. The engine applies no policy of its
// own; callers choose these values.
type Params struct {
	Alpha            float64
	InitialTrainSize int
	StepSize         int
}

func (p Params) validate() error {
	if p.Alpha < 0 || math.IsNaN(p.Alpha) || math.IsInf(p.Alpha, 0) {
		return fmt.Errorf("%w: alpha must be a finite value >= 0, got %v", ErrInvalidParams, p.Alpha)
	}
	if p.InitialTrainSize < 1 {
		return fmt.Errorf("%w: initial_train_size must be >= 1, got %d", ErrInvalidParams, p.InitialTrainSize)
	}
	if p.StepSize < 1 {
		return fmt.Errorf("%w: step_size must be >= 1, got %d", ErrInvalidParams, p.StepSize)
	}
	return nil
}

// StepHook observes each finished step in step order.
type StepHook func(index int, rec models.ForecastRecord)

// Engine runs expanding-window walk-forward forecasts.
type Engine struct {
	reg     domsvc.Regressor
	workers int
	hook    StepHook
}

// Option configures Engine.
type Option func(*Engine)

// WithRegressor swaps the regression backend.
func WithRegressor(r domsvc.Regressor) Option {
	return func(e *Engine) {
		if r != nil {
			e.reg = r
		}
	}
}

// WithWorkers fans steps out over n goroutines. Output order is unaffected.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithStepHook registers a progress callback.
func WithStepHook(h StepHook) Option {
	return func(e *Engine) {
		e.hook = h
	}
}

// NewEngine creates an engine backed by Ridge unless configured otherwise.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{reg: Ridge{}, workers: 1}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StepCount is the number of records a run over n rows produces.
func StepCount(n, initialTrainSize, stepSize int) int {
	if stepSize < 1 || n <= initialTrainSize {
		return 0
	}
	return (n - initialTrainSize + stepSize - 1) / stepSize
}

// Forecast trains on rows [0, i) and predicts row i for
// i = InitialTrainSize, InitialTrainSize+StepSize, ... while i < n.
// n <= InitialTrainSize yields an empty, non-nil result. A step whose fit
// fails is still emitted, with Err set and NaN prediction and diagnostics.
func (e *Engine) Forecast(ctx context.Context, X [][]float64, y []float64, dates []time.Time, p Params) ([]models.ForecastRecord, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	n, err := checkShape(X, y, dates)
	if err != nil {
		return nil, err
	}

	steps := StepCount(n, p.InitialTrainSize, p.StepSize)
	out := make([]models.ForecastRecord, steps)
	if steps == 0 {
		return out, nil
	}

	if e.workers <= 1 {
		for s := 0; s < steps; s++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[s] = e.step(X, y, dates, p.InitialTrainSize+s*p.StepSize, p.Alpha)
			if e.hook != nil {
				e.hook(p.InitialTrainSize+s*p.StepSize, out[s])
			}
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for s := 0; s < steps; s++ {
		s := s
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// each goroutine owns exactly one slot of out
			out[s] = e.step(X, y, dates, p.InitialTrainSize+s*p.StepSize, p.Alpha)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if e.hook != nil {
		for s := range out {
			e.hook(p.InitialTrainSize+s*p.StepSize, out[s])
		}
	}
	return out, nil
}

func (e *Engine) step(X [][]float64, y []float64, dates []time.Time, i int, alpha float64) models.ForecastRecord {
	rec := models.ForecastRecord{Date: dates[i], Actual: y[i]}
	trainX, trainY := X[:i], y[:i]

	model, err := e.reg.Fit(trainX, trainY, alpha)
	if err != nil {
		return failStep(rec, i, err)
	}
	pred, err := model.Predict(X[i : i+1])
	if err != nil {
		return failStep(rec, i, err)
	}
	fitted, err := model.Predict(trainX)
	if err != nil {
		return failStep(rec, i, err)
	}

	rec.Predicted = pred[0]
	rec.R2 = R2Score(trainY, fitted)
	rec.MSE = MeanSquaredError(trainY, fitted)
	return rec
}

func failStep(rec models.ForecastRecord, i int, err error) models.ForecastRecord {
	if !errors.Is(err, ErrBackendFit) {
		err = fmt.Errorf("%w: %v", ErrBackendFit, err)
	}
	rec.Predicted = math.NaN()
	rec.R2 = math.NaN()
	rec.MSE = math.NaN()
	rec.Err = fmt.Errorf("step %d: %w", i, err)
	return rec
}

func checkShape(X [][]float64, y []float64, dates []time.Time) (int, error) {
	n := len(y)
	if len(X) != n || len(dates) != n {
		return 0, fmt.Errorf("%w: len(X)=%d len(y)=%d len(dates)=%d", ErrShapeMismatch, len(X), n, len(dates))
	}
	if n == 0 {
		return 0, nil
	}
	k := len(X[0])
	if k == 0 {
		return 0, fmt.Errorf("%w: zero feature columns", ErrShapeMismatch)
	}
	for i, row := range X {
		if len(row) != k {
			return 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), k)
		}
	}
	return n, nil
}

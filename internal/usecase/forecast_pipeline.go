package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/features"
	"FinCast/internal/services/forecast"
	"FinCast/pkg/cache"
	applogger "FinCast/pkg/logger"
)

var (
	// ErrInsufficientData marks a dataset too small to forecast. It is the
	// Reason of an empty outcome, never a returned error.
	ErrInsufficientData = errors.New("insufficient data")
	ErrRunInProgress    = errors.New("a run for this version is already in progress")
)

// SelectWindow maps the number of valid rows to the walk-forward window.
//
//	n < 2        -> ErrInsufficientData
//	n <= 15      -> max(5, n/2)
//	n <= 50      -> n/3
//	otherwise    -> n/2
//
// Small n can yield initial >= n; the engine then produces no steps.
func SelectWindow(n int) (initial, step int, err error) {
	switch {
	case n < 2:
		return 0, 0, fmt.Errorf("%w: %d valid rows", ErrInsufficientData, n)
	case n <= 15:
		initial = n / 2
		if initial < 5 {
			initial = 5
		}
	case n <= 50:
		initial = n / 3
	default:
		initial = n / 2
	}
	return initial, 1, nil
}

// PipelineConfig holds the per-deployment inputs of a run.
type PipelineConfig struct {
	Symbol        string
	Alpha         float64
	Workers       int
	Versions      []string
	FeaturePath   func(version string) string
	SentimentPath string
	LockTTL       time.Duration
}

// ForecastPipeline prepares a version's data, runs the engine with the
// window policy and hands the records to the result store and sinks.
type ForecastPipeline struct {
	cfg      PipelineConfig
	preparer *features.Preparer
	results  domrepo.ResultStore
	sinks    []domrepo.ForecastSink
	notifier domrepo.RunNotifier
	metrics  domrepo.Metrics
	locks    cache.Service
	engine   []forecast.Option
	l        *applogger.Logger
	newID    func() string
	now      func() time.Time
}

type PipelineOption func(*ForecastPipeline)

// WithSinks adds destinations besides the result store.
func WithSinks(sinks ...domrepo.ForecastSink) PipelineOption {
	return func(p *ForecastPipeline) {
		for _, s := range sinks {
			if s != nil {
				p.sinks = append(p.sinks, s)
			}
		}
	}
}

func WithNotifier(n domrepo.RunNotifier) PipelineOption {
	return func(p *ForecastPipeline) { p.notifier = n }
}

// WithRunLock serializes runs of one version across processes.
func WithRunLock(locks cache.Service) PipelineOption {
	return func(p *ForecastPipeline) { p.locks = locks }
}

// WithEngineOptions passes options to the engine built for every run.
func WithEngineOptions(opts ...forecast.Option) PipelineOption {
	return func(p *ForecastPipeline) { p.engine = append(p.engine, opts...) }
}

func NewForecastPipeline(
	cfg PipelineConfig,
	results domrepo.ResultStore,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	opts ...PipelineOption,
) *ForecastPipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	p := &ForecastPipeline{
		cfg:      cfg,
		preparer: features.NewPreparer(cfg.Symbol, features.WithLogger(l)),
		results:  results,
		metrics:  metrics,
		l:        l,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Versions returns the configured data versions.
func (p *ForecastPipeline) Versions() []string { return p.cfg.Versions }

// Run forecasts one data version. Fatal conditions (unknown version,
// missing column, I/O) are returned as errors; too little data yields an
// empty outcome whose table is still written.
func (p *ForecastPipeline) Run(ctx context.Context, version string) (*models.RunOutcome, error) {
	kind, err := features.ParseSourceKind(version)
	if err != nil {
		return nil, err
	}

	if p.locks != nil {
		key := cache.Key("fincast:run-lock", version)
		ok, err := p.locks.TryLock(ctx, key, p.cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrRunInProgress, version)
		}
		defer func() {
			if err := p.locks.Unlock(context.WithoutCancel(ctx), key); err != nil {
				p.l.Warn("release run lock failed", applogger.String("version", version), applogger.Error(err))
			}
		}()
	}

	out := &models.RunOutcome{
		RunID:     p.newID(),
		Version:   version,
		Symbol:    p.cfg.Symbol,
		Alpha:     p.cfg.Alpha,
		StartedAt: p.now(),
	}
	log := p.l.With(applogger.String("run_id", out.RunID), applogger.String("version", version))

	ds, err := p.preparer.PrepareFiles(kind, p.cfg.FeaturePath(version), p.cfg.SentimentPath)
	if err != nil {
		p.metrics.RecordError("prepare")
		return nil, fmt.Errorf("prepare %s: %w", version, err)
	}
	out.Rows = ds.Len()

	initial, step, err := SelectWindow(out.Rows)
	switch {
	case errors.Is(err, ErrInsufficientData):
		out.Reason = err.Error()
		out.Records = []models.ForecastRecord{}
	case err != nil:
		return nil, err
	default:
		out.InitialTrainSize, out.StepSize = initial, step
		out.Records, err = p.forecast(ctx, log, ds, initial, step)
		if err != nil {
			p.metrics.RecordError("forecast")
			return nil, fmt.Errorf("forecast %s: %w", version, err)
		}
		if len(out.Records) == 0 {
			out.Reason = fmt.Sprintf("initial train size %d leaves no step over %d rows", initial, out.Rows)
		}
	}

	out.Status = models.RunCompleted
	if len(out.Records) == 0 {
		out.Status = models.RunEmpty
	}

	out.OutputPath, err = p.results.Save(ctx, version, out.Records)
	if err != nil {
		p.metrics.RecordError("save_results")
		return nil, fmt.Errorf("save %s results: %w", version, err)
	}
	out.FinishedAt = p.now()

	summary := out.Summary()
	p.deliver(ctx, log, summary, out.Records)
	p.record(out)
	if p.notifier != nil {
		p.notifier.Notify(ctx, summary)
	}

	log.Info("forecast run finished",
		applogger.String("status", string(out.Status)),
		applogger.Int("rows", out.Rows),
		applogger.Int("initial_train_size", out.InitialTrainSize),
		applogger.Int("records", len(out.Records)),
		applogger.Int("failed_steps", summary.FailedSteps),
		applogger.String("output", out.OutputPath),
		applogger.Duration("duration_ms", out.FinishedAt.Sub(out.StartedAt)),
	)
	if out.Reason != "" {
		log.Warn("forecast produced no records", applogger.String("reason", out.Reason))
	}
	return out, nil
}

// RunAll runs each version in turn. A fatal error in one version does not
// stop the others; the errors are joined.
func (p *ForecastPipeline) RunAll(ctx context.Context, versions []string) ([]*models.RunOutcome, error) {
	if len(versions) == 0 {
		versions = p.cfg.Versions
	}
	outcomes := make([]*models.RunOutcome, 0, len(versions))
	var errs []error
	for _, v := range versions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		out, err := p.Run(ctx, v)
		if err != nil {
			p.l.Error("forecast run failed", applogger.String("version", v), applogger.Error(err))
			errs = append(errs, err)
			continue
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, errors.Join(errs...)
}

func (p *ForecastPipeline) forecast(ctx context.Context, log *applogger.Logger, ds *models.Dataset, initial, step int) ([]models.ForecastRecord, error) {
	hook := func(i int, rec models.ForecastRecord) {
		if rec.Failed() {
			log.Warn("step fit failed", applogger.Int("step", i), applogger.Error(rec.Err))
			return
		}
		log.Debug("step",
			applogger.Int("step", i),
			applogger.String("date", rec.Date.Format("2006-01-02")),
			applogger.Float("pred", rec.Predicted),
			applogger.Float("actual", rec.Actual),
			applogger.Float("r2", rec.R2),
		)
	}
	opts := append([]forecast.Option{forecast.WithWorkers(p.cfg.Workers), forecast.WithStepHook(hook)}, p.engine...)
	eng := forecast.NewEngine(opts...)

	return eng.Forecast(ctx, ds.X, ds.Y, ds.Dates, forecast.Params{
		Alpha:            p.cfg.Alpha,
		InitialTrainSize: initial,
		StepSize:         step,
	})
}

// deliver hands records to every sink. Sink failures are logged and counted.
func (p *ForecastPipeline) deliver(ctx context.Context, log *applogger.Logger, run models.RunSummary, records []models.ForecastRecord) {
	for _, s := range p.sinks {
		start := time.Now()
		if err := s.Write(ctx, run, records); err != nil {
			p.metrics.RecordError("sink_" + s.Name())
			log.Error("forecast sink failed", applogger.String("sink", s.Name()), applogger.Error(err))
			continue
		}
		p.metrics.RecordLatency("sink_"+s.Name(), time.Since(start).Seconds())
	}
}

func (p *ForecastPipeline) record(out *models.RunOutcome) {
	p.metrics.RecordRun(out.Version, out.Status, out.FinishedAt.Sub(out.StartedAt).Seconds())
	p.metrics.RecordSteps(out.Version, len(out.Records), out.FailedSteps())
	for i := len(out.Records) - 1; i >= 0; i-- {
		if r2 := out.Records[i].R2; !out.Records[i].Failed() && !math.IsNaN(r2) {
			p.metrics.RecordLastR2(out.Version, r2)
			break
		}
	}
}

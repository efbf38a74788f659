package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	icache "FinCast/internal/service/cache"
	imetrics "FinCast/internal/service/metrics"
	"FinCast/internal/services/chart"
	"FinCast/pkg/cache"
)

// Summarize computes the dashboard statistics of a predictions table.
// Statistics with no finite input stay nil.
func Summarize(version string, records []models.ForecastRecord) *models.ForecastSummary {
	s := &models.ForecastSummary{Version: version, Count: len(records)}
	if len(records) == 0 {
		return s
	}
	from, to := records[0].Date, records[len(records)-1].Date
	s.From, s.To = &from, &to

	var r2s, mses, sqErr []float64
	hits, directional := 0, 0
	for _, r := range records {
		if r.Failed() {
			s.FailedSteps++
		}
		if finite(r.R2) {
			r2s = append(r2s, r.R2)
		}
		if finite(r.MSE) {
			mses = append(mses, r.MSE)
		}
		if finite(r.Predicted) && finite(r.Actual) {
			d := r.Predicted - r.Actual
			sqErr = append(sqErr, d*d)
			if r.Actual != 0 {
				directional++
				if (r.Predicted > 0) == (r.Actual > 0) {
					hits++
				}
			}
		}
	}

	s.MeanR2 = meanOrNil(r2s)
	s.MeanMSE = meanOrNil(mses)
	s.ForecastMSE = meanOrNil(sqErr)
	if len(r2s) > 0 {
		last := r2s[len(r2s)-1]
		s.LastR2 = &last
	}
	if directional > 0 {
		rate := float64(hits) / float64(directional)
		s.HitRate = &rate
	}
	return s
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func meanOrNil(vs []float64) *float64 {
	if len(vs) == 0 {
		return nil
	}
	m := stat.Mean(vs, nil)
	return &m
}

// DashboardUseCase serves read-side views of the predictions tables.
type DashboardUseCase struct {
	results  domrepo.ResultStore
	versions []string
	charts   *chart.Renderer
	pngCache icache.BytesCache
	pngTTL   time.Duration
	insights *InsightGenerator
}

func NewDashboardUseCase(
	results domrepo.ResultStore,
	versions []string,
	charts *chart.Renderer,
	pngCache icache.BytesCache,
	pngTTL time.Duration,
	insights *InsightGenerator,
) *DashboardUseCase {
	return &DashboardUseCase{
		results:  results,
		versions: versions,
		charts:   charts,
		pngCache: pngCache,
		pngTTL:   pngTTL,
		insights: insights,
	}
}

// Versions reports which configured versions have a predictions table.
func (uc *DashboardUseCase) Versions() []models.VersionStatus {
	out := make([]models.VersionStatus, len(uc.versions))
	for i, v := range uc.versions {
		out[i] = models.VersionStatus{Version: v, HasResults: uc.results.Exists(v)}
	}
	return out
}

// Forecasts returns the last limit records of a version and the table size.
// A limit of 0 returns everything.
func (uc *DashboardUseCase) Forecasts(ctx context.Context, version string, limit int) ([]models.ForecastRecord, int, error) {
	records, err := uc.results.Load(ctx, version)
	if err != nil {
		return nil, 0, err
	}
	total := len(records)
	if limit > 0 && limit < total {
		records = records[total-limit:]
	}
	return records, total, nil
}

func (uc *DashboardUseCase) Summary(ctx context.Context, version string) (*models.ForecastSummary, error) {
	records, err := uc.results.Load(ctx, version)
	if err != nil {
		return nil, err
	}
	return Summarize(version, records), nil
}

// Chart renders a PNG of the version's table. Renders are cached by the
// content of the table, so a new run invalidates them.
func (uc *DashboardUseCase) Chart(ctx context.Context, version string, kind chart.Kind) ([]byte, error) {
	records, err := uc.results.Load(ctx, version)
	if err != nil {
		return nil, err
	}

	var key string
	if uc.pngCache != nil {
		digest, err := json.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("digest records: %w", err)
		}
		key = cache.Key("fincast:chart", version, kind, cache.HashKey(string(digest)))
		if b, ok, err := uc.pngCache.GetBytes(ctx, key); err == nil && ok {
			imetrics.ChartRenders.WithLabelValues(string(kind), "hit").Inc()
			return b, nil
		}
	}

	var buf bytes.Buffer
	if err := uc.charts.Render(&buf, kind, chart.Title(version), records); err != nil {
		return nil, err
	}
	imetrics.ChartRenders.WithLabelValues(string(kind), "miss").Inc()
	if uc.pngCache != nil {
		_ = uc.pngCache.SetBytes(ctx, key, buf.Bytes(), uc.pngTTL)
	}
	return buf.Bytes(), nil
}

func (uc *DashboardUseCase) Insight(ctx context.Context, version string) (*models.Insight, error) {
	return uc.insights.Generate(ctx, version)
}

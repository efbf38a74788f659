package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	domsvc "FinCast/internal/domain/service"
	imetrics "FinCast/internal/service/metrics"
	"FinCast/pkg/cache"
	applogger "FinCast/pkg/logger"
)

const promptTemplate = `
You're a FinTech analyst working on a university project.
Below is a Ridge Regression model forecast for BTC using %s data (last %d days):

%s

Write a concise summary (3–5 lines) discussing:
1. Any noticeable prediction trend,
2. Forecast accuracy (visually),
3. Whether model seems stable or volatile.

Respond in a professional tone suitable for an academic report.
`

// BuildPrompt renders the analyst prompt for a version's latest records.
// days is the window the prompt announces, not necessarily len(records).
func BuildPrompt(version string, days int, records []models.ForecastRecord) string {
	return fmt.Sprintf(promptTemplate, strings.ToUpper(version), days, FormatTable(records))
}

// FormatTable lays records out as right-aligned text columns.
func FormatTable(records []models.ForecastRecord) string {
	header := []string{"date", "predicted_return", "actual_return", "r2", "mse"}
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{
			r.Date.Format("2006-01-02"),
			tableFloat(r.Predicted),
			tableFloat(r.Actual),
			tableFloat(r.R2),
			tableFloat(r.MSE),
		}
	}

	widths := make([]int, len(header))
	for j, h := range header {
		widths[j] = len(h)
		for _, row := range rows {
			if len(row[j]) > widths[j] {
				widths[j] = len(row[j])
			}
		}
	}

	var b strings.Builder
	line := func(cells []string) {
		for j, c := range cells {
			if j > 0 {
				b.WriteString("  ")
			}
			b.WriteString(strings.Repeat(" ", widths[j]-len(c)))
			b.WriteString(c)
		}
	}
	line(header)
	for _, row := range rows {
		b.WriteByte('\n')
		line(row)
	}
	return b.String()
}

func tableFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// InsightGenerator summarizes the latest forecasts of a version in prose.
type InsightGenerator struct {
	results domrepo.ResultStore
	gen     domsvc.TextGenerator
	cache   cache.Service
	ttl     time.Duration
	rows    int
	l       *applogger.Logger
	now     func() time.Time
}

type InsightOption func(*InsightGenerator)

// WithInsightCache caches generated text per version and prompt digest.
func WithInsightCache(c cache.Service, ttl time.Duration) InsightOption {
	return func(g *InsightGenerator) {
		g.cache = c
		g.ttl = ttl
	}
}

// WithInsightRows overrides how many trailing records go into the prompt.
func WithInsightRows(n int) InsightOption {
	return func(g *InsightGenerator) {
		if n > 0 {
			g.rows = n
		}
	}
}

func NewInsightGenerator(results domrepo.ResultStore, gen domsvc.TextGenerator, l *applogger.Logger, opts ...InsightOption) *InsightGenerator {
	g := &InsightGenerator{results: results, gen: gen, rows: 10, l: l, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate never fails on the text backend: its errors are rendered inline
// with status InsightFailed. A version without results is InsightSkipped.
// Only reading the results table can return an error.
func (g *InsightGenerator) Generate(ctx context.Context, version string) (*models.Insight, error) {
	records, err := g.results.Tail(ctx, version, g.rows)
	if errors.Is(err, domrepo.ErrResultsNotFound) {
		return &models.Insight{
			Version:     version,
			Status:      models.InsightSkipped,
			Text:        "[Skipped] " + err.Error(),
			GeneratedAt: g.now(),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s predictions: %w", version, err)
	}

	prompt := BuildPrompt(version, g.rows, records)
	key := cache.Key("fincast:insight", version, cache.HashKey(prompt))
	if g.cache != nil {
		var hit models.Insight
		if err := g.cache.Get(ctx, key, &hit); err == nil {
			hit.Cached = true
			imetrics.InsightLatency.WithLabelValues(version, "true").Observe(0)
			return &hit, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			g.l.Warn("insight cache read failed", applogger.String("version", version), applogger.Error(err))
		}
	}

	start := time.Now()
	text, err := g.gen.Generate(ctx, prompt)
	imetrics.InsightLatency.WithLabelValues(version, "false").Observe(time.Since(start).Seconds())
	if err != nil {
		imetrics.InsightErrors.WithLabelValues(version).Inc()
		g.l.Warn("insight generation failed", applogger.String("version", version), applogger.Error(err))
		return &models.Insight{
			Version:     version,
			Status:      models.InsightFailed,
			Text:        "[Error generating insight] " + err.Error(),
			GeneratedAt: g.now(),
		}, nil
	}

	in := &models.Insight{
		Version:     version,
		Status:      models.InsightOK,
		Text:        text,
		GeneratedAt: g.now(),
	}
	if g.cache != nil {
		if err := g.cache.Set(ctx, key, in, g.ttl); err != nil {
			g.l.Warn("insight cache write failed", applogger.String("version", version), applogger.Error(err))
		}
	}
	return in, nil
}

// GenerateAll produces one insight per version, in order.
func (g *InsightGenerator) GenerateAll(ctx context.Context, versions []string) ([]*models.Insight, error) {
	out := make([]*models.Insight, 0, len(versions))
	for _, v := range versions {
		in, err := g.Generate(ctx, v)
		if err != nil {
			return out, err
		}
		out = append(out, in)
	}
	return out, nil
}

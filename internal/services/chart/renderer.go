package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"FinCast/internal/domain/models"
)

// Kind selects one of the two charts drawn per version.
type Kind string

const (
	KindPredictions Kind = "predictions"
	KindR2          Kind = "r2"
)

var (
	ErrNoData      = errors.New("chart: nothing to plot")
	ErrUnknownKind = errors.New("chart: unknown kind")
)

// ParseKind accepts "predictions" and "r2".
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindPredictions, KindR2:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Kinds lists every chart in render order.
var Kinds = []Kind{KindPredictions, KindR2}

// Title is the chart title prefix for a data version, e.g. "API Version".
func Title(version string) string {
	return strings.ToUpper(version) + " Version"
}

// FileName is plot_{version}_{kind}.png.
func FileName(version string, kind Kind) string {
	return fmt.Sprintf("plot_%s_%s.png", version, kind)
}

var (
	actualColor    = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	predictedColor = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// Renderer draws forecast charts as PNG.
type Renderer struct {
	dateFormat string
}

func NewRenderer() *Renderer {
	return &Renderer{dateFormat: "2006-01-02"}
}

// Render writes one chart of records to w.
func (r *Renderer) Render(w io.Writer, kind Kind, title string, records []models.ForecastRecord) error {
	p, width, height, err := r.build(kind, title, records)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}

// RenderFile writes one chart to path.
func (r *Renderer) RenderFile(path string, kind Kind, title string, records []models.ForecastRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	if err := r.Render(f, kind, title, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// RenderVersion writes both charts of a version into dir and returns their paths.
func (r *Renderer) RenderVersion(dir, version string, records []models.ForecastRecord) ([]string, error) {
	paths := make([]string, 0, len(Kinds))
	for _, k := range Kinds {
		path := filepath.Join(dir, FileName(version, k))
		if err := r.RenderFile(path, k, Title(version), records); err != nil {
			return paths, fmt.Errorf("render %s %s: %w", version, k, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (r *Renderer) build(kind Kind, title string, records []models.ForecastRecord) (*plot.Plot, vg.Length, vg.Length, error) {
	switch kind {
	case KindPredictions:
		p, err := r.predictions(title, records)
		return p, 10 * vg.Inch, 5 * vg.Inch, err
	case KindR2:
		p, err := r.r2(title, records)
		return p, 10 * vg.Inch, 4 * vg.Inch, err
	}
	return nil, 0, 0, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func (r *Renderer) base(title, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Date"
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = plot.TimeTicks{Format: r.dateFormat}
	p.Add(plotter.NewGrid())
	return p
}

func (r *Renderer) predictions(title string, records []models.ForecastRecord) (*plot.Plot, error) {
	actual := series(records, func(rec models.ForecastRecord) float64 { return rec.Actual })
	predicted := series(records, func(rec models.ForecastRecord) float64 { return rec.Predicted })
	if len(actual) == 0 && len(predicted) == 0 {
		return nil, ErrNoData
	}

	p := r.base(title+": Predicted vs Actual BTC Returns", "Return")
	p.Legend.Top = true
	for _, s := range []struct {
		label string
		xys   plotter.XYs
		c     color.Color
	}{
		{"Actual Return", actual, actualColor},
		{"Predicted Return", predicted, predictedColor},
	} {
		if len(s.xys) == 0 {
			continue
		}
		line, err := plotter.NewLine(s.xys)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", s.label, err)
		}
		line.LineStyle.Width = vg.Points(2)
		line.LineStyle.Color = s.c
		p.Add(line)
		p.Legend.Add(s.label, line)
	}
	return p, nil
}

func (r *Renderer) r2(title string, records []models.ForecastRecord) (*plot.Plot, error) {
	xys := series(records, func(rec models.ForecastRecord) float64 { return rec.R2 })
	if len(xys) == 0 {
		return nil, ErrNoData
	}

	p := r.base(title+": R-squared Over Time", "R²")
	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return nil, fmt.Errorf("r2 line: %w", err)
	}
	line.LineStyle.Color = actualColor
	points.Shape = draw.CircleGlyph{}
	points.Color = actualColor
	p.Add(line, points)
	return p, nil
}

// series keeps the finite values; failed steps leave a gap in the curve.
func series(records []models.ForecastRecord, value func(models.ForecastRecord) float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(records))
	for _, rec := range records {
		v := value(rec)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(rec.Date.Unix()), Y: v})
	}
	return xys
}

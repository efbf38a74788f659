package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/pkg/util"
)

// ResultHeader is the predictions table layout.
var ResultHeader = []string{"date", "predicted_return", "actual_return", "r2", "mse"}

// errStepFailed marks rows read back with no prediction.
const errStepFailed = models.StepError("fit failed")

// CSVResultStore keeps one predictions CSV per data version.
type CSVResultStore struct {
	pathFor func(version string) string
}

// NewCSVResultStore stores version v at pathFor(v).
func NewCSVResultStore(pathFor func(version string) string) *CSVResultStore {
	return &CSVResultStore{pathFor: pathFor}
}

// Path returns where version is stored.
func (s *CSVResultStore) Path(version string) string {
	return s.pathFor(version)
}

// Save writes records sorted by date, replacing any previous table. The
// file is renamed into place so readers never see a partial table. An
// empty slice produces a header-only file.
func (s *CSVResultStore) Save(_ context.Context, version string, records []models.ForecastRecord) (string, error) {
	path := s.pathFor(version)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteResults(tmp, records); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("publish results: %w", err)
	}
	return path, nil
}

// WriteResults encodes records as the predictions table.
func WriteResults(w io.Writer, records []models.ForecastRecord) error {
	sorted := make([]models.ForecastRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	dates := make([]time.Time, len(sorted))
	for i, r := range sorted {
		dates[i] = r.Date
	}
	formatDate := util.FormatDate(dates)

	cw := csv.NewWriter(w)
	if err := cw.Write(ResultHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range sorted {
		row := []string{
			formatDate(r.Date),
			util.FormatFloat(r.Predicted),
			util.FormatFloat(r.Actual),
			util.FormatFloat(r.R2),
			util.FormatFloat(r.MSE),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush results: %w", err)
	}
	return nil
}

// Load reads a version's table. A missing file is ErrResultsNotFound; a
// zero-byte or header-only file is an empty table.
func (s *CSVResultStore) Load(_ context.Context, version string) ([]models.ForecastRecord, error) {
	f, err := os.Open(s.pathFor(version))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domrepo.ErrResultsNotFound, version)
		}
		return nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()
	return ReadResults(f)
}

// ReadResults decodes a predictions table.
func ReadResults(r io.Reader) ([]models.ForecastRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []models.ForecastRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read results header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, col := range ResultHeader {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("results table missing column %q", col)
		}
	}

	out := []models.ForecastRecord{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read results line %d: %w", line, err)
		}
		date, ok := util.ParseTime(field(rec, idx["date"]))
		if !ok {
			return nil, fmt.Errorf("results line %d: bad date %q", line, field(rec, idx["date"]))
		}
		fr := models.ForecastRecord{
			Date:      date,
			Predicted: util.ParseFloatOrNaN(field(rec, idx["predicted_return"])),
			Actual:    util.ParseFloatOrNaN(field(rec, idx["actual_return"])),
			R2:        util.ParseFloatOrNaN(field(rec, idx["r2"])),
			MSE:       util.ParseFloatOrNaN(field(rec, idx["mse"])),
		}
		if math.IsNaN(fr.Predicted) {
			fr.Err = errStepFailed
		}
		out = append(out, fr)
	}
	return out, nil
}

// Tail returns the last n records (all when the table is shorter).
func (s *CSVResultStore) Tail(ctx context.Context, version string, n int) ([]models.ForecastRecord, error) {
	recs, err := s.Load(ctx, version)
	if err != nil {
		return nil, err
	}
	if n >= 0 && len(recs) > n {
		recs = recs[len(recs)-n:]
	}
	return recs, nil
}

func (s *CSVResultStore) Exists(version string) bool {
	_, err := os.Stat(s.pathFor(version))
	return err == nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"FinCast/internal/domain/models"
	xlogger "FinCast/pkg/logger"
	"FinCast/pkg/util"
)

// Preparer turns raw feature and sentiment tables into the clean
// (features, target, dates) triple for one symbol.
type Preparer struct {
	symbol string
	schema Schema
	logger *xlogger.Logger
}

// Option configures Preparer.
type Option func(*Preparer)

// WithSchema overrides the accepted column aliases.
func WithSchema(s Schema) Option {
	return func(p *Preparer) {
		p.schema = s
	}
}

// WithLogger enables debug logging of row counts.
func WithLogger(l *xlogger.Logger) Option {
	return func(p *Preparer) {
		p.logger = l
	}
}

// NewPreparer creates a preparer for symbol.
func NewPreparer(symbol string, opts ...Option) *Preparer {
	p := &Preparer{symbol: symbol, schema: DefaultSchema()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PrepareFiles opens both inputs and runs Prepare.
func (p *Preparer) PrepareFiles(kind SourceKind, featurePath, sentimentPath string) (*models.Dataset, error) {
	ff, err := os.Open(featurePath)
	if err != nil {
		return nil, fmt.Errorf("open features: %w", err)
	}
	defer ff.Close()

	sf, err := os.Open(sentimentPath)
	if err != nil {
		return nil, fmt.Errorf("open sentiment: %w", err)
	}
	defer sf.Close()

	return p.prepare(kind, featurePath, ff, sentimentPath, sf)
}

// Prepare reads features and sentiment CSV streams.
func (p *Preparer) Prepare(kind SourceKind, features, sentiment io.Reader) (*models.Dataset, error) {
	return p.prepare(kind, "features", features, "sentiment", sentiment)
}

func (p *Preparer) prepare(kind SourceKind, fname string, fr io.Reader, sname string, sr io.Reader) (*models.Dataset, error) {
	rows, err := p.readFeatures(kind, fname, fr)
	if err != nil {
		return nil, err
	}
	symbolRows := len(rows)

	sortByDate(rows)
	rows = dropFlatReturns(rows)
	withReturn := len(rows)
	rows = shiftTarget(rows)

	sent, err := p.readSentiment(sname, sr)
	if err != nil {
		return nil, err
	}
	rows = joinLaggedSentiment(rows, lagSentiment(sent))

	ds := toDataset(rows)
	if p.logger != nil {
		p.logger.Debug("features prepared",
			xlogger.String("source", kind.String()),
			xlogger.String("symbol", p.symbol),
			xlogger.Int("symbol_rows", symbolRows),
			xlogger.Int("nonzero_return_rows", withReturn),
			xlogger.Int("sentiment_rows", len(sent)),
			xlogger.Int("valid_rows", ds.Len()),
		)
	}
	return ds, nil
}

func (p *Preparer) readFeatures(kind SourceKind, name string, r io.Reader) ([]row, error) {
	cr := newCSVReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &MissingColumnError{File: name, Column: kind.Discriminator(), Accepted: []string{kind.Discriminator()}}
		}
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}
	idx, discIdx, err := p.schema.resolveFeatures(name, header, kind)
	if err != nil {
		return nil, err
	}

	var rows []row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", name, line, err)
		}
		if strings.TrimSpace(cell(rec, discIdx)) != p.symbol {
			continue
		}
		date, ok := util.ParseTime(cell(rec, idx[ColDate]))
		if !ok {
			continue
		}
		r := row{date: date}
		for j, col := range rawFeatureColumns {
			r.features[j] = util.ParseFloatOrNaN(cell(rec, idx[col]))
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func (p *Preparer) readSentiment(name string, r io.Reader) ([]sentimentPoint, error) {
	cr := newCSVReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &MissingColumnError{File: name, Column: ColDate, Accepted: []string{ColDate}}
		}
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}
	idx, err := p.schema.resolveSentiment(name, header)
	if err != nil {
		return nil, err
	}

	var out []sentimentPoint
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", name, line, err)
		}
		date, ok := util.ParseTime(cell(rec, idx[ColDate]))
		if !ok {
			continue
		}
		out = append(out, sentimentPoint{date: date, score: util.ParseFloatOrNaN(cell(rec, idx[ColSentiment]))})
	}
	return out, nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return cr
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

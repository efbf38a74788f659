package features

import (
	"errors"
	"fmt"
	"strings"
)

// SourceKind tags which raw feature layout a file follows. Each kind
// guarantees its own symbol discriminator column.
type SourceKind int

const (
	SourceUnknown SourceKind = iota
	SourceAPI
	SourceCSV
)

var ErrUnknownSource = errors.New("unknown feature source")

// ParseSourceKind maps a data version name ("api", "csv") to its kind.
func ParseSourceKind(s string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "api":
		return SourceAPI, nil
	case "csv":
		return SourceCSV, nil
	default:
		return SourceUnknown, fmt.Errorf("%w: %q", ErrUnknownSource, s)
	}
}

func (k SourceKind) String() string {
	switch k {
	case SourceAPI:
		return "api"
	case SourceCSV:
		return "csv"
	default:
		return "unknown"
	}
}

// Discriminator is the column holding the asset symbol for this kind.
func (k SourceKind) Discriminator() string {
	switch k {
	case SourceAPI:
		return "base"
	case SourceCSV:
		return "symbol"
	default:
		return ""
	}
}

// Canonical column names.
const (
	ColDate          = "date"
	ColReturn        = "return"
	ColLogReturn     = "log_return"
	ColMomentum      = "momentum"
	ColVolatility    = "volatility"
	ColVolume        = "volume"
	ColSentiment     = "sentiment"
	ColSentimentLag1 = "sentiment_lag1"
)

// FeatureColumns is the fixed model input order.
var FeatureColumns = []string{ColReturn, ColLogReturn, ColMomentum, ColVolatility, ColVolume, ColSentimentLag1}

// rawFeatureColumns are read from the feature file, in FeatureColumns order.
var rawFeatureColumns = []string{ColReturn, ColLogReturn, ColMomentum, ColVolatility, ColVolume}

// Schema declares which raw header names are accepted for each canonical
// column. The first alias present in a header wins.
type Schema struct {
	Features  map[string][]string
	Sentiment map[string][]string
}

// DefaultSchema accepts the layouts produced by both data versions.
func DefaultSchema() Schema {
	return Schema{
		Features: map[string][]string{
			ColDate:       {"date"},
			ColReturn:     {"return"},
			ColLogReturn:  {"log_return"},
			ColMomentum:   {"momentum"},
			ColVolatility: {"volatility"},
			ColVolume:     {"quote_volume", "quote_vol"},
		},
		Sentiment: map[string][]string{
			ColDate:      {"date"},
			ColSentiment: {"vader_sentiment"},
		},
	}
}

// MissingColumnError reports a required column with no accepted alias in
// the input header.
type MissingColumnError struct {
	File     string
	Column   string
	Accepted []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q in %s (accepted: %s)", e.Column, e.File, strings.Join(e.Accepted, ", "))
}

// columnIndex maps canonical names to positions in a concrete header.
type columnIndex map[string]int

func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

func resolve(file string, header []string, aliases map[string][]string, required []string) (columnIndex, error) {
	byName := indexHeader(header)
	out := make(columnIndex, len(required))
	for _, col := range required {
		accepted := aliases[col]
		if len(accepted) == 0 {
			accepted = []string{col}
		}
		found := false
		for _, a := range accepted {
			if i, ok := byName[a]; ok {
				out[col] = i
				found = true
				break
			}
		}
		if !found {
			return nil, &MissingColumnError{File: file, Column: col, Accepted: accepted}
		}
	}
	return out, nil
}

// resolveFeatures resolves the feature header for kind, including its
// discriminator column.
func (s Schema) resolveFeatures(file string, header []string, kind SourceKind) (columnIndex, int, error) {
	disc := kind.Discriminator()
	if disc == "" {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnknownSource, kind)
	}
	discIdx, ok := indexHeader(header)[disc]
	if !ok {
		return nil, 0, &MissingColumnError{File: file, Column: disc, Accepted: []string{disc}}
	}
	required := append([]string{ColDate}, rawFeatureColumns...)
	idx, err := resolve(file, header, s.Features, required)
	if err != nil {
		return nil, 0, err
	}
	return idx, discIdx, nil
}

func (s Schema) resolveSentiment(file string, header []string) (columnIndex, error) {
	return resolve(file, header, s.Sentiment, []string{ColDate, ColSentiment})
}

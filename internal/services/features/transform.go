package features

import (
	"math"
	"sort"
	"time"

	"FinCast/internal/domain/models"
)

// row holds one observation; missing values are NaN.
type row struct {
	date      time.Time
	features  [5]float64 // rawFeatureColumns order
	target    float64
	sentiment float64
}

type sentimentPoint struct {
	date  time.Time
	score float64
}

func sortByDate(rows []row) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].date.Before(rows[j].date) })
}

// dropFlatReturns removes rows whose return is missing or exactly zero.
func dropFlatReturns(rows []row) []row {
	out := rows[:0]
	for _, r := range rows {
		ret := r.features[0]
		if math.IsNaN(ret) || ret == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

// shiftTarget sets each row's target to the following row's return and
// drops the last row, which has no successor.
func shiftTarget(rows []row) []row {
	if len(rows) == 0 {
		return rows
	}
	for i := 0; i < len(rows)-1; i++ {
		rows[i].target = rows[i+1].features[0]
	}
	return rows[:len(rows)-1]
}

// lagSentiment sorts the series and maps each date to the previous
// observation's score. Duplicate dates keep every lagged value.
func lagSentiment(points []sentimentPoint) map[int64][]float64 {
	sort.SliceStable(points, func(i, j int) bool { return points[i].date.Before(points[j].date) })
	out := make(map[int64][]float64, len(points))
	for i, p := range points {
		lag := math.NaN()
		if i > 0 {
			lag = points[i-1].score
		}
		k := p.date.UnixNano()
		out[k] = append(out[k], lag)
	}
	return out
}

// joinLaggedSentiment left-joins lagged sentiment on date; a feature row
// with several matching sentiment rows is repeated once per match.
// Unmatched or missing sentiment becomes 0.
func joinLaggedSentiment(rows []row, lagged map[int64][]float64) []row {
	out := make([]row, 0, len(rows))
	for _, r := range rows {
		matches, ok := lagged[r.date.UnixNano()]
		if !ok {
			r.sentiment = 0
			out = append(out, r)
			continue
		}
		for _, s := range matches {
			if math.IsNaN(s) {
				s = 0
			}
			r.sentiment = s
			out = append(out, r)
		}
	}
	return out
}

// toDataset keeps rows with every feature and the target present.
func toDataset(rows []row) *models.Dataset {
	ds := &models.Dataset{
		Columns: append([]string(nil), FeatureColumns...),
		X:       make([][]float64, 0, len(rows)),
		Y:       make([]float64, 0, len(rows)),
		Dates:   make([]time.Time, 0, len(rows)),
	}
	for _, r := range rows {
		if math.IsNaN(r.target) || hasNaN(r.features[:]) {
			continue
		}
		x := make([]float64, 0, len(FeatureColumns))
		x = append(x, r.features[:]...)
		x = append(x, r.sentiment)
		ds.X = append(ds.X, x)
		ds.Y = append(ds.Y, r.target)
		ds.Dates = append(ds.Dates, r.date)
	}
	return ds
}

func hasNaN(vs []float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

package util

import (
	"math"
	"strconv"
	"strings"
)

// ParseFloatOrNaN reads a numeric cell; blanks and garbage become NaN.
func ParseFloatOrNaN(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// FormatFloat renders v for CSV output; NaN becomes an empty cell.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

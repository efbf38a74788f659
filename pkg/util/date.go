package util

import (
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07:00",
}

// ParseTime tries calendar dates, RFC3339 variants, and unix seconds. Returns (t, true) if any worked.
// Layouts without a zone are read as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// FormatDate renders dates as 2006-01-02 when every value is a UTC midnight,
// RFC3339 otherwise, so a column keeps one layout.
func FormatDate(dates []time.Time) func(time.Time) string {
	daily := true
	for _, d := range dates {
		u := d.UTC()
		if u.Hour() != 0 || u.Minute() != 0 || u.Second() != 0 || u.Nanosecond() != 0 {
			daily = false
			break
		}
	}
	if daily {
		return func(t time.Time) string { return t.UTC().Format("2006-01-02") }
	}
	return func(t time.Time) string { return t.Format(time.RFC3339) }
}

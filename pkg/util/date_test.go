package util

import (
	"math"
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeCalendarDate(t *testing.T) {
	got, ok := ParseTime("2024-03-05")
	if !ok {
		t.Fatalf("expected ok")
	}
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if _, ok := ParseTime("2024-03-05 13:30:00"); !ok {
		t.Fatalf("expected datetime layout to parse")
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestFormatDate(t *testing.T) {
	days := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	if got := FormatDate(days)(days[1]); got != "2024-01-02" {
		t.Fatalf("daily format: %q", got)
	}
	mixed := append(days, time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC))
	if got := FormatDate(mixed)(mixed[2]); got != "2024-01-02T06:00:00Z" {
		t.Fatalf("intraday format: %q", got)
	}
}

func TestParseFloatOrNaN(t *testing.T) {
	if v := ParseFloatOrNaN(" 0.25 "); v != 0.25 {
		t.Fatalf("got %v", v)
	}
	for _, s := range []string{"", "abc", "NaN"} {
		if v := ParseFloatOrNaN(s); !math.IsNaN(v) {
			t.Fatalf("%q: expected NaN, got %v", s, v)
		}
	}
	if FormatFloat(math.NaN()) != "" || FormatFloat(1.5) != "1.5" {
		t.Fatalf("unexpected float formatting")
	}
}

package util

import (
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

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("2023-01-31")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v", got)
	}

	got, ok = ParseDate("2023-01-31T15:04:05Z")
	if !ok || FormatDate(got) != "2023-01-31" {
		t.Fatalf("expected truncation to calendar date, got %v", got)
	}

	if _, ok := ParseDate("31/01/2023"); ok {
		t.Fatalf("expected failure for unsupported layout")
	}
}

func TestFormatDateZero(t *testing.T) {
	if FormatDate(time.Time{}) != "" {
		t.Fatalf("expected empty string for zero time")
	}
}

func TestNormalizeSymbols(t *testing.T) {
	got := NormalizeSymbols([]string{" aapl", "", "MSFT ", "aapl"})
	want := []string{"AAPL", "MSFT", "AAPL"}
	if len(got) != len(want) {
		t.Fatalf("unexpected length %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: want %s got %s", i, want[i], got[i])
		}
	}
}

package util

import (
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	got, ok := ParseDay("2025-03-09")
	if !ok {
		t.Fatalf("expected ok")
	}
	if FormatDay(got) != "2025-03-09" {
		t.Fatalf("round trip failed: %v", got)
	}
	if _, ok := ParseDay("09/03/2025"); ok {
		t.Fatalf("expected parse failure")
	}
}

func TestDayFloor(t *testing.T) {
	in := time.Date(2025, 3, 9, 17, 45, 12, 0, time.FixedZone("x", 3600))
	got := DayFloor(in)
	if got.Hour() != 0 || got.Minute() != 0 || got.Location() != time.UTC {
		t.Fatalf("not floored: %v", got)
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 3, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2025, 3, 9, 1, 0, 0, 0, time.UTC)
	if d := DaysBetween(a, b); d != 8 {
		t.Fatalf("expected 8 days, got %d", d)
	}
	if d := DaysBetween(b, a); d != -8 {
		t.Fatalf("expected -8 days, got %d", d)
	}
}

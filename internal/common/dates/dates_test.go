package dates

import (
	"testing"
	"time"
)

func TestDaysBetween(t *testing.T) {
	from := time.Date(2025, 9, 13, 23, 50, 0, 0, time.UTC)
	to := time.Date(2025, 9, 15, 0, 10, 0, 0, time.UTC)
	if got := DaysBetween(from, to); got != 2 {
		t.Fatalf("expected 2 days, got %d", got)
	}
	if got := DaysBetween(to, from); got != -2 {
		t.Fatalf("expected -2 days, got %d", got)
	}
	if got := DaysBetween(from, from.Add(time.Hour)); got != 0 {
		t.Fatalf("expected same-day diff 0, got %d", got)
	}
}

func TestDateOf(t *testing.T) {
	ts := time.Date(2025, 9, 13, 18, 30, 12, 0, time.UTC)
	d := DateOf(ts)
	if d.Hour() != 0 || d.Minute() != 0 || d.Second() != 0 {
		t.Fatalf("expected midnight, got %v", d)
	}
	if d.Year() != 2025 || d.Month() != 9 || d.Day() != 13 {
		t.Fatalf("unexpected date: %v", d)
	}
}

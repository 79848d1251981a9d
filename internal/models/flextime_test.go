package models

import (
	"testing"
	"time"
)

func TestParseFlexTime_RFC3339(t *testing.T) {
	got, ok := ParseFlexTime("2026-03-15T09:30:00Z")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	want := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseFlexTime_DateOnlyIsLocalMidday(t *testing.T) {
	got, ok := ParseFlexTime("2026-03-15")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if got.Hour() != 12 || got.Location() != time.Local {
		t.Fatalf("expected local midday, got %v", got)
	}
	if got.Year() != 2026 || got.Month() != time.March || got.Day() != 15 {
		t.Fatalf("day shifted: %v", got)
	}
}

func TestParseFlexTime_EpochMillis(t *testing.T) {
	want := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	got, ok := ParseFlexTime(float64(want.UnixMilli()))
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseFlexTime_NativeTime(t *testing.T) {
	want := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	got, ok := ParseFlexTime(want)
	if !ok || !got.Equal(want) {
		t.Fatalf("expected %v, got %v (ok=%v)", want, got, ok)
	}
}

func TestParseFlexTime_Garbage(t *testing.T) {
	for _, v := range []any{nil, "", "not a date", true, []string{"x"}} {
		if _, ok := ParseFlexTime(v); ok {
			t.Fatalf("expected %v to fail", v)
		}
	}
}

func TestAgeInDays_Ceiling(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// One minute ago must read as 1 day, not 0: thresholds are
	// day-granular and "0 days since activity" would be misleading.
	if got := AgeInDays(now, now.Add(-time.Minute)); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := AgeInDays(now, now.Add(-25*time.Hour)); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := AgeInDays(now, now); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := AgeInDays(now, now.AddDate(0, 0, -40)); got != 40 {
		t.Fatalf("expected 40, got %d", got)
	}
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if got := DaysUntil(now, now.AddDate(0, 0, 5)); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
	// An hour past the close date is already overdue.
	if got := DaysUntil(now, now.Add(-time.Hour)); got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
}

func TestStageSpellings(t *testing.T) {
	for _, stage := range []string{"Closed Won", "Closed-Won", "closed won", "CLOSED-WON"} {
		if !IsClosedWon(stage) {
			t.Fatalf("expected %q to be closed won", stage)
		}
	}
	for _, stage := range []string{"Closed Lost", "Closed-Lost", "closed lost"} {
		if !IsClosedLost(stage) {
			t.Fatalf("expected %q to be closed lost", stage)
		}
	}
	if IsTerminal("Negotiation") {
		t.Fatal("Negotiation is not terminal")
	}
}

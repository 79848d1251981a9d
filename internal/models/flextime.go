package models

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Legacy records store date-like fields inconsistently: native timestamps,
// RFC 3339 strings, bare dates, or epoch milliseconds. ParseFlexTime is the
// single entry point for all of them; every comparison and derived-age
// calculation in the engine goes through it.
//
// A date-only value ("2026-03-15") is interpreted as local midday so that
// rendering it back as a date never shifts the day across a timezone.
func ParseFlexTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t, true
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	case string:
		return parseFlexString(t)
	case float64:
		return fromEpochMillis(t)
	case int64:
		return fromEpochMillis(float64(t))
	case int:
		return fromEpochMillis(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return fromEpochMillis(f)
		}
		return parseFlexString(t.String())
	default:
		return time.Time{}, false
	}
}

func parseFlexString(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02 15:04:05", raw); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		// Date-only: local midday, see package comment above.
		return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.Local), true
	}

	return time.Time{}, false
}

func fromEpochMillis(ms float64) (time.Time, bool) {
	if ms <= 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}

// FlexTime decodes any of the legacy timestamp representations from JSON.
// API inputs (scenario close-date overrides, explicit period bounds) use it
// so the date-only convention applies at every edge.
type FlexTime struct {
	time.Time
}

func (f *FlexTime) UnmarshalJSON(b []byte) error {
	var v any
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	if t, ok := ParseFlexTime(v); ok {
		f.Time = t
	} else {
		f.Time = time.Time{}
	}
	return nil
}

func (f FlexTime) MarshalJSON() ([]byte, error) {
	if f.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(f.Time)
}

const millisPerDay = 24 * 60 * 60 * 1000

// AgeInDays returns ceil((now - t) / 1 day) in milliseconds. Ceiling is
// intentional: a record touched a minute ago reads as 1 day old, not 0,
// because every threshold in the scoring settings is day-granular.
func AgeInDays(now, t time.Time) int {
	ms := now.UnixMilli() - t.UnixMilli()
	return int(math.Ceil(float64(ms) / millisPerDay))
}

// DaysUntil is the mirror of AgeInDays for future instants; negative once
// the instant has passed.
func DaysUntil(now, t time.Time) int {
	return -AgeInDays(now, t)
}

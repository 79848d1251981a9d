package engine

import (
	"strings"
	"time"
)

// Named fiscal period tokens.
const (
	PeriodCurrentMonth   = "current_month"
	PeriodNextMonth      = "next_month"
	PeriodCurrentQuarter = "current_quarter"
	PeriodNextQuarter    = "next_quarter"
	PeriodCurrentYear    = "current_year"
	PeriodNextYear       = "next_year"
)

// Period is a half-open interval [Start, End): End is the first instant of
// the day after the nominal last day, so a record timestamped anywhere
// within the last calendar day is included regardless of time-of-day. An
// inclusive end-of-day comparison would miss boundary timestamps.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the half-open interval.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// ResolvePeriod converts a named period token into a concrete interval,
// measured against now in UTC. An unknown token degrades to the current
// quarter rather than erroring.
func ResolvePeriod(token string, now time.Time) Period {
	now = now.UTC()
	year, month := now.Year(), now.Month()

	switch strings.ToLower(strings.TrimSpace(token)) {
	case PeriodCurrentMonth:
		return monthPeriod(year, month, 0)
	case PeriodNextMonth:
		return monthPeriod(year, month, 1)
	case PeriodNextQuarter:
		return quarterPeriod(year, month, 1)
	case PeriodCurrentYear:
		return yearPeriod(year, 0)
	case PeriodNextYear:
		return yearPeriod(year, 1)
	case PeriodCurrentQuarter:
		return quarterPeriod(year, month, 0)
	default:
		return quarterPeriod(year, month, 0)
	}
}

// ResolveDateRange builds a period from an explicit calendar-date pair,
// overriding any named token. End is exclusive: the first instant of the day
// after endDate.
func ResolveDateRange(startDate, endDate time.Time) Period {
	start := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return Period{Start: start, End: end}
}

func monthPeriod(year int, month time.Month, offset int) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, offset, 0)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

func quarterPeriod(year int, month time.Month, offset int) Period {
	q := int(month-1) / 3
	start := time.Date(year, time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC).AddDate(0, offset*3, 0)
	return Period{Start: start, End: start.AddDate(0, 3, 0)}
}

func yearPeriod(year, offset int) Period {
	start := time.Date(year+offset, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(1, 0, 0)}
}

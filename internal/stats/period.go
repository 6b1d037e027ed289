// Package stats aggregates cached workout impacts over time windows for progress views and leaderboards.
package stats

import (
	"strings"
	"time"
)

// Period is a reporting window keyword.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// ParsePeriod maps user input to a Period. Unknown or empty input means [PeriodAll].
func ParsePeriod(s string) Period {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "week", "weekly", "this_week":
		return PeriodWeek
	case "month", "monthly", "this_month":
		return PeriodMonth
	default:
		return PeriodAll
	}
}

// Days is the length of the period in days. [PeriodAll] is capped at 180 days.
func (p Period) Days() int {
	switch p {
	case PeriodWeek:
		return 7 //nolint:mnd // a week
	case PeriodMonth:
		return 30 //nolint:mnd // a month
	case PeriodAll:
		return 180 //nolint:mnd // half a year
	default:
		return 180 //nolint:mnd // half a year
	}
}

// Range holds the inclusive dates of a period ending today and of the equally long period before it.
type Range struct {
	Start     time.Time
	End       time.Time
	PrevStart time.Time
	PrevEnd   time.Time
}

// RangeFor computes the date range of p ending on today's date.
func RangeFor(p Period, today time.Time) Range {
	end := truncateDay(today)
	days := p.Days()
	start := end.AddDate(0, 0, -(days - 1))
	prevEnd := start.AddDate(0, 0, -1)
	return Range{
		Start:     start,
		End:       end,
		PrevStart: prevEnd.AddDate(0, 0, -(days - 1)),
		PrevEnd:   prevEnd,
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

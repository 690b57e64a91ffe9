package utils

import (
	"fmt"
	"time"
)

// Payroll/invoice weeks run Saturday through Friday in the business's local
// calendar. The boundary is fixed here on purpose: it must never come from a
// locale-configurable start-of-week setting.
const WeekKeyLayout = "2006-01-02"

// WeekRangeFor returns the Saturday that starts the week containing t and the
// Friday that ends it. Start is truncated to 00:00:00 and end is the last
// second of the Friday, both in t's location.
func WeekRangeFor(t time.Time) (start time.Time, end time.Time) {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	// time.Weekday: Sunday=0 ... Saturday=6. Days back to the most recent Saturday.
	back := (int(day.Weekday()) + 1) % 7
	start = day.AddDate(0, 0, -back)
	end = WeekEndFor(start)
	return start, end
}

// WeekKeyFor returns the canonical YYYY-MM-DD key of the week containing t.
func WeekKeyFor(t time.Time) string {
	start, _ := WeekRangeFor(t)
	return start.Format(WeekKeyLayout)
}

// ParseWeekKey parses a week key and verifies it names a Saturday.
func ParseWeekKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(WeekKeyLayout, key, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid week key %q: %w", key, err)
	}
	if t.Weekday() != time.Saturday {
		return time.Time{}, fmt.Errorf("week key %q is not a Saturday", key)
	}
	return t, nil
}

func NextWeek(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, 7)
}

func PrevWeek(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, -7)
}

// WeekEndFor returns the inclusive end of the week starting at weekStart,
// 23:59:59 on the Friday. The end is built from calendar components rather
// than an absolute duration so a DST shift inside the week cannot move it off
// the last second of the Friday.
func WeekEndFor(weekStart time.Time) time.Time {
	return time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day()+6,
		23, 59, 59, 0, weekStart.Location())
}

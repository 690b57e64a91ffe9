package utils

import (
	"testing"
	"time"
)

func TestWeekRangeFor_EveryDayMapsToSameWeek(t *testing.T) {
	// Week of Saturday 2024-03-02 through Friday 2024-03-08.
	wantStart := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 3, 8, 23, 59, 59, 0, time.UTC)

	for offset := 0; offset < 7; offset++ {
		day := wantStart.AddDate(0, 0, offset).Add(13 * time.Hour)
		start, end := WeekRangeFor(day)
		if !start.Equal(wantStart) {
			t.Errorf("day %s: start = %s, want %s", day, start, wantStart)
		}
		if !end.Equal(wantEnd) {
			t.Errorf("day %s: end = %s, want %s", day, end, wantEnd)
		}
		if start.Weekday() != time.Saturday {
			t.Errorf("day %s: start weekday = %s, want Saturday", day, start.Weekday())
		}
		if end.Weekday() != time.Friday {
			t.Errorf("day %s: end weekday = %s, want Friday", day, end.Weekday())
		}
	}
}

func TestWeekKeyFor(t *testing.T) {
	// A Friday belongs to the week that started the previous Saturday.
	friday := time.Date(2024, 3, 8, 18, 30, 0, 0, time.UTC)
	if got := WeekKeyFor(friday); got != "2024-03-02" {
		t.Errorf("WeekKeyFor(%s) = %q, want %q", friday, got, "2024-03-02")
	}
	// A Saturday starts its own week.
	saturday := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	if got := WeekKeyFor(saturday); got != "2024-03-02" {
		t.Errorf("WeekKeyFor(%s) = %q, want %q", saturday, got, "2024-03-02")
	}
}

func TestParseWeekKey(t *testing.T) {
	start, err := ParseWeekKey("2024-03-02")
	if err != nil {
		t.Fatalf("ParseWeekKey returned error: %v", err)
	}
	if start.Weekday() != time.Saturday {
		t.Errorf("parsed weekday = %s, want Saturday", start.Weekday())
	}

	if _, err := ParseWeekKey("2024-03-04"); err == nil {
		t.Error("expected error for a Monday key")
	}
	if _, err := ParseWeekKey("not-a-date"); err == nil {
		t.Error("expected error for a malformed key")
	}
	if _, err := ParseWeekKey(""); err == nil {
		t.Error("expected error for an empty key")
	}
}

func TestNextAndPrevWeek(t *testing.T) {
	start := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	if got := NextWeek(start); !got.Equal(start.AddDate(0, 0, 7)) {
		t.Errorf("NextWeek = %s, want %s", got, start.AddDate(0, 0, 7))
	}
	if got := PrevWeek(start); !got.Equal(start.AddDate(0, 0, -7)) {
		t.Errorf("PrevWeek = %s, want %s", got, start.AddDate(0, 0, -7))
	}
}

func TestWeekEndFor(t *testing.T) {
	start := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	end := WeekEndFor(start)
	want := time.Date(2024, 3, 8, 23, 59, 59, 0, time.UTC)
	if !end.Equal(want) {
		t.Errorf("WeekEndFor = %s, want %s", end, want)
	}
}

func TestWeekRangeFor_DSTShiftInsideWeek(t *testing.T) {
	cairo, err := time.LoadLocation("Africa/Cairo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// Egypt springs forward at midnight on the last Friday of April; in 2024
	// that Friday (the 26th) ends the week starting Saturday the 20th. The
	// week end must still land on Friday 23:59:59 local time.
	wednesday := time.Date(2024, 4, 24, 12, 0, 0, 0, cairo)
	start, end := WeekRangeFor(wednesday)

	if start.Weekday() != time.Saturday || start.Day() != 20 {
		t.Errorf("start = %s, want Saturday 2024-04-20", start)
	}
	if end.Weekday() != time.Friday {
		t.Errorf("end weekday = %s, want Friday", end.Weekday())
	}
	if end.Day() != 26 || end.Hour() != 23 || end.Minute() != 59 || end.Second() != 59 {
		t.Errorf("end = %s, want 2024-04-26 23:59:59 local", end)
	}
}

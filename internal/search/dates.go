package search

import "time"

// StartOfDay truncates t to local midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays moves t by n calendar days and truncates to midnight.
func AddDays(t time.Time, n int) time.Time {
	return StartOfDay(t.AddDate(0, 0, n))
}

// DaysInMonth returns the number of days of month in year.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// SetDMY builds a date in loc, clamping day to the month's length so that
// switching from 31/01 to February lands on its last day.
func SetDMY(day int, month time.Month, year int, loc *time.Location) time.Time {
	if day < 1 {
		day = 1
	}
	if maxDay := DaysInMonth(year, month); day > maxDay {
		day = maxDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

// Package calendar builds the day grids and option grids shown by the wizard.
// Everything here is pure; validity of a selection is checked when it is made.
package calendar

import (
	"fmt"
	"time"
)

var monthNames = [...]string{
	"Januari", "Februari", "Mac", "April", "Mei", "Jun",
	"Julai", "Ogos", "September", "Oktober", "November", "Disember",
}

// WeekdayLabels are Monday-first column headers.
var WeekdayLabels = []string{"Is", "Se", "Ra", "Kh", "Ju", "Sa", "Ah"}

// MonthName returns the Malay name of m.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNames[m-1]
}

// Title is the header of a month view, e.g. "Oktober 2026".
func Title(year int, m time.Month) string {
	return fmt.Sprintf("%s %d", MonthName(m), year)
}

// DaysIn returns the number of days of the month.
func DaysIn(year int, m time.Month) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Weeks lays out the month Monday-first. Cells outside the month are 0.
func Weeks(year int, m time.Month) [][]int {
	first := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(first.Weekday()) + 6) % 7
	n := DaysIn(year, m)

	var weeks [][]int
	week := make([]int, 7)
	col := offset
	for d := 1; d <= n; d++ {
		week[col] = d
		col++
		if col == 7 {
			weeks = append(weeks, week)
			week = make([]int, 7)
			col = 0
		}
	}
	if col > 0 {
		weeks = append(weeks, week)
	}
	return weeks
}

// Shift moves (year, month) by delta months.
func Shift(year int, m time.Month, delta int) (int, time.Month) {
	t := time.Date(year, m+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	return t.Year(), t.Month()
}

// FormatDay renders a date as YYYY-MM-DD.
func FormatDay(year int, m time.Month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, int(m), day)
}

// ParseDay parses YYYY-MM-DD in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, loc)
}

// ParseMonth parses YYYY-MM.
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), t.Month(), nil
}

// FormatMonth renders (year, month) as YYYY-MM.
func FormatMonth(year int, m time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(m))
}

// IsFuture reports whether day falls strictly after the calendar day of now.
// Both are compared in now's location.
func IsFuture(day, now time.Time) bool {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	dy, dm, dd := day.In(now.Location()).Date()
	return time.Date(dy, dm, dd, 0, 0, 0, 0, now.Location()).After(today)
}

// Grid splits options into rows of at most cols entries.
func Grid[T any](options []T, cols int) [][]T {
	if cols < 1 {
		cols = 1
	}
	rows := make([][]T, 0, (len(options)+cols-1)/cols)
	for i := 0; i < len(options); i += cols {
		end := min(i+cols, len(options))
		rows = append(rows, options[i:end:end])
	}
	return rows
}

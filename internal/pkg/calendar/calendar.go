// Package calendar generates the hourly scenario-year calendar every profile is
// aligned to. The calendar never contains Feb 29, so every year has 8760 hours.
package calendar

import (
	"fmt"
	"time"
)

// HoursPerYear is the length of every scenario-year calendar.
const HoursPerYear = 8760

// Layout is the timestamp format used in sequence files.
const Layout = "2006-01-02 15:04:05"

// Hours returns the hourly UTC calendar of year with leap days removed.
func Hours(year int) []time.Time {
	out := make([]time.Time, 0, HoursPerYear)
	t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	for ; t.Before(end); t = t.Add(time.Hour) {
		if IsLeapDay(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// IsLeapDay reports whether t falls on Feb 29.
func IsLeapDay(t time.Time) bool {
	return t.Month() == time.February && t.Day() == 29
}

// IsLeapYear reports whether year has a Feb 29.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// StripLeapDays returns the positions of index that are not on Feb 29.
func StripLeapDays(index []time.Time) []int {
	keep := make([]int, 0, len(index))
	for i, t := range index {
		if !IsLeapDay(t) {
			keep = append(keep, i)
		}
	}
	return keep
}

// SelectYear returns the positions of index that fall in year.
func SelectYear(index []time.Time, positions []int, year int) []int {
	out := make([]int, 0, HoursPerYear)
	for _, p := range positions {
		if index[p].Year() == year {
			out = append(out, p)
		}
	}
	return out
}

// Slice strips leap days and selects year in one step, and checks the result
// spans exactly one calendar year of hours.
func Slice(index []time.Time, year int) ([]int, error) {
	pos := SelectYear(index, StripLeapDays(index), year)
	if len(pos) != HoursPerYear {
		return nil, fmt.Errorf("year %d has %d hourly rows after leap-day removal, want %d", year, len(pos), HoursPerYear)
	}
	return pos, nil
}

// Format renders a calendar timestamp for sequence files.
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Parse reads timestamps in the formats raw sources and sequence files use.
func Parse(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, Layout, "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

package calendar

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestHours(t *testing.T) {
	for _, year := range []int{2030, 2032, 2000} {
		hours := Hours(year)
		assert.Equal(t, len(hours), HoursPerYear, "year %d", year)
		assert.Assert(t, hours[0].Equal(time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)))
		assert.Assert(t, hours[len(hours)-1].Equal(time.Date(year, 12, 31, 23, 0, 0, 0, time.UTC)))
		for _, h := range hours {
			assert.Assert(t, !IsLeapDay(h))
		}
	}
}

func TestIsLeapYear(t *testing.T) {
	assert.Assert(t, IsLeapYear(2012))
	assert.Assert(t, IsLeapYear(2000))
	assert.Assert(t, !IsLeapYear(1900))
	assert.Assert(t, !IsLeapYear(2030))
}

func TestSliceLeapYear(t *testing.T) {
	var index []time.Time
	start := time.Date(2011, 12, 31, 0, 0, 0, 0, time.UTC)
	for h := 0; h < 24*368; h++ {
		index = append(index, start.Add(time.Duration(h)*time.Hour))
	}

	pos, err := Slice(index, 2012)
	assert.NilError(t, err)
	assert.Equal(t, len(pos), HoursPerYear)
	for _, p := range pos {
		assert.Assert(t, !IsLeapDay(index[p]))
		assert.Equal(t, index[p].Year(), 2012)
	}
}

func TestSliceShortYear(t *testing.T) {
	index := Hours(2015)[:100]
	_, err := Slice(index, 2015)
	assert.ErrorContains(t, err, "100 hourly rows")
}

func TestParse(t *testing.T) {
	want := time.Date(2015, 3, 1, 13, 0, 0, 0, time.UTC)
	for _, s := range []string{"2015-03-01T13:00:00Z", "2015-03-01 13:00:00", "2015-03-01 13:00"} {
		got, err := Parse(s)
		assert.NilError(t, err)
		assert.Assert(t, got.Equal(want), s)
	}
	assert.Equal(t, Format(want), "2015-03-01 13:00:00")
}

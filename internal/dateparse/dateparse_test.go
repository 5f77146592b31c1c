package dateparse

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	// Use a fixed reference time for testing: Wednesday, 2026-12-16
	ref := time.Date(2026, 12, 16, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input    string
		expected string
	}{
		// Basic keywords
		{"today", "2026-12-16"},
		{"TODAY", "2026-12-16"},
		{"Tomorrow", "2026-12-17"},
		{"yesterday", "2026-12-15"},

		// Next week/month
		{"next week", "2026-12-23"},
		{"nextweek", "2026-12-23"},
		{"next month", "2027-01-16"},
		{"weekend", "2026-12-19"},
		{"this weekend", "2026-12-19"},

		// Weekdays, same day goes to next week
		{"monday", "2026-12-21"},
		{"mon", "2026-12-21"},
		{"wednesday", "2026-12-23"},
		{"friday", "2026-12-18"},
		{"next friday", "2026-12-25"},
		{"next wednesday", "2026-12-23"},

		// Relative days
		{"+1", "2026-12-17"},
		{"+0", "2026-12-16"},
		{"+20", "2027-01-05"},
		{"in 3 days", "2026-12-19"},
		{"in 1 day", "2026-12-17"},
		{"in 2 weeks", "2026-12-30"},

		// Absolute dates
		{"2026-12-24", "2026-12-24"},
		{"24-12-2026", "2026-12-24"},
		{"24/12/2026", "2026-12-24"},
		{"4/1/2027", "2027-01-04"},
		{" 2027-01-02 ", "2027-01-02"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseFrom(tt.input, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result, "ParseFrom(%q)", tt.input)
		})
	}
}

func TestParseRejects(t *testing.T) {
	ref := time.Date(2026, 12, 16, 12, 0, 0, 0, time.UTC)

	for _, input := range []string{"", "invalid", "next year", "+-1", "+", "2026-02-30", "31-04-2026", "12/24/2026", "2026/12/24"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseFrom(input, ref)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnrecognized))
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"today", true},
		{"tomorrow", true},
		{"2026-06-15", true},
		{"15-06-2026", true},
		{"invalid", false},
		{"next year", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValid(tt.input), "IsValid(%q)", tt.input)
		})
	}
}

// "next monday" on a Monday is 7 days away, not 14.
func TestNextWeekdaySameDay(t *testing.T) {
	monday := time.Date(2026, 12, 14, 12, 0, 0, 0, time.UTC)

	for _, input := range []string{"monday", "next monday"} {
		t.Run(input, func(t *testing.T) {
			result, err := ParseFrom(input, monday)
			require.NoError(t, err)
			assert.Equal(t, "2026-12-21", result)
		})
	}
}

func TestStayFrom(t *testing.T) {
	ref := time.Date(2026, 12, 16, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		checkIn  string
		checkOut string
		nights   int
		in, out  string
	}{
		{"explicit dates", "2026-12-24", "2026-12-27", 0, "2026-12-24", "2026-12-27"},
		{"relative nights", "friday", "+2", 0, "2026-12-18", "2026-12-20"},
		{"nights flag", "tomorrow", "", 3, "2026-12-17", "2026-12-20"},
		{"checkout wins over nights", "tomorrow", "+1", 5, "2026-12-17", "2026-12-18"},
		{"across the year", "30-12-2026", "+4", 0, "2026-12-30", "2027-01-03"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out, err := StayFrom(tt.checkIn, tt.checkOut, tt.nights, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.in, in)
			assert.Equal(t, tt.out, out)
		})
	}
}

func TestStayFromErrors(t *testing.T) {
	ref := time.Date(2026, 12, 16, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name, checkIn, checkOut string
		nights                  int
		contains                string
	}{
		{"bad check-in", "someday", "+2", 0, "check-in"},
		{"bad check-out", "today", "later", 0, "check-out"},
		{"zero nights", "today", "+0", 0, "check-out"},
		{"nothing for check-out", "today", "", 0, "number of nights"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := StayFrom(tt.checkIn, tt.checkOut, tt.nights, ref)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

package dateparse

import (
	"testing"
	"time"
)

// Reference time for benchmarks (a Wednesday)
var benchTime = time.Date(2026, 12, 16, 10, 30, 0, 0, time.UTC)

// BenchmarkParseFrom benchmarks the main parsing function
func BenchmarkParseFrom(b *testing.B) {
	inputs := map[string]string{
		"today":        "today",
		"tomorrow":     "tomorrow",
		"weekday":      "monday",
		"next_weekday": "next friday",
		"weekend":      "weekend",
		"plus_days":    "+5",
		"in_days":      "in 3 days",
		"in_weeks":     "in 2 weeks",
		"iso_date":     "2026-12-31",
		"dmy_date":     "31/12/2026",
		"unknown":      "some random text",
	}
	for name, input := range inputs {
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_, _ = ParseFrom(input, benchTime)
			}
		})
	}
}

// BenchmarkNextWeekday benchmarks weekday calculation
func BenchmarkNextWeekday(b *testing.B) {
	b.Run("same_day", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			nextWeekday(benchTime, time.Wednesday, false)
		}
	})

	b.Run("force_next", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			nextWeekday(benchTime, time.Friday, true)
		}
	})
}

func BenchmarkStayFrom(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _, _ = StayFrom("friday", "+3", 0, benchTime)
	}
}

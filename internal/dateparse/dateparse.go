// Package dateparse turns natural language stay dates into YYYY-MM-DD.
package dateparse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the date format the API expects.
const Layout = "2006-01-02"

// ErrUnrecognized is returned for input that is not a known date form.
var ErrUnrecognized = errors.New("unrecognized date")

// Parse parses a natural language date relative to now.
// Supported formats:
//   - today, tomorrow, yesterday
//   - monday, tuesday, ... (next occurrence, same day = next week)
//   - next monday, next tuesday, ...
//   - next week, next month, weekend (the coming Saturday)
//   - +N (N days from now)
//   - in N days, in N weeks
//   - YYYY-MM-DD, DD-MM-YYYY, DD/MM/YYYY
func Parse(input string) (string, error) {
	return ParseFrom(input, time.Now())
}

// ParseFrom parses a date relative to the given reference time.
func ParseFrom(input string, now time.Time) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))

	switch s {
	case "today":
		return formatDate(now), nil
	case "tomorrow":
		return formatDate(now.AddDate(0, 0, 1)), nil
	case "yesterday":
		return formatDate(now.AddDate(0, 0, -1)), nil
	case "next week", "nextweek":
		return formatDate(now.AddDate(0, 0, 7)), nil
	case "next month", "nextmonth":
		return formatDate(now.AddDate(0, 1, 0)), nil
	case "weekend", "this weekend":
		return formatDate(nextWeekday(now, time.Saturday, false)), nil
	}

	if day, ok := parseWeekday(s); ok {
		next := strings.HasPrefix(s, "next ")
		return formatDate(nextWeekday(now, day, next)), nil
	}

	if days, ok := offsetDays(s); ok {
		return formatDate(now.AddDate(0, 0, days)), nil
	}

	if datePattern.MatchString(s) {
		return validDate(Layout, s, input)
	}
	if m := dmyPattern.FindStringSubmatch(s); m != nil {
		return validDate("2-1-2006", m[1]+"-"+m[2]+"-"+m[3], input)
	}

	return "", fmt.Errorf("%w: %q", ErrUnrecognized, input)
}

// offsetDays handles "+N", "in N days" and "in N weeks".
func offsetDays(s string) (int, bool) {
	if strings.HasPrefix(s, "+") {
		if days, err := strconv.Atoi(s[1:]); err == nil && days >= 0 {
			return days, true
		}
		return 0, false
	}
	if m := inDaysPattern.FindStringSubmatch(s); m != nil {
		days, err := strconv.Atoi(m[1])
		return days, err == nil
	}
	if m := inWeeksPattern.FindStringSubmatch(s); m != nil {
		weeks, err := strconv.Atoi(m[1])
		return weeks * 7, err == nil
	}
	return 0, false
}

var (
	datePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dmyPattern     = regexp.MustCompile(`^(\d{1,2})[-/](\d{1,2})[-/](\d{4})$`)
	inDaysPattern  = regexp.MustCompile(`^in (\d+) days?$`)
	inWeeksPattern = regexp.MustCompile(`^in (\d+) weeks?$`)
)

// validDate rejects well-formed but impossible dates such as 2026-02-30.
func validDate(layout, s, input string) (string, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a calendar date", ErrUnrecognized, input)
	}
	return formatDate(t), nil
}

func formatDate(t time.Time) string {
	return t.Format(Layout)
}

func parseWeekday(input string) (time.Weekday, bool) {
	input = strings.TrimPrefix(input, "next ")

	switch input {
	case "sunday", "sun":
		return time.Sunday, true
	case "monday", "mon":
		return time.Monday, true
	case "tuesday", "tue":
		return time.Tuesday, true
	case "wednesday", "wed":
		return time.Wednesday, true
	case "thursday", "thu":
		return time.Thursday, true
	case "friday", "fri":
		return time.Friday, true
	case "saturday", "sat":
		return time.Saturday, true
	}
	return 0, false
}

// nextWeekday returns the next occurrence of target. Today never counts:
// "monday" on a Monday is a week away. With forceNext ("next monday") the
// occurrence after this week's is returned, unless today is target.
func nextWeekday(now time.Time, target time.Weekday, forceNext bool) time.Time {
	daysUntil := int(target - now.Weekday())
	sameDay := daysUntil == 0

	if daysUntil <= 0 {
		daysUntil += 7
	}
	if forceNext && !sameDay {
		daysUntil += 7
	}
	return now.AddDate(0, 0, daysUntil)
}

// IsValid reports whether input parses to a date.
func IsValid(input string) bool {
	_, err := Parse(input)
	return err == nil
}

// Stay resolves a check-in and check-out pair. checkOut may be a date, or
// "+N" meaning N nights after check-in; when checkOut is empty, nights is
// used instead.
func Stay(checkIn, checkOut string, nights int) (string, string, error) {
	return StayFrom(checkIn, checkOut, nights, time.Now())
}

// StayFrom is Stay relative to the given reference time.
func StayFrom(checkIn, checkOut string, nights int, now time.Time) (string, string, error) {
	in, err := ParseFrom(checkIn, now)
	if err != nil {
		return "", "", fmt.Errorf("check-in: %w", err)
	}
	start, _ := time.Parse(Layout, in)

	s := strings.TrimSpace(checkOut)
	switch {
	case s == "" && nights > 0:
		return in, formatDate(start.AddDate(0, 0, nights)), nil
	case s == "":
		return "", "", errors.New("check-out: a date or a number of nights is required")
	case strings.HasPrefix(s, "+"):
		n, err := strconv.Atoi(s[1:])
		if err != nil || n <= 0 {
			return "", "", fmt.Errorf("check-out: %w: %q", ErrUnrecognized, checkOut)
		}
		return in, formatDate(start.AddDate(0, 0, n)), nil
	}

	out, err := ParseFrom(s, now)
	if err != nil {
		return "", "", fmt.Errorf("check-out: %w", err)
	}
	return in, out, nil
}

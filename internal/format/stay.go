package format

import (
	"fmt"
	"strings"
	"time"
)

const wireDate = "2006-01-02"

// Nights returns the number of nights between two YYYY-MM-DD dates, or 0
// when either fails to parse or check-out is not after check-in.
func Nights(checkIn, checkOut string) int {
	in, err1 := time.Parse(wireDate, checkIn)
	out, err2 := time.Parse(wireDate, checkOut)
	if err1 != nil || err2 != nil || !out.After(in) {
		return 0
	}
	return int(out.Sub(in).Hours() / 24)
}

// Stay renders a stay as "Dec 24, 2026 → Dec 27, 2026 (3 nights)".
func (l Locale) Stay(checkIn, checkOut string) string {
	in, err1 := time.Parse(wireDate, checkIn)
	out, err2 := time.Parse(wireDate, checkOut)
	if err1 != nil || err2 != nil {
		return checkIn + " → " + checkOut
	}
	n := Nights(checkIn, checkOut)
	return fmt.Sprintf("%s → %s (%s)", l.FormatDate(in), l.FormatDate(out), Plural(n, "night"))
}

// Guests renders guest counts, skipping zero categories.
func Guests(adults, children, infants int) string {
	parts := []string{Plural(adults, "adult")}
	if children > 0 {
		parts = append(parts, Plural(children, "child"))
	}
	if infants > 0 {
		parts = append(parts, Plural(infants, "infant"))
	}
	return strings.Join(parts, ", ")
}

// Stars renders a 1 to 5 rating as filled and empty stars.
func Stars(rating int) string {
	rating = max(0, min(5, rating))
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}

// Plural formats n with a singular or plural noun.
func Plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	if noun == "child" {
		return fmt.Sprintf("%d children", n)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

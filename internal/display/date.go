// Package display formats the aggregate for terminal output.
package display

import (
	"fmt"
	"time"
)

// NiceDate renders date relative to now, both compared as UTC calendar days:
// "Today", "Yesterday", the weekday name for the rest of the past week, the
// ordinal day ("5th") elsewhere in the current month, and "5 of January, 2024"
// otherwise.
func NiceDate(date, now time.Time) string {
	d := calendarDay(date)
	today := calendarDay(now)
	days := int(today.Sub(d).Hours() / 24)
	switch {
	case days == 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days > 1 && days < 7:
		return d.Weekday().String()
	case d.Year() == today.Year() && d.Month() == today.Month():
		return Ordinal(d.Day())
	default:
		return fmt.Sprintf("%d of %s, %d", d.Day(), d.Month(), d.Year())
	}
}

// Ordinal returns n with its English suffix: 1st, 2nd, 3rd, 4th, 11th, 22nd.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

func calendarDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

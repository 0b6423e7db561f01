package utils

import (
	"time"
)

// StartOfDayUTC returns midnight UTC of the day containing t.
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfWeekUTC returns Monday 00:00 UTC of the ISO week containing t.
func StartOfWeekUTC(t time.Time) time.Time {
	day := StartOfDayUTC(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// InSessionHours reports whether the UTC hour of t is one of the given hours.
// An empty hour list never matches.
func InSessionHours(t time.Time, hours []int) bool {
	h := t.UTC().Hour()
	for _, s := range hours {
		if s == h {
			return true
		}
	}
	return false
}

package utils

import (
	"time"
)

// CET is the Central European Time location (Europe/Berlin).
// All curve timestamps from the provider are normalized into this zone
// before being compared against naive hour boundaries.
var CET *time.Location

func init() {
	var err error
	CET, err = time.LoadLocation("Europe/Berlin")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available.
		// Loses DST handling but keeps the service usable.
		CET = time.FixedZone("CET", 1*60*60)
	}
}

// NowCET returns the current time in CET.
func NowCET() time.Time {
	return time.Now().In(CET)
}

// ToCET converts a time.Time to CET.
func ToCET(t time.Time) time.Time {
	return t.In(CET)
}

// StripZone converts t to CET wall-clock time and rebuilds it in UTC,
// discarding the zone. The result compares exactly against naive hour
// boundaries built with time.Date(..., time.UTC).
func StripZone(t time.Time) time.Time {
	c := t.In(CET)
	return time.Date(c.Year(), c.Month(), c.Day(), c.Hour(), c.Minute(), c.Second(), c.Nanosecond(), time.UTC)
}

// DayStart returns midnight (naive, UTC-encoded) for the given date.
func DayStart(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
}

// HourSlot returns the naive timestamp for hour h (0..23) of the given date.
func HourSlot(date time.Time, h int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), h, 0, 0, 0, time.UTC)
}

// SameDay reports whether two naive timestamps fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ParseDate parses a date string in "2006-01-02" format as a naive timestamp.
func ParseDate(dateStr string) (time.Time, error) {
	return time.Parse("2006-01-02", dateStr)
}

// FormatDate formats a time.Time to "2006-01-02".
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatDateTime formats a time.Time to "2006-01-02 15:04:05", the layout
// used in assistant tool tables and provider requests.
func FormatDateTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// FormatHourLabel formats a timestamp as a short chart axis label ("Mon 15:04").
func FormatHourLabel(t time.Time) string {
	return t.Format("Mon 15:04")
}

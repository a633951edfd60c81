package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Grouping and expiry checks compare civil dates, never raw timestamps.

// ymdPrefix matches the calendar part of "2025-11-01" and "2025-11-01T03:00:00.000Z".
var ymdPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// Layouts tried when the input does not start with an ISO calendar date.
// Their instants are read in UTC.
var fallbackLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	"02/01/2006",
}

// ParseDay extracts the calendar date from a date-only string or a full timestamp.
// ISO inputs use their literal date portion, so an offset suffix never moves the day.
func ParseDay(raw string) (civil.Date, error) {
	s := strings.TrimSpace(raw)
	if m := ymdPrefix.FindString(s); m != "" {
		d, err := civil.ParseDate(m)
		if err != nil || !d.IsValid() {
			return civil.Date{}, &ErrInvalidDate{Input: raw}
		}
		return d, nil
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t.UTC()), nil
		}
	}
	return civil.Date{}, &ErrInvalidDate{Input: raw}
}

// DayOf returns the calendar date of t in t's own location.
func DayOf(t time.Time) civil.Date {
	return civil.DateOf(t)
}

// DayKey is the display bucket key, dd/mm/yyyy.
func DayKey(d civil.Date) string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}

// DayStartMillis is midnight UTC of d in Unix milliseconds.
func DayStartMillis(d civil.Date) int64 {
	return d.In(time.UTC).UnixMilli()
}

// ToDayKey formats the calendar date of raw as dd/mm/yyyy.
func ToDayKey(raw string) (string, error) {
	d, err := ParseDay(raw)
	if err != nil {
		return "", err
	}
	return DayKey(d), nil
}

// DayStartTimestamp returns a sortable timestamp (Unix ms) for the calendar date of raw.
// Inputs with the same ToDayKey always share the same timestamp.
func DayStartTimestamp(raw string) (int64, error) {
	d, err := ParseDay(raw)
	if err != nil {
		return 0, err
	}
	return DayStartMillis(d), nil
}

package util

import (
	"strconv"
	"time"
)

var layouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime tries RFC3339 variants, plain date/datetime layouts and unix
// seconds or milliseconds. Returns (t, true) if any worked; t is in UTC.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		if ts > 1e11 { // ms
			return time.UnixMilli(ts).UTC(), true
		}
		return time.Unix(ts, 0).UTC(), true
	}
	return time.Time{}, false
}

// WeekKey identifies an ISO-8601 week. Year is the ISO year, which differs
// from the calendar year around new year.
type WeekKey struct {
	Year int
	Week int
}

// ISOWeek returns the ISO week t falls into, evaluated in UTC.
func ISOWeek(t time.Time) WeekKey {
	y, w := t.UTC().ISOWeek()
	return WeekKey{Year: y, Week: w}
}

// Lookback returns the [from, to] window ending at now.
func Lookback(now time.Time, d time.Duration) (time.Time, time.Time) {
	return now.Add(-d), now
}

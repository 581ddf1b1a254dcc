// Package timezone provides calendar-day arithmetic for the learning engine.
//
// Streaks, weekly goals and daily challenges are all keyed by the learner's
// calendar day rather than by elapsed hours. Unless a location is supplied,
// days are resolved in the host machine's local zone.
package timezone

import (
	"fmt"
	"time"
)

// Default location constants
var (
	// UTC is the coordinated universal time timezone
	UTC = time.UTC

	// Local is the local timezone
	Local = time.Local
)

// ParseTimezone parses an IANA timezone identifier (e.g., "Asia/Shanghai").
// An empty identifier or "Local" selects the host zone.
// If the timezone is invalid, returns the host zone and an error.
func ParseTimezone(tz string) (*time.Location, error) {
	switch tz {
	case "", "Local":
		return Local, nil
	case "UTC":
		return UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Local, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	return loc, nil
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	_, err := ParseTimezone(tz)
	return err == nil
}

// resolve returns loc, or the host zone when loc is nil.
func resolve(loc *time.Location) *time.Location {
	if loc == nil {
		return Local
	}
	return loc
}

// StartOfDay returns the start of the day (00:00:00) in the given timezone.
func StartOfDay(t time.Time, tz *time.Location) time.Time {
	tz = resolve(tz)
	lt := t.In(tz)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, tz)
}

// EndOfDay returns the end of the day (23:59:59.999999999) in the given timezone.
func EndOfDay(t time.Time, tz *time.Location) time.Time {
	tz = resolve(tz)
	lt := t.In(tz)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 23, 59, 59, 999999999, tz)
}

// DaysBetween returns the number of calendar days from "from" to "to" in tz.
// The result is negative when "to" falls on an earlier day.
// DST transitions do not shift the count.
func DaysBetween(from, to time.Time, tz *time.Location) int {
	tz = resolve(tz)
	f := from.In(tz)
	t := to.In(tz)
	// Anchor both dates at UTC noon so 23h/25h days still divide evenly.
	fu := time.Date(f.Year(), f.Month(), f.Day(), 12, 0, 0, 0, time.UTC)
	tu := time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC)
	return int(tu.Sub(fu).Hours() / 24)
}

// StartOfWeek returns midnight of the Sunday that starts t's week in tz.
func StartOfWeek(t time.Time, tz *time.Location) time.Time {
	day := StartOfDay(t, tz)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// SameWeek reports whether a and b fall in the same Sunday-based week in tz.
func SameWeek(a, b time.Time, tz *time.Location) bool {
	return StartOfWeek(a, tz).Equal(StartOfWeek(b, tz))
}

// DayOfYear returns t's ordinal day (1-366) in tz.
func DayOfYear(t time.Time, tz *time.Location) int {
	return t.In(resolve(tz)).YearDay()
}

// FormatDate formats t as YYYY-MM-DD in tz.
func FormatDate(t time.Time, tz *time.Location) string {
	return t.In(resolve(tz)).Format("2006-01-02")
}

// Common timezone constants
const (
	// TimezoneUTC is the UTC timezone identifier
	TimezoneUTC = "UTC"

	// TimezoneAmericaNewYork is the Eastern Time timezone
	TimezoneAmericaNewYork = "America/New_York"

	// TimezoneAsiaTokyo is the Japan Standard Time timezone
	TimezoneAsiaTokyo = "Asia/Tokyo"
)

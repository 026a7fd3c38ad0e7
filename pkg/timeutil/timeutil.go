// Package timeutil provides timezone utilities for the Buenos Aires timezone (UTC-3).
// Club sessions, season boundaries and activity windows are all interpreted in
// local club time. Argentina has not observed DST since 2009, so a fixed zone
// is safe year-round.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// BuenosAiresTZ is the Buenos Aires timezone (UTC-3, no DST).
var BuenosAiresTZ = time.FixedZone("America/Argentina/Buenos_Aires", -3*60*60)

// Now returns the current time in Buenos Aires timezone.
func Now() time.Time {
	return time.Now().In(BuenosAiresTZ)
}

// ToLocal converts a time to Buenos Aires timezone.
func ToLocal(t time.Time) time.Time {
	return t.In(BuenosAiresTZ)
}

// ToUTC converts a time to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// Date creates a time in Buenos Aires timezone with the given date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, BuenosAiresTZ)
}

// StartOfDay returns the start of the day (00:00:00) in Buenos Aires timezone.
func StartOfDay(t time.Time) time.Time {
	local := ToLocal(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, BuenosAiresTZ)
}

// TrailingYearStart returns the start of the trailing 1-year activity window
// ending at the given time. A player with a recorded game after this instant
// still counts as active.
func TrailingYearStart(now time.Time) time.Time {
	return ToLocal(now).AddDate(-1, 0, 0)
}

// DaysSince calculates the number of whole days between two times.
func DaysSince(now, t time.Time) int {
	duration := StartOfDay(now).Sub(StartOfDay(t))
	return int(duration.Hours() / 24)
}

// Clock abstracts time.Now so cooldown and cache logic can be driven by a
// simulated clock in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current time in Buenos Aires timezone.
func (SystemClock) Now() time.Time {
	return Now()
}

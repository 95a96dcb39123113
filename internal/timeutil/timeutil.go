// Package timeutil holds the calendar-date and wall-clock conversions used by the
// booking core. The business runs on South Africa Standard Time (UTC+2, no DST).
// Calendar dates are carried as time.Time values at UTC midnight, matching date-only
// columns in the database.
package timeutil

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	MinutesPerDay = 24 * 60
)

var (
	ErrInvalidDate  = errors.New("invalid date, expected yyyy-MM-dd")
	ErrInvalidClock = errors.New("invalid time, expected HH:mm")
)

// Location is the business timezone.
var Location = time.FixedZone("SAST", 2*60*60)

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// ParseDate parses "yyyy-MM-dd" into UTC midnight of that day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}

// DateKey is the map key used for per-day lookups.
func DateKey(date time.Time) string {
	return FormatDate(DateOf(date))
}

// ParseClock converts "HH:mm" into minutes since midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, okH := twoDigits(s[0], s[1])
	m, okM := twoDigits(s[3], s[4])
	if !okH || !okM || h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return h*60 + m, nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

// Weekday returns the day of week of a calendar date. The date is anchored at noon UTC
// so no timezone shift can move it onto a neighbouring day.
func Weekday(date time.Time) time.Weekday {
	y, m, d := date.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC).Weekday()
}

// StartOfDay returns the instant of SAST midnight that opens the calendar date.
func StartOfDay(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, Location)
}

// DayBoundsUTC returns the SAST calendar day as a half-open UTC range.
func DayBoundsUTC(date time.Time) (time.Time, time.Time) {
	start := StartOfDay(date)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// Instant converts a wall-clock time on a calendar date in SAST to an absolute instant.
func Instant(date time.Time, clock string) (time.Time, error) {
	minutes, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(date).Add(time.Duration(minutes) * time.Minute), nil
}

// MinuteOfDay returns how many whole minutes after SAST midnight of date the instant t
// is, rounded down. The result may be negative or exceed a day for instants outside
// the date.
func MinuteOfDay(date, t time.Time) int {
	d := t.Sub(StartOfDay(date))
	m := int(d / time.Minute)
	if d < 0 && d%time.Minute != 0 {
		m--
	}
	return m
}

// MinuteOfDayCeil is MinuteOfDay rounded up.
func MinuteOfDayCeil(date, t time.Time) int {
	d := t.Sub(StartOfDay(date))
	m := int(d / time.Minute)
	if d > 0 && d%time.Minute != 0 {
		m++
	}
	return m
}

func Today(now time.Time) time.Time {
	return DateOf(now.In(Location))
}

func AddDays(date time.Time, n int) time.Time {
	return DateOf(date).AddDate(0, 0, n)
}

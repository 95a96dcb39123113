package availability

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

// Window is an opening window in minutes since SAST midnight. A closed window has no
// bookable time.
type Window struct {
	Open   int
	Close  int
	Closed bool
}

// ResolveHours returns the effective opening window of a calendar date.
//
// A blocked override closes the day, an override with custom hours replaces the
// weekday hours, otherwise the weekday configuration applies.
func ResolveHours(date time.Time, hours model.BusinessHours, override *model.AvailabilityOverride) (Window, error) {
	if override != nil && override.IsBlocked {
		return Window{Closed: true}, nil
	}

	if override.HasCustomHours() {
		return window(*override.StartTime, *override.EndTime)
	}

	day, ok := hours[model.WeekdayKey(timeutil.Weekday(date))]
	if !ok || day.Closed {
		return Window{Closed: true}, nil
	}
	return window(day.Open, day.Close)
}

func window(open, close string) (Window, error) {
	o, err := timeutil.ParseClock(open)
	if err != nil {
		return Window{}, fmt.Errorf("parse open time: %w", err)
	}
	c, err := timeutil.ParseClock(close)
	if err != nil {
		return Window{}, fmt.Errorf("parse close time: %w", err)
	}
	if o >= c {
		return Window{Closed: true}, nil
	}
	return Window{Open: o, Close: c}, nil
}

// IsDayClosed reports whether a date can have no slot at all, ignoring busy data.
func IsDayClosed(date time.Time, hours model.BusinessHours, override *model.AvailabilityOverride) bool {
	if override != nil {
		return override.IsBlocked
	}
	day, ok := hours[model.WeekdayKey(timeutil.Weekday(date))]
	return !ok || day.Closed
}

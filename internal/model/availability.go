package model

import "time"

// BusinessHoursDay is the configured opening window of one weekday.
type BusinessHoursDay struct {
	Open   string `json:"open"`  // "HH:mm"
	Close  string `json:"close"` // "HH:mm"
	Closed bool   `json:"closed"`
}

// BusinessHours maps weekday keys ("monday".."sunday") to their hours.
type BusinessHours map[string]BusinessHoursDay

// WeekdayKey returns the business-hours key of a weekday.
func WeekdayKey(wd time.Weekday) string {
	switch wd {
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	case time.Saturday:
		return "saturday"
	default:
		return "sunday"
	}
}

// DefaultBusinessHours is Monday to Friday 09:00-17:00.
func DefaultBusinessHours() BusinessHours {
	open := BusinessHoursDay{Open: "09:00", Close: "17:00"}
	closed := BusinessHoursDay{Open: "09:00", Close: "17:00", Closed: true}
	return BusinessHours{
		"monday":    open,
		"tuesday":   open,
		"wednesday": open,
		"thursday":  open,
		"friday":    open,
		"saturday":  closed,
		"sunday":    closed,
	}
}

// AvailabilityOverride replaces the weekday hours of a single calendar date.
type AvailabilityOverride struct {
	ID        int64     `json:"id"`
	Date      time.Time `json:"date"` // calendar date, UTC midnight
	IsBlocked bool      `json:"is_blocked"`
	StartTime *string   `json:"start_time,omitempty"`
	EndTime   *string   `json:"end_time,omitempty"`
	Reason    *string   `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCustomHours reports whether the override carries its own opening window.
func (o *AvailabilityOverride) HasCustomHours() bool {
	return o != nil && !o.IsBlocked && o.StartTime != nil && o.EndTime != nil
}

// TimeSlot is a bookable window on a date, "HH:mm" in SAST.
type TimeSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// BusyInterval is a period during which the external calendar is occupied.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

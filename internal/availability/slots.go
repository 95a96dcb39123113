package availability

import (
	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

// FixedGrid holds the session start times offered every day, in minutes since midnight.
// Every session type uses the same starts; buffers are applied around busy time instead.
var FixedGrid = []int{
	9 * 60,     // 09:00
	10*60 + 15, // 10:15
	11*60 + 30, // 11:30
	13 * 60,    // 13:00
	14*60 + 15, // 14:15
	15*60 + 30, // 15:30
}

// Interval is a half-open range [Start, End) in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// Overlaps reports whether two half-open intervals share any minute.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

func (a Interval) Expand(pad int) Interval {
	return Interval{Start: a.Start - pad, End: a.End + pad}
}

// Slot is a candidate session in minutes since midnight.
type Slot = Interval

// GenerateSlots returns the grid starts whose session of durationMinutes fits entirely
// inside the window, in ascending order.
func GenerateSlots(w Window, durationMinutes int) []Slot {
	if w.Closed || durationMinutes <= 0 {
		return nil
	}

	var slots []Slot
	for _, start := range FixedGrid {
		end := start + durationMinutes
		if start >= w.Open && end <= w.Close {
			slots = append(slots, Slot{Start: start, End: end})
		}
	}
	return slots
}

func ToTimeSlot(s Slot) model.TimeSlot {
	return model.TimeSlot{
		Start: timeutil.FormatClock(s.Start),
		End:   timeutil.FormatClock(s.End),
	}
}

func overlapsAny(s Slot, busy []Interval, buffer int) bool {
	for _, b := range busy {
		if s.Overlaps(b.Expand(buffer)) {
			return true
		}
	}
	return false
}

// Package policy decides whether a booking may be cancelled or rescheduled. Every
// function is pure: the caller supplies the booking and the current instant and applies
// the outcome itself.
package policy

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

const (
	CancelNoticeHours     = 48
	RescheduleNoticeHours = 24
	MaxReschedules        = 2
)

type CancelType string

const (
	CancelNormal    CancelType = "normal"     // credit refunded
	CancelLate      CancelType = "late"       // inside the notice window, credit forfeited
	CancelAntiAbuse CancelType = "anti_abuse" // rescheduled out of the notice window, credit forfeited
)

const (
	ReasonNotActive        = "Only pending or confirmed bookings can be changed."
	ReasonSessionStarted   = "This session has already started or taken place."
	ReasonRescheduleLimit  = "This booking has already been rescheduled the maximum number of times."
	ReasonRescheduleNotice = "Sessions can only be rescheduled at least 24 hours before the start time."
	ReasonInvalidBooking   = "This booking has an invalid date or start time."
)

// CancelResult is the outcome of EvaluateCancel. Type and CreditRefunded are only
// meaningful when Allowed is true; Reason only when it is false.
type CancelResult struct {
	Allowed           bool       `json:"allowed"`
	Reason            string     `json:"reason,omitempty"`
	Type              CancelType `json:"type,omitempty"`
	CreditRefunded    bool       `json:"credit_refunded"`
	HoursUntilSession float64    `json:"hours_until_session"`
}

type RescheduleResult struct {
	Allowed              bool    `json:"allowed"`
	Reason               string  `json:"reason,omitempty"`
	HoursUntilSession    float64 `json:"hours_until_session"`
	RemainingReschedules int     `json:"remaining_reschedules"`
}

// SessionStart returns the absolute start instant of a booking.
func SessionStart(b *model.Booking) (time.Time, error) {
	return timeutil.Instant(b.Date, b.StartTime)
}

func hoursBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours()
}

// precheck rejects bookings that are no longer active or have already started.
func precheck(b *model.Booking, now time.Time) (time.Time, string, bool) {
	if !b.Status.IsActive() {
		return time.Time{}, ReasonNotActive, false
	}
	start, err := SessionStart(b)
	if err != nil {
		return time.Time{}, ReasonInvalidBooking, false
	}
	if !start.After(now) {
		return start, ReasonSessionStarted, false
	}
	return start, "", true
}

// EvaluateCancel classifies a cancellation request made at now.
func EvaluateCancel(b *model.Booking, now time.Time) CancelResult {
	start, reason, ok := precheck(b, now)
	if !ok {
		return CancelResult{Allowed: false, Reason: reason}
	}
	hours := hoursBetween(now, start)

	if b.PolicyOverride {
		return CancelResult{Allowed: true, Type: CancelNormal, CreditRefunded: true, HoursUntilSession: hours}
	}

	if dodgedLateCancel(b) {
		return CancelResult{Allowed: true, Type: CancelAntiAbuse, CreditRefunded: false, HoursUntilSession: hours}
	}

	if hours >= CancelNoticeHours {
		return CancelResult{Allowed: true, Type: CancelNormal, CreditRefunded: true, HoursUntilSession: hours}
	}
	return CancelResult{Allowed: true, Type: CancelLate, CreditRefunded: false, HoursUntilSession: hours}
}

// dodgedLateCancel reports whether the booking was moved away from an original slot
// that was already inside the cancellation notice window when it was moved. Rows
// without OriginalMovedAt fall back to the latest reschedule time.
func dodgedLateCancel(b *model.Booking) bool {
	movedAt := b.OriginalMovedAt
	if movedAt == nil {
		movedAt = b.RescheduledAt
	}
	if movedAt == nil || b.OriginalDate == nil || b.OriginalStartTime == nil {
		return false
	}
	originalStart, err := timeutil.Instant(*b.OriginalDate, *b.OriginalStartTime)
	if err != nil {
		return false
	}
	return hoursBetween(*movedAt, originalStart) < CancelNoticeHours
}

// EvaluateReschedule decides whether a booking may be moved at now.
func EvaluateReschedule(b *model.Booking, now time.Time) RescheduleResult {
	start, reason, ok := precheck(b, now)
	if !ok {
		return RescheduleResult{Allowed: false, Reason: reason}
	}
	hours := hoursBetween(now, start)
	remaining := MaxReschedules - b.RescheduleCount
	if remaining < 0 {
		remaining = 0
	}

	if !b.PolicyOverride && b.RescheduleCount >= MaxReschedules {
		return RescheduleResult{
			Allowed:           false,
			Reason:            ReasonRescheduleLimit,
			HoursUntilSession: hours,
		}
	}

	if !b.PolicyOverride && !b.SessionType.IsFree() && hours < RescheduleNoticeHours {
		return RescheduleResult{
			Allowed:              false,
			Reason:               ReasonRescheduleNotice,
			HoursUntilSession:    hours,
			RemainingReschedules: remaining,
		}
	}

	return RescheduleResult{Allowed: true, HoursUntilSession: hours, RemainingReschedules: remaining}
}

// ApplyReschedule returns the patch that moves a booking to a new slot. The original
// slot and the time it was left are captured on the first reschedule only, so later
// cancellations are compared with the slot the client first booked.
func ApplyReschedule(b *model.Booking, newDate time.Time, newStart, newEnd string, now time.Time) model.BookingPatch {
	count := b.RescheduleCount + 1
	at := now
	patch := model.BookingPatch{
		Date:            &newDate,
		StartTime:       &newStart,
		EndTime:         &newEnd,
		RescheduleCount: &count,
		RescheduledAt:   &at,
	}
	if b.OriginalDate == nil || b.OriginalStartTime == nil {
		od := b.Date
		os := b.StartTime
		patch.OriginalDate = &od
		patch.OriginalStartTime = &os
		patch.OriginalMovedAt = &at
	}
	return patch
}

// String renders a short summary for logs and admin messages.
func (r CancelResult) String() string {
	if !r.Allowed {
		return "rejected: " + r.Reason
	}
	return fmt.Sprintf("%s (%.1fh notice, refund=%t)", r.Type, r.HoursUntilSession, r.CreditRefunded)
}

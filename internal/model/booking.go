package model

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"   // awaiting checkout or admin confirmation
	BookingStatusConfirmed BookingStatus = "confirmed" // paid or credit consumed
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// ActiveBookingStatuses are the statuses that occupy a slot.
var ActiveBookingStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

// IsActive reports whether the status still holds its slot.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

type Booking struct {
	ID                int64         `json:"id"`
	StudentID         *int64        `json:"student_id,omitempty"`
	ClientName        string        `json:"client_name"`
	ClientEmail       string        `json:"client_email"`
	SessionType       SessionType   `json:"session_type"`
	Date              time.Time     `json:"date"`       // calendar date, UTC midnight
	StartTime         string        `json:"start_time"` // "HH:mm" SAST
	EndTime           string        `json:"end_time"`
	DurationMinutes   int           `json:"duration_minutes"`
	Status            BookingStatus `json:"status"`
	TeamsMeetingURL   *string       `json:"teams_meeting_url,omitempty"`
	ReminderSentAt    *time.Time    `json:"reminder_sent_at,omitempty"`
	IsLateCancel      bool          `json:"is_late_cancel"`
	RescheduleCount   int           `json:"reschedule_count"`
	RescheduledAt     *time.Time    `json:"rescheduled_at,omitempty"`
	OriginalDate      *time.Time    `json:"original_date,omitempty"`
	OriginalStartTime *string       `json:"original_start_time,omitempty"`
	OriginalMovedAt   *time.Time    `json:"original_moved_at,omitempty"` // first move off the original slot
	PolicyOverride    bool          `json:"policy_override"`
	ConfirmationToken string        `json:"confirmation_token"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// BookingPatch is a partial update of a booking. Nil fields are left untouched.
type BookingPatch struct {
	Status            *BookingStatus
	Date              *time.Time
	StartTime         *string
	EndTime           *string
	IsLateCancel      *bool
	RescheduleCount   *int
	RescheduledAt     *time.Time
	OriginalDate      *time.Time
	OriginalStartTime *string
	OriginalMovedAt   *time.Time
	ReminderSentAt    *time.Time
}

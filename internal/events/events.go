// Package events publishes booking lifecycle events.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

const (
	TopicBookingCreated     = "booking.created"
	TopicBookingCancelled   = "booking.cancelled"
	TopicBookingRescheduled = "booking.rescheduled"
	TopicBookingStatus      = "booking.status_changed"
	TopicReminderDue        = "booking.reminder_due"
)

// BookingEvent is the payload of every booking topic.
type BookingEvent struct {
	EventID           string              `json:"event_id"`
	Type              string              `json:"type"`
	OccurredAt        time.Time           `json:"occurred_at"`
	BookingID         int64               `json:"booking_id"`
	StudentID         *int64              `json:"student_id,omitempty"`
	ClientName        string              `json:"client_name"`
	ClientEmail       string              `json:"client_email"`
	SessionType       model.SessionType   `json:"session_type"`
	Status            model.BookingStatus `json:"status"`
	Date              string              `json:"date"`
	StartTime         string              `json:"start_time"`
	EndTime           string              `json:"end_time"`
	IsLateCancel      bool                `json:"is_late_cancel"`
	CancelType        string              `json:"cancel_type,omitempty"`
	RescheduleCount   int                 `json:"reschedule_count"`
	OriginalDate      string              `json:"original_date,omitempty"`
	OriginalStartTime string              `json:"original_start_time,omitempty"`
}

// NewBookingEvent snapshots a booking for the given topic.
func NewBookingEvent(topic string, b *model.Booking, now time.Time) BookingEvent {
	e := BookingEvent{
		EventID:         uuid.NewString(),
		Type:            topic,
		OccurredAt:      now.UTC(),
		BookingID:       b.ID,
		StudentID:       b.StudentID,
		ClientName:      b.ClientName,
		ClientEmail:     b.ClientEmail,
		SessionType:     b.SessionType,
		Status:          b.Status,
		Date:            timeutil.FormatDate(b.Date),
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		IsLateCancel:    b.IsLateCancel,
		RescheduleCount: b.RescheduleCount,
	}
	if b.OriginalDate != nil {
		e.OriginalDate = timeutil.FormatDate(*b.OriginalDate)
	}
	if b.OriginalStartTime != nil {
		e.OriginalStartTime = *b.OriginalStartTime
	}
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e BookingEvent) error
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, BookingEvent) error { return nil }

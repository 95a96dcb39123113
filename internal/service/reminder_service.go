package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/events"
	"github.com/Freeeeeet/session_booking/internal/holidays"
	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

type ReminderStore interface {
	FindDueReminders(ctx context.Context, dates []time.Time) ([]*model.Booking, error)
	MarkReminderSent(ctx context.Context, id int64, at time.Time) error
}

// ReminderService queues session reminders one business day ahead.
type ReminderService struct {
	store     ReminderStore
	calendar  *holidays.Calendar
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewReminderService(store ReminderStore, calendar *holidays.Calendar, publisher events.Publisher, logger *zap.Logger) *ReminderService {
	return &ReminderService{
		store:     store,
		calendar:  calendar,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// ReminderDates returns the session dates whose reminders go out on today: tomorrow
// and, when tomorrow is not a business day, every date up to the next business day.
func (s *ReminderService) ReminderDates(today time.Time) []time.Time {
	tomorrow := timeutil.AddDays(timeutil.DateOf(today), 1)
	last := s.calendar.NextBusinessDay(tomorrow)

	var dates []time.Time
	for d := tomorrow; !d.After(last); d = timeutil.AddDays(d, 1) {
		dates = append(dates, d)
	}
	return dates
}

// SendDueReminders publishes a reminder for every confirmed booking in the reminder
// window that has not had one. A booking whose event cannot be published is retried
// on the next run.
func (s *ReminderService) SendDueReminders(ctx context.Context) (int, error) {
	now := s.now()
	dates := s.ReminderDates(timeutil.Today(now))

	due, err := s.store.FindDueReminders(ctx, dates)
	if err != nil {
		return 0, fmt.Errorf("find due reminders: %w", err)
	}

	sent := 0
	for _, b := range due {
		if err := s.publisher.Publish(ctx, events.NewBookingEvent(events.TopicReminderDue, b, now)); err != nil {
			s.logger.Warn("Failed to queue reminder", zap.Int64("booking_id", b.ID), zap.Error(err))
			continue
		}
		if err := s.store.MarkReminderSent(ctx, b.ID, now); err != nil {
			return sent, fmt.Errorf("mark reminder sent: %w", err)
		}
		sent++
	}

	s.logger.Info("Reminder sweep finished",
		zap.String("from", timeutil.FormatDate(dates[0])),
		zap.String("to", timeutil.FormatDate(dates[len(dates)-1])),
		zap.Int("due", len(due)),
		zap.Int("sent", sent),
	)
	return sent, nil
}

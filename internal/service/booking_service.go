package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/events"
	"github.com/Freeeeeet/session_booking/internal/lock"
	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/notify"
	"github.com/Freeeeeet/session_booking/internal/policy"
	"github.com/Freeeeeet/session_booking/internal/repository"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

var tracer = otel.Tracer("github.com/Freeeeeet/session_booking/internal/service")

var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrSlotUnavailable   = errors.New("slot is not available")
	ErrNoCredits         = errors.New("no session credits left")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrBookingDisabled   = errors.New("online booking is disabled")
	ErrInvalidRequest    = errors.New("invalid request")
)

// Transactor runs fn in a database transaction carried by the context.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Booking, error)
	UpdateBooking(ctx context.Context, id int64, patch model.BookingPatch) error
}

type CreditStore interface {
	Consume(ctx context.Context, studentID int64) (bool, error)
	Refund(ctx context.Context, studentID int64) error
}

type SettingsProvider interface {
	GetSettings(ctx context.Context) (model.SiteSettings, error)
}

type SlotFinder interface {
	AvailableSlotsExcluding(ctx context.Context, dateStr string, sessionType model.SessionTypeConfig, excludeBookingID int64) ([]model.TimeSlot, error)
}

type SlotHolder interface {
	Hold(ctx context.Context, date time.Time, start string) (lock.Release, error)
}

// CreateBookingRequest is a booking made from the site. StudentID is set only by a
// trusted caller for a signed-in student paying with credits and is nil for guests.
type CreateBookingRequest struct {
	StudentID   *int64
	ClientName  string
	ClientEmail string
	SessionType model.SessionType
	Date        string
	StartTime   string
}

// PolicyPreview tells the client what cancelling or rescheduling would do right now.
type PolicyPreview struct {
	Cancel     policy.CancelResult     `json:"cancel"`
	Reschedule policy.RescheduleResult `json:"reschedule"`
}

type BookingService struct {
	tx        Transactor
	bookings  BookingStore
	credits   CreditStore
	settings  SettingsProvider
	slots     SlotFinder
	holds     SlotHolder
	publisher events.Publisher
	notifier  notify.Notifier
	logger    *zap.Logger
	now       func() time.Time
}

func NewBookingService(
	tx Transactor,
	bookings BookingStore,
	credits CreditStore,
	settings SettingsProvider,
	slots SlotFinder,
	holds SlotHolder,
	publisher events.Publisher,
	notifier notify.Notifier,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		tx:        tx,
		bookings:  bookings,
		credits:   credits,
		settings:  settings,
		slots:     slots,
		holds:     holds,
		publisher: publisher,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces time.Now. Used by tests.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// GetBooking returns a booking or ErrBookingNotFound.
func (s *BookingService) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if b == nil {
		return nil, ErrBookingNotFound
	}
	return b, nil
}

// CreateBooking books a slot that is currently available. Free consultations and
// students paying with a credit are confirmed at once, guests stay pending until checkout.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	ctx, span := tracer.Start(ctx, "service.CreateBooking", trace.WithAttributes(
		attribute.String("date", req.Date),
		attribute.String("start_time", req.StartTime),
		attribute.String("session_type", string(req.SessionType)),
	))
	defer span.End()

	name := strings.TrimSpace(req.ClientName)
	email := strings.TrimSpace(req.ClientEmail)
	if name == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: client name and email are required", ErrInvalidRequest)
	}

	cfg, err := model.LookupSessionType(req.SessionType)
	if err != nil {
		return nil, err
	}
	date, err := timeutil.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if _, err := timeutil.ParseClock(req.StartTime); err != nil {
		return nil, err
	}

	if err := s.checkBookingWindow(ctx, date); err != nil {
		return nil, err
	}

	slot, err := s.findSlot(ctx, req.Date, cfg, req.StartTime, 0)
	if err != nil {
		return nil, err
	}

	release, err := s.hold(ctx, date, slot.Start)
	if err != nil {
		return nil, err
	}
	defer release(ctx)

	booking := &model.Booking{
		StudentID:         req.StudentID,
		ClientName:        name,
		ClientEmail:       email,
		SessionType:       cfg.Type,
		Date:              date,
		StartTime:         slot.Start,
		EndTime:           slot.End,
		DurationMinutes:   cfg.DurationMinutes,
		Status:            model.BookingStatusPending,
		ConfirmationToken: uuid.NewString(),
	}
	payWithCredit := req.StudentID != nil && !cfg.Type.IsFree()
	if cfg.Type.IsFree() || payWithCredit {
		booking.Status = model.BookingStatusConfirmed
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if payWithCredit {
			ok, err := s.credits.Consume(ctx, *req.StudentID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNoCredits
			}
		}
		return s.bookings.Create(ctx, booking)
	})
	if err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			return nil, fmt.Errorf("%w: %s %s was just taken", ErrSlotUnavailable, req.Date, slot.Start)
		}
		if errors.Is(err, ErrNoCredits) {
			return nil, err
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.String("date", req.Date),
		zap.String("start_time", booking.StartTime),
		zap.String("session_type", string(booking.SessionType)),
		zap.String("status", string(booking.Status)),
	)
	s.publish(ctx, events.NewBookingEvent(events.TopicBookingCreated, booking, s.now()))

	return booking, nil
}

// checkBookingWindow rejects dates while online booking is switched off or beyond the
// booking horizon.
func (s *BookingService) checkBookingWindow(ctx context.Context, date time.Time) error {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}
	if !settings.BookingEnabled {
		return ErrBookingDisabled
	}
	settings = settings.WithDefaults()

	horizon := timeutil.AddDays(timeutil.Today(s.now()), settings.BookingMaxAdvanceDays)
	if date.After(horizon) {
		return fmt.Errorf("%w: %s is beyond the booking horizon", ErrSlotUnavailable, timeutil.FormatDate(date))
	}
	return nil
}

// CancelBooking cancels a booking if the policy allows it. A rejected request is not an
// error: the returned result carries the reason.
func (s *BookingService) CancelBooking(ctx context.Context, id int64) (policy.CancelResult, *model.Booking, error) {
	ctx, span := tracer.Start(ctx, "service.CancelBooking", trace.WithAttributes(attribute.Int64("booking_id", id)))
	defer span.End()

	var (
		res     policy.CancelResult
		booking *model.Booking
	)
	now := s.now()

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.bookings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return ErrBookingNotFound
		}
		booking = b

		res = policy.EvaluateCancel(b, now)
		if !res.Allowed {
			return nil
		}

		wasConfirmed := b.Status == model.BookingStatusConfirmed
		status := model.BookingStatusCancelled
		late := res.Type != policy.CancelNormal
		patch := model.BookingPatch{Status: &status, IsLateCancel: &late}
		if err := s.bookings.UpdateBooking(ctx, id, patch); err != nil {
			return err
		}
		applyPatch(b, patch)

		if res.CreditRefunded && wasConfirmed && b.StudentID != nil && !b.SessionType.IsFree() {
			if err := s.credits.Refund(ctx, *b.StudentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return policy.CancelResult{}, nil, err
		}
		return policy.CancelResult{}, nil, fmt.Errorf("cancel booking: %w", err)
	}

	span.SetAttributes(attribute.Bool("allowed", res.Allowed), attribute.String("cancel_type", string(res.Type)))
	if !res.Allowed {
		s.logger.Info("Cancellation rejected", zap.Int64("booking_id", id), zap.String("reason", res.Reason))
		return res, booking, nil
	}

	s.logger.Info("Booking cancelled",
		zap.Int64("booking_id", id),
		zap.String("cancel_type", string(res.Type)),
		zap.Float64("hours_until_session", res.HoursUntilSession),
		zap.Bool("credit_refunded", res.CreditRefunded),
	)

	e := events.NewBookingEvent(events.TopicBookingCancelled, booking, now)
	e.CancelType = string(res.Type)
	s.publish(ctx, e)

	if res.Type != policy.CancelNormal {
		s.notifyAdmin(ctx, notify.CancelMessage(booking, res))
	}

	return res, booking, nil
}

// RescheduleBooking moves a booking to another available slot on any date.
func (s *BookingService) RescheduleBooking(ctx context.Context, id int64, dateStr, start string) (policy.RescheduleResult, *model.Booking, error) {
	ctx, span := tracer.Start(ctx, "service.RescheduleBooking", trace.WithAttributes(
		attribute.Int64("booking_id", id),
		attribute.String("date", dateStr),
		attribute.String("start_time", start),
	))
	defer span.End()

	date, err := timeutil.ParseDate(dateStr)
	if err != nil {
		return policy.RescheduleResult{}, nil, err
	}
	if _, err := timeutil.ParseClock(start); err != nil {
		return policy.RescheduleResult{}, nil, err
	}

	current, err := s.GetBooking(ctx, id)
	if err != nil {
		return policy.RescheduleResult{}, nil, err
	}

	now := s.now()
	res := policy.EvaluateReschedule(current, now)
	if !res.Allowed {
		s.logger.Info("Reschedule rejected", zap.Int64("booking_id", id), zap.String("reason", res.Reason))
		return res, current, nil
	}

	if timeutil.DateKey(current.Date) == timeutil.DateKey(date) && current.StartTime == start {
		return policy.RescheduleResult{}, nil, fmt.Errorf("%w: booking is already at %s %s", ErrInvalidRequest, dateStr, start)
	}

	cfg, err := model.LookupSessionType(current.SessionType)
	if err != nil {
		return policy.RescheduleResult{}, nil, err
	}

	if err := s.checkBookingWindow(ctx, date); err != nil {
		return policy.RescheduleResult{}, nil, err
	}

	slot, err := s.findSlot(ctx, dateStr, cfg, start, id)
	if err != nil {
		return policy.RescheduleResult{}, nil, err
	}

	release, err := s.hold(ctx, date, slot.Start)
	if err != nil {
		return policy.RescheduleResult{}, nil, err
	}
	defer release(ctx)

	var (
		booking   *model.Booking
		fromDate  string
		fromStart string
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.bookings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return ErrBookingNotFound
		}
		booking = b

		// the booking may have changed since the first check
		res = policy.EvaluateReschedule(b, now)
		if !res.Allowed {
			return nil
		}

		fromDate, fromStart = timeutil.FormatDate(b.Date), b.StartTime
		patch := policy.ApplyReschedule(b, date, slot.Start, slot.End, now)
		if err := s.bookings.UpdateBooking(ctx, id, patch); err != nil {
			return err
		}
		applyPatch(b, patch)
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrBookingNotFound):
			return policy.RescheduleResult{}, nil, err
		case errors.Is(err, repository.ErrSlotTaken):
			return policy.RescheduleResult{}, nil, fmt.Errorf("%w: %s %s was just taken", ErrSlotUnavailable, dateStr, start)
		}
		return policy.RescheduleResult{}, nil, fmt.Errorf("reschedule booking: %w", err)
	}
	if !res.Allowed {
		return res, booking, nil
	}

	res.RemainingReschedules = policy.MaxReschedules - booking.RescheduleCount
	if res.RemainingReschedules < 0 {
		res.RemainingReschedules = 0
	}

	s.logger.Info("Booking rescheduled",
		zap.Int64("booking_id", id),
		zap.String("from", fromDate+" "+fromStart),
		zap.String("to", dateStr+" "+booking.StartTime),
		zap.Int("reschedule_count", booking.RescheduleCount),
	)

	s.publish(ctx, events.NewBookingEvent(events.TopicBookingRescheduled, booking, now))
	s.notifyAdmin(ctx, notify.RescheduleMessage(booking, fromDate, fromStart))

	return res, booking, nil
}

var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.BookingStatusPending:   {model.BookingStatusConfirmed, model.BookingStatusCancelled},
	model.BookingStatusConfirmed: {model.BookingStatusCompleted, model.BookingStatusNoShow},
}

// CanTransition reports whether an admin may move a booking from one status to another.
func CanTransition(from, to model.BookingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves a booking along its lifecycle. Completed and no-show can only be
// recorded once the session has started.
func (s *BookingService) Transition(ctx context.Context, id int64, to model.BookingStatus) (*model.Booking, error) {
	var booking *model.Booking
	now := s.now()

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.bookings.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b == nil {
			return ErrBookingNotFound
		}

		if !CanTransition(b.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
		}
		if to == model.BookingStatusCompleted || to == model.BookingStatusNoShow {
			start, err := policy.SessionStart(b)
			if err != nil {
				return err
			}
			if now.Before(start) {
				return fmt.Errorf("%w: session has not started yet", ErrInvalidTransition)
			}
		}

		patch := model.BookingPatch{Status: &to}
		if err := s.bookings.UpdateBooking(ctx, id, patch); err != nil {
			return err
		}
		applyPatch(b, patch)
		booking = b
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) || errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("transition booking: %w", err)
	}

	s.logger.Info("Booking status changed", zap.Int64("booking_id", id), zap.String("status", string(to)))

	topic := events.TopicBookingStatus
	if to == model.BookingStatusCancelled {
		topic = events.TopicBookingCancelled
	}
	s.publish(ctx, events.NewBookingEvent(topic, booking, now))

	return booking, nil
}

// PolicyPreview evaluates both policies without changing anything.
func (s *BookingService) PolicyPreview(ctx context.Context, id int64) (PolicyPreview, error) {
	b, err := s.GetBooking(ctx, id)
	if err != nil {
		return PolicyPreview{}, err
	}
	now := s.now()
	return PolicyPreview{
		Cancel:     policy.EvaluateCancel(b, now),
		Reschedule: policy.EvaluateReschedule(b, now),
	}, nil
}

func (s *BookingService) findSlot(ctx context.Context, dateStr string, cfg model.SessionTypeConfig, start string, excludeID int64) (model.TimeSlot, error) {
	slots, err := s.slots.AvailableSlotsExcluding(ctx, dateStr, cfg, excludeID)
	if err != nil {
		return model.TimeSlot{}, fmt.Errorf("get available slots: %w", err)
	}
	for _, slot := range slots {
		if slot.Start == start {
			return slot, nil
		}
	}
	return model.TimeSlot{}, fmt.Errorf("%w: %s %s", ErrSlotUnavailable, dateStr, start)
}

// hold takes the redis hold on a slot. A redis outage is tolerated because the
// database index still rejects a second active booking.
func (s *BookingService) hold(ctx context.Context, date time.Time, start string) (lock.Release, error) {
	release, err := s.holds.Hold(ctx, date, start)
	if err == nil {
		return release, nil
	}
	if errors.Is(err, lock.ErrHeld) {
		return nil, fmt.Errorf("%w: %s %s is being booked", ErrSlotUnavailable, timeutil.FormatDate(date), start)
	}
	s.logger.Warn("Slot hold unavailable, relying on database constraint", zap.Error(err))
	return func(context.Context) {}, nil
}

func (s *BookingService) publish(ctx context.Context, e events.BookingEvent) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("Failed to publish booking event",
			zap.String("topic", e.Type),
			zap.Int64("booking_id", e.BookingID),
			zap.Error(err),
		)
	}
}

func (s *BookingService) notifyAdmin(ctx context.Context, text string) {
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.logger.Warn("Failed to notify admin", zap.Error(err))
	}
}

func applyPatch(b *model.Booking, p model.BookingPatch) {
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.Date != nil {
		b.Date = *p.Date
	}
	if p.StartTime != nil {
		b.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		b.EndTime = *p.EndTime
	}
	if p.IsLateCancel != nil {
		b.IsLateCancel = *p.IsLateCancel
	}
	if p.RescheduleCount != nil {
		b.RescheduleCount = *p.RescheduleCount
	}
	if p.RescheduledAt != nil {
		at := *p.RescheduledAt
		b.RescheduledAt = &at
	}
	if p.OriginalDate != nil {
		d := *p.OriginalDate
		b.OriginalDate = &d
	}
	if p.OriginalStartTime != nil {
		st := *p.OriginalStartTime
		b.OriginalStartTime = &st
	}
	if p.OriginalMovedAt != nil {
		at := *p.OriginalMovedAt
		b.OriginalMovedAt = &at
	}
	if p.ReminderSentAt != nil {
		at := *p.ReminderSentAt
		b.ReminderSentAt = &at
	}
}

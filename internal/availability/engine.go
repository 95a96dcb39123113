// Package availability computes bookable session slots and dates from business hours,
// per-date overrides, external calendar busy time and existing bookings.
package availability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

const DefaultCalendarTimeout = 5 * time.Second

var tracer = otel.Tracer("github.com/Freeeeeet/session_booking/internal/availability")

type SettingsProvider interface {
	GetSettings(ctx context.Context) (model.SiteSettings, error)
}

type OverrideStore interface {
	FindOverride(ctx context.Context, date time.Time) (*model.AvailabilityOverride, error)
	FindOverridesInRange(ctx context.Context, start, end time.Time) ([]*model.AvailabilityOverride, error)
}

type BookingStore interface {
	FindBookingsOnDate(ctx context.Context, date time.Time, statuses []model.BookingStatus) ([]*model.Booking, error)
}

type CalendarGateway interface {
	GetFreeBusy(ctx context.Context, startUTC, endUTC time.Time) ([]model.BusyInterval, error)
}

// Engine answers which dates and slots can currently be booked.
type Engine struct {
	settings        SettingsProvider
	overrides       OverrideStore
	bookings        BookingStore
	calendar        CalendarGateway
	logger          *zap.Logger
	now             func() time.Time
	calendarTimeout time.Duration
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithCalendarTimeout bounds each free/busy request.
func WithCalendarTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.calendarTimeout = d
		}
	}
}

func NewEngine(
	settings SettingsProvider,
	overrides OverrideStore,
	bookings BookingStore,
	calendar CalendarGateway,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		settings:        settings,
		overrides:       overrides,
		bookings:        bookings,
		calendar:        calendar,
		logger:          logger,
		now:             time.Now,
		calendarTimeout: DefaultCalendarTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AvailableSlots returns the bookable slots of a "yyyy-MM-dd" date for a session type,
// in ascending order.
func (e *Engine) AvailableSlots(ctx context.Context, dateStr string, sessionType model.SessionTypeConfig) ([]model.TimeSlot, error) {
	return e.AvailableSlotsExcluding(ctx, dateStr, sessionType, 0)
}

// AvailableSlotsExcluding is AvailableSlots ignoring one existing booking, so a
// booking being rescheduled does not block the slots around itself.
func (e *Engine) AvailableSlotsExcluding(ctx context.Context, dateStr string, sessionType model.SessionTypeConfig, excludeBookingID int64) ([]model.TimeSlot, error) {
	date, err := timeutil.ParseDate(dateStr)
	if err != nil {
		return nil, err
	}
	if sessionType.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: %q has no duration", model.ErrUnknownSessionType, sessionType.Type)
	}

	ctx, span := tracer.Start(ctx, "availability.AvailableSlots", trace.WithAttributes(
		attribute.String("date", dateStr),
		attribute.String("session_type", string(sessionType.Type)),
	))
	defer span.End()

	settings, err := e.settings.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	settings = settings.WithDefaults()

	override, err := e.overrides.FindOverride(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("find override: %w", err)
	}

	w, err := ResolveHours(date, settings.BusinessHours, override)
	if err != nil {
		return nil, fmt.Errorf("resolve hours: %w", err)
	}
	if w.Closed {
		return []model.TimeSlot{}, nil
	}

	candidates := GenerateSlots(w, sessionType.DurationMinutes)
	if len(candidates) == 0 {
		return []model.TimeSlot{}, nil
	}

	var (
		busy     []model.BusyInterval
		existing []*model.Booking
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		busy = e.fetchBusy(gctx, date)
		return nil
	})
	g.Go(func() error {
		var err error
		existing, err = e.bookings.FindBookingsOnDate(gctx, date, model.ActiveBookingStatuses)
		if err != nil {
			return fmt.Errorf("find bookings on date: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	busyIntervals := make([]Interval, 0, len(busy))
	for _, b := range busy {
		iv := Interval{Start: timeutil.MinuteOfDay(date, b.Start), End: timeutil.MinuteOfDayCeil(date, b.End)}
		if iv.End > iv.Start {
			busyIntervals = append(busyIntervals, iv)
		}
	}

	bookedIntervals := make([]Interval, 0, len(existing))
	for _, b := range existing {
		if b.ID == excludeBookingID && excludeBookingID != 0 {
			continue
		}
		iv, err := bookingInterval(b)
		if err != nil {
			return nil, fmt.Errorf("booking %d: %w", b.ID, err)
		}
		bookedIntervals = append(bookedIntervals, iv)
	}

	noticeCutoff := e.now().Add(time.Duration(settings.BookingMinNoticeHours) * time.Hour)
	dayStart := timeutil.StartOfDay(date)
	buffer := settings.BookingBufferMinutes

	slots := make([]model.TimeSlot, 0, len(candidates))
	for _, c := range candidates {
		if dayStart.Add(time.Duration(c.Start) * time.Minute).Before(noticeCutoff) {
			continue
		}
		if overlapsAny(c, busyIntervals, buffer) {
			continue
		}
		if overlapsAny(c, bookedIntervals, buffer) {
			continue
		}
		slots = append(slots, ToTimeSlot(c))
	}

	span.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("busy_intervals", len(busyIntervals)),
		attribute.Int("bookings", len(bookedIntervals)),
		attribute.Int("slots", len(slots)),
	)

	return slots, nil
}

// fetchBusy never fails: an unreachable external calendar means no extra busy data.
// Existing bookings are still checked, so the worst case is a slot that clashes with
// a private calendar entry, never a double booking.
func (e *Engine) fetchBusy(ctx context.Context, date time.Time) []model.BusyInterval {
	if e.calendar == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.calendarTimeout)
	defer cancel()

	startUTC, endUTC := timeutil.DayBoundsUTC(date)
	busy, err := e.calendar.GetFreeBusy(ctx, startUTC, endUTC)
	if err != nil {
		e.logger.Warn("External calendar unavailable, skipping busy filter",
			zap.String("date", timeutil.FormatDate(date)),
			zap.Error(err),
		)
		return nil
	}
	return busy
}

func bookingInterval(b *model.Booking) (Interval, error) {
	start, err := timeutil.ParseClock(b.StartTime)
	if err != nil {
		return Interval{}, err
	}
	end, err := timeutil.ParseClock(b.EndTime)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: end}, nil
}

// AvailableDates lists the "yyyy-MM-dd" dates from tomorrow through the booking
// horizon that could have a slot. Busy time and existing bookings are not consulted,
// so a listed date may still turn out to have no free slot.
func (e *Engine) AvailableDates(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "availability.AvailableDates")
	defer span.End()

	settings, err := e.settings.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if !settings.BookingEnabled {
		return []string{}, nil
	}
	settings = settings.WithDefaults()

	today := timeutil.Today(e.now())
	start := timeutil.AddDays(today, 1)
	end := timeutil.AddDays(today, settings.BookingMaxAdvanceDays)

	overrides, err := e.overrides.FindOverridesInRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("find overrides in range: %w", err)
	}
	byDate := make(map[string]*model.AvailabilityOverride, len(overrides))
	for _, o := range overrides {
		byDate[timeutil.DateKey(o.Date)] = o
	}

	dates := make([]string, 0, settings.BookingMaxAdvanceDays)
	for d := start; !d.After(end); d = timeutil.AddDays(d, 1) {
		key := timeutil.FormatDate(d)
		if IsDayClosed(d, settings.BusinessHours, byDate[key]) {
			continue
		}
		dates = append(dates, key)
	}

	span.SetAttributes(attribute.Int("dates", len(dates)))
	return dates, nil
}

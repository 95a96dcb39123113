package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/session_booking/internal/events"
	"github.com/Freeeeeet/session_booking/internal/lock"
	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/repository"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

// now is Sunday 2026-10-18 10:00 SAST.
var testNow = time.Date(2026, 10, 18, 10, 0, 0, 0, timeutil.Location)

func fixedClock() time.Time { return testNow }

type fakeTx struct{ calls int }

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type fakeBookings struct {
	mu        sync.Mutex
	byID      map[int64]*model.Booking
	nextID    int64
	slotTaken bool
	updates   []model.BookingPatch
}

func newFakeBookings(existing ...*model.Booking) *fakeBookings {
	f := &fakeBookings{byID: map[int64]*model.Booking{}, nextID: 100}
	for _, b := range existing {
		f.byID[b.ID] = b
	}
	return f
}

func (f *fakeBookings) Create(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slotTaken {
		return repository.ErrSlotTaken
	}
	f.nextID++
	b.ID = f.nextID
	b.CreatedAt = testNow
	b.UpdatedAt = testNow
	cp := *b
	f.byID[b.ID] = &cp
	return nil
}

func (f *fakeBookings) get(id int64) *model.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[id]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

func (f *fakeBookings) GetByID(_ context.Context, id int64) (*model.Booking, error) {
	return f.get(id), nil
}

func (f *fakeBookings) GetForUpdate(_ context.Context, id int64) (*model.Booking, error) {
	return f.get(id), nil
}

func (f *fakeBookings) UpdateBooking(_ context.Context, id int64, patch model.BookingPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if f.slotTaken {
		return repository.ErrSlotTaken
	}
	applyPatch(b, patch)
	f.updates = append(f.updates, patch)
	return nil
}

func (f *fakeBookings) FindDueReminders(_ context.Context, dates []time.Time) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[string]bool{}
	for _, d := range dates {
		want[timeutil.DateKey(d)] = true
	}
	var out []*model.Booking
	for _, b := range f.byID {
		if want[timeutil.DateKey(b.Date)] && b.Status == model.BookingStatusConfirmed && b.ReminderSentAt == nil {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBookings) MarkReminderSent(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].ReminderSentAt = &at
	return nil
}

type fakeCredits struct {
	balance  map[int64]int
	consumed int
	refunded int
}

func (f *fakeCredits) Consume(_ context.Context, studentID int64) (bool, error) {
	if f.balance[studentID] <= 0 {
		return false, nil
	}
	f.balance[studentID]--
	f.consumed++
	return true, nil
}

func (f *fakeCredits) Refund(_ context.Context, studentID int64) error {
	f.balance[studentID]++
	f.refunded++
	return nil
}

type fakeSettings struct {
	settings model.SiteSettings
	saved    *model.SiteSettings
}

func (f *fakeSettings) GetSettings(context.Context) (model.SiteSettings, error) {
	return f.settings, nil
}

func (f *fakeSettings) SaveSettings(_ context.Context, s model.SiteSettings) error {
	f.saved = &s
	return nil
}

type slotQuery struct {
	date      string
	duration  int
	excludeID int64
}

type fakeSlots struct {
	slots   map[string][]model.TimeSlot
	queries []slotQuery
}

func (f *fakeSlots) AvailableSlotsExcluding(_ context.Context, dateStr string, st model.SessionTypeConfig, excludeID int64) ([]model.TimeSlot, error) {
	f.queries = append(f.queries, slotQuery{date: dateStr, duration: st.DurationMinutes, excludeID: excludeID})
	return f.slots[dateStr], nil
}

type fakeHolds struct {
	err      error
	held     []string
	released int
}

func (f *fakeHolds) Hold(_ context.Context, date time.Time, start string) (lock.Release, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.held = append(f.held, lock.Key(date, start))
	return func(context.Context) { f.released++ }, nil
}

type recordingPublisher struct {
	events []events.BookingEvent
	failOn map[int64]bool
}

func (p *recordingPublisher) Publish(_ context.Context, e events.BookingEvent) error {
	if p.failOn[e.BookingID] {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, e)
	return nil
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, text string) error {
	n.messages = append(n.messages, text)
	return nil
}

func ptr[T any](v T) *T { return &v }

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/repository/base"
)

const (
	bookingColumns = `id, student_id, client_name, client_email, session_type, date, start_time, end_time,
		duration_minutes, status, teams_meeting_url, reminder_sent_at, is_late_cancel, reschedule_count,
		rescheduled_at, original_date, original_start_time, original_moved_at, policy_override, confirmation_token,
		created_at, updated_at`

	activeSlotConstraint = "bookings_active_slot_key"
)

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(repo *base.Repository) *BookingRepository {
	return &BookingRepository{Repository: repo}
}

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.StudentID,
		&b.ClientName,
		&b.ClientEmail,
		&b.SessionType,
		&b.Date,
		&b.StartTime,
		&b.EndTime,
		&b.DurationMinutes,
		&b.Status,
		&b.TeamsMeetingURL,
		&b.ReminderSentAt,
		&b.IsLateCancel,
		&b.RescheduleCount,
		&b.RescheduledAt,
		&b.OriginalDate,
		&b.OriginalStartTime,
		&b.OriginalMovedAt,
		&b.PolicyOverride,
		&b.ConfirmationToken,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]*model.Booking, error) {
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}

func statusStrings(statuses []model.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// Create inserts a booking. ErrSlotTaken is returned when an active booking already
// holds the same date and start time.
func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) error {
	query := `
		INSERT INTO bookings (student_id, client_name, client_email, session_type, date, start_time,
		                      end_time, duration_minutes, status, teams_meeting_url, policy_override,
		                      confirmation_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(ctx, query,
		b.StudentID,
		b.ClientName,
		b.ClientEmail,
		string(b.SessionType),
		b.Date,
		b.StartTime,
		b.EndTime,
		b.DurationMinutes,
		string(b.Status),
		b.TeamsMeetingURL,
		b.PolicyOverride,
		b.ConfirmationToken,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if base.IsUniqueViolation(err, activeSlotConstraint) {
			return ErrSlotTaken
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// GetByID returns a booking, or nil when it does not exist.
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	b, err := scanBooking(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}
	return b, nil
}

// GetForUpdate locks the booking row until the surrounding transaction ends.
func (r *BookingRepository) GetForUpdate(ctx context.Context, id int64) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`

	b, err := scanBooking(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking for update: %w", err)
	}
	return b, nil
}

// FindBookingsOnDate returns the bookings of a date in the given statuses, ordered by start time.
func (r *BookingRepository) FindBookingsOnDate(ctx context.Context, date time.Time, statuses []model.BookingStatus) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE date = $1 AND status = ANY($2)
		ORDER BY start_time
	`

	rows, err := r.Query(ctx, query, date, statusStrings(statuses))
	if err != nil {
		return nil, fmt.Errorf("find bookings on date: %w", err)
	}
	return collectBookings(rows)
}

// FindDueReminders returns confirmed bookings on the given dates that have not been reminded yet.
func (r *BookingRepository) FindDueReminders(ctx context.Context, dates []time.Time) ([]*model.Booking, error) {
	if len(dates) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE date = ANY($1::date[]) AND status = $2 AND reminder_sent_at IS NULL
		ORDER BY date, start_time
	`

	rows, err := r.Query(ctx, query, dates, string(model.BookingStatusConfirmed))
	if err != nil {
		return nil, fmt.Errorf("find due reminders: %w", err)
	}
	return collectBookings(rows)
}

// UpdateBooking applies a partial update. ErrNotFound is returned for an unknown id and
// ErrSlotTaken when the new date and start time collide with an active booking.
func (r *BookingRepository) UpdateBooking(ctx context.Context, id int64, patch model.BookingPatch) error {
	sets, args := patchAssignments(patch)
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE bookings SET %s, updated_at = NOW() WHERE id = $%d`,
		strings.Join(sets, ", "), len(args))

	n, err := r.ExecAffected(ctx, query, args...)
	if err != nil {
		if base.IsUniqueViolation(err, activeSlotConstraint) {
			return ErrSlotTaken
		}
		return fmt.Errorf("update booking: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkReminderSent stamps the reminder time of a booking.
func (r *BookingRepository) MarkReminderSent(ctx context.Context, id int64, at time.Time) error {
	return r.UpdateBooking(ctx, id, model.BookingPatch{ReminderSentAt: &at})
}

func patchAssignments(p model.BookingPatch) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.Date != nil {
		add("date", *p.Date)
	}
	if p.StartTime != nil {
		add("start_time", *p.StartTime)
	}
	if p.EndTime != nil {
		add("end_time", *p.EndTime)
	}
	if p.IsLateCancel != nil {
		add("is_late_cancel", *p.IsLateCancel)
	}
	if p.RescheduleCount != nil {
		add("reschedule_count", *p.RescheduleCount)
	}
	if p.RescheduledAt != nil {
		add("rescheduled_at", *p.RescheduledAt)
	}
	if p.OriginalDate != nil {
		add("original_date", *p.OriginalDate)
	}
	if p.OriginalStartTime != nil {
		add("original_start_time", *p.OriginalStartTime)
	}
	if p.OriginalMovedAt != nil {
		add("original_moved_at", *p.OriginalMovedAt)
	}
	if p.ReminderSentAt != nil {
		add("reminder_sent_at", *p.ReminderSentAt)
	}
	return sets, args
}

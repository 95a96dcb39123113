package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/repository/base"
)

const overrideColumns = `id, date, is_blocked, start_time, end_time, reason, created_at, updated_at`

type OverrideRepository struct {
	*base.Repository
}

func NewOverrideRepository(repo *base.Repository) *OverrideRepository {
	return &OverrideRepository{Repository: repo}
}

func scanOverride(row pgx.Row) (*model.AvailabilityOverride, error) {
	var o model.AvailabilityOverride
	err := row.Scan(
		&o.ID,
		&o.Date,
		&o.IsBlocked,
		&o.StartTime,
		&o.EndTime,
		&o.Reason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// FindOverride returns the override of a date, or nil.
func (r *OverrideRepository) FindOverride(ctx context.Context, date time.Time) (*model.AvailabilityOverride, error) {
	query := `SELECT ` + overrideColumns + ` FROM availability_overrides WHERE date = $1`

	o, err := scanOverride(r.QueryRow(ctx, query, date))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find override: %w", err)
	}
	return o, nil
}

// FindOverridesInRange returns the overrides between start and end inclusive, ordered by date.
func (r *OverrideRepository) FindOverridesInRange(ctx context.Context, start, end time.Time) ([]*model.AvailabilityOverride, error) {
	query := `
		SELECT ` + overrideColumns + `
		FROM availability_overrides
		WHERE date BETWEEN $1 AND $2
		ORDER BY date
	`

	rows, err := r.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("find overrides in range: %w", err)
	}
	defer rows.Close()

	var overrides []*model.AvailabilityOverride
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overrides: %w", err)
	}

	return overrides, nil
}

// Upsert creates the override of a date or replaces the existing one.
func (r *OverrideRepository) Upsert(ctx context.Context, o *model.AvailabilityOverride) error {
	query := `
		INSERT INTO availability_overrides (date, is_blocked, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date) DO UPDATE SET
			is_blocked = EXCLUDED.is_blocked,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			reason = EXCLUDED.reason,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(ctx, query,
		o.Date,
		o.IsBlocked,
		o.StartTime,
		o.EndTime,
		o.Reason,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert override: %w", err)
	}
	return nil
}

// Delete removes the override of a date. It reports whether one existed.
func (r *OverrideRepository) Delete(ctx context.Context, date time.Time) (bool, error) {
	n, err := r.ExecAffected(ctx, `DELETE FROM availability_overrides WHERE date = $1`, date)
	if err != nil {
		return false, fmt.Errorf("delete override: %w", err)
	}
	return n > 0, nil
}

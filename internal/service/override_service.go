package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

// defaultOverrideListDays is the range listed when the caller gives no end date.
const defaultOverrideListDays = 90

type OverrideStore interface {
	FindOverridesInRange(ctx context.Context, start, end time.Time) ([]*model.AvailabilityOverride, error)
	Upsert(ctx context.Context, o *model.AvailabilityOverride) error
	Delete(ctx context.Context, date time.Time) (bool, error)
}

// OverrideInput is an admin change to the hours of one date.
type OverrideInput struct {
	IsBlocked bool    `json:"is_blocked"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
	Reason    *string `json:"reason,omitempty"`
}

type OverrideService struct {
	store  OverrideStore
	logger *zap.Logger
	now    func() time.Time
}

func NewOverrideService(store OverrideStore, logger *zap.Logger) *OverrideService {
	return &OverrideService{store: store, logger: logger, now: time.Now}
}

// Set blocks a date or gives it custom hours. Without custom hours and without a
// block the override only records a reason and the weekday hours apply.
func (s *OverrideService) Set(ctx context.Context, dateStr string, in OverrideInput) (*model.AvailabilityOverride, error) {
	date, err := timeutil.ParseDate(dateStr)
	if err != nil {
		return nil, err
	}

	o := &model.AvailabilityOverride{Date: date, IsBlocked: in.IsBlocked}
	if in.Reason != nil {
		if reason := strings.TrimSpace(*in.Reason); reason != "" {
			o.Reason = &reason
		}
	}

	if !in.IsBlocked {
		if (in.StartTime == nil) != (in.EndTime == nil) {
			return nil, fmt.Errorf("%w: start and end time must be given together", ErrInvalidRequest)
		}
		if in.StartTime != nil {
			start, err := timeutil.ParseClock(*in.StartTime)
			if err != nil {
				return nil, err
			}
			end, err := timeutil.ParseClock(*in.EndTime)
			if err != nil {
				return nil, err
			}
			if start >= end {
				return nil, fmt.Errorf("%w: start time must be before end time", ErrInvalidRequest)
			}
			o.StartTime, o.EndTime = in.StartTime, in.EndTime
		}
	}

	if err := s.store.Upsert(ctx, o); err != nil {
		return nil, err
	}

	s.logger.Info("Availability override saved",
		zap.String("date", dateStr),
		zap.Bool("is_blocked", o.IsBlocked),
		zap.Bool("custom_hours", o.HasCustomHours()),
	)
	return o, nil
}

// Delete removes the override of a date. It reports whether one existed.
func (s *OverrideService) Delete(ctx context.Context, dateStr string) (bool, error) {
	date, err := timeutil.ParseDate(dateStr)
	if err != nil {
		return false, err
	}
	deleted, err := s.store.Delete(ctx, date)
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("Availability override removed", zap.String("date", dateStr))
	}
	return deleted, nil
}

// List returns the overrides between two dates inclusive. An empty from means today,
// an empty to means 90 days after from.
func (s *OverrideService) List(ctx context.Context, fromStr, toStr string) ([]*model.AvailabilityOverride, error) {
	from := timeutil.Today(s.now())
	if fromStr != "" {
		d, err := timeutil.ParseDate(fromStr)
		if err != nil {
			return nil, err
		}
		from = d
	}

	to := timeutil.AddDays(from, defaultOverrideListDays)
	if toStr != "" {
		d, err := timeutil.ParseDate(toStr)
		if err != nil {
			return nil, err
		}
		to = d
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end is before its start", ErrInvalidRequest)
	}

	overrides, err := s.store.FindOverridesInRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if overrides == nil {
		overrides = []*model.AvailabilityOverride{}
	}
	return overrides, nil
}

// Package calendar fetches busy time from the coach's external calendar.
package calendar

import (
	"context"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
)

// Gateway returns busy intervals between two UTC instants.
type Gateway interface {
	GetFreeBusy(ctx context.Context, startUTC, endUTC time.Time) ([]model.BusyInterval, error)
}

// Disabled is used when no external calendar is configured: nothing is ever busy.
type Disabled struct{}

func (Disabled) GetFreeBusy(context.Context, time.Time, time.Time) ([]model.BusyInterval, error) {
	return nil, nil
}

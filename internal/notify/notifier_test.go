package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/policy"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

type fakeSender struct {
	sent []*bot.SendMessageParams
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &models.Message{ID: len(f.sent)}, nil
}

func testBooking() *model.Booking {
	return &model.Booking{
		ID:              7,
		ClientName:      "Sipho <Admin>",
		ClientEmail:     "sipho@example.com",
		SessionType:     model.SessionTypeCouples,
		Date:            timeutil.Date(2026, time.October, 20),
		StartTime:       "13:00",
		EndTime:         "14:30",
		RescheduleCount: 1,
	}
}

func TestTelegramNotifier(t *testing.T) {
	sender := &fakeSender{}
	n := &TelegramNotifier{sender: sender, chatID: -100123, logger: zap.NewNop()}

	require.NoError(t, n.Notify(context.Background(), "<b>hi</b>"))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(-100123), sender.sent[0].ChatID)
	assert.Equal(t, models.ParseModeHTML, sender.sent[0].ParseMode)

	sender.err = errors.New("forbidden")
	assert.Error(t, n.Notify(context.Background(), "x"))
}

func TestCancelMessage(t *testing.T) {
	b := testBooking()

	late := CancelMessage(b, policy.CancelResult{Type: policy.CancelLate, HoursUntilSession: 20})
	assert.Contains(t, late, "Late cancellation")
	assert.Contains(t, late, "2026-10-20 13:00–14:30 · couples")
	assert.Contains(t, late, "Sipho &lt;Admin&gt;")
	assert.Contains(t, late, "Notice: 20.0 h")

	originalDate := timeutil.Date(2026, time.October, 19)
	originalStart := "09:00"
	b.OriginalDate = &originalDate
	b.OriginalStartTime = &originalStart

	abuse := CancelMessage(b, policy.CancelResult{Type: policy.CancelAntiAbuse, HoursUntilSession: 60})
	assert.Contains(t, abuse, "after late reschedule")
	assert.Contains(t, abuse, "Originally booked for 2026-10-19 09:00")
}

func TestRescheduleMessage(t *testing.T) {
	msg := RescheduleMessage(testBooking(), "2026-10-19", "09:00")
	assert.Contains(t, msg, "From: 2026-10-19 09:00")
	assert.Contains(t, msg, "To: 2026-10-20 13:00–14:30")
	assert.Contains(t, msg, "Reschedules used: 1/2")
}

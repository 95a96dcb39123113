// Package notify sends booking alerts to the admin chat.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/policy"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier posts HTML messages to a single admin chat.
type TelegramNotifier struct {
	sender messageSender
	chatID int64
	logger *zap.Logger
}

func NewTelegramNotifier(b *bot.Bot, chatID int64, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: b, chatID: chatID, logger: logger}
}

func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("send admin notification: %w", err)
	}
	n.logger.Debug("Admin notified", zap.Int64("chat_id", n.chatID))
	return nil
}

// Noop is used when no admin chat is configured.
type Noop struct{}

func (Noop) Notify(context.Context, string) error { return nil }

func bookingLine(b *model.Booking) string {
	return fmt.Sprintf("%s %s–%s · %s",
		timeutil.FormatDate(b.Date), b.StartTime, b.EndTime, html.EscapeString(string(b.SessionType)))
}

func clientLine(b *model.Booking) string {
	return fmt.Sprintf("%s &lt;%s&gt;", html.EscapeString(b.ClientName), html.EscapeString(b.ClientEmail))
}

// CancelMessage describes a cancellation that forfeits the session.
func CancelMessage(b *model.Booking, res policy.CancelResult) string {
	var sb strings.Builder
	switch res.Type {
	case policy.CancelAntiAbuse:
		sb.WriteString("⚠️ <b>Cancellation after late reschedule</b>\n")
	default:
		sb.WriteString("❌ <b>Late cancellation</b>\n")
	}
	fmt.Fprintf(&sb, "Booking #%d\n", b.ID)
	sb.WriteString(bookingLine(b) + "\n")
	sb.WriteString(clientLine(b) + "\n")
	fmt.Fprintf(&sb, "Notice: %.1f h, credit not refunded", res.HoursUntilSession)
	if b.OriginalDate != nil && b.OriginalStartTime != nil {
		fmt.Fprintf(&sb, "\nOriginally booked for %s %s", timeutil.FormatDate(*b.OriginalDate), *b.OriginalStartTime)
	}
	return sb.String()
}

// RescheduleMessage describes a moved booking.
func RescheduleMessage(b *model.Booking, fromDate, fromStart string) string {
	var sb strings.Builder
	sb.WriteString("🔁 <b>Booking rescheduled</b>\n")
	fmt.Fprintf(&sb, "Booking #%d\n", b.ID)
	fmt.Fprintf(&sb, "From: %s %s\n", fromDate, fromStart)
	sb.WriteString("To: " + bookingLine(b) + "\n")
	sb.WriteString(clientLine(b) + "\n")
	fmt.Fprintf(&sb, "Reschedules used: %d/%d", b.RescheduleCount, policy.MaxReschedules)
	return sb.String()
}

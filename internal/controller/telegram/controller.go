// Package telegram serves the admin commands of the booking bot.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/holidays"
	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

// maxDatesShown keeps /dates replies within one message.
const maxDatesShown = 30

type Availability interface {
	AvailableDates(ctx context.Context) ([]string, error)
	AvailableSlots(ctx context.Context, dateStr string, sessionType model.SessionTypeConfig) ([]model.TimeSlot, error)
}

type BookingLister interface {
	FindBookingsOnDate(ctx context.Context, date time.Time, statuses []model.BookingStatus) ([]*model.Booking, error)
}

type BotController struct {
	bot          *bot.Bot
	availability Availability
	bookings     BookingLister
	holidays     *holidays.Calendar
	adminChatID  int64
	logger       *zap.Logger
	now          func() time.Time
}

func NewBotController(
	botInstance *bot.Bot,
	availability Availability,
	bookings BookingLister,
	calendar *holidays.Calendar,
	adminChatID int64,
	logger *zap.Logger,
) *BotController {
	return &BotController{
		bot:          botInstance,
		availability: availability,
		bookings:     bookings,
		holidays:     calendar,
		adminChatID:  adminChatID,
		logger:       logger,
		now:          time.Now,
	}
}

// RegisterHandlers registers the admin commands and the command menu.
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.adminOnly(c.handleHelp))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.adminOnly(c.handleHelp))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/dates", bot.MatchTypeExact, c.adminOnly(c.handleDates))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/slots", bot.MatchTypePrefix, c.adminOnly(c.handleSlots))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/holidays", bot.MatchTypePrefix, c.adminOnly(c.handleHolidays))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/week", bot.MatchTypePrefix, c.handleWeek)

	return c.setCommands(ctx)
}

// setCommands sets the command menu of the bot.
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "dates", Description: "📅 Bookable dates"},
		{Command: "slots", Description: "🕘 Free slots: /slots 2026-10-20 individual"},
		{Command: "holidays", Description: "🇿🇦 Public holidays: /holidays 2026"},
		{Command: "week", Description: "🗓 Week overview: /week [2026-10-20]"},
		{Command: "help", Description: "❓ Commands"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("Bot commands menu set")
	return nil
}

// Start runs long polling until ctx is done.
func (c *BotController) Start(ctx context.Context) {
	c.logger.Info("Starting admin bot", zap.Int64("admin_chat_id", c.adminChatID))
	c.bot.Start(ctx)
}

type commandFunc func(ctx context.Context, args []string) string

// fromAdmin reports whether the update is a message from the admin chat.
func (c *BotController) fromAdmin(update *models.Update) bool {
	if update.Message == nil {
		return false
	}
	if update.Message.Chat.ID != c.adminChatID {
		c.logger.Warn("Ignoring command from foreign chat",
			zap.Int64("chat_id", update.Message.Chat.ID),
			zap.String("text", update.Message.Text),
		)
		return false
	}
	return true
}

// adminOnly answers admin chat commands with the text fn renders.
func (c *BotController) adminOnly(fn commandFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if !c.fromAdmin(update) {
			return
		}

		text := fn(ctx, commandArgs(update.Message.Text))
		if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    update.Message.Chat.ID,
			Text:      text,
			ParseMode: models.ParseModeHTML,
		}); err != nil {
			c.logger.Error("Failed to send reply", zap.Int64("chat_id", update.Message.Chat.ID), zap.Error(err))
		}
	}
}

// commandArgs drops the command itself, including a "@botname" suffix.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	return fields[1:]
}

func (c *BotController) handleHelp(context.Context, []string) string {
	var sb strings.Builder
	sb.WriteString("📚 <b>Admin commands</b>\n\n")
	sb.WriteString("/dates - bookable dates\n")
	sb.WriteString("/slots &lt;yyyy-MM-dd&gt; &lt;type&gt; - free slots on a date\n")
	sb.WriteString("/holidays [year] - South African public holidays\n")
	sb.WriteString("/week [yyyy-MM-dd] - picture of the week with free time and bookings\n\n")
	sb.WriteString("Session types: ")
	types := model.SessionTypes()
	for i, t := range types {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(string(t.Type))
	}
	return sb.String()
}

func (c *BotController) handleDates(ctx context.Context, _ []string) string {
	dates, err := c.availability.AvailableDates(ctx)
	if err != nil {
		c.logger.Error("Failed to list available dates", zap.Error(err))
		return "❌ Could not load dates. Try again later."
	}
	if len(dates) == 0 {
		return "📅 Booking is closed or no dates are open."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 <b>%d bookable dates</b>\n\n", len(dates))
	for i, d := range dates {
		if i == maxDatesShown {
			fmt.Fprintf(&sb, "… and %d more", len(dates)-maxDatesShown)
			break
		}
		date, _ := timeutil.ParseDate(d)
		fmt.Fprintf(&sb, "%s (%s)\n", d, timeutil.Weekday(date).String()[:3])
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *BotController) handleSlots(ctx context.Context, args []string) string {
	if len(args) != 2 {
		return "Usage: /slots &lt;yyyy-MM-dd&gt; &lt;type&gt;"
	}

	cfg, err := model.LookupSessionType(model.SessionType(args[1]))
	if err != nil {
		return "❌ Unknown session type " + args[1]
	}

	slots, err := c.availability.AvailableSlots(ctx, args[0], cfg)
	if err != nil {
		if _, perr := timeutil.ParseDate(args[0]); perr != nil {
			return "❌ Dates look like 2026-10-20"
		}
		c.logger.Error("Failed to list available slots", zap.String("date", args[0]), zap.Error(err))
		return "❌ Could not load slots. Try again later."
	}
	if len(slots) == 0 {
		return fmt.Sprintf("🕘 No available times on %s for %s.", args[0], cfg.Label)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🕘 <b>%s</b> · %s (%d min)\n\n", args[0], cfg.Label, cfg.DurationMinutes)
	for _, s := range slots {
		fmt.Fprintf(&sb, "%s–%s\n", s.Start, s.End)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c *BotController) handleHolidays(_ context.Context, args []string) string {
	year := timeutil.Today(c.now()).Year()
	if len(args) > 0 {
		y, err := strconv.Atoi(args[0])
		if err != nil || y < 1900 || y > 2200 {
			return "Usage: /holidays [year]"
		}
		year = y
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🇿🇦 <b>Public holidays %d</b>\n\n", year)
	for _, h := range c.holidays.PublicHolidays(year) {
		fmt.Fprintf(&sb, "%s %s %s\n", timeutil.FormatDate(h.Date), timeutil.Weekday(h.Date).String()[:3], h.Name)
	}
	return strings.TrimRight(sb.String(), "\n")
}

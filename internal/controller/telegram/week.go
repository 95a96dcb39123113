package telegram

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

// handleWeek sends a picture of the week holding the given date, or the current week.
func (c *BotController) handleWeek(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !c.fromAdmin(update) {
		return
	}
	chatID := update.Message.Chat.ID

	reply := func(text string) {
		if _, err := b.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
			c.logger.Error("Failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}

	monday, err := c.weekStart(commandArgs(update.Message.Text))
	if err != nil {
		reply("Usage: /week [yyyy-MM-dd]")
		return
	}

	days, err := c.collectWeek(ctx, monday)
	if err != nil {
		c.logger.Error("Failed to collect week", zap.String("monday", timeutil.FormatDate(monday)), zap.Error(err))
		reply("❌ Could not load the week. Try again later.")
		return
	}

	img, err := RenderWeekImage(days, c.now())
	if err != nil {
		c.logger.Error("Failed to render week image", zap.Error(err))
		reply("❌ Could not draw the week.")
		return
	}

	if _, err := b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  chatID,
		Photo:   &models.InputFileUpload{Filename: "week.png", Data: bytes.NewReader(img)},
		Caption: weekCaption(days),
	}); err != nil {
		c.logger.Error("Failed to send week image", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// weekStart returns the Monday of the week holding the date in args, or of today.
func (c *BotController) weekStart(args []string) (time.Time, error) {
	date := timeutil.Today(c.now())
	if len(args) > 0 {
		d, err := timeutil.ParseDate(args[0])
		if err != nil {
			return time.Time{}, err
		}
		date = d
	}
	offset := (int(timeutil.Weekday(date)) + 6) % 7
	return timeutil.AddDays(date, -offset), nil
}

// collectWeek loads free time and active bookings for the seven days from monday.
// Free time is what the shortest session type could still book.
func (c *BotController) collectWeek(ctx context.Context, monday time.Time) ([]WeekDay, error) {
	shortest := model.SessionTypes()[0]
	for _, t := range model.SessionTypes() {
		if t.DurationMinutes < shortest.DurationMinutes {
			shortest = t
		}
	}

	holidayNames := make(map[string]string)
	for _, year := range []int{monday.Year(), timeutil.AddDays(monday, daysInWeek-1).Year()} {
		for _, h := range c.holidays.PublicHolidays(year) {
			holidayNames[timeutil.FormatDate(h.Date)] = h.Name
		}
	}

	days := make([]WeekDay, daysInWeek)
	g, gctx := errgroup.WithContext(ctx)
	for i := range days {
		i := i // per-iteration copy for the goroutine (go directive < 1.22)
		date := timeutil.AddDays(monday, i)
		days[i] = WeekDay{Date: date, Holiday: holidayNames[timeutil.FormatDate(date)]}

		g.Go(func() error {
			slots, err := c.availability.AvailableSlots(gctx, timeutil.FormatDate(date), shortest)
			if err != nil {
				return fmt.Errorf("slots on %s: %w", timeutil.FormatDate(date), err)
			}
			bookings, err := c.bookings.FindBookingsOnDate(gctx, date, model.ActiveBookingStatuses)
			if err != nil {
				return fmt.Errorf("bookings on %s: %w", timeutil.FormatDate(date), err)
			}
			days[i].Blocks = append(mergeSlots(slots), bookingBlocks(bookings)...)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return days, nil
}

// mergeSlots joins overlapping or touching slots into free blocks.
func mergeSlots(slots []model.TimeSlot) []WeekBlock {
	var blocks []WeekBlock
	for _, s := range slots {
		start, err1 := timeutil.ParseClock(s.Start)
		end, err2 := timeutil.ParseClock(s.End)
		if err1 != nil || err2 != nil {
			continue
		}
		blocks = append(blocks, WeekBlock{Start: start, End: end, Kind: blockFree})
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start < blocks[j].Start })

	var merged []WeekBlock
	for _, b := range blocks {
		if n := len(merged); n > 0 && b.Start <= merged[n-1].End {
			merged[n-1].End = max(merged[n-1].End, b.End)
			continue
		}
		merged = append(merged, b)
	}
	return merged
}

func bookingBlocks(bookings []*model.Booking) []WeekBlock {
	var blocks []WeekBlock
	for _, b := range bookings {
		start, err1 := timeutil.ParseClock(b.StartTime)
		end, err2 := timeutil.ParseClock(b.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		kind := blockConfirmed
		if b.Status == model.BookingStatusPending {
			kind = blockPending
		}
		blocks = append(blocks, WeekBlock{Start: start, End: end, Kind: kind, Label: b.ClientName})
	}
	return blocks
}

func weekCaption(days []WeekDay) string {
	var confirmed, pending int
	for _, d := range days {
		for _, b := range d.Blocks {
			switch b.Kind {
			case blockConfirmed:
				confirmed++
			case blockPending:
				pending++
			}
		}
	}
	return fmt.Sprintf("Week %s - %s: %d confirmed, %d pending",
		timeutil.FormatDate(days[0].Date), timeutil.FormatDate(days[len(days)-1].Date), confirmed, pending)
}

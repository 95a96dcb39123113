package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReminderSweeper queues reminders for upcoming sessions.
type ReminderSweeper interface {
	SendDueReminders(ctx context.Context) (int, error)
}

// Scheduler runs the background jobs of the process.
type Scheduler struct {
	reminders ReminderSweeper
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewScheduler(reminders ReminderSweeper, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		reminders: reminders,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start launches the jobs in the background.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("reminder_interval", s.interval))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runReminderTask(ctx)
	}()
}

// Stop signals the jobs to finish and waits for a sweep in progress.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *Scheduler) runReminderTask(ctx context.Context) {
	// First sweep right away so a restart does not delay reminders by a full interval.
	s.sendReminders(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sendReminders(ctx)
		case <-s.stopChan:
			s.logger.Info("Reminder task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Reminder task cancelled")
			return
		}
	}
}

func (s *Scheduler) sendReminders(ctx context.Context) {
	sent, err := s.reminders.SendDueReminders(ctx)
	if err != nil {
		s.logger.Error("Reminder sweep failed", zap.Int("sent", sent), zap.Error(err))
		return
	}
	if sent > 0 {
		s.logger.Info("Reminders queued", zap.Int("sent", sent))
	}
}

// Package scheduler delivers due reminders on a minute tick.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
	"github.com/dvloznov/ledger-assistant/internal/notify"
)

// Scheduler scans every user's reminders once a minute and notifies the
// ones that have come due. A delivered reminder is marked done so it
// never fires twice.
type Scheduler struct {
	store    ledger.Store
	notifier notify.Notifier
	log      zerolog.Logger
	cron     gocron.Scheduler
	now      func() time.Time
}

// New creates a Scheduler. Call Start to begin ticking.
func New(store ledger.Store, notifier notify.Notifier, log zerolog.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("scheduler.New: %w", err)
	}

	s := &Scheduler{
		store:    store,
		notifier: notifier,
		log:      log,
		cron:     cron,
		now:      time.Now,
	}

	_, err = cron.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			s.Tick(ctx)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduler.New: %w", err)
	}
	return s, nil
}

// Start begins the minute tick.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop shuts the scheduler down. In-flight ticks finish.
func (s *Scheduler) Stop() {
	if err := s.cron.Shutdown(); err != nil {
		s.log.Error().Err(err).Msg("Scheduler shutdown failed")
	}
}

// Tick runs one scan over all users. Exported so transports and tests
// can trigger a scan without waiting a minute.
func (s *Scheduler) Tick(ctx context.Context) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Reminder scan failed to list users")
		return
	}

	now := s.now()
	for _, userID := range users {
		reminders, err := s.store.GetReminders(ctx, userID)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", userID).Msg("Reminder scan failed")
			continue
		}
		for _, rem := range reminders {
			if rem.Done || rem.DueAt.After(now) {
				continue
			}
			if err := s.notifier.Notify(ctx, userID, "提醒："+rem.Text); err != nil {
				// Delivery failed; leave the reminder pending so the
				// next tick retries it.
				s.log.Error().Err(err).Str("user_id", userID).Str("reminder_id", rem.ID).Msg("Reminder delivery failed")
				continue
			}
			if err := s.store.UpdateReminder(ctx, userID, rem.ID, "", true); err != nil {
				s.log.Error().Err(err).Str("user_id", userID).Str("reminder_id", rem.ID).Msg("Failed to mark reminder done")
			}
		}
	}
}

// LogNotifier returns a notifier that only logs deliveries. Used by
// deployments without a push channel.
func LogNotifier(log zerolog.Logger) notify.Notifier {
	return notify.Func(func(ctx context.Context, userID, text string) error {
		log.Info().Str("user_id", userID).Str("text", text).Msg("Reminder due")
		return nil
	})
}

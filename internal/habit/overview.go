package habit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"habitbot/internal/storage"
	logx "habitbot/pkg/logx"
)

// OverviewJobName is the single fixed daily-overview job. It is registered
// once at startup and never replaced or removed afterwards.
const OverviewJobName = "habit.overview"

// Broadcaster fans out one status message per habit to each owner, once a
// day. Sends are best-effort and fully isolated: a failure for one habit or
// owner never aborts the rest of the broadcast.
type Broadcaster struct {
	store    storage.Store
	send     Sender
	keyboard Keyboard
	loc      *time.Location
	limiter  *rate.Limiter
	log      logx.Logger

	now func() time.Time // for tests
}

func NewBroadcaster(store storage.Store, send Sender, keyboard Keyboard, loc *time.Location, ratePerSec int, log logx.Logger) *Broadcaster {
	if loc == nil {
		loc = time.Local
	}
	if ratePerSec <= 0 {
		ratePerSec = 3
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Broadcaster{
		store:    store,
		send:     send,
		keyboard: keyboard,
		loc:      loc,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		log:      log,
		now:      time.Now,
	}
}

// Register schedules the broadcast at the given "HH:MM" (scheduler timezone).
func (b *Broadcaster) Register(sched Scheduler, at string, timeout time.Duration) error {
	hour, minute, err := ParseReminderTime(at)
	if err != nil {
		return err
	}
	_, err = sched.AddDaily(OverviewJobName, hour, minute, timeout, b.Run)
	return err
}

// Run performs one full broadcast pass.
func (b *Broadcaster) Run(ctx context.Context) error {
	owners, err := b.store.DistinctOwners(ctx)
	if err != nil {
		return err
	}

	now := b.now().In(b.loc)
	sent, failed := 0, 0
	for _, owner := range owners {
		habits, err := b.store.HabitsForOwner(ctx, owner)
		if err != nil {
			b.log.Warn("overview: listing habits failed", logx.Int64("owner_id", owner), logx.Err(err))
			continue
		}
		for i := range habits {
			h := &habits[i]
			if err := b.limiter.Wait(ctx); err != nil {
				return err
			}
			if err := b.send.Send(ctx, owner, overviewText(h, now), b.keyboard(h.ID)); err != nil {
				failed++
				b.log.Warn("overview send failed", logx.Int64("owner_id", owner), logx.Int64("habit_id", h.ID), logx.Err(err))
				continue
			}
			sent++
		}
	}
	b.log.Info("daily overview sent", logx.Int("owners", len(owners)), logx.Int("sent", sent), logx.Int("failed", failed))
	return nil
}

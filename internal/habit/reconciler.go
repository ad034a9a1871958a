package habit

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"habitbot/internal/storage"
	logx "habitbot/pkg/logx"
)

// timePattern accepts "H:MM" or "HH:MM" with a 0-59 minute. The hour range
// is checked separately after parsing.
var timePattern = regexp.MustCompile(`^(\d{1,2}):([0-5]\d)$`)

// ParseReminderTime validates a stored/user-entered reminder time and returns
// its hour and minute.
func ParseReminderTime(s string) (hour, minute int, err error) {
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	return hour, minute, nil
}

// JobName maps a habit id to its scheduler job name. The mapping is
// injective and stable for the lifetime of the habit.
func JobName(habitID int64) string {
	return "habit.reminder." + strconv.FormatInt(habitID, 10)
}

// Scheduler is the trigger surface the reconciler drives.
// AddDaily upserts by name; Remove of an absent name is a no-op.
type Scheduler interface {
	AddDaily(name string, hour, minute int, timeout time.Duration, job func(ctx context.Context) error) (string, error)
	Remove(name string) bool
}

// Sender delivers a message to a user. Markup is adapter-specific keyboard
// markup (opaque to this package).
type Sender interface {
	Send(ctx context.Context, ownerID int64, text string, markup any) error
}

// Keyboard builds the per-habit action keyboard (done/edit/delete).
type Keyboard func(habitID int64) any

// Reconciler keeps exactly one scheduler job per stored habit.
type Reconciler struct {
	store    storage.Store
	sched    Scheduler
	send     Sender
	keyboard Keyboard
	log      logx.Logger

	sendTimeout time.Duration
}

func NewReconciler(store storage.Store, sched Scheduler, send Sender, keyboard Keyboard, log logx.Logger) *Reconciler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reconciler{
		store:       store,
		sched:       sched,
		send:        send,
		keyboard:    keyboard,
		log:         log,
		sendTimeout: 30 * time.Second,
	}
}

// SyncOne brings the habit's scheduler job in line with the store.
//
// Missing habit: its job (if any) is removed. Malformed reminder_time in the
// store: logged and skipped, any previous job is left as-is. Store I/O errors
// are returned to the caller.
func (r *Reconciler) SyncOne(ctx context.Context, habitID int64) error {
	h, err := r.store.Habit(ctx, habitID)
	if err != nil {
		return err
	}
	if h == nil {
		r.sched.Remove(JobName(habitID))
		return nil
	}

	hour, minute, err := ParseReminderTime(h.ReminderTime)
	if err != nil {
		r.log.Warn("stored reminder time is malformed; habit left unscheduled",
			logx.Int64("habit_id", habitID), logx.String("time", h.ReminderTime))
		return nil
	}

	_, err = r.sched.AddDaily(JobName(habitID), hour, minute, r.sendTimeout, r.reminderJob(habitID))
	return err
}

// ResyncAll rebuilds every habit's job from the store. Call it on boot before
// the scheduler starts. A failure on one habit never blocks the rest.
func (r *Reconciler) ResyncAll(ctx context.Context) error {
	ids, err := r.store.HabitIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := r.SyncOne(ctx, id); err != nil {
			r.log.Warn("habit resync failed", logx.Int64("habit_id", id), logx.Err(err))
		}
	}
	r.log.Info("habits resynced", logx.Int("count", len(ids)))
	return nil
}

// reminderJob builds the scheduled action for a habit. It captures only the
// id: owner, name and keyboard are re-read at fire time so the reminder
// always reflects current data. A habit deleted in the interim removes its
// own job and sends nothing.
func (r *Reconciler) reminderJob(habitID int64) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		h, err := r.store.Habit(ctx, habitID)
		if err != nil {
			return err
		}
		if h == nil {
			r.sched.Remove(JobName(habitID))
			r.log.Debug("reminder fired for deleted habit; job removed", logx.Int64("habit_id", habitID))
			return nil
		}
		return r.send.Send(ctx, h.OwnerID, ReminderText(h.Name), r.keyboard(h.ID))
	}
}

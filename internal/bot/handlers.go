package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"habitbot/internal/habit"
	"habitbot/internal/storage"
	kit "habitbot/internal/transport"
	logx "habitbot/pkg/logx"
	"habitbot/pkg/tgui"
)

// maxNameRunes bounds habit names so status cards and reminders stay well
// under Telegram's message limit even with many habits per owner.
const maxNameRunes = 64

// ---- commands ----

func (r *Router) handleStart(ctx context.Context, m *kit.Message, _ session) error {
	r.sessions.pop(m.FromID)
	r.reply(ctx, m.ChatID, msgStart, mainReplyKeyboard())
	return nil
}

func (r *Router) handleAddPrompt(ctx context.Context, m *kit.Message, _ session) error {
	r.sessions.pop(m.FromID)
	r.reply(ctx, m.ChatID, msgAddPrompt, nil)
	return nil
}

func (r *Router) handleList(ctx context.Context, m *kit.Message, _ session) error {
	habits, err := r.store.HabitsForOwner(ctx, m.FromID)
	if err != nil {
		r.reply(ctx, m.ChatID, msgSaveFailed, nil)
		return err
	}
	if len(habits) == 0 {
		r.reply(ctx, m.ChatID, msgNoHabits, nil)
		return nil
	}
	now := r.now().In(r.loc)
	for i := range habits {
		h := &habits[i]
		r.reply(ctx, m.ChatID, habit.StatusText(h, now), HabitKeyboard(h.ID))
	}
	return nil
}

// handleAddHabit parses "Name, HH:MM" free text. A bad time answers with the
// format hint and leaves nothing stored.
func (r *Router) handleAddHabit(ctx context.Context, m *kit.Message, _ session) error {
	name, rawTime, _ := strings.Cut(m.Text, ",")
	name = tgui.TruncRunes(strings.TrimSpace(name), maxNameRunes)
	rawTime = strings.TrimSpace(rawTime)

	if name == "" {
		r.reply(ctx, m.ChatID, msgEmptyName, nil)
		return nil
	}
	if _, _, err := habit.ParseReminderTime(rawTime); err != nil {
		r.reply(ctx, m.ChatID, msgBadTime, nil)
		return nil
	}

	id, err := r.store.InsertHabit(ctx, storage.Habit{
		OwnerID:      m.FromID,
		Name:         name,
		ReminderTime: rawTime,
		Timezone:     r.loc.String(),
		CreatedAt:    r.now().In(r.loc),
	})
	if err != nil {
		r.reply(ctx, m.ChatID, msgAddFailed, nil)
		return err
	}
	if err := r.rec.SyncOne(ctx, id); err != nil {
		r.log.Warn("new habit left unscheduled", logx.Int64("habit_id", id), logx.Err(err))
	}

	r.reply(ctx, m.ChatID, fmt.Sprintf("Привычка '%s' добавлена! Буду напоминать каждый день в %s.", name, rawTime), nil)
	return nil
}

// ---- edit states ----

func (r *Router) handleNewName(ctx context.Context, m *kit.Message, st session) error {
	name := tgui.TruncRunes(strings.TrimSpace(m.Text), maxNameRunes)
	if name == "" {
		// Keep the state so the user can try again.
		r.reply(ctx, m.ChatID, msgEmptyName, nil)
		return nil
	}
	r.sessions.pop(m.FromID)

	if err := r.store.UpdateHabitName(ctx, st.HabitID, name); err != nil {
		if err == storage.ErrNotFound {
			r.reply(ctx, m.ChatID, msgNotFound, nil)
			return nil
		}
		r.reply(ctx, m.ChatID, msgSaveFailed, nil)
		return err
	}
	if err := r.rec.SyncOne(ctx, st.HabitID); err != nil {
		r.log.Warn("habit resync after rename failed", logx.Int64("habit_id", st.HabitID), logx.Err(err))
	}
	r.reply(ctx, m.ChatID, fmt.Sprintf("Название изменено на '%s'.", name), nil)
	return nil
}

func (r *Router) handleNewTime(ctx context.Context, m *kit.Message, st session) error {
	raw := strings.TrimSpace(m.Text)
	if _, _, err := habit.ParseReminderTime(raw); err != nil {
		r.reply(ctx, m.ChatID, msgBadTime, nil)
		return nil
	}
	r.sessions.pop(m.FromID)

	if err := r.store.UpdateHabitTime(ctx, st.HabitID, raw); err != nil {
		if err == storage.ErrNotFound {
			r.reply(ctx, m.ChatID, msgNotFound, nil)
			return nil
		}
		r.reply(ctx, m.ChatID, msgSaveFailed, nil)
		return err
	}
	if err := r.rec.SyncOne(ctx, st.HabitID); err != nil {
		r.log.Warn("habit reschedule failed", logx.Int64("habit_id", st.HabitID), logx.Err(err))
	}
	r.reply(ctx, m.ChatID, fmt.Sprintf("Время напоминания изменено на %s.", raw), nil)
	return nil
}

// ---- callbacks ----

func parseHabitID(payload string) (int64, bool) {
	id, err := strconv.ParseInt(payload, 10, 64)
	return id, err == nil && id > 0
}

func (r *Router) cbDone(ctx context.Context, cb *kit.Callback, payload string) error {
	id, ok := parseHabitID(payload)
	if !ok {
		r.answer(ctx, cb.ID, cbError)
		return nil
	}

	if _, err := r.store.IncrementCompleted(ctx, id); err != nil {
		if err == storage.ErrNotFound {
			r.answer(ctx, cb.ID, cbError)
			return nil
		}
		r.answer(ctx, cb.ID, cbError)
		return err
	}

	if err := r.rec.SyncOne(ctx, id); err != nil {
		r.log.Warn("habit resync after completion failed", logx.Int64("habit_id", id), logx.Err(err))
	}

	h, err := r.store.Habit(ctx, id)
	if err != nil || h == nil {
		r.answer(ctx, cb.ID, cbDone)
		return err
	}
	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	if err := r.adapter.EditText(ctx, ref, habit.StatusText(h, r.now().In(r.loc)), &kit.SendOptions{
		ReplyMarkupAdapter: HabitKeyboard(h.ID),
	}); err != nil {
		r.log.Warn("status card update failed", logx.Int64("habit_id", id), logx.Err(err))
	}
	r.answer(ctx, cb.ID, cbDone)
	return nil
}

func (r *Router) cbEditMenu(ctx context.Context, cb *kit.Callback, payload string) error {
	id, ok := parseHabitID(payload)
	if !ok {
		r.answer(ctx, cb.ID, cbError)
		return nil
	}
	h, err := r.store.Habit(ctx, id)
	if err != nil {
		r.answer(ctx, cb.ID, cbError)
		return err
	}
	if h == nil {
		r.answer(ctx, cb.ID, msgNotFound)
		return nil
	}
	r.reply(ctx, cb.ChatID, fmt.Sprintf("Что изменить в привычке '%s'?", h.Name), editMenuKeyboard(id))
	r.answer(ctx, cb.ID, "")
	return nil
}

func (r *Router) cbDelete(ctx context.Context, cb *kit.Callback, payload string) error {
	id, ok := parseHabitID(payload)
	if !ok {
		r.answer(ctx, cb.ID, cbDeleteError)
		return nil
	}
	h, err := r.store.Habit(ctx, id)
	if err != nil {
		r.answer(ctx, cb.ID, cbDeleteError)
		return err
	}
	if h == nil {
		r.answer(ctx, cb.ID, msgNotFound)
		return nil
	}

	if err := r.store.DeleteHabit(ctx, id); err != nil && err != storage.ErrNotFound {
		r.answer(ctx, cb.ID, cbDeleteError)
		return err
	}
	// Reconcile after delete drops the habit's reminder job.
	if err := r.rec.SyncOne(ctx, id); err != nil {
		r.log.Warn("job cleanup after delete failed", logx.Int64("habit_id", id), logx.Err(err))
	}

	ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	if err := r.adapter.EditText(ctx, ref, fmt.Sprintf("Привычка '%s' удалена.", h.Name), nil); err != nil {
		r.log.Warn("delete confirmation edit failed", logx.Int64("habit_id", id), logx.Err(err))
	}
	r.answer(ctx, cb.ID, cbDeleted)
	return nil
}

func (r *Router) cbEditName(ctx context.Context, cb *kit.Callback, payload string) error {
	id, ok := parseHabitID(payload)
	if !ok {
		r.answer(ctx, cb.ID, cbError)
		return nil
	}
	r.sessions.set(cb.FromID, StateAwaitingNewName, id)
	r.reply(ctx, cb.ChatID, msgNewNamePrompt, nil)
	r.answer(ctx, cb.ID, "")
	return nil
}

func (r *Router) cbEditTime(ctx context.Context, cb *kit.Callback, payload string) error {
	id, ok := parseHabitID(payload)
	if !ok {
		r.answer(ctx, cb.ID, cbError)
		return nil
	}
	r.sessions.set(cb.FromID, StateAwaitingNewTime, id)
	r.reply(ctx, cb.ChatID, msgNewTimePrompt, nil)
	r.answer(ctx, cb.ID, "")
	return nil
}

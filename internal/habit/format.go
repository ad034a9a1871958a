package habit

import (
	"fmt"
	"time"

	"habitbot/internal/storage"
)

// FormatAge renders the elapsed time since created as whole days plus the
// remaining whole hours, both truncated ("1 дней 2 часов" after 1d2h59m).
func FormatAge(created, now time.Time) string {
	d := now.Sub(created)
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))
	hours := int((d % (24 * time.Hour)) / time.Hour)
	return fmt.Sprintf("%d дней %d часов", days, hours)
}

// ReminderText is the daily reminder message for a habit.
func ReminderText(name string) string {
	return "Напоминание: " + name
}

// StatusText renders a habit status card (used by /list_habits and after a
// completion).
func StatusText(h *storage.Habit, now time.Time) string {
	return fmt.Sprintf("%s\nВремя с создания: %s\nВыполнено: %d раз\nНапоминание: каждый день в %s",
		h.Name, FormatAge(h.CreatedAt, now), h.CompletedCount, h.ReminderTime)
}

// overviewText is the daily-overview variant of the status card.
func overviewText(h *storage.Habit, now time.Time) string {
	return fmt.Sprintf("%s\nВремя с создания: %s\nВыполнено: %d раз\nСледующее напоминание: каждый день в %s",
		h.Name, FormatAge(h.CreatedAt, now), h.CompletedCount, h.ReminderTime)
}

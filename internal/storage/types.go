package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("habit not found")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//
// If Driver is empty, "sqlite" is assumed.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Habit is a stored habit record.
//
// ID is assigned by the store on insert and never changes. ReminderTime is
// kept as the raw "H:MM"/"HH:MM" text the user entered; validation happens in
// the habit package so a bad stored value can be skipped without breaking
// reads. Timezone is informational (the process runs in one fixed zone).
type Habit struct {
	ID             int64
	OwnerID        int64
	Name           string
	ReminderTime   string
	Timezone       string
	CreatedAt      time.Time
	CompletedCount int
}

// Store is the persistence API used by the habit and bot packages.
type Store interface {
	InsertHabit(ctx context.Context, h Habit) (int64, error)
	// Habit returns (nil, nil) when the id does not exist.
	Habit(ctx context.Context, id int64) (*Habit, error)
	HabitIDs(ctx context.Context) ([]int64, error)
	HabitsForOwner(ctx context.Context, ownerID int64) ([]Habit, error)
	DistinctOwners(ctx context.Context) ([]int64, error)

	UpdateHabitName(ctx context.Context, id int64, name string) error
	UpdateHabitTime(ctx context.Context, id int64, reminderTime string) error
	// IncrementCompleted bumps completed_count by exactly one in a single
	// statement and returns the new count. Concurrent calls never lose an
	// increment.
	IncrementCompleted(ctx context.Context, id int64) (int, error)
	DeleteHabit(ctx context.Context, id int64) error

	Close() error
}

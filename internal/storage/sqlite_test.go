package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	logx "habitbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "habits.db"),
		BusyTimeout: 5 * time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestHabitCRUD(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	id, err := st.InsertHabit(ctx, Habit{
		OwnerID:      100,
		Name:         "Чтение",
		ReminderTime: "21:30",
		Timezone:     "Asia/Bishkek",
		CreatedAt:    created,
	})
	if err != nil {
		t.Fatalf("InsertHabit: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	h, err := st.Habit(ctx, id)
	if err != nil {
		t.Fatalf("Habit: %v", err)
	}
	if h == nil {
		t.Fatal("inserted habit not found")
	}
	if h.Name != "Чтение" || h.ReminderTime != "21:30" || h.OwnerID != 100 {
		t.Fatalf("unexpected habit: %+v", h)
	}
	if !h.CreatedAt.Equal(created) {
		t.Fatalf("created_at round trip: got %v, want %v", h.CreatedAt, created)
	}
	if h.CompletedCount != 0 {
		t.Fatalf("fresh habit has count %d", h.CompletedCount)
	}

	if err := st.UpdateHabitName(ctx, id, "Чтение книг"); err != nil {
		t.Fatalf("UpdateHabitName: %v", err)
	}
	if err := st.UpdateHabitTime(ctx, id, "07:15"); err != nil {
		t.Fatalf("UpdateHabitTime: %v", err)
	}
	h, err = st.Habit(ctx, id)
	if err != nil {
		t.Fatalf("Habit after update: %v", err)
	}
	if h.Name != "Чтение книг" || h.ReminderTime != "07:15" {
		t.Fatalf("updates not applied: %+v", h)
	}

	if err := st.DeleteHabit(ctx, id); err != nil {
		t.Fatalf("DeleteHabit: %v", err)
	}
	h, err = st.Habit(ctx, id)
	if err != nil {
		t.Fatalf("Habit after delete: %v", err)
	}
	if h != nil {
		t.Fatal("deleted habit still readable")
	}
}

func TestMissingIDBehavior(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	h, err := st.Habit(ctx, 9999)
	if err != nil {
		t.Fatalf("Habit on missing id: %v", err)
	}
	if h != nil {
		t.Fatal("missing id must read as nil")
	}

	if err := st.UpdateHabitName(ctx, 9999, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateHabitName on missing id: %v", err)
	}
	if err := st.UpdateHabitTime(ctx, 9999, "08:00"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateHabitTime on missing id: %v", err)
	}
	if err := st.DeleteHabit(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteHabit on missing id: %v", err)
	}
	if _, err := st.IncrementCompleted(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("IncrementCompleted on missing id: %v", err)
	}
}

func TestOwnersAndListing(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	for _, h := range []Habit{
		{OwnerID: 1, Name: "a", ReminderTime: "08:00"},
		{OwnerID: 1, Name: "b", ReminderTime: "09:00"},
		{OwnerID: 2, Name: "c", ReminderTime: "10:00"},
	} {
		if _, err := st.InsertHabit(ctx, h); err != nil {
			t.Fatalf("InsertHabit: %v", err)
		}
	}

	ids, err := st.HabitIDs(ctx)
	if err != nil {
		t.Fatalf("HabitIDs: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %v", ids)
	}

	owners, err := st.DistinctOwners(ctx)
	if err != nil {
		t.Fatalf("DistinctOwners: %v", err)
	}
	if len(owners) != 2 || owners[0] != 1 || owners[1] != 2 {
		t.Fatalf("unexpected owners: %v", owners)
	}

	mine, err := st.HabitsForOwner(ctx, 1)
	if err != nil {
		t.Fatalf("HabitsForOwner: %v", err)
	}
	if len(mine) != 2 || mine[0].Name != "a" || mine[1].Name != "b" {
		t.Fatalf("unexpected habits for owner 1: %+v", mine)
	}

	none, err := st.HabitsForOwner(ctx, 42)
	if err != nil {
		t.Fatalf("HabitsForOwner(42): %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no habits for unknown owner, got %+v", none)
	}
}

func TestIncrementCompletedIsAtomic(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.InsertHabit(ctx, Habit{OwnerID: 1, Name: "a", ReminderTime: "08:00"})
	if err != nil {
		t.Fatalf("InsertHabit: %v", err)
	}

	const workers = 10
	const perWorker = 5

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := st.IncrementCompleted(ctx, id); err != nil {
					errCh <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent increment: %v", err)
	}

	h, err := st.Habit(ctx, id)
	if err != nil {
		t.Fatalf("Habit: %v", err)
	}
	if h.CompletedCount != workers*perWorker {
		t.Fatalf("lost increments: got %d, want %d", h.CompletedCount, workers*perWorker)
	}
}

func TestIncrementCompletedReturnsNewCount(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	id, err := st.InsertHabit(ctx, Habit{OwnerID: 1, Name: "a", ReminderTime: "08:00"})
	if err != nil {
		t.Fatalf("InsertHabit: %v", err)
	}
	for want := 1; want <= 3; want++ {
		got, err := st.IncrementCompleted(ctx, id)
		if err != nil {
			t.Fatalf("IncrementCompleted: %v", err)
		}
		if got != want {
			t.Fatalf("IncrementCompleted returned %d, want %d", got, want)
		}
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "postgres", Path: "x"}, logx.Nop())
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "habits.db")
	ctx := context.Background()

	st, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := st.InsertHabit(ctx, Habit{OwnerID: 1, Name: "a", ReminderTime: "08:00"})
	if err != nil {
		t.Fatalf("InsertHabit: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	h, err := st2.Habit(ctx, id)
	if err != nil {
		t.Fatalf("Habit after reopen: %v", err)
	}
	if h == nil || h.Name != "a" {
		t.Fatalf("habit lost across reopen: %+v", h)
	}
}

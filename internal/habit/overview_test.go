package habit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"habitbot/internal/storage"
	logx "habitbot/pkg/logx"
)

func TestBroadcasterReachesEveryOwner(t *testing.T) {
	store := newFakeStore()
	send := newFakeSender()
	b := NewBroadcaster(store, send, testKeyboard, time.UTC, 100, logx.Nop())

	store.put(storage.Habit{OwnerID: 1, Name: "a", ReminderTime: "08:00"})
	store.put(storage.Habit{OwnerID: 1, Name: "b", ReminderTime: "09:00"})
	store.put(storage.Habit{OwnerID: 2, Name: "c", ReminderTime: "10:00"})
	store.put(storage.Habit{OwnerID: 3, Name: "d", ReminderTime: "11:00"})

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	perOwner := map[int64]int{}
	for _, m := range send.messages() {
		perOwner[m.ownerID]++
	}
	if perOwner[1] != 2 || perOwner[2] != 1 || perOwner[3] != 1 {
		t.Fatalf("unexpected per-owner message counts: %v", perOwner)
	}
}

func TestBroadcasterSurvivesPerOwnerFailure(t *testing.T) {
	store := newFakeStore()
	send := newFakeSender()
	b := NewBroadcaster(store, send, testKeyboard, time.UTC, 100, logx.Nop())

	store.put(storage.Habit{OwnerID: 1, Name: "a", ReminderTime: "08:00"})
	store.put(storage.Habit{OwnerID: 2, Name: "b", ReminderTime: "09:00"})
	store.put(storage.Habit{OwnerID: 3, Name: "c", ReminderTime: "10:00"})
	send.fail[2] = errors.New("blocked the bot")

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run must not fail on one unreachable owner: %v", err)
	}

	got := map[int64]bool{}
	for _, m := range send.messages() {
		got[m.ownerID] = true
	}
	if !got[1] || !got[3] {
		t.Fatalf("owners 1 and 3 must still receive the overview, got %v", got)
	}
	if got[2] {
		t.Fatal("owner 2 send must have failed")
	}
}

func TestBroadcasterEmptyStore(t *testing.T) {
	store := newFakeStore()
	send := newFakeSender()
	b := NewBroadcaster(store, send, testKeyboard, time.UTC, 100, logx.Nop())

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run on empty store: %v", err)
	}
	if len(send.messages()) != 0 {
		t.Fatal("nothing may be sent when no habits exist")
	}
}

func TestBroadcasterRegisterRejectsBadTime(t *testing.T) {
	store := newFakeStore()
	send := newFakeSender()
	b := NewBroadcaster(store, send, testKeyboard, time.UTC, 100, logx.Nop())
	sched := newFakeSched()

	if err := b.Register(sched, "25:00", time.Minute); err == nil {
		t.Fatal("expected error for invalid overview time")
	}
	if err := b.Register(sched, "08:00", time.Minute); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, ok := sched.job(OverviewJobName); !ok {
		t.Fatal("overview job must be registered under its fixed name")
	}
}

func TestFormatAge(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		elapsed time.Duration
		want    string
	}{
		{0, "0 дней 0 часов"},
		{59 * time.Minute, "0 дней 0 часов"},
		{time.Hour, "0 дней 1 часов"},
		{26*time.Hour + 59*time.Minute, "1 дней 2 часов"},
		{72 * time.Hour, "3 дней 0 часов"},
	}
	for _, tc := range cases {
		if got := FormatAge(base, base.Add(tc.elapsed)); got != tc.want {
			t.Fatalf("FormatAge(+%v) = %q, want %q", tc.elapsed, got, tc.want)
		}
	}

	// Clock skew: created in the future never yields negative parts.
	if got := FormatAge(base.Add(time.Hour), base); got != "0 дней 0 часов" {
		t.Fatalf("future created = %q, want zero age", got)
	}
}

func TestStatusText(t *testing.T) {
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	h := &storage.Habit{
		ID:             1,
		Name:           "Чтение",
		ReminderTime:   "21:30",
		CreatedAt:      now.Add(-26 * time.Hour),
		CompletedCount: 4,
	}

	got := StatusText(h, now)
	for _, want := range []string{"Чтение", "1 дней 2 часов", "Выполнено: 4 раз", "каждый день в 21:30"} {
		if !strings.Contains(got, want) {
			t.Fatalf("status card %q missing %q", got, want)
		}
	}
}

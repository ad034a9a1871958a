package habit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"habitbot/internal/storage"
	logx "habitbot/pkg/logx"
)

// fakeStore is an in-memory storage.Store for reconciler tests.
type fakeStore struct {
	mu     sync.Mutex
	habits map[int64]storage.Habit
	nextID int64
	errOn  map[int64]error // Habit() failures by id
}

func newFakeStore() *fakeStore {
	return &fakeStore{habits: map[int64]storage.Habit{}, errOn: map[int64]error{}}
}

func (s *fakeStore) put(h storage.Habit) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	h.ID = s.nextID
	s.habits[h.ID] = h
	return h.ID
}

func (s *fakeStore) InsertHabit(_ context.Context, h storage.Habit) (int64, error) {
	return s.put(h), nil
}

func (s *fakeStore) Habit(_ context.Context, id int64) (*storage.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errOn[id]; err != nil {
		return nil, err
	}
	h, ok := s.habits[id]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (s *fakeStore) HabitIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.habits))
	for id := int64(1); id <= s.nextID; id++ {
		if _, ok := s.habits[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *fakeStore) HabitsForOwner(_ context.Context, ownerID int64) ([]storage.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.Habit
	for id := int64(1); id <= s.nextID; id++ {
		if h, ok := s.habits[id]; ok && h.OwnerID == ownerID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *fakeStore) DistinctOwners(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[int64]bool{}
	var out []int64
	for id := int64(1); id <= s.nextID; id++ {
		if h, ok := s.habits[id]; ok && !seen[h.OwnerID] {
			seen[h.OwnerID] = true
			out = append(out, h.OwnerID)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateHabitName(_ context.Context, id int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[id]
	if !ok {
		return storage.ErrNotFound
	}
	h.Name = name
	s.habits[id] = h
	return nil
}

func (s *fakeStore) UpdateHabitTime(_ context.Context, id int64, t string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[id]
	if !ok {
		return storage.ErrNotFound
	}
	h.ReminderTime = t
	s.habits[id] = h
	return nil
}

func (s *fakeStore) IncrementCompleted(_ context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[id]
	if !ok {
		return 0, storage.ErrNotFound
	}
	h.CompletedCount++
	s.habits[id] = h
	return h.CompletedCount, nil
}

func (s *fakeStore) DeleteHabit(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.habits[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.habits, id)
	return nil
}

func (s *fakeStore) Close() error { return nil }

// fakeSched records registered daily jobs by name.
type fakeSched struct {
	mu   sync.Mutex
	jobs map[string]fakeJob
}

type fakeJob struct {
	hour, minute int
	run          func(ctx context.Context) error
}

func newFakeSched() *fakeSched {
	return &fakeSched{jobs: map[string]fakeJob{}}
}

func (f *fakeSched) AddDaily(name string, hour, minute int, _ time.Duration, job func(ctx context.Context) error) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[name] = fakeJob{hour: hour, minute: minute, run: job}
	return name, nil
}

func (f *fakeSched) Remove(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.jobs[name]
	delete(f.jobs, name)
	return ok
}

func (f *fakeSched) job(name string) (fakeJob, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[name]
	return j, ok
}

func (f *fakeSched) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

// fakeSender records sent messages.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentMsg
	fail map[int64]error // per-owner send failures
}

type sentMsg struct {
	ownerID int64
	text    string
	markup  any
}

func newFakeSender() *fakeSender {
	return &fakeSender{fail: map[int64]error{}}
}

func (f *fakeSender) Send(_ context.Context, ownerID int64, text string, markup any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[ownerID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMsg{ownerID: ownerID, text: text, markup: markup})
	return nil
}

func (f *fakeSender) messages() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMsg, len(f.sent))
	copy(out, f.sent)
	return out
}

func testKeyboard(habitID int64) any { return habitID }

func newTestReconciler() (*Reconciler, *fakeStore, *fakeSched, *fakeSender) {
	store := newFakeStore()
	sched := newFakeSched()
	send := newFakeSender()
	rec := NewReconciler(store, sched, send, testKeyboard, logx.Nop())
	return rec, store, sched, send
}

func TestParseReminderTime(t *testing.T) {
	valid := []struct {
		in           string
		hour, minute int
	}{
		{"0:00", 0, 0},
		{"7:05", 7, 5},
		{"08:00", 8, 0},
		{"21:30", 21, 30},
		{"23:59", 23, 59},
	}
	for _, tc := range valid {
		h, m, err := ParseReminderTime(tc.in)
		if err != nil {
			t.Fatalf("ParseReminderTime(%q): %v", tc.in, err)
		}
		if h != tc.hour || m != tc.minute {
			t.Fatalf("ParseReminderTime(%q) = %d:%d, want %d:%d", tc.in, h, m, tc.hour, tc.minute)
		}
	}

	invalid := []string{"", "21", "21:5", "21:60", "25:99", "24:00", "99:30", "a:bc", "21:30extra", " 21:30"}
	for _, in := range invalid {
		if _, _, err := ParseReminderTime(in); err == nil {
			t.Fatalf("ParseReminderTime(%q): expected error", in)
		}
	}
}

func TestJobNameInjective(t *testing.T) {
	seen := map[string]int64{}
	for _, id := range []int64{1, 2, 10, 11, 21, 100, 121} {
		name := JobName(id)
		if prev, dup := seen[name]; dup {
			t.Fatalf("JobName collision: ids %d and %d both map to %q", prev, id, name)
		}
		seen[name] = id
		if name != JobName(id) {
			t.Fatalf("JobName(%d) not stable", id)
		}
	}
}

func TestResyncAllSchedulesEveryValidHabit(t *testing.T) {
	rec, store, sched, _ := newTestReconciler()

	id1 := store.put(storage.Habit{OwnerID: 100, Name: "Чтение", ReminderTime: "21:30"})
	id2 := store.put(storage.Habit{OwnerID: 100, Name: "Зарядка", ReminderTime: "7:05"})
	store.put(storage.Habit{OwnerID: 200, Name: "Сломанная", ReminderTime: "25:99"})

	if err := rec.ResyncAll(context.Background()); err != nil {
		t.Fatalf("ResyncAll: %v", err)
	}

	if got := sched.count(); got != 2 {
		t.Fatalf("expected 2 jobs (malformed habit skipped), got %d", got)
	}
	j1, ok := sched.job(JobName(id1))
	if !ok {
		t.Fatalf("no job for habit %d", id1)
	}
	if j1.hour != 21 || j1.minute != 30 {
		t.Fatalf("habit %d scheduled at %d:%d, want 21:30", id1, j1.hour, j1.minute)
	}
	if j2, ok := sched.job(JobName(id2)); !ok || j2.hour != 7 || j2.minute != 5 {
		t.Fatalf("habit %d not scheduled at 7:05", id2)
	}
}

func TestResyncAllIsolatesFailures(t *testing.T) {
	rec, store, sched, _ := newTestReconciler()

	id1 := store.put(storage.Habit{OwnerID: 1, Name: "a", ReminderTime: "08:00"})
	id2 := store.put(storage.Habit{OwnerID: 1, Name: "b", ReminderTime: "09:00"})
	store.errOn[id1] = errors.New("disk on fire")

	if err := rec.ResyncAll(context.Background()); err != nil {
		t.Fatalf("ResyncAll must not fail on a single bad habit: %v", err)
	}
	if _, ok := sched.job(JobName(id2)); !ok {
		t.Fatalf("habit %d must still be scheduled", id2)
	}
}

func TestSyncOneReplacesJobOnTimeChange(t *testing.T) {
	rec, store, sched, _ := newTestReconciler()

	id := store.put(storage.Habit{OwnerID: 1, Name: "a", ReminderTime: "08:00"})
	if err := rec.SyncOne(context.Background(), id); err != nil {
		t.Fatalf("SyncOne: %v", err)
	}

	if err := store.UpdateHabitTime(context.Background(), id, "19:45"); err != nil {
		t.Fatalf("UpdateHabitTime: %v", err)
	}
	if err := rec.SyncOne(context.Background(), id); err != nil {
		t.Fatalf("SyncOne after edit: %v", err)
	}

	if got := sched.count(); got != 1 {
		t.Fatalf("expected exactly 1 job after reschedule, got %d", got)
	}
	j, _ := sched.job(JobName(id))
	if j.hour != 19 || j.minute != 45 {
		t.Fatalf("job fires at %d:%d, want 19:45", j.hour, j.minute)
	}
}

func TestSyncOneRemovesJobForDeletedHabit(t *testing.T) {
	rec, store, sched, _ := newTestReconciler()

	id := store.put(storage.Habit{OwnerID: 1, Name: "a", ReminderTime: "08:00"})
	if err := rec.SyncOne(context.Background(), id); err != nil {
		t.Fatalf("SyncOne: %v", err)
	}
	if err := store.DeleteHabit(context.Background(), id); err != nil {
		t.Fatalf("DeleteHabit: %v", err)
	}
	if err := rec.SyncOne(context.Background(), id); err != nil {
		t.Fatalf("SyncOne after delete: %v", err)
	}
	if sched.count() != 0 {
		t.Fatal("job must be removed once the habit is gone")
	}
}

func TestSyncOneKeepsPriorJobOnMalformedTime(t *testing.T) {
	rec, store, sched, _ := newTestReconciler()

	id := store.put(storage.Habit{OwnerID: 1, Name: "a", ReminderTime: "08:00"})
	if err := rec.SyncOne(context.Background(), id); err != nil {
		t.Fatalf("SyncOne: %v", err)
	}

	store.mu.Lock()
	h := store.habits[id]
	h.ReminderTime = "99:99"
	store.habits[id] = h
	store.mu.Unlock()

	if err := rec.SyncOne(context.Background(), id); err != nil {
		t.Fatalf("SyncOne with malformed time must not error: %v", err)
	}
	if j, ok := sched.job(JobName(id)); !ok || j.hour != 8 {
		t.Fatal("prior job must survive a malformed stored time")
	}
}

func TestReminderFireSendsCurrentData(t *testing.T) {
	rec, store, sched, send := newTestReconciler()

	id := store.put(storage.Habit{OwnerID: 42, Name: "Чтение", ReminderTime: "21:30"})
	if err := rec.SyncOne(context.Background(), id); err != nil {
		t.Fatalf("SyncOne: %v", err)
	}

	// Rename between scheduling and firing: the reminder must carry the
	// current name.
	if err := store.UpdateHabitName(context.Background(), id, "Чтение книг"); err != nil {
		t.Fatalf("UpdateHabitName: %v", err)
	}

	j, _ := sched.job(JobName(id))
	if err := j.run(context.Background()); err != nil {
		t.Fatalf("reminder run: %v", err)
	}

	msgs := send.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].ownerID != 42 {
		t.Fatalf("sent to %d, want 42", msgs[0].ownerID)
	}
	if msgs[0].text != "Напоминание: Чтение книг" {
		t.Fatalf("unexpected reminder text %q", msgs[0].text)
	}
	if msgs[0].markup != int64(id) {
		t.Fatalf("keyboard built for habit %v, want %d", msgs[0].markup, id)
	}
}

func TestReminderFireAfterDeleteSelfRemoves(t *testing.T) {
	rec, store, sched, send := newTestReconciler()

	id := store.put(storage.Habit{OwnerID: 42, Name: "a", ReminderTime: "21:30"})
	if err := rec.SyncOne(context.Background(), id); err != nil {
		t.Fatalf("SyncOne: %v", err)
	}
	j, _ := sched.job(JobName(id))

	if err := store.DeleteHabit(context.Background(), id); err != nil {
		t.Fatalf("DeleteHabit: %v", err)
	}

	if err := j.run(context.Background()); err != nil {
		t.Fatalf("fire after delete must not error: %v", err)
	}
	if len(send.messages()) != 0 {
		t.Fatal("no reminder may be sent for a deleted habit")
	}
	if sched.count() != 0 {
		t.Fatal("firing for a deleted habit must remove its own job")
	}
}

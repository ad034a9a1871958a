package bot

import "sync"

// State is the per-user conversation state. It replaces ad hoc "edit mode"
// membership checks with an explicit finite-state model: input dispatch
// switches on it, and state-specific handlers run before generic ones.
type State int

const (
	StateIdle State = iota
	StateAwaitingNewName
	StateAwaitingNewTime
)

type session struct {
	State   State
	HabitID int64
}

type sessions struct {
	mu sync.Mutex
	m  map[int64]session
}

func newSessions() *sessions {
	return &sessions{m: map[int64]session{}}
}

func (s *sessions) get(userID int64) session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[userID] // zero value is StateIdle
}

func (s *sessions) set(userID int64, st State, habitID int64) {
	s.mu.Lock()
	s.m[userID] = session{State: st, HabitID: habitID}
	s.mu.Unlock()
}

// pop returns the current session and resets the user to idle.
func (s *sessions) pop(userID int64) session {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.m[userID]
	delete(s.m, userID)
	return cur
}

package scheduler

import "time"

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	tz := s.cfg.Timezone
	workers := s.cfg.Workers
	defs := make([]*scheduleDef, len(s.defs))
	copy(defs, s.defs)
	c := s.c
	loc := s.loc
	ql := 0
	if s.queue != nil {
		ql = len(s.queue)
	}
	s.mu.Unlock()

	if tz == "" && loc != nil {
		tz = loc.String()
	}
	if workers <= 0 {
		workers = 2
	}

	items := make([]ScheduleInfo, 0, len(defs))
	for _, d := range defs {
		it := ScheduleInfo{ID: d.id, Name: d.name, Spec: d.spec, Timeout: d.timeout}
		if c != nil && d.entryID != 0 {
			e := c.Entry(d.entryID)
			it.Next = e.Next
			it.Prev = e.Prev
		}
		items = append(items, it)
	}

	s.hmu.Lock()
	hist := make([]HistoryItem, len(s.history))
	copy(hist, s.history)
	s.hmu.Unlock()

	return Snapshot{
		Timezone:  tz,
		Workers:   workers,
		QueueLen:  ql,
		Schedules: items,
		History:   hist,
	}
}

// NextRun reports the next fire time for the named job (zero when unknown,
// e.g. before Start).
func (s *Service) NextRun(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}
	}
	for i := range s.defs {
		if s.defs[i].name == name && s.defs[i].entryID != 0 {
			return s.c.Entry(s.defs[i].entryID).Next
		}
	}
	return time.Time{}
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "habitbot/pkg/logx"
)

// AddDaily registers a job firing every day at hour:minute in the scheduler
// timezone. Registering an existing name replaces the previous job
// (remove-then-add): at most one job per name ever exists.
func (s *Service) AddDaily(name string, hour, minute int, timeout time.Duration, job func(ctx context.Context) error) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("name required")
	}
	if hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour %d", hour)
	}
	if minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute %d", minute)
	}
	if job == nil {
		return "", errors.New("job required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.removeScheduleLocked(name)

	id := fmt.Sprintf("daily:%d", time.Now().UnixNano())
	d := &scheduleDef{
		id:      id,
		name:    name,
		spec:    dailySpec(hour, minute),
		timeout: s.resolveTimeout(timeout),
		job:     job,
		state:   &runState{},
	}
	s.defs = append(s.defs, d)
	if s.c != nil {
		if err := s.addCronLocked(d); err != nil {
			s.log.Error("schedule register failed", logx.String("name", name), logx.String("spec", d.spec), logx.Err(err))
			return id, err
		}
	}
	// Scheduler not started yet: keep the definition and register on Start().
	s.log.Debug("schedule registered", logx.String("name", name), logx.String("spec", d.spec), logx.Duration("timeout", d.timeout))
	return id, nil
}

// Remove unschedules the job with the given name. It returns true if
// something was removed; removing an absent name is a no-op.
// Safe to call whether or not the scheduler is started.
func (s *Service) Remove(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	s.mu.Lock()
	removed := s.removeScheduleLocked(name)
	s.mu.Unlock()
	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

// dailySpec builds the 5-field cron spec for a daily HH:MM trigger.
func dailySpec(hour, minute int) string {
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

// removeScheduleLocked removes all defs matching name and unregisters them
// from cron if running. Call with s.mu held.
func (s *Service) removeScheduleLocked(name string) bool {
	removed := false
	if s.c != nil {
		for i := range s.defs {
			if s.defs[i].name == name && s.defs[i].entryID != 0 {
				s.c.Remove(s.defs[i].entryID)
				s.defs[i].entryID = 0
				removed = true
			}
		}
	}
	// remove from persisted defs regardless of running state
	n := 0
	for _, d := range s.defs {
		if d.name == name {
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	for i := n; i < len(s.defs); i++ {
		s.defs[i] = nil
	}
	s.defs = s.defs[:n]
	return removed
}

func (s *Service) addCronLocked(d *scheduleDef) error {
	eid, err := s.c.AddFunc(d.spec, func() {
		d.state.mu.Lock()
		running := d.state.running
		d.state.mu.Unlock()
		if running {
			s.log.Debug("schedule skipped (previous run still running)", logx.String("task", d.name))
			return
		}
		s.enqueue(task{id: d.id, name: d.name, timeout: d.timeout, run: d.job, state: d.state})
	})
	if err == nil {
		d.entryID = eid
	}
	return err
}

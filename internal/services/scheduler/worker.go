package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"time"

	logx "habitbot/pkg/logx"
)

func (s *Service) enqueue(t task) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		s.log.Debug("scheduler not running; dropping task", logx.String("task", t.name))
		return
	}
	select {
	case q <- t:
	default:
		s.log.Warn("scheduler queue full; dropping task", logx.String("task", t.name), logx.Int("queue_len", len(q)), logx.Int("queue_cap", cap(q)))
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.execOne(ctx, stopCh, t)
		}
	}
}

func (s *Service) execOne(ctx context.Context, stopCh <-chan struct{}, t task) {
	start := time.Now()

	// Mark running for overlap control (shared state between cron invocations).
	if t.state != nil {
		t.state.mu.Lock()
		t.state.running = true
		t.state.mu.Unlock()
		defer func() {
			t.state.mu.Lock()
			t.state.running = false
			t.state.mu.Unlock()
		}()
	}

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	retries := cfg.RetryMax
	if retries < 0 {
		retries = 0
	}

	var err error
	attempts := 0
	maxAttempts := 1 + retries
attemptLoop:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		// Per-attempt timeout (so a timed-out first attempt doesn't poison retries).
		runCtx := ctx
		var cancel func()
		if t.timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		}
		err = t.run(runCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			break
		}
		if attempt >= maxAttempts {
			break
		}

		delay := backoffDelay(attempt)
		s.log.Debug("task retry scheduled", logx.String("task", t.name), logx.Int("attempt", attempt+1), logx.Duration("delay", delay), logx.Err(err))
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			err = ctx.Err()
			break attemptLoop
		case <-stopCh:
			if !tmr.Stop() {
				<-tmr.C
			}
			err = errors.New("scheduler stopped")
			break attemptLoop
		case <-tmr.C:
		}
	}

	dur := time.Since(start)
	item := HistoryItem{
		ID:       t.id,
		Name:     t.name,
		Started:  start,
		Duration: dur,
	}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("task failed", logx.String("task", t.name), logx.Err(err), logx.Duration("dur", dur), logx.Int("attempts", attempts))
	} else {
		s.log.Debug("task completed", logx.String("task", t.name), logx.Duration("dur", dur), logx.Int("attempts", attempts))
	}

	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, item)
	historySize := cfg.HistorySize
	if historySize <= 0 {
		historySize = 200
	}
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
}

// backoffDelay returns an exponentially growing, jittered delay for the
// given retry attempt (attempt starts at 1).
func backoffDelay(attempt int) time.Duration {
	const (
		base   = 500 * time.Millisecond
		maxD   = 15 * time.Second
		jitter = 0.2
	)
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > maxD {
			d = maxD
			break
		}
	}
	r := (rand.Float64()*2 - 1) * jitter
	d = time.Duration(float64(d) * (1 + r))
	if d < 0 {
		d = 0
	}
	if d > maxD {
		d = maxD
	}
	return d
}

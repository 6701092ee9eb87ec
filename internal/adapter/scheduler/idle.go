package scheduler

import (
	"sync"
	"time"
)

// DefaultQuiet is how long input must be silent before the relay counts as idle.
const DefaultQuiet = 50 * time.Millisecond

// Idle runs the callback once no activity has been observed for the quiet
// window. maxWait caps the delay from Schedule so a steady stream of frames
// cannot postpone the callback forever.
type Idle struct {
	quiet   time.Duration
	maxWait time.Duration

	mu        sync.Mutex
	lastTouch time.Time
	pending   func()
	deadline  time.Time
	timer     *time.Timer
	stopped   bool
}

func NewIdle(quiet, maxWait time.Duration) *Idle {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	if maxWait < quiet {
		maxWait = quiet
	}
	return &Idle{quiet: quiet, maxWait: maxWait}
}

func (s *Idle) Touch() {
	s.mu.Lock()
	s.lastTouch = time.Now()
	s.mu.Unlock()
}

func (s *Idle) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.pending = fn
	s.deadline = time.Now().Add(s.maxWait)
	s.timer = time.AfterFunc(s.quiet, s.check)
}

func (s *Idle) check() {
	s.mu.Lock()
	if s.stopped || s.pending == nil {
		s.mu.Unlock()
		return
	}

	now := time.Now()
	idleAt := s.lastTouch.Add(s.quiet)
	if now.Before(idleAt) && now.Before(s.deadline) {
		wait := idleAt.Sub(now)
		if untilDeadline := s.deadline.Sub(now); untilDeadline < wait {
			wait = untilDeadline
		}
		s.timer = time.AfterFunc(wait, s.check)
		s.mu.Unlock()
		return
	}

	fn := s.pending
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()

	fn()
}

func (s *Idle) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

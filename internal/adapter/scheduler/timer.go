package scheduler

import (
	"sync"
	"time"
)

// DefaultFallback bounds how long a scheduled flush may wait.
const DefaultFallback = 500 * time.Millisecond

// Timer runs the callback after a fixed delay.
type Timer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func NewTimer(delay time.Duration) *Timer {
	if delay < 0 {
		delay = 0
	}
	return &Timer{delay: delay}
}

func (t *Timer) Schedule(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.timer = time.AfterFunc(t.delay, fn)
}

func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

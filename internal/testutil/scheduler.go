package testutil

import "sync"

// ManualScheduler holds scheduled callbacks until the test fires them, so
// batching can be asserted without real timers.
type ManualScheduler struct {
	mu        sync.Mutex
	pending   []func()
	Scheduled int
	Touches   int
	stopped   bool
}

func (m *ManualScheduler) Schedule(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.Scheduled++
	m.pending = append(m.pending, fn)
}

func (m *ManualScheduler) Touch() {
	m.mu.Lock()
	m.Touches++
	m.mu.Unlock()
}

func (m *ManualScheduler) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.pending = nil
	m.mu.Unlock()
}

// Pending reports how many callbacks are waiting.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Fire runs every waiting callback on the calling goroutine and returns how
// many ran.
func (m *ManualScheduler) Fire() int {
	m.mu.Lock()
	fns := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

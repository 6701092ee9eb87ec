package memory

import "sync"

// Location holds the view path the UI last reported.
type Location struct {
	mu   sync.RWMutex
	path string
}

func NewLocation(initial string) *Location {
	return &Location{path: initial}
}

func (l *Location) Current() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.path
}

func (l *Location) Set(path string) {
	l.mu.Lock()
	l.path = path
	l.mu.Unlock()
}

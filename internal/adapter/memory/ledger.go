package memory

import (
	"sync"
	"time"
)

// Ledger is an in-memory dedup ledger. With a zero TTL entries are kept for
// the lifetime of the process; otherwise an entry is forgotten once it is
// older than ttl and the key may notify again.
type Ledger struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

func NewLedger(ttl time.Duration) *Ledger {
	return &Ledger{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

func (l *Ledger) Record(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if recordedAt, ok := l.entries[key]; ok && !l.expired(recordedAt) {
		return false
	}
	l.entries[key] = l.now()
	return true
}

func (l *Ledger) Contains(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	recordedAt, ok := l.entries[key]
	if !ok {
		return false
	}
	if l.expired(recordedAt) {
		delete(l.entries, key)
		return false
	}
	return true
}

// TTL is how long a key suppresses repeats; zero means forever.
func (l *Ledger) TTL() time.Duration { return l.ttl }

// Len counts entries, including expired ones not yet swept.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Sweep drops expired entries and returns how many were removed.
func (l *Ledger) Sweep() int {
	if l.ttl <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, recordedAt := range l.entries {
		if l.expired(recordedAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

func (l *Ledger) expired(recordedAt time.Time) bool {
	return l.ttl > 0 && l.now().Sub(recordedAt) >= l.ttl
}

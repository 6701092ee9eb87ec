package memory

import "time"

// SetClock replaces the ledger's time source.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

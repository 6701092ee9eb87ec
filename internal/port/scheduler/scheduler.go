package scheduler

// Scheduler runs a callback later on its own goroutine.
// The relay guarantees at most one outstanding Schedule call at a time.
type Scheduler interface {
	Schedule(fn func())
	// Stop cancels a pending callback. Schedule after Stop is a no-op.
	Stop()
}

// ActivityObserver is implemented by schedulers that time their callback
// against input activity. The relay calls Touch on every enqueued frame.
type ActivityObserver interface {
	Touch()
}

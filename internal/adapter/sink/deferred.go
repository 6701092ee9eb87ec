package sink

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alanyang/notify-relay/internal/domain/notification"
	portsink "github.com/alanyang/notify-relay/internal/port/sink"
)

const defaultDeferredBuffer = 256

// Deferred hands notifications to a single worker goroutine so rendering does
// not hold up the relay's drain. One worker keeps delivery in call order. When
// the buffer is full Notify waits for room; nothing is dropped while the sink
// is open.
type Deferred struct {
	next   portsink.Sink
	logger *slog.Logger

	queue chan deferredCall
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

type deferredCall struct {
	ctx context.Context
	req notification.Request
}

func NewDeferred(next portsink.Sink, buffer int, logger *slog.Logger) *Deferred {
	if buffer <= 0 {
		buffer = defaultDeferredBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Deferred{
		next:   next,
		logger: logger.With("component", "sink"),
		queue:  make(chan deferredCall, buffer),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Deferred) Notify(ctx context.Context, req notification.Request) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	d.queue <- deferredCall{ctx: context.WithoutCancel(ctx), req: req}
}

// Close stops accepting notifications and waits until queued ones are rendered.
func (d *Deferred) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	pending := len(d.queue)
	close(d.queue)
	d.mu.Unlock()
	<-d.done
	d.logger.Debug("deferred sink drained", "pending_at_close", pending)
}

func (d *Deferred) run() {
	defer close(d.done)
	for call := range d.queue {
		d.next.Notify(call.ctx, call.req)
	}
}

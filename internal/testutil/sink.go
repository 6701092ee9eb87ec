package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/alanyang/notify-relay/internal/domain/notification"
)

// CaptureSink is a test double for port/sink.Sink that records every request
// in call order. It is safe for concurrent use. A non-zero Delay makes every
// call that slow, to stand in for a sluggish renderer.
type CaptureSink struct {
	Delay time.Duration

	mu    sync.Mutex
	Calls []notification.Request
}

func (c *CaptureSink) Notify(_ context.Context, req notification.Request) {
	if c.Delay > 0 {
		time.Sleep(c.Delay)
	}
	c.mu.Lock()
	c.Calls = append(c.Calls, req)
	c.mu.Unlock()
}

// Requests returns a copy of the recorded calls.
func (c *CaptureSink) Requests() []notification.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]notification.Request(nil), c.Calls...)
}

// Titles returns the title of every recorded call, in order.
func (c *CaptureSink) Titles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.Calls))
	for _, r := range c.Calls {
		out = append(out, r.Title)
	}
	return out
}

func (c *CaptureSink) Reset() {
	c.mu.Lock()
	c.Calls = nil
	c.mu.Unlock()
}

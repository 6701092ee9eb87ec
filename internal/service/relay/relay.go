package relay

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyang/notify-relay/internal/service/classify"

	portledger "github.com/alanyang/notify-relay/internal/port/ledger"
	portlocation "github.com/alanyang/notify-relay/internal/port/location"
	portscheduler "github.com/alanyang/notify-relay/internal/port/scheduler"
	portsink "github.com/alanyang/notify-relay/internal/port/sink"
)

// Service turns inbound frames into notifications. Frames are queued as they
// arrive and drained in batches by the scheduler; each drained frame is
// classified, filtered against the current location and the dedup ledger, and
// handed to the sink.
//
// Ordering: frames are processed in arrival order, and two drains never run at
// the same time.
type Service struct {
	classifier *classify.Classifier
	ledger     portledger.Ledger
	locator    portlocation.Locator
	sink       portsink.Sink
	scheduler  portscheduler.Scheduler
	metrics    MetricsRecorder
	logger     *slog.Logger

	mu      sync.Mutex
	queue   []string
	pending bool

	flushMu sync.Mutex
}

type Option func(*Service)

func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(
	classifier *classify.Classifier,
	ledger portledger.Ledger,
	locator portlocation.Locator,
	sink portsink.Sink,
	scheduler portscheduler.Scheduler,
	opts ...Option,
) *Service {
	s := &Service{
		classifier: classifier,
		ledger:     ledger,
		locator:    locator,
		sink:       sink,
		scheduler:  scheduler,
		metrics:    NoOpMetrics{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "relay")
	return s
}

// Enqueue appends a frame and makes sure a drain is scheduled.
func (s *Service) Enqueue(frame string) {
	s.mu.Lock()
	s.queue = append(s.queue, frame)
	s.mu.Unlock()

	s.metrics.RecordFrame()
	if obs, ok := s.scheduler.(portscheduler.ActivityObserver); ok {
		obs.Touch()
	}
	s.ScheduleFlush()
}

// ScheduleFlush asks the scheduler for a drain unless one is already pending.
func (s *Service) ScheduleFlush() {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return
	}
	s.pending = true
	s.mu.Unlock()

	s.scheduler.Schedule(func() { s.Flush(context.Background()) })
}

// Flush drains every frame queued at the moment it starts and processes them
// in order. Frames that arrive during the drain wait for the next one.
// It returns the number of frames drained.
func (s *Service) Flush(ctx context.Context) int {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	batch := s.queue
	s.queue = nil
	s.pending = false
	s.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}

	start := time.Now()
	for _, frame := range batch {
		s.process(ctx, frame)
	}
	s.metrics.RecordBatch(len(batch), time.Since(start))
	s.logger.Debug("batch flushed", "frames", len(batch), "duration", time.Since(start))
	return len(batch)
}

// Pending returns the number of queued frames.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Shutdown stops the scheduler and drains whatever is still queued.
func (s *Service) Shutdown(ctx context.Context) {
	s.scheduler.Stop()
	if n := s.Flush(ctx); n > 0 {
		s.logger.Info("drained queue on shutdown", "frames", n)
	}
}

func (s *Service) process(ctx context.Context, frame string) {
	d := s.classifier.Classify(frame)

	switch d.Route {
	case classify.RouteDrop:
		s.metrics.RecordDrop(string(d.Reason))
		return

	case classify.RouteGated:
		// The location is read now, not when the frame arrived. A gated drop
		// leaves the key unrecorded so a later redelivery can still notify.
		if current := s.currentLocation(); !strings.Contains(current, d.View) {
			s.metrics.RecordGated()
			s.logger.Debug("event outside its view", "key", d.Key, "view", d.View, "location", current)
			return
		}
		fallthrough

	case classify.RouteDedup:
		if d.Key != "" && !s.ledger.Record(d.Key) {
			s.metrics.RecordSuppressed()
			s.logger.Debug("duplicate event suppressed", "key", d.Key, "type", string(d.Type))
			return
		}
	}

	s.sink.Notify(ctx, d.Request)
	s.metrics.RecordNotified()
}

func (s *Service) currentLocation() string {
	if s.locator == nil {
		return ""
	}
	return s.locator.Current()
}

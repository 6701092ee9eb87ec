// Package metrics counts what the relay does and optionally publishes a
// snapshot to Redis so dashboards can read it.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyang/notify-relay/internal/domain/connection"
)

const (
	// KeyPrefix is the Redis key prefix for service metrics.
	KeyPrefix = "metrics:"
	// TTL is how long a published snapshot survives without a refresh.
	TTL = 2 * time.Minute
	// DefaultReportInterval is how often snapshots are written.
	DefaultReportInterval = 30 * time.Second
)

// Snapshot is the published view of the counters.
type Snapshot struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`

	FramesReceived       uint64            `json:"frames_received"`
	FramesDropped        uint64            `json:"frames_dropped"`
	DropsByReason        map[string]uint64 `json:"drops_by_reason,omitempty"`
	BatchesFlushed       uint64            `json:"batches_flushed"`
	AvgBatchSize         float64           `json:"avg_batch_size"`
	AvgBatchLatencyNs    float64           `json:"avg_batch_latency_ns"`
	NotificationsSent    uint64            `json:"notifications_sent"`
	DuplicatesSuppressed uint64            `json:"duplicates_suppressed"`
	OutOfViewDrops       uint64            `json:"out_of_view_drops"`
	ConnectionsOpened    uint64            `json:"connections_opened"`
	ConnectionsClosed    uint64            `json:"connections_closed"`
}

// Setter is the part of *redis.Client the collector writes through.
type Setter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Collector implements relay.MetricsRecorder and observes stream state changes.
type Collector struct {
	serviceName    string
	redis          Setter
	startedAt      time.Time
	reportInterval time.Duration

	framesReceived       atomic.Uint64
	framesDropped        atomic.Uint64
	batchesFlushed       atomic.Uint64
	batchedFrames        atomic.Uint64
	batchLatencyNs       atomic.Uint64
	notificationsSent    atomic.Uint64
	duplicatesSuppressed atomic.Uint64
	outOfViewDrops       atomic.Uint64
	connectionsOpened    atomic.Uint64
	connectionsClosed    atomic.Uint64

	dropMu sync.RWMutex
	drops  map[string]*atomic.Uint64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCollector creates a collector. redisClient may be nil, in which case
// nothing is published.
func NewCollector(serviceName string, redisClient Setter) *Collector {
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      time.Now().UTC(),
		reportInterval: DefaultReportInterval,
		drops:          make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),
	}
}

func (c *Collector) SetReportInterval(interval time.Duration) {
	if interval > 0 {
		c.reportInterval = interval
	}
}

func (c *Collector) RecordFrame() { c.framesReceived.Add(1) }

func (c *Collector) RecordDrop(reason string) {
	c.framesDropped.Add(1)

	c.dropMu.RLock()
	counter, ok := c.drops[reason]
	c.dropMu.RUnlock()
	if !ok {
		c.dropMu.Lock()
		if counter, ok = c.drops[reason]; !ok {
			counter = &atomic.Uint64{}
			c.drops[reason] = counter
		}
		c.dropMu.Unlock()
	}
	counter.Add(1)
}

func (c *Collector) RecordBatch(size int, latency time.Duration) {
	c.batchesFlushed.Add(1)
	c.batchedFrames.Add(uint64(size))
	c.batchLatencyNs.Add(uint64(latency.Nanoseconds()))
}

func (c *Collector) RecordNotified() { c.notificationsSent.Add(1) }

func (c *Collector) RecordSuppressed() { c.duplicatesSuppressed.Add(1) }

func (c *Collector) RecordGated() { c.outOfViewDrops.Add(1) }

// ObserveState has the stream.StateObserver signature.
func (c *Collector) ObserveState(_ uuid.UUID, from, to connection.State) {
	switch {
	case to == connection.StateOpen:
		c.connectionsOpened.Add(1)
	case to == connection.StateClosing && from == connection.StateOpen:
		c.connectionsClosed.Add(1)
	}
}

func (c *Collector) Snapshot() Snapshot {
	batches := c.batchesFlushed.Load()
	var avgSize, avgLatency float64
	if batches > 0 {
		avgSize = float64(c.batchedFrames.Load()) / float64(batches)
		avgLatency = float64(c.batchLatencyNs.Load()) / float64(batches)
	}

	c.dropMu.RLock()
	drops := make(map[string]uint64, len(c.drops))
	for reason, counter := range c.drops {
		drops[reason] = counter.Load()
	}
	c.dropMu.RUnlock()

	return Snapshot{
		ServiceName:          c.serviceName,
		StartedAt:            c.startedAt,
		LastUpdated:          time.Now().UTC(),
		FramesReceived:       c.framesReceived.Load(),
		FramesDropped:        c.framesDropped.Load(),
		DropsByReason:        drops,
		BatchesFlushed:       batches,
		AvgBatchSize:         avgSize,
		AvgBatchLatencyNs:    avgLatency,
		NotificationsSent:    c.notificationsSent.Load(),
		DuplicatesSuppressed: c.duplicatesSuppressed.Load(),
		OutOfViewDrops:       c.outOfViewDrops.Load(),
		ConnectionsOpened:    c.connectionsOpened.Load(),
		ConnectionsClosed:    c.connectionsClosed.Load(),
	}
}

// Start publishes snapshots every report interval until ctx is done or Stop
// is called. A final snapshot is written on the way out.
func (c *Collector) Start(ctx context.Context) {
	if c.redis == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.Publish(context.Background())
				return
			case <-c.stopCh:
				c.Publish(context.Background())
				return
			case <-ticker.C:
				c.Publish(ctx)
			}
		}
	}()
}

func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// Publish writes the current snapshot to Redis.
func (c *Collector) Publish(ctx context.Context) {
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		slog.Error("failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := KeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, data, TTL).Err(); err != nil {
		slog.Error("failed to write metrics to redis", "service", c.serviceName, "error", err)
		return
	}
	slog.Debug("metrics written to redis", "service", c.serviceName, "key", key)
}

package relay

import "time"

// MetricsRecorder is the subset of metrics the relay reports.
type MetricsRecorder interface {
	RecordFrame()
	RecordDrop(reason string)
	RecordBatch(size int, latency time.Duration)
	RecordNotified()
	RecordSuppressed()
	RecordGated()
}

// NoOpMetrics discards everything.
type NoOpMetrics struct{}

var _ MetricsRecorder = NoOpMetrics{}

func (NoOpMetrics) RecordFrame() {}
func (NoOpMetrics) RecordDrop(string) {}
func (NoOpMetrics) RecordBatch(int, time.Duration) {}
func (NoOpMetrics) RecordNotified() {}
func (NoOpMetrics) RecordSuppressed() {}
func (NoOpMetrics) RecordGated() {}

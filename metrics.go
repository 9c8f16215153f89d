package imagecache

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordGet is called after each Get. hit reports whether the payload
	// was served from disk; err is nil on success.
	RecordGet(duration time.Duration, hit bool, err error)

	// RecordPut is called after each Put with the framed byte count
	// written to disk.
	RecordPut(bytes int64, duration time.Duration, err error)

	// RecordRemove is called after each explicit Remove with the bytes
	// freed (0 if the payload did not exist).
	RecordRemove(bytes int64)

	// RecordEviction is called after a budget-eviction pass.
	RecordEviction(count int, bytes int64)

	// RecordMaintenance is called after each maintenance pass.
	RecordMaintenance(duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordGet(time.Duration, bool, error)  {}
func (NoopMetricsCollector) RecordPut(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordRemove(int64)                    {}
func (NoopMetricsCollector) RecordEviction(int, int64)             {}
func (NoopMetricsCollector) RecordMaintenance(time.Duration)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	Hits             atomic.Int64
	Misses           atomic.Int64
	GetErrors        atomic.Int64
	Puts             atomic.Int64
	PutErrors        atomic.Int64
	PutBytes         atomic.Int64
	Removes          atomic.Int64
	RemovedBytes     atomic.Int64
	Evictions        atomic.Int64
	EvictedBytes     atomic.Int64
	MaintenanceRuns  atomic.Int64
	MaintenanceNanos atomic.Int64
}

func (m *BasicMetricsCollector) RecordGet(_ time.Duration, hit bool, err error) {
	if err != nil {
		m.GetErrors.Add(1)
		return
	}
	if hit {
		m.Hits.Add(1)
	} else {
		m.Misses.Add(1)
	}
}

func (m *BasicMetricsCollector) RecordPut(bytes int64, _ time.Duration, err error) {
	if err != nil {
		m.PutErrors.Add(1)
		return
	}
	m.Puts.Add(1)
	m.PutBytes.Add(bytes)
}

func (m *BasicMetricsCollector) RecordRemove(bytes int64) {
	m.Removes.Add(1)
	if bytes > 0 {
		m.RemovedBytes.Add(bytes)
	}
}

func (m *BasicMetricsCollector) RecordEviction(count int, bytes int64) {
	m.Evictions.Add(int64(count))
	m.EvictedBytes.Add(bytes)
}

func (m *BasicMetricsCollector) RecordMaintenance(duration time.Duration) {
	m.MaintenanceRuns.Add(1)
	m.MaintenanceNanos.Add(int64(duration))
}

package kvgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    putCounter   prometheus.Counter
//	    getHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordPut(duration time.Duration, err error) {
//	    p.putCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordPut is called after each put operation.
	// duration is the total time taken, err is nil if successful.
	RecordPut(duration time.Duration, err error)

	// RecordGet is called after each get operation.
	RecordGet(duration time.Duration, err error)

	// RecordDelete is called after each delete operation.
	RecordDelete(duration time.Duration, err error)

	// RecordBackup is called after each backup operation.
	// pages is the number of pages streamed into the snapshot.
	RecordBackup(pages uint64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPut(time.Duration, error)            {}
func (NoopMetricsCollector) RecordGet(time.Duration, error)            {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)         {}
func (NoopMetricsCollector) RecordBackup(uint64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PutCount        atomic.Int64
	PutErrors       atomic.Int64
	PutTotalNanos   atomic.Int64
	GetCount        atomic.Int64
	GetErrors       atomic.Int64
	GetTotalNanos   atomic.Int64
	DeleteCount     atomic.Int64
	DeleteErrors    atomic.Int64
	BackupCount     atomic.Int64
	BackupErrors    atomic.Int64
	BackupPageCount atomic.Int64
}

// RecordPut implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPut(duration time.Duration, err error) {
	b.PutCount.Add(1)
	b.PutTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PutErrors.Add(1)
	}
}

// RecordGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGet(duration time.Duration, err error) {
	b.GetCount.Add(1)
	b.GetTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.GetErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(duration time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordBackup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBackup(pages uint64, duration time.Duration, err error) {
	b.BackupCount.Add(1)
	b.BackupPageCount.Add(int64(pages))
	if err != nil {
		b.BackupErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PutCount:        b.PutCount.Load(),
		PutErrors:       b.PutErrors.Load(),
		PutAvgNanos:     b.getAvgPutNanos(),
		GetCount:        b.GetCount.Load(),
		GetErrors:       b.GetErrors.Load(),
		GetAvgNanos:     b.getAvgGetNanos(),
		DeleteCount:     b.DeleteCount.Load(),
		DeleteErrors:    b.DeleteErrors.Load(),
		BackupCount:     b.BackupCount.Load(),
		BackupErrors:    b.BackupErrors.Load(),
		BackupPageCount: b.BackupPageCount.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgPutNanos() int64 {
	count := b.PutCount.Load()
	if count == 0 {
		return 0
	}
	return b.PutTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgGetNanos() int64 {
	count := b.GetCount.Load()
	if count == 0 {
		return 0
	}
	return b.GetTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PutCount        int64
	PutErrors       int64
	PutAvgNanos     int64
	GetCount        int64
	GetErrors       int64
	GetAvgNanos     int64
	DeleteCount     int64
	DeleteErrors    int64
	BackupCount     int64
	BackupErrors    int64
	BackupPageCount int64
}

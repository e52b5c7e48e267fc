package kvgo

import (
	"log/slog"

	"github.com/hupe1980/kvgo/internal/fs"
)

type options struct {
	fsys             fs.FileSystem
	metricsCollector MetricsCollector
	logger           *Logger
	readOnly         bool
	syncWrites       bool
}

// Option configures Open behavior.
type Option func(*options)

// WithFS configures the file system implementation backing the store.
//
// The default is the local file system. Tests use this to inject fault
// injecting file systems.
func WithFS(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fsys = fsys
	}
}

// WithReadOnly opens the store read-only. Mutations return ErrReadOnly
// and Close does not write the header back.
//
// The file must already exist.
func WithReadOnly(readOnly bool) Option {
	return func(o *options) {
		o.readOnly = readOnly
	}
}

// WithSyncWrites forces an fsync after every successful mutation.
//
// The default is the close-time durability model: pages reach the OS
// immediately but are only forced to disk by Sync and Close. Enabling
// this trades write throughput for per-operation durability.
func WithSyncWrites(sync bool) Option {
	return func(o *options) {
		o.syncWrites = sync
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
//
// Example with BasicMetricsCollector:
//
//	metrics := &kvgo.BasicMetricsCollector{}
//	db, _ := kvgo.Open("data.kv", kvgo.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Puts: %d, Avg latency: %dns\n", stats.PutCount, stats.PutAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
//
// Example with JSON logging:
//
//	logger := kvgo.NewJSONLogger(slog.LevelInfo)
//	db, _ := kvgo.Open("data.kv", kvgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		fsys:             fs.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

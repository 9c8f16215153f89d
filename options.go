package imagecache

import (
	"io"
	"time"

	"github.com/hupe1980/imagecache/codec"
	"github.com/hupe1980/imagecache/internal/clock"
	"github.com/hupe1980/imagecache/internal/fs"
	"github.com/hupe1980/imagecache/pool"
)

type options struct {
	logger              *Logger
	metrics             MetricsCollector
	maxSizeBytes        int64
	trimRatio           float64
	compression         codec.Type
	bufPool             *pool.Pool
	maintenanceInterval time.Duration
	ioRateBytesPerSec   int

	// test hooks
	fsys fs.FileSystem
	clk  clock.Clock
	rand io.Reader
}

// Option configures Cache construction.
type Option func(*options)

// WithLogger sets the structured logger. Defaults to a text logger at info
// level.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics collector. Defaults to NoopMetricsCollector.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithMaxSizeBytes sets the disk budget. When committed content exceeds it,
// least-recently-accessed entries are evicted until usage drops to the trim
// target. Zero or negative disables budget eviction.
func WithMaxSizeBytes(n int64) Option {
	return func(o *options) {
		o.maxSizeBytes = n
	}
}

// WithTrimRatio sets how far below the budget an eviction pass trims,
// as a fraction of the budget in (0, 1]. Defaults to 0.9: evicting a little
// past the line avoids re-evicting on every subsequent Put.
func WithTrimRatio(r float64) Option {
	return func(o *options) {
		if r > 0 && r <= 1 {
			o.trimRatio = r
		}
	}
}

// WithCompression selects transparent payload compression for newly written
// entries. Previously written entries stay readable regardless of this
// setting. Defaults to codec.None.
func WithCompression(t codec.Type) Option {
	return func(o *options) {
		o.compression = t
	}
}

// WithBufferPool sets the pool used for read staging buffers. Defaults to a
// pool with default capacity limits; pass a shared pool to coordinate
// scratch memory with decode/transform stages.
func WithBufferPool(p *pool.Pool) Option {
	return func(o *options) {
		if p != nil {
			o.bufPool = p
		}
	}
}

// WithMaintenanceInterval enables a background goroutine running purge and
// budget eviction every interval. Zero (the default) disables it; callers
// then drive Maintain themselves.
func WithMaintenanceInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maintenanceInterval = d
		}
	}
}

// WithIORateLimit throttles eviction and maintenance deletes to roughly
// bytesPerSec of removed content, keeping background churn from starving
// foreground I/O. Zero (the default) means unlimited.
func WithIORateLimit(bytesPerSec int) Option {
	return func(o *options) {
		if bytesPerSec > 0 {
			o.ioRateBytesPerSec = bytesPerSec
		}
	}
}

func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}

func withClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clk = clk
	}
}

func defaultOptions() options {
	return options{
		metrics:   NoopMetricsCollector{},
		trimRatio: 0.9,
	}
}

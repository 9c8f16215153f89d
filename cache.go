package imagecache

import (
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/hupe1980/imagecache/codec"
	"github.com/hupe1980/imagecache/internal/clock"
	"github.com/hupe1980/imagecache/pool"
	"github.com/hupe1980/imagecache/storage"
)

// Cache is the image pipeline's disk cache facade. It stores opaque payloads
// through the sharded disk engine, optionally compressed, enforces a byte
// budget by evicting least-recently-accessed entries, and stages reads
// through a buffer pool.
//
// All methods are safe for concurrent use. Storage operations are
// synchronous blocking I/O; callers needing concurrency dispatch onto their
// own workers.
type Cache struct {
	store       *storage.DiskStorage
	logger      *Logger
	metrics     MetricsCollector
	bufPool     *pool.Pool
	compression codec.Type
	clk         clock.Clock

	maxSizeBytes int64
	trimRatio    float64

	// limiter throttles eviction deletes; nil means unlimited.
	limiter *rate.Limiter

	// maintSem keeps at most one maintenance pass in flight.
	maintSem *semaphore.Weighted

	// sizeBytes tracks committed content bytes; -1 until first computed.
	sizeMu    sync.Mutex
	sizeBytes int64

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Cache rooted at root. contentVersion is the caller's payload
// format version; changing it rotates the on-disk cache wholesale.
func New(root string, contentVersion int, opts ...Option) (*Cache, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NewLogger(nil)
	}
	if o.clk == nil {
		o.clk = clock.Default
	}
	if o.bufPool == nil {
		o.bufPool = pool.New(pool.Config{})
	}

	store, err := storage.New(storage.Config{
		Root:           root,
		ContentVersion: contentVersion,
		FS:             o.fsys,
		Clock:          o.clk,
		Rand:           o.rand,
		Reporter:       storage.SlogReporter{Logger: o.logger.Logger},
	})
	if err != nil {
		return nil, err
	}

	c := &Cache{
		store:        store,
		logger:       o.logger.WithRoot(root),
		metrics:      o.metrics,
		bufPool:      o.bufPool,
		compression:  o.compression,
		clk:          o.clk,
		maxSizeBytes: o.maxSizeBytes,
		trimRatio:    o.trimRatio,
		maintSem:     semaphore.NewWeighted(1),
		sizeBytes:    -1,
		done:         make(chan struct{}),
	}
	if o.ioRateBytesPerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(o.ioRateBytesPerSec), o.ioRateBytesPerSec)
	}

	if o.maintenanceInterval > 0 {
		c.wg.Add(1)
		go c.maintenanceLoop(o.maintenanceInterval)
	}

	return c, nil
}

// Put writes payload for resourceID, replacing any previous content. The
// payload is framed (and compressed, when configured) before hitting disk.
// A successful Put that pushes the cache past its budget triggers a
// synchronous eviction pass.
func (c *Cache) Put(ctx context.Context, resourceID string, payload []byte) error {
	start := c.clk.Now()

	framed, err := codec.Encode(payload, c.compression)
	if err != nil {
		c.metrics.RecordPut(0, c.clk.Now().Sub(start), err)
		return err
	}

	ins, err := c.store.Insert(resourceID)
	if err != nil {
		c.metrics.RecordPut(0, c.clk.Now().Sub(start), err)
		return err
	}
	defer ins.CleanUp()

	err = ins.WriteData(func(w io.Writer) error {
		_, werr := w.Write(framed)
		return werr
	})
	if err == nil {
		_, err = ins.Commit()
	}
	c.metrics.RecordPut(int64(len(framed)), c.clk.Now().Sub(start), err)
	if err != nil {
		return err
	}

	c.addSize(int64(len(framed)))
	return c.evictIfNeeded(ctx)
}

// Get returns the payload for resourceID. The second result reports whether
// it was found; a hit bumps the entry's access time. Reads are staged
// through the buffer pool and unframed before being returned.
func (c *Cache) Get(_ context.Context, resourceID string) ([]byte, bool, error) {
	start := c.clk.Now()

	res, ok := c.store.GetResource(resourceID)
	if !ok {
		c.metrics.RecordGet(c.clk.Now().Sub(start), false, nil)
		return nil, false, nil
	}

	size, err := res.Size()
	if err != nil {
		// Vanished between Stat and read; a miss, not a failure.
		c.metrics.RecordGet(c.clk.Now().Sub(start), false, nil)
		return nil, false, nil
	}

	staging := c.bufPool.Get(int(size))
	defer c.bufPool.Release(staging)

	n, err := res.ReadAt(staging[:size], 0)
	if err != nil && err != io.EOF {
		if errors.Is(err, iofs.ErrNotExist) {
			// Replaced or evicted between lookup and read.
			c.metrics.RecordGet(c.clk.Now().Sub(start), false, nil)
			return nil, false, nil
		}
		c.metrics.RecordGet(c.clk.Now().Sub(start), true, err)
		return nil, false, err
	}

	payload, err := codec.Decode(staging[:n])
	c.metrics.RecordGet(c.clk.Now().Sub(start), true, err)
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// Resource returns a zero-copy handle to the framed on-disk payload for
// resourceID. Callers that map it must decode the frame themselves via
// codec.Decode; most callers want Get instead.
func (c *Cache) Resource(resourceID string) (storage.Resource, bool) {
	return c.store.GetResource(resourceID)
}

// Contains reports whether resourceID is cached, without bumping recency.
func (c *Cache) Contains(resourceID string) bool {
	return c.store.Contains(resourceID)
}

// Touch bumps resourceID's access time, reporting whether it is cached.
func (c *Cache) Touch(resourceID string) bool {
	return c.store.Touch(resourceID)
}

// Remove deletes resourceID's payload and returns the bytes freed (0 if it
// was not cached).
func (c *Cache) Remove(resourceID string) int64 {
	n := c.store.Remove(resourceID)
	if n > 0 {
		c.subSize(n)
		c.metrics.RecordRemove(n)
		return n
	}
	c.metrics.RecordRemove(0)
	return 0
}

// Clear deletes all cached content.
func (c *Cache) Clear() error {
	err := c.store.ClearAll()
	c.sizeMu.Lock()
	c.sizeBytes = -1 // recompute lazily; Clear may have partially failed
	c.sizeMu.Unlock()
	return err
}

// Entries enumerates committed entries for external policies (sorting them
// with storage.OldestFirst or a custom comparator is the caller's job).
func (c *Cache) Entries() ([]*storage.Entry, error) {
	return c.store.Entries()
}

// DiskUsage returns the committed content bytes currently tracked. The
// first call after construction or Clear enumerates the store to seed the
// counter.
func (c *Cache) DiskUsage() int64 {
	c.sizeMu.Lock()
	defer c.sizeMu.Unlock()
	return c.currentSizeLocked()
}

// Maintain runs one maintenance pass: purge unexpected files, then evict
// down to the budget. At most one pass runs at a time; a call overlapping a
// running pass returns immediately.
func (c *Cache) Maintain(ctx context.Context) error {
	if !c.maintSem.TryAcquire(1) {
		return nil
	}
	defer c.maintSem.Release(1)

	start := c.clk.Now()
	c.store.PurgeUnexpectedResources()

	// Purge may have deleted tracked files; recompute before evicting.
	c.sizeMu.Lock()
	c.sizeBytes = -1
	c.sizeMu.Unlock()

	err := c.evictIfNeeded(ctx)
	c.metrics.RecordMaintenance(c.clk.Now().Sub(start))
	return err
}

// Close stops background maintenance and waits for it to finish. The cache
// remains usable for foreground operations afterwards.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
	return nil
}

func (c *Cache) maintenanceLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.Maintain(context.Background()); err != nil {
				c.logger.Warn("maintenance pass failed", "error", err)
			}
		}
	}
}

func (c *Cache) addSize(n int64) {
	c.sizeMu.Lock()
	if c.sizeBytes >= 0 {
		c.sizeBytes += n
	}
	c.sizeMu.Unlock()
}

func (c *Cache) subSize(n int64) {
	c.sizeMu.Lock()
	if c.sizeBytes >= 0 {
		c.sizeBytes -= n
		if c.sizeBytes < 0 {
			c.sizeBytes = 0
		}
	}
	c.sizeMu.Unlock()
}

// currentSizeLocked seeds the size counter from the store on first use.
func (c *Cache) currentSizeLocked() int64 {
	if c.sizeBytes >= 0 {
		return c.sizeBytes
	}
	entries, err := c.store.Entries()
	if err != nil {
		return 0 // stay uninitialized, retry next time
	}
	var total int64
	for _, e := range entries {
		total += e.Size()
	}
	c.sizeBytes = total
	return total
}

func (c *Cache) evictIfNeeded(ctx context.Context) error {
	if c.maxSizeBytes <= 0 {
		return nil
	}

	c.sizeMu.Lock()
	size := c.currentSizeLocked()
	c.sizeMu.Unlock()

	if size <= c.maxSizeBytes {
		return nil
	}
	target := int64(float64(c.maxSizeBytes) * c.trimRatio)
	return c.evictTo(ctx, target)
}

// evictTo removes least-recently-accessed entries until tracked usage is at
// or below target. Entries whose deletion fails are skipped; a single bad
// file never blocks eviction of the rest.
func (c *Cache) evictTo(ctx context.Context, target int64) error {
	entries, err := c.store.Entries()
	if err != nil {
		return err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return storage.OldestFirst(entries[i], entries[j]) < 0
	})

	var count int
	var freed int64

	for _, e := range entries {
		c.sizeMu.Lock()
		size := c.currentSizeLocked()
		c.sizeMu.Unlock()
		if size <= target {
			break
		}

		if err := c.waitForBudget(ctx, e.Size()); err != nil {
			c.metrics.RecordEviction(count, freed)
			return err
		}

		removed := c.store.RemoveEntry(e)
		if removed <= 0 {
			if removed == storage.RemoveFailed {
				c.logger.WithResource(e.ResourceID()).Warn("eviction delete failed")
			}
			continue
		}
		c.subSize(removed)
		count++
		freed += removed
	}

	if count > 0 {
		c.logger.Debug("evicted entries over budget", "count", count, "bytes", freed)
	}
	c.metrics.RecordEviction(count, freed)
	return nil
}

// waitForBudget blocks until the IO limiter grants n bytes of delete
// throughput (never more than one burst at a time).
func (c *Cache) waitForBudget(ctx context.Context, n int64) error {
	if c.limiter == nil || n <= 0 {
		return nil
	}
	tokens := int(n)
	if burst := c.limiter.Burst(); tokens > burst {
		tokens = burst
	}
	return c.limiter.WaitN(ctx, tokens)
}

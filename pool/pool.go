package pool

import (
	"math/bits"
	"sort"
	"sync"

	"github.com/hupe1980/imagecache/internal/mem"
)

const (
	// DefaultMaxFreeListPerBucket bounds each bucket's retained buffers.
	DefaultMaxFreeListPerBucket = 16

	// DefaultMaxFreeBytes bounds the aggregate bytes parked on free lists.
	DefaultMaxFreeBytes = 64 << 20 // 64 MiB

	// minSizeClass is the smallest bucket; tiny requests round up to it.
	minSizeClass = 64
)

// Config holds pool capacity policy. Zero values select the defaults.
type Config struct {
	// MaxFreeListPerBucket caps how many buffers a single bucket retains.
	MaxFreeListPerBucket int

	// MaxFreeBytes caps the aggregate bytes across all free lists. A
	// Release that would exceed it drops the buffer instead.
	MaxFreeBytes int64

	// SizeClass maps a requested size to its bucket's item size. It must be
	// deterministic and return a value >= the request. Defaults to
	// next-power-of-two with a 64-byte floor.
	SizeClass func(size int) int
}

// Pool recycles fixed-size byte buffers bucketed by size class.
type Pool struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[int]*bucket

	used Counter
	free Counter
}

// New creates a Pool with the given capacity policy.
func New(cfg Config) *Pool {
	if cfg.MaxFreeListPerBucket <= 0 {
		cfg.MaxFreeListPerBucket = DefaultMaxFreeListPerBucket
	}
	if cfg.MaxFreeBytes <= 0 {
		cfg.MaxFreeBytes = DefaultMaxFreeBytes
	}
	if cfg.SizeClass == nil {
		cfg.SizeClass = NextPowerOfTwo
	}
	return &Pool{
		cfg:     cfg,
		buckets: make(map[int]*bucket),
	}
}

// NextPowerOfTwo is the default size-classing policy: the next power of two
// at or above size, with a 64-byte floor.
func NextPowerOfTwo(size int) int {
	if size <= minSizeClass {
		return minSizeClass
	}
	return 1 << bits.Len(uint(size-1))
}

// Get returns a buffer whose length is the size class for size (always >=
// size). A recycled buffer is returned when the class's free list is
// non-empty; otherwise a fresh aligned buffer is allocated. Get never fails
// for lack of pool capacity.
func (p *Pool) Get(size int) []byte {
	if size <= 0 {
		return nil
	}
	class := p.cfg.SizeClass(size)
	if class < size {
		class = size // policy must never shrink a request
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	b := p.buckets[class]
	if b == nil {
		b = &bucket{itemSize: class}
		p.buckets[class] = b
	}

	if buf := b.pop(); buf != nil {
		p.free.sub(int64(class))
		p.used.add(int64(class))
		b.inUse++
		return buf
	}

	buf := mem.AllocAligned(class)
	buf = buf[0:class:class]
	p.used.add(int64(class))
	b.inUse++
	return buf
}

// Release returns a buffer obtained from Get. The buffer joins its bucket's
// free list only if that keeps the free list within its cap and the pool's
// aggregate free bytes within the limit; otherwise it is dropped and the
// garbage collector reclaims it. Buffers not obtained from this pool are
// ignored.
func (p *Pool) Release(buf []byte) {
	class := cap(buf)
	if class == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	b := p.buckets[class]
	if b == nil || b.inUse == 0 {
		return // foreign buffer, or more releases than gets
	}

	b.inUse--
	p.used.sub(int64(class))

	if len(b.free) >= p.cfg.MaxFreeListPerBucket {
		return
	}
	if p.free.Bytes+int64(class) > p.cfg.MaxFreeBytes {
		return
	}

	b.push(buf[0:class:class])
	p.free.add(int64(class))
}

// Trim evicts buffers from free lists, largest buckets first, until the
// aggregate free bytes is at or below targetFreeBytes.
func (p *Pool) Trim(targetFreeBytes int64) {
	if targetFreeBytes < 0 {
		targetFreeBytes = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.free.Bytes <= targetFreeBytes {
		return
	}

	classes := make([]int, 0, len(p.buckets))
	for class := range p.buckets {
		classes = append(classes, class)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(classes)))

	for _, class := range classes {
		b := p.buckets[class]
		for len(b.free) > 0 && p.free.Bytes > targetFreeBytes {
			b.pop()
			p.free.sub(int64(class))
		}
		if p.free.Bytes <= targetFreeBytes {
			return
		}
	}
}

package pool

import "sort"

// BucketStats is a point-in-time snapshot of one bucket's accounting.
type BucketStats struct {
	ItemSize  int
	InUse     int64
	FreeCount int64
	FreeBytes int64
}

// Stats is a point-in-time snapshot of the pool's counters. Used and Free
// are exact sums over all buckets of their in-use/free contributions.
type Stats struct {
	Used    Counter
	Free    Counter
	Buckets []BucketStats
}

// Stats returns a consistent read-only snapshot for diagnostics. The
// snapshot is taken under the pool lock, so Used/Free always agree with the
// per-bucket rows.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Stats{
		Used:    p.used,
		Free:    p.free,
		Buckets: make([]BucketStats, 0, len(p.buckets)),
	}
	for _, b := range p.buckets {
		st.Buckets = append(st.Buckets, BucketStats{
			ItemSize:  b.itemSize,
			InUse:     b.inUse,
			FreeCount: int64(len(b.free)),
			FreeBytes: int64(b.itemSize) * int64(len(b.free)),
		})
	}
	sort.Slice(st.Buckets, func(i, j int) bool {
		return st.Buckets[i].ItemSize < st.Buckets[j].ItemSize
	})
	return st
}

// Package pool implements a bucketed allocator for reusable byte buffers.
//
// Decode and transform stages borrow fixed-size scratch buffers far faster
// than the allocator can produce and collect them. The pool groups buffers
// into buckets by size class, keeps a bounded free list per bucket, and
// tracks used/free counts and bytes exactly. Releases beyond a bucket's free
// list cap or the pool's aggregate free-byte limit are dropped rather than
// retained, so the pool never grows without bound.
//
// All operations are serialized by a single short-held mutex per pool; the
// critical sections do no I/O and are O(1) or O(buckets).
package pool

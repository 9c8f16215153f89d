// Package imagecache caches expensive-to-produce binary image payloads on
// disk and recycles scratch buffers in memory, for an image-loading pipeline
// serving many concurrent requests.
//
// The [Cache] facade ties together the two engines:
//
//   - [github.com/hupe1980/imagecache/storage]: a versioned, sharded disk
//     store with atomic temp-then-rename inserts, lazy touch/remove, full
//     enumeration and self-healing purge.
//   - [github.com/hupe1980/imagecache/pool]: a bucketed allocator for
//     fixed-size scratch buffers with exact used/free accounting and soft
//     capacity limits.
//
// Payloads can optionally be compressed transparently via
// [github.com/hupe1980/imagecache/codec]. A size budget is enforced by
// evicting least-recently-accessed entries, and a background maintenance
// pass purges foreign and abandoned files.
//
// Pipeline stages that only need scratch buffers use a [pool.Pool] directly;
// stages that bypass the facade can drive [storage.DiskStorage] themselves.
package imagecache

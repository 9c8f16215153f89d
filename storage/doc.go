// Package storage implements the versioned, sharded on-disk resource store
// used by the image pipeline's disk cache.
//
// Committed payloads live under a single versioned root directory named from
// the cache structure version, the shard count and the caller's content
// format version (e.g. "v2.ols100.1"). Inside it, each resource is placed in
// one of 100 shard directories chosen by hashing its id. A payload is first
// written to a uniquely named temp file and then promoted with an atomic
// rename, so readers never observe partial content. When the expected
// versioned root is missing under an existing cache root, the whole root is
// rotated: old-format data is abandoned wholesale instead of migrated and the
// purge pass deletes it later.
//
// The store itself takes no locks. Concurrent inserts for the same id are
// collision-free on the temp file (random disambiguator) and the last rename
// wins; that race is accepted, not an error.
package storage

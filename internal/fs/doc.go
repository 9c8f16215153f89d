// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: Represents an open file with read/write/sync capabilities
//   - [FileSystem]: Abstracts filesystem operations (open, rename, stat, ...)
//
// [LocalFS] is the production implementation backed by the os package.
// [FaultyFS] wraps any FileSystem and injects failures by path pattern, which
// is how the storage engine's failure paths (mkdir errors, rename errors,
// silently under-flushed writes) are exercised deterministically in tests.
package fs

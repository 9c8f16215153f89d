// Package mmap provides read-only memory mapping of committed cache files.
//
// Large encoded image payloads are often consumed by native codecs that want
// a contiguous byte view; mapping the content file avoids copying it through
// a read buffer first. A Mapping stays valid until Close, which is idempotent.
//
// Unix platforms use mmap(2) with madvise(2) access hints; Windows uses
// CreateFileMapping/MapViewOfFile and treats hints as no-ops.
package mmap

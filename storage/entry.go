package storage

import (
	"io"
	"time"

	"github.com/hupe1980/imagecache/internal/fs"
	"github.com/hupe1980/imagecache/internal/mmap"
)

// Resource is a handle to a committed payload. It exposes only the
// capabilities the cache needs, so callers never downcast to a concrete
// type.
type Resource interface {
	// Path is the content file's location on disk.
	Path() string
	// Size is the content file's current length in bytes.
	Size() (int64, error)
	// ReadAll reads the whole payload.
	ReadAll() ([]byte, error)
	// ReadAt reads into p starting at byte offset off, with io.ReaderAt
	// semantics (io.EOF may accompany a full read at the payload's tail).
	ReadAt(p []byte, off int64) (int, error)
	// Map memory-maps the payload read-only for zero-copy access.
	Map() (*mmap.Mapping, error)
}

// fileResource is the single Resource implementation, backed by a content
// file on the injected filesystem.
type fileResource struct {
	fsys fs.FileSystem
	path string
}

func (r *fileResource) Path() string { return r.path }

func (r *fileResource) Size() (int64, error) {
	info, err := r.fsys.Stat(r.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (r *fileResource) ReadAll() ([]byte, error) {
	f, err := r.fsys.OpenFile(r.path, readFlags, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, info.Size())
	if len(buf) == 0 {
		return buf, nil
	}
	n, err := f.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

func (r *fileResource) ReadAt(p []byte, off int64) (int, error) {
	f, err := r.fsys.OpenFile(r.path, readFlags, 0)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return f.ReadAt(p, off)
}

func (r *fileResource) Map() (*mmap.Mapping, error) {
	return mmap.Open(r.path)
}

// Entry is a transient view over one committed content file, materialized
// during enumeration. The file may change or vanish concurrently; timestamp
// and size are read lazily from file metadata and cached once computed.
type Entry struct {
	resourceID string
	res        *fileResource

	timestamp time.Time // zero until computed
	size      int64     // -1 until computed
}

func newEntry(fsys fs.FileSystem, resourceID, path string) *Entry {
	return &Entry{
		resourceID: resourceID,
		res:        &fileResource{fsys: fsys, path: path},
		size:       -1,
	}
}

// ResourceID returns the entry's opaque key.
func (e *Entry) ResourceID() string { return e.resourceID }

// Resource returns the handle to the entry's content file.
func (e *Entry) Resource() Resource { return e.res }

// Timestamp returns the file's last access/modification time. A vanished
// file yields the zero time, which sorts first and makes the entry an early
// eviction candidate.
func (e *Entry) Timestamp() time.Time {
	if !e.timestamp.IsZero() {
		return e.timestamp
	}
	info, err := e.res.fsys.Stat(e.res.path)
	if err != nil {
		return time.Time{}
	}
	e.timestamp = info.ModTime()
	return e.timestamp
}

// Size returns the file's length in bytes, zero if it vanished.
func (e *Entry) Size() int64 {
	if e.size >= 0 {
		return e.size
	}
	info, err := e.res.fsys.Stat(e.res.path)
	if err != nil {
		return 0
	}
	e.size = info.Size()
	return e.size
}

// Comparator is a total order over entries, used by eviction policies to
// choose removal candidates. For any two entries exactly one of negative,
// zero or positive holds, and the relation is transitive.
type Comparator func(a, b *Entry) int

// OldestFirst orders entries by ascending access timestamp. Entries with
// identical timestamps compare equal; their relative eviction order then
// depends on the filesystem's timestamp resolution and enumeration order.
// That nondeterminism is accepted rather than papered over with a secondary
// key.
func OldestFirst(a, b *Entry) int {
	return a.Timestamp().Compare(b.Timestamp())
}

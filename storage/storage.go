package storage

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/imagecache/internal/clock"
	"github.com/hupe1980/imagecache/internal/fs"
	"github.com/hupe1980/imagecache/internal/walk"
)

const (
	readFlags  = os.O_RDONLY
	writeFlags = os.O_WRONLY
	dirPerm    = os.FileMode(0755)
	filePerm   = os.FileMode(0644)

	// tempFileTTL is how long an uncommitted temp file may linger before the
	// purge pass deletes it as abandoned.
	tempFileTTL = 30 * time.Minute
)

// RemoveFailed is returned by Remove and RemoveEntry when deletion raised,
// as opposed to 0 for a file that never existed. Deletion is best-effort
// and never surfaces as an error.
const RemoveFailed int64 = -1

// ErrEmptyResourceID is returned by Insert for an empty resource id.
var ErrEmptyResourceID = errors.New("storage: resource id must not be empty")

// Config configures a DiskStorage.
type Config struct {
	// Root is the cache root directory. The versioned root is created
	// beneath it. Required.
	Root string

	// ContentVersion is the caller's payload format version. Changing it
	// rotates the whole cache.
	ContentVersion int

	// FS is the filesystem to operate on. Defaults to the local filesystem.
	FS fs.FileSystem

	// Clock stamps access times and drives temp-file staleness.
	// Defaults to the system clock.
	Clock clock.Clock

	// Reporter receives categorized failure reports. Defaults to NoopReporter.
	Reporter ErrorReporter

	// Rand supplies temp-file disambiguator bytes. Defaults to crypto/rand.
	Rand io.Reader
}

// DiskStorage is the versioned, sharded on-disk store. Construction rotates
// the cache root when its versioned directory does not match the configured
// content version; rotation failures are reported but non-fatal, since later
// writes recreate missing directories on demand.
//
// DiskStorage takes no in-process lock. See the package documentation for
// the concurrency contract.
type DiskStorage struct {
	fsys     fs.FileSystem
	clk      clock.Clock
	reporter ErrorReporter
	rand     io.Reader

	root          string
	versionedRoot string
}

// New creates a DiskStorage over cfg.Root.
func New(cfg Config) (*DiskStorage, error) {
	if cfg.Root == "" {
		return nil, errors.New("storage: root directory is required")
	}
	if cfg.FS == nil {
		cfg.FS = fs.Default
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Default
	}
	if cfg.Reporter == nil {
		cfg.Reporter = NoopReporter{}
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}

	s := &DiskStorage{
		fsys:          cfg.FS,
		clk:           cfg.Clock,
		reporter:      cfg.Reporter,
		rand:          cfg.Rand,
		root:          cfg.Root,
		versionedRoot: filepath.Join(cfg.Root, versionedRootName(cfg.ContentVersion)),
	}
	s.rotateIfNeeded()

	return s, nil
}

// Root returns the cache root directory.
func (s *DiskStorage) Root() string { return s.root }

// rotateIfNeeded wipes the whole cache root when the expected versioned root
// is missing beneath an existing root. A cache holds files of exactly one
// (structure, version) pair at any time.
func (s *DiskStorage) rotateIfNeeded() {
	if _, err := s.fsys.Stat(s.versionedRoot); err == nil {
		return
	}
	if _, err := s.fsys.Stat(s.root); err == nil {
		if err := s.fsys.RemoveAll(s.root); err != nil {
			s.reporter.Report(CategoryOther, "version rotation: wipe "+s.root, err)
		}
	}
	if err := s.fsys.MkdirAll(s.versionedRoot, dirPerm); err != nil {
		s.reporter.Report(CategoryWriteCreateDir, "version rotation: create "+s.versionedRoot, err)
	}
}

func (s *DiskStorage) contentPath(resourceID string) string {
	return filepath.Join(shardDir(s.versionedRoot, resourceID), contentFileName(resourceID))
}

// Insert starts a write for resourceID. It ensures the shard directory
// exists and creates an empty, uniquely named temp file inside it. The
// returned Inserter must be finished with Commit or CleanUp.
func (s *DiskStorage) Insert(resourceID string) (*Inserter, error) {
	if resourceID == "" {
		return nil, ErrEmptyResourceID
	}

	dir := shardDir(s.versionedRoot, resourceID)
	if err := s.fsys.MkdirAll(dir, dirPerm); err != nil {
		s.reporter.Report(CategoryWriteCreateDir, dir, err)
		return nil, &ErrCreateDir{Path: dir, cause: err}
	}

	tempPath := filepath.Join(dir, tempFileName(resourceID, s.disambiguator()))
	f, err := s.fsys.OpenFile(tempPath, os.O_CREATE|os.O_EXCL|writeFlags, filePerm)
	if err != nil {
		s.reporter.Report(CategoryWriteCreateTemp, tempPath, err)
		return nil, &ErrCreateTemp{Path: tempPath, cause: err}
	}
	if err := f.Close(); err != nil {
		s.reporter.Report(CategoryWriteCreateTemp, tempPath, err)
		return nil, &ErrCreateTemp{Path: tempPath, cause: err}
	}

	return &Inserter{
		s:          s,
		resourceID: resourceID,
		tempPath:   tempPath,
	}, nil
}

// disambiguator draws random bytes for a temp file name. crypto/rand never
// fails in practice; if the injected reader does, a time-derived fallback
// still keeps concurrent collisions unlikely.
func (s *DiskStorage) disambiguator() string {
	var b [8]byte
	if _, err := io.ReadFull(s.rand, b[:]); err != nil {
		return fmt.Sprintf("%x", s.clk.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

// GetResource returns a handle to the committed payload for resourceID. A
// hit bumps the file's access timestamp so recently used entries sort late
// in eviction order.
func (s *DiskStorage) GetResource(resourceID string) (Resource, bool) {
	path := s.contentPath(resourceID)
	if _, err := s.fsys.Stat(path); err != nil {
		return nil, false
	}
	now := s.clk.Now()
	_ = s.fsys.Chtimes(path, now, now) // best effort
	return &fileResource{fsys: s.fsys, path: path}, true
}

// Contains reports whether a committed payload exists for resourceID,
// without bumping its access time.
func (s *DiskStorage) Contains(resourceID string) bool {
	_, err := s.fsys.Stat(s.contentPath(resourceID))
	return err == nil
}

// Touch bumps the access time of resourceID's payload. It reports whether
// the payload exists.
func (s *DiskStorage) Touch(resourceID string) bool {
	path := s.contentPath(resourceID)
	if _, err := s.fsys.Stat(path); err != nil {
		return false
	}
	now := s.clk.Now()
	_ = s.fsys.Chtimes(path, now, now)
	return true
}

// Remove deletes the committed payload for resourceID. It returns the bytes
// freed, 0 if no payload existed, or RemoveFailed if deletion raised.
func (s *DiskStorage) Remove(resourceID string) int64 {
	return s.removePath(s.contentPath(resourceID))
}

// RemoveEntry deletes the content file behind an enumerated entry, with the
// same return convention as Remove.
func (s *DiskStorage) RemoveEntry(entry *Entry) int64 {
	return s.removePath(entry.Resource().Path())
}

func (s *DiskStorage) removePath(path string) int64 {
	info, err := s.fsys.Stat(path)
	if err != nil {
		return 0
	}
	size := info.Size()
	if err := s.fsys.Remove(path); err != nil {
		s.reporter.Report(CategoryOther, "remove "+path, err)
		return RemoveFailed
	}
	return size
}

// ClearAll deletes everything under the cache root, keeping the root itself.
func (s *DiskStorage) ClearAll() error {
	entries, err := s.fsys.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var firstErr error
	for _, entry := range entries {
		if err := s.fsys.RemoveAll(filepath.Join(s.root, entry.Name())); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Entries enumerates all valid committed payloads: recognized content files
// sitting in the shard directory their own id hashes to. Each Entry is a
// transient view; the underlying file may change concurrently.
func (s *DiskStorage) Entries() ([]*Entry, error) {
	var entries []*Entry
	err := walk.Walk(s.fsys, s.versionedRoot, walk.Visitor{
		File: func(path string, info os.FileInfo) error {
			fi, ok := parseFileName(filepath.Base(path))
			if !ok || fi.Kind != KindContent {
				return nil
			}
			if !inExpectedShard(s.versionedRoot, filepath.Dir(path), fi.ResourceID) {
				return nil
			}
			entries = append(entries, newEntry(s.fsys, fi.ResourceID, path))
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// PurgeUnexpectedResources walks the whole cache root and deletes everything
// that does not belong: any file outside the active versioned root,
// unrecognized or mis-sharded files inside it, and temp files older than the
// staleness window. Empty directories left behind are pruned on the way back
// up; the cache root itself is never deleted. A single bad file never aborts
// the pass.
func (s *DiskStorage) PurgeUnexpectedResources() {
	now := s.clk.Now()

	err := walk.Walk(s.fsys, s.root, walk.Visitor{
		File: func(path string, info os.FileInfo) error {
			if s.keepDuringPurge(path, info, now) {
				return nil
			}
			if err := s.fsys.Remove(path); err != nil {
				s.reporter.Report(CategoryOther, "purge "+path, err)
			}
			return nil
		},
		LeaveDir: func(path string) error {
			if path == s.root {
				return nil
			}
			// Succeeds only for directories the purge emptied.
			_ = s.fsys.Remove(path)
			return nil
		},
	})
	if err != nil {
		s.reporter.Report(CategoryOther, "purge walk "+s.root, err)
	}
}

func (s *DiskStorage) keepDuringPurge(path string, info os.FileInfo, now time.Time) bool {
	dir := filepath.Dir(path)
	if dir != s.versionedRoot && !strings.HasPrefix(dir, s.versionedRoot+string(filepath.Separator)) {
		return false
	}

	fi, ok := parseFileName(filepath.Base(path))
	if !ok {
		return false
	}
	switch fi.Kind {
	case KindContent:
		return inExpectedShard(s.versionedRoot, dir, fi.ResourceID)
	case KindTemp:
		return now.Sub(info.ModTime()) < tempFileTTL
	default:
		return false
	}
}

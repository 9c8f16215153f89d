package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imagecache/internal/clock"
	"github.com/hupe1980/imagecache/internal/fs"
)

type report struct {
	category ErrorCategory
	context  string
	err      error
}

type recordingReporter struct {
	reports []report
}

func (r *recordingReporter) Report(category ErrorCategory, context string, err error) {
	r.reports = append(r.reports, report{category, context, err})
}

func (r *recordingReporter) categories() []ErrorCategory {
	var cats []ErrorCategory
	for _, rep := range r.reports {
		cats = append(cats, rep.category)
	}
	return cats
}

func newTestStorage(t *testing.T, version int) (*DiskStorage, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "cache")
	s, err := New(Config{Root: root, ContentVersion: version})
	require.NoError(t, err)
	return s, root
}

func writePayload(t *testing.T, s *DiskStorage, id string, payload []byte) Resource {
	t.Helper()
	ins, err := s.Insert(id)
	require.NoError(t, err)
	require.NoError(t, ins.WriteData(func(w io.Writer) error {
		_, err := w.Write(payload)
		return err
	}))
	res, err := ins.Commit()
	require.NoError(t, err)
	return res
}

func TestInsertWriteCommit_RoundTrip(t *testing.T) {
	s, _ := newTestStorage(t, 1)

	res := writePayload(t, s, "k", []byte("ABC"))

	size, err := res.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)

	got, ok := s.GetResource("k")
	require.True(t, ok)
	data, err := got.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "ABC", string(data))

	assert.True(t, s.Contains("k"))
	assert.False(t, s.Contains("other"))
}

func TestInsert_EmptyID(t *testing.T) {
	s, _ := newTestStorage(t, 1)
	_, err := s.Insert("")
	assert.ErrorIs(t, err, ErrEmptyResourceID)
}

func TestInsert_TempFileInShardDir(t *testing.T) {
	s, root := newTestStorage(t, 7)

	ins, err := s.Insert("k")
	require.NoError(t, err)

	shard := filepath.Join(root, "v2.ols100.7", filepath.Base(shardDir(s.versionedRoot, "k")))
	entries, err := os.ReadDir(shard)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	fi, ok := parseFileName(entries[0].Name())
	require.True(t, ok)
	assert.Equal(t, KindTemp, fi.Kind)
	assert.Equal(t, "k", fi.ResourceID)

	assert.True(t, ins.CleanUp())
	entries, err = os.ReadDir(shard)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConcurrentInserts_DistinctTempFiles(t *testing.T) {
	s, _ := newTestStorage(t, 1)

	a, err := s.Insert("same")
	require.NoError(t, err)
	b, err := s.Insert("same")
	require.NoError(t, err)

	assert.NotEqual(t, a.tempPath, b.tempPath)

	// Both commit; the second rename wins, neither errors.
	require.NoError(t, a.WriteData(func(w io.Writer) error { _, err := w.Write([]byte("first")); return err }))
	require.NoError(t, b.WriteData(func(w io.Writer) error { _, err := w.Write([]byte("second")); return err }))
	_, err = a.Commit()
	require.NoError(t, err)
	_, err = b.Commit()
	require.NoError(t, err)

	res, ok := s.GetResource("same")
	require.True(t, ok)
	data, err := res.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestWriteData_IncompleteWrite(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	reporter := &recordingReporter{}
	root := filepath.Join(t.TempDir(), "cache")
	s, err := New(Config{Root: root, ContentVersion: 1, FS: ffs, Reporter: reporter})
	require.NoError(t, err)

	// Every temp file silently loses its last byte on close.
	ffs.AddRule(".tmp", fs.Fault{ShortenBy: 1})

	ins, err := s.Insert("k")
	require.NoError(t, err)
	err = ins.WriteData(func(w io.Writer) error {
		_, err := w.Write([]byte("ABC"))
		return err
	})

	var incomplete *ErrIncompleteWrite
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, int64(3), incomplete.Expected)
	assert.Equal(t, int64(2), incomplete.Actual)
	assert.Contains(t, reporter.categories(), CategoryWriteIncomplete)
}

func TestWriteData_WriterErrorPropagates(t *testing.T) {
	s, _ := newTestStorage(t, 1)
	ins, err := s.Insert("k")
	require.NoError(t, err)

	boom := errors.New("decoder exploded")
	err = ins.WriteData(func(w io.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.True(t, ins.CleanUp())
	assert.False(t, s.Contains("k"))
}

func TestCleanUp_AfterCommitIsNoop(t *testing.T) {
	s, _ := newTestStorage(t, 1)

	ins, err := s.Insert("k")
	require.NoError(t, err)
	require.NoError(t, ins.WriteData(func(w io.Writer) error {
		_, err := w.Write([]byte("ABC"))
		return err
	}))
	_, err = ins.Commit()
	require.NoError(t, err)

	assert.True(t, ins.CleanUp())
	assert.True(t, s.Contains("k"))
}

func TestInsert_DirCreateFailure(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	reporter := &recordingReporter{}
	root := filepath.Join(t.TempDir(), "cache")
	s, err := New(Config{Root: root, ContentVersion: 1, FS: ffs, Reporter: reporter})
	require.NoError(t, err)

	ffs.AddRule(filepath.Join("cache", "v2.ols100.1"), fs.Fault{FailMkdir: true})

	_, err = s.Insert("k")
	var cd *ErrCreateDir
	require.ErrorAs(t, err, &cd)
	assert.Contains(t, reporter.categories(), CategoryWriteCreateDir)
}

func TestCommit_RenameFailure(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	reporter := &recordingReporter{}
	root := filepath.Join(t.TempDir(), "cache")
	s, err := New(Config{Root: root, ContentVersion: 1, FS: ffs, Reporter: reporter})
	require.NoError(t, err)

	ins, err := s.Insert("k")
	require.NoError(t, err)
	require.NoError(t, ins.WriteData(func(w io.Writer) error {
		_, err := w.Write([]byte("ABC"))
		return err
	}))

	ffs.AddRule(".tmp", fs.Fault{FailRename: true})

	_, err = ins.Commit()
	var re *ErrRename
	require.ErrorAs(t, err, &re)
	assert.Contains(t, reporter.categories(), CategoryWriteRenameOther)

	// The temp file survives a failed commit and CleanUp removes it.
	ffs.ClearRules()
	assert.True(t, ins.CleanUp())
}

func TestVersionRotation_WipesOldContent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")

	s1, err := New(Config{Root: root, ContentVersion: 1})
	require.NoError(t, err)
	writePayload(t, s1, "k", []byte("v1-data"))

	s2, err := New(Config{Root: root, ContentVersion: 2})
	require.NoError(t, err)

	assert.False(t, s2.Contains("k"))
	entries, err := s2.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The old versioned directory is gone entirely.
	_, err = os.Stat(filepath.Join(root, "v2.ols100.1"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "v2.ols100.2"))
	assert.NoError(t, err)
}

func TestVersionRotation_SameVersionKeepsContent(t *testing.T) {
	root := filepath.Join(t.TempDir(), "cache")

	s1, err := New(Config{Root: root, ContentVersion: 3})
	require.NoError(t, err)
	writePayload(t, s1, "k", []byte("data"))

	s2, err := New(Config{Root: root, ContentVersion: 3})
	require.NoError(t, err)
	assert.True(t, s2.Contains("k"))
}

func TestGetResource_BumpsAccessTime(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	root := filepath.Join(t.TempDir(), "cache")
	s, err := New(Config{Root: root, ContentVersion: 1, Clock: clk})
	require.NoError(t, err)

	writePayload(t, s, "k", []byte("data"))

	clk.Advance(time.Hour)
	_, ok := s.GetResource("k")
	require.True(t, ok)

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Timestamp().Equal(clk.Now()))
}

func TestTouch(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	root := filepath.Join(t.TempDir(), "cache")
	s, err := New(Config{Root: root, ContentVersion: 1, Clock: clk})
	require.NoError(t, err)

	writePayload(t, s, "k", []byte("data"))
	clk.Advance(2 * time.Hour)

	assert.True(t, s.Touch("k"))
	assert.False(t, s.Touch("missing"))

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Timestamp().Equal(clk.Now()))
}

func TestRemove_ReturnConvention(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	root := filepath.Join(t.TempDir(), "cache")
	s, err := New(Config{Root: root, ContentVersion: 1, FS: ffs})
	require.NoError(t, err)

	writePayload(t, s, "k", []byte("ABCDE"))

	// Deletion failure yields the failure marker.
	ffs.AddRule("k.cnt", fs.Fault{FailRemove: true})
	assert.Equal(t, RemoveFailed, s.Remove("k"))

	ffs.ClearRules()
	assert.Equal(t, int64(5), s.Remove("k"))

	// Never existed.
	assert.Equal(t, int64(0), s.Remove("k"))
	assert.Equal(t, int64(0), s.Remove("never"))
}

func TestRemoveEntry(t *testing.T) {
	s, _ := newTestStorage(t, 1)
	writePayload(t, s, "k", []byte("1234"))

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, int64(4), s.RemoveEntry(entries[0]))
	assert.False(t, s.Contains("k"))
}

func TestClearAll(t *testing.T) {
	s, root := newTestStorage(t, 1)
	writePayload(t, s, "a", []byte("1"))
	writePayload(t, s, "b", []byte("2"))

	require.NoError(t, s.ClearAll())

	assert.False(t, s.Contains("a"))
	assert.False(t, s.Contains("b"))

	// The root itself survives.
	_, err := os.Stat(root)
	assert.NoError(t, err)

	// And writes still work afterwards: directories come back on demand.
	writePayload(t, s, "c", []byte("3"))
	assert.True(t, s.Contains("c"))
}

func TestEntries_EnumeratesCommittedOnly(t *testing.T) {
	s, _ := newTestStorage(t, 1)

	writePayload(t, s, "a", []byte("xx"))
	writePayload(t, s, "b", []byte("yyy"))

	// An uncommitted insert must not be enumerated.
	ins, err := s.Insert("c")
	require.NoError(t, err)
	defer ins.CleanUp()

	entries, err := s.Entries()
	require.NoError(t, err)

	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ResourceID())
	}
	sort.Strings(ids)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestEntries_SkipsMisshardedContent(t *testing.T) {
	s, _ := newTestStorage(t, 1)
	writePayload(t, s, "good", []byte("data"))

	// Plant a well-formed content file in a shard its id does not hash to.
	wrongShard := (ShardIndex("evil") + 1) % ShardCount
	dir := filepath.Join(s.versionedRoot, strconv.Itoa(wrongShard))
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "evil.cnt"), []byte("x"), 0644))

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "good", entries[0].ResourceID())
}

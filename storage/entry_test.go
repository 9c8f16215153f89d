package storage

import (
	"io"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imagecache/internal/clock"
)

func TestEntry_LazyTimestampAndSize(t *testing.T) {
	s, _ := newTestStorage(t, 1)
	writePayload(t, s, "k", []byte("12345"))

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]

	assert.Equal(t, "k", e.ResourceID())
	assert.Equal(t, int64(5), e.Size())
	assert.False(t, e.Timestamp().IsZero())

	// Cached once computed: deleting the file does not change the view.
	require.Equal(t, int64(5), s.RemoveEntry(e))
	assert.Equal(t, int64(5), e.Size())
	assert.False(t, e.Timestamp().IsZero())
}

func TestEntry_VanishedFile(t *testing.T) {
	s, _ := newTestStorage(t, 1)
	writePayload(t, s, "k", []byte("12345"))

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]

	// Deleted before anything was computed: zero values, early eviction.
	require.Equal(t, int64(5), s.RemoveEntry(e))
	assert.Equal(t, int64(0), e.Size())
	assert.True(t, e.Timestamp().IsZero())
}

func TestResource_MapReadBack(t *testing.T) {
	s, _ := newTestStorage(t, 1)
	writePayload(t, s, "k", []byte("mapped payload"))

	res, ok := s.GetResource("k")
	require.True(t, ok)

	m, err := res.Map()
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, "mapped payload", string(m.Bytes()))
}

func TestOldestFirst_TotalOrder(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	root := filepath.Join(t.TempDir(), "cache")
	s, err := New(Config{Root: root, ContentVersion: 1, Clock: clk})
	require.NoError(t, err)

	writePayload(t, s, "old", []byte("1"))
	clk.Advance(time.Minute)
	writePayload(t, s, "mid", []byte("2"))
	clk.Advance(time.Minute)
	writePayload(t, s, "new", []byte("3"))

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	sort.SliceStable(entries, func(i, j int) bool {
		return OldestFirst(entries[i], entries[j]) < 0
	})

	assert.Equal(t, "old", entries[0].ResourceID())
	assert.Equal(t, "mid", entries[1].ResourceID())
	assert.Equal(t, "new", entries[2].ResourceID())

	// Contract: exactly one of <, =, > per pair, antisymmetric.
	for _, a := range entries {
		assert.Zero(t, OldestFirst(a, a))
		for _, b := range entries {
			assert.Equal(t, OldestFirst(a, b), -OldestFirst(b, a))
		}
	}

	// Identical timestamps compare equal; ties are left to the caller.
	byID := func(id string) *Entry {
		for _, e := range entries {
			if e.ResourceID() == id {
				return e
			}
		}
		return nil
	}
	twin := newEntry(s.fsys, "twin", byID("old").Resource().Path())
	assert.Zero(t, OldestFirst(byID("old"), twin))
}

func TestOldestFirst_Transitive(t *testing.T) {
	mk := func(ts time.Time) *Entry {
		return &Entry{resourceID: "x", res: &fileResource{}, timestamp: ts, size: 0}
	}
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	a, b, c := mk(base), mk(base.Add(time.Second)), mk(base.Add(2*time.Second))

	assert.Negative(t, OldestFirst(a, b))
	assert.Negative(t, OldestFirst(b, c))
	assert.Negative(t, OldestFirst(a, c))
}

func TestWriteData_CountsBytes(t *testing.T) {
	s, _ := newTestStorage(t, 1)
	ins, err := s.Insert("k")
	require.NoError(t, err)

	require.NoError(t, ins.WriteData(func(w io.Writer) error {
		if _, err := w.Write([]byte("AB")); err != nil {
			return err
		}
		_, err := w.Write([]byte("C"))
		return err
	}))
	assert.Equal(t, int64(3), ins.Written())
	assert.True(t, ins.CleanUp())
}

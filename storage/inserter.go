package storage

import (
	"bufio"
	"io"
	"os"
)

// Inserter is the handle for one in-flight write. It is not safe for
// concurrent use; each concurrent insert gets its own Inserter.
type Inserter struct {
	s          *DiskStorage
	resourceID string
	tempPath   string
	committed  bool
	written    int64
}

// WriteData invokes the caller's writer against the temp file and records
// the byte count actually flushed. If the file's on-disk length afterwards
// does not match, WriteData fails with ErrIncompleteWrite; that guards
// against buffered streams that silently under-flush.
func (in *Inserter) WriteData(write func(w io.Writer) error) error {
	f, err := in.s.fsys.OpenFile(in.tempPath, writeFlags|os.O_TRUNC, filePerm)
	if err != nil {
		in.s.reporter.Report(CategoryWriteCreateTemp, in.tempPath, err)
		return &ErrCreateTemp{Path: in.tempPath, cause: err}
	}

	counter := &countingWriter{w: f}
	bw := bufio.NewWriter(counter)

	writeErr := write(bw)
	if flushErr := bw.Flush(); writeErr == nil {
		writeErr = flushErr
	}
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return writeErr
	}
	in.written = counter.n

	info, err := in.s.fsys.Stat(in.tempPath)
	if err != nil {
		return err
	}
	if info.Size() != in.written {
		err := &ErrIncompleteWrite{Expected: in.written, Actual: info.Size()}
		in.s.reporter.Report(CategoryWriteIncomplete, in.tempPath, err)
		return err
	}
	return nil
}

// Written returns the byte count recorded by the last WriteData call.
func (in *Inserter) Written() int64 { return in.written }

// Commit atomically promotes the temp file to the canonical content path and
// bumps its access time. Any pre-existing content for the id is deleted
// first; when two concurrent inserts race, the last rename wins. Commit
// returns a handle to the now-durable resource.
func (in *Inserter) Commit() (Resource, error) {
	contentPath := in.s.contentPath(in.resourceID)

	// Deleting a stale target first keeps rename semantics identical across
	// filesystems; a failure here just means there was nothing to delete.
	_ = in.s.fsys.Remove(contentPath)

	if err := in.s.fsys.Rename(in.tempPath, contentPath); err != nil {
		in.s.reporter.Report(CategoryWriteRenameOther, in.tempPath, err)
		return nil, &ErrRename{From: in.tempPath, To: contentPath, cause: err}
	}
	in.committed = true

	now := in.s.clk.Now()
	_ = in.s.fsys.Chtimes(contentPath, now, now)

	return &fileResource{fsys: in.s.fsys, path: contentPath}, nil
}

// CleanUp deletes the temp file if it still exists. After a successful
// Commit it is a no-op. The return value reports success; cleanup is
// advisory and never raises.
func (in *Inserter) CleanUp() bool {
	if in.committed {
		return true
	}
	if _, err := in.s.fsys.Stat(in.tempPath); err != nil {
		return true // already gone
	}
	return in.s.fsys.Remove(in.tempPath) == nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

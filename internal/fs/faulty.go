package fs

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Fault defines specific failure behavior for paths matching a rule.
type Fault struct {
	FailOpen    bool // OpenFile returns Err
	FailMkdir   bool // MkdirAll returns Err
	FailRename  bool // Rename returns Err (matched against the old path)
	FailRemove  bool // Remove returns Err
	FailReadDir bool // ReadDir returns Err
	FailOnSync  bool // File.Sync returns Err
	FailOnClose bool // File.Close returns Err (file is still closed)

	// ShortenBy, when > 0, truncates the file by this many bytes on Close
	// without reporting an error. This simulates a buffered stream that
	// silently under-flushes.
	ShortenBy int64

	Err error
}

// FaultyFS is a FileSystem wrapper that can inject errors.
type FaultyFS struct {
	FS FileSystem

	mu    sync.Mutex
	rules map[string]Fault // path substring -> Fault
}

// NewFaultyFS creates a new FaultyFS wrapping the provided FS (or Default if nil).
func NewFaultyFS(fsys FileSystem) *FaultyFS {
	if fsys == nil {
		fsys = Default
	}
	return &FaultyFS{
		FS:    fsys,
		rules: make(map[string]Fault),
	}
}

// AddRule adds a fault injection rule for paths containing pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fault.Err == nil {
		fault.Err = fmt.Errorf("injected fault error")
	}
	f.rules[pattern] = fault
}

// ClearRules removes all fault injection rules.
func (f *FaultyFS) ClearRules() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = make(map[string]Fault)
}

func (f *FaultyFS) match(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			return rule, true
		}
	}
	return Fault{}, false
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	fault, ok := f.match(name)
	if ok && fault.FailOpen {
		return nil, fault.Err
	}

	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	if !ok {
		return file, nil
	}
	return &faultyFile{File: file, fs: f.FS, name: name, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error {
	if fault, ok := f.match(name); ok && fault.FailRemove {
		return fault.Err
	}
	return f.FS.Remove(name)
}

func (f *FaultyFS) RemoveAll(path string) error {
	if fault, ok := f.match(path); ok && fault.FailRemove {
		return fault.Err
	}
	return f.FS.RemoveAll(path)
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	if fault, ok := f.match(oldpath); ok && fault.FailRename {
		return fault.Err
	}
	return f.FS.Rename(oldpath, newpath)
}

func (f *FaultyFS) Stat(name string) (os.FileInfo, error) {
	return f.FS.Stat(name)
}

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	if fault, ok := f.match(path); ok && fault.FailMkdir {
		return fault.Err
	}
	return f.FS.MkdirAll(path, perm)
}

func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) {
	fault, ok := f.match(name)
	if ok && fault.FailReadDir {
		return nil, fault.Err
	}
	return f.FS.ReadDir(name)
}

func (f *FaultyFS) Chtimes(name string, atime, mtime time.Time) error {
	return f.FS.Chtimes(name, atime, mtime)
}

func (f *FaultyFS) Truncate(name string, size int64) error {
	return f.FS.Truncate(name, size)
}

type faultyFile struct {
	File
	fs    FileSystem
	name  string
	fault Fault
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.Err
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	if ff.fault.FailOnClose {
		_ = ff.File.Close()
		return ff.fault.Err
	}
	if err := ff.File.Close(); err != nil {
		return err
	}
	if ff.fault.ShortenBy > 0 {
		info, err := ff.fs.Stat(ff.name)
		if err != nil {
			return err
		}
		size := info.Size() - ff.fault.ShortenBy
		if size < 0 {
			size = 0
		}
		return ff.fs.Truncate(ff.name, size)
	}
	return nil
}

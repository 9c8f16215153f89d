package storage

import (
	"fmt"
	"log/slog"
)

// ErrorCategory classifies failures reported to the ErrorReporter sink.
type ErrorCategory int

const (
	// CategoryWriteCreateDir is a shard or version directory creation failure.
	CategoryWriteCreateDir ErrorCategory = iota
	// CategoryWriteCreateTemp is a temp file creation failure.
	CategoryWriteCreateTemp
	// CategoryWriteIncomplete is a flushed-length/on-disk-length mismatch.
	CategoryWriteIncomplete
	// CategoryWriteRenameOther is a temp-to-content rename failure.
	CategoryWriteRenameOther
	// CategoryOther is everything else (rotation, purge bookkeeping).
	CategoryOther
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryWriteCreateDir:
		return "write_create_dir"
	case CategoryWriteCreateTemp:
		return "write_create_temp"
	case CategoryWriteIncomplete:
		return "write_incomplete"
	case CategoryWriteRenameOther:
		return "write_rename_other"
	default:
		return "other"
	}
}

// ErrorReporter receives categorized failure reports. Reporting is advisory:
// implementations must not panic or block, and the store never acts on the
// outcome.
type ErrorReporter interface {
	Report(category ErrorCategory, context string, err error)
}

// NoopReporter discards all reports.
type NoopReporter struct{}

func (NoopReporter) Report(ErrorCategory, string, error) {}

// SlogReporter forwards reports to a slog logger at warn level.
type SlogReporter struct {
	Logger *slog.Logger
}

func (r SlogReporter) Report(category ErrorCategory, context string, err error) {
	if r.Logger == nil {
		return
	}
	r.Logger.Warn("disk storage failure",
		"category", category.String(),
		"context", context,
		"error", err,
	)
}

// ErrCreateDir indicates a shard or version directory could not be created.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrCreateDir struct {
	Path  string
	cause error
}

func (e *ErrCreateDir) Error() string {
	return fmt.Sprintf("create directory %s: %v", e.Path, e.cause)
}

func (e *ErrCreateDir) Unwrap() error { return e.cause }

// ErrCreateTemp indicates a temp file could not be created.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrCreateTemp struct {
	Path  string
	cause error
}

func (e *ErrCreateTemp) Error() string {
	return fmt.Sprintf("create temp file %s: %v", e.Path, e.cause)
}

func (e *ErrCreateTemp) Unwrap() error { return e.cause }

// ErrIncompleteWrite indicates the byte count flushed to a temp file does not
// match its on-disk length. This signals a filesystem or stream bug, not a
// logic error in the caller's writer.
type ErrIncompleteWrite struct {
	Expected int64
	Actual   int64
}

func (e *ErrIncompleteWrite) Error() string {
	return fmt.Sprintf("incomplete write: expected %d bytes on disk, found %d", e.Expected, e.Actual)
}

// ErrRename indicates a temp file could not be atomically promoted to its
// content path.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrRename struct {
	From  string
	To    string
	cause error
}

func (e *ErrRename) Error() string {
	return fmt.Sprintf("rename %s to %s: %v", e.From, e.To, e.cause)
}

func (e *ErrRename) Unwrap() error { return e.cause }

// Package errkind defines the error taxonomy shared by the archive
// analysis and image retrieval pipeline. Errors cross the worker/consumer
// boundary as data, so every failure carries a machine-readable Kind in
// addition to a human-readable message.
package errkind

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// InvalidArchive means the archive contains non-image content or is empty.
	InvalidArchive Kind = "invalid_archive"
	// SizeLimitExceeded means the archive or entry exceeds a configured size limit.
	SizeLimitExceeded Kind = "size_limit_exceeded"
	// EntryCountExceeded means the archive holds more entries than allowed.
	EntryCountExceeded Kind = "entry_count_exceeded"
	// Timeout means an analysis was abandoned after its deadline elapsed.
	Timeout Kind = "timeout"
	// CorruptEntry means an entry could not be decoded.
	CorruptEntry Kind = "corrupt_entry"
	// PoolExhausted means no archive handle became available in time.
	PoolExhausted Kind = "pool_exhausted"
	// IOFailure means a path was unreadable or a read failed.
	IOFailure Kind = "io_failure"
	// Canceled means the operation observed a cooperative cancellation.
	Canceled Kind = "canceled"
)

// Error wraps an underlying error with a Kind and the archive/entry it
// concerns. Entry is empty for archive-level failures.
type Error struct {
	Kind  Kind
	Path  string
	Entry string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Entry != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s!%s: %v", e.Kind, e.Path, e.Entry, e.Err)
	case e.Entry != "":
		return fmt.Sprintf("%s: %s!%s", e.Kind, e.Path, e.Entry)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an archive-level error of the given kind.
func New(kind Kind, path string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Path: path, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind and archive path to an underlying error.
func Wrap(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// WrapEntry attaches a kind, archive path and entry name to an underlying error.
func WrapEntry(kind Kind, path, entry string, err error) *Error {
	return &Error{Kind: kind, Path: path, Entry: entry, Err: err}
}

// KindOf extracts the Kind from an error chain. Errors produced outside the
// taxonomy report IOFailure, matching the propagation policy for unreadable
// paths and failed reads.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return IOFailure
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

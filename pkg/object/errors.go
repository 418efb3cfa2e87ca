// Package object holds the domain types shared by the catalog, storage and
// engine layers: the logical Object, validation rules, and the error
// taxonomy every collaborator raises through.
package object

import "fmt"

// Kind categorizes an Error the way §7 of the specification enumerates the
// taxonomy. Callers should compare against these constants with errors.Is
// rather than inspecting Message.
type Kind int

const (
	// KindInvalidInput covers schema validation failures: bucket name,
	// object path, open mode, mime type, tag, size, timestamp,
	// user-metadata encoding.
	KindInvalidInput Kind = iota
	// KindObjectNotFound is raised by read/head/delete against a path with
	// no live row.
	KindObjectNotFound
	// KindObjectExists is raised by wx/ax against an existing live path.
	KindObjectExists
	// KindPreconditionFailed is raised by an append whose expected
	// checksum no longer matches the live row.
	KindPreconditionFailed
	// KindChecksumMismatch is raised when the end-of-read hash comparison
	// fails.
	KindChecksumMismatch
	// KindEntityNotFound is raised when a part file referenced by
	// metadata is missing on read.
	KindEntityNotFound
	// KindEntryPathNotFound is raised when the storage adapter cannot
	// locate a named entry.
	KindEntryPathNotFound
	// KindEngineClosed is raised by any operation after Engine.Close.
	KindEngineClosed
	// KindEngineNotOpen is raised by any operation before Engine.Open
	// completes.
	KindEngineNotOpen
	// KindDatabaseError wraps adapter-level catalog failures.
	KindDatabaseError
	// KindFilesystemError wraps adapter-level storage failures.
	KindFilesystemError
	// KindInvariantViolation marks an internal bug. It must never be
	// presented to callers as recoverable.
	KindInvariantViolation
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindObjectNotFound:
		return "ObjectNotFound"
	case KindObjectExists:
		return "ObjectExists"
	case KindPreconditionFailed:
		return "PreconditionFailed"
	case KindChecksumMismatch:
		return "ChecksumMismatch"
	case KindEntityNotFound:
		return "EntityNotFound"
	case KindEntryPathNotFound:
		return "EntryPathNotFound"
	case KindEngineClosed:
		return "EngineClosed"
	case KindEngineNotOpen:
		return "EngineNotOpen"
	case KindDatabaseError:
		return "DatabaseError"
	case KindFilesystemError:
		return "FilesystemError"
	case KindInvariantViolation:
		return "InvariantViolation"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type raised by the catalog, storage and
// engine layers. It carries enough context (bucket, object path) for a
// caller to log or translate it without reparsing a message string.
type Error struct {
	Kind    Kind
	Message string
	Bucket  string
	Path    string
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	switch {
	case e.Path != "" && e.Bucket != "":
		return fmt.Sprintf("%s: %s (bucket=%s path=%s)", e.Kind, e.Message, e.Bucket, e.Path)
	case e.Path != "":
		return fmt.Sprintf("%s: %s (path=%s)", e.Kind, e.Message, e.Path)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is implements errors.Is by Kind, so callers can write
// errors.Is(err, &object.Error{Kind: object.KindObjectNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newErr(kind Kind, path, msg string) *Error {
	return &Error{Kind: kind, Path: path, Message: msg}
}

// NewNotFound builds a KindObjectNotFound error for the given path.
func NewNotFound(path string) *Error {
	return newErr(KindObjectNotFound, path, "object not found")
}

// NewExists builds a KindObjectExists error for the given path.
func NewExists(path string) *Error {
	return newErr(KindObjectExists, path, "object already exists")
}

// NewPreconditionFailed builds a KindPreconditionFailed error.
func NewPreconditionFailed(path string) *Error {
	return newErr(KindPreconditionFailed, path, "checksum precondition failed")
}

// NewChecksumMismatch builds a KindChecksumMismatch error.
func NewChecksumMismatch(path string) *Error {
	return newErr(KindChecksumMismatch, path, "checksum mismatch")
}

// NewEntityNotFound builds a KindEntityNotFound error.
func NewEntityNotFound(path string) *Error {
	return newErr(KindEntityNotFound, path, "entity part missing")
}

// NewEntryPathNotFound builds a KindEntryPathNotFound error.
func NewEntryPathNotFound(path string) *Error {
	return newErr(KindEntryPathNotFound, path, "storage entry not found")
}

// NewInvalidInput builds a KindInvalidInput error with a custom message.
func NewInvalidInput(path, msg string) *Error {
	return newErr(KindInvalidInput, path, msg)
}

// NewEngineClosed builds a KindEngineClosed error.
func NewEngineClosed() *Error {
	return &Error{Kind: KindEngineClosed, Message: "engine is closed"}
}

// NewEngineNotOpen builds a KindEngineNotOpen error.
func NewEngineNotOpen() *Error {
	return &Error{Kind: KindEngineNotOpen, Message: "engine is not open"}
}

// NewDatabaseError wraps a catalog-adapter failure.
func NewDatabaseError(err error) *Error {
	return &Error{Kind: KindDatabaseError, Message: "database error", Err: err}
}

// NewFilesystemError wraps a storage-adapter failure.
func NewFilesystemError(err error) *Error {
	return &Error{Kind: KindFilesystemError, Message: "filesystem error", Err: err}
}

// NewInvariantViolation builds a KindInvariantViolation error. Callers
// constructing this are reporting an internal bug, not a user mistake.
func NewInvariantViolation(msg string) *Error {
	return &Error{Kind: KindInvariantViolation, Message: msg}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if oe, ok := err.(*Error); ok {
		e = oe
	} else {
		return false
	}
	return e.Kind == kind
}

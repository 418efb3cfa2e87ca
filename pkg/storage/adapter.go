// Package storage defines the hierarchical blob-store adapter surface
// §4.3 and §6 of the specification describe: entity directories of
// numbered part files, with atomic-rename write semantics via a reserved
// scratch suffix. Concrete adapters (localfs, memfs, s3fs) implement
// Adapter; the engine never talks to a filesystem, in-memory tree, or
// object store directly.
package storage

import (
	"context"
	"io"
)

// Adapter is the root collaborator the Engine is constructed with. It
// resolves a bucket's storage root, under which entity directories live at
// <root>/<bucket_name>/storage/<entity_id>/<part_number> (§6).
type Adapter interface {
	// BucketRoot returns the directory handle for a bucket's storage
	// root, creating it if create is true.
	BucketRoot(ctx context.Context, bucket string, create bool) (DirHandle, error)

	// HealthCheck verifies the adapter is reachable and operational.
	HealthCheck(ctx context.Context) error

	// Close releases any resources the adapter holds open.
	Close() error
}

// DirHandle is the capability set §4.3 requires on a directory: get or
// create a child file/directory handle, and remove a named entry.
type DirHandle interface {
	GetFileHandle(ctx context.Context, name string, create bool) (FileHandle, error)
	GetDirectoryHandle(ctx context.Context, name string, create bool) (DirHandle, error)
	RemoveEntry(ctx context.Context, name string, recursive bool) error

	// ListEntries enumerates immediate child entry names, used for orphan
	// sweeps (SPEC_FULL §4) and prefix listings over the storage tree.
	ListEntries(ctx context.Context) ([]string, error)
}

// FileHandle is the capability set §4.3 requires on a file: read its
// current contents, or open an atomic-rename writable stream onto it.
type FileHandle interface {
	GetFile(ctx context.Context) (ByteSource, error)
	CreateWritable(ctx context.Context, keepExistingData bool) (WritableFileStream, error)
}

// ByteSource exposes a part file's contents and size. ReadStream reads a
// part fully per §4.4 step 1 ("open file p, read fully"); parts are
// bounded by part_size (<= 5 GB), so whole-part buffering is the contract
// the spec describes rather than a streaming read.
type ByteSource interface {
	ReadAll(ctx context.Context) ([]byte, error)
	Size(ctx context.Context) (int64, error)
}

// WritableFileStream is the atomic-rename writable stream §4.3 describes:
// writes land in a sibling scratch file (the reserved ScratchSuffix); Close
// renames scratch to target, Abort deletes the scratch. keepExistingData,
// set via FileHandle.CreateWritable, pre-copies the existing target into
// the scratch so that further writes append.
type WritableFileStream interface {
	io.Writer
	Close(ctx context.Context) error
	Abort(ctx context.Context) error
}

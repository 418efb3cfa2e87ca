// Package memfs implements storage.Adapter as an in-memory tree, the
// collaborator spec §1 names as an alternative to a real filesystem —
// useful for tests and for an ephemeral/local mode that never touches
// disk. Grounded on the teacher's in-memory store used by its store
// conformance suite (pkg/payload/store/memstore), adapted to the
// directory-handle/file-handle shape pkg/storage.Adapter defines.
package memfs

import (
	"context"
	"sync"

	"github.com/tai-kun/omnio-sub001/pkg/object"
	"github.com/tai-kun/omnio-sub001/pkg/storage"
)

// Adapter is an in-memory storage.Adapter. The zero value is not usable;
// construct with New.
type Adapter struct {
	mu      sync.Mutex
	buckets map[string]*dirNode
	closed  bool
}

// New creates an empty in-memory adapter.
func New() *Adapter {
	return &Adapter{buckets: make(map[string]*dirNode)}
}

func (a *Adapter) BucketRoot(_ context.Context, bucket string, create bool) (storage.DirHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, object.NewFilesystemError(errClosed)
	}

	root, ok := a.buckets[bucket]
	if !ok {
		if !create {
			return nil, object.NewEntryPathNotFound(bucket)
		}
		root = newDirNode()
		a.buckets[bucket] = root
	}
	return &dirHandle{node: root}, nil
}

func (a *Adapter) HealthCheck(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return object.NewFilesystemError(errClosed)
	}
	return nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

var errClosed = errString("memfs: adapter closed")

type errString string

func (e errString) Error() string { return string(e) }

// dirNode is a mutex-guarded tree node: either a directory (children map)
// or nothing else — files live as byte slices under fileData, scratch
// writes accumulate under scratchData.
type dirNode struct {
	mu          sync.Mutex
	children    map[string]*dirNode
	fileData    map[string][]byte
	scratchData map[string][]byte
}

func newDirNode() *dirNode {
	return &dirNode{
		children:    make(map[string]*dirNode),
		fileData:    make(map[string][]byte),
		scratchData: make(map[string][]byte),
	}
}

type dirHandle struct {
	node *dirNode
}

func (d *dirHandle) GetFileHandle(_ context.Context, name string, create bool) (storage.FileHandle, error) {
	d.node.mu.Lock()
	defer d.node.mu.Unlock()

	_, isDir := d.node.children[name]
	_, isFile := d.node.fileData[name]
	if isDir {
		return nil, object.NewFilesystemError(errString("memfs: " + name + " is a directory"))
	}
	if !isFile {
		if !create {
			return nil, object.NewEntryPathNotFound(name)
		}
	}
	return &fileHandle{node: d.node, name: name}, nil
}

func (d *dirHandle) GetDirectoryHandle(_ context.Context, name string, create bool) (storage.DirHandle, error) {
	d.node.mu.Lock()
	defer d.node.mu.Unlock()

	child, ok := d.node.children[name]
	if !ok {
		if _, isFile := d.node.fileData[name]; isFile {
			return nil, object.NewFilesystemError(errString("memfs: " + name + " is a file"))
		}
		if !create {
			return nil, object.NewEntryPathNotFound(name)
		}
		child = newDirNode()
		d.node.children[name] = child
	}
	return &dirHandle{node: child}, nil
}

func (d *dirHandle) RemoveEntry(_ context.Context, name string, recursive bool) error {
	d.node.mu.Lock()
	defer d.node.mu.Unlock()

	if child, ok := d.node.children[name]; ok {
		if !recursive && (len(child.children) > 0 || len(child.fileData) > 0) {
			return object.NewFilesystemError(errString("memfs: directory not empty: " + name))
		}
		delete(d.node.children, name)
		return nil
	}
	delete(d.node.fileData, name)
	delete(d.node.scratchData, name)
	return nil
}

func (d *dirHandle) ListEntries(_ context.Context) ([]string, error) {
	d.node.mu.Lock()
	defer d.node.mu.Unlock()

	names := make([]string, 0, len(d.node.children)+len(d.node.fileData))
	for name := range d.node.children {
		names = append(names, name)
	}
	for name := range d.node.fileData {
		names = append(names, name)
	}
	return names, nil
}

type fileHandle struct {
	node *dirNode
	name string
}

func (f *fileHandle) GetFile(_ context.Context) (storage.ByteSource, error) {
	f.node.mu.Lock()
	data, ok := f.node.fileData[f.name]
	f.node.mu.Unlock()
	if !ok {
		return nil, object.NewEntryPathNotFound(f.name)
	}
	return &byteSource{data: data}, nil
}

func (f *fileHandle) CreateWritable(_ context.Context, keepExistingData bool) (storage.WritableFileStream, error) {
	f.node.mu.Lock()
	var initial []byte
	if keepExistingData {
		if existing, ok := f.node.fileData[f.name]; ok {
			initial = append([]byte(nil), existing...)
		}
	}
	f.node.scratchData[f.name] = initial
	f.node.mu.Unlock()
	return &writable{node: f.node, name: f.name}, nil
}

type byteSource struct{ data []byte }

func (b *byteSource) ReadAll(_ context.Context) ([]byte, error) {
	return append([]byte(nil), b.data...), nil
}

func (b *byteSource) Size(_ context.Context) (int64, error) {
	return int64(len(b.data)), nil
}

type writable struct {
	node   *dirNode
	name   string
	closed bool
}

func (w *writable) Write(p []byte) (int, error) {
	w.node.mu.Lock()
	defer w.node.mu.Unlock()
	w.node.scratchData[w.name] = append(w.node.scratchData[w.name], p...)
	return len(p), nil
}

func (w *writable) Close(_ context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.node.mu.Lock()
	defer w.node.mu.Unlock()
	w.node.fileData[w.name] = w.node.scratchData[w.name]
	delete(w.node.scratchData, w.name)
	return nil
}

func (w *writable) Abort(_ context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.node.mu.Lock()
	defer w.node.mu.Unlock()
	delete(w.node.scratchData, w.name)
	return nil
}

var _ storage.Adapter = (*Adapter)(nil)

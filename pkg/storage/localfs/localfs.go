// Package localfs implements storage.Adapter on top of the host
// filesystem, following the atomic-rename-via-scratch-file pattern in the
// teacher's pkg/payload/store/fs.Store (tmp file + rename, cleaned up on
// failure) generalized to the entity-directory-of-parts layout §6
// requires and the reserved .crswap scratch suffix it names.
package localfs

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/tai-kun/omnio-sub001/pkg/object"
	"github.com/tai-kun/omnio-sub001/pkg/storage"
)

// Adapter is a filesystem-backed storage.Adapter rooted at BasePath, with
// buckets living under <BasePath>/<bucket>/storage per §6.
type Adapter struct {
	mu       sync.RWMutex
	basePath string
	closed   bool
	dirMode  os.FileMode
	fileMode os.FileMode
}

// Config configures a localfs Adapter.
type Config struct {
	BasePath string
	DirMode  os.FileMode // default 0755
	FileMode os.FileMode // default 0644
}

// New creates the adapter, ensuring BasePath exists.
func New(cfg Config) (*Adapter, error) {
	if cfg.BasePath == "" {
		return nil, object.NewInvalidInput("", "base path is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0o755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o644
	}
	if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
		return nil, object.NewFilesystemError(err)
	}
	return &Adapter{basePath: cfg.BasePath, dirMode: cfg.DirMode, fileMode: cfg.FileMode}, nil
}

func (a *Adapter) BucketRoot(_ context.Context, bucket string, create bool) (storage.DirHandle, error) {
	a.mu.RLock()
	closed := a.closed
	a.mu.RUnlock()
	if closed {
		return nil, object.NewFilesystemError(os.ErrClosed)
	}

	root := filepath.Join(a.basePath, bucket, "storage")
	if create {
		if err := os.MkdirAll(root, a.dirMode); err != nil {
			return nil, object.NewFilesystemError(err)
		}
	} else if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, object.NewEntryPathNotFound(root)
		}
		return nil, object.NewFilesystemError(err)
	}

	return &dirHandle{path: root, dirMode: a.dirMode, fileMode: a.fileMode}, nil
}

func (a *Adapter) HealthCheck(_ context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return object.NewFilesystemError(os.ErrClosed)
	}
	if _, err := os.Stat(a.basePath); err != nil {
		return object.NewFilesystemError(err)
	}
	return nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

type dirHandle struct {
	path     string
	dirMode  os.FileMode
	fileMode os.FileMode
}

func (d *dirHandle) GetFileHandle(_ context.Context, name string, create bool) (storage.FileHandle, error) {
	p := filepath.Join(d.path, name)
	if create {
		if err := os.MkdirAll(d.path, d.dirMode); err != nil {
			return nil, object.NewFilesystemError(err)
		}
	} else if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return nil, object.NewEntryPathNotFound(p)
		}
		return nil, object.NewFilesystemError(err)
	}
	return &fileHandle{path: p, fileMode: d.fileMode}, nil
}

func (d *dirHandle) GetDirectoryHandle(_ context.Context, name string, create bool) (storage.DirHandle, error) {
	p := filepath.Join(d.path, name)
	if create {
		if err := os.MkdirAll(p, d.dirMode); err != nil {
			return nil, object.NewFilesystemError(err)
		}
	} else if info, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return nil, object.NewEntryPathNotFound(p)
		}
		return nil, object.NewFilesystemError(err)
	} else if !info.IsDir() {
		return nil, object.NewFilesystemError(&fs.PathError{Op: "opendir", Path: p, Err: fs.ErrInvalid})
	}
	return &dirHandle{path: p, dirMode: d.dirMode, fileMode: d.fileMode}, nil
}

func (d *dirHandle) RemoveEntry(_ context.Context, name string, recursive bool) error {
	p := filepath.Join(d.path, name)
	var err error
	if recursive {
		err = os.RemoveAll(p)
	} else {
		err = os.Remove(p)
	}
	if err != nil && !os.IsNotExist(err) {
		return object.NewFilesystemError(err)
	}
	return nil
}

func (d *dirHandle) ListEntries(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, object.NewFilesystemError(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

type fileHandle struct {
	path     string
	fileMode os.FileMode
}

func (f *fileHandle) GetFile(_ context.Context) (storage.ByteSource, error) {
	if _, err := os.Stat(f.path); err != nil {
		if os.IsNotExist(err) {
			return nil, object.NewEntryPathNotFound(f.path)
		}
		return nil, object.NewFilesystemError(err)
	}
	return &byteSource{path: f.path}, nil
}

func (f *fileHandle) CreateWritable(_ context.Context, keepExistingData bool) (storage.WritableFileStream, error) {
	scratch := f.path + object.ScratchSuffix
	file, err := os.OpenFile(scratch, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.fileMode)
	if err != nil {
		return nil, object.NewFilesystemError(err)
	}
	if keepExistingData {
		if existing, err := os.ReadFile(f.path); err == nil {
			if _, werr := file.Write(existing); werr != nil {
				file.Close()
				os.Remove(scratch)
				return nil, object.NewFilesystemError(werr)
			}
		} else if !os.IsNotExist(err) {
			file.Close()
			os.Remove(scratch)
			return nil, object.NewFilesystemError(err)
		}
	}
	return &writable{targetPath: f.path, scratchPath: scratch, file: file}, nil
}

type byteSource struct{ path string }

func (b *byteSource) ReadAll(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, object.NewEntryPathNotFound(b.path)
		}
		return nil, object.NewFilesystemError(err)
	}
	return data, nil
}

func (b *byteSource) Size(_ context.Context) (int64, error) {
	info, err := os.Stat(b.path)
	if err != nil {
		return 0, object.NewFilesystemError(err)
	}
	return info.Size(), nil
}

type writable struct {
	targetPath  string
	scratchPath string
	file        *os.File
	closed      bool
}

func (w *writable) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

func (w *writable) Close(_ context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.file.Close(); err != nil {
		os.Remove(w.scratchPath)
		return object.NewFilesystemError(err)
	}
	if err := os.Rename(w.scratchPath, w.targetPath); err != nil {
		os.Remove(w.scratchPath)
		return object.NewFilesystemError(err)
	}
	return nil
}

func (w *writable) Abort(_ context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.file.Close()
	if err := os.Remove(w.scratchPath); err != nil && !os.IsNotExist(err) {
		return object.NewFilesystemError(err)
	}
	return nil
}

var _ storage.Adapter = (*Adapter)(nil)

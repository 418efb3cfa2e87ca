package engine

import (
	"context"
	"io"

	"github.com/tai-kun/omnio-sub001/internal/telemetry"
	"github.com/tai-kun/omnio-sub001/pkg/catalog"
	"github.com/tai-kun/omnio-sub001/pkg/object"
	"github.com/tai-kun/omnio-sub001/pkg/omnhash"
	"github.com/tai-kun/omnio-sub001/pkg/partcache"
	"github.com/tai-kun/omnio-sub001/pkg/storage"
)

// ReadStream is the read-side protocol §4.4 describes: parts are read
// back in order through the part cache, hashed as they are produced,
// and the accumulated digest is checked against the catalog row's
// checksum the moment the final part is delivered.
//
// Grounded on the teacher's payload read-handle (sequential chunk
// iterator over a fixed-size file), generalized to the multi-part
// entity layout and fronted by the part cache.
type ReadStream struct {
	e   *Engine
	row object.Object

	entityDir storage.DirHandle

	curPart  int // next part number to deliver, 1-based
	hash     *omnhash.Hash
	released bool
}

func (e *Engine) openRead(ctx context.Context, path string) (stream *ReadStream, err error) {
	ctx, end := telemetry.StartSpan(ctx, "openRead")
	defer func() { end(err) }()

	if err = e.checkOpen(); err != nil {
		return nil, err
	}
	if err = object.ValidateObjectPath(path, e.limits); err != nil {
		return nil, err
	}

	e.lock.RLock()

	row, err := e.catalog.Read(ctx, path, "", catalog.LoadAll())
	if err != nil {
		e.lock.RUnlock()
		return nil, err
	}

	r := &ReadStream{e: e, row: row, hash: omnhash.New()}

	if row.NumParts > 0 {
		dir, err := e.root.GetDirectoryHandle(ctx, entityDirName(row.EntityID), false)
		if err != nil {
			e.lock.RUnlock()
			return nil, object.NewEntityNotFound(path)
		}
		r.entityDir = dir
	} else {
		r.released = true
		e.lock.RUnlock()
	}

	e.log.WithContext(ctx, e.bucket, path, "openRead").Debug("read stream opened", "entity_id", row.EntityID, "num_parts", row.NumParts)
	return r, nil
}

// Object returns the metadata row this stream is reading.
func (r *ReadStream) Object() object.Object {
	return r.row
}

// Next returns the next part's bytes in order, io.EOF once every part has
// been delivered. The call that reads the last part verifies the
// accumulated MD5 digest against the catalog row's checksum, returning
// object.KindChecksumMismatch instead of that part's bytes if they
// disagree.
func (r *ReadStream) Next(ctx context.Context) ([]byte, error) {
	if r.e.Closed() {
		r.release()
		return nil, object.NewEngineClosed()
	}
	if r.curPart >= r.row.NumParts {
		r.release()
		return nil, io.EOF
	}

	partNum := r.curPart + 1
	key := partcache.Key{EntityID: r.row.EntityID, PartNumber: partNum}

	data, ok := r.e.cache.Get(key)
	if !ok {
		fh, err := r.entityDir.GetFileHandle(ctx, partFileName(partNum), false)
		if err != nil {
			r.release()
			return nil, object.NewEntityNotFound(r.row.ObjectPath)
		}
		src, err := fh.GetFile(ctx)
		if err != nil {
			r.release()
			return nil, object.NewEntityNotFound(r.row.ObjectPath)
		}
		data, err = src.ReadAll(ctx)
		if err != nil {
			r.release()
			return nil, object.NewFilesystemError(err)
		}
		r.e.cache.Set(key, data)
	}

	if err := r.hash.Update(data); err != nil {
		r.release()
		return nil, err
	}
	r.curPart = partNum

	if r.e.metrics != nil {
		r.e.metrics.AddBytesRead(int64(len(data)))
	}

	if r.curPart == r.row.NumParts {
		digest, err := r.hash.Digest()
		if err != nil {
			r.release()
			return nil, object.NewInvariantViolation("hash digest failed: " + err.Error())
		}
		if digest.Value != r.row.Checksum {
			r.release()
			return nil, object.NewChecksumMismatch(r.row.ObjectPath)
		}
	}

	return data, nil
}

// Close releases the reader lock if the caller abandons the stream
// before reaching io.EOF. Calling it after EOF (or more than once) is a
// safe no-op.
func (r *ReadStream) Close() error {
	r.release()
	return nil
}

func (r *ReadStream) release() {
	if r.released {
		return
	}
	r.released = true
	r.e.lock.RUnlock()
}

// ReadAll drains the stream to completion and returns the full object
// body, verifying the checksum along the way. It exists for callers
// (GetObject, the CLI) that want the whole object rather than a
// part-by-part iterator.
func (r *ReadStream) ReadAll(ctx context.Context) ([]byte, error) {
	var buf []byte
	for {
		chunk, err := r.Next(ctx)
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk...)
	}
}

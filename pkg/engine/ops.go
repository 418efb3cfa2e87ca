package engine

import (
	"context"

	"github.com/tai-kun/omnio-sub001/internal/telemetry"
	"github.com/tai-kun/omnio-sub001/pkg/catalog"
	"github.com/tai-kun/omnio-sub001/pkg/object"
)

// PutObject writes body in full under the given open mode and returns
// the committed catalog row. It is a convenience wrapper around
// OpenWrite for callers that already hold the whole payload in memory.
func (e *Engine) PutObject(ctx context.Context, path string, mode object.OpenMode, body []byte, opts WriteOptions) (object.Object, error) {
	w, err := e.OpenWrite(ctx, path, mode, opts)
	if err != nil {
		return object.Object{}, err
	}
	if _, err := w.WriteContext(ctx, body); err != nil {
		_ = w.Abort(ctx, err.Error())
		return object.Object{}, err
	}
	return w.Close(ctx)
}

// GetObject reads an object's body in full, verifying its checksum.
func (e *Engine) GetObject(ctx context.Context, path string) ([]byte, object.Object, error) {
	r, err := e.OpenRead(ctx, path)
	if err != nil {
		return nil, object.Object{}, err
	}
	defer r.Close()
	data, err := r.ReadAll(ctx)
	if err != nil {
		return nil, object.Object{}, err
	}
	return data, r.Object(), nil
}

// OpenWrite opens a WriteStream, acquiring the engine's writer lock for
// the duration of the write. Callers must call Close or Abort exactly
// once to release it.
func (e *Engine) OpenWrite(ctx context.Context, path string, mode object.OpenMode, opts WriteOptions) (*WriteStream, error) {
	return e.openWrite(ctx, path, mode, opts)
}

// OpenRead opens a ReadStream, acquiring the engine's reader lock for
// the duration of the read. Callers must call Close (directly, or by
// draining to io.EOF) exactly once to release it.
func (e *Engine) OpenRead(ctx context.Context, path string) (*ReadStream, error) {
	return e.openRead(ctx, path)
}

// HeadObject returns the metadata row for path without reading its body.
func (e *Engine) HeadObject(ctx context.Context, path string) (object.Object, error) {
	ctx, end := telemetry.StartSpan(ctx, "headObject")
	done := e.observeOp("headObject")
	var err error
	defer func() { end(err); done(err) }()

	if err = e.checkOpen(); err != nil {
		return object.Object{}, err
	}
	if err = object.ValidateObjectPath(path, e.limits); err != nil {
		return object.Object{}, err
	}

	unlock := e.rlock()
	defer unlock()
	var row object.Object
	row, err = e.catalog.Read(ctx, path, "", catalog.LoadAll())
	return row, err
}

// DeleteObject marks path's row deleted and best-effort reclaims its
// backing entity. Deleting an already-deleted (or never-existing) path
// is a no-op; it is never an error.
func (e *Engine) DeleteObject(ctx context.Context, path string) error {
	ctx, end := telemetry.StartSpan(ctx, "deleteObject")
	done := e.observeOp("deleteObject")
	var err error
	defer func() { end(err); done(err) }()

	if err = e.checkOpen(); err != nil {
		return err
	}
	if err = object.ValidateObjectPath(path, e.limits); err != nil {
		return err
	}

	unlock := e.wlock()
	defer unlock()

	row, err := e.catalog.Read(ctx, path, "", catalog.Select{})
	if object.Is(err, object.KindObjectNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	changed, err := e.catalog.Delete(ctx, path)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if err := e.root.RemoveEntry(ctx, entityDirName(row.EntityID), true); err != nil {
		e.log.WithContext(ctx, e.bucket, path, "deleteObject").Warn("failed to reclaim deleted entity", "entity_id", row.EntityID, "error", err)
	}
	e.cache.DelEntity(row.EntityID, row.NumParts)
	return nil
}

// ListObjects iterates live rows under prefix, invoking fn for each in
// order. Returning a non-nil error from fn stops iteration early.
func (e *Engine) ListObjects(ctx context.Context, prefix string, opts catalog.ListOptions, fn func(object.Object) error) error {
	ctx, end := telemetry.StartSpan(ctx, "listObjects")
	done := e.observeOp("listObjects")
	var err error
	defer func() { end(err); done(err) }()

	if err = e.checkOpen(); err != nil {
		return err
	}

	unlock := e.rlock()
	defer unlock()
	err = e.catalog.List(ctx, prefix, opts, fn)
	return err
}

// SearchObjects iterates live rows under prefix matching query, most
// relevant first.
func (e *Engine) SearchObjects(ctx context.Context, prefix, query string, opts catalog.SearchOptions, fn func(catalog.SearchResult) error) error {
	ctx, end := telemetry.StartSpan(ctx, "searchObjects")
	var err error
	defer func() { end(err) }()

	if err = e.checkOpen(); err != nil {
		return err
	}

	e.lock.RLock()
	defer e.lock.RUnlock()
	err = e.catalog.Search(ctx, prefix, query, opts, fn)
	return err
}

// CopyObject duplicates srcPath's current content and metadata to
// dstPath as a brand-new entity (a physical copy, not a reference-count
// bump), so later writes or deletes to either path never affect the
// other. See the design decision recorded for §4's open question on
// copy semantics.
func (e *Engine) CopyObject(ctx context.Context, srcPath, dstPath string, opts WriteOptions) (result object.Object, err error) {
	ctx, end := telemetry.StartSpan(ctx, "copyObject")
	defer func() { end(err) }()

	if err = e.checkOpen(); err != nil {
		return object.Object{}, err
	}
	if err = object.ValidateObjectPath(srcPath, e.limits); err != nil {
		return object.Object{}, err
	}
	if err = object.ValidateObjectPath(dstPath, e.limits); err != nil {
		return object.Object{}, err
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	src, err := e.catalog.Read(ctx, srcPath, "", catalog.LoadAll())
	if err != nil {
		return object.Object{}, err
	}

	srcDir, err := e.root.GetDirectoryHandle(ctx, entityDirName(src.EntityID), false)
	if err != nil {
		return object.Object{}, object.NewEntityNotFound(srcPath)
	}

	dstExisting, err := e.catalog.Read(ctx, dstPath, "", catalog.Select{})
	hasDst := true
	if object.Is(err, object.KindObjectNotFound) {
		hasDst = false
	} else if err != nil {
		return object.Object{}, err
	}

	newID := newEntityID()
	dstDir, err := e.root.GetDirectoryHandle(ctx, entityDirName(newID), true)
	if err != nil {
		return object.Object{}, object.NewFilesystemError(err)
	}

	for p := 1; p <= src.NumParts; p++ {
		srcFH, err := srcDir.GetFileHandle(ctx, partFileName(p), false)
		if err != nil {
			_ = e.root.RemoveEntry(ctx, entityDirName(newID), true)
			return object.Object{}, object.NewEntityNotFound(srcPath)
		}
		body, err := srcFH.GetFile(ctx)
		if err != nil {
			_ = e.root.RemoveEntry(ctx, entityDirName(newID), true)
			return object.Object{}, object.NewFilesystemError(err)
		}
		data, err := body.ReadAll(ctx)
		if err != nil {
			_ = e.root.RemoveEntry(ctx, entityDirName(newID), true)
			return object.Object{}, object.NewFilesystemError(err)
		}
		dstFH, err := dstDir.GetFileHandle(ctx, partFileName(p), true)
		if err != nil {
			_ = e.root.RemoveEntry(ctx, entityDirName(newID), true)
			return object.Object{}, object.NewFilesystemError(err)
		}
		wf, err := dstFH.CreateWritable(ctx, false)
		if err != nil {
			_ = e.root.RemoveEntry(ctx, entityDirName(newID), true)
			return object.Object{}, object.NewFilesystemError(err)
		}
		if _, err := wf.Write(data); err != nil {
			_ = wf.Abort(ctx)
			_ = e.root.RemoveEntry(ctx, entityDirName(newID), true)
			return object.Object{}, object.NewFilesystemError(err)
		}
		if err := wf.Close(ctx); err != nil {
			_ = e.root.RemoveEntry(ctx, entityDirName(newID), true)
			return object.Object{}, object.NewFilesystemError(err)
		}
	}

	tags := opts.Tags
	if tags == nil {
		tags = src.ObjectTags
	}
	desc := opts.Description
	if desc == "" {
		desc = src.Description
	}
	meta := opts.UserMetadata
	if meta == nil {
		meta = src.UserMetadata
	}

	row := object.Object{
		BucketName:     e.bucket,
		ObjectPath:     dstPath,
		Size:           src.Size,
		MimeType:       src.MimeType,
		Checksum:       src.Checksum,
		NumParts:       src.NumParts,
		PartSize:       src.PartSize,
		CreatedAt:      nowMillis(),
		LastModifiedAt: nowMillis(),
		RecordType:     object.RecordCreate,
		ObjectTags:     tags,
		Description:    desc,
		UserMetadata:   meta,
		ObjectID:       newEntityID(),
		EntityID:       newID,
		MD5State:       src.MD5State,
	}

	if err := e.catalog.Create(ctx, row); err != nil {
		_ = e.root.RemoveEntry(ctx, entityDirName(newID), true)
		return object.Object{}, err
	}

	if hasDst && dstExisting.Live() && dstExisting.EntityID != newID {
		if err := e.root.RemoveEntry(ctx, entityDirName(dstExisting.EntityID), true); err != nil {
			e.log.WithContext(ctx, e.bucket, dstPath, "copyObject").Warn("failed to reclaim superseded entity", "entity_id", dstExisting.EntityID, "error", err)
		}
		e.cache.DelEntity(dstExisting.EntityID, dstExisting.NumParts)
	}

	return row, nil
}

// SweepOrphans deletes entity directories that no live catalog row
// references. It runs under the writer lock, so it can never race a
// WriteStream's own in-progress (uncommitted) entity — any such stream
// either commits or cleans up its own entity before the lock is
// released back to the sweep. This is not run automatically; callers
// (the CLI, an operator cron) invoke it explicitly.
func (e *Engine) SweepOrphans(ctx context.Context) (swept []string, err error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	e.lock.Lock()
	defer e.lock.Unlock()

	live := make(map[string]struct{})
	err = e.catalog.List(ctx, "", catalog.ListOptions{Recursive: true}, func(o object.Object) error {
		live[o.EntityID] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entries, err := e.root.ListEntries(ctx)
	if err != nil {
		return nil, object.NewFilesystemError(err)
	}

	for _, name := range entries {
		if _, ok := live[name]; ok {
			continue
		}
		if err := e.root.RemoveEntry(ctx, name, true); err != nil {
			e.log.WithContext(ctx, e.bucket, "", "sweepOrphans").Warn("failed to remove orphan entity", "entity_id", name, "error", err)
			continue
		}
		swept = append(swept, name)
	}

	if len(swept) > 0 {
		e.log.Info("swept orphan entities", "count", len(swept))
	}
	return swept, nil
}

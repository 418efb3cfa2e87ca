package engine

import (
	"context"

	"github.com/tai-kun/omnio-sub001/internal/telemetry"
	"github.com/tai-kun/omnio-sub001/pkg/catalog"
	"github.com/tai-kun/omnio-sub001/pkg/object"
	"github.com/tai-kun/omnio-sub001/pkg/omnhash"
	"github.com/tai-kun/omnio-sub001/pkg/storage"
)

// sniffLen is how many leading bytes WriteStream buffers before handing
// them to mimetype.Detect, matching the library's own recommended
// detection window.
const sniffLen = 3072

// WriteOptions configures a WriteStream opened by Engine.OpenWrite.
type WriteOptions struct {
	Type         string // explicit MIME type; wins over sniffing/extension (§3)
	Tags         object.Tags
	Description  string
	UserMetadata object.UserMetadata
	PartSize     int64 // 0 uses the engine's configured default
	Expect       *catalog.Expect
	Timestamp    int64 // 0 uses the current time
}

// WriteStream is the write-side state machine §4.5 describes: writes
// land part-by-part into the entity directory via atomic-rename scratch
// files, and the metadata row is only ever made visible by Close.
//
// Grounded on the teacher's payload/store write-handle pattern (buffer
// into a scratch file, rename on commit) generalized from a single
// fixed-size file to the multi-part entity layout §6 describes, and on
// pkg/omnhash for resumable incremental hashing across append sessions.
type WriteStream struct {
	e *Engine

	bucket string
	path   string
	mode   object.OpenMode

	entityDir storage.DirHandle
	entityID  string

	newEntity  bool // true if entityID was freshly minted this session
	oldEntity  string
	oldParts   int
	existingID string // ObjectID to preserve across an append/overwrite

	partSize int64
	limits   object.Limits

	numParts    int // fully closed parts so far (including pre-existing ones)
	curPartSize int64
	size        int64

	resumeTailPart int // part number to reopen with keepExistingData; 0 if none

	cur      storage.WritableFileStream
	newParts []int // part numbers created fresh this session, for abort cleanup

	hash *omnhash.Hash

	sniff    []byte
	mimeType string
	mimeDone bool

	createdAt int64
	expect    *catalog.Expect

	opts WriteOptions

	closed    bool
	aborted   bool
	closedErr error // stored reason re-raised by Write/Close once finalized
}

func (e *Engine) openWrite(ctx context.Context, path string, mode object.OpenMode, opts WriteOptions) (stream *WriteStream, err error) {
	ctx, end := telemetry.StartSpan(ctx, "openWrite")
	defer func() { end(err) }()

	if err = e.checkOpen(); err != nil {
		return nil, err
	}
	if !mode.Valid() {
		return nil, object.NewInvalidInput(path, "invalid open mode")
	}
	if err := object.ValidateObjectPath(path, e.limits); err != nil {
		return nil, err
	}
	if err := object.ValidateTags(opts.Tags, e.limits); err != nil {
		return nil, err
	}
	if err := object.ValidateDescription(opts.Description, e.limits); err != nil {
		return nil, err
	}
	if err := object.ValidateUserMetadata(opts.UserMetadata, e.limits); err != nil {
		return nil, err
	}

	partSize := opts.PartSize
	if partSize <= 0 {
		partSize = e.partSz
	}
	if err := object.ValidatePartSize(partSize, e.limits); err != nil {
		return nil, err
	}

	e.lock.Lock()

	existing, err := e.catalog.Read(ctx, path, "", catalog.Select{})
	hasExisting := true
	if object.Is(err, object.KindObjectNotFound) {
		hasExisting = false
	} else if err != nil {
		e.lock.Unlock()
		return nil, err
	}

	ts := nowMillis()
	if opts.Timestamp > 0 {
		ts = opts.Timestamp
	}

	w := &WriteStream{
		e:        e,
		bucket:   e.bucket,
		path:     path,
		mode:     mode,
		partSize: partSize,
		limits:   e.limits,
		opts:     opts,
		expect:   opts.Expect,
	}

	switch mode {
	case object.ModeWrite:
		if hasExisting && existing.Live() {
			w.oldEntity = existing.EntityID
			w.oldParts = existing.NumParts
		}
		w.entityID = newEntityID()
		w.newEntity = true
		w.createdAt = ts

	case object.ModeWriteExclusive:
		if hasExisting && existing.Live() {
			e.lock.Unlock()
			return nil, object.NewExists(path)
		}
		w.entityID = newEntityID()
		w.newEntity = true
		w.createdAt = ts

	case object.ModeAppendExcl:
		if hasExisting && existing.Live() {
			e.lock.Unlock()
			return nil, object.NewExists(path)
		}
		w.entityID = newEntityID()
		w.newEntity = true
		w.createdAt = ts

	case object.ModeAppend:
		if hasExisting && existing.Live() {
			if opts.Expect != nil && opts.Expect.Checksum != existing.Checksum {
				e.lock.Unlock()
				return nil, object.NewPreconditionFailed(path)
			}
			w.entityID = existing.EntityID
			w.existingID = existing.ObjectID
			w.createdAt = existing.CreatedAt
			w.size = existing.Size
			w.partSize = existing.PartSize // resuming must keep the original layout
			if existing.NumParts > 0 {
				w.numParts = existing.NumParts - 1
				w.curPartSize = existing.TailSize()
				w.resumeTailPart = existing.NumParts
				if w.curPartSize >= w.partSize {
					// Tail part happened to land exactly on the boundary;
					// nothing to resume into, start a fresh part instead.
					w.numParts = existing.NumParts
					w.curPartSize = 0
					w.resumeTailPart = 0
				}
			}
			h, herr := omnhash.Resume(existing.MD5State)
			if herr != nil {
				e.lock.Unlock()
				return nil, object.NewInvariantViolation("corrupt md5 resume state: " + herr.Error())
			}
			w.hash = h
		} else {
			if opts.Expect != nil {
				e.lock.Unlock()
				return nil, object.NewPreconditionFailed(path)
			}
			w.entityID = newEntityID()
			w.newEntity = true
			w.createdAt = ts
		}
	}

	if w.hash == nil {
		w.hash = omnhash.New()
	}

	// §4.5's constructor invariant: these fields only ever carry meaning
	// for append continuations.
	if mode != object.ModeAppend && (w.size > 0 || w.expect != nil || w.resumeTailPart != 0) {
		e.lock.Unlock()
		return nil, object.NewInvariantViolation("non-append open carries append-only resume state")
	}

	root := e.root
	dir, err := root.GetDirectoryHandle(ctx, entityDirName(w.entityID), true)
	if err != nil {
		e.lock.Unlock()
		return nil, object.NewFilesystemError(err)
	}
	w.entityDir = dir

	e.log.WithContext(ctx, e.bucket, path, "openWrite").Debug("write stream opened", "mode", mode, "entity_id", w.entityID)
	return w, nil
}

func (w *WriteStream) ensureOpenPart(ctx context.Context) error {
	if w.cur != nil {
		return nil
	}
	partNum := w.numParts + 1
	keepExisting := partNum == w.resumeTailPart
	fh, err := w.entityDir.GetFileHandle(ctx, partFileName(partNum), true)
	if err != nil {
		return object.NewFilesystemError(err)
	}
	wf, err := fh.CreateWritable(ctx, keepExisting)
	if err != nil {
		return object.NewFilesystemError(err)
	}
	w.cur = wf
	return nil
}

func (w *WriteStream) closeCurrentPart(ctx context.Context) error {
	if w.cur == nil {
		return nil
	}
	if err := w.cur.Close(ctx); err != nil {
		return object.NewFilesystemError(err)
	}
	partNum := w.numParts + 1
	if partNum != w.resumeTailPart {
		w.newParts = append(w.newParts, partNum)
	}
	w.resumeTailPart = 0
	w.numParts = partNum
	w.curPartSize = 0
	w.cur = nil
	return nil
}

func (w *WriteStream) feedSniff(p []byte) {
	if w.mimeDone {
		return
	}
	if w.opts.Type != "" {
		w.mimeDone = true
		w.mimeType = w.opts.Type
		return
	}
	remain := sniffLen - len(w.sniff)
	if remain <= 0 {
		w.mimeDone = true
		w.mimeType = object.ResolveMimeType(w.opts.Type, w.path, w.sniff)
		return
	}
	if remain > len(p) {
		remain = len(p)
	}
	w.sniff = append(w.sniff, p[:remain]...)
}

// Write implements io.Writer, splitting p across part-file boundaries and
// feeding every new byte into the running MD5 hash.
func (w *WriteStream) Write(p []byte) (int, error) {
	return w.WriteContext(context.Background(), p)
}

// WriteContext is Write with an explicit context, used internally so
// every part-file operation can be canceled.
func (w *WriteStream) WriteContext(ctx context.Context, p []byte) (int, error) {
	if w.closed || w.aborted {
		if w.closedErr != nil {
			return 0, w.closedErr
		}
		return 0, object.NewInvariantViolation("write after close/abort")
	}
	if w.e.Closed() {
		err := object.NewEngineClosed()
		_ = w.Abort(ctx, err.Error())
		w.closedErr = err
		return 0, err
	}
	w.feedSniff(p)

	total := 0
	for len(p) > 0 {
		if err := w.ensureOpenPart(ctx); err != nil {
			return total, err
		}
		room := w.partSize - w.curPartSize
		n := int64(len(p))
		if n > room {
			n = room
		}
		chunk := p[:n]
		if _, err := w.cur.Write(chunk); err != nil {
			return total, object.NewFilesystemError(err)
		}
		if err := w.hash.Update(chunk); err != nil {
			return total, err
		}
		w.curPartSize += n
		w.size += n
		total += int(n)
		p = p[n:]

		if w.curPartSize == w.partSize {
			if err := w.closeCurrentPart(ctx); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// Close finalizes the stream: the in-progress part (if any) is closed,
// the row is committed to the catalog per the open mode's dispatch
// (§4.5), and any superseded entity is best-effort reclaimed. The
// engine's writer lock is released exactly once, here.
func (w *WriteStream) Close(ctx context.Context) (object.Object, error) {
	return w.closeImpl(ctx, true)
}

func (w *WriteStream) closeImpl(ctx context.Context, commit bool) (object.Object, error) {
	if w.closed || w.aborted {
		if w.closedErr != nil {
			return object.Object{}, w.closedErr
		}
		return object.Object{}, object.NewInvariantViolation("stream already finalized")
	}
	defer w.e.lock.Unlock()

	if commit && w.e.Closed() {
		w.abortCleanup(ctx)
		w.aborted = true
		err := object.NewEngineClosed()
		w.closedErr = err
		return object.Object{}, err
	}

	if !commit {
		w.abortCleanup(ctx)
		w.aborted = true
		return object.Object{}, nil
	}

	if err := w.closeCurrentPart(ctx); err != nil {
		w.abortCleanup(ctx)
		w.aborted = true
		return object.Object{}, err
	}

	if !w.mimeDone {
		w.mimeType = object.ResolveMimeType(w.opts.Type, w.path, w.sniff)
		w.mimeDone = true
	}

	digest, err := w.hash.Digest()
	if err != nil {
		w.abortCleanup(ctx)
		w.aborted = true
		return object.Object{}, object.NewInvariantViolation("hash digest failed: " + err.Error())
	}
	state := digest.State

	lastModified := nowMillis()
	if w.opts.Timestamp > 0 {
		lastModified = w.opts.Timestamp
	}

	objectID := w.existingID
	if objectID == "" {
		objectID = newEntityID()
	}

	row := object.Object{
		BucketName:     w.bucket,
		ObjectPath:     w.path,
		Size:           w.size,
		MimeType:       w.mimeType,
		Checksum:       digest.Value,
		NumParts:       w.numParts,
		PartSize:       w.partSize,
		CreatedAt:      w.createdAt,
		LastModifiedAt: lastModified,
		RecordType:     object.RecordCreate,
		ObjectTags:     w.opts.Tags,
		Description:    w.opts.Description,
		UserMetadata:   w.opts.UserMetadata,
		ObjectID:       objectID,
		EntityID:       w.entityID,
		MD5State:       state,
	}
	if err := object.ValidateSize(row.Size, row.NumParts, row.PartSize, w.limits); err != nil {
		w.abortCleanup(ctx)
		w.aborted = true
		return object.Object{}, err
	}

	var commitErr error
	switch w.mode {
	case object.ModeWrite:
		commitErr = w.e.catalog.Create(ctx, row)
	case object.ModeWriteExclusive, object.ModeAppendExcl:
		commitErr = w.e.catalog.CreateExclusive(ctx, row)
	case object.ModeAppend:
		// §4.5: dispatch on whether the caller supplied expect, not on
		// whether this append continued an existing row — a plain append
		// with no precondition is a last-writer-wins upsert even when a
		// catalog shared across engines saw the row change underneath it.
		if w.expect != nil {
			commitErr = w.e.catalog.UpdateExclusive(ctx, row, *w.expect)
		} else {
			commitErr = w.e.catalog.Create(ctx, row)
		}
	}

	if commitErr != nil {
		w.abortCleanup(ctx)
		w.aborted = true
		return object.Object{}, commitErr
	}

	if w.oldEntity != "" && w.oldEntity != w.entityID {
		if err := w.e.root.RemoveEntry(ctx, entityDirName(w.oldEntity), true); err != nil {
			w.e.log.WithContext(ctx, w.bucket, w.path, "openWrite").Warn("failed to reclaim superseded entity", "entity_id", w.oldEntity, "error", err)
		}
		w.e.cache.DelEntity(w.oldEntity, w.oldParts)
	}
	if !w.newEntity {
		// An append rewrote the tail part of this same entity in place.
		w.e.cache.DelEntity(w.entityID, w.numParts)
	}

	w.closed = true
	if w.e.metrics != nil {
		w.e.metrics.AddBytesWritten(w.size)
	}
	w.e.log.WithContext(ctx, w.bucket, w.path, "openWrite").Info("write stream committed", "size", w.size, "num_parts", w.numParts)
	return row, nil
}

// Abort discards every byte written this session. A brand-new entity is
// deleted outright; an append that resumed an existing, still-committed
// entity only has its newly-created tail parts removed, and its
// in-progress scratch file is dropped without ever touching the
// original committed tail part (the atomic-rename contract every
// storage adapter already gives Abort).
func (w *WriteStream) Abort(ctx context.Context, reason string) error {
	if w.closed || w.aborted {
		return nil
	}
	w.e.log.WithContext(ctx, w.bucket, w.path, "openWrite").Warn("write stream aborted", "reason", reason)
	_, err := w.closeImpl(ctx, false)
	if w.closedErr == nil {
		w.closedErr = object.NewInvalidInput(w.path, reason)
	}
	return err
}

func (w *WriteStream) abortCleanup(ctx context.Context) {
	if w.cur != nil {
		_ = w.cur.Abort(ctx)
		w.cur = nil
	}
	if w.newEntity {
		_ = w.e.root.RemoveEntry(ctx, entityDirName(w.entityID), true)
		return
	}
	for _, p := range w.newParts {
		_ = w.entityDir.RemoveEntry(ctx, partFileName(p), false)
	}
}

var _ storage.WritableFileStream = (*streamAdapter)(nil)

// streamAdapter lets a WriteStream satisfy storage.WritableFileStream
// for callers (e.g. the CLI) that want to treat object writes uniformly
// with raw part-file writes.
type streamAdapter struct {
	w *WriteStream
}

func (s *streamAdapter) Write(p []byte) (int, error) { return s.w.Write(p) }
func (s *streamAdapter) Close(ctx context.Context) error {
	_, err := s.w.Close(ctx)
	return err
}
func (s *streamAdapter) Abort(ctx context.Context) error {
	return s.w.Abort(ctx, "caller aborted")
}

// AsWritableFileStream adapts w to storage.WritableFileStream.
func (w *WriteStream) AsWritableFileStream() storage.WritableFileStream {
	return &streamAdapter{w: w}
}

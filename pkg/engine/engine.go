// Package engine implements the public object API §4.6 of the
// specification describes: putObject/getObject/deleteObject/
// headObject/listObjects/searchObjects/copyObject plus the openRead/
// openWrite stream factories, the per-engine lock, and lifecycle
// (open/close/closed). It is the top of the dependency order in §2 and
// owns every other collaborator (Hash, Catalog, storage adapter,
// ReadStream, WriteStream).
//
// Grounded on the teacher's pkg/metadata.MetadataService as the
// "service struct wrapping a pluggable store behind a lock manager"
// shape, generalized from its NFS/SMB file-handle domain to Omnio's
// bucket/object-path domain.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tai-kun/omnio-sub001/internal/logger"
	"github.com/tai-kun/omnio-sub001/internal/rwmutex"
	"github.com/tai-kun/omnio-sub001/internal/telemetry"
	"github.com/tai-kun/omnio-sub001/pkg/catalog"
	"github.com/tai-kun/omnio-sub001/pkg/object"
	"github.com/tai-kun/omnio-sub001/pkg/partcache"
	"github.com/tai-kun/omnio-sub001/pkg/storage"
)

// Config constructs an Engine. Bucket, Storage and Catalog are required;
// the rest have usable zero values.
type Config struct {
	Bucket          string
	Storage         storage.Adapter
	Catalog         catalog.Catalog
	Limits          object.Limits // zero value -> object.DefaultLimits()
	DefaultPartSize int64         // zero value -> 64 MiB, clamped to Limits
	Cache           *partcache.Cache
	Logger          *logger.Logger
	Metrics         *telemetry.Metrics
}

const defaultPartSize = 64 << 20 // 64 MiB

// Engine is the public object-storage API bound to one bucket. The zero
// value is not usable; construct with New, then call Open before any
// other method.
type Engine struct {
	bucket  string
	storage storage.Adapter
	catalog catalog.Catalog
	limits  object.Limits
	partSz  int64
	cache   *partcache.Cache
	log     *logger.Logger
	metrics *telemetry.Metrics

	lock rwmutex.FairRWMutex

	opened atomic.Bool
	closed atomic.Bool

	root storage.DirHandle
}

// New validates cfg and returns an unopened Engine.
func New(cfg Config) (*Engine, error) {
	if err := object.ValidateBucketName(cfg.Bucket, true); err != nil {
		return nil, err
	}
	if cfg.Storage == nil || cfg.Catalog == nil {
		return nil, object.NewInvalidInput(cfg.Bucket, "storage and catalog collaborators are required")
	}

	limits := cfg.Limits.Clamp()
	partSz := cfg.DefaultPartSize
	if partSz <= 0 {
		partSz = defaultPartSize
	}
	if partSz < limits.MinPartSize {
		partSz = limits.MinPartSize
	}
	if partSz > limits.MaxPartSize {
		partSz = limits.MaxPartSize
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	return &Engine{
		bucket:  cfg.Bucket,
		storage: cfg.Storage,
		catalog: cfg.Catalog,
		limits:  limits,
		partSz:  partSz,
		cache:   cfg.Cache,
		log:     log.With("bucket", cfg.Bucket),
		metrics: cfg.Metrics,
	}, nil
}

// Open runs catalog migrations under a writer lock and resolves the
// bucket's storage root, per §4.6. Calling Open twice is a no-op after
// the first migration.
func (e *Engine) Open(ctx context.Context) (err error) {
	if e.closed.Load() {
		return object.NewEngineClosed()
	}

	ctx, end := telemetry.StartSpan(ctx, "open")
	done := e.observeOp("open")
	defer func() { end(err); done(err) }()

	unlock := e.wlock()
	defer unlock()

	if e.opened.Load() {
		return nil
	}

	if err = e.catalog.Migrate(ctx); err != nil {
		return err
	}
	root, err := e.storage.BucketRoot(ctx, e.bucket, true)
	if err != nil {
		return err
	}

	e.root = root
	e.opened.Store(true)
	e.log.Info("engine opened")
	return nil
}

// Close tears down the catalog and storage collaborators. After Close,
// every operation raises EngineClosed. Close waits for the writer lock,
// so it cooperatively waits for any in-flight WriteStream/ReadStream to
// release it first (§5 cancellation guarantee).
func (e *Engine) Close(ctx context.Context) (firstErr error) {
	if e.closed.Swap(true) {
		return nil
	}

	_, end := telemetry.StartSpan(ctx, "close")
	done := e.observeOp("close")
	defer func() { end(firstErr); done(firstErr) }()

	unlock := e.wlock()
	defer unlock()

	if err := e.catalog.Close(); err != nil {
		firstErr = err
	}
	if err := e.storage.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if e.cache != nil {
		e.cache.Close()
	}
	e.log.Info("engine closed")
	return firstErr
}

// Closed reports whether Close has been called; it is true from the
// start of Close, before Close has finished tearing anything down.
func (e *Engine) Closed() bool {
	return e.closed.Load()
}

// observeOp starts a per-operation timer and returns a closer that
// records the operation's outcome against e.metrics (a no-op if metrics
// are disabled). Pair with telemetry.StartSpan for tracing; this is the
// Prometheus half of the same instrumentation point.
func (e *Engine) observeOp(op string) func(err error) {
	start := time.Now()
	return func(err error) {
		e.metrics.ObserveOp(op, time.Since(start).Seconds(), err == nil)
	}
}

// rlock acquires the reader side of the fair lock, recording how long
// the caller waited for it, and returns the matching unlock func.
func (e *Engine) rlock() func() {
	start := time.Now()
	e.lock.RLock()
	e.metrics.ObserveLockWait(time.Since(start).Seconds())
	return e.lock.RUnlock
}

// wlock is rlock's writer-side counterpart.
func (e *Engine) wlock() func() {
	start := time.Now()
	e.lock.Lock()
	e.metrics.ObserveLockWait(time.Since(start).Seconds())
	return e.lock.Unlock
}

func (e *Engine) checkOpen() error {
	if e.closed.Load() {
		return object.NewEngineClosed()
	}
	if !e.opened.Load() {
		return object.NewEngineNotOpen()
	}
	return nil
}

func newEntityID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func entityDirName(entityID string) string {
	return entityID
}

func partFileName(n int) string {
	return fmt.Sprintf("%d", n)
}

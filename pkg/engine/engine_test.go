package engine_test

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tai-kun/omnio-sub001/pkg/catalog"
	"github.com/tai-kun/omnio-sub001/pkg/catalog/memory"
	"github.com/tai-kun/omnio-sub001/pkg/engine"
	"github.com/tai-kun/omnio-sub001/pkg/object"
	"github.com/tai-kun/omnio-sub001/pkg/storage/memfs"
)

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func newTestEngine(t *testing.T, partSize int64) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Config{
		Bucket:          "test-bucket",
		Storage:         memfs.New(),
		Catalog:         memory.New(),
		DefaultPartSize: partSize,
		Limits:          object.DefaultLimits(),
	})
	require.NoError(t, err)
	require.NoError(t, e.Open(context.Background()))
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

// Scenario 1: basic create and fetch.
func TestPutThenGet(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 5*1024*1024)

	row, err := e.PutObject(ctx, "foo.txt", object.ModeWrite, []byte("foo"), engine.WriteOptions{})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", row.MimeType)
	assert.EqualValues(t, 3, row.Size)

	data, got, err := e.GetObject(ctx, "foo.txt")
	require.NoError(t, err)
	assert.Equal(t, "foo", string(data))
	assert.Equal(t, "text/plain", got.MimeType)
	assert.EqualValues(t, 3, got.Size)
	assert.Equal(t, md5Hex([]byte("foo")), got.Checksum)
}

// Round-trip across several sizes, including part-size boundaries.
func TestRoundTripSizes(t *testing.T) {
	const partSize = 5 * 1024 * 1024
	sizes := []int{0, 1, partSize - 1, partSize, partSize + 1, 5*partSize + 7}

	for _, sz := range sizes {
		sz := sz
		t.Run("", func(t *testing.T) {
			ctx := context.Background()
			e := newTestEngine(t, partSize)

			body := make([]byte, sz)
			for i := range body {
				body[i] = byte(i % 251)
			}

			row, err := e.PutObject(ctx, "blob.bin", object.ModeWrite, body, engine.WriteOptions{})
			require.NoError(t, err)
			assert.EqualValues(t, sz, row.Size)
			assert.Equal(t, md5Hex(body), row.Checksum)

			data, _, err := e.GetObject(ctx, "blob.bin")
			require.NoError(t, err)
			assert.Equal(t, body, data)
		})
	}
}

// Scenario 2: append across a part boundary.
func TestAppendAcrossPartBoundary(t *testing.T) {
	ctx := context.Background()
	const partSize = 5_000_000
	e := newTestEngine(t, partSize)

	first := make([]byte, 4_999_999)
	for i := range first {
		first[i] = byte(i)
	}
	_, err := e.PutObject(ctx, "x", object.ModeWrite, first, engine.WriteOptions{})
	require.NoError(t, err)

	second := []byte{1, 2, 3}
	row, err := e.PutObject(ctx, "x", object.ModeAppend, second, engine.WriteOptions{})
	require.NoError(t, err)

	want := append(append([]byte{}, first...), second...)
	assert.EqualValues(t, 2, row.NumParts)
	assert.EqualValues(t, len(want), row.Size)
	assert.Equal(t, md5Hex(want), row.Checksum)

	data, _, err := e.GetObject(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, want, data)
}

// Append equals a single write of the concatenation.
func TestAppendEqualsSingleWrite(t *testing.T) {
	ctx := context.Background()
	const partSize = 5 * 1024 * 1024
	e1 := newTestEngine(t, partSize)
	e2 := newTestEngine(t, partSize)

	a := []byte("hello, ")
	b := []byte("world!")

	_, err := e1.PutObject(ctx, "p", object.ModeWrite, a, engine.WriteOptions{})
	require.NoError(t, err)
	rowAppend, err := e1.PutObject(ctx, "p", object.ModeAppend, b, engine.WriteOptions{})
	require.NoError(t, err)

	rowSingle, err := e2.PutObject(ctx, "p", object.ModeWrite, append(append([]byte{}, a...), b...), engine.WriteOptions{})
	require.NoError(t, err)

	assert.Equal(t, rowSingle.Checksum, rowAppend.Checksum)
	assert.Equal(t, rowSingle.Size, rowAppend.Size)
	assert.Equal(t, rowSingle.NumParts, rowAppend.NumParts)
}

// Delete then wx succeeds; wx twice fails the second time.
func TestDeleteThenExclusiveCreate(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 5*1024*1024)

	_, err := e.PutObject(ctx, "d", object.ModeWrite, []byte("1"), engine.WriteOptions{})
	require.NoError(t, err)
	require.NoError(t, e.DeleteObject(ctx, "d"))

	_, err = e.PutObject(ctx, "d", object.ModeWriteExclusive, []byte("2"), engine.WriteOptions{})
	require.NoError(t, err)

	_, err = e.PutObject(ctx, "d", object.ModeWriteExclusive, []byte("3"), engine.WriteOptions{})
	require.Error(t, err)
	assert.True(t, object.Is(err, object.KindObjectExists))
}

// Scenario 3: exclusive create races — exactly one of N concurrent wx
// writers succeeds.
func TestExclusiveCreateRace(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 5*1024*1024)

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.PutObject(ctx, "race", object.ModeWriteExclusive, []byte{byte(i)}, engine.WriteOptions{})
			results[i] = err
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else {
			assert.True(t, object.Is(err, object.KindObjectExists))
		}
	}
	assert.Equal(t, 1, successes)

	data, _, err := e.GetObject(ctx, "race")
	require.NoError(t, err)
	require.Len(t, data, 1)
}

// Scenario 4: append compare-and-set — exactly one of N concurrent
// expect-gated appends succeeds.
func TestAppendCompareAndSetRace(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 5*1024*1024)

	base, err := e.PutObject(ctx, "cas", object.ModeWrite, []byte("base"), engine.WriteOptions{})
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.PutObject(ctx, "cas", object.ModeAppend, []byte{byte('a' + i)}, engine.WriteOptions{
				Expect: &catalog.Expect{Checksum: base.Checksum},
			})
			results[i] = err
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else {
			assert.True(t, object.Is(err, object.KindPreconditionFailed))
		}
	}
	assert.Equal(t, 1, successes)

	data, got, err := e.GetObject(ctx, "cas")
	require.NoError(t, err)
	assert.Len(t, data, 5) // "base" + one appended byte
	assert.EqualValues(t, 5, got.Size)
}

// A plain "a"-mode append with no caller-supplied Expect must be a
// last-writer-wins upsert (catalog.Create), never a compare-and-set
// gated on the checksum this stream happened to observe at open time —
// per §4.5, dispatch keys on whether the caller set Expect, not on
// whether the append continued an existing row. Exercises this by
// mutating the catalog directly between open and close, simulating a
// second Engine/process sharing the same catalog (a configuration the
// pluggable-catalog architecture supports) changing the row out from
// under this stream.
func TestAppendWithoutExpectIsPlainUpsert(t *testing.T) {
	ctx := context.Background()
	cat := memory.New()

	e, err := engine.New(engine.Config{
		Bucket:          "test-bucket",
		Storage:         memfs.New(),
		Catalog:         cat,
		DefaultPartSize: 5 * 1024 * 1024,
		Limits:          object.DefaultLimits(),
	})
	require.NoError(t, err)
	require.NoError(t, e.Open(ctx))
	t.Cleanup(func() { _ = e.Close(ctx) })

	base, err := e.PutObject(ctx, "shared", object.ModeWrite, []byte("base"), engine.WriteOptions{})
	require.NoError(t, err)

	w, err := e.OpenWrite(ctx, "shared", object.ModeAppend, engine.WriteOptions{})
	require.NoError(t, err)
	_, err = w.WriteContext(ctx, []byte("-more"))
	require.NoError(t, err)

	// Another writer changes the row's checksum (same entity, so this is a
	// metadata-only update, not a rotation) while w is still open.
	require.NoError(t, cat.Create(ctx, object.Object{
		BucketName:     base.BucketName,
		ObjectPath:     "shared",
		ObjectID:       base.ObjectID,
		EntityID:       base.EntityID,
		Size:           base.Size,
		NumParts:       base.NumParts,
		PartSize:       base.PartSize,
		Checksum:       "00000000000000000000000000000000",
		MimeType:       base.MimeType,
		CreatedAt:      base.CreatedAt,
		LastModifiedAt: base.LastModifiedAt,
		RecordType:     object.RecordCreate,
		MD5State:       base.MD5State,
	}))

	row, err := w.Close(ctx)
	require.NoError(t, err, "append with no Expect must upsert rather than fail PreconditionFailed")
	assert.Equal(t, md5Hex([]byte("base-more")), row.Checksum)

	data, _, err := e.GetObject(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, "base-more", string(data))
}

// Scenario 5: abort rollback.
func TestAbortRollback(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 1024*1024)

	w, err := e.OpenWrite(ctx, "y", object.ModeWrite, engine.WriteOptions{})
	require.NoError(t, err)
	_, err = w.WriteContext(ctx, make([]byte, 1024*1024))
	require.NoError(t, err)
	require.NoError(t, w.Abort(ctx, "test abort"))

	_, _, err = e.GetObject(ctx, "y")
	require.Error(t, err)
	assert.True(t, object.Is(err, object.KindObjectNotFound))

	swept, err := e.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Empty(t, swept, "aborted writes must not leave an orphan entity")
}

// Aborting a write to a path that already had committed bytes must leave
// the prior bytes readable.
func TestAbortRollbackPreservesPriorContent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 1024*1024)

	_, err := e.PutObject(ctx, "z", object.ModeWrite, []byte("original"), engine.WriteOptions{})
	require.NoError(t, err)

	w, err := e.OpenWrite(ctx, "z", object.ModeWrite, engine.WriteOptions{})
	require.NoError(t, err)
	_, err = w.WriteContext(ctx, []byte("replacement"))
	require.NoError(t, err)
	require.NoError(t, w.Abort(ctx, "test abort"))

	data, _, err := e.GetObject(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

// Scenario 6: checksum tamper detection.
func TestChecksumMismatchOnTamper(t *testing.T) {
	ctx := context.Background()
	adapter := memfs.New()
	e, err := engine.New(engine.Config{
		Bucket:          "test-bucket",
		Storage:         adapter,
		Catalog:         memory.New(),
		DefaultPartSize: 5 * 1024 * 1024,
	})
	require.NoError(t, err)
	require.NoError(t, e.Open(ctx))
	defer e.Close(ctx)

	row, err := e.PutObject(ctx, "tamper", object.ModeWrite, []byte("hello world"), engine.WriteOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, row.NumParts)

	root, err := adapter.BucketRoot(ctx, "test-bucket", false)
	require.NoError(t, err)
	dir, err := root.GetDirectoryHandle(ctx, row.EntityID, false)
	require.NoError(t, err)
	fh, err := dir.GetFileHandle(ctx, "1", false)
	require.NoError(t, err)
	wf, err := fh.CreateWritable(ctx, false)
	require.NoError(t, err)
	_, err = wf.Write([]byte("corrupted!!!"))
	require.NoError(t, err)
	require.NoError(t, wf.Close(ctx))

	_, _, err = e.GetObject(ctx, "tamper")
	require.Error(t, err)
	assert.True(t, object.Is(err, object.KindChecksumMismatch))
}

// Boundary: a tag set with 20 entries is accepted, 21 is rejected.
func TestTagCountBoundary(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 5*1024*1024)

	tags20 := make(object.Tags, 20)
	for i := range tags20 {
		tags20[i] = string(rune('a' + i))
	}
	_, err := e.PutObject(ctx, "tags20", object.ModeWrite, []byte("x"), engine.WriteOptions{Tags: tags20})
	require.NoError(t, err)

	tags21 := append(append(object.Tags{}, tags20...), "extra")
	_, err = e.PutObject(ctx, "tags21", object.ModeWrite, []byte("x"), engine.WriteOptions{Tags: tags21})
	require.Error(t, err)
	assert.True(t, object.Is(err, object.KindInvalidInput))
}

// pathOfLength builds a '/'-separated object path of exactly n bytes, with
// every segment kept within the 255-byte entry-name ceiling.
func pathOfLength(n int) string {
	const segLen = 200
	var b strings.Builder
	for b.Len() < n {
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		remain := n - b.Len()
		take := segLen
		if take > remain {
			take = remain
		}
		b.WriteString(strings.Repeat("a", take))
	}
	return b.String()
}

// Boundary: object path exactly 1024 bytes is accepted, 1025 is rejected.
func TestObjectPathLengthBoundary(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 5*1024*1024)

	ok := pathOfLength(1024)
	require.Len(t, ok, 1024)
	_, err := e.PutObject(ctx, ok, object.ModeWrite, []byte("x"), engine.WriteOptions{})
	require.NoError(t, err)

	tooLong := pathOfLength(1025)
	require.Len(t, tooLong, 1025)
	_, err = e.PutObject(ctx, tooLong, object.ModeWrite, []byte("x"), engine.WriteOptions{})
	require.Error(t, err)
	assert.True(t, object.Is(err, object.KindInvalidInput))
}

func TestHeadObjectWithoutBody(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 5*1024*1024)

	_, err := e.PutObject(ctx, "h", object.ModeWrite, []byte("payload"), engine.WriteOptions{
		Description: "a description",
	})
	require.NoError(t, err)

	row, err := e.HeadObject(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, "a description", row.Description)
	assert.EqualValues(t, 7, row.Size)
}

func TestDeleteObjectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 5*1024*1024)

	require.NoError(t, e.DeleteObject(ctx, "never-existed"))

	_, err := e.PutObject(ctx, "gone", object.ModeWrite, []byte("x"), engine.WriteOptions{})
	require.NoError(t, err)
	require.NoError(t, e.DeleteObject(ctx, "gone"))
	require.NoError(t, e.DeleteObject(ctx, "gone")) // second delete is a no-op

	_, _, err = e.GetObject(ctx, "gone")
	assert.True(t, object.Is(err, object.KindObjectNotFound))
}

func TestListObjects(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 5*1024*1024)

	for _, p := range []string{"dir/a.txt", "dir/b.txt", "dir/sub/c.txt", "other.txt"} {
		_, err := e.PutObject(ctx, p, object.ModeWrite, []byte(p), engine.WriteOptions{})
		require.NoError(t, err)
	}

	var nonRecursive []string
	err := e.ListObjects(ctx, "dir", catalog.ListOptions{}, func(o object.Object) error {
		nonRecursive = append(nonRecursive, o.ObjectPath)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dir/a.txt", "dir/b.txt"}, nonRecursive)

	var recursive []string
	err = e.ListObjects(ctx, "dir", catalog.ListOptions{Recursive: true}, func(o object.Object) error {
		recursive = append(recursive, o.ObjectPath)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dir/a.txt", "dir/b.txt", "dir/sub/c.txt"}, recursive)
}

func TestSearchObjects(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 5*1024*1024)

	_, err := e.PutObject(ctx, "notes/report.txt", object.ModeWrite, []byte("x"), engine.WriteOptions{
		Description: "quarterly revenue report",
	})
	require.NoError(t, err)
	_, err = e.PutObject(ctx, "notes/todo.txt", object.ModeWrite, []byte("x"), engine.WriteOptions{
		Description: "grocery list",
	})
	require.NoError(t, err)

	var hits []string
	err = e.SearchObjects(ctx, "notes", "revenue", catalog.SearchOptions{Recursive: true}, func(r catalog.SearchResult) error {
		hits = append(hits, r.Object.ObjectPath)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"notes/report.txt"}, hits)
}

func TestCopyObjectDuplicatesEntity(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 5*1024*1024)

	src, err := e.PutObject(ctx, "src", object.ModeWrite, []byte("copy me"), engine.WriteOptions{})
	require.NoError(t, err)

	dst, err := e.CopyObject(ctx, "src", "dst", engine.WriteOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, src.EntityID, dst.EntityID)
	assert.Equal(t, src.Checksum, dst.Checksum)

	// Mutating src afterwards must not affect dst's bytes.
	_, err = e.PutObject(ctx, "src", object.ModeWrite, []byte("mutated"), engine.WriteOptions{})
	require.NoError(t, err)

	data, _, err := e.GetObject(ctx, "dst")
	require.NoError(t, err)
	assert.Equal(t, "copy me", string(data))
}

func TestSweepOrphansRemovesUnreferencedEntities(t *testing.T) {
	ctx := context.Background()
	adapter := memfs.New()
	e, err := engine.New(engine.Config{
		Bucket:  "test-bucket",
		Storage: adapter,
		Catalog: memory.New(),
	})
	require.NoError(t, err)
	require.NoError(t, e.Open(ctx))
	defer e.Close(ctx)

	root, err := adapter.BucketRoot(ctx, "test-bucket", true)
	require.NoError(t, err)
	_, err = root.GetDirectoryHandle(ctx, "orphan-entity", true)
	require.NoError(t, err)

	_, err = e.PutObject(ctx, "live", object.ModeWrite, []byte("x"), engine.WriteOptions{})
	require.NoError(t, err)

	swept, err := e.SweepOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan-entity"}, swept)

	// The live object must still be readable after the sweep.
	data, _, err := e.GetObject(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestOperationsRequireOpenEngine(t *testing.T) {
	ctx := context.Background()
	e, err := engine.New(engine.Config{
		Bucket:  "test-bucket",
		Storage: memfs.New(),
		Catalog: memory.New(),
	})
	require.NoError(t, err)

	_, err = e.HeadObject(ctx, "x")
	require.Error(t, err)
	assert.True(t, object.Is(err, object.KindEngineNotOpen))
}

func TestOperationsFailAfterClose(t *testing.T) {
	ctx := context.Background()
	e, err := engine.New(engine.Config{
		Bucket:  "test-bucket",
		Storage: memfs.New(),
		Catalog: memory.New(),
	})
	require.NoError(t, err)
	require.NoError(t, e.Open(ctx))
	require.NoError(t, e.Close(ctx))
	assert.True(t, e.Closed())

	_, err = e.HeadObject(ctx, "x")
	require.Error(t, err)
	assert.True(t, object.Is(err, object.KindEngineClosed))
}

func TestOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e, err := engine.New(engine.Config{
		Bucket:  "test-bucket",
		Storage: memfs.New(),
		Catalog: memory.New(),
	})
	require.NoError(t, err)
	require.NoError(t, e.Open(ctx))
	require.NoError(t, e.Open(ctx))
}

func TestReadStreamAbandonedMidSequenceReleasesLock(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 1)

	_, err := e.PutObject(ctx, "multi", object.ModeWrite, []byte("abc"), engine.WriteOptions{})
	require.NoError(t, err)

	r, err := e.OpenRead(ctx, "multi")
	require.NoError(t, err)
	_, err = r.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Close()) // abandon before io.EOF

	// The writer lock must be free: a subsequent write must not deadlock.
	done := make(chan struct{})
	go func() {
		_, _ = e.PutObject(ctx, "multi2", object.ModeWrite, []byte("z"), engine.WriteOptions{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write after abandoned read deadlocked")
	}
}

func TestReadStreamDrainsToEOF(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, 1024)

	body := make([]byte, 4096)
	for i := range body {
		body[i] = byte(i)
	}
	_, err := e.PutObject(ctx, "drain", object.ModeWrite, body, engine.WriteOptions{})
	require.NoError(t, err)

	r, err := e.OpenRead(ctx, "drain")
	require.NoError(t, err)
	var got []byte
	for {
		chunk, err := r.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, chunk...)
	}
	assert.Equal(t, body, got)
}

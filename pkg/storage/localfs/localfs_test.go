package localfs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tai-kun/omnio-sub001/pkg/storage/localfs"
)

func newAdapter(t *testing.T) *localfs.Adapter {
	t.Helper()
	a, err := localfs.New(localfs.Config{BasePath: t.TempDir()})
	require.NoError(t, err)
	return a
}

func TestWriteRenamesScratchOnClose(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t)

	root, err := a.BucketRoot(ctx, "bucket1", true)
	require.NoError(t, err)

	entity, err := root.GetDirectoryHandle(ctx, "entity-a", true)
	require.NoError(t, err)

	fh, err := entity.GetFileHandle(ctx, "0000000001", true)
	require.NoError(t, err)

	w, err := fh.CreateWritable(ctx, false)
	require.NoError(t, err)
	_, err = w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	src, err := fh.GetFile(ctx)
	require.NoError(t, err)
	data, err := src.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestAbortRemovesScratchNotTarget(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t)
	root, err := a.BucketRoot(ctx, "bucket1", true)
	require.NoError(t, err)
	fh, err := root.GetFileHandle(ctx, "0000000001", true)
	require.NoError(t, err)

	w1, err := fh.CreateWritable(ctx, false)
	require.NoError(t, err)
	_, _ = w1.Write([]byte("v1"))
	require.NoError(t, w1.Close(ctx))

	w2, err := fh.CreateWritable(ctx, false)
	require.NoError(t, err)
	_, _ = w2.Write([]byte("v2-partial"))
	require.NoError(t, w2.Abort(ctx))

	src, err := fh.GetFile(ctx)
	require.NoError(t, err)
	data, err := src.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestKeepExistingDataPreCopiesScratch(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t)
	root, err := a.BucketRoot(ctx, "bucket1", true)
	require.NoError(t, err)
	fh, err := root.GetFileHandle(ctx, "0000000001", true)
	require.NoError(t, err)

	w1, err := fh.CreateWritable(ctx, false)
	require.NoError(t, err)
	_, _ = w1.Write([]byte("abc"))
	require.NoError(t, w1.Close(ctx))

	w2, err := fh.CreateWritable(ctx, true)
	require.NoError(t, err)
	_, _ = w2.Write([]byte("def"))
	require.NoError(t, w2.Close(ctx))

	src, err := fh.GetFile(ctx)
	require.NoError(t, err)
	data, err := src.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(data))
}

func TestGetFileHandleMissingWithoutCreate(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t)
	root, err := a.BucketRoot(ctx, "bucket1", true)
	require.NoError(t, err)

	_, err = root.GetFileHandle(ctx, "missing", false)
	assert.Error(t, err)
}

func TestBucketRootWithoutCreateMissing(t *testing.T) {
	ctx := context.Background()
	a := newAdapter(t)
	_, err := a.BucketRoot(ctx, "does-not-exist", false)
	assert.Error(t, err)
}

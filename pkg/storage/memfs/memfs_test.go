package memfs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tai-kun/omnio-sub001/pkg/storage/memfs"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	adapter := memfs.New()

	root, err := adapter.BucketRoot(ctx, "b1", true)
	require.NoError(t, err)

	fh, err := root.GetFileHandle(ctx, "0000000001", true)
	require.NoError(t, err)

	w, err := fh.CreateWritable(ctx, false)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	src, err := fh.GetFile(ctx)
	require.NoError(t, err)
	data, err := src.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	size, err := src.Size(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)
}

func TestAbortDiscardsScratch(t *testing.T) {
	ctx := context.Background()
	adapter := memfs.New()
	root, err := adapter.BucketRoot(ctx, "b1", true)
	require.NoError(t, err)

	fh, err := root.GetFileHandle(ctx, "part", true)
	require.NoError(t, err)
	w, err := fh.CreateWritable(ctx, false)
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Abort(ctx))

	_, err = fh.GetFile(ctx)
	assert.Error(t, err)
}

func TestKeepExistingDataAppendsOnClose(t *testing.T) {
	ctx := context.Background()
	adapter := memfs.New()
	root, err := adapter.BucketRoot(ctx, "b1", true)
	require.NoError(t, err)

	fh, err := root.GetFileHandle(ctx, "part", true)
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

func TestListEntriesAndRemove(t *testing.T) {
	ctx := context.Background()
	adapter := memfs.New()
	root, err := adapter.BucketRoot(ctx, "b1", true)
	require.NoError(t, err)

	entity, err := root.GetDirectoryHandle(ctx, "entity-1", true)
	require.NoError(t, err)
	fh, err := entity.GetFileHandle(ctx, "0000000001", true)
	require.NoError(t, err)
	w, err := fh.CreateWritable(ctx, false)
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	names, err := entity.ListEntries(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "0000000001")

	require.NoError(t, root.RemoveEntry(ctx, "entity-1", true))
	_, err = root.GetDirectoryHandle(ctx, "entity-1", false)
	assert.Error(t, err)
}

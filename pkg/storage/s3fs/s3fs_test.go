package s3fs_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tai-kun/omnio-sub001/pkg/storage/s3fs"
)

// fakeClient is an in-memory stand-in for s3fs.Client, grounded on the
// teacher's pattern of testing S3 stores against a narrowed interface
// rather than a real network client.
type fakeClient struct {
	objects map[string][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: make(map[string][]byte)}
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data)), ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeClient) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	// CopySource encodes "bucket/key"; tests only use a single bucket.
	src := aws.ToString(in.CopySource)
	for i := 0; i < len(src); i++ {
		if src[i] == '/' {
			src = src[i+1:]
			break
		}
	}
	data, ok := f.objects[src]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	out := &s3.ListObjectsV2Output{}
	seen := map[string]bool{}
	for key := range f.objects {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		rest := key[len(prefix):]
		if in.Delimiter != nil {
			if idx := indexByte(rest, '/'); idx >= 0 {
				cp := prefix + rest[:idx+1]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (f *fakeClient) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	adapter := s3fs.New(client, "bucket", s3fs.Config{KeyPrefix: "omnio"})

	root, err := adapter.BucketRoot(ctx, "b1", true)
	require.NoError(t, err)
	entity, err := root.GetDirectoryHandle(ctx, "entity-1", true)
	require.NoError(t, err)
	fh, err := entity.GetFileHandle(ctx, "0000000001", true)
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

	// scratch key must not remain after commit
	_, hasScratch := client.objects["omnio/b1/storage/entity-1/0000000001.crswap"]
	assert.False(t, hasScratch)
}

func TestKeepExistingDataAppends(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	adapter := s3fs.New(client, "bucket", s3fs.Config{})

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

func TestListEntriesWithDelimiter(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	adapter := s3fs.New(client, "bucket", s3fs.Config{})

	root, err := adapter.BucketRoot(ctx, "b1", true)
	require.NoError(t, err)
	entity, err := root.GetDirectoryHandle(ctx, "entity-1", true)
	require.NoError(t, err)
	fh, err := entity.GetFileHandle(ctx, "0000000001", true)
	require.NoError(t, err)
	w, err := fh.CreateWritable(ctx, false)
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	names, err := root.ListEntries(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "entity-1")
}

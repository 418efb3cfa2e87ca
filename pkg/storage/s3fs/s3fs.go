// Package s3fs implements storage.Adapter against Amazon S3 (or an
// S3-compatible endpoint), grounded on the teacher's
// pkg/payload/store/s3.Store and pkg/store/content/s3 packages: an
// aws-sdk-go-v2 client, a bucket/key-prefix pair, and the same
// scratch-key-then-copy rename emulation the teacher's S3 content store
// uses for resumable writes, since S3 has no native directory rename.
package s3fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tai-kun/omnio-sub001/pkg/object"
	"github.com/tai-kun/omnio-sub001/pkg/storage"
)

// Client is the subset of *s3.Client the adapter depends on, narrowed for
// testability the way the teacher's s3 store packages accept an
// interface rather than a concrete client.
type Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, opts ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Config configures an Adapter.
type Config struct {
	// KeyPrefix is prepended to every key this adapter touches, mirroring
	// the teacher's Config.KeyPrefix on pkg/payload/store/s3.Store.
	KeyPrefix string
}

// Adapter is an S3-backed storage.Adapter. One Adapter serves all
// buckets Omnio manages, distinguishing them by key prefix
// (<KeyPrefix>/<bucket>/storage/...), since a single underlying S3
// bucket is the common deployment shape.
type Adapter struct {
	client Client
	bucket string
	prefix string
}

// New builds an s3fs Adapter against an existing client and S3 bucket
// name.
func New(client Client, s3Bucket string, cfg Config) *Adapter {
	return &Adapter{client: client, bucket: s3Bucket, prefix: strings.Trim(cfg.KeyPrefix, "/")}
}

func (a *Adapter) BucketRoot(_ context.Context, bucket string, _ bool) (storage.DirHandle, error) {
	root := joinKey(a.prefix, bucket, "storage")
	return &dirHandle{client: a.client, s3Bucket: a.bucket, prefix: root}, nil
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		return object.NewFilesystemError(err)
	}
	return nil
}

func (a *Adapter) Close() error { return nil }

func joinKey(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, "/")
}

type dirHandle struct {
	client   Client
	s3Bucket string
	prefix   string
}

func (d *dirHandle) GetFileHandle(_ context.Context, name string, _ bool) (storage.FileHandle, error) {
	return &fileHandle{client: d.client, s3Bucket: d.s3Bucket, key: joinKey(d.prefix, name)}, nil
}

func (d *dirHandle) GetDirectoryHandle(_ context.Context, name string, _ bool) (storage.DirHandle, error) {
	return &dirHandle{client: d.client, s3Bucket: d.s3Bucket, prefix: joinKey(d.prefix, name)}, nil
}

func (d *dirHandle) RemoveEntry(ctx context.Context, name string, recursive bool) error {
	key := joinKey(d.prefix, name)
	if !recursive {
		_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(d.s3Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return object.NewFilesystemError(err)
		}
		return nil
	}

	prefix := key + "/"
	out, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.s3Bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return object.NewFilesystemError(err)
	}
	for _, obj := range out.Contents {
		if _, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(d.s3Bucket),
			Key:    obj.Key,
		}); err != nil {
			return object.NewFilesystemError(err)
		}
	}
	return nil
}

func (d *dirHandle) ListEntries(ctx context.Context) ([]string, error) {
	prefix := d.prefix + "/"
	out, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(d.s3Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	if err != nil {
		return nil, object.NewFilesystemError(err)
	}

	names := make([]string, 0, len(out.Contents)+len(out.CommonPrefixes))
	for _, obj := range out.Contents {
		names = append(names, strings.TrimPrefix(aws.ToString(obj.Key), prefix))
	}
	for _, cp := range out.CommonPrefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
		names = append(names, name)
	}
	return names, nil
}

type fileHandle struct {
	client   Client
	s3Bucket string
	key      string
}

func (f *fileHandle) GetFile(ctx context.Context) (storage.ByteSource, error) {
	out, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.s3Bucket),
		Key:    aws.String(f.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, object.NewEntryPathNotFound(f.key)
		}
		return nil, object.NewFilesystemError(err)
	}
	return &byteSource{client: f.client, s3Bucket: f.s3Bucket, key: f.key, size: aws.ToInt64(out.ContentLength)}, nil
}

// CreateWritable buffers writes in memory and lands them at the target
// key's scratch-suffixed sibling via PutObject, exactly mirroring the
// local/in-memory adapters' scratch-then-commit shape even though S3
// itself doesn't need a real rename: Close copies scratch to the target
// key and deletes the scratch object, giving the same all-or-nothing
// visibility guarantee as the atomic-rename adapters.
func (f *fileHandle) CreateWritable(ctx context.Context, keepExistingData bool) (storage.WritableFileStream, error) {
	var buf bytes.Buffer
	if keepExistingData {
		out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(f.s3Bucket),
			Key:    aws.String(f.key),
		})
		if err == nil {
			defer out.Body.Close()
			if _, err := io.Copy(&buf, out.Body); err != nil {
				return nil, object.NewFilesystemError(err)
			}
		} else if !isNotFound(err) {
			return nil, object.NewFilesystemError(err)
		}
	}
	return &writable{client: f.client, s3Bucket: f.s3Bucket, targetKey: f.key, scratchKey: f.key + object.ScratchSuffix, buf: buf}, nil
}

type byteSource struct {
	client   Client
	s3Bucket string
	key      string
	size     int64
}

func (b *byteSource) ReadAll(ctx context.Context) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.s3Bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, object.NewEntryPathNotFound(b.key)
		}
		return nil, object.NewFilesystemError(err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, object.NewFilesystemError(err)
	}
	return data, nil
}

func (b *byteSource) Size(_ context.Context) (int64, error) {
	return b.size, nil
}

type writable struct {
	client     Client
	s3Bucket   string
	targetKey  string
	scratchKey string
	buf        bytes.Buffer
	closed     bool
}

func (w *writable) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *writable) Close(ctx context.Context) error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.s3Bucket),
		Key:    aws.String(w.scratchKey),
		Body:   bytes.NewReader(w.buf.Bytes()),
	}); err != nil {
		return object.NewFilesystemError(err)
	}

	copySource := w.s3Bucket + "/" + w.scratchKey
	if _, err := w.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(w.s3Bucket),
		Key:        aws.String(w.targetKey),
		CopySource: aws.String(copySource),
	}); err != nil {
		return object.NewFilesystemError(err)
	}

	_, _ = w.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(w.s3Bucket),
		Key:    aws.String(w.scratchKey),
	})
	return nil
}

func (w *writable) Abort(_ context.Context) error {
	w.closed = true
	w.buf.Reset()
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

var _ storage.Adapter = (*Adapter)(nil)

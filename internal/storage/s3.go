package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3 implements Backend on any S3-compatible object store (MinIO, AWS S3,
// or a managed blob store exposing an S3 gateway). Switching providers is a
// matter of changing STORAGE_ENDPOINT and credentials, not code.
type S3 struct {
	client *minio.Client
	bucket string
}

// NewS3 creates the MinIO client. Bucket existence is checked in Login so
// that startup failures surface as ErrConnection, not construction errors.
func NewS3(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*S3, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3{client: client, bucket: bucket}, nil
}

// Login verifies the bucket exists, creating it when absent. Idempotent.
func (s *S3) Login(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("%w: check bucket %q: %v", ErrConnection, s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("%w: create bucket %q: %v", ErrConnection, s.bucket, err)
		}
	}
	return nil
}

// List enumerates every object in the bucket.
func (s *S3) List(ctx context.Context) ([]ObjectStat, error) {
	var stats []ObjectStat
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list bucket %q: %w", s.bucket, obj.Err)
		}
		stats = append(stats, ObjectStat{
			Filename:     obj.Key,
			Basename:     obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         obj.ETag,
		})
	}
	return stats, nil
}

// Put streams r to the bucket under name, overwriting any existing object.
func (s *S3) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("%w: put object %q: %v", ErrWrite, name, err)
	}
	return nil
}

// Get returns a stream of the object. Range requests are forwarded to the
// store when given; the stream errors with ErrNotFound on a missing key.
func (s *S3) Get(ctx context.Context, name string, rng *ByteRange) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if rng != nil {
		if err := opts.SetRange(rng.Start, rng.End); err != nil {
			return nil, fmt.Errorf("set range for %q: %w", name, err)
		}
	}

	obj, err := s.client.GetObject(ctx, s.bucket, name, opts)
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", name, err)
	}

	// GetObject is lazy: a missing key only surfaces on first read or Stat.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("stat object %q: %w", name, err)
	}
	return obj, nil
}

// Remove deletes the object. MinIO treats removing a missing key as success,
// which matches the contract.
func (s *S3) Remove(ctx context.Context, name string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", name, err)
	}
	return nil
}

// Exists reports whether the key is present. Best-effort: any error reads as absent.
func (s *S3) Exists(ctx context.Context, name string) bool {
	_, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	return err == nil
}

// Stat returns object metadata, or nil when missing or unreadable.
func (s *S3) Stat(ctx context.Context, name string) *ObjectStat {
	info, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		return nil
	}
	return &ObjectStat{
		Filename:     info.Key,
		Basename:     info.Key,
		Size:         info.Size,
		LastModified: info.LastModified,
		ETag:         info.ETag,
	}
}

// isNoSuchKey checks the minio error response for a missing-key code.
func isNoSuchKey(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey"
	}
	return false
}

var _ Backend = (*S3)(nil)

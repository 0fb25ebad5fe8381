package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"talentvault/internal/config"
)

// ErrNotFound indicates the requested object does not exist in the bucket.
var ErrNotFound = errors.New("object not found")

// ObjectMeta describes the key attributes of an object in a bucket.
type ObjectMeta struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the object storage surface the sync and backup engines depend on.
// *Client implements it against MinIO/S3; tests use Memory.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Stat(ctx context.Context, bucket, key string) (ObjectMeta, error)
	List(ctx context.Context, bucket, prefix string) ([]ObjectMeta, error)
	Delete(ctx context.Context, bucket, key string) error
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
}

// Client wraps a MinIO client with bucket-parameterised helpers.
type Client struct {
	mc *minio.Client
}

// NewClient initialises the MinIO client and ensures the given buckets exist.
func NewClient(cfg config.BlobConfig, buckets ...string) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	client := &Client{mc: mc}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.OpTimeout)
	defer cancel()

	for _, bucket := range buckets {
		exists, err := mc.BucketExists(ctx, bucket)
		if err != nil {
			return nil, fmt.Errorf("check bucket %q: %w", bucket, err)
		}
		if !exists {
			if !cfg.AutoCreateBucket {
				return nil, fmt.Errorf("bucket %q does not exist (auto create disabled)", bucket)
			}
			if err := mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
				return nil, fmt.Errorf("make bucket %q: %w", bucket, err)
			}
		}
	}

	return client, nil
}

// Put uploads an object, overwriting any existing content under the key.
func (c *Client) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := c.mc.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// Get reads the full content of an object. Returns ErrNotFound for missing keys.
func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("get object %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("read object %q: %w", key, err)
	}
	return data, nil
}

// Exists reports whether the object is present in the bucket.
func (c *Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.mc.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object %q: %w", key, err)
	}
	return true, nil
}

// Stat returns object metadata. Returns ErrNotFound for missing keys.
func (c *Client) Stat(ctx context.Context, bucket, key string) (ObjectMeta, error) {
	info, err := c.mc.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return ObjectMeta{}, fmt.Errorf("stat object %q: %w", key, ErrNotFound)
		}
		return ObjectMeta{}, fmt.Errorf("stat object %q: %w", key, err)
	}
	return ObjectMeta{Key: info.Key, Size: info.Size, LastModified: info.LastModified}, nil
}

// List enumerates object metadata under the prefix, sorted by key.
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]ObjectMeta, error) {
	objCh := c.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	result := make([]ObjectMeta, 0, 32)
	for object := range objCh {
		if object.Err != nil {
			return nil, fmt.Errorf("list objects under %q: %w", prefix, object.Err)
		}
		result = append(result, ObjectMeta{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Delete removes an object. A missing object is treated as success (idempotent).
func (c *Client) Delete(ctx context.Context, bucket, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	if err := c.mc.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// Copy performs a server-side copy between keys, possibly across buckets.
func (c *Client) Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error {
	src := minio.CopySrcOptions{Bucket: srcBucket, Object: srcKey}
	dst := minio.CopyDestOptions{Bucket: dstBucket, Object: dstKey}
	if _, err := c.mc.CopyObject(ctx, dst, src); err != nil {
		if isNoSuchKey(err) {
			return fmt.Errorf("copy object %q: %w", srcKey, ErrNotFound)
		}
		return fmt.Errorf("copy object %q to %q: %w", srcKey, dstKey, err)
	}
	return nil
}

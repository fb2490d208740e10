package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"taxdocs/internal/config"
)

// minioStorage implements Storage on an S3-compatible bucket (MinIO, AWS S3, etc.).
// The owner partition is the key prefix "<owner>/".
// It is safe for concurrent use by multiple goroutines.
type minioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIO creates a new S3-compatible storage client backed by MinIO.
// It validates connectivity and ensures the bucket exists (creates it if missing).
func NewMinIO(cfg config.MinIOConfig) (Storage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &minioStorage{client: cli, bucket: cfg.Bucket}, nil
}

func objectKey(owner, name string) (string, error) {
	if err := checkKey(owner, name); err != nil {
		return "", err
	}
	return owner + "/" + name, nil
}

// Put uploads an object using streaming I/O only.
// S3 has no conditional create here, so the existence check and the upload
// are two calls; the timestamped names keep the window harmless in practice.
func (m *minioStorage) Put(ctx context.Context, owner, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	key, err := objectKey(owner, name)
	if err != nil {
		return ObjectInfo{}, err
	}

	exists, err := m.Exists(ctx, owner, name)
	if err != nil {
		return ObjectInfo{}, err
	}
	if exists {
		return ObjectInfo{}, ErrAlreadyExists
	}

	size := opt.Size
	if size == 0 {
		size = -1
	}
	info, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  opt.ContentType,
		UserMetadata: opt.Metadata,
	})
	if err != nil {
		return ObjectInfo{}, mapMinIOError("put object", err)
	}
	return ObjectInfo{
		Owner:        owner,
		Name:         name,
		Size:         info.Size,
		ETag:         info.ETag,
		ContentType:  opt.ContentType,
		LastModified: time.Now().UTC(), // PutObject does not report LastModified
		Metadata:     opt.Metadata,
	}, nil
}

// Get downloads an object content as a ReadCloser along with basic info.
func (m *minioStorage) Get(ctx context.Context, owner, name string) (io.ReadCloser, ObjectInfo, error) {
	key, err := objectKey(owner, name)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, mapMinIOError("get object", err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, ObjectInfo{}, mapMinIOError("stat object", err)
	}
	return obj, ObjectInfo{
		Owner:        owner,
		Name:         name,
		Size:         st.Size,
		ETag:         st.ETag,
		ContentType:  st.ContentType,
		LastModified: st.LastModified,
		Metadata:     st.UserMetadata,
	}, nil
}

// Delete removes an object. RemoveObject succeeds on missing keys, so the
// object is stat'ed first to report ErrNotFound.
func (m *minioStorage) Delete(ctx context.Context, owner, name string) error {
	key, err := objectKey(owner, name)
	if err != nil {
		return err
	}
	exists, err := m.Exists(ctx, owner, name)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return mapMinIOError("remove object", err)
	}
	return nil
}

func (m *minioStorage) Exists(ctx context.Context, owner, name string) (bool, error) {
	key, err := objectKey(owner, name)
	if err != nil {
		return false, err
	}
	_, err = m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, mapMinIOError("stat object", err)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

func mapMinIOError(op string, err error) error {
	if isNotFound(err) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %s: %v", ErrIOFailure, op, err)
}

package blob

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/scout/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const minioScheme = "minio://"

// MinioStore keeps uploads in an S3-compatible bucket. Handles have the form
// minio://<bucket>/<owner>/<unixMillis>_<name>.
type MinioStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
	now    func() time.Time
}

// NewMinioStore connects to the endpoint and creates the bucket when missing.
func NewMinioStore(ctx context.Context, cfg *config.MinioConfig, logger *zap.Logger) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("Created upload bucket", zap.String("bucket", cfg.Bucket))
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, logger: logger, now: time.Now}, nil
}

// Save uploads r and returns its handle.
func (s *MinioStore) Save(ctx context.Context, ownerID, fileName string, r io.Reader) (string, error) {
	key, err := objectKey(ownerID, fileName, s.now())
	if err != nil {
		return "", err
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{}); err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return minioScheme + s.bucket + "/" + key, nil
}

// Read downloads the object behind handle.
func (s *MinioStore) Read(ctx context.Context, handle string) ([]byte, error) {
	bucket, key, err := parseHandle(handle)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// Exists reports whether the object behind handle exists.
func (s *MinioStore) Exists(ctx context.Context, handle string) (bool, error) {
	bucket, key, err := parseHandle(handle)
	if err != nil {
		return false, err
	}
	_, err = s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, err
}

// Remove deletes the object behind handle.
func (s *MinioStore) Remove(ctx context.Context, handle string) error {
	bucket, key, err := parseHandle(handle)
	if err != nil {
		return err
	}
	return s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
}

func parseHandle(handle string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(handle, minioScheme)
	if !ok {
		return "", "", fmt.Errorf("not a minio handle: %q", handle)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed minio handle: %q", handle)
	}
	return bucket, key, nil
}

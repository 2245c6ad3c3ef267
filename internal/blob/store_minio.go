package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"neuramark/internal/platform/config"
	"neuramark/pkg/platform/sentinel"
)

// MinioStore keeps blobs in an S3-compatible bucket keyed by content id.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinio connects to the configured endpoint and makes sure the bucket exists.
func NewMinio(ctx context.Context, cfg config.BlobConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	s := &MinioStore{client: client, bucket: cfg.Bucket}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put writes data under its content id. Writing the same bytes twice is
// harmless: the key and the content are identical.
func (s *MinioStore) Put(ctx context.Context, data []byte, name string) (string, error) {
	contentID, err := ComputeCID(data)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, s.bucket, contentID, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: map[string]string{"name": name},
	})
	if err != nil {
		return "", fmt.Errorf("put blob %s: %w: %w", contentID, sentinel.ErrUnavailable, err)
	}
	return contentID, nil
}

// Get reads a blob and checks it still hashes to its id.
func (s *MinioStore) Get(ctx context.Context, contentID string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, contentID, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.classify(contentID, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.classify(contentID, err)
	}
	ok, err := VerifyCID(contentID, data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("blob %s failed integrity check", contentID)
	}
	return data, nil
}

func (s *MinioStore) classify(contentID string, err error) error {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
			return sentinel.ErrNotFound
		}
	}
	return fmt.Errorf("get blob %s: %w: %w", contentID, sentinel.ErrUnavailable, err)
}

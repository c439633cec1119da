package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound is returned when the bucket or key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore reads datasets from S3-compatible storage such as R2 or MinIO.
type ObjectStore struct {
	client *minio.Client
	logger *slog.Logger
}

// NewObjectStore constructs the read-only object storage adapter.
func NewObjectStore(endpoint, accessKey, secretKey, region string, logger *slog.Logger) (*ObjectStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	useSSL := !strings.HasPrefix(strings.ToLower(strings.TrimSpace(endpoint)), "http://")
	client, err := minio.New(sanitizeEndpoint(endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init object storage client: %w", err)
	}
	return &ObjectStore{client: client, logger: logger.With("component", "dataset.objectstore")}, nil
}

// Get downloads the whole object.
func (s *ObjectStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapObjectError(err)
	}
	defer obj.Close()
	// GetObject is lazy; Stat surfaces a missing key before reading.
	if _, err := obj.Stat(); err != nil {
		return nil, mapObjectError(err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, err)
	}
	s.logger.Debug("object fetched", "bucket", bucket, "key", key, "bytes", len(data))
	return data, nil
}

func mapObjectError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return err
}

// sanitizeEndpoint removes schemes and paths to satisfy minio.New expectations.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	host, _, _ := strings.Cut(raw, "/")
	return host
}

var _ ObjectReader = (*ObjectStore)(nil)

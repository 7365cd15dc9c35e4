package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/your-org/faceworker/internal/config"
)

// ObjectStore wraps the S3-compatible object store used for remote image
// sources and thumbnail uploads. Buckets come from the digest request, so
// every call takes the bucket explicitly.
type ObjectStore struct {
	client *minio.Client
}

func NewObjectStore(cfg config.MinIOConfig) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &ObjectStore{client: client}, nil
}

// ListKeys returns all object keys under the prefix, recursively, in the
// order the store returns them (lexicographic for S3 listings).
func (s *ObjectStore) ListKeys(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects %s/%s: %w", bucket, prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// GetObject retrieves an object's full contents.
func (s *ObjectStore) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// PutThumbnail uploads a JPEG thumbnail under the thumbnail/ prefix,
// preserving the original key's directory structure. Returns the
// destination key.
func (s *ObjectStore) PutThumbnail(ctx context.Context, bucket, originalKey string, data []byte) (string, error) {
	key := "thumbnail/" + originalKey
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/jpeg"})
	if err != nil {
		return "", fmt.Errorf("put thumbnail %s: %w", key, err)
	}
	return key, nil
}

// Ping checks object store connectivity.
func (s *ObjectStore) Ping(ctx context.Context) error {
	_, err := s.client.ListBuckets(ctx)
	return err
}

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"simulation-server/internal/models"

	storage_go "github.com/supabase-community/storage-go"
	supa "github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

// bucketClient часть клиента Supabase Storage, которой пользуется хранилище.
type bucketClient interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

// SupabaseBlobStore загружает объекты в публичный бакет Supabase Storage.
type SupabaseBlobStore struct {
	client bucketClient
	bucket string
	logger *zap.Logger
}

var _ BlobStore = (*SupabaseBlobStore)(nil)

// NewSupabaseBlobStore connects to the Supabase project at url using the service key.
func NewSupabaseBlobStore(url, key, bucket string, logger *zap.Logger) (*SupabaseBlobStore, error) {
	if url == "" || key == "" || bucket == "" {
		return nil, fmt.Errorf("%w: supabase url, key and bucket are required", models.ErrInvalidInput)
	}
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return newSupabaseBlobStore(client.Storage, bucket, logger), nil
}

func newSupabaseBlobStore(client bucketClient, bucket string, logger *zap.Logger) *SupabaseBlobStore {
	return &SupabaseBlobStore{client: client, bucket: bucket, logger: logger.Named("SupabaseBlobStore")}
}

// Put загружает объект с upsert, поэтому повторная загрузка под тем же ключом идемпотентна.
func (s *SupabaseBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	// storage-go не принимает контекст, проверяем отмену до сетевого вызова
	if err := ctx.Err(); err != nil {
		return "", err
	}
	upsert := true
	_, err := s.client.UploadFile(s.bucket, key, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		s.logger.Error("Upload failed", zap.String("bucket", s.bucket), zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("%w: upload %s: %w", models.ErrPersistence, key, err)
	}
	url := s.client.GetPublicUrl(s.bucket, key).SignedURL
	if url == "" {
		return "", fmt.Errorf("%w: empty public url for %s", models.ErrPersistence, key)
	}
	s.logger.Info("Blob uploaded", zap.String("key", key), zap.Int("bytes", len(data)))
	return url, nil
}

package storage

import (
	"context"
	"fmt"
	"strings"

	"simulation-server/internal/config"
	"simulation-server/internal/models"

	"go.uber.org/zap"
)

// BlobStore сохраняет бинарные ассеты (картинки, видео) и возвращает постоянный публичный URL.
// Повторная запись под тем же ключом перезаписывает объект.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// New выбирает реализацию по BLOB_DRIVER.
func New(cfg *config.Config, logger *zap.Logger) (BlobStore, error) {
	switch strings.ToLower(cfg.BlobDriver) {
	case "supabase":
		return NewSupabaseBlobStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket, logger)
	case "", "local":
		return NewLocalBlobStore(cfg.BlobLocalPath, cfg.BlobPublicBaseURL, logger)
	default:
		return nil, fmt.Errorf("%w: unknown blob driver %q", models.ErrInvalidInput, cfg.BlobDriver)
	}
}

// validateKey отсекает пустые и выходящие за пределы хранилища ключи.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: invalid blob key %q", models.ErrInvalidInput, key)
	}
	return nil
}

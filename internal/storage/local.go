package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"simulation-server/internal/models"

	"go.uber.org/zap"
)

// LocalBlobStore хранит объекты в каталоге на диске; раздаются через echo Static.
type LocalBlobStore struct {
	root    string
	baseURL string
	logger  *zap.Logger
}

var _ BlobStore = (*LocalBlobStore)(nil)

// NewLocalBlobStore creates the root directory if needed.
func NewLocalBlobStore(root, publicBaseURL string, logger *zap.Logger) (*LocalBlobStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: blob root path is required", models.ErrInvalidInput)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create blob root: %w", models.ErrPersistence, err)
	}
	return &LocalBlobStore{
		root:    root,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:  logger.Named("LocalBlobStore"),
	}, nil
}

// Root возвращает каталог хранилища.
func (s *LocalBlobStore) Root() string { return s.root }

// Put пишет во временный файл и переименовывает его, читатели никогда не видят частичный объект.
func (s *LocalBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("%w: create blob dir: %w", models.ErrPersistence, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%w: create temp blob: %w", models.ErrPersistence, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // после успешного rename файла уже нет

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: write blob: %w", models.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: close blob: %w", models.ErrPersistence, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("%w: publish blob: %w", models.ErrPersistence, err)
	}

	url := s.baseURL + "/" + key
	s.logger.Debug("Blob stored",
		zap.String("key", key),
		zap.String("contentType", contentType),
		zap.Int("bytes", len(data)),
	)
	return url, nil
}

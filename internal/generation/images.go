package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"simulation-server/internal/models"
	"simulation-server/internal/retry"

	"go.uber.org/zap"
)

// AssetStore сохраняет сгенерированные файлы и возвращает постоянный URL.
type AssetStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ImageService реализует ImageGenerator: промпт, рендер с ретраями, fallback и загрузка в хранилище.
type ImageService struct {
	primary  ImageRenderer
	fallback ImageRenderer // nil, если fallback отключен
	store    AssetStore
	retry    *retry.Executor
	logger   *zap.Logger
}

var _ ImageGenerator = (*ImageService)(nil)

// NewImageService creates an ImageService. fallback may be nil.
func NewImageService(primary, fallback ImageRenderer, store AssetStore, executor *retry.Executor, logger *zap.Logger) *ImageService {
	return &ImageService{
		primary:  primary,
		fallback: fallback,
		store:    store,
		retry:    executor,
		logger:   logger.Named("ImageService"),
	}
}

// GenerateImage renders the scene and returns the durable URL together with the exact prompt used.
func (s *ImageService) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	if strings.TrimSpace(req.SceneDescription) == "" {
		return nil, fmt.Errorf("%w: scene description is required", models.ErrInvalidInput)
	}
	if req.AssetID == "" {
		return nil, fmt.Errorf("%w: asset id is required", models.ErrInvalidInput)
	}
	log := s.logger.With(zap.String("assetID", req.AssetID))
	prompt := BuildImagePrompt(req)

	backend := s.primary.Name()
	img, err := retry.Do(ctx, s.retry, "render_image", func(ctx context.Context) (*RenderedImage, error) {
		start := time.Now()
		img, err := s.primary.RenderImage(ctx, prompt)
		MetricsRecordCall(CapabilityImage, backend, err, time.Since(start))
		return img, err
	})
	if err != nil {
		if s.fallback == nil || ctx.Err() != nil {
			return nil, err
		}
		log.Warn("Image backend failed, falling back",
			zap.String("capability", CapabilityImage),
			zap.String("primary", backend),
			zap.String("fallback", s.fallback.Name()),
			zap.Error(err),
		)
		MetricsRecordFallback(CapabilityImage)
		backend = s.fallback.Name()
		start := time.Now()
		img, err = s.fallback.RenderImage(ctx, prompt)
		MetricsRecordCall(CapabilityImage, backend, err, time.Since(start))
		if err != nil {
			return nil, err
		}
	}

	key := fmt.Sprintf("story-images/%s.%s", req.AssetID, extensionFor(img.ContentType))
	url, err := s.store.Put(ctx, key, img.Data, img.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to store image: %w", models.ErrPersistence, err)
	}
	log.Info("Image generated", zap.String("backend", backend), zap.String("url", url))
	return &ImageResult{URL: url, Prompt: prompt, Backend: backend}, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/svg+xml":
		return "svg"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}

package generation

import (
	"context"
	"fmt"
	"strings"

	"simulation-server/internal/config"
	"simulation-server/internal/retry"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// NewTextGenerator создает текстовый бэкенд в зависимости от конфигурации.
// gemini может быть nil, если TEXT_PROVIDER не gemini.
func NewTextGenerator(cfg *config.Config, gemini *genai.Client, logger *zap.Logger) (TextGenerator, error) {
	switch strings.ToLower(cfg.TextProvider) {
	case GeminiBackendName:
		if gemini == nil {
			return nil, fmt.Errorf("gemini client is required for TEXT_PROVIDER=gemini")
		}
		return NewGeminiTextGenerator(gemini, cfg.GeminiTextModel, logger), nil
	case "openai":
		return newOpenAIClient(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel, cfg.AITimeout, logger), nil
	case "ollama":
		return newOllamaClient(cfg.AIBaseURL, cfg.AIModel, cfg.AITimeout, logger)
	case FakeBackendName:
		logger.Warn("Using fake text backend")
		return FakeTextGenerator{}, nil
	default:
		return nil, fmt.Errorf("неизвестный тип AI клиента: '%s'", cfg.TextProvider)
	}
}

// NewBackend собирает все возможности генерации по конфигурации.
// Live-рендереры получают fake-рендерер как fallback, если он включен.
func NewBackend(ctx context.Context, cfg *config.Config, store AssetStore, executor *retry.Executor, logger *zap.Logger) (*Backend, error) {
	var gemini *genai.Client
	if cfg.NeedsGemini() {
		client, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.AITimeout)
		if err != nil {
			return nil, err
		}
		gemini = client
	}

	text, err := NewTextGenerator(cfg, gemini, logger)
	if err != nil {
		return nil, err
	}
	storyteller := NewStoryteller(text, StorytellerConfig{
		Temperature: cfg.AITemperature,
		TopP:        cfg.AITopP,
		MaxTokens:   cfg.AIMaxTokens,
	}, logger)

	fakeImages := NewFakeImageRenderer(cfg.FakeImageDelay, logger)
	var images *ImageService
	if strings.EqualFold(cfg.ImageMode, "live") {
		var fallback ImageRenderer
		if cfg.FallbackEnabled {
			fallback = fakeImages
		}
		images = NewImageService(NewImagenRenderer(gemini, cfg.GeminiImageModel, logger), fallback, store, executor, logger)
	} else {
		images = NewImageService(fakeImages, nil, store, executor, logger)
	}

	fakeVideos := NewFakeVideoRenderer(cfg.FakeVideoDelay, logger)
	var videos *VideoJobs
	if strings.EqualFold(cfg.VideoMode, "live") {
		var fallback VideoRenderer
		if cfg.FallbackEnabled {
			fallback = fakeVideos
		}
		videos = NewVideoJobs(NewVeoRenderer(gemini, cfg.GeminiVideoModel, logger), fallback, logger)
	} else {
		videos = NewVideoJobs(fakeVideos, nil, logger)
	}

	logger.Info("Generation backend configured",
		zap.String("text", text.Name()),
		zap.String("imageMode", cfg.ImageMode),
		zap.String("videoMode", cfg.VideoMode),
		zap.Bool("fallback", cfg.FallbackEnabled),
	)
	return &Backend{
		Narrative: storyteller,
		Images:    images,
		Video:     videos,
		Commands:  NewTextCommandExtractor(text, logger),
	}, nil
}

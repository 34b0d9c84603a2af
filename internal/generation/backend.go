package generation

import (
	"context"
	"errors"

	"simulation-server/internal/models"
)

// ErrAIGenerationFailed - ошибка при генерации текста AI
var ErrAIGenerationFailed = errors.New("ошибка генерации текста AI")

// Capability labels used in logs and metrics.
const (
	CapabilityNarrative = "narrative"
	CapabilityOptions   = "options"
	CapabilityImage     = "image"
	CapabilityVideo     = "video"
	CapabilityCommand   = "command"
)

// UsageInfo содержит информацию об использовании токенов и стоимости
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	EstimatedCostUSD float64
}

// GenerationParams параметры генерации; указатели отличают 0 от отсутствия значения.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
	// JSON просит провайдера вернуть JSON-объект (если он это поддерживает).
	JSON bool
}

// TextGenerator интерфейс для взаимодействия с текстовой моделью.
type TextGenerator interface {
	// Name возвращает метку бэкенда для логов и метрик.
	Name() string
	// GenerateText генерирует текст на основе системного промта, ввода пользователя и параметров.
	GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error)
}

// StoryContext is everything the narrative and options prompts are built from.
type StoryContext struct {
	Story      *models.StoryDefinition
	Hologram   *models.Hologram
	History    []*models.Turn // последние ходы по возрастанию turn_number
	TurnNumber int
	UserAction string
}

// Narrative is a generated story continuation.
type Narrative struct {
	Text  string
	Usage UsageInfo
}

// NarrativeGenerator produces story text and suggested next actions.
type NarrativeGenerator interface {
	GenerateNarrative(ctx context.Context, sc StoryContext) (*Narrative, error)
	GenerateOptions(ctx context.Context, sc StoryContext, narrative string) ([]string, error)
}

// ImageRequest describes one continuity-aware illustration.
type ImageRequest struct {
	// AssetID становится частью ключа в blob-хранилище.
	AssetID          string
	SceneDescription string
	CharacterContext string
	PreviousPrompts  []string
	Style            string
}

// ImageResult is a persisted illustration and the exact prompt used for it.
type ImageResult struct {
	URL     string
	Prompt  string
	Backend string
}

// ImageGenerator produces an illustration reference for a scene.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
}

// RenderedImage is raw image output of a renderer.
type RenderedImage struct {
	Data        []byte
	ContentType string
}

// ImageRenderer turns a final prompt into image bytes.
type ImageRenderer interface {
	Name() string
	RenderImage(ctx context.Context, prompt string) (*RenderedImage, error)
}

// PollResult is the outcome of one status check of a video job.
type PollResult struct {
	Terminal bool
	Status   models.VideoStatus
	// AssetRef ссылка провайдера на готовый файл (временная, не для хранения).
	AssetRef string
	Handle   JobHandle
}

// VideoGenerator runs long-lived render jobs.
type VideoGenerator interface {
	GenerateVideoJob(ctx context.Context, prompt string) (JobHandle, error)
	PollVideoJob(ctx context.Context, handle JobHandle) (*PollResult, error)
	FetchAsset(ctx context.Context, handle JobHandle) ([]byte, error)
}

// VideoRenderer is one provider of video jobs. PollVideo returns the refreshed handle.
type VideoRenderer interface {
	Name() string
	StartVideo(ctx context.Context, prompt string) (JobHandle, error)
	PollVideo(ctx context.Context, handle JobHandle) (JobHandle, error)
	FetchVideo(ctx context.Context, handle JobHandle) ([]byte, error)
}

// CommandExtractor is the structured tier of the command classifier.
type CommandExtractor interface {
	ExtractCommand(ctx context.Context, text string, knownHolograms []string) (*models.HologramCommand, error)
}

// Backend groups the capabilities the turn engine and video orchestrator depend on.
type Backend struct {
	Narrative NarrativeGenerator
	Images    ImageGenerator
	Video     VideoGenerator
	Commands  CommandExtractor
}

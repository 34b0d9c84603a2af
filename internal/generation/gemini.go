package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"simulation-server/internal/models"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Метки живых бэкендов Google.
const (
	GeminiBackendName = "gemini"
	ImagenBackendName = "imagen"
	VeoBackendName    = "veo"
)

// NewGeminiClient создает общий клиент Gemini API для текста, изображений и видео.
func NewGeminiClient(ctx context.Context, apiKey string, timeout time.Duration) (*genai.Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: gemini api key is empty", models.ErrInvalidInput)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}

// --- Text ---

// GeminiTextGenerator реализует TextGenerator поверх Gemini.
type GeminiTextGenerator struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

var _ TextGenerator = (*GeminiTextGenerator)(nil)

func NewGeminiTextGenerator(client *genai.Client, model string, logger *zap.Logger) *GeminiTextGenerator {
	return &GeminiTextGenerator{client: client, model: model, logger: logger.Named("GeminiText")}
}

func (g *GeminiTextGenerator) Name() string { return GeminiBackendName }

func (g *GeminiTextGenerator) GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}
	if strings.TrimSpace(systemPrompt) == "" && strings.TrimSpace(userInput) == "" {
		return "", usageInfo, fmt.Errorf("%w: %w: пустой промт", models.ErrInvalidInput, ErrAIGenerationFailed)
	}

	cfg := &genai.GenerateContentConfig{}
	if params.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*params.Temperature))
	}
	if params.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*params.TopP))
	}
	if params.MaxTokens != nil && *params.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(*params.MaxTokens)
	}
	if params.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	// Gemini требует непустой пользовательский ввод: промт без ввода уходит целиком как user
	contents := genai.Text(userInput)
	if strings.TrimSpace(userInput) == "" {
		contents = genai.Text(systemPrompt)
	} else if strings.TrimSpace(systemPrompt) != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		g.logger.Warn("Gemini text request failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return "", usageInfo, classifyProviderError(g.Name(), fmt.Errorf("%w: %w", ErrAIGenerationFailed, err))
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", usageInfo, fmt.Errorf("%w: %w: получен пустой ответ", models.ErrTransientProvider, ErrAIGenerationFailed)
	}
	if um := resp.UsageMetadata; um != nil {
		usageInfo.PromptTokens = int(um.PromptTokenCount)
		usageInfo.CompletionTokens = int(um.CandidatesTokenCount)
		usageInfo.TotalTokens = int(um.TotalTokenCount)
		usageInfo.EstimatedCostUSD = calculateCost(usageInfo.PromptTokens, usageInfo.CompletionTokens)
	} else {
		usageInfo = estimateUsage(g.model, []string{systemPrompt, userInput}, text)
	}
	MetricsRecordUsage(g.model, usageInfo)
	g.logger.Debug("Gemini text response received",
		zap.Duration("duration", time.Since(start)),
		zap.Int("length", len(text)),
		zap.Int("totalTokens", usageInfo.TotalTokens),
	)
	return text, usageInfo, nil
}

// --- Images ---

// ImagenRenderer реализует ImageRenderer поверх Imagen.
type ImagenRenderer struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

var _ ImageRenderer = (*ImagenRenderer)(nil)

func NewImagenRenderer(client *genai.Client, model string, logger *zap.Logger) *ImagenRenderer {
	return &ImagenRenderer{client: client, model: model, logger: logger.Named("ImagenRenderer")}
}

func (r *ImagenRenderer) Name() string { return ImagenBackendName }

func (r *ImagenRenderer) RenderImage(ctx context.Context, prompt string) (*RenderedImage, error) {
	resp, err := r.client.Models.GenerateImages(ctx, r.model, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    "1:1",
	})
	if err != nil {
		return nil, classifyProviderError(r.Name(), err)
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		// Пустой ответ обычно означает срабатывание фильтра безопасности
		return nil, fmt.Errorf("%w: imagen returned no image", models.ErrFatalProvider)
	}
	img := resp.GeneratedImages[0].Image
	contentType := img.MIMEType
	if contentType == "" {
		contentType = "image/png"
	}
	return &RenderedImage{Data: img.ImageBytes, ContentType: contentType}, nil
}

// --- Video ---

// VeoRenderer реализует VideoRenderer поверх Veo (long-running operations).
type VeoRenderer struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

var _ VideoRenderer = (*VeoRenderer)(nil)

func NewVeoRenderer(client *genai.Client, model string, logger *zap.Logger) *VeoRenderer {
	return &VeoRenderer{client: client, model: model, logger: logger.Named("VeoRenderer")}
}

func (r *VeoRenderer) Name() string { return VeoBackendName }

type veoPayload struct {
	Operation string `json:"operation"`
}

func (r *VeoRenderer) StartVideo(ctx context.Context, prompt string) (JobHandle, error) {
	op, err := r.client.Models.GenerateVideos(ctx, r.model, prompt, nil, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		AspectRatio:    "16:9",
	})
	if err != nil {
		return JobHandle{}, classifyProviderError(r.Name(), err)
	}
	if op == nil || op.Name == "" {
		return JobHandle{}, fmt.Errorf("%w: veo returned no operation", models.ErrFatalProvider)
	}
	r.logger.Info("Veo operation started", zap.String("operation", op.Name))
	return r.handleFor(op)
}

// PollVideo перечитывает операцию; завершенный дескриптор возвращается без запроса.
func (r *VeoRenderer) PollVideo(ctx context.Context, handle JobHandle) (JobHandle, error) {
	if handle.IsDone() {
		return handle, nil
	}
	var payload veoPayload
	if err := json.Unmarshal(handle.Payload, &payload); err != nil || payload.Operation == "" {
		return handle, fmt.Errorf("%w: veo handle without operation name", models.ErrFatalProvider)
	}
	op, err := r.client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: payload.Operation}, nil)
	if err != nil {
		return handle, classifyProviderError(r.Name(), err)
	}
	return r.handleFor(op)
}

func (r *VeoRenderer) FetchVideo(ctx context.Context, handle JobHandle) ([]byte, error) {
	ref := handle.ResultAssetRef()
	if ref == "" {
		return nil, fmt.Errorf("%w: veo job has no asset", models.ErrFatalProvider)
	}
	data, err := r.client.Files.Download(ctx, genai.NewDownloadURIFromVideo(&genai.Video{URI: ref}), nil)
	if err != nil {
		return nil, classifyProviderError(r.Name(), err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: veo asset is empty", models.ErrTransientProvider)
	}
	return data, nil
}

func (r *VeoRenderer) handleFor(op *genai.GenerateVideosOperation) (JobHandle, error) {
	payload, err := json.Marshal(veoPayload{Operation: op.Name})
	if err != nil {
		return JobHandle{}, fmt.Errorf("failed to encode veo payload: %w", err)
	}
	h := JobHandle{Provider: r.Name(), Payload: payload, Done: op.Done}
	if len(op.Error) > 0 {
		h.Error = fmt.Sprint(op.Error)
	}
	if op.Done && op.Response != nil && len(op.Response.GeneratedVideos) > 0 {
		if v := op.Response.GeneratedVideos[0].Video; v != nil {
			h.AssetRef = v.URI
		}
	}
	return h, nil
}

package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"simulation-server/internal/models"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// ollamaClient реализует TextGenerator с использованием ollama/api
type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

var _ TextGenerator = (*ollamaClient)(nil)

// newOllamaClient создает новый клиент для взаимодействия с Ollama
func newOllamaClient(baseURL, model string, timeout time.Duration, logger *zap.Logger) (*ollamaClient, error) {
	// api.NewClient требует URL без суффикса /v1
	ollamaBaseURL := strings.TrimSuffix(baseURL, "/v1")
	ollamaBaseURL = strings.TrimSuffix(ollamaBaseURL, "/")

	parsedURL, err := url.Parse(ollamaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL '%s': %w", ollamaBaseURL, err)
	}
	client := api.NewClient(parsedURL, &http.Client{Timeout: timeout})

	log := logger.Named("OllamaClient")
	log.Info("Ollama client created", zap.String("baseURL", ollamaBaseURL), zap.String("model", model), zap.Duration("timeout", timeout))
	return &ollamaClient{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  log,
	}, nil
}

func (c *ollamaClient) Name() string { return "ollama" }

// GenerateText генерирует текст с использованием Ollama
func (c *ollamaClient) GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}

	if strings.TrimSpace(systemPrompt) == "" {
		return "", usageInfo, fmt.Errorf("%w: %w: системный промт пуст", models.ErrInvalidInput, ErrAIGenerationFailed)
	}

	messages := []api.Message{
		{Role: "system", Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, api.Message{Role: "user", Content: userInput})
	}

	options := map[string]interface{}{
		"num_predict": intVal(params.MaxTokens),
	}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	stream := false
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}
	if params.JSON {
		req.Format = []byte(`"json"`)
	}

	// Контекст с таймаутом, специфичным для этого запроса
	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	startTime := time.Now()
	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r // без стрима приходит единственный (полный) ответ
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("Ollama request timed out", zap.Duration("timeout", c.timeout), zap.Duration("duration", duration), zap.Error(err))
		} else {
			c.logger.Warn("Ollama API error", zap.Duration("duration", duration), zap.Error(err))
		}
		return "", usageInfo, classifyProviderError(c.Name(), fmt.Errorf("%w: %w", ErrAIGenerationFailed, err))
	}
	if resp.Message.Content == "" {
		c.logger.Warn("Ollama returned empty response", zap.Duration("duration", duration))
		return "", usageInfo, fmt.Errorf("%w: %w: получен пустой ответ", models.ErrTransientProvider, ErrAIGenerationFailed)
	}

	// Ollama обычно локальный, стоимость 0
	usageInfo.PromptTokens = resp.PromptEvalCount
	usageInfo.CompletionTokens = resp.EvalCount
	usageInfo.TotalTokens = resp.PromptEvalCount + resp.EvalCount
	MetricsRecordUsage(c.model, usageInfo)

	c.logger.Debug("Ollama response received",
		zap.Duration("duration", duration),
		zap.Int("length", len(resp.Message.Content)),
		zap.Int("totalTokens", usageInfo.TotalTokens),
	)
	return resp.Message.Content, usageInfo, nil
}

package generation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"simulation-server/internal/models"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// openAIClient реализует TextGenerator с использованием go-openai (OpenAI-совместимые API, в т.ч. OpenRouter).
type openAIClient struct {
	client *openaigo.Client
	model  string
	logger *zap.Logger
}

var _ TextGenerator = (*openAIClient)(nil)

func newOpenAIClient(apiKey, baseURL, model string, timeout time.Duration, logger *zap.Logger) *openAIClient {
	openaiConfig := openaigo.DefaultConfig(apiKey)
	if baseURL != "" {
		openaiConfig.BaseURL = baseURL
	}
	openaiConfig.HTTPClient = &http.Client{Timeout: timeout}
	log := logger.Named("OpenAIClient")
	log.Info("OpenAI client created", zap.String("baseURL", openaiConfig.BaseURL), zap.String("model", model), zap.Duration("timeout", timeout))
	return &openAIClient{
		client: openaigo.NewClientWithConfig(openaiConfig),
		model:  model,
		logger: log,
	}
}

func (c *openAIClient) Name() string { return "openai" }

// GenerateText генерирует текст на основе системного промта и ввода пользователя
func (c *openAIClient) GenerateText(ctx context.Context, systemPrompt string, userInput string, params GenerationParams) (string, UsageInfo, error) {
	usageInfo := UsageInfo{}

	if strings.TrimSpace(systemPrompt) == "" {
		return "", usageInfo, fmt.Errorf("%w: %w: системный промт пуст", models.ErrInvalidInput, ErrAIGenerationFailed)
	}

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: systemPrompt},
	}
	if userInput != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{Role: openaigo.ChatMessageRoleUser, Content: userInput})
	}

	req := openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: float32Val(params.Temperature, 1.0),
		MaxTokens:   intVal(params.MaxTokens),
		TopP:        float32Val(params.TopP, 1.0),
	}
	if params.JSON {
		req.ResponseFormat = &openaigo.ChatCompletionResponseFormat{Type: openaigo.ChatCompletionResponseFormatTypeJSONObject}
	}

	startTime := time.Now()
	c.logger.Debug("Sending request to AI",
		zap.String("model", c.model),
		zap.Int("systemPromptBytes", len(systemPrompt)),
		zap.Int("userInputBytes", len(userInput)),
	)
	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(startTime)
	if err != nil {
		c.logger.Warn("AI API error", zap.Duration("duration", duration), zap.Error(err))
		return "", usageInfo, classifyProviderError(c.Name(), fmt.Errorf("%w: %w", ErrAIGenerationFailed, err))
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.logger.Warn("AI API returned empty response", zap.Duration("duration", duration))
		return "", usageInfo, fmt.Errorf("%w: %w: получен пустой ответ", models.ErrTransientProvider, ErrAIGenerationFailed)
	}

	generatedText := resp.Choices[0].Message.Content
	if resp.Usage.TotalTokens > 0 {
		usageInfo.PromptTokens = resp.Usage.PromptTokens
		usageInfo.CompletionTokens = resp.Usage.CompletionTokens
		usageInfo.TotalTokens = resp.Usage.TotalTokens
		usageInfo.EstimatedCostUSD = calculateCost(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	} else {
		// Некоторые OpenAI-совместимые API не возвращают usage
		usageInfo = estimateUsage(c.model, []string{systemPrompt, userInput}, generatedText)
	}
	MetricsRecordUsage(c.model, usageInfo)

	c.logger.Debug("AI response received",
		zap.Duration("duration", duration),
		zap.Int("length", len(generatedText)),
		zap.Int("promptTokens", usageInfo.PromptTokens),
		zap.Int("completionTokens", usageInfo.CompletionTokens),
		zap.Float64("estimatedCostUSD", usageInfo.EstimatedCostUSD),
	)
	return generatedText, usageInfo, nil
}

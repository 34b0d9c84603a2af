package generation

import (
	"errors"
	"fmt"

	"simulation-server/internal/models"
	"simulation-server/internal/retry"

	"github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	openaigo "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

const (
	pricePerMillionInputTokensUSD  = 0.1 // Цена за 1М входных токенов в USD
	pricePerMillionOutputTokensUSD = 0.4 // Цена за 1М выходных токенов в USD

	// tokenizerFallbackEncoding используется, если tiktoken не знает модель.
	tokenizerFallbackEncoding = "cl100k_base"
)

// calculateCost рассчитывает оценочную стоимость запроса на основе токенов.
func calculateCost(promptTokens, completionTokens int) float64 {
	inputCost := float64(promptTokens) * pricePerMillionInputTokensUSD / 1_000_000.0
	outputCost := float64(completionTokens) * pricePerMillionOutputTokensUSD / 1_000_000.0
	return inputCost + outputCost
}

// estimateUsage считает токены локально, когда провайдер не вернул usage.
func estimateUsage(model string, prompt []string, completion string) UsageInfo {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tke, err = tiktoken.GetEncoding(tokenizerFallbackEncoding)
		if err != nil {
			return UsageInfo{}
		}
	}
	var promptTokens int
	for _, p := range prompt {
		promptTokens += len(tke.Encode(p, nil, nil))
	}
	completionTokens := len(tke.Encode(completion, nil, nil))
	return UsageInfo{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		EstimatedCostUSD: calculateCost(promptTokens, completionTokens),
	}
}

// classifyProviderError оборачивает ошибку SDK в ErrTransientProvider или ErrFatalProvider.
func classifyProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrTransientProvider) || errors.Is(err, models.ErrFatalProvider) {
		return err
	}
	if status, ok := providerStatus(err); ok {
		if retry.IsRetryableStatus(status) {
			return fmt.Errorf("%w: %s responded %d: %v", models.ErrTransientProvider, provider, status, err)
		}
		return fmt.Errorf("%w: %s responded %d: %v", models.ErrFatalProvider, provider, status, err)
	}
	if retry.IsRetryable(err) {
		return fmt.Errorf("%w: %s: %w", models.ErrTransientProvider, provider, err)
	}
	return fmt.Errorf("%w: %s: %w", models.ErrFatalProvider, provider, err)
}

// providerStatus достает HTTP-статус из ошибок известных SDK.
func providerStatus(err error) (int, bool) {
	var oaiAPIErr *openaigo.APIError
	if errors.As(err, &oaiAPIErr) && oaiAPIErr.HTTPStatusCode > 0 {
		return oaiAPIErr.HTTPStatusCode, true
	}
	var oaiReqErr *openaigo.RequestError
	if errors.As(err, &oaiReqErr) && oaiReqErr.HTTPStatusCode > 0 {
		return oaiReqErr.HTTPStatusCode, true
	}
	var ollamaErr api.StatusError
	if errors.As(err, &ollamaErr) && ollamaErr.StatusCode > 0 {
		return ollamaErr.StatusCode, true
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) && genaiErr.Code > 0 {
		return genaiErr.Code, true
	}
	var genaiErrPtr *genai.APIError
	if errors.As(err, &genaiErrPtr) && genaiErrPtr.Code > 0 {
		return genaiErrPtr.Code, true
	}
	return 0, false
}

func float32Val(f64 *float64, def float32) float32 {
	if f64 == nil {
		return def
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

package generation

import (
	"errors"
	"fmt"
	"testing"

	"simulation-server/internal/models"

	"github.com/ollama/ollama/api"
	openaigo "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestClassifyProviderError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"openai rate limit", &openaigo.APIError{HTTPStatusCode: 429, Message: "slow down"}, models.ErrTransientProvider},
		{"openai unauthorized", &openaigo.APIError{HTTPStatusCode: 401, Message: "bad key"}, models.ErrFatalProvider},
		{"openai request 502", &openaigo.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, models.ErrTransientProvider},
		{"ollama unavailable", api.StatusError{StatusCode: 503, Status: "503 Service Unavailable"}, models.ErrTransientProvider},
		{"ollama bad request", api.StatusError{StatusCode: 400, ErrorMessage: "model not found"}, models.ErrFatalProvider},
		{"wrapped status", fmt.Errorf("%w: %w", ErrAIGenerationFailed, &openaigo.APIError{HTTPStatusCode: 500}), models.ErrTransientProvider},
		{"connection refused", errors.New("dial tcp: connection refused"), models.ErrTransientProvider},
		{"malformed", errors.New("invalid character 'x' looking for beginning of value"), models.ErrFatalProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyProviderError("test", tt.err)
			assert.ErrorIs(t, got, tt.want)
		})
	}

	already := fmt.Errorf("%w: upstream", models.ErrTransientProvider)
	assert.Same(t, already, classifyProviderError("test", already))
	assert.NoError(t, classifyProviderError("test", nil))
}

func TestCalculateCost(t *testing.T) {
	assert.InDelta(t, 0.1+0.4, calculateCost(1_000_000, 1_000_000), 1e-9)
	assert.Zero(t, calculateCost(0, 0))
}

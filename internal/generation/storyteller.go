package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"simulation-server/internal/models"

	"go.uber.org/zap"
)

// Storyteller реализует NarrativeGenerator поверх любого TextGenerator.
type Storyteller struct {
	text          TextGenerator
	narrativeTemp float64
	optionsTemp   float64
	topP          float64
	maxTokens     int
	logger        *zap.Logger
}

var _ NarrativeGenerator = (*Storyteller)(nil)

// StorytellerConfig параметры сэмплирования.
type StorytellerConfig struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// NewStoryteller creates a Storyteller. Options are sampled hotter and shorter than narrative.
func NewStoryteller(text TextGenerator, cfg StorytellerConfig, logger *zap.Logger) *Storyteller {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Storyteller{
		text:          text,
		narrativeTemp: cfg.Temperature,
		optionsTemp:   0.9,
		topP:          cfg.TopP,
		maxTokens:     cfg.MaxTokens,
		logger:        logger.Named("Storyteller"),
	}
}

// GenerateNarrative produces the continuation for the user's action.
func (s *Storyteller) GenerateNarrative(ctx context.Context, sc StoryContext) (*Narrative, error) {
	if sc.Story == nil {
		return nil, fmt.Errorf("%w: story definition is required", models.ErrInvalidInput)
	}
	system, user := BuildNarrativePrompt(sc)

	start := time.Now()
	text, usage, err := s.text.GenerateText(ctx, system, user, GenerationParams{
		Temperature: &s.narrativeTemp,
		TopP:        &s.topP,
		MaxTokens:   &s.maxTokens,
	})
	MetricsRecordCall(CapabilityNarrative, s.text.Name(), err, time.Since(start))
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: %w: empty narrative", models.ErrFatalProvider, ErrAIGenerationFailed)
	}
	s.logger.Debug("Narrative generated",
		zap.Int("turnNumber", sc.TurnNumber),
		zap.Int("length", len(text)),
		zap.Int("totalTokens", usage.TotalTokens),
	)
	return &Narrative{Text: text, Usage: usage}, nil
}

// GenerateOptions returns exactly four suggested next actions.
func (s *Storyteller) GenerateOptions(ctx context.Context, sc StoryContext, narrative string) ([]string, error) {
	prompt := BuildOptionsPrompt(sc, narrative)
	maxTokens := 200

	start := time.Now()
	raw, _, err := s.text.GenerateText(ctx, prompt, "", GenerationParams{
		Temperature: &s.optionsTemp,
		MaxTokens:   &maxTokens,
	})
	MetricsRecordCall(CapabilityOptions, s.text.Name(), err, time.Since(start))
	if err != nil {
		return nil, err
	}
	options, err := ParseOptions(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrFatalProvider, err)
	}
	return options, nil
}

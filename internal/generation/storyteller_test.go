package generation_test

import (
	"context"
	"testing"

	"simulation-server/internal/generation"
	"simulation-server/internal/generation/mocks"
	"simulation-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func storyContext() generation.StoryContext {
	return generation.StoryContext{
		Story: &models.StoryDefinition{
			Title:          "Neon Rain",
			InitialScene:   "Rain hammers the neon signs.",
			ImageStyle:     "noir",
			EstimatedTurns: 10,
		},
		Hologram:   &models.Hologram{Name: "Kai"},
		TurnNumber: 1,
		UserAction: "open the door",
	}
}

func TestStoryteller_WithFakeBackend(t *testing.T) {
	s := generation.NewStoryteller(generation.FakeTextGenerator{}, generation.StorytellerConfig{Temperature: 0.7, TopP: 0.9}, zap.NewNop())
	ctx := context.Background()

	narrative, err := s.GenerateNarrative(ctx, storyContext())
	require.NoError(t, err)
	assert.Contains(t, narrative.Text, "open the door")

	options, err := s.GenerateOptions(ctx, storyContext(), narrative.Text)
	require.NoError(t, err)
	assert.Len(t, options, models.SuggestedOptionsCount)
}

func TestStoryteller_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing story", func(t *testing.T) {
		s := generation.NewStoryteller(generation.FakeTextGenerator{}, generation.StorytellerConfig{}, zap.NewNop())
		_, err := s.GenerateNarrative(ctx, generation.StoryContext{UserAction: "x"})
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("blank narrative", func(t *testing.T) {
		text := mocks.NewMockTextGenerator(t)
		text.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("   ", generation.UsageInfo{}, nil).Once()
		s := generation.NewStoryteller(text, generation.StorytellerConfig{}, zap.NewNop())

		_, err := s.GenerateNarrative(ctx, storyContext())
		assert.ErrorIs(t, err, models.ErrFatalProvider)
		assert.ErrorIs(t, err, generation.ErrAIGenerationFailed)
	})

	t.Run("unparseable options", func(t *testing.T) {
		text := mocks.NewMockTextGenerator(t)
		text.On("GenerateText", mock.Anything, mock.Anything, "", mock.Anything).
			Return("\n\n", generation.UsageInfo{}, nil).Once()
		s := generation.NewStoryteller(text, generation.StorytellerConfig{}, zap.NewNop())

		_, err := s.GenerateOptions(ctx, storyContext(), "narrative")
		assert.ErrorIs(t, err, models.ErrFatalProvider)
	})
}

package generation_test

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"simulation-server/internal/generation"
	"simulation-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPromptHash(t *testing.T) {
	assert.Equal(t, uint32(0), generation.PromptHash(""))
	assert.Equal(t, uint32(97), generation.PromptHash("a"))
	assert.Equal(t, uint32(97*31+98), generation.PromptHash("ab"))

	prompt := "A lighthouse on a cliff during a thunderstorm"
	assert.Equal(t, generation.PromptHash(prompt), generation.PromptHash(prompt))
	assert.Equal(t, generation.SchemeForPrompt(prompt), generation.SchemeForPrompt(prompt))
}

func TestFakeImageRenderer_Deterministic(t *testing.T) {
	r := generation.NewFakeImageRenderer(0, zap.NewNop())
	ctx := context.Background()
	prompt := `A knight <in> "shining" armour & a dragon`

	first, err := r.RenderImage(ctx, prompt)
	require.NoError(t, err)
	second, err := r.RenderImage(ctx, prompt)
	require.NoError(t, err)

	assert.Equal(t, "image/svg+xml", first.ContentType)
	assert.Equal(t, first.Data, second.Data)
	svg := string(first.Data)
	assert.Contains(t, svg, generation.SchemeForPrompt(prompt).Primary)
	assert.Contains(t, svg, "&lt;in&gt;")
	assert.NotContains(t, svg, "<in>")

	other, err := r.RenderImage(ctx, "a completely different scene")
	require.NoError(t, err)
	assert.NotEqual(t, first.Data, other.Data)
}

func TestFakeImageRenderer_RespectsContext(t *testing.T) {
	r := generation.NewFakeImageRenderer(10_000_000_000, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RenderImage(ctx, "scene")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFakeVideoRenderer(t *testing.T) {
	r := generation.NewFakeVideoRenderer(0, zap.NewNop())
	ctx := context.Background()

	handle, err := r.StartVideo(ctx, "highlight prompt")
	require.NoError(t, err)
	assert.Equal(t, generation.FakeBackendName, handle.Provider)
	assert.True(t, handle.IsDone())
	assert.NotEmpty(t, handle.ResultAssetRef())

	polled, err := r.PollVideo(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, handle, polled)

	data, err := r.FetchVideo(ctx, handle)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), 8)
	assert.Equal(t, "ftyp", string(data[4:8]))
	assert.Equal(t, uint32(28), binary.BigEndian.Uint32(data[0:4]))

	_, err = r.FetchVideo(ctx, generation.JobHandle{Provider: generation.FakeBackendName})
	assert.ErrorIs(t, err, models.ErrFatalProvider)
}

func TestFakeTextGenerator(t *testing.T) {
	gen := generation.FakeTextGenerator{}
	ctx := context.Background()

	text, _, err := gen.GenerateText(ctx, "You are the narrator", `Current turn 1: The user says "open the door".`, generation.GenerationParams{})
	require.NoError(t, err)
	assert.Contains(t, text, "open the door")
	assert.Greater(t, len(text), generation.VideoMinNarrativeLen)

	raw, _, err := gen.GenerateText(ctx, "Generate 4 different action options", "", generation.GenerationParams{})
	require.NoError(t, err)
	options, err := generation.ParseOptions(raw)
	require.NoError(t, err)
	assert.Len(t, options, models.SuggestedOptionsCount)

	_, _, err = gen.GenerateText(ctx, "classify", "text", generation.GenerationParams{JSON: true})
	assert.True(t, errors.Is(err, models.ErrFatalProvider))
}

package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validStoryJSON = `{
	"title": "The Lost City of Eldoria",
	"genre": "Fantasy Adventure",
	"setting": "Ancient underground city",
	"initialScene": "You stand at the entrance of a massive underground chamber.",
	"characters": [{"name": "Dr. Elena Voss", "role": "Archaeologist"}],
	"storyArc": {"beginning": "b", "conflict": "c", "climax": "cl", "resolution": "r"},
	"estimatedTurns": 15,
	"imageStyle": "cinematic fantasy",
	"tone": "mysterious"
}`

func TestParseStoryDefinition(t *testing.T) {
	t.Run("valid definition", func(t *testing.T) {
		def, err := ParseStoryDefinition([]byte(validStoryJSON))
		require.NoError(t, err)
		assert.Equal(t, "The Lost City of Eldoria", def.Title)
		assert.Equal(t, StoryDefinitionVersion, def.Version)
		assert.Equal(t, 15, def.EstimatedTurns)
		require.Len(t, def.Characters, 1)
		assert.Equal(t, "Dr. Elena Voss", def.Characters[0].Name)
	})

	testCases := []struct {
		name string
		raw  string
	}{
		{"empty payload", ""},
		{"empty object", "{}"},
		{"malformed json", `{"title": `},
		{"unknown field", `{"title":"t","initialScene":"s","imageStyle":"i","estimatedTurns":1,"extra":true}`},
		{"missing initial scene", `{"title":"t","imageStyle":"i","estimatedTurns":1}`},
		{"future version", `{"version":2,"title":"t","initialScene":"s","imageStyle":"i","estimatedTurns":1}`},
		{"trailing data", `{"title":"t","initialScene":"s","imageStyle":"i","estimatedTurns":1} {}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			def, err := ParseStoryDefinition([]byte(tc.raw))
			assert.Nil(t, def)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrStoryDefinitionInvalid))
			assert.True(t, errors.Is(err, ErrFatalProvider))
		})
	}
}

func TestRunStatusTransitions(t *testing.T) {
	assert.True(t, RunStatusActive.CanTransitionTo(RunStatusCompleted))
	assert.True(t, RunStatusActive.CanTransitionTo(RunStatusAbandoned))
	assert.False(t, RunStatusActive.CanTransitionTo(RunStatusActive))
	assert.False(t, RunStatusCompleted.CanTransitionTo(RunStatusAbandoned))
	assert.False(t, RunStatusAbandoned.CanTransitionTo(RunStatusCompleted))
}

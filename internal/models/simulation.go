package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StoryDefinitionVersion текущая версия схемы определения истории.
const StoryDefinitionVersion = 1

// Simulation is a narrative definition that runs are played against.
// Story хранится как JSON и разбирается только через ParseStoryDefinition.
type Simulation struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	Title     string          `db:"title" json:"title"`
	Story     json.RawMessage `db:"story" json:"story,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// StoryCharacter describes one character of a story definition.
type StoryCharacter struct {
	Name        string `json:"name" yaml:"name"`
	Role        string `json:"role" yaml:"role"`
	Personality string `json:"personality" yaml:"personality"`
	Backstory   string `json:"backstory" yaml:"backstory"`
}

// StoryArc is the planned shape of a story.
type StoryArc struct {
	Beginning  string `json:"beginning" yaml:"beginning"`
	Conflict   string `json:"conflict" yaml:"conflict"`
	Climax     string `json:"climax" yaml:"climax"`
	Resolution string `json:"resolution" yaml:"resolution"`
}

// StoryDefinition is the typed story record of a simulation.
type StoryDefinition struct {
	Version        int              `json:"version" yaml:"version"`
	Title          string           `json:"title" yaml:"title"`
	Description    string           `json:"description" yaml:"description"`
	Genre          string           `json:"genre" yaml:"genre"`
	Setting        string           `json:"setting" yaml:"setting"`
	InitialScene   string           `json:"initialScene" yaml:"initialScene"`
	Characters     []StoryCharacter `json:"characters" yaml:"characters"`
	StoryArc       StoryArc         `json:"storyArc" yaml:"storyArc"`
	EstimatedTurns int              `json:"estimatedTurns" yaml:"estimatedTurns"`
	ImageStyle     string           `json:"imageStyle" yaml:"imageStyle"`
	Tone           string           `json:"tone" yaml:"tone"`
}

// Validate проверяет обязательные поля определения.
func (d *StoryDefinition) Validate() error {
	var problems []string
	if d.Version < 0 || d.Version > StoryDefinitionVersion {
		problems = append(problems, fmt.Sprintf("unsupported version %d", d.Version))
	}
	if strings.TrimSpace(d.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(d.InitialScene) == "" {
		problems = append(problems, "initialScene is required")
	}
	if strings.TrimSpace(d.ImageStyle) == "" {
		problems = append(problems, "imageStyle is required")
	}
	if d.EstimatedTurns <= 0 {
		problems = append(problems, "estimatedTurns must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrStoryDefinitionInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// ParseStoryDefinition decodes and validates a stored story definition.
// Unknown fields and trailing data are rejected; an empty payload is an error, not an empty story.
func ParseStoryDefinition(raw []byte) (*StoryDefinition, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrStoryDefinitionInvalid)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var def StoryDefinition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoryDefinitionInvalid, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after definition", ErrStoryDefinitionInvalid)
	}
	if def.Version == 0 {
		def.Version = StoryDefinitionVersion
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// SuggestedOptionsCount is the exact number of next actions stored with every turn.
const SuggestedOptionsCount = 4

// Turn is one user action and the generated response within a run. Turns are immutable.
type Turn struct {
	ID               uuid.UUID `db:"id" json:"id"`
	RunID            uuid.UUID `db:"run_id" json:"run_id"`
	TurnNumber       int       `db:"turn_number" json:"turn_number"`
	UserPrompt       string    `db:"user_prompt" json:"user_prompt"`
	AIResponse       string    `db:"ai_response" json:"ai_response"`
	ImageURL         string    `db:"image_url" json:"image_url,omitempty"`
	ImagePrompt      string    `db:"image_prompt" json:"image_prompt,omitempty"`
	SuggestedOptions []string  `db:"suggested_options" json:"suggested_options"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

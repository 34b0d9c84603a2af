package models

import (
	"time"

	"github.com/google/uuid"
)

type VideoStatus string

const (
	VideoStatusGenerating VideoStatus = "generating"
	VideoStatusCompleted  VideoStatus = "completed"
	VideoStatusFailed     VideoStatus = "failed"
)

// IsTerminal returns true for completed and failed; both are absorbing.
func (s VideoStatus) IsTerminal() bool {
	return s == VideoStatusCompleted || s == VideoStatusFailed
}

// Video is one highlight-render job for a run.
// JobHandle хранит сериализованный дескриптор операции провайдера, пока статус generating.
type Video struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	RunID            uuid.UUID   `db:"run_id" json:"run_id"`
	Status           VideoStatus `db:"status" json:"status"`
	GenerationPrompt string      `db:"generation_prompt" json:"generation_prompt"`
	JobHandle        string      `db:"job_handle" json:"-"`
	VideoURL         *string     `db:"video_url" json:"video_url,omitempty"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	CompletedAt      *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
}

// VideoSummary is a completed video joined with its run, simulation and hologram names.
type VideoSummary struct {
	VideoID         uuid.UUID `db:"id" json:"video_id"`
	RunID           uuid.UUID `db:"run_id" json:"run_id"`
	SimulationID    uuid.UUID `db:"simulation_id" json:"simulation_id"`
	SimulationTitle string    `db:"simulation_title" json:"simulation_title"`
	HologramName    string    `db:"hologram_name" json:"hologram_name"`
	VideoURL        string    `db:"video_url" json:"video_url"`
	CompletedAt     time.Time `db:"completed_at" json:"completed_at"`
}

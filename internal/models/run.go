package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus определяет состояние прохождения.
type RunStatus string

const (
	RunStatusActive    RunStatus = "active"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAbandoned RunStatus = "abandoned"
)

// IsTerminal сообщает, что из статуса нет переходов.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusAbandoned
}

// CanTransitionTo проверяет допустимость перехода active -> completed|abandoned.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	return s == RunStatusActive && next.IsTerminal()
}

// Run is one playthrough of a simulation's story.
type Run struct {
	ID           uuid.UUID `db:"id" json:"id"`
	SimulationID uuid.UUID `db:"simulation_id" json:"simulation_id"`
	HologramID   uuid.UUID `db:"hologram_id" json:"hologram_id"`
	Status       RunStatus `db:"status" json:"status"`
	CurrentTurn  int       `db:"current_turn" json:"current_turn"`
	Title        *string   `db:"title" json:"title,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// OpeningTurnNumber номер первого хода, создаваемого при старте прохождения.
const OpeningTurnNumber = 0

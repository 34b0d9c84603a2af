package models

import (
	"time"

	"github.com/google/uuid"
)

// Hologram is a character definition that can be played in runs of its simulation.
type Hologram struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	SimulationID       uuid.UUID `db:"simulation_id" json:"simulation_id"`
	Name               string    `db:"name" json:"name"`
	ActingInstructions []string  `db:"acting_instructions" json:"acting_instructions"`
	Descriptions       []string  `db:"descriptions" json:"descriptions"`
	Wardrobe           []string  `db:"wardrobe" json:"wardrobe"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// HologramAction is the typed intent extracted from a free-text hologram command.
type HologramAction string

const (
	HologramActionCreate   HologramAction = "create"
	HologramActionUpdate   HologramAction = "update"
	HologramActionRemove   HologramAction = "remove"
	HologramActionTransfer HologramAction = "transfer"
)

// Valid reports whether the action belongs to the fixed action set.
func (a HologramAction) Valid() bool {
	switch a {
	case HologramActionCreate, HologramActionUpdate, HologramActionRemove, HologramActionTransfer:
		return true
	}
	return false
}

// HologramCommand результат классификации команды.
type HologramCommand struct {
	Action         HologramAction `json:"action"`
	TargetHologram string         `json:"target_hologram,omitempty"`
}

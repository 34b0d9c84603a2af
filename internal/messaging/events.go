package messaging

import (
	"time"

	"simulation-server/internal/models"

	"github.com/google/uuid"
)

// EventType тип доменного события в конверте сообщения.
type EventType string

const (
	EventTurnCreated        EventType = "turn.created"
	EventVideoStatusChanged EventType = "video.status_changed"
)

// Envelope общий формат сообщения в очереди событий.
type Envelope struct {
	EventID    uuid.UUID `json:"event_id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// TurnCreatedEvent публикуется после сохранения хода.
type TurnCreatedEvent struct {
	RunID        uuid.UUID `json:"run_id"`
	SimulationID uuid.UUID `json:"simulation_id"`
	TurnID       uuid.UUID `json:"turn_id"`
	TurnNumber   int       `json:"turn_number"`
	HasImage     bool      `json:"has_image"`
}

// VideoStatusChangedEvent публикуется при создании видео и при каждом терминальном переходе.
type VideoStatusChangedEvent struct {
	VideoID  uuid.UUID          `json:"video_id"`
	RunID    uuid.UUID          `json:"run_id"`
	Status   models.VideoStatus `json:"status"`
	VideoURL string             `json:"video_url,omitempty"`
}

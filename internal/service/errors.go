package service

import (
	"fmt"

	"simulation-server/internal/models"
)

// Сообщения ошибок, которые видит клиент.
var (
	ErrRunNotActive         = fmt.Errorf("%w: run is not active", models.ErrInvalidState)
	ErrRunNotCompleted      = fmt.Errorf("%w: run must be completed before generating video", models.ErrInvalidState)
	ErrRunHasNoTurns        = fmt.Errorf("%w: run has no turns to compile into a video", models.ErrInvalidState)
	ErrVideoExists          = fmt.Errorf("%w: video already exists for this run", models.ErrAlreadyExists)
	ErrVideoNotReady        = fmt.Errorf("%w: video not ready for download", models.ErrInvalidState)
	ErrEmptyPrompt          = fmt.Errorf("%w: user prompt is required", models.ErrInvalidInput)
	ErrInvalidRunTransition = fmt.Errorf("%w: status may only be set to completed or abandoned", models.ErrInvalidInput)
	ErrNoStoryDefinition    = fmt.Errorf("%w: simulation has no story definition", models.ErrInvalidInput)
)

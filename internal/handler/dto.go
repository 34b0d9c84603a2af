package handler

// --- Запросы ---

type startRunRequest struct {
	HologramID string `json:"hologram_id" validate:"required,uuid"`
}

type submitTurnRequest struct {
	Prompt string `json:"prompt" validate:"required,max=4000"`
}

// updateRunRequest поля без значения не меняются.
type updateRunRequest struct {
	Status *string `json:"status" validate:"omitempty,oneof=completed abandoned"`
	Title  *string `json:"title" validate:"omitempty,max=200"`
}

type hologramCommandRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}

// --- Ответы ---

type healthResponse struct {
	Status string `json:"status"`
}

type listResponse[T any] struct {
	Data []T `json:"data"`
}

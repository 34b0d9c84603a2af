package repository

import (
	"context"
	"embed"
	"time"

	"simulation-server/internal/models"

	"github.com/google/uuid"
)

// MigrationsFS содержит SQL-миграции схемы.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

// MigrationsPath путь к миграциям внутри MigrationsFS.
const MigrationsPath = "migrations"

// SimulationRepository определяет методы для работы с симуляциями (только чтение и посев).
type SimulationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Simulation, error)
	Upsert(ctx context.Context, sim *models.Simulation) error
}

// HologramRepository определяет методы для работы с персонажами.
type HologramRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Hologram, error)
	ListBySimulationID(ctx context.Context, simulationID uuid.UUID) ([]*models.Hologram, error)
	Upsert(ctx context.Context, h *models.Hologram) error
}

// RunRepository определяет методы для работы с прохождениями.
type RunRepository interface {
	// CreateWithOpeningTurn сохраняет прохождение и его нулевой ход одной транзакцией.
	CreateWithOpeningTurn(ctx context.Context, run *models.Run, opening *models.Turn) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListBySimulationID(ctx context.Context, simulationID uuid.UUID) ([]*models.Run, error)
	// UpdateStatus переводит прохождение из from в to; ErrInvalidState, если статус уже другой.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.RunStatus) error
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) error
	// Delete удаляет прохождение вместе с ходами и видео.
	Delete(ctx context.Context, id uuid.UUID) error
}

// TurnRepository определяет методы для работы с ходами.
type TurnRepository interface {
	// AppendTurn атомарно назначает turn_number = current_turn + 1, сохраняет ход и продвигает счетчик.
	AppendTurn(ctx context.Context, turn *models.Turn) (*models.Turn, error)
	ListByRunID(ctx context.Context, runID uuid.UUID) ([]*models.Turn, error)
	// ListRecentByRunID возвращает последние limit ходов по возрастанию номера.
	ListRecentByRunID(ctx context.Context, runID uuid.UUID, limit int) ([]*models.Turn, error)
}

// VideoRepository определяет методы для работы с видео.
type VideoRepository interface {
	// Create возвращает ErrAlreadyExists, если у прохождения уже есть не-failed видео.
	Create(ctx context.Context, video *models.Video) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error)
	GetLatestByRunID(ctx context.Context, runID uuid.UUID) (*models.Video, error)
	ListCompleted(ctx context.Context) ([]*models.VideoSummary, error)
	// MarkCompleted и MarkFailed срабатывают только из generating и сообщают, выиграл ли вызов переход.
	MarkCompleted(ctx context.Context, id uuid.UUID, videoURL string, completedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
}

// Store объединяет все репозитории одного хранилища.
type Store struct {
	Simulations SimulationRepository
	Holograms   HologramRepository
	Runs        RunRepository
	Turns       TurnRepository
	Videos      VideoRepository
}

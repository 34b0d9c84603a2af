package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"simulation-server/internal/models"
	"simulation-server/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxTitleLength ограничение на пользовательское название прохождения.
const maxTitleLength = 200

// RunDetails is a run together with everything a client needs to render it.
type RunDetails struct {
	Run      *models.Run      `json:"run"`
	Turns    []*models.Turn   `json:"turns"`
	Hologram *models.Hologram `json:"hologram"`
	Video    *models.Video    `json:"video,omitempty"`
}

// UpdateRunInput содержит изменяемые поля; nil означает «не менять».
type UpdateRunInput struct {
	Status *models.RunStatus
	Title  *string
}

// RunService manages the run lifecycle: active -> completed | abandoned.
type RunService interface {
	StartRun(ctx context.Context, simulationID, hologramID uuid.UUID) (*RunDetails, error)
	GetRunDetails(ctx context.Context, simulationID, runID uuid.UUID) (*RunDetails, error)
	ListRuns(ctx context.Context, simulationID uuid.UUID) ([]*models.Run, error)
	UpdateRun(ctx context.Context, simulationID, runID uuid.UUID, input UpdateRunInput) (*models.Run, error)
	DeleteRun(ctx context.Context, simulationID, runID uuid.UUID) error
	ListHolograms(ctx context.Context, simulationID uuid.UUID) ([]*models.Hologram, error)
}

type runServiceImpl struct {
	store  *repository.Store
	turns  TurnEngine
	logger *zap.Logger
}

// NewRunService creates a new RunService.
func NewRunService(store *repository.Store, turns TurnEngine, logger *zap.Logger) RunService {
	return &runServiceImpl{store: store, turns: turns, logger: logger.Named("RunService")}
}

func (s *runServiceImpl) StartRun(ctx context.Context, simulationID, hologramID uuid.UUID) (*RunDetails, error) {
	log := s.logger.With(zap.String("simulationID", simulationID.String()), zap.String("hologramID", hologramID.String()))

	sc, err := loadStoryContext(ctx, s.store, simulationID, hologramID)
	if err != nil {
		log.Warn("Cannot start run", zap.Error(err))
		return nil, err
	}

	now := time.Now().UTC()
	run := &models.Run{
		ID:           uuid.New(),
		SimulationID: simulationID,
		HologramID:   hologramID,
		Status:       models.RunStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	opening := s.turns.OpeningTurn(ctx, run.ID, sc.story, sc.hologram)

	if err := s.store.Runs.CreateWithOpeningTurn(ctx, run, opening); err != nil {
		log.Error("Failed to create run", zap.Error(err))
		return nil, err
	}
	log.Info("Run started", zap.String("runID", run.ID.String()), zap.Bool("hasImage", opening.ImageURL != ""))
	return &RunDetails{Run: run, Turns: []*models.Turn{opening}, Hologram: sc.hologram}, nil
}

func (s *runServiceImpl) GetRunDetails(ctx context.Context, simulationID, runID uuid.UUID) (*RunDetails, error) {
	run, err := getRunInSimulation(ctx, s.store, simulationID, runID)
	if err != nil {
		return nil, err
	}
	turns, err := s.store.Turns.ListByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	hologram, err := s.store.Holograms.GetByID(ctx, run.HologramID)
	if err != nil {
		return nil, err
	}
	details := &RunDetails{Run: run, Turns: turns, Hologram: hologram}

	video, err := s.store.Videos.GetLatestByRunID(ctx, runID)
	switch {
	case err == nil:
		details.Video = video
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}
	return details, nil
}

func (s *runServiceImpl) ListRuns(ctx context.Context, simulationID uuid.UUID) ([]*models.Run, error) {
	if _, err := s.store.Simulations.GetByID(ctx, simulationID); err != nil {
		return nil, err
	}
	runs, err := s.store.Runs.ListBySimulationID(ctx, simulationID)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []*models.Run{}
	}
	return runs, nil
}

func (s *runServiceImpl) UpdateRun(ctx context.Context, simulationID, runID uuid.UUID, input UpdateRunInput) (*models.Run, error) {
	if input.Status == nil && input.Title == nil {
		return nil, fmt.Errorf("%w: nothing to update", models.ErrInvalidInput)
	}
	var title string
	if input.Title != nil {
		title = strings.TrimSpace(*input.Title)
		if len([]rune(title)) > maxTitleLength {
			return nil, fmt.Errorf("%w: title is longer than %d characters", models.ErrInvalidInput, maxTitleLength)
		}
	}
	if input.Status != nil && !input.Status.IsTerminal() {
		return nil, ErrInvalidRunTransition
	}

	run, err := getRunInSimulation(ctx, s.store, simulationID, runID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(zap.String("runID", runID.String()))

	if input.Status != nil && *input.Status != run.Status {
		if !run.Status.CanTransitionTo(*input.Status) {
			return nil, fmt.Errorf("%w: run is %s and cannot become %s", models.ErrInvalidState, run.Status, *input.Status)
		}
		// Условный переход: конкурентное изменение статуса дает ErrInvalidState
		if err := s.store.Runs.UpdateStatus(ctx, runID, models.RunStatusActive, *input.Status); err != nil {
			return nil, err
		}
		log.Info("Run status changed", zap.String("from", string(run.Status)), zap.String("to", string(*input.Status)))
	}
	if input.Title != nil {
		if err := s.store.Runs.UpdateTitle(ctx, runID, title); err != nil {
			return nil, err
		}
	}
	return s.store.Runs.GetByID(ctx, runID)
}

func (s *runServiceImpl) DeleteRun(ctx context.Context, simulationID, runID uuid.UUID) error {
	if _, err := getRunInSimulation(ctx, s.store, simulationID, runID); err != nil {
		return err
	}
	if err := s.store.Runs.Delete(ctx, runID); err != nil {
		s.logger.Error("Failed to delete run", zap.String("runID", runID.String()), zap.Error(err))
		return err
	}
	return nil
}

func (s *runServiceImpl) ListHolograms(ctx context.Context, simulationID uuid.UUID) ([]*models.Hologram, error) {
	if _, err := s.store.Simulations.GetByID(ctx, simulationID); err != nil {
		return nil, err
	}
	holograms, err := s.store.Holograms.ListBySimulationID(ctx, simulationID)
	if err != nil {
		return nil, err
	}
	if holograms == nil {
		holograms = []*models.Hologram{}
	}
	return holograms, nil
}

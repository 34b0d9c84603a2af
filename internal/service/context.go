package service

import (
	"context"
	"errors"
	"fmt"

	"simulation-server/internal/models"
	"simulation-server/internal/repository"

	"github.com/google/uuid"
)

// storyContext то, что ход и стартовый ход читают из симуляции и персонажа.
type storyContext struct {
	simulation *models.Simulation
	story      *models.StoryDefinition
	hologram   *models.Hologram
}

// getRunInSimulation загружает прохождение и проверяет, что оно принадлежит симуляции.
func getRunInSimulation(ctx context.Context, store *repository.Store, simulationID, runID uuid.UUID) (*models.Run, error) {
	run, err := store.Runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.SimulationID != simulationID {
		return nil, fmt.Errorf("run %s in simulation %s: %w", runID, simulationID, models.ErrNotFound)
	}
	return run, nil
}

// loadStoryContext читает симуляцию, разбирает определение истории и загружает персонажа.
func loadStoryContext(ctx context.Context, store *repository.Store, simulationID, hologramID uuid.UUID) (*storyContext, error) {
	sim, err := store.Simulations.GetByID(ctx, simulationID)
	if err != nil {
		return nil, err
	}
	if len(sim.Story) == 0 || string(sim.Story) == "null" {
		return nil, ErrNoStoryDefinition
	}
	story, err := models.ParseStoryDefinition(sim.Story)
	if err != nil {
		return nil, fmt.Errorf("simulation %s: %w", simulationID, err)
	}
	hologram, err := store.Holograms.GetByID(ctx, hologramID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("hologram %s: %w", hologramID, models.ErrNotFound)
		}
		return nil, err
	}
	if hologram.SimulationID != simulationID {
		return nil, fmt.Errorf("%w: hologram %s does not belong to simulation %s", models.ErrInvalidInput, hologramID, simulationID)
	}
	return &storyContext{simulation: sim, story: story, hologram: hologram}, nil
}

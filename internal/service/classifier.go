package service

import (
	"context"
	"fmt"
	"strings"

	"simulation-server/internal/generation"
	"simulation-server/internal/models"
	"simulation-server/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ключевые слова эвристики в порядке приоритета действий.
var actionKeywords = []struct {
	action models.HologramAction
	words  []string
}{
	{models.HologramActionCreate, []string{"create", "add", "new"}},
	{models.HologramActionUpdate, []string{"update", "modify", "change"}},
	{models.HologramActionRemove, []string{"remove", "delete"}},
	{models.HologramActionTransfer, []string{"transfer", "move"}},
}

// CommandClassifier turns free text into a hologram command. It never fails on ambiguous text:
// the structured tier falls back to keyword matching.
type CommandClassifier struct {
	extractor generation.CommandExtractor // nil: только эвристика
	logger    *zap.Logger
}

// NewCommandClassifier creates a classifier. extractor may be nil.
func NewCommandClassifier(extractor generation.CommandExtractor, logger *zap.Logger) *CommandClassifier {
	return &CommandClassifier{extractor: extractor, logger: logger.Named("CommandClassifier")}
}

// Classify returns the command for text given the names of existing holograms.
func (c *CommandClassifier) Classify(ctx context.Context, text string, known []string) models.HologramCommand {
	if c.extractor != nil {
		cmd, err := c.extractor.ExtractCommand(ctx, text, known)
		if err == nil && cmd != nil && cmd.Action.Valid() {
			return *cmd
		}
		c.logger.Warn("Structured command extraction failed, using keyword matching", zap.Error(err))
		generation.MetricsRecordFallback(generation.CapabilityCommand)
	}
	return ClassifyByKeywords(text, known)
}

// ClassifyByKeywords is the heuristic tier. A verb contained in the text decides the action
// (create, then update, remove, transfer); a known name mentioned
// in the text becomes the target (never for create); a bare known name means update.
func ClassifyByKeywords(text string, known []string) models.HologramCommand {
	lower := strings.ToLower(text)

	var mentioned string
	for _, name := range known {
		n := strings.ToLower(strings.TrimSpace(name))
		if n != "" && strings.Contains(lower, n) {
			mentioned = name
			break
		}
	}

	for _, group := range actionKeywords {
		for _, w := range group.words {
			// Подстрока: ловит и формы глагола ("removed", "moved")
			if !strings.Contains(lower, w) {
				continue
			}
			cmd := models.HologramCommand{Action: group.action}
			if group.action != models.HologramActionCreate {
				cmd.TargetHologram = mentioned
			}
			return cmd
		}
	}
	if mentioned != "" {
		return models.HologramCommand{Action: models.HologramActionUpdate, TargetHologram: mentioned}
	}
	return models.HologramCommand{Action: models.HologramActionCreate}
}

// HologramCommandService classifies commands against the holograms of a simulation.
type HologramCommandService interface {
	ClassifyCommand(ctx context.Context, simulationID uuid.UUID, text string) (*models.HologramCommand, error)
}

type hologramCommandServiceImpl struct {
	store      *repository.Store
	classifier *CommandClassifier
}

// NewHologramCommandService creates a new HologramCommandService.
func NewHologramCommandService(store *repository.Store, classifier *CommandClassifier) HologramCommandService {
	return &hologramCommandServiceImpl{store: store, classifier: classifier}
}

func (s *hologramCommandServiceImpl) ClassifyCommand(ctx context.Context, simulationID uuid.UUID, text string) (*models.HologramCommand, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: command text is required", models.ErrInvalidInput)
	}
	if _, err := s.store.Simulations.GetByID(ctx, simulationID); err != nil {
		return nil, err
	}
	holograms, err := s.store.Holograms.ListBySimulationID(ctx, simulationID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(holograms))
	for _, h := range holograms {
		names = append(names, h.Name)
	}
	cmd := s.classifier.Classify(ctx, text, names)
	return &cmd, nil
}

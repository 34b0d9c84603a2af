package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"simulation-server/internal/generation"
	"simulation-server/internal/locker"
	"simulation-server/internal/messaging"
	"simulation-server/internal/models"
	"simulation-server/internal/repository"
	"simulation-server/internal/retry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sceneExcerptLen сколько символов повествования уходит в описание сцены для картинки.
const sceneExcerptLen = 500

// TurnEngine creates turns: context building, generation with fallbacks and numbered persistence.
type TurnEngine interface {
	// SubmitTurn generates and persists the next turn of an active run.
	SubmitTurn(ctx context.Context, simulationID, runID uuid.UUID, userPrompt string) (*models.Turn, error)
	// OpeningTurn builds turn 0 from the story's initial scene without a model call.
	OpeningTurn(ctx context.Context, runID uuid.UUID, story *models.StoryDefinition, hologram *models.Hologram) *models.Turn
}

type turnEngineImpl struct {
	store     *repository.Store
	narrative generation.NarrativeGenerator
	images    generation.ImageGenerator
	retry     *retry.Executor
	locker    locker.RunLocker
	publisher messaging.EventPublisher
	logger    *zap.Logger
}

// NewTurnEngine creates a new TurnEngine.
func NewTurnEngine(
	store *repository.Store,
	backend *generation.Backend,
	executor *retry.Executor,
	runLocker locker.RunLocker,
	publisher messaging.EventPublisher,
	logger *zap.Logger,
) TurnEngine {
	return &turnEngineImpl{
		store:     store,
		narrative: backend.Narrative,
		images:    backend.Images,
		retry:     executor,
		locker:    runLocker,
		publisher: publisher,
		logger:    logger.Named("TurnEngine"),
	}
}

func (e *turnEngineImpl) SubmitTurn(ctx context.Context, simulationID, runID uuid.UUID, userPrompt string) (*models.Turn, error) {
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return nil, ErrEmptyPrompt
	}
	log := e.logger.With(zap.String("runID", runID.String()))

	// Один ход на прохождение одновременно; номер все равно назначает транзакция репозитория
	unlock, err := e.locker.Lock(ctx, runID)
	if err != nil {
		log.Warn("Failed to acquire run lock", zap.Error(err))
		return nil, err
	}
	defer unlock()

	run, err := getRunInSimulation(ctx, e.store, simulationID, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != models.RunStatusActive {
		log.Info("Turn rejected: run is not active", zap.String("status", string(run.Status)))
		return nil, ErrRunNotActive
	}
	sc, err := loadStoryContext(ctx, e.store, run.SimulationID, run.HologramID)
	if err != nil {
		return nil, err
	}
	history, err := e.store.Turns.ListRecentByRunID(ctx, run.ID, generation.HistoryWindow)
	if err != nil {
		return nil, err
	}

	storyCtx := generation.StoryContext{
		Story:      sc.story,
		Hologram:   sc.hologram,
		History:    history,
		TurnNumber: run.CurrentTurn + 1,
		UserAction: userPrompt,
	}

	// Без повествования хода нет
	narrative, err := retry.Do(ctx, e.retry, "generate_narrative", func(ctx context.Context) (*generation.Narrative, error) {
		return e.narrative.GenerateNarrative(ctx, storyCtx)
	})
	if err != nil {
		log.Error("Narrative generation failed", zap.Error(err))
		return nil, fmt.Errorf("generate narrative: %w", err)
	}

	options := e.generateOptions(ctx, log, storyCtx, narrative.Text)

	turn := &models.Turn{
		ID:               uuid.New(),
		RunID:            run.ID,
		UserPrompt:       userPrompt,
		AIResponse:       narrative.Text,
		SuggestedOptions: options,
	}
	turn.ImageURL, turn.ImagePrompt = e.generateImage(ctx, log, turn.ID, narrative.Text, sc, generation.RecentImagePrompts(history))

	persisted, err := e.store.Turns.AppendTurn(ctx, turn)
	if err != nil {
		log.Error("Failed to persist turn", zap.Error(err))
		return nil, err
	}
	log.Info("Turn created",
		zap.Int("turnNumber", persisted.TurnNumber),
		zap.Bool("hasImage", persisted.ImageURL != ""),
		zap.Int("totalTokens", narrative.Usage.TotalTokens),
	)
	e.publishTurnCreated(ctx, run, persisted)
	return persisted, nil
}

// generateOptions не бывает фатальной: при ошибке подставляется фиксированный список.
func (e *turnEngineImpl) generateOptions(ctx context.Context, log *zap.Logger, sc generation.StoryContext, narrative string) []string {
	options, err := retry.Do(ctx, e.retry, "generate_options", func(ctx context.Context) ([]string, error) {
		return e.narrative.GenerateOptions(ctx, sc, narrative)
	})
	if err != nil {
		log.Warn("Options generation failed, using fallback options", zap.Error(err))
		generation.MetricsRecordFallback(generation.CapabilityOptions)
		return append([]string(nil), generation.FallbackOptions...)
	}
	return options
}

// generateImage возвращает пустые url и prompt, если картинку получить не удалось.
func (e *turnEngineImpl) generateImage(
	ctx context.Context,
	log *zap.Logger,
	turnID uuid.UUID,
	scene string,
	sc *storyContext,
	previousPrompts []string,
) (string, string) {
	img, err := e.images.GenerateImage(ctx, generation.ImageRequest{
		AssetID:          turnID.String(),
		SceneDescription: generation.Excerpt(scene, sceneExcerptLen),
		CharacterContext: generation.CharacterContext(sc.hologram),
		PreviousPrompts:  previousPrompts,
		Style:            sc.story.ImageStyle,
	})
	if err != nil {
		log.Warn("Image generation failed, turn is created without image", zap.Error(err))
		return "", ""
	}
	return img.URL, img.Prompt
}

func (e *turnEngineImpl) OpeningTurn(ctx context.Context, runID uuid.UUID, story *models.StoryDefinition, hologram *models.Hologram) *models.Turn {
	log := e.logger.With(zap.String("runID", runID.String()))
	turn := &models.Turn{
		ID:               uuid.New(),
		RunID:            runID,
		TurnNumber:       models.OpeningTurnNumber,
		UserPrompt:       generation.OpeningUserPrompt,
		AIResponse:       story.InitialScene,
		SuggestedOptions: append([]string(nil), generation.OpeningOptions...),
		CreatedAt:        time.Now().UTC(),
	}
	turn.ImageURL, turn.ImagePrompt = e.generateImage(ctx, log, turn.ID, story.InitialScene, &storyContext{story: story, hologram: hologram}, nil)
	return turn
}

func (e *turnEngineImpl) publishTurnCreated(ctx context.Context, run *models.Run, turn *models.Turn) {
	err := e.publisher.PublishTurnCreated(ctx, messaging.TurnCreatedEvent{
		RunID:        run.ID,
		SimulationID: run.SimulationID,
		TurnID:       turn.ID,
		TurnNumber:   turn.TurnNumber,
		HasImage:     turn.ImageURL != "",
	})
	if err != nil {
		e.logger.Warn("Failed to publish turn.created event",
			zap.String("runID", run.ID.String()),
			zap.Int("turnNumber", turn.TurnNumber),
			zap.Error(err),
		)
	}
}

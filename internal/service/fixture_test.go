package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"simulation-server/internal/generation"
	"simulation-server/internal/locker"
	"simulation-server/internal/messaging"
	"simulation-server/internal/models"
	"simulation-server/internal/repository"
	"simulation-server/internal/retry"
	"simulation-server/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryBlobs реализует storage.BlobStore в памяти.
type memoryBlobs struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func newMemoryBlobs() *memoryBlobs {
	return &memoryBlobs{files: make(map[string][]byte)}
}

func (m *memoryBlobs) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.files[key] = data
	return "https://blobs.test/" + key, nil
}

func (m *memoryBlobs) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memoryBlobs) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	return data, ok
}

func noSleepExecutor(attempts int) *retry.Executor {
	return retry.NewExecutor(
		retry.Policy{MaxAttempts: attempts, BaseDelay: time.Second},
		zap.NewNop(),
		retry.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
}

// fakeBackend собирает детерминированный бэкенд без задержек.
func fakeBackend(blobs *memoryBlobs, executor *retry.Executor) *generation.Backend {
	logger := zap.NewNop()
	return &generation.Backend{
		Narrative: generation.NewStoryteller(generation.FakeTextGenerator{}, generation.StorytellerConfig{Temperature: 0.7, TopP: 0.9}, logger),
		Images:    generation.NewImageService(generation.NewFakeImageRenderer(0, logger), nil, blobs, executor, logger),
		Video:     generation.NewVideoJobs(generation.NewFakeVideoRenderer(0, logger), nil, logger),
		Commands:  generation.NewTextCommandExtractor(generation.FakeTextGenerator{}, logger),
	}
}

type fixture struct {
	ctx      context.Context
	store    *repository.Store
	blobs    *memoryBlobs
	executor *retry.Executor
	locker   locker.RunLocker
	sim      *models.Simulation
	hologram *models.Hologram
}

const testStory = `{
	"version": 1,
	"title": "The Lighthouse",
	"genre": "mystery",
	"setting": "A northern coast",
	"initialScene": "Rain hammers the lantern room as the great lamp sputters and a ship's bell rings below.",
	"characters": [{"name": "Kai", "role": "Keeper", "personality": "gruff", "backstory": "Thirty years on the rock"}],
	"storyArc": {"beginning": "b", "conflict": "c", "climax": "cl", "resolution": "r"},
	"estimatedTurns": 6,
	"imageStyle": "watercolor",
	"tone": "eerie"
}`

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		store:    repository.NewMemoryStore(),
		blobs:    newMemoryBlobs(),
		executor: noSleepExecutor(3),
		locker:   locker.NewLocalLocker(0),
	}
	f.sim = &models.Simulation{ID: uuid.New(), Title: "The Lighthouse", Story: []byte(testStory), CreatedAt: time.Now().UTC()}
	require.NoError(t, f.store.Simulations.Upsert(f.ctx, f.sim))
	f.hologram = &models.Hologram{
		ID:                 uuid.New(),
		SimulationID:       f.sim.ID,
		Name:               "Kai",
		ActingInstructions: []string{"speak softly"},
		Descriptions:       []string{"weathered keeper"},
		Wardrobe:           []string{"oilskin coat"},
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, f.store.Holograms.Upsert(f.ctx, f.hologram))
	return f
}

// seedRun создает прохождение с ходами заданной длины повествования, минуя генерацию.
func (f *fixture) seedRun(t *testing.T, status models.RunStatus, narrativeLens ...int) *models.Run {
	t.Helper()
	now := time.Now().UTC()
	run := &models.Run{
		ID:           uuid.New(),
		SimulationID: f.sim.ID,
		HologramID:   f.hologram.ID,
		Status:       models.RunStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	lens := narrativeLens
	if len(lens) == 0 {
		lens = []int{80}
	}
	opening := &models.Turn{
		ID:               uuid.New(),
		RunID:            run.ID,
		TurnNumber:       models.OpeningTurnNumber,
		UserPrompt:       generation.OpeningUserPrompt,
		AIResponse:       strings.Repeat("a", lens[0]),
		ImagePrompt:      "image prompt 0",
		SuggestedOptions: generation.OpeningOptions,
	}
	require.NoError(t, f.store.Runs.CreateWithOpeningTurn(f.ctx, run, opening))
	for i, n := range lens[1:] {
		_, err := f.store.Turns.AppendTurn(f.ctx, &models.Turn{
			ID:               uuid.New(),
			RunID:            run.ID,
			UserPrompt:       "action",
			AIResponse:       strings.Repeat(string(rune('b'+i)), n),
			ImagePrompt:      "image prompt",
			SuggestedOptions: generation.FallbackOptions,
		})
		require.NoError(t, err)
	}
	if status != models.RunStatusActive {
		require.NoError(t, f.store.Runs.UpdateStatus(f.ctx, run.ID, models.RunStatusActive, status))
	}
	stored, err := f.store.Runs.GetByID(f.ctx, run.ID)
	require.NoError(t, err)
	return stored
}

func (f *fixture) turnEngine(backend *generation.Backend, publisher messaging.EventPublisher) service.TurnEngine {
	return service.NewTurnEngine(f.store, backend, f.executor, f.locker, publisher, zap.NewNop())
}

func (f *fixture) videoService(videos generation.VideoGenerator) service.VideoService {
	return service.NewVideoService(f.store, videos, f.blobs, f.locker, messaging.NoopPublisher{}, zap.NewNop())
}

func (f *fixture) turns(t *testing.T, runID uuid.UUID) []*models.Turn {
	t.Helper()
	turns, err := f.store.Turns.ListByRunID(f.ctx, runID)
	require.NoError(t, err)
	return turns
}

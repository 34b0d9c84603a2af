package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"simulation-server/internal/models"

	"github.com/google/uuid"
)

// MemoryStore хранит все сущности в памяти процесса (STORE_DRIVER=memory и тесты).
// Один мьютекс сериализует все операции, включая назначение номеров ходов.
type MemoryStore struct {
	mu          sync.RWMutex
	simulations map[uuid.UUID]models.Simulation
	holograms   map[uuid.UUID]models.Hologram
	runs        map[uuid.UUID]models.Run
	turns       map[uuid.UUID][]models.Turn // по run_id, по возрастанию turn_number
	videos      map[uuid.UUID]models.Video
}

var (
	_ SimulationRepository = (*memorySimulations)(nil)
	_ HologramRepository   = (*memoryHolograms)(nil)
	_ RunRepository        = (*memoryRuns)(nil)
	_ TurnRepository       = (*memoryTurns)(nil)
	_ VideoRepository      = (*memoryVideos)(nil)
)

// NewMemoryStore создает пустое хранилище и возвращает набор репозиториев над ним.
func NewMemoryStore() *Store {
	m := &MemoryStore{
		simulations: make(map[uuid.UUID]models.Simulation),
		holograms:   make(map[uuid.UUID]models.Hologram),
		runs:        make(map[uuid.UUID]models.Run),
		turns:       make(map[uuid.UUID][]models.Turn),
		videos:      make(map[uuid.UUID]models.Video),
	}
	return &Store{
		Simulations: (*memorySimulations)(m),
		Holograms:   (*memoryHolograms)(m),
		Runs:        (*memoryRuns)(m),
		Turns:       (*memoryTurns)(m),
		Videos:      (*memoryVideos)(m),
	}
}

func notFound(kind string, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string(nil), s...)
}

func cloneTurn(t models.Turn) *models.Turn {
	t.SuggestedOptions = cloneStrings(t.SuggestedOptions)
	return &t
}

// --- simulations ---

type memorySimulations MemoryStore

func (m *memorySimulations) GetByID(_ context.Context, id uuid.UUID) (*models.Simulation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sim, ok := m.simulations[id]
	if !ok {
		return nil, notFound("simulation", id)
	}
	sim.Story = append([]byte(nil), sim.Story...)
	return &sim, nil
}

func (m *memorySimulations) Upsert(_ context.Context, sim *models.Simulation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *sim
	stored.Story = append([]byte(nil), sim.Story...)
	if existing, ok := m.simulations[sim.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	m.simulations[sim.ID] = stored
	return nil
}

// --- holograms ---

type memoryHolograms MemoryStore

func cloneHologram(h models.Hologram) *models.Hologram {
	h.ActingInstructions = cloneStrings(h.ActingInstructions)
	h.Descriptions = cloneStrings(h.Descriptions)
	h.Wardrobe = cloneStrings(h.Wardrobe)
	return &h
}

func (m *memoryHolograms) GetByID(_ context.Context, id uuid.UUID) (*models.Hologram, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.holograms[id]
	if !ok {
		return nil, notFound("hologram", id)
	}
	return cloneHologram(h), nil
}

func (m *memoryHolograms) ListBySimulationID(_ context.Context, simulationID uuid.UUID) ([]*models.Hologram, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Hologram
	for _, h := range m.holograms {
		if h.SimulationID == simulationID {
			out = append(out, cloneHologram(h))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *memoryHolograms) Upsert(_ context.Context, h *models.Hologram) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.simulations[h.SimulationID]; !ok {
		return fmt.Errorf("%w: hologram references unknown simulation %s", models.ErrNotFound, h.SimulationID)
	}
	stored := *cloneHologram(*h)
	if existing, ok := m.holograms[h.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	m.holograms[h.ID] = stored
	return nil
}

// --- runs ---

type memoryRuns MemoryStore

func (m *memoryRuns) CreateWithOpeningTurn(_ context.Context, run *models.Run, opening *models.Turn) error {
	if opening.TurnNumber != models.OpeningTurnNumber || opening.RunID != run.ID {
		return fmt.Errorf("%w: opening turn must be turn %d of run %s", models.ErrInvalidInput, models.OpeningTurnNumber, run.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("%w: run %s", models.ErrAlreadyExists, run.ID)
	}
	if _, ok := m.simulations[run.SimulationID]; !ok {
		return fmt.Errorf("%w: run references unknown simulation %s", models.ErrNotFound, run.SimulationID)
	}
	if _, ok := m.holograms[run.HologramID]; !ok {
		return fmt.Errorf("%w: run references unknown hologram %s", models.ErrNotFound, run.HologramID)
	}
	if opening.CreatedAt.IsZero() {
		opening.CreatedAt = time.Now().UTC()
	}
	run.CurrentTurn = models.OpeningTurnNumber
	m.runs[run.ID] = *run
	m.turns[run.ID] = []models.Turn{*cloneTurn(*opening)}
	return nil
}

func (m *memoryRuns) GetByID(_ context.Context, id uuid.UUID) (*models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, notFound("run", id)
	}
	return &run, nil
}

func (m *memoryRuns) ListBySimulationID(_ context.Context, simulationID uuid.UUID) ([]*models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Run
	for _, r := range m.runs {
		if r.SimulationID == simulationID {
			run := r
			out = append(out, &run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRuns) UpdateStatus(_ context.Context, id uuid.UUID, from, to models.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return notFound("run", id)
	}
	if run.Status != from {
		return fmt.Errorf("%w: run %s is not %s", models.ErrInvalidState, id, from)
	}
	run.Status = to
	run.UpdatedAt = time.Now().UTC()
	m.runs[id] = run
	return nil
}

func (m *memoryRuns) UpdateTitle(_ context.Context, id uuid.UUID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return notFound("run", id)
	}
	run.Title = &title
	run.UpdatedAt = time.Now().UTC()
	m.runs[id] = run
	return nil
}

func (m *memoryRuns) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return notFound("run", id)
	}
	for vid, v := range m.videos {
		if v.RunID == id {
			delete(m.videos, vid)
		}
	}
	delete(m.turns, id)
	delete(m.runs, id)
	return nil
}

// --- turns ---

type memoryTurns MemoryStore

func (m *memoryTurns) AppendTurn(_ context.Context, turn *models.Turn) (*models.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[turn.RunID]
	if !ok {
		return nil, notFound("run", turn.RunID)
	}
	persisted := *cloneTurn(*turn)
	persisted.TurnNumber = run.CurrentTurn + 1
	if persisted.CreatedAt.IsZero() {
		persisted.CreatedAt = time.Now().UTC()
	}
	m.turns[run.ID] = append(m.turns[run.ID], persisted)
	run.CurrentTurn = persisted.TurnNumber
	run.UpdatedAt = time.Now().UTC()
	m.runs[run.ID] = run
	return cloneTurn(persisted), nil
}

func (m *memoryTurns) ListByRunID(_ context.Context, runID uuid.UUID) ([]*models.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.turns[runID]
	out := make([]*models.Turn, 0, len(stored))
	for _, t := range stored {
		out = append(out, cloneTurn(t))
	}
	return out, nil
}

func (m *memoryTurns) ListRecentByRunID(ctx context.Context, runID uuid.UUID, limit int) ([]*models.Turn, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", models.ErrInvalidInput)
	}
	all, _ := m.ListByRunID(ctx, runID)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

// --- videos ---

type memoryVideos MemoryStore

func cloneVideo(v models.Video) *models.Video {
	if v.VideoURL != nil {
		url := *v.VideoURL
		v.VideoURL = &url
	}
	if v.CompletedAt != nil {
		at := *v.CompletedAt
		v.CompletedAt = &at
	}
	return &v
}

func (m *memoryVideos) Create(_ context.Context, v *models.Video) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[v.RunID]; !ok {
		return fmt.Errorf("%w: video references unknown run %s", models.ErrNotFound, v.RunID)
	}
	for _, existing := range m.videos {
		if existing.RunID == v.RunID && existing.Status != models.VideoStatusFailed {
			return fmt.Errorf("%w: run %s already has video %s", models.ErrAlreadyExists, v.RunID, existing.ID)
		}
	}
	m.videos[v.ID] = *cloneVideo(*v)
	return nil
}

func (m *memoryVideos) GetByID(_ context.Context, id uuid.UUID) (*models.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.videos[id]
	if !ok {
		return nil, notFound("video", id)
	}
	return cloneVideo(v), nil
}

func (m *memoryVideos) GetLatestByRunID(_ context.Context, runID uuid.UUID) (*models.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *models.Video
	for _, v := range m.videos {
		if v.RunID != runID {
			continue
		}
		if latest == nil || v.CreatedAt.After(latest.CreatedAt) {
			latest = cloneVideo(v)
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("video for run %s: %w", runID, models.ErrNotFound)
	}
	return latest, nil
}

func (m *memoryVideos) ListCompleted(_ context.Context) ([]*models.VideoSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.VideoSummary
	for _, v := range m.videos {
		if v.Status != models.VideoStatusCompleted || v.VideoURL == nil || v.CompletedAt == nil {
			continue
		}
		run, ok := m.runs[v.RunID]
		if !ok {
			continue
		}
		out = append(out, &models.VideoSummary{
			VideoID:         v.ID,
			RunID:           v.RunID,
			SimulationID:    run.SimulationID,
			SimulationTitle: m.simulations[run.SimulationID].Title,
			HologramName:    m.holograms[run.HologramID].Name,
			VideoURL:        *v.VideoURL,
			CompletedAt:     *v.CompletedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	return out, nil
}

func (m *memoryVideos) MarkCompleted(_ context.Context, id uuid.UUID, videoURL string, completedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return false, notFound("video", id)
	}
	if v.Status != models.VideoStatusGenerating {
		return false, nil
	}
	v.Status = models.VideoStatusCompleted
	v.VideoURL = &videoURL
	v.CompletedAt = &completedAt
	m.videos[id] = v
	return true, nil
}

func (m *memoryVideos) MarkFailed(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return false, notFound("video", id)
	}
	if v.Status != models.VideoStatusGenerating {
		return false, nil
	}
	v.Status = models.VideoStatusFailed
	m.videos[id] = v
	return true, nil
}

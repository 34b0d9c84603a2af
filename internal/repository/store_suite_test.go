package repository_test

import (
	"context"
	"sync"
	"time"

	"simulation-server/internal/models"
	"simulation-server/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

// storeSuite проверяет общие гарантии хранилища; запускается и для памяти, и для PostgreSQL.
type storeSuite struct {
	suite.Suite
	ctx      context.Context
	newStore func() *repository.Store
	store    *repository.Store
}

func (s *storeSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore()
}

// seedRun создает симуляцию, персонажа и прохождение с нулевым ходом.
func (s *storeSuite) seedRun() (*models.Simulation, *models.Hologram, *models.Run) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	sim := &models.Simulation{
		ID:        uuid.New(),
		Title:     "Lighthouse",
		Story:     []byte(`{"title":"Lighthouse","initialScene":"A storm","imageStyle":"ink","estimatedTurns":5}`),
		CreatedAt: now,
	}
	s.Require().NoError(s.store.Simulations.Upsert(s.ctx, sim))

	holo := &models.Hologram{
		ID:                 uuid.New(),
		SimulationID:       sim.ID,
		Name:               "Keeper",
		ActingInstructions: []string{"speak softly"},
		Descriptions:       []string{"old"},
		CreatedAt:          now,
	}
	s.Require().NoError(s.store.Holograms.Upsert(s.ctx, holo))

	run := &models.Run{
		ID:           uuid.New(),
		SimulationID: sim.ID,
		HologramID:   holo.ID,
		Status:       models.RunStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	opening := &models.Turn{
		ID:               uuid.New(),
		RunID:            run.ID,
		TurnNumber:       models.OpeningTurnNumber,
		UserPrompt:       "",
		AIResponse:       "The storm begins.",
		SuggestedOptions: []string{"a", "b", "c", "d"},
		CreatedAt:        now,
	}
	s.Require().NoError(s.store.Runs.CreateWithOpeningTurn(s.ctx, run, opening))
	return sim, holo, run
}

func (s *storeSuite) newTurn(runID uuid.UUID, prompt string) *models.Turn {
	return &models.Turn{
		ID:               uuid.New(),
		RunID:            runID,
		UserPrompt:       prompt,
		AIResponse:       "response to " + prompt,
		SuggestedOptions: []string{"1", "2", "3", "4"},
		CreatedAt:        time.Now().UTC(),
	}
}

func (s *storeSuite) newVideo(runID uuid.UUID, createdAt time.Time) *models.Video {
	return &models.Video{
		ID:               uuid.New(),
		RunID:            runID,
		Status:           models.VideoStatusGenerating,
		GenerationPrompt: "highlights",
		JobHandle:        `{"provider":"fake"}`,
		CreatedAt:        createdAt,
	}
}

func (s *storeSuite) TestCreateRun_OpeningTurnMustBeZero() {
	_, holo, _ := s.seedRun()
	run := &models.Run{ID: uuid.New(), SimulationID: holo.SimulationID, HologramID: holo.ID, Status: models.RunStatusActive}
	bad := &models.Turn{ID: uuid.New(), RunID: run.ID, TurnNumber: 1}

	err := s.store.Runs.CreateWithOpeningTurn(s.ctx, run, bad)
	s.ErrorIs(err, models.ErrInvalidInput)

	_, err = s.store.Runs.GetByID(s.ctx, run.ID)
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *storeSuite) TestCreateRun_UnknownSimulation() {
	run := &models.Run{ID: uuid.New(), SimulationID: uuid.New(), HologramID: uuid.New(), Status: models.RunStatusActive}
	opening := &models.Turn{ID: uuid.New(), RunID: run.ID, TurnNumber: models.OpeningTurnNumber, SuggestedOptions: []string{}}

	err := s.store.Runs.CreateWithOpeningTurn(s.ctx, run, opening)
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *storeSuite) TestAppendTurn_SequentialNumbering() {
	_, _, run := s.seedRun()

	for i, prompt := range []string{"open the door", "climb the stairs"} {
		turn, err := s.store.Turns.AppendTurn(s.ctx, s.newTurn(run.ID, prompt))
		s.Require().NoError(err)
		s.Equal(i+1, turn.TurnNumber)
	}

	turns, err := s.store.Turns.ListByRunID(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Require().Len(turns, 3)
	for i, turn := range turns {
		s.Equal(i, turn.TurnNumber)
	}
	s.Equal("climb the stairs", turns[2].UserPrompt)

	stored, err := s.store.Runs.GetByID(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Equal(2, stored.CurrentTurn)
}

func (s *storeSuite) TestAppendTurn_ConcurrentAppendsGetDistinctNumbers() {
	_, _, run := s.seedRun()
	const writers = 8

	var wg sync.WaitGroup
	numbers := make(chan int, writers)
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			turn, err := s.store.Turns.AppendTurn(s.ctx, s.newTurn(run.ID, "go"))
			if err != nil {
				errs <- err
				return
			}
			numbers <- turn.TurnNumber
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		s.NoError(err)
	}
	seen := make(map[int]bool)
	for n := range numbers {
		s.False(seen[n], "turn number %d assigned twice", n)
		seen[n] = true
	}
	s.Len(seen, writers)
	for n := 1; n <= writers; n++ {
		s.True(seen[n], "missing turn number %d", n)
	}
}

func (s *storeSuite) TestAppendTurn_UnknownRun() {
	_, err := s.store.Turns.AppendTurn(s.ctx, s.newTurn(uuid.New(), "hello"))
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *storeSuite) TestListRecentByRunID() {
	_, _, run := s.seedRun()
	for _, p := range []string{"one", "two", "three"} {
		_, err := s.store.Turns.AppendTurn(s.ctx, s.newTurn(run.ID, p))
		s.Require().NoError(err)
	}

	recent, err := s.store.Turns.ListRecentByRunID(s.ctx, run.ID, 2)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal(2, recent[0].TurnNumber)
	s.Equal(3, recent[1].TurnNumber)

	all, err := s.store.Turns.ListRecentByRunID(s.ctx, run.ID, 10)
	s.Require().NoError(err)
	s.Len(all, 4)

	_, err = s.store.Turns.ListRecentByRunID(s.ctx, run.ID, 0)
	s.ErrorIs(err, models.ErrInvalidInput)
}

func (s *storeSuite) TestUpdateStatus() {
	_, _, run := s.seedRun()

	s.Require().NoError(s.store.Runs.UpdateStatus(s.ctx, run.ID, models.RunStatusActive, models.RunStatusCompleted))

	err := s.store.Runs.UpdateStatus(s.ctx, run.ID, models.RunStatusActive, models.RunStatusAbandoned)
	s.ErrorIs(err, models.ErrInvalidState)

	err = s.store.Runs.UpdateStatus(s.ctx, uuid.New(), models.RunStatusActive, models.RunStatusCompleted)
	s.ErrorIs(err, models.ErrNotFound)

	stored, err := s.store.Runs.GetByID(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Equal(models.RunStatusCompleted, stored.Status)
}

func (s *storeSuite) TestUpdateTitle() {
	_, _, run := s.seedRun()

	s.Require().NoError(s.store.Runs.UpdateTitle(s.ctx, run.ID, "Night watch"))
	stored, err := s.store.Runs.GetByID(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.Title)
	s.Equal("Night watch", *stored.Title)

	s.ErrorIs(s.store.Runs.UpdateTitle(s.ctx, uuid.New(), "x"), models.ErrNotFound)
}

func (s *storeSuite) TestVideo_OneLiveJobPerRun() {
	_, _, run := s.seedRun()
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := s.newVideo(run.ID, now)
	s.Require().NoError(s.store.Videos.Create(s.ctx, first))

	err := s.store.Videos.Create(s.ctx, s.newVideo(run.ID, now.Add(time.Second)))
	s.ErrorIs(err, models.ErrAlreadyExists)

	// После неудачи разрешается новая попытка
	won, err := s.store.Videos.MarkFailed(s.ctx, first.ID)
	s.Require().NoError(err)
	s.True(won)

	second := s.newVideo(run.ID, now.Add(2*time.Second))
	s.Require().NoError(s.store.Videos.Create(s.ctx, second))

	latest, err := s.store.Videos.GetLatestByRunID(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Equal(second.ID, latest.ID)
	s.Equal(models.VideoStatusGenerating, latest.Status)
}

func (s *storeSuite) TestVideo_MarkCompletedWinsOnce() {
	sim, holo, run := s.seedRun()
	video := s.newVideo(run.ID, time.Now().UTC())
	s.Require().NoError(s.store.Videos.Create(s.ctx, video))

	completedAt := time.Now().UTC().Truncate(time.Microsecond)
	won, err := s.store.Videos.MarkCompleted(s.ctx, video.ID, "/blobs/videos/a.mp4", completedAt)
	s.Require().NoError(err)
	s.True(won)

	won, err = s.store.Videos.MarkCompleted(s.ctx, video.ID, "/blobs/videos/b.mp4", completedAt.Add(time.Minute))
	s.Require().NoError(err)
	s.False(won)

	won, err = s.store.Videos.MarkFailed(s.ctx, video.ID)
	s.Require().NoError(err)
	s.False(won)

	stored, err := s.store.Videos.GetByID(s.ctx, video.ID)
	s.Require().NoError(err)
	s.Equal(models.VideoStatusCompleted, stored.Status)
	s.Require().NotNil(stored.VideoURL)
	s.Equal("/blobs/videos/a.mp4", *stored.VideoURL)
	s.Require().NotNil(stored.CompletedAt)
	s.True(completedAt.Equal(*stored.CompletedAt))

	// Завершенное видео не дает создать новое
	s.ErrorIs(s.store.Videos.Create(s.ctx, s.newVideo(run.ID, time.Now().UTC())), models.ErrAlreadyExists)

	summaries, err := s.store.Videos.ListCompleted(s.ctx)
	s.Require().NoError(err)
	var found *models.VideoSummary
	for _, v := range summaries {
		if v.VideoID == video.ID {
			found = v
		}
	}
	s.Require().NotNil(found)
	s.Equal(sim.ID, found.SimulationID)
	s.Equal(sim.Title, found.SimulationTitle)
	s.Equal(holo.Name, found.HologramName)
	s.Equal("/blobs/videos/a.mp4", found.VideoURL)
}

func (s *storeSuite) TestVideo_MarkUnknown() {
	_, err := s.store.Videos.MarkCompleted(s.ctx, uuid.New(), "x", time.Now())
	s.ErrorIs(err, models.ErrNotFound)
	_, err = s.store.Videos.GetLatestByRunID(s.ctx, uuid.New())
	s.ErrorIs(err, models.ErrNotFound)
}

func (s *storeSuite) TestDeleteRun_Cascades() {
	_, _, run := s.seedRun()
	_, err := s.store.Turns.AppendTurn(s.ctx, s.newTurn(run.ID, "look"))
	s.Require().NoError(err)
	video := s.newVideo(run.ID, time.Now().UTC())
	s.Require().NoError(s.store.Videos.Create(s.ctx, video))

	s.Require().NoError(s.store.Runs.Delete(s.ctx, run.ID))

	_, err = s.store.Runs.GetByID(s.ctx, run.ID)
	s.ErrorIs(err, models.ErrNotFound)
	turns, err := s.store.Turns.ListByRunID(s.ctx, run.ID)
	s.Require().NoError(err)
	s.Empty(turns)
	_, err = s.store.Videos.GetByID(s.ctx, video.ID)
	s.ErrorIs(err, models.ErrNotFound)

	s.ErrorIs(s.store.Runs.Delete(s.ctx, run.ID), models.ErrNotFound)
}

func (s *storeSuite) TestHolograms_ListBySimulation() {
	sim, holo, _ := s.seedRun()
	second := &models.Hologram{
		ID:           uuid.New(),
		SimulationID: sim.ID,
		Name:         "Apprentice",
		CreatedAt:    holo.CreatedAt,
	}
	s.Require().NoError(s.store.Holograms.Upsert(s.ctx, second))

	list, err := s.store.Holograms.ListBySimulationID(s.ctx, sim.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("Apprentice", list[0].Name)
	s.Equal("Keeper", list[1].Name)
	s.NotNil(list[0].Wardrobe)
}

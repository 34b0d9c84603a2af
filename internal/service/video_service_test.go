package service_test

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"simulation-server/internal/generation"
	"simulation-server/internal/generation/mocks"
	"simulation-server/internal/models"
	"simulation-server/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fakeVideos() generation.VideoGenerator {
	return generation.NewVideoJobs(generation.NewFakeVideoRenderer(0, zap.NewNop()), nil, zap.NewNop())
}

func providerHandle(provider string) interface{} {
	return mock.MatchedBy(func(h generation.JobHandle) bool { return h.Provider == provider })
}

func TestVideo_ThreeTurnRunCompletesWithFakeBackend(t *testing.T) {
	f := newFixture(t)
	videos := f.videoService(fakeVideos())
	run := f.seedRun(t, models.RunStatusCompleted, 80, 60, 120)

	video, err := videos.StartVideoJob(f.ctx, f.sim.ID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusGenerating, video.Status)
	assert.Nil(t, video.CompletedAt)
	assert.Contains(t, video.GenerationPrompt, `"The Lighthouse"`)
	for i := 1; i <= 3; i++ {
		assert.Contains(t, video.GenerationPrompt, fmt.Sprintf("Scene %d:", i))
	}
	assert.NotContains(t, video.GenerationPrompt, "Scene 4:")
	assert.Contains(t, video.GenerationPrompt, "Visual continuity:")

	checked, err := videos.CheckVideoJob(f.ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusCompleted, checked.Status)
	require.NotNil(t, checked.VideoURL)
	assert.Equal(t, "https://blobs.test/story-videos/"+video.ID.String()+".mp4", *checked.VideoURL)
	assert.NotNil(t, checked.CompletedAt)

	data, ok := f.blobs.get("story-videos/" + video.ID.String() + ".mp4")
	require.True(t, ok)
	assert.Equal(t, generation.MinimalMP4(), data)

	url, err := videos.GetDownloadURL(f.ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, *checked.VideoURL, url)

	completed, err := videos.ListCompletedVideos(f.ctx)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "Kai", completed[0].HologramName)
}

func TestVideo_SecondStartIsRejected(t *testing.T) {
	f := newFixture(t)
	videos := f.videoService(fakeVideos())
	run := f.seedRun(t, models.RunStatusCompleted, 80, 60)

	first, err := videos.StartVideoJob(f.ctx, f.sim.ID, run.ID)
	require.NoError(t, err)

	_, err = videos.StartVideoJob(f.ctx, f.sim.ID, run.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyExists)

	latest, err := f.store.Videos.GetLatestByRunID(f.ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)
}

func TestVideo_ConcurrentStartsCreateOneJob(t *testing.T) {
	f := newFixture(t)
	videos := f.videoService(fakeVideos())
	run := f.seedRun(t, models.RunStatusCompleted, 80, 60)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, rejected int
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := videos.StartVideoJob(f.ctx, f.sim.ID, run.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, models.ErrAlreadyExists):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Equal(t, 4, rejected)
}

func TestVideo_StartPreconditions(t *testing.T) {
	f := newFixture(t)
	generator := mocks.NewMockVideoGenerator(t)
	videos := f.videoService(generator)

	active := f.seedRun(t, models.RunStatusActive, 80)
	_, err := videos.StartVideoJob(f.ctx, f.sim.ID, active.ID)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.ErrorIs(t, err, service.ErrRunNotCompleted)

	_, err = videos.StartVideoJob(f.ctx, f.sim.ID, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)

	completed := f.seedRun(t, models.RunStatusCompleted, 80)
	_, err = videos.StartVideoJob(f.ctx, uuid.New(), completed.ID)
	assert.ErrorIs(t, err, models.ErrNotFound, "run of another simulation")

	generator.AssertNotCalled(t, "GenerateVideoJob", mock.Anything, mock.Anything)
}

func TestVideo_StartFailureLeavesNoRow(t *testing.T) {
	f := newFixture(t)
	generator := mocks.NewMockVideoGenerator(t)
	generator.On("GenerateVideoJob", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: quota exceeded", models.ErrFatalProvider)).Once()
	videos := f.videoService(generator)
	run := f.seedRun(t, models.RunStatusCompleted, 80)

	_, err := videos.StartVideoJob(f.ctx, f.sim.ID, run.ID)
	assert.ErrorIs(t, err, models.ErrFatalProvider)

	_, err = f.store.Videos.GetLatestByRunID(f.ctx, run.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestVideo_CheckIsMonotonic(t *testing.T) {
	f := newFixture(t)
	generator := mocks.NewMockVideoGenerator(t)
	videos := f.videoService(generator)
	run := f.seedRun(t, models.RunStatusCompleted, 80)

	pending := generation.JobHandle{Provider: "veo", Payload: []byte(`{"operation":"ops/1"}`)}
	done := pending
	done.Done = true
	done.AssetRef = "https://provider.test/files/1"

	generator.On("GenerateVideoJob", mock.Anything, mock.Anything).Return(pending, nil).Once()
	generator.On("PollVideoJob", mock.Anything, providerHandle("veo")).
		Return(&generation.PollResult{Terminal: false, Status: models.VideoStatusGenerating, Handle: pending}, nil).Once()
	generator.On("PollVideoJob", mock.Anything, providerHandle("veo")).
		Return(&generation.PollResult{Terminal: true, Status: models.VideoStatusCompleted, AssetRef: done.AssetRef, Handle: done}, nil).Once()
	generator.On("FetchAsset", mock.Anything, mock.MatchedBy(func(h generation.JobHandle) bool { return h.AssetRef == done.AssetRef })).
		Return([]byte("mp4"), nil).Once()

	video, err := videos.StartVideoJob(f.ctx, f.sim.ID, run.ID)
	require.NoError(t, err)

	still, err := videos.CheckVideoJob(f.ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusGenerating, still.Status)

	completed, err := videos.CheckRunVideo(f.ctx, f.sim.ID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusCompleted, completed.Status)

	// Повторные проверки не обращаются к провайдеру и возвращают тот же результат
	for i := 0; i < 3; i++ {
		again, err := videos.CheckVideoJob(f.ctx, video.ID)
		require.NoError(t, err)
		assert.Equal(t, completed, again)
	}
}

func TestVideo_DownloadFailureKeepsGenerating(t *testing.T) {
	f := newFixture(t)
	videos := f.videoService(fakeVideos())
	run := f.seedRun(t, models.RunStatusCompleted, 80)

	video, err := videos.StartVideoJob(f.ctx, f.sim.ID, run.ID)
	require.NoError(t, err)

	f.blobs.setErr(errors.New("bucket unavailable"))
	_, err = videos.CheckVideoJob(f.ctx, video.ID)
	assert.ErrorIs(t, err, models.ErrPersistence)

	stored, err := f.store.Videos.GetByID(f.ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusGenerating, stored.Status, "a successful render must not be failed by an upload error")

	f.blobs.setErr(nil)
	completed, err := videos.CheckVideoJob(f.ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusCompleted, completed.Status)
}

func TestVideo_PollErrorKeepsGenerating(t *testing.T) {
	f := newFixture(t)
	generator := mocks.NewMockVideoGenerator(t)
	generator.On("GenerateVideoJob", mock.Anything, mock.Anything).Return(generation.JobHandle{Provider: "veo"}, nil).Once()
	generator.On("PollVideoJob", mock.Anything, providerHandle("veo")).
		Return(nil, fmt.Errorf("%w: 503", models.ErrTransientProvider)).Once()
	videos := f.videoService(generator)
	run := f.seedRun(t, models.RunStatusCompleted, 80)

	video, err := videos.StartVideoJob(f.ctx, f.sim.ID, run.ID)
	require.NoError(t, err)

	_, err = videos.CheckVideoJob(f.ctx, video.ID)
	assert.ErrorIs(t, err, models.ErrTransientProvider)

	stored, err := f.store.Videos.GetByID(f.ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusGenerating, stored.Status)
}

func TestVideo_FailedRenderIsAbsorbingAndAllowsNewJob(t *testing.T) {
	f := newFixture(t)
	generator := mocks.NewMockVideoGenerator(t)
	failed := generation.JobHandle{Provider: "veo", Done: true, Error: "safety filter"}
	generator.On("GenerateVideoJob", mock.Anything, mock.Anything).Return(generation.JobHandle{Provider: "veo"}, nil).Twice()
	generator.On("PollVideoJob", mock.Anything, providerHandle("veo")).
		Return(&generation.PollResult{Terminal: true, Status: models.VideoStatusFailed, Handle: failed}, nil).Once()
	videos := f.videoService(generator)
	run := f.seedRun(t, models.RunStatusCompleted, 80)

	first, err := videos.StartVideoJob(f.ctx, f.sim.ID, run.ID)
	require.NoError(t, err)

	checked, err := videos.CheckVideoJob(f.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusFailed, checked.Status)
	assert.Nil(t, checked.VideoURL)
	assert.Nil(t, checked.CompletedAt)

	again, err := videos.CheckVideoJob(f.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusFailed, again.Status)

	_, err = videos.GetDownloadURL(f.ctx, first.ID)
	assert.ErrorIs(t, err, service.ErrVideoNotReady)

	// Новая попытка создает новую строку, неудачная сохраняется
	second, err := videos.StartVideoJob(f.ctx, f.sim.ID, run.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	kept, err := f.store.Videos.GetByID(f.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusFailed, kept.Status)
}

func TestVideo_CorruptHandleFailsVideo(t *testing.T) {
	f := newFixture(t)
	generator := mocks.NewMockVideoGenerator(t)
	videos := f.videoService(generator)
	run := f.seedRun(t, models.RunStatusCompleted, 80)

	video := &models.Video{
		ID:               uuid.New(),
		RunID:            run.ID,
		Status:           models.VideoStatusGenerating,
		GenerationPrompt: "p",
		JobHandle:        "{not json",
	}
	require.NoError(t, f.store.Videos.Create(f.ctx, video))

	checked, err := videos.CheckVideoJob(f.ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusFailed, checked.Status)
}

func TestVideo_TitleOverridesSimulationTitle(t *testing.T) {
	f := newFixture(t)
	videos := f.videoService(fakeVideos())
	run := f.seedRun(t, models.RunStatusCompleted, 80)
	require.NoError(t, f.store.Runs.UpdateTitle(f.ctx, run.ID, "Night Watch"))

	video, err := videos.StartVideoJob(f.ctx, f.sim.ID, run.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(video.GenerationPrompt, `Create a cinematic highlight video for the story "Night Watch".`))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"simulation-server/internal/generation"
	"simulation-server/internal/locker"
	"simulation-server/internal/messaging"
	"simulation-server/internal/models"
	"simulation-server/internal/repository"
	"simulation-server/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const videoContentType = "video/mp4"

// VideoService orchestrates highlight video jobs: (none) -> generating -> completed | failed.
// Фонового опроса нет: статус продвигается только вызовами CheckVideoJob.
type VideoService interface {
	StartVideoJob(ctx context.Context, simulationID, runID uuid.UUID) (*models.Video, error)
	// CheckRunVideo polls the latest video of the run.
	CheckRunVideo(ctx context.Context, simulationID, runID uuid.UUID) (*models.Video, error)
	CheckVideoJob(ctx context.Context, videoID uuid.UUID) (*models.Video, error)
	ListCompletedVideos(ctx context.Context) ([]*models.VideoSummary, error)
	GetDownloadURL(ctx context.Context, videoID uuid.UUID) (string, error)
}

type videoServiceImpl struct {
	store     *repository.Store
	videos    generation.VideoGenerator
	blobs     storage.BlobStore
	locker    locker.RunLocker
	publisher messaging.EventPublisher
	logger    *zap.Logger
}

// NewVideoService creates a new VideoService.
func NewVideoService(
	store *repository.Store,
	videos generation.VideoGenerator,
	blobs storage.BlobStore,
	runLocker locker.RunLocker,
	publisher messaging.EventPublisher,
	logger *zap.Logger,
) VideoService {
	return &videoServiceImpl{
		store:     store,
		videos:    videos,
		blobs:     blobs,
		locker:    runLocker,
		publisher: publisher,
		logger:    logger.Named("VideoService"),
	}
}

func (s *videoServiceImpl) StartVideoJob(ctx context.Context, simulationID, runID uuid.UUID) (*models.Video, error) {
	log := s.logger.With(zap.String("runID", runID.String()))

	// Блокировка не дает двум запросам запустить два задания у провайдера
	unlock, err := s.locker.Lock(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	run, err := getRunInSimulation(ctx, s.store, simulationID, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != models.RunStatusCompleted {
		return nil, ErrRunNotCompleted
	}
	existing, err := s.store.Videos.GetLatestByRunID(ctx, runID)
	switch {
	case err == nil && existing.Status != models.VideoStatusFailed:
		log.Info("Video job rejected: video already exists", zap.String("videoID", existing.ID.String()))
		return nil, ErrVideoExists
	case err != nil && !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	turns, err := s.store.Turns.ListByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, ErrRunHasNoTurns
	}
	title, err := s.videoTitle(ctx, run)
	if err != nil {
		return nil, err
	}
	prompt := generation.BuildVideoPrompt(turns, title)

	handle, err := s.videos.GenerateVideoJob(ctx, prompt)
	if err != nil {
		log.Error("Failed to start video job", zap.Error(err))
		return nil, fmt.Errorf("start video job: %w", err)
	}
	encoded, err := handle.Encode()
	if err != nil {
		return nil, err
	}

	video := &models.Video{
		ID:               uuid.New(),
		RunID:            runID,
		Status:           models.VideoStatusGenerating,
		GenerationPrompt: prompt,
		JobHandle:        encoded,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.store.Videos.Create(ctx, video); err != nil {
		log.Error("Failed to persist video job", zap.String("provider", handle.Provider), zap.Error(err))
		return nil, err
	}
	recordVideoTransition(models.VideoStatusGenerating)
	log.Info("Video job started",
		zap.String("videoID", video.ID.String()),
		zap.String("provider", handle.Provider),
		zap.Int("scenes", len(generation.SelectVideoScenes(turns))),
	)
	s.publishStatus(ctx, video)
	return video, nil
}

// videoTitle название прохождения, иначе название симуляции.
func (s *videoServiceImpl) videoTitle(ctx context.Context, run *models.Run) (string, error) {
	if run.Title != nil && *run.Title != "" {
		return *run.Title, nil
	}
	sim, err := s.store.Simulations.GetByID(ctx, run.SimulationID)
	if err != nil {
		return "", err
	}
	return sim.Title, nil
}

func (s *videoServiceImpl) CheckRunVideo(ctx context.Context, simulationID, runID uuid.UUID) (*models.Video, error) {
	if _, err := getRunInSimulation(ctx, s.store, simulationID, runID); err != nil {
		return nil, err
	}
	video, err := s.store.Videos.GetLatestByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	return s.check(ctx, video)
}

func (s *videoServiceImpl) CheckVideoJob(ctx context.Context, videoID uuid.UUID) (*models.Video, error) {
	video, err := s.store.Videos.GetByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return s.check(ctx, video)
}

// check выполняет один шаг опроса. Терминальные статусы возвращаются без изменений.
func (s *videoServiceImpl) check(ctx context.Context, video *models.Video) (*models.Video, error) {
	if video.Status != models.VideoStatusGenerating {
		return video, nil
	}
	log := s.logger.With(zap.String("videoID", video.ID.String()), zap.String("runID", video.RunID.String()))

	handle, err := generation.DecodeJobHandle(video.JobHandle)
	if err != nil {
		// Испорченный дескриптор опросить невозможно
		log.Error("Stored job handle is unusable, failing video", zap.Error(err))
		return s.markFailed(ctx, log, video)
	}

	result, err := s.videos.PollVideoJob(ctx, handle)
	if err != nil {
		log.Warn("Video job poll failed, video stays generating", zap.String("provider", handle.Provider), zap.Error(err))
		return nil, fmt.Errorf("poll video job: %w", err)
	}
	if !result.Terminal {
		log.Debug("Video job still generating", zap.String("provider", handle.Provider))
		return video, nil
	}
	if result.Status == models.VideoStatusFailed {
		log.Warn("Video render finished without an asset", zap.String("provider", handle.Provider), zap.String("providerError", result.Handle.Error))
		return s.markFailed(ctx, log, video)
	}

	// Рендер удался. Ошибки скачивания и загрузки оставляют generating, следующий опрос повторит
	data, err := s.videos.FetchAsset(ctx, result.Handle)
	if err != nil {
		log.Error("Failed to download rendered video", zap.String("provider", handle.Provider), zap.Error(err))
		return nil, fmt.Errorf("download rendered video: %w", err)
	}
	url, err := s.blobs.Put(ctx, videoKey(video.ID), data, videoContentType)
	if err != nil {
		log.Error("Failed to upload rendered video", zap.Error(err))
		return nil, fmt.Errorf("%w: upload rendered video: %w", models.ErrPersistence, err)
	}

	won, err := s.store.Videos.MarkCompleted(ctx, video.ID, url, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if won {
		recordVideoTransition(models.VideoStatusCompleted)
		log.Info("Video completed", zap.String("url", url), zap.Int("bytes", len(data)))
	}
	return s.reload(ctx, video.ID, won)
}

func (s *videoServiceImpl) markFailed(ctx context.Context, log *zap.Logger, video *models.Video) (*models.Video, error) {
	won, err := s.store.Videos.MarkFailed(ctx, video.ID)
	if err != nil {
		return nil, err
	}
	if won {
		recordVideoTransition(models.VideoStatusFailed)
		log.Info("Video failed")
	}
	return s.reload(ctx, video.ID, won)
}

// reload перечитывает строку: при проигранной гонке в ней результат победителя.
func (s *videoServiceImpl) reload(ctx context.Context, videoID uuid.UUID, publish bool) (*models.Video, error) {
	video, err := s.store.Videos.GetByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if publish {
		s.publishStatus(ctx, video)
	}
	return video, nil
}

func (s *videoServiceImpl) ListCompletedVideos(ctx context.Context) ([]*models.VideoSummary, error) {
	videos, err := s.store.Videos.ListCompleted(ctx)
	if err != nil {
		return nil, err
	}
	if videos == nil {
		videos = []*models.VideoSummary{}
	}
	return videos, nil
}

func (s *videoServiceImpl) GetDownloadURL(ctx context.Context, videoID uuid.UUID) (string, error) {
	video, err := s.store.Videos.GetByID(ctx, videoID)
	if err != nil {
		return "", err
	}
	if video.Status != models.VideoStatusCompleted || video.VideoURL == nil || *video.VideoURL == "" {
		return "", ErrVideoNotReady
	}
	return *video.VideoURL, nil
}

func (s *videoServiceImpl) publishStatus(ctx context.Context, video *models.Video) {
	event := messaging.VideoStatusChangedEvent{
		VideoID: video.ID,
		RunID:   video.RunID,
		Status:  video.Status,
	}
	if video.VideoURL != nil {
		event.VideoURL = *video.VideoURL
	}
	if err := s.publisher.PublishVideoStatusChanged(ctx, event); err != nil {
		s.logger.Warn("Failed to publish video status event",
			zap.String("videoID", video.ID.String()),
			zap.String("status", string(video.Status)),
			zap.Error(err),
		)
	}
}

func videoKey(videoID uuid.UUID) string {
	return "story-videos/" + videoID.String() + ".mp4"
}

package repository

import (
	"context"
	"time"

	"simulation-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	videoFields = `id, run_id, status, generation_prompt, job_handle, video_url, created_at, completed_at`

	insertVideoQuery = `
        INSERT INTO videos (id, run_id, status, generation_prompt, job_handle, video_url, created_at, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	getVideoByIDQuery        = `SELECT ` + videoFields + ` FROM videos WHERE id = $1`
	getLatestVideoByRunQuery = `
        SELECT ` + videoFields + `
        FROM videos
        WHERE run_id = $1
        ORDER BY created_at DESC
        LIMIT 1
    `
	listCompletedVideosQuery = `
        SELECT v.id, v.run_id, r.simulation_id, s.title AS simulation_title,
               h.name AS hologram_name, v.video_url, v.completed_at
        FROM videos v
        JOIN runs r ON r.id = v.run_id
        JOIN simulations s ON s.id = r.simulation_id
        JOIN holograms h ON h.id = r.hologram_id
        WHERE v.status = 'completed' AND v.video_url IS NOT NULL
        ORDER BY v.completed_at DESC
    `
	// Переходы только из generating: конкурентные опросы не могут перезаписать терминальный статус
	markVideoCompletedQuery = `
        UPDATE videos SET status = 'completed', video_url = $2, completed_at = $3
        WHERE id = $1 AND status = 'generating'
    `
	markVideoFailedQuery = `
        UPDATE videos SET status = 'failed'
        WHERE id = $1 AND status = 'generating'
    `
)

var _ VideoRepository = (*pgVideoRepository)(nil)

type pgVideoRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgVideoRepository creates a new repository instance.
func NewPgVideoRepository(db DBTX, logger *zap.Logger) VideoRepository {
	return &pgVideoRepository{db: db, logger: logger.Named("PgVideoRepo")}
}

func (r *pgVideoRepository) Create(ctx context.Context, v *models.Video) error {
	_, err := r.db.Exec(ctx, insertVideoQuery,
		v.ID, v.RunID, v.Status, v.GenerationPrompt, v.JobHandle, v.VideoURL, v.CreatedAt, v.CompletedAt,
	)
	if err != nil {
		return wrapDBError("insert video", err)
	}
	return nil
}

func (r *pgVideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	var v models.Video
	if err := pgxscan.Get(ctx, r.db, &v, getVideoByIDQuery, id); err != nil {
		return nil, wrapDBError("get video", err)
	}
	return &v, nil
}

func (r *pgVideoRepository) GetLatestByRunID(ctx context.Context, runID uuid.UUID) (*models.Video, error) {
	var v models.Video
	if err := pgxscan.Get(ctx, r.db, &v, getLatestVideoByRunQuery, runID); err != nil {
		return nil, wrapDBError("get latest video", err)
	}
	return &v, nil
}

func (r *pgVideoRepository) ListCompleted(ctx context.Context) ([]*models.VideoSummary, error) {
	var videos []*models.VideoSummary
	if err := pgxscan.Select(ctx, r.db, &videos, listCompletedVideosQuery); err != nil {
		return nil, wrapDBError("list completed videos", err)
	}
	return videos, nil
}

func (r *pgVideoRepository) MarkCompleted(ctx context.Context, id uuid.UUID, videoURL string, completedAt time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, markVideoCompletedQuery, id, videoURL, completedAt)
	if err != nil {
		return false, wrapDBError("mark video completed", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgVideoRepository) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, markVideoFailedQuery, id)
	if err != nil {
		return false, wrapDBError("mark video failed", err)
	}
	return tag.RowsAffected() == 1, nil
}

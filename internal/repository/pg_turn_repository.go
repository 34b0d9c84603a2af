package repository

import (
	"context"
	"fmt"
	"time"

	"simulation-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	turnFields = `id, run_id, turn_number, user_prompt, ai_response, image_url, image_prompt, suggested_options, created_at`

	insertTurnQuery = `
        INSERT INTO turns (id, run_id, turn_number, user_prompt, ai_response, image_url, image_prompt, suggested_options, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `
	lockRunCounterQuery    = `SELECT current_turn FROM runs WHERE id = $1 FOR UPDATE`
	advanceRunCounterQuery = `UPDATE runs SET current_turn = $2, updated_at = $3 WHERE id = $1`
	listTurnsByRunQuery    = `
        SELECT ` + turnFields + `
        FROM turns
        WHERE run_id = $1
        ORDER BY turn_number ASC
    `
	listRecentTurnsByRunQuery = `
        SELECT ` + turnFields + ` FROM (
            SELECT ` + turnFields + `
            FROM turns
            WHERE run_id = $1
            ORDER BY turn_number DESC
            LIMIT $2
        ) recent
        ORDER BY turn_number ASC
    `
)

var _ TurnRepository = (*pgTurnRepository)(nil)

type pgTurnRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgTurnRepository creates a new repository instance.
func NewPgTurnRepository(pool *pgxpool.Pool, logger *zap.Logger) TurnRepository {
	return &pgTurnRepository{pool: pool, logger: logger.Named("PgTurnRepo")}
}

// AppendTurn блокирует строку прохождения (FOR UPDATE), поэтому конкурентные вызовы
// для одного прохождения получают последовательные номера.
func (r *pgTurnRepository) AppendTurn(ctx context.Context, turn *models.Turn) (*models.Turn, error) {
	persisted := *turn
	err := WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current int
		if err := tx.QueryRow(ctx, lockRunCounterQuery, turn.RunID).Scan(&current); err != nil {
			return wrapDBError("lock run", err)
		}
		persisted.TurnNumber = current + 1
		if err := insertTurn(ctx, tx, &persisted); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, advanceRunCounterQuery, turn.RunID, persisted.TurnNumber, time.Now().UTC()); err != nil {
			return wrapDBError("advance run counter", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to append turn", zap.String("runID", turn.RunID.String()), zap.Error(err))
		return nil, err
	}
	return &persisted, nil
}

func (r *pgTurnRepository) ListByRunID(ctx context.Context, runID uuid.UUID) ([]*models.Turn, error) {
	var turns []*models.Turn
	if err := pgxscan.Select(ctx, r.pool, &turns, listTurnsByRunQuery, runID); err != nil {
		return nil, wrapDBError("list turns", err)
	}
	return turns, nil
}

func (r *pgTurnRepository) ListRecentByRunID(ctx context.Context, runID uuid.UUID, limit int) ([]*models.Turn, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", models.ErrInvalidInput)
	}
	var turns []*models.Turn
	if err := pgxscan.Select(ctx, r.pool, &turns, listRecentTurnsByRunQuery, runID, limit); err != nil {
		return nil, wrapDBError("list recent turns", err)
	}
	return turns, nil
}

func insertTurn(ctx context.Context, db DBTX, t *models.Turn) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(ctx, insertTurnQuery,
		t.ID, t.RunID, t.TurnNumber, t.UserPrompt, t.AIResponse, t.ImageURL, t.ImagePrompt, nonNil(t.SuggestedOptions), t.CreatedAt,
	)
	return wrapDBError("insert turn", err)
}

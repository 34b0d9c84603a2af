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
	runFields = `id, simulation_id, hologram_id, status, current_turn, title, created_at, updated_at`

	insertRunQuery = `
        INSERT INTO runs (id, simulation_id, hologram_id, status, current_turn, title, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	getRunByIDQuery           = `SELECT ` + runFields + ` FROM runs WHERE id = $1`
	listRunsBySimulationQuery = `
        SELECT ` + runFields + `
        FROM runs
        WHERE simulation_id = $1
        ORDER BY created_at DESC
    `
	updateRunStatusQuery = `
        UPDATE runs SET status = $3, updated_at = $4
        WHERE id = $1 AND status = $2
    `
	updateRunTitleQuery    = `UPDATE runs SET title = $2, updated_at = $3 WHERE id = $1`
	runExistsQuery         = `SELECT EXISTS (SELECT 1 FROM runs WHERE id = $1)`
	deleteVideosByRunQuery = `DELETE FROM videos WHERE run_id = $1`
	deleteTurnsByRunQuery  = `DELETE FROM turns WHERE run_id = $1`
	deleteRunQuery         = `DELETE FROM runs WHERE id = $1`
)

var _ RunRepository = (*pgRunRepository)(nil)

type pgRunRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgRunRepository creates a new repository instance.
func NewPgRunRepository(pool *pgxpool.Pool, logger *zap.Logger) RunRepository {
	return &pgRunRepository{pool: pool, logger: logger.Named("PgRunRepo")}
}

func (r *pgRunRepository) CreateWithOpeningTurn(ctx context.Context, run *models.Run, opening *models.Turn) error {
	if opening.TurnNumber != models.OpeningTurnNumber || opening.RunID != run.ID {
		return fmt.Errorf("%w: opening turn must be turn %d of run %s", models.ErrInvalidInput, models.OpeningTurnNumber, run.ID)
	}
	run.CurrentTurn = models.OpeningTurnNumber
	err := WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertRunQuery,
			run.ID, run.SimulationID, run.HologramID, run.Status, run.CurrentTurn, run.Title, run.CreatedAt, run.UpdatedAt,
		); err != nil {
			return wrapDBError("insert run", err)
		}
		return insertTurn(ctx, tx, opening)
	})
	if err != nil {
		r.logger.Error("Failed to create run", zap.String("runID", run.ID.String()), zap.Error(err))
		return err
	}
	return nil
}

func (r *pgRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	var run models.Run
	if err := pgxscan.Get(ctx, r.pool, &run, getRunByIDQuery, id); err != nil {
		return nil, wrapDBError("get run", err)
	}
	return &run, nil
}

func (r *pgRunRepository) ListBySimulationID(ctx context.Context, simulationID uuid.UUID) ([]*models.Run, error) {
	var runs []*models.Run
	if err := pgxscan.Select(ctx, r.pool, &runs, listRunsBySimulationQuery, simulationID); err != nil {
		return nil, wrapDBError("list runs", err)
	}
	return runs, nil
}

func (r *pgRunRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.RunStatus) error {
	tag, err := r.pool.Exec(ctx, updateRunStatusQuery, id, from, to, time.Now().UTC())
	if err != nil {
		return wrapDBError("update run status", err)
	}
	if tag.RowsAffected() == 0 {
		// Отличаем отсутствующее прохождение от прохождения в другом статусе
		var exists bool
		if err := r.pool.QueryRow(ctx, runExistsQuery, id).Scan(&exists); err != nil {
			return wrapDBError("check run", err)
		}
		if !exists {
			return fmt.Errorf("run %s: %w", id, models.ErrNotFound)
		}
		return fmt.Errorf("%w: run %s is not %s", models.ErrInvalidState, id, from)
	}
	return nil
}

func (r *pgRunRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	tag, err := r.pool.Exec(ctx, updateRunTitleQuery, id, title, time.Now().UTC())
	if err != nil {
		return wrapDBError("update run title", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (r *pgRunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteVideosByRunQuery, id); err != nil {
			return wrapDBError("delete videos", err)
		}
		if _, err := tx.Exec(ctx, deleteTurnsByRunQuery, id); err != nil {
			return wrapDBError("delete turns", err)
		}
		tag, err := tx.Exec(ctx, deleteRunQuery, id)
		if err != nil {
			return wrapDBError("delete run", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("run %s: %w", id, models.ErrNotFound)
		}
		r.logger.Info("Run deleted", zap.String("runID", id.String()))
		return nil
	})
}

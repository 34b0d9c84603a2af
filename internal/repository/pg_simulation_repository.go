package repository

import (
	"context"

	"simulation-server/internal/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	simulationFields = `id, title, story, created_at`
	hologramFields   = `id, simulation_id, name, acting_instructions, descriptions, wardrobe, created_at`

	getSimulationByIDQuery = `SELECT ` + simulationFields + ` FROM simulations WHERE id = $1`
	upsertSimulationQuery  = `
        INSERT INTO simulations (id, title, story, created_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, story = EXCLUDED.story
    `

	getHologramByIDQuery           = `SELECT ` + hologramFields + ` FROM holograms WHERE id = $1`
	listHologramsBySimulationQuery = `
        SELECT ` + hologramFields + `
        FROM holograms
        WHERE simulation_id = $1
        ORDER BY created_at ASC, name ASC
    `
	upsertHologramQuery = `
        INSERT INTO holograms (id, simulation_id, name, acting_instructions, descriptions, wardrobe, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            acting_instructions = EXCLUDED.acting_instructions,
            descriptions = EXCLUDED.descriptions,
            wardrobe = EXCLUDED.wardrobe
    `
)

var (
	_ SimulationRepository = (*pgSimulationRepository)(nil)
	_ HologramRepository   = (*pgHologramRepository)(nil)
)

type pgSimulationRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgSimulationRepository creates a new repository instance.
func NewPgSimulationRepository(db DBTX, logger *zap.Logger) SimulationRepository {
	return &pgSimulationRepository{db: db, logger: logger.Named("PgSimulationRepo")}
}

func (r *pgSimulationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Simulation, error) {
	var sim models.Simulation
	if err := pgxscan.Get(ctx, r.db, &sim, getSimulationByIDQuery, id); err != nil {
		return nil, wrapDBError("get simulation", err)
	}
	return &sim, nil
}

func (r *pgSimulationRepository) Upsert(ctx context.Context, sim *models.Simulation) error {
	if _, err := r.db.Exec(ctx, upsertSimulationQuery, sim.ID, sim.Title, sim.Story, sim.CreatedAt); err != nil {
		r.logger.Error("Failed to upsert simulation", zap.String("simulationID", sim.ID.String()), zap.Error(err))
		return wrapDBError("upsert simulation", err)
	}
	return nil
}

type pgHologramRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgHologramRepository creates a new repository instance.
func NewPgHologramRepository(db DBTX, logger *zap.Logger) HologramRepository {
	return &pgHologramRepository{db: db, logger: logger.Named("PgHologramRepo")}
}

func (r *pgHologramRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Hologram, error) {
	var h models.Hologram
	if err := pgxscan.Get(ctx, r.db, &h, getHologramByIDQuery, id); err != nil {
		return nil, wrapDBError("get hologram", err)
	}
	return &h, nil
}

func (r *pgHologramRepository) ListBySimulationID(ctx context.Context, simulationID uuid.UUID) ([]*models.Hologram, error) {
	var holograms []*models.Hologram
	if err := pgxscan.Select(ctx, r.db, &holograms, listHologramsBySimulationQuery, simulationID); err != nil {
		return nil, wrapDBError("list holograms", err)
	}
	return holograms, nil
}

func (r *pgHologramRepository) Upsert(ctx context.Context, h *models.Hologram) error {
	_, err := r.db.Exec(ctx, upsertHologramQuery,
		h.ID, h.SimulationID, h.Name,
		nonNil(h.ActingInstructions), nonNil(h.Descriptions), nonNil(h.Wardrobe),
		h.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert hologram", zap.String("hologramID", h.ID.String()), zap.Error(err))
		return wrapDBError("upsert hologram", err)
	}
	return nil
}

// nonNil не дает записать NULL в NOT NULL TEXT[].
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

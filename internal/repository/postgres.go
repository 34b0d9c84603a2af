package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NewPostgresStore собирает все PostgreSQL-репозитории поверх одного пула.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{
		Simulations: NewPgSimulationRepository(pool, logger),
		Holograms:   NewPgHologramRepository(pool, logger),
		Runs:        NewPgRunRepository(pool, logger),
		Turns:       NewPgTurnRepository(pool, logger),
		Videos:      NewPgVideoRepository(pool, logger),
	}
}

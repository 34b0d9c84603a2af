package repository_test

import (
	"context"
	"testing"
	"time"

	"simulation-server/internal/repository"
	"simulation-server/pkg/database"
	"simulation-server/pkg/migration"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// pgStoreSuite прогоняет общие проверки хранилища на настоящем PostgreSQL.
type pgStoreSuite struct {
	storeSuite
	pgContainer *postgres.PostgresContainer
	pool        *pgxpool.Pool
}

func (s *pgStoreSuite) SetupSuite() {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	s.Require().NoError(err, "Failed to start postgres container")
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = database.NewPool(ctx, database.Config{DSN: connStr, MaxConns: 8})
	s.Require().NoError(err)

	migrator := migration.NewMigrator(migration.Config{
		MigrationsFS:   repository.MigrationsFS,
		MigrationsPath: repository.MigrationsPath,
	}, s.pool)
	s.Require().NoError(migrator.Up(), "Failed to apply migrations")

	version, dirty, err := migrator.Version()
	s.Require().NoError(err)
	s.False(dirty)
	s.EqualValues(1, version)

	logger := zap.NewNop()
	s.newStore = func() *repository.Store {
		return repository.NewPostgresStore(s.pool, logger)
	}
}

func (s *pgStoreSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE simulations, holograms, runs, turns, videos CASCADE`)
	s.Require().NoError(err)
	s.storeSuite.SetupTest()
}

func (s *pgStoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(context.Background()); err != nil {
			s.T().Logf("failed to terminate postgres container: %v", err)
		}
	}
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode.")
	}
	suite.Run(t, new(pgStoreSuite))
}

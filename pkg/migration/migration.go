package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

const (
	migrationsTable = "schema_migrations"
	lockTimeout     = 30 * time.Second
)

// Config содержит настройки для миграций
type Config struct {
	// MigrationsFS и MigrationsPath указывают на каталог *.sql (обычно embed.FS).
	MigrationsFS   fs.FS
	MigrationsPath string
}

// Migrator выполняет миграции базы данных поверх существующего пула pgx
type Migrator struct {
	config Config
	pool   *pgxpool.Pool
}

// NewMigrator создает новый экземпляр Migrator
func NewMigrator(config Config, pool *pgxpool.Pool) *Migrator {
	return &Migrator{config: config, pool: pool}
}

// Up применяет все доступные миграции. Отсутствие изменений не является ошибкой.
func (m *Migrator) Up() error {
	return m.run("up", func(mg *migrate.Migrate) error { return mg.Up() })
}

// Down откатывает все миграции (используется в интеграционных тестах)
func (m *Migrator) Down() error {
	return m.run("down", func(mg *migrate.Migrate) error { return mg.Down() })
}

// Version возвращает текущую версию схемы; 0 без примененных миграций.
func (m *Migrator) Version() (uint, bool, error) {
	mg, err := m.create()
	if err != nil {
		return 0, false, err
	}
	defer closeMigrator(mg)

	version, dirty, err := mg.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

func (m *Migrator) run(direction string, apply func(*migrate.Migrate) error) error {
	mg, err := m.create()
	if err != nil {
		return err
	}
	defer closeMigrator(mg)

	start := time.Now()
	if err := apply(mg); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Str("direction", direction).Msg("database schema is up to date")
			return nil
		}
		if version, dirty, vErr := mg.Version(); vErr == nil {
			log.Error().Err(err).Uint("version", version).Bool("dirty", dirty).Msg("migration failed")
		}
		return fmt.Errorf("failed to apply %s migrations: %w", direction, err)
	}
	version, _, _ := mg.Version()
	log.Info().
		Str("direction", direction).
		Uint("version", version).
		Dur("took", time.Since(start)).
		Msg("database migrations applied successfully")
	return nil
}

// create создает экземпляр migrate.Migrate
func (m *Migrator) create() (*migrate.Migrate, error) {
	if m.config.MigrationsFS == nil {
		return nil, errors.New("migrations filesystem is not configured")
	}
	// sql.DB поверх пула pgx: golang-migrate работает через database/sql
	db := stdlib.OpenDBFromPool(m.pool)

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable:       migrationsTable,
		MigrationsTableQuoted: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	source, err := iofs.New(m.config.MigrationsFS, m.config.MigrationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}
	mg, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	mg.LockTimeout = lockTimeout
	return mg, nil
}

func closeMigrator(mg *migrate.Migrate) {
	srcErr, dbErr := mg.Close()
	if srcErr != nil || dbErr != nil {
		log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("failed to close migrator")
	}
}

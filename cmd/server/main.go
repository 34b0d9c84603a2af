package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"simulation-server/internal/catalog"
	"simulation-server/internal/config"
	"simulation-server/internal/generation"
	"simulation-server/internal/handler"
	"simulation-server/internal/locker"
	"simulation-server/internal/messaging"
	"simulation-server/internal/repository"
	"simulation-server/internal/retry"
	"simulation-server/internal/service"
	"simulation-server/internal/storage"
	"simulation-server/pkg/database"
	"simulation-server/pkg/migration"
	sharedLogger "simulation-server/shared/logger"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	log.Println("Запуск Simulation Server...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger, err := sharedLogger.New(sharedLogger.Config{
		Service:  cfg.ServiceName,
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))

	ctx := context.Background()

	// --- Хранилище ---
	store, closeStore, err := setupStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Не удалось инициализировать хранилище", zap.Error(err))
	}
	defer closeStore()

	if cfg.SeedStoriesFile != "" {
		stories, err := catalog.LoadStories(cfg.SeedStoriesFile)
		if err != nil {
			logger.Fatal("Не удалось загрузить каталог историй", zap.String("file", cfg.SeedStoriesFile), zap.Error(err))
		}
		if err := catalog.Seed(ctx, store.Simulations, store.Holograms, stories, logger); err != nil {
			logger.Fatal("Не удалось заполнить каталог историй", zap.Error(err))
		}
	}

	blobs, err := storage.New(cfg, logger)
	if err != nil {
		logger.Fatal("Не удалось инициализировать blob-хранилище", zap.Error(err))
	}

	// --- Генерация ---
	executor := retry.NewExecutor(retry.Policy{
		MaxAttempts:    cfg.AIMaxAttempts,
		BaseDelay:      cfg.AIBaseRetryDelay,
		JitterFraction: 0.2,
	}, logger)
	backend, err := generation.NewBackend(ctx, cfg, blobs, executor, logger)
	if err != nil {
		logger.Fatal("Не удалось инициализировать бэкенд генерации", zap.Error(err))
	}

	runLocker, closeLocker, err := setupLocker(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Не удалось инициализировать блокировки прохождений", zap.Error(err))
	}
	defer closeLocker()

	publisher, closePublisher, err := setupPublisher(cfg, logger)
	if err != nil {
		logger.Fatal("Не удалось инициализировать публикацию событий", zap.Error(err))
	}
	defer closePublisher()

	// --- Сервисы и HTTP ---
	turnEngine := service.NewTurnEngine(store, backend, executor, runLocker, publisher, logger)
	runService := service.NewRunService(store, turnEngine, logger)
	videoService := service.NewVideoService(store, backend.Video, blobs, runLocker, publisher, logger)
	commandService := service.NewHologramCommandService(store, service.NewCommandClassifier(backend.Commands, logger))

	simulationHandler := handler.NewSimulationHandler(runService, turnEngine, videoService, commandService, logger)
	e := handler.NewEcho(simulationHandler, logger)
	if local, ok := blobs.(*storage.LocalBlobStore); ok {
		serveLocalBlobs(e, local, cfg.BlobPublicBaseURL, logger)
	}

	go func() {
		logger.Info("Simulation сервер слушает", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Ошибка запуска HTTP сервера", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Получен сигнал завершения, начинаем graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка при graceful shutdown Echo", zap.Error(err))
	}
	logger.Info("Simulation Server успешно остановлен")
}

// setupStore выбирает хранилище по STORE_DRIVER и применяет миграции для PostgreSQL.
func setupStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.Store, func(), error) {
	if !cfg.UsesPostgres() {
		logger.Warn("Using in-memory store: data is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}

	dbPool, err := database.NewPool(ctx, database.Config{
		DSN:             cfg.GetDSN(),
		MaxConns:        int32(cfg.DBMaxConns),
		MaxConnIdleTime: cfg.DBIdleTimeout,
	})
	if err != nil {
		return nil, nil, err
	}

	if cfg.DBRunMigrations {
		migrator := migration.NewMigrator(migration.Config{
			MigrationsFS:   repository.MigrationsFS,
			MigrationsPath: repository.MigrationsPath,
		}, dbPool)
		if err := migrator.Up(); err != nil {
			dbPool.Close()
			return nil, nil, err
		}
	}
	return repository.NewPostgresStore(dbPool, logger), dbPool.Close, nil
}

func setupLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (locker.RunLocker, func(), error) {
	if !strings.EqualFold(cfg.LockDriver, "redis") {
		return locker.NewLocalLocker(cfg.RunLockWait), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}
	logger.Info("Успешное подключение к Redis", zap.String("addr", cfg.RedisAddr))
	return locker.NewRedisLocker(client, cfg.RunLockTTL, cfg.RunLockWait, logger), func() { _ = client.Close() }, nil
}

func setupPublisher(cfg *config.Config, logger *zap.Logger) (messaging.EventPublisher, func(), error) {
	if cfg.RabbitMQURL == "" {
		logger.Info("RABBITMQ_URL is empty, domain events are disabled")
		return messaging.NoopPublisher{}, func() {}, nil
	}
	conn, err := messaging.Connect(cfg.RabbitMQURL, logger)
	if err != nil {
		return nil, nil, err
	}
	publisher, err := messaging.NewRabbitMQEventPublisher(conn, cfg.EventsQueueName, logger)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return publisher, func() { _ = conn.Close() }, nil
}

// serveLocalBlobs раздает локальные файлы по пути из BLOB_PUBLIC_BASE_URL.
func serveLocalBlobs(e *echo.Echo, blobs *storage.LocalBlobStore, publicBaseURL string, logger *zap.Logger) {
	u, err := url.Parse(publicBaseURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		logger.Warn("Local blobs are not served: BLOB_PUBLIC_BASE_URL has no path", zap.String("url", publicBaseURL))
		return
	}
	prefix := strings.TrimSuffix(u.Path, "/")
	e.Static(prefix, blobs.Root())
	logger.Info("Serving local blobs", zap.String("prefix", prefix), zap.String("root", blobs.Root()))
}

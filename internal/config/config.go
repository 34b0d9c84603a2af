package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"simulation-server/shared/logger"
	"simulation-server/shared/utils"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию Simulation Server
type Config struct {
	// Настройки сервера
	ServiceName string `envconfig:"SERVICE_NAME" default:"simulation-server"`
	Port        string `envconfig:"SERVER_PORT" default:"8085"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// Хранилище: postgres или memory
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`

	// Настройки PostgreSQL
	DBHost          string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort          string        `envconfig:"DB_PORT" default:"5432"`
	DBUser          string        `envconfig:"DB_USER" default:"postgres"`
	DBName          string        `envconfig:"DB_NAME" default:"simulation_db"`
	DBSSLMode       string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns      int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout   time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	DBRunMigrations bool          `envconfig:"DB_RUN_MIGRATIONS" default:"true"`
	// Секретное поле БЕЗ envconfig тега
	DBPassword string

	// Генерация: провайдеры по возможностям
	TextProvider     string        `envconfig:"TEXT_PROVIDER" default:"gemini"`                       // gemini | openai | ollama | fake
	ImageMode        string        `envconfig:"IMAGE_MODE" default:"live"`                            // live | fake
	VideoMode        string        `envconfig:"VIDEO_MODE" default:"live"`                            // live | fake
	FallbackEnabled  bool          `envconfig:"GENERATION_FALLBACK_ENABLED" default:"true"`
	GeminiTextModel  string        `envconfig:"GEMINI_TEXT_MODEL" default:"gemini-2.5-flash"`
	GeminiImageModel string        `envconfig:"GEMINI_IMAGE_MODEL" default:"imagen-4.0-generate-001"`
	GeminiVideoModel string        `envconfig:"GEMINI_VIDEO_MODEL" default:"veo-3.0-generate-001"`
	AIBaseURL        string        `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIModel          string        `envconfig:"AI_MODEL" default:"deepseek/deepseek-chat"`
	AITimeout        time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	AITemperature    float64       `envconfig:"AI_TEMPERATURE" default:"0.7"`
	AITopP           float64       `envconfig:"AI_TOP_P" default:"0.9"`
	AIMaxTokens      int           `envconfig:"AI_MAX_TOKENS" default:"1024"`
	AIMaxAttempts    int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
	AIBaseRetryDelay time.Duration `envconfig:"AI_BASE_RETRY_DELAY" default:"1s"`
	FakeImageDelay   time.Duration `envconfig:"FAKE_IMAGE_DELAY" default:"500ms"`
	FakeVideoDelay   time.Duration `envconfig:"FAKE_VIDEO_DELAY" default:"1s"`
	// Секретные поля БЕЗ envconfig тега
	GeminiAPIKey string
	AIAPIKey     string

	// Blob-хранилище: local или supabase
	BlobDriver        string `envconfig:"BLOB_DRIVER" default:"local"`
	BlobLocalPath     string `envconfig:"BLOB_LOCAL_PATH" default:"./data/blobs"`
	BlobPublicBaseURL string `envconfig:"BLOB_PUBLIC_BASE_URL" default:"http://localhost:8085/blobs"`
	SupabaseURL       string `envconfig:"SUPABASE_URL"`
	SupabaseBucket    string `envconfig:"SUPABASE_BUCKET" default:"simulation-media"`
	SupabaseKey       string

	// Блокировки прохождений: local или redis
	LockDriver  string        `envconfig:"LOCK_DRIVER" default:"local"`
	RedisAddr   string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB     int           `envconfig:"REDIS_DB" default:"0"`
	RunLockTTL  time.Duration `envconfig:"RUN_LOCK_TTL" default:"3m"`
	RunLockWait time.Duration `envconfig:"RUN_LOCK_WAIT" default:"30s"`
	// Секретное поле БЕЗ envconfig тега (необязательное)
	RedisPassword string

	// Настройки RabbitMQ (пустой URL отключает публикацию событий)
	RabbitMQURL     string `envconfig:"RABBITMQ_URL"`
	EventsQueueName string `envconfig:"EVENTS_QUEUE_NAME" default:"simulation_events"`

	// Файл каталога историй для начального заполнения
	SeedStoriesFile string `envconfig:"SEED_STORIES_FILE"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// UsesPostgres сообщает, нужен ли пул PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return strings.EqualFold(c.StoreDriver, "postgres")
}

// Validate проверяет значения, которые envconfig не может проверить сам.
func (c *Config) Validate() error {
	if c.AIMaxAttempts < 1 {
		return fmt.Errorf("AI_MAX_ATTEMPTS must be >= 1, got %d", c.AIMaxAttempts)
	}
	if c.AIBaseRetryDelay < 0 {
		return fmt.Errorf("AI_BASE_RETRY_DELAY must not be negative, got %v", c.AIBaseRetryDelay)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if err := oneOf("LOG_ENCODING", c.LogEncoding, "json", "console"); err != nil {
		return err
	}
	if err := oneOf("STORE_DRIVER", c.StoreDriver, "postgres", "memory"); err != nil {
		return err
	}
	if err := oneOf("TEXT_PROVIDER", c.TextProvider, "gemini", "openai", "ollama", "fake"); err != nil {
		return err
	}
	if err := oneOf("IMAGE_MODE", c.ImageMode, "live", "fake"); err != nil {
		return err
	}
	if err := oneOf("VIDEO_MODE", c.VideoMode, "live", "fake"); err != nil {
		return err
	}
	if err := oneOf("BLOB_DRIVER", c.BlobDriver, "local", "supabase"); err != nil {
		return err
	}
	if err := oneOf("LOCK_DRIVER", c.LockDriver, "local", "redis"); err != nil {
		return err
	}
	if strings.EqualFold(c.BlobDriver, "supabase") && c.SupabaseURL == "" {
		return errors.New("SUPABASE_URL is required when BLOB_DRIVER=supabase")
	}
	return nil
}

// NeedsGemini сообщает, используется ли Gemini хотя бы для одной возможности.
func (c *Config) NeedsGemini() bool {
	return strings.EqualFold(c.TextProvider, "gemini") ||
		strings.EqualFold(c.ImageMode, "live") ||
		strings.EqualFold(c.VideoMode, "live")
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов
func LoadConfig() (*Config, error) {
	var cfg Config
	// Загружаем НЕсекретные переменные
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации simulation-server: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("некорректная конфигурация: %w", err)
	}

	// Загружаем секреты
	var loadErr error
	if cfg.UsesPostgres() {
		cfg.DBPassword, loadErr = utils.ReadSecret("db_password")
		if loadErr != nil {
			return nil, loadErr
		}
	}
	if cfg.NeedsGemini() {
		cfg.GeminiAPIKey, loadErr = utils.ReadSecret("gemini_api_key")
		if loadErr != nil {
			return nil, loadErr
		}
	}
	if strings.EqualFold(cfg.TextProvider, "openai") {
		cfg.AIAPIKey, loadErr = utils.ReadSecret("ai_api_key")
		if loadErr != nil {
			return nil, loadErr
		}
	}
	if strings.EqualFold(cfg.BlobDriver, "supabase") {
		cfg.SupabaseKey, loadErr = utils.ReadSecret("supabase_key")
		if loadErr != nil {
			return nil, loadErr
		}
	}
	// Пароль Redis необязателен
	if secret, err := utils.ReadSecret("redis_password"); err == nil {
		cfg.RedisPassword = secret
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Printf("  Redis password secret ignored: %v", err)
	}

	log.Printf("Конфигурация Simulation Server загружена (секреты из файлов):")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  Store Driver: %s", cfg.StoreDriver)
	if cfg.UsesPostgres() {
		log.Printf("  DB DSN: postgres://%s:***@%s:%s/%s?sslmode=%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	}
	log.Printf("  Text Provider: %s, Image Mode: %s, Video Mode: %s, Fallback: %v", cfg.TextProvider, cfg.ImageMode, cfg.VideoMode, cfg.FallbackEnabled)
	log.Printf("  AI Max Attempts: %d, Base Retry Delay: %v", cfg.AIMaxAttempts, cfg.AIBaseRetryDelay)
	log.Printf("  Blob Driver: %s, Lock Driver: %s", cfg.BlobDriver, cfg.LockDriver)
	log.Printf("  RabbitMQ events enabled: %v", cfg.RabbitMQURL != "")

	return &cfg, nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), value)
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию для обоих процессов (server и worker).
type Config struct {
	// Настройки сервера
	Port     string `envconfig:"SERVER_PORT" default:"8080"`
	BaseURL  string `envconfig:"BASE_URL" default:"http://localhost:8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Env      string `envconfig:"ENV" default:"production"`

	// Порт служебного HTTP воркера (/health, /metrics)
	WorkerPort string `envconfig:"WORKER_PORT" default:"8081"`

	// Разрешенные CORS origins (через запятую)
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Настройки PostgreSQL
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`
	DBSSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns int    `envconfig:"DB_MAX_CONNECTIONS" default:"10"`

	// Настройки Redis
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Настройки RabbitMQ
	RabbitMQURL       string `envconfig:"RABBITMQ_URL" required:"true"`
	WorkflowQueue     string `envconfig:"WORKFLOW_QUEUE" default:"story_workflows"`
	WorkflowWaitQueue string `envconfig:"WORKFLOW_WAIT_QUEUE" default:"story_workflows_wait"`
	WorkflowDLX       string `envconfig:"WORKFLOW_DLX" default:"story_workflows_dlx"`
	WorkflowMaxRetry  int    `envconfig:"WORKFLOW_MAX_RETRY" default:"3"`
	WorkflowDLQ       string `envconfig:"WORKFLOW_DLQ" default:"story_workflows_dlq"`
	WorkflowPrefetch  int    `envconfig:"WORKFLOW_PREFETCH" default:"1"`
	MigrationsPath    string `envconfig:"MIGRATIONS_PATH" default:"migrations"`
	MigrationsEnabled bool   `envconfig:"MIGRATIONS_ENABLED" default:"true"`

	// Настройки AI (OpenAI-совместимый endpoint)
	AIBaseURL     string        `envconfig:"AI_BASE_URL" default:"https://openrouter.ai/api/v1"`
	AIAPIKey      string        `envconfig:"AI_API_KEY" required:"true"`
	AIEditorModel string        `envconfig:"AI_EDITOR_MODEL" default:"openai/gpt-4o-mini"`
	AIWriterModel string        `envconfig:"AI_WRITER_MODEL" default:"openai/gpt-4o-mini"`
	AITimeout     time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`

	// Лимит заявок: 1 на identity за скользящее окно 24 часа
	WriteRateLimit  int           `envconfig:"WRITE_RATE_LIMIT" default:"1"`
	WriteRateWindow time.Duration `envconfig:"WRITE_RATE_WINDOW" default:"24h"`

	// Кэш случайной выборки по настроению
	PickCacheTTL time.Duration `envconfig:"PICK_CACHE_TTL" default:"5m"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// GetAllowedOrigins возвращает список разрешенных CORS origins.
func (c *Config) GetAllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// LoadConfig загружает конфигурацию из переменных окружения.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	return &cfg, nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config - конфигурация сервиса отчетов.
type Config struct {
	Env         string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	ServerPort  string `envconfig:"SERVER_PORT" default:"8080"`
	SecretsDir  string `envconfig:"SECRETS_DIR" default:"/run/secrets"`

	HTTPReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15m"` // SSE-поток живет долго
	HTTPIdleTimeout  time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"60s"`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Database
	DBHost         string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort         string        `envconfig:"DB_PORT" default:"5432"`
	DBUser         string        `envconfig:"DB_USER" default:"postgres"`
	DBName         string        `envconfig:"DB_NAME" default:"destiny"`
	DBSSLMode      string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns     int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout  time.Duration `envconfig:"DB_IDLE_TIMEOUT" default:"5m"`
	DBConnRetries  int           `envconfig:"DB_CONNECT_RETRIES" default:"20"`
	DBConnRetryGap time.Duration `envconfig:"DB_CONNECT_RETRY_DELAY" default:"3s"`
	DBPassword     string        `ignored:"true"`

	// Redis (нужен только при PROGRESS_STORE=redis)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPassword string `ignored:"true"`

	// RabbitMQ. Пустой URL отключает уведомления.
	RabbitMQURL       string `envconfig:"RABBITMQ_URL"`
	ReportEventsQueue string `envconfig:"REPORT_EVENTS_QUEUE" default:"report_generation_events"`

	// AI
	AIClientType  string        `envconfig:"AI_CLIENT_TYPE" default:"openai"`
	AIBaseURL     string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIModel       string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AITimeout     time.Duration `envconfig:"AI_TIMEOUT" default:"10m"`
	AITemperature float64       `envconfig:"AI_TEMPERATURE" default:"0.8"`
	AIMaxTokens   int           `envconfig:"AI_MAX_TOKENS" default:"4096"`
	AIAPIKey      string        `ignored:"true"`

	ReportLanguage string `envconfig:"REPORT_LANGUAGE" default:"en"`
	PromptsDir     string `envconfig:"PROMPTS_DIR"`

	// Пайплайн генерации
	PreviewThreshold     int           `envconfig:"PREVIEW_THRESHOLD" default:"1800"`
	PreviewSuffix        string        `envconfig:"PREVIEW_SUFFIX"`
	FlushSizeThreshold   int           `envconfig:"FLUSH_SIZE_THRESHOLD" default:"3000"`
	FlushTimeThreshold   time.Duration `envconfig:"FLUSH_TIME_THRESHOLD" default:"30s"`
	FlushWriteTimeout    time.Duration `envconfig:"FLUSH_WRITE_TIMEOUT" default:"10s"`
	FinalFlushAttempts   int           `envconfig:"FINAL_FLUSH_ATTEMPTS" default:"3"`
	FinalFlushRetryDelay time.Duration `envconfig:"FINAL_FLUSH_RETRY_DELAY" default:"500ms"`
	GenerationTimeout    time.Duration `envconfig:"GENERATION_TIMEOUT" default:"10m"`
	GenerationDrain      time.Duration `envconfig:"GENERATION_DRAIN_TIMEOUT" default:"60s"` // ожидание прогонов при остановке
	SinkBufferSize       int           `envconfig:"SINK_BUFFER_SIZE" default:"256"`

	// Прогресс
	ProgressStore string        `envconfig:"PROGRESS_STORE" default:"memory"`
	ProgressTTL   time.Duration `envconfig:"PROGRESS_TTL" default:"10m"`

	// Пустой секрет отключает проверку токенов.
	JWTSecret string `ignored:"true"`

	// Секрет межсервисных токенов (платежный сервис). Пустой закрывает /paid.
	InterServiceSecret string `ignored:"true"`
}

// GetAllowedOrigins возвращает список разрешенных CORS origins.
func (c *Config) GetAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(c.CORSAllowedOrigins, " ", ""), ",")
}

// GetDSN возвращает строку подключения к PostgreSQL.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// GetMaskedDSN - DSN для логов, без пароля.
func (c *Config) GetMaskedDSN() string {
	return fmt.Sprintf("postgres://%s:***@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// Validate проверяет значения, которые envconfig проверить не может.
func (c *Config) Validate() error {
	var errs []error
	if c.PreviewThreshold < 0 {
		errs = append(errs, fmt.Errorf("PREVIEW_THRESHOLD must be >= 0, got %d", c.PreviewThreshold))
	}
	if c.FlushSizeThreshold <= 0 && c.FlushTimeThreshold <= 0 {
		errs = append(errs, errors.New("at least one of FLUSH_SIZE_THRESHOLD and FLUSH_TIME_THRESHOLD must be positive"))
	}
	switch c.ProgressStore {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("PROGRESS_STORE must be 'memory' or 'redis', got %q", c.ProgressStore))
	}
	switch strings.ToLower(c.AIClientType) {
	case "openai":
		if c.AIAPIKey == "" {
			errs = append(errs, errors.New("secret 'ai_api_key' is required for the openai client"))
		}
	case "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown AI_CLIENT_TYPE %q", c.AIClientType))
	}
	return errors.Join(errs...)
}

// LoadConfig читает .env (если есть), переменные окружения и секреты из SECRETS_DIR.
func LoadConfig(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if _, err := os.Stat(envFilePath); err == nil {
			if err := godotenv.Load(envFilePath); err != nil {
				log.Printf("Warning: Could not load %s file: %v", envFilePath, err)
			} else {
				log.Printf("Loaded configuration from %s", envFilePath)
			}
		} else if !os.IsNotExist(err) {
			log.Printf("Warning: Error checking %s file: %v", envFilePath, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env vars: %w", err)
	}

	var err error
	if cfg.DBPassword, err = ReadSecret(cfg.SecretsDir, "db_password"); err != nil {
		return nil, err
	}
	cfg.AIAPIKey = readOptionalSecret(cfg.SecretsDir, "ai_api_key")
	cfg.RedisPassword = readOptionalSecret(cfg.SecretsDir, "redis_password")
	cfg.JWTSecret = readOptionalSecret(cfg.SecretsDir, "jwt_secret")
	cfg.InterServiceSecret = readOptionalSecret(cfg.SecretsDir, "inter_service_secret")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("Configuration loaded successfully (secrets read from files).")
	return &cfg, nil
}

// ReadSecret читает Docker secret из файла dir/name.
func ReadSecret(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", path, err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return secret, nil
}

func readOptionalSecret(dir, name string) string {
	secret, err := ReadSecret(dir, name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("Optional secret '%s' could not be read: %v", name, err)
		}
		return ""
	}
	return secret
}

// Package config loads runtime settings from the environment (optionally a
// .env file) and holds the lifecycle policy constants.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `validate:"oneof=development production"`
	LogLevel string `validate:"oneof=debug info warn error"`
	HTTPAddr string `validate:"required"`

	// StorageDriver selects postgres or the in-memory store.
	StorageDriver string `validate:"oneof=postgres memory"`
	Postgres      Postgres

	// RedisAddr enables cross-instance notification fan-out when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	JWTSecret string        `validate:"required"`
	JWTTTL    time.Duration `validate:"gt=0"`
	// OperatorKey guards moderator management over HTTP; empty leaves it to the admin CLI.
	OperatorKey string

	Classifier Classifier
	Telegram   Telegram
	Lifecycle  Lifecycle
}

type Postgres struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns the connection string gorm's postgres driver expects.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		p.Host, p.User, p.Password, p.Name, p.Port, p.SSLMode)
}

type Classifier struct {
	// APIKey empty means the classifier is not configured.
	APIKey     string
	BaseURL    string
	Model      string        `validate:"required"`
	Timeout    time.Duration `validate:"gt=0"`
	MaxTokens  int           `validate:"gt=0"`
	MaxRetries int           `validate:"gte=0"`
}

type Telegram struct {
	// BotToken empty disables Telegram alerts.
	BotToken string
	ChatID   int64
	Language string `validate:"oneof=ru en"`
}

// LoadPostgres reads only the database settings; the admin CLI needs nothing else.
func LoadPostgres() Postgres {
	_ = godotenv.Load()
	return postgresFromEnv()
}

func postgresFromEnv() Postgres {
	return Postgres{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "portal"),
		Password: getEnv("DB_PASSWORD", "portal"),
		Name:     getEnv("DB_NAME", "portal"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg := &Config{
		Env:           getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		StorageDriver: getEnv("STORAGE_DRIVER", "postgres"),
		Postgres:      postgresFromEnv(),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		OperatorKey:   os.Getenv("OPERATOR_KEY"),
		Classifier: Classifier{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   getEnv("OPENAI_MODEL", DefaultClassifierModel),
		},
		Telegram: Telegram{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			Language: getEnv("TELEGRAM_LANGUAGE", "ru"),
		},
		Lifecycle: DefaultLifecycle(),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 72*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Classifier.Timeout, err = getDuration("OPENAI_TIMEOUT", DefaultClassifierTimeout); err != nil {
		return nil, err
	}
	if cfg.Classifier.MaxTokens, err = getInt("OPENAI_MAX_TOKENS", DefaultClassifierMaxTokens); err != nil {
		return nil, err
	}
	if cfg.Classifier.MaxRetries, err = getInt("OPENAI_MAX_RETRIES", 0); err != nil {
		return nil, err
	}
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		if cfg.Telegram.ChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
	}

	lc := &cfg.Lifecycle
	if lc.ForwardStatus, err = parseLifecycleStatus(os.Getenv("LIFECYCLE_FORWARD_STATUS"), lc.ForwardStatus); err != nil {
		return nil, fmt.Errorf("LIFECYCLE_FORWARD_STATUS: %w", err)
	}
	if lc.ResolvedStatus, err = parseLifecycleStatus(os.Getenv("LIFECYCLE_RESOLVED_STATUS"), lc.ResolvedStatus); err != nil {
		return nil, fmt.Errorf("LIFECYCLE_RESOLVED_STATUS: %w", err)
	}
	if raw := os.Getenv("LIFECYCLE_LOOP_POLICY"); raw != "" {
		lc.LoopPolicy = LoopPolicy(strings.ToLower(strings.TrimSpace(raw)))
	}
	if lc.ExpectedResolutionDays, err = getInt("EXPECTED_RESOLUTION_DAYS", lc.ExpectedResolutionDays); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints declared in struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("invalid configuration: TELEGRAM_CHAT_ID is required with TELEGRAM_BOT_TOKEN")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/sirupsen/logrus"
)

// DefaultStorageType persists across processes, which the one-shot CLI commands
// rely on.
const DefaultStorageType = "filesystem"

// Config is the application configuration, read from the environment.
type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" env-default:":3002"`
	LogLevel   string `env:"LOG_LEVEL"   env-default:"info"`

	Storage StorageConfig
	Auth    AuthConfig
	Chat    ChatConfig
	OpenAI  OpenAIConfig

	CountriesURL string `env:"COUNTRIES_URL" env-default:"https://restcountries.com/v3.1/all?fields=name,idd,cca2"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Type           string `env:"STORAGE_TYPE"       env-default:"filesystem"`
	LocalPath      string `env:"LOCAL_STORAGE_PATH" env-default:"./data"`
	DataSourceName string `env:"DATA_SOURCE_NAME"   env-default:"chatdash.db"`
	S3Bucket       string `env:"S3_BUCKET_NAME"`
	S3Prefix       string `env:"S3_PREFIX"          env-default:"chatdash"`
	ValkeyAddr     string `env:"VALKEY_ADDR"        env-default:"localhost:6379"`
	ValkeyPassword string `env:"VALKEY_PASSWORD"`
	ValkeyPrefix   string `env:"VALKEY_PREFIX"      env-default:"chatdash:"`
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" env-default:"168h"`
}

// ChatConfig tunes the message session.
type ChatConfig struct {
	ReplyDelay   time.Duration `env:"REPLY_DELAY"   env-default:"2s"`
	PageSize     int           `env:"PAGE_SIZE"     env-default:"20"`
	HistoryBatch int           `env:"HISTORY_BATCH" env-default:"50"`
}

// OpenAIConfig enables an OpenAI-compatible responder when APIKey is set.
type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL" env-default:"https://api.openai.com"`
	Model   string `env:"OPENAI_MODEL"    env-default:"gpt-4o-mini"`
}

// Load reads configuration from environment variables and defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	c.Storage.Type = strings.ToLower(strings.TrimSpace(c.Storage.Type))
	if c.Storage.Type == "" {
		c.Storage.Type = DefaultStorageType
	}
	switch c.Storage.Type {
	case "memory", "filesystem", "sqlite", "valkey":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET_NAME must be set for s3 storage type")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	if c.Chat.ReplyDelay < 0 {
		return fmt.Errorf("reply_delay must be >= 0 (got %v)", c.Chat.ReplyDelay)
	}
	if c.Chat.PageSize <= 0 {
		return fmt.Errorf("page_size must be > 0 (got %d)", c.Chat.PageSize)
	}
	if c.Chat.HistoryBatch < 0 {
		return fmt.Errorf("history_batch must be >= 0 (got %d)", c.Chat.HistoryBatch)
	}
	return nil
}

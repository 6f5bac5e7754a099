// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Storage, Telegram, Registry, Transform, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Registry  RegistryConfig  `yaml:"registry"`
	Download  DownloadConfig  `yaml:"download"`
	Transform TransformConfig `yaml:"transform"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for the webhook and search API.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StorageConfig selects the key-value backend: sqlite, postgres, redis or
// memory.
type StorageConfig struct {
	Backend string `yaml:"backend"`
}

// SQLiteConfig holds the location of the embedded key-value database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// KafkaConfig holds Kafka broker and topic settings for analytics events.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	StartOffset   string      `yaml:"startOffset"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// TelegramConfig holds Bot API access and the chat that receives uploads.
type TelegramConfig struct {
	Token             string        `yaml:"token"`
	APIURL            string        `yaml:"apiUrl"`
	UploadChatID      int64         `yaml:"uploadChatId"`
	DefaultRetryAfter time.Duration `yaml:"defaultRetryAfter"`
	WebhookPath       string        `yaml:"webhookPath"`
	WebhookURL        string        `yaml:"webhookUrl"`
	WebhookSecret     string        `yaml:"webhookSecret"`
}

// RegistryConfig points at the emote registry document.
type RegistryConfig struct {
	Path string `yaml:"path"`
}

// DownloadConfig controls how source images are fetched.
type DownloadConfig struct {
	UserAgent    string `yaml:"userAgent"`
	MaxIdleConns int    `yaml:"maxIdleConns"`
}

// TransformConfig selects the image transformer backend: pixel or external.
type TransformConfig struct {
	Backend string `yaml:"backend"`
	Command string `yaml:"command"`
}

// IngestionConfig controls the startup ingestion run.
type IngestionConfig struct {
	RunOnStart bool `yaml:"runOnStart"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite", "postgres", "redis", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Transform.Backend {
	case "pixel", "external":
	default:
		return fmt.Errorf("unknown transform backend %q", c.Transform.Backend)
	}
	if c.Registry.Path == "" {
		return fmt.Errorf("registry path is required")
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
		},
		SQLite: SQLiteConfig{
			Path: "data/emotes.db",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "emoterelay",
			User:            "emoterelay",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "emoterelay-analytics",
			StartOffset:   "last",
			Topics: KafkaTopics{
				AnalyticsEvents: "emote-analytics",
			},
		},
		Telegram: TelegramConfig{
			APIURL:            "https://api.telegram.org",
			DefaultRetryAfter: 5 * time.Second,
			WebhookPath:       "/telegram/webhook",
		},
		Registry: RegistryConfig{
			Path: "emote-registry.json",
		},
		Download: DownloadConfig{
			UserAgent:    "emote-relay/1.0",
			MaxIdleConns: 4,
		},
		Transform: TransformConfig{
			Backend: "pixel",
			Command: "magick",
		},
		Ingestion: IngestionConfig{
			RunOnStart: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads EMOTE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EMOTE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("EMOTE_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("EMOTE_SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("EMOTE_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("EMOTE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("EMOTE_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("EMOTE_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("EMOTE_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("EMOTE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("EMOTE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("EMOTE_KAFKA_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = enabled
		}
	}
	if v := os.Getenv("EMOTE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("EMOTE_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("EMOTE_TELEGRAM_API_URL"); v != "" {
		cfg.Telegram.APIURL = v
	}
	if v := os.Getenv("EMOTE_TELEGRAM_UPLOAD_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.UploadChatID = id
		}
	}
	if v := os.Getenv("EMOTE_TELEGRAM_WEBHOOK_URL"); v != "" {
		cfg.Telegram.WebhookURL = v
	}
	if v := os.Getenv("EMOTE_TELEGRAM_WEBHOOK_SECRET"); v != "" {
		cfg.Telegram.WebhookSecret = v
	}
	if v := os.Getenv("EMOTE_REGISTRY_PATH"); v != "" {
		cfg.Registry.Path = v
	}
	if v := os.Getenv("EMOTE_TRANSFORM_BACKEND"); v != "" {
		cfg.Transform.Backend = v
	}
	if v := os.Getenv("EMOTE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("EMOTE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath    = "config.yaml"
	DefaultCookieName    = "proxy_session"
	DefaultSessionMaxAge = 7 * 24 * time.Hour
	DefaultEventsChannel = "proxy-auth.events"
	DefaultPort          = 5000
)

// Config is the on-disk YAML configuration of the gatekeeper.
type Config struct {
	Logging      LoggingConfig `yaml:"logging"`
	DatabaseFile string        `yaml:"database_file"`
	DatabaseURL  string        `yaml:"database_url"`
	SecretKey    string        `yaml:"secret_key"`
	Port         int           `yaml:"port"`
	Session      SessionConfig `yaml:"session"`
	Events       EventsConfig  `yaml:"events"`
	Export       ExportConfig  `yaml:"export"`
}

type LoggingConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

type SessionConfig struct {
	// CookieName must not collide with cookies of the apps behind the proxy.
	CookieName string        `yaml:"cookie_name"`
	MaxAge     time.Duration `yaml:"max_age"`
	Secure     bool          `yaml:"secure"`
}

type EventsConfig struct {
	Backend  string         `yaml:"backend"`
	Channel  string         `yaml:"channel"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	PubSub   PubSubConfig   `yaml:"pubsub"`
}

type RabbitMQConfig struct {
	URL             string `yaml:"url"`
	QueueDurable    bool   `yaml:"queue_durable"`
	QueueAutoDelete bool   `yaml:"queue_auto_delete"`
}

type PubSubConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

type ExportConfig struct {
	Backend string      `yaml:"backend"`
	Minio   MinioConfig `yaml:"minio"`
	GCS     GCSConfig   `yaml:"gcs"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// UsesPostgres reports whether the Postgres store is configured.
func (c Config) UsesPostgres() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

// LoadConfig reads the YAML file at path, applies defaults and environment
// overrides, and validates the result.
func LoadConfig(path string) (Config, error) {
	if os.Getenv("ENV") == "dev" {
		_ = godotenv.Load()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML bytes into a validated Config.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the required fields.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.SecretKey) == "" {
		errs = append(errs, errors.New("secret_key is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.Port))
	}
	if strings.TrimSpace(c.DatabaseFile) == "" && strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("database_file or database_url is required"))
	}
	if _, ok := ParseLevel(c.Logging.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.Logging.LogLevel))
	}
	switch c.Events.Backend {
	case "", "none", "rabbitmq", "pubsub":
	default:
		errs = append(errs, fmt.Errorf("unknown events backend %q", c.Events.Backend))
	}
	switch c.Export.Backend {
	case "", "minio", "gcs":
	default:
		errs = append(errs, fmt.Errorf("unknown export backend %q", c.Export.Backend))
	}
	return errors.Join(errs...)
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Logging.LogLevel == "" {
		cfg.Logging.LogLevel = "INFO"
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = DefaultCookieName
	}
	if cfg.Session.MaxAge <= 0 {
		cfg.Session.MaxAge = DefaultSessionMaxAge
	}
	if cfg.Events.Channel == "" {
		cfg.Events.Channel = DefaultEventsChannel
	}
}

func applyEnv(cfg *Config) {
	cfg.SecretKey = getEnv("PROXY_AUTH_SECRET_KEY", cfg.SecretKey)
	cfg.Port = getEnvInt("PROXY_AUTH_PORT", cfg.Port)
	cfg.DatabaseFile = getEnv("PROXY_AUTH_DATABASE_FILE", cfg.DatabaseFile)
	cfg.DatabaseURL = getEnv("PROXY_AUTH_DATABASE_URL", cfg.DatabaseURL)
	cfg.Logging.LogLevel = getEnv("PROXY_AUTH_LOG_LEVEL", cfg.Logging.LogLevel)
	cfg.Logging.LogFile = getEnv("PROXY_AUTH_LOG_FILE", cfg.Logging.LogFile)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.Atoi(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Tracking   TrackingConfig   `yaml:"tracking"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Queues     QueuesConfig     `yaml:"queues"`
	SparkPost  SparkPostConfig  `yaml:"sparkpost"`
	SES        SESConfig        `yaml:"ses"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	SendLimits SendLimitsConfig `yaml:"send_limits"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// TrackingConfig holds the public tracking endpoint configuration. BaseURL
// is the externally reachable root baked into tracking links; SigningKey
// signs the link payloads.
type TrackingConfig struct {
	Port               int    `yaml:"port"`
	BaseURL            string `yaml:"base_url"`
	SigningKey         string `yaml:"signing_key"`
	DefaultRedirectURL string `yaml:"default_redirect_url"`
}

// DatabaseConfig holds the Postgres connection string
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds Redis connection settings for rate limiting
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// QueuesConfig holds SQS queue settings
type QueuesConfig struct {
	Region         string `yaml:"region"`
	BatchQueueURL  string `yaml:"batch_queue_url"`
	EventsQueueURL string `yaml:"events_queue_url"`
}

// SparkPostConfig holds SparkPost API configuration
type SparkPostConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c SparkPostConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds AWS SES API configuration for the fallback transport
type SESConfig struct {
	Region         string `yaml:"region"`
	AccessKey      string `yaml:"access_key"`
	SecretKey      string `yaml:"secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c SESConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DispatchConfig holds batch processing configuration. BatchSecret signs
// batch job tokens and must match across the API and worker processes.
type DispatchConfig struct {
	BatchSize    int    `yaml:"batch_size"`
	BatchSecret  string `yaml:"batch_secret"`
	RetryDelayMS int    `yaml:"retry_delay_ms"`
}

// RetryDelay returns the inter-send delay for retry passes
func (c DispatchConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// SendLimitsConfig holds per-transport send rate caps
type SendLimitsConfig struct {
	SparkPost ProviderLimits `yaml:"sparkpost"`
	SES       ProviderLimits `yaml:"ses"`
}

// ProviderLimits caps one transport. Zero means unlimited for that window.
type ProviderLimits struct {
	PerSecond int `yaml:"per_second"`
	PerMinute int `yaml:"per_minute"`
	PerDay    int `yaml:"per_day"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Tracking.Port == 0 {
		cfg.Tracking.Port = 8081
	}
	if cfg.Tracking.BaseURL == "" {
		cfg.Tracking.BaseURL = "http://localhost:8081"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Queues.Region == "" {
		cfg.Queues.Region = "us-west-2"
	}
	if cfg.SparkPost.BaseURL == "" {
		cfg.SparkPost.BaseURL = "https://api.sparkpost.com/api/v1"
	}
	if cfg.SparkPost.TimeoutSeconds == 0 {
		cfg.SparkPost.TimeoutSeconds = 30
	}
	if cfg.SES.TimeoutSeconds == 0 {
		cfg.SES.TimeoutSeconds = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-west-2"
	}
	if cfg.Dispatch.BatchSize == 0 {
		cfg.Dispatch.BatchSize = 50
	}
	if cfg.Dispatch.RetryDelayMS == 0 {
		cfg.Dispatch.RetryDelayMS = 100
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if apiKey := os.Getenv("SPARKPOST_API_KEY"); apiKey != "" {
		cfg.SparkPost.APIKey = apiKey
	}
	if baseURL := os.Getenv("SPARKPOST_BASE_URL"); baseURL != "" {
		cfg.SparkPost.BaseURL = baseURL
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.SES.AccessKey = accessKey
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.SES.Region = region
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if url := os.Getenv("BATCH_QUEUE_URL"); url != "" {
		cfg.Queues.BatchQueueURL = url
	}
	if url := os.Getenv("EVENTS_QUEUE_URL"); url != "" {
		cfg.Queues.EventsQueueURL = url
	}
	if region := os.Getenv("AWS_SQS_REGION"); region != "" {
		cfg.Queues.Region = region
	}
	if baseURL := os.Getenv("TRACKING_BASE_URL"); baseURL != "" {
		cfg.Tracking.BaseURL = baseURL
	}
	if key := os.Getenv("TRACKING_SIGNING_KEY"); key != "" {
		cfg.Tracking.SigningKey = key
	}
	if url := os.Getenv("TRACKING_DEFAULT_REDIRECT_URL"); url != "" {
		cfg.Tracking.DefaultRedirectURL = url
	}
	if secret := os.Getenv("BATCH_SECRET"); secret != "" {
		cfg.Dispatch.BatchSecret = secret
	}

	return cfg, nil
}

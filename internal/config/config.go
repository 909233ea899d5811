package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Redis    RedisConfig    `yaml:"redis"`
	Provider ProviderConfig `yaml:"provider"`
	Sync     SyncConfig     `yaml:"sync"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Worker   WorkerConfig   `yaml:"worker"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host        string           `yaml:"host"`
	Port        int              `yaml:"port"`
	User        string           `yaml:"user"`
	Password    string           `yaml:"password"`
	VHost       string           `yaml:"vhost"`
	Exchange    ExchangeConfig   `yaml:"exchange"`
	Queue       QueueConfig      `yaml:"queue"`
	DelayQueue  string           `yaml:"delay_queue"`
	MaxPriority uint8            `yaml:"max_priority"`
	RoutingKey  string           `yaml:"routing_key"`
	Connection  ConnectionConfig `yaml:"connection"`
	Publish     PublishConfig    `yaml:"publish"`
	Consumer    ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// RedisConfig holds the Redis connection used for dedupe keys and locks
type RedisConfig struct {
	URL       string `yaml:"url"`
	KeyPrefix string `yaml:"key_prefix"`
}

// ProviderConfig holds the creator data provider API settings
type ProviderConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	RateBurst int           `yaml:"rate_burst"`
	Breaker   BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds the provider circuit breaker thresholds
type BreakerConfig struct {
	MaxRequests  uint32        `yaml:"max_requests"`
	Interval     time.Duration `yaml:"interval"`
	Timeout      time.Duration `yaml:"timeout"`
	MinRequests  uint32        `yaml:"min_requests"`
	FailureRatio float64       `yaml:"failure_ratio"`
}

// SyncConfig holds sync pipeline tuning and the recurring schedules
// seeded on worker start
type SyncConfig struct {
	StatusCheckDelay  time.Duration    `yaml:"status_check_delay"`
	MaxExportPolls    int              `yaml:"max_export_polls"`
	FanOutConcurrency int              `yaml:"fan_out_concurrency"`
	WebhookDedupeTTL  time.Duration    `yaml:"webhook_dedupe_ttl"`
	IngestGuardTTL    time.Duration    `yaml:"ingest_guard_ttl"`
	ScheduleLockTTL   time.Duration    `yaml:"schedule_lock_ttl"`
	WebhookURL        string           `yaml:"webhook_url"`
	WebhookSecret     string           `yaml:"webhook_secret"`
	Schedules         []ScheduleConfig `yaml:"schedules"`
}

// ScheduleConfig describes one default recurring search
type ScheduleConfig struct {
	Name              string `yaml:"name"`
	Cron              string `yaml:"cron"`
	WorkPlatformID    string `yaml:"work_platform_id"`
	MinFollowers      *int64 `yaml:"min_followers"`
	MaxFollowers      *int64 `yaml:"max_followers"`
	HasContactDetails *bool  `yaml:"has_contact_details"`
	Limit             int    `yaml:"limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	ID                string        `yaml:"id"`
	Concurrency       int           `yaml:"concurrency"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	MaxRetries        int           `yaml:"max_retries"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	OverdueGrace      time.Duration `yaml:"overdue_grace"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	ScheduleReload    time.Duration `yaml:"schedule_reload"`
	MetricsPort       int           `yaml:"metrics_port"`
}

// envOverlay lists the settings that may come from the environment.
// Set variables win over the file.
type envOverlay struct {
	DatabaseHost     string `env:"DATABASE_HOST"`
	DatabasePassword string `env:"DATABASE_PASSWORD"`
	RabbitMQHost     string `env:"RABBITMQ_HOST"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD"`
	RedisURL         string `env:"REDIS_URL"`
	ProviderBaseURL  string `env:"PROVIDER_BASE_URL"`
	ProviderAPIKey   string `env:"PROVIDER_API_KEY"`
	WebhookSecret    string `env:"WEBHOOK_SECRET"`
	WebhookURL       string `env:"WEBHOOK_URL"`
}

// Load reads and parses the configuration file, then applies environment
// overrides
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyEnv() error {
	overlay, err := env.ParseAs[envOverlay]()
	if err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Database.Host, overlay.DatabaseHost)
	set(&c.Database.Password, overlay.DatabasePassword)
	set(&c.RabbitMQ.Host, overlay.RabbitMQHost)
	set(&c.RabbitMQ.Password, overlay.RabbitMQPassword)
	set(&c.Redis.URL, overlay.RedisURL)
	set(&c.Provider.BaseURL, overlay.ProviderBaseURL)
	set(&c.Provider.APIKey, overlay.ProviderAPIKey)
	set(&c.Sync.WebhookSecret, overlay.WebhookSecret)
	set(&c.Sync.WebhookURL, overlay.WebhookURL)
	return nil
}

// ValidateAPIConfig checks the settings the api-service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	return c.validateShared()
}

// ValidateWorkerConfig checks the settings the worker-service needs
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateShared(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("worker heartbeat_interval must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	// Zero picks the worker default of five heartbeats.
	if c.Worker.StaleAfter != 0 && c.Worker.StaleAfter <= c.Worker.HeartbeatInterval {
		return fmt.Errorf("worker stale_after must be greater than heartbeat_interval")
	}

	if c.Worker.MetricsPort != 0 && (c.Worker.MetricsPort < MinPort || c.Worker.MetricsPort > MaxPort) {
		return fmt.Errorf("invalid worker metrics port: %d (must be between %d and %d)", c.Worker.MetricsPort, MinPort, MaxPort)
	}

	for _, s := range c.Sync.Schedules {
		if s.Name == "" || s.Cron == "" {
			return fmt.Errorf("sync schedule requires name and cron")
		}
	}

	return nil
}

func (c *Config) validateShared() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	if c.RabbitMQ.DelayQueue == "" {
		return fmt.Errorf("rabbitmq delay queue name is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("redis url is required")
	}

	if c.Provider.BaseURL == "" {
		return fmt.Errorf("provider base url is required")
	}

	return nil
}

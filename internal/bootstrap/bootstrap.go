// Package bootstrap turns loaded configuration into the clients and
// services both binaries share.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/creator-sync/internal/config"
	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/cuongbtq/creator-sync/internal/provider"
	"github.com/cuongbtq/creator-sync/internal/queue"
	"github.com/cuongbtq/creator-sync/internal/storage"
	"github.com/cuongbtq/creator-sync/internal/syncer"
	"github.com/cuongbtq/creator-sync/shared/logger"
	"github.com/cuongbtq/creator-sync/shared/postgresql"
	"github.com/cuongbtq/creator-sync/shared/rabbitmq"
	"github.com/cuongbtq/creator-sync/shared/redis"
)

// App holds the connected clients and the services built on them.
type App struct {
	Logger  *slog.Logger
	DB      *postgresql.Client
	Rabbit  *rabbitmq.Client
	Redis   *redis.Client
	Storage *storage.Storage
	Queue   *queue.Queue
	Service *syncer.Service
}

// New connects every backing service and wires the sync service. On error
// whatever was already opened is closed.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	app := &App{Logger: log}
	if err := app.connect(ctx, cfg); err != nil {
		app.Close()
		return nil, err
	}

	providerClient := provider.NewClient(ProviderConfig(cfg), nil, log)

	app.Queue = queue.New(app.Storage, app.Rabbit, log)
	app.Service = syncer.NewService(SyncConfig(&cfg.Sync), app.Storage, app.Queue, providerClient, app.Redis, log)

	return app, nil
}

func (a *App) connect(ctx context.Context, cfg *config.Config) error {
	var err error

	a.DB, err = postgresql.NewClient(ctx, PostgreSQLConfig(&cfg.Database), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.Logger.Info("Database connection established")

	a.Storage = storage.NewStorage(a.DB.GetDB(), a.Logger)
	if cfg.Database.AutoMigrate {
		if err := a.Storage.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	a.Rabbit, err = rabbitmq.NewClient(RabbitMQConfig(&cfg.RabbitMQ), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	a.Logger.Info("RabbitMQ connection established")

	a.Redis, err = redis.NewClient(ctx, &redis.Config{URL: cfg.Redis.URL, KeyPrefix: cfg.Redis.KeyPrefix}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	a.Logger.Info("Redis connection established")

	return nil
}

// Close releases every client that was opened.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("Failed to close Redis", slog.String("error", err.Error()))
		}
	}
	if a.Rabbit != nil {
		if err := a.Rabbit.Close(); err != nil {
			a.Logger.Warn("Failed to close RabbitMQ", slog.String("error", err.Error()))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("Failed to close database", slog.String("error", err.Error()))
		}
	}
}

// HealthChecks returns the dependency checks served on /health.
func (a *App) HealthChecks() map[string]func(ctx context.Context) error {
	return map[string]func(ctx context.Context) error{
		"database": a.DB.HealthCheck,
		"redis":    a.Redis.HealthCheck,
		"rabbitmq": func(context.Context) error {
			if !a.Rabbit.IsConnected() {
				return fmt.Errorf("rabbitmq is not connected")
			}
			return nil
		},
	}
}

// Logger initializes and configures the application logger
func Logger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

func PostgreSQLConfig(cfg *config.DatabaseConfig) *postgresql.Config {
	return &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
}

func RabbitMQConfig(cfg *config.RabbitMQConfig) *rabbitmq.Config {
	maxPriority := cfg.MaxPriority
	if maxPriority == 0 {
		maxPriority = domain.MaxPriority
	}
	return &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		MaxPriority:        maxPriority,
		DelayQueueName:     cfg.DelayQueue,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}
}

func ProviderConfig(cfg *config.Config) *provider.Config {
	p := cfg.Provider
	return &provider.Config{
		BaseURL:             p.BaseURL,
		APIKey:              p.APIKey,
		WebhookURL:          cfg.Sync.WebhookURL,
		Timeout:             p.Timeout,
		RateLimit:           p.RateLimit,
		RateBurst:           p.RateBurst,
		BreakerMaxRequests:  p.Breaker.MaxRequests,
		BreakerInterval:     p.Breaker.Interval,
		BreakerTimeout:      p.Breaker.Timeout,
		BreakerMinRequests:  p.Breaker.MinRequests,
		BreakerFailureRatio: p.Breaker.FailureRatio,
	}
}

func SyncConfig(cfg *config.SyncConfig) syncer.Config {
	return syncer.Config{
		StatusCheckDelay:  cfg.StatusCheckDelay,
		MaxExportPolls:    cfg.MaxExportPolls,
		FanOutConcurrency: cfg.FanOutConcurrency,
		WebhookDedupeTTL:  cfg.WebhookDedupeTTL,
		IngestGuardTTL:    cfg.IngestGuardTTL,
		ScheduleLockTTL:   cfg.ScheduleLockTTL,
	}
}

// Schedules converts the configured default schedules into definitions
// for EnsureSchedules.
func Schedules(defs []config.ScheduleConfig) []domain.SyncSchedule {
	out := make([]domain.SyncSchedule, 0, len(defs))
	for _, d := range defs {
		filter := domain.SearchFilter{
			WorkPlatformID:    d.WorkPlatformID,
			HasContactDetails: d.HasContactDetails,
			Limit:             d.Limit,
		}
		if d.MinFollowers != nil || d.MaxFollowers != nil {
			filter.FollowerCount = &domain.Range{Min: d.MinFollowers, Max: d.MaxFollowers}
		}
		out = append(out, domain.SyncSchedule{
			Name:     d.Name,
			CronExpr: d.Cron,
			Filter:   filter,
			Priority: domain.PriorityLow,
			Active:   true,
		})
	}
	return out
}

// Package syncer drives profile synchronization: it turns scheduling requests
// into queue jobs, executes those jobs against the provider, and reconciles
// the results into the profile store.
package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/cuongbtq/creator-sync/internal/provider"
)

// Store is the persistence the sync pipeline needs.
type Store interface {
	domain.ProfileRepository

	// WithinTx runs fn atomically while holding a lock on lockKey.
	WithinTx(ctx context.Context, lockKey string, fn func(ctx context.Context, repo domain.ProfileRepository) error) error

	EnsureSchedule(ctx context.Context, schedule *domain.SyncSchedule) (*domain.SyncSchedule, error)
	ListSchedules(ctx context.Context, activeOnly bool) ([]*domain.SyncSchedule, error)
	SetScheduleLastJob(ctx context.Context, scheduleID, jobID string) error
	HasActiveJobForSchedule(ctx context.Context, scheduleID string) (bool, error)
}

// JobQueue enqueues and inspects sync jobs.
type JobQueue interface {
	Enqueue(ctx context.Context, kind domain.JobKind, payload domain.Payload, opts domain.EnqueueOptions) (*domain.SyncJob, error)
	Get(ctx context.Context, jobID string) (*domain.SyncJob, error)
	List(ctx context.Context, filter domain.JobFilter) ([]*domain.SyncJob, *domain.JobCursor, error)
}

// Provider is the creator analytics API.
type Provider interface {
	SearchProfiles(ctx context.Context, filter domain.SearchFilter) (*provider.SearchResult, error)
	FetchProfile(ctx context.Context, profileURL, workPlatformID string) []domain.PlatformProfile
	StartExport(ctx context.Context, params domain.ExportParams) (*domain.ExportTask, error)
	GetExportStatus(ctx context.Context, exportID string) (*domain.ExportTask, error)
	DownloadExport(ctx context.Context, exportID string) ([]byte, error)
	GetPlatforms(ctx context.Context) ([]domain.DictionaryEntry, error)
	GetTopics(ctx context.Context) ([]domain.DictionaryEntry, error)
	GetLocations(ctx context.Context) ([]domain.DictionaryEntry, error)
}

// Locker hands out short-lived named locks shared across processes.
// AcquireFor also succeeds when the lock is already held by the same owner.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	AcquireFor(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// Config tunes the sync pipeline.
type Config struct {
	StatusCheckDelay  time.Duration
	MaxExportPolls    int
	FanOutConcurrency int
	WebhookDedupeTTL  time.Duration
	IngestGuardTTL    time.Duration
	ScheduleLockTTL   time.Duration
}

func (c Config) withDefaults() Config {
	if c.StatusCheckDelay <= 0 {
		c.StatusCheckDelay = 30 * time.Second
	}
	if c.MaxExportPolls <= 0 {
		c.MaxExportPolls = 240
	}
	if c.FanOutConcurrency <= 0 {
		c.FanOutConcurrency = 8
	}
	if c.WebhookDedupeTTL <= 0 {
		c.WebhookDedupeTTL = time.Hour
	}
	if c.IngestGuardTTL <= 0 {
		c.IngestGuardTTL = 24 * time.Hour
	}
	if c.ScheduleLockTTL <= 0 {
		c.ScheduleLockTTL = time.Minute
	}
	return c
}

// Service is the sync pipeline. It is safe for concurrent use.
type Service struct {
	config   Config
	store    Store
	queue    JobQueue
	provider Provider
	locker   Locker
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a Service.
func NewService(config Config, store Store, queue JobQueue, provider Provider, locker Locker, logger *slog.Logger) *Service {
	return &Service{
		config:   config.withDefaults(),
		store:    store,
		queue:    queue,
		provider: provider,
		locker:   locker,
		logger:   logger,
		now:      time.Now,
	}
}

// Package worker consumes sync jobs from the broker and runs them with
// bounded concurrency.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/creator-sync/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Broker is the message source the worker consumes from.
type Broker interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	NotifyClose() <-chan *amqp.Error
}

// JobStore holds the job rows the worker claims and updates.
type JobStore interface {
	ClaimJob(ctx context.Context, jobID, workerID string) (*domain.SyncJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus, result *domain.JobResult, errorMsg string) error
	UpdateJobHeartbeat(ctx context.Context, jobID string) error
}

// JobQueue moves jobs in and out of the delayed state and recovers jobs
// whose message or worker was lost.
type JobQueue interface {
	Activate(ctx context.Context, jobID string) error
	Reschedule(ctx context.Context, job *domain.SyncJob, delay time.Duration, result *domain.JobResult) error
	Retry(ctx context.Context, job *domain.SyncJob, delay time.Duration, errorMsg string) error
	RequeueOverdue(ctx context.Context, grace time.Duration, limit int) (int, error)
	RecoverStale(ctx context.Context, staleAfter time.Duration, maxRetries, limit int) (int, error)
}

// Executor runs one claimed job.
type Executor interface {
	Execute(ctx context.Context, job *domain.SyncJob) (domain.Outcome, error)
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	WorkerID          string
	Broker            Broker
	Store             JobStore
	Queue             JobQueue
	Executor          Executor
	Scheduler         *Scheduler
	Concurrency       int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
	RetryDelay        time.Duration
	MaxRetries        int
	SweepInterval     time.Duration
	OverdueGrace      time.Duration
	StaleAfter        time.Duration // heartbeat age after which a running job is taken back
}

// Worker represents the background job worker
type Worker struct {
	logger            *slog.Logger
	workerID          string
	broker            Broker
	storage           JobStore
	queue             JobQueue
	executor          Executor
	scheduler         *Scheduler
	concurrency       int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	retryDelay        time.Duration
	maxRetries        int
	sweepInterval     time.Duration
	overdueGrace      time.Duration
	staleAfter        time.Duration
	jobsChan          chan *delivery
	wg                sync.WaitGroup
	stopChan          chan struct{}
	stopOnce          sync.Once
}

// delivery is one broker message addressed to a job.
type delivery struct {
	domain.JobMessage
	ack amqp.Acknowledger
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	w := &Worker{
		logger:            cfg.Logger,
		workerID:          cfg.WorkerID,
		broker:            cfg.Broker,
		storage:           cfg.Store,
		queue:             cfg.Queue,
		executor:          cfg.Executor,
		scheduler:         cfg.Scheduler,
		concurrency:       max(cfg.Concurrency, 1),
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: cfg.HeartbeatInterval,
		retryDelay:        cfg.RetryDelay,
		maxRetries:        cfg.MaxRetries,
		sweepInterval:     cfg.SweepInterval,
		overdueGrace:      cfg.OverdueGrace,
		staleAfter:        cfg.StaleAfter,
		stopChan:          make(chan struct{}),
	}
	if w.jobTimeout <= 0 {
		w.jobTimeout = 30 * time.Minute
	}
	if w.heartbeatInterval <= 0 {
		w.heartbeatInterval = 30 * time.Second
	}
	if w.retryDelay <= 0 {
		w.retryDelay = time.Minute
	}
	if w.sweepInterval <= 0 {
		w.sweepInterval = time.Minute
	}
	if w.overdueGrace <= 0 {
		w.overdueGrace = 5 * time.Minute
	}
	if w.staleAfter <= 0 {
		w.staleAfter = 5 * w.heartbeatInterval
	}
	w.jobsChan = make(chan *delivery, w.concurrency)
	return w
}

// Start consumes and processes jobs until ctx is canceled or the broker
// closes the channel.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.startMessageDispatcher(ctx, deliveries)
	}()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.runSweeper(ctx)
	}()

	if w.scheduler != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.scheduler.Run(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		w.logger.Info("Worker context canceled, stopping...")
		return nil
	case amqpErr, ok := <-w.broker.NotifyClose():
		if !ok || amqpErr == nil {
			return fmt.Errorf("rabbitmq channel closed")
		}
		return fmt.Errorf("rabbitmq channel closed: %w", amqpErr)
	}
}

// Stop signals the pool and waits for in-flight jobs to finish.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// runSweeper periodically calls sweep until the worker stops.
func (w *Worker) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep requeues delayed jobs whose delay message never arrived and running
// jobs whose worker stopped heartbeating.
func (w *Worker) sweep(ctx context.Context) {
	n, err := w.queue.RequeueOverdue(ctx, w.overdueGrace, 100)
	if err != nil {
		w.logger.Warn("Failed to requeue overdue jobs",
			slog.String("error", err.Error()),
		)
	} else if n > 0 {
		w.logger.Info("Requeued overdue delayed jobs", slog.Int("count", n))
	}

	n, err = w.queue.RecoverStale(ctx, w.staleAfter, w.maxRetries, 100)
	if err != nil {
		w.logger.Warn("Failed to recover stale jobs",
			slog.String("error", err.Error()),
		)
	} else if n > 0 {
		w.logger.Info("Recovered stale running jobs", slog.Int("count", n))
	}
}

package dispatch

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/realtechee/platform/am"
	"github.com/realtechee/platform/errors"
)

// MaxOrphanedJobsToRecover limits how many orphaned jobs we'll attempt to
// recover on startup to prevent overwhelming the system after a crash
const MaxOrphanedJobsToRecover = 1000

// WorkerPool manages a pool of workers that process queued jobs
type WorkerPool struct {
	queue         *Queue
	db            *sql.DB
	config        *am.Config
	poolConfig    WorkerPoolConfig
	workers       int
	parentCtx     context.Context
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	executor      JobExecutor
	activeWorkers int
	startTime     time.Time
	logger        *zap.SugaredLogger
	mu            sync.Mutex
}

// WorkerPoolConfig contains configuration for the worker pool
type WorkerPoolConfig struct {
	Workers      int           `json:"workers"`       // Number of concurrent workers
	PollInterval time.Duration `json:"poll_interval"` // How often to check for new jobs
}

// DefaultWorkerPoolConfig returns sensible defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:      1, // Single worker avoids provider rate-limit bursts
		PollInterval: 5 * time.Second,
	}
}

// PoolConfigFromAm builds a WorkerPoolConfig from application config,
// falling back to defaults for zero values.
func PoolConfigFromAm(cfg *am.Config) WorkerPoolConfig {
	poolCfg := DefaultWorkerPoolConfig()
	if cfg.Dispatch.Workers > 0 {
		poolCfg.Workers = cfg.Dispatch.Workers
	}
	if cfg.Dispatch.PollIntervalSeconds > 0 {
		poolCfg.PollInterval = time.Duration(cfg.Dispatch.PollIntervalSeconds) * time.Second
	}
	return poolCfg
}

// NewWorkerPool creates a new worker pool with an empty handler registry.
// Callers must register handlers before calling Start().
func NewWorkerPool(db *sql.DB, cfg *am.Config, poolCfg WorkerPoolConfig, logger *zap.SugaredLogger) *WorkerPool {
	return NewWorkerPoolWithContext(context.Background(), db, cfg, poolCfg, logger)
}

// NewWorkerPoolWithContext creates a worker pool with a custom parent context.
// Cancelling the parent context shuts the pool down; Stop() cancels workers
// independently without touching the parent.
func NewWorkerPoolWithContext(ctx context.Context, db *sql.DB, cfg *am.Config, poolCfg WorkerPoolConfig, logger *zap.SugaredLogger) *WorkerPool {
	registry := NewHandlerRegistry()
	return NewWorkerPoolWithRegistry(ctx, db, cfg, poolCfg, logger, registry)
}

// NewWorkerPoolWithRegistry creates a worker pool with a custom handler registry.
func NewWorkerPoolWithRegistry(ctx context.Context, db *sql.DB, cfg *am.Config, poolCfg WorkerPoolConfig, logger *zap.SugaredLogger, registry *HandlerRegistry) *WorkerPool {
	workerCtx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		queue:      NewQueue(db),
		db:         db,
		config:     cfg,
		poolConfig: poolCfg,
		workers:    poolCfg.Workers,
		parentCtx:  ctx,
		ctx:        workerCtx,
		cancel:     cancel,
		executor:   NewRegistryExecutor(registry),
		logger:     logger.Named("dispatch"),
	}
}

// Start begins processing jobs with the worker pool.
// Orphaned jobs from a previous crash are re-queued before workers spawn.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()

	// Context cancelled by a previous Stop() - recreate from parent.
	// Must happen before spawning workers to avoid races.
	select {
	case <-wp.ctx.Done():
		wp.ctx, wp.cancel = context.WithCancel(wp.parentCtx)
		wp.logger.Debugw("Recreated worker context after previous shutdown")
	default:
	}

	wp.startTime = time.Now()
	wp.mu.Unlock()

	if err := wp.recoverOrphanedJobs(); err != nil {
		wp.logger.Warnw("Failed to recover orphaned jobs", "error", err)
		// Continue starting workers even if recovery fails
	}

	if warning := wp.checkMemoryPressure(); warning != "" {
		wp.logger.Warnw("Memory pressure warning", "warning", warning, "workers", wp.workers)
	}

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// recoverOrphanedJobs finds jobs stuck in "running" state and re-queues them.
// This handles ungraceful shutdowns (crash, kill -9, power loss). Delivery
// jobs are idempotent enough to retry: the delivery log records what was
// actually handed to a provider.
func (wp *WorkerPool) recoverOrphanedJobs() error {
	runningStatus := JobStatusRunning
	orphanedJobs, err := wp.queue.store.ListJobs(&runningStatus, MaxOrphanedJobsToRecover)
	if err != nil {
		return errors.Wrap(err, "failed to list running jobs")
	}

	if len(orphanedJobs) == 0 {
		return nil
	}

	wp.logger.Infow("Found orphaned jobs from previous shutdown", "count", len(orphanedJobs))

	recovered := 0
	for _, job := range orphanedJobs {
		job.Requeue()
		if err := wp.queue.UpdateJob(job); err != nil {
			wp.logger.Warnw("Failed to recover orphaned job", "job_id", job.ID, "error", err)
			continue
		}
		recovered++
	}

	wp.logger.Infow("Recovered orphaned jobs", "recovered", recovered, "total", len(orphanedJobs))
	return nil
}

// Stop gracefully stops the worker pool.
// Uses a 30-second timeout so a slow in-flight delivery doesn't block
// shutdown indefinitely.
func (wp *WorkerPool) Stop() {
	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	timeout := 30 * time.Second
	select {
	case <-done:
		wp.logger.Infow("WorkerPool stopped - all workers exited cleanly")
	case <-time.After(timeout):
		wp.logger.Warnw("WorkerPool stop timeout - workers may still be finishing", "timeout", timeout)
	}
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	interval := wp.poolConfig.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Error backoff state
	errorCount := 0
	const maxConsecutiveErrors = 5
	backoffDuration := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-wp.ctx.Done():
			return
		case <-ticker.C:
			if err := wp.processNextJob(); err != nil {
				select {
				case <-wp.ctx.Done():
					// Shutting down - exit silently
					return
				default:
					if errors.Is(err, sql.ErrConnDone) {
						// Database closed during shutdown - exit silently
						return
					}
					errorCount++
					wp.logger.Errorw("Worker error processing job",
						"worker_id", id,
						"error", err,
						"consecutive_errors", errorCount)

					if errorCount >= maxConsecutiveErrors {
						wp.logger.Warnw("Worker backing off due to consecutive errors",
							"worker_id", id,
							"backoff", backoffDuration,
							"consecutive_errors", errorCount)
						time.Sleep(backoffDuration)
						backoffDuration = min(backoffDuration*2, maxBackoff)
					}
				}
			} else {
				if errorCount > 0 {
					wp.logger.Infow("Worker recovered from errors",
						"worker_id", id,
						"previous_error_count", errorCount)
				}
				errorCount = 0
				backoffDuration = time.Second
			}
		}
	}
}

// processNextJob gets the next job from the queue and processes it
func (wp *WorkerPool) processNextJob() error {
	select {
	case <-wp.ctx.Done():
		return nil // Graceful shutdown - don't process new jobs
	default:
	}

	job, err := wp.queue.Dequeue()
	if err != nil {
		return errors.Wrap(err, "failed to dequeue job")
	}
	if job == nil {
		return nil // No jobs available
	}

	wp.mu.Lock()
	wp.activeWorkers++
	wp.mu.Unlock()
	defer func() {
		wp.mu.Lock()
		wp.activeWorkers--
		wp.mu.Unlock()
	}()

	if err := wp.executor.Execute(wp.ctx, job); err != nil {
		select {
		case <-wp.ctx.Done():
			// Context cancelled mid-execution - re-queue so the next start
			// picks the job up instead of failing it
			wp.logger.Warnw("Job interrupted during shutdown, re-queuing", "job_id", job.ID)
			job.Requeue()
			if updateErr := wp.queue.UpdateJob(job); updateErr != nil {
				wp.logger.Errorw("Failed to re-queue interrupted job", "job_id", job.ID, "error", updateErr)
			}
			return nil
		default:
			return wp.handleJobFailure(job, err)
		}
	}

	job.Complete()
	if err := wp.queue.UpdateJob(job); err != nil {
		return errors.Wrap(err, "failed to mark job completed")
	}

	wp.logger.Infow("Job completed",
		"job_id", job.ID,
		"handler", job.HandlerName,
		"duration_ms", jobDurationMillis(job))
	return nil
}

// handleJobFailure either re-queues the job for another attempt or marks it
// permanently failed once retries are exhausted.
func (wp *WorkerPool) handleJobFailure(job *Job, execErr error) error {
	if job.RetryCount < MaxRetries {
		job.RetryCount++
		job.Requeue()
		wp.logger.Warnw("Job failed, re-queuing for retry",
			"job_id", job.ID,
			"handler", job.HandlerName,
			"retry", job.RetryCount,
			"max_retries", MaxRetries,
			"error", execErr)
		if err := wp.queue.UpdateJob(job); err != nil {
			return errors.Wrap(err, "failed to re-queue job for retry")
		}
		return nil
	}

	job.Fail(execErr)
	wp.logger.Errorw("Job failed permanently",
		"job_id", job.ID,
		"handler", job.HandlerName,
		"retries", job.RetryCount,
		"error", execErr)
	if err := wp.queue.UpdateJob(job); err != nil {
		return errors.Wrap(err, "failed to mark job failed")
	}
	return nil
}

func jobDurationMillis(job *Job) int64 {
	if job.StartedAt == nil || job.CompletedAt == nil {
		return 0
	}
	return job.CompletedAt.Sub(*job.StartedAt).Milliseconds()
}

// GetQueue returns the job queue (useful for enqueuing jobs)
func (wp *WorkerPool) GetQueue() *Queue {
	return wp.queue
}

// Workers returns the number of concurrent workers configured for this pool
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// Registry returns the handler registry for registering job handlers.
// Register handlers before calling Start():
//
//	pool := dispatch.NewWorkerPool(db, cfg, poolCfg, logger)
//	pool.Registry().Register(notify.NewEmailHandler(...))
//	pool.Start()
func (wp *WorkerPool) Registry() *HandlerRegistry {
	if registryExec, ok := wp.executor.(*RegistryExecutor); ok {
		return registryExec.registry
	}
	return nil
}

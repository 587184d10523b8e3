package async

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/reportcopilot/db"
	"github.com/teranos/reportcopilot/errors"
	"github.com/teranos/reportcopilot/logger"
)

// JobExecutor runs one claimed job. *Runner implements it.
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// pulseLogger wraps zap.SugaredLogger with methods for worker lifecycle events
type pulseLogger struct {
	*zap.SugaredLogger
}

// Starting logs an opening event
func (l pulseLogger) Starting(msg string, keysAndValues ...interface{}) {
	l.Debugw("✿ "+msg, keysAndValues...)
}

// Closing logs a closing event
func (l pulseLogger) Closing(msg string, keysAndValues ...interface{}) {
	l.Infow("❀ "+msg, keysAndValues...)
}

// WorkerPoolConfig contains configuration for the worker pool
type WorkerPoolConfig struct {
	Workers      int           `json:"workers"`       // Number of concurrent workers
	PollInterval time.Duration `json:"poll_interval"` // How often an idle worker checks for new jobs
}

// DefaultWorkerPoolConfig returns sensible defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:      1,
		PollInterval: 2 * time.Second,
	}
}

// Backoff applied after repeated claim or store errors
const (
	maxConsecutiveErrors = 5
	maxBackoff           = 30 * time.Second
)

// WorkerPool runs N workers that claim queued jobs and execute them
type WorkerPool struct {
	store    *Store
	executor JobExecutor
	config   WorkerPoolConfig
	logger   pulseLogger
}

// NewWorkerPool creates a pool claiming from store and running jobs with executor
func NewWorkerPool(store *Store, executor JobExecutor, cfg WorkerPoolConfig, log *zap.SugaredLogger) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultWorkerPoolConfig().PollInterval
	}
	return &WorkerPool{
		store:    store,
		executor: executor,
		config:   cfg,
		logger:   pulseLogger{logger.OrNop(log).Named("pulse")},
	}
}

// Workers returns the number of concurrent workers configured for this pool
func (wp *WorkerPool) Workers() int {
	return wp.config.Workers
}

// Run requeues jobs orphaned by a previous process, then processes jobs
// until ctx is done. A running job sees ctx canceled at its next step
// boundary and goes back to the queue.
func (wp *WorkerPool) Run(ctx context.Context) error {
	if n, err := wp.store.RequeueOrphaned(); err != nil {
		wp.logger.Warnw("Failed to recover orphaned jobs", logger.FieldError, err)
	} else if n > 0 {
		wp.logger.Starting("Recovered orphaned jobs from previous run", logger.FieldCount, n)
	}

	wp.logger.Starting("Worker pool started", "workers", wp.config.Workers, "poll_interval", wp.config.PollInterval)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < wp.config.Workers; i++ {
		id := i
		g.Go(func() error {
			wp.worker(gctx, id)
			return nil
		})
	}
	err := g.Wait()
	wp.logger.Closing("Worker pool stopped")
	return err
}

// worker polls for jobs, draining the queue before waiting again
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	ctx = logger.WithComponent(ctx, fmt.Sprintf("worker-%d", id))
	log := logger.FromContext(ctx, wp.logger.SugaredLogger)
	ticker := time.NewTicker(wp.config.PollInterval)
	defer ticker.Stop()

	errorCount := 0
	backoff := time.Second

	for {
		for {
			processed, err := wp.ProcessNext(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, sql.ErrConnDone) {
					return
				}
				if db.IsDatabaseClosed(err) {
					log.Debugw("Database closed, worker exiting")
					return
				}
				errorCount++
				log.Errorw("Worker error processing job", logger.FieldError, err, "consecutive_errors", errorCount)
				if errorCount >= maxConsecutiveErrors {
					log.Warnw("Worker backing off due to consecutive errors", "backoff", backoff)
					if !sleep(ctx, backoff) {
						return
					}
					backoff = min(backoff*2, maxBackoff)
				}
				break
			}
			if errorCount > 0 {
				log.Infow("Worker recovered from errors", "previous_error_count", errorCount)
				errorCount = 0
				backoff = time.Second
			}
			if !processed || ctx.Err() != nil {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessNext claims and executes one job. It reports false when the queue was empty.
func (wp *WorkerPool) ProcessNext(ctx context.Context) (bool, error) {
	if ctx.Err() != nil {
		return false, nil
	}
	job, err := wp.store.ClaimNext()
	if err != nil {
		return false, errors.Wrap(err, "failed to claim job")
	}
	if job == nil {
		return false, nil
	}
	if err := wp.executor.Execute(ctx, job); err != nil {
		return true, errors.Wrapf(err, "job %s", job.ID)
	}
	return true, nil
}

// sleep waits for d or until ctx is done; it reports whether d elapsed
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

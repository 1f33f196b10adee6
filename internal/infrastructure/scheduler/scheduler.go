// Package scheduler runs the ledger's maintenance jobs (overdue sweeps,
// credit reconciliation and ledger replay) on a worker pool with a timeout
// per job and delayed retries. It does not decide when jobs run; callers
// submit them.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const queueSize = 32

// Runner executes one kind of maintenance job
type Runner interface {
	Run(ctx context.Context, kind JobKind) error
}

// Config holds scheduler configuration
type Config struct {
	Workers       int
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Workers:       1,
		JobTimeout:    30 * time.Minute,
		RetryAttempts: 2,
		RetryDelay:    5 * time.Minute,
	}
}

// Scheduler runs submitted jobs on a small worker pool and retries
// failures after a delay
type Scheduler struct {
	config Config
	runner Runner
	logger *zap.Logger
	now    func() time.Time

	jobs    chan *Job
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	ctx     context.Context
}

// NewScheduler creates a scheduler; zero config fields take the defaults
func NewScheduler(config Config, runner Runner, logger *zap.Logger) *Scheduler {
	def := DefaultConfig()
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = def.JobTimeout
	}
	if config.RetryAttempts < 0 {
		config.RetryAttempts = 0
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = def.RetryDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config: config,
		runner: runner,
		logger: logger,
		now:    time.Now,
		jobs:   make(chan *Job, queueSize),
	}
}

// Start launches the workers
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(s.ctx, i)
	}
	s.logger.Info("Maintenance workers started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers. Queued jobs are dropped.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Maintenance workers stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Maintenance workers stop timed out")
		return ctx.Err()
	}
}

// Submit queues a new job of kind
func (s *Scheduler) Submit(kind JobKind) (*Job, error) {
	if !kind.IsValid() {
		return nil, ErrUnknownJob
	}
	job := NewJob(kind, s.config.RetryAttempts)
	if err := s.enqueue(job); err != nil {
		return nil, err
	}
	s.logger.Debug("Job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(kind)),
	)
	return job, nil
}

func (s *Scheduler) enqueue(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrSchedulerNotRunning
	}
	select {
	case s.jobs <- job:
		return nil
	default:
		return ErrJobQueueFull
	}
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.process(ctx, job, id)
		}
	}
}

func (s *Scheduler) process(ctx context.Context, job *Job, workerID int) {
	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
	)
	job.Start(s.now())
	log.Info("Running maintenance job", zap.Int("attempt", job.RetryCount+1))

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	err := s.runner.Run(jobCtx, job.Kind)
	cancel()

	if err == nil {
		job.Complete(s.now())
		log.Info("Maintenance job completed", zap.Duration("elapsed", job.CompletedAt.Sub(*job.StartedAt)))
		job.finish()
		return
	}

	job.Fail(s.now(), err)
	log.Error("Maintenance job failed", zap.Error(err))
	if ctx.Err() != nil || !job.ShouldRetry() {
		job.finish()
		return
	}
	job.ScheduleRetry(s.now(), s.config.RetryDelay)
	log.Info("Maintenance job scheduled for retry",
		zap.Int("retry_count", job.RetryCount),
		zap.Int("max_retries", job.MaxRetries),
		zap.Time("next_retry_at", *job.NextRetryAt),
	)
	s.wg.Add(1)
	go s.retryLater(ctx, job)
}

func (s *Scheduler) retryLater(ctx context.Context, job *Job) {
	defer s.wg.Done()
	timer := time.NewTimer(s.config.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		job.Fail(s.now(), ctx.Err())
		job.finish()
	case <-timer.C:
		if err := s.enqueue(job); err != nil {
			s.logger.Warn("Failed to re-queue job for retry",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
			job.Fail(s.now(), err)
			job.finish()
		}
	}
}

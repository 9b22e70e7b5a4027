package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/orderrecon/pkg/logger"
	"github.com/angelmondragon/orderrecon/pkg/metrics"
)

const defaultTick = time.Minute

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockFactory
	Metrics  *metrics.CronJobMetrics
	// Tick is how often due jobs are checked.
	Tick time.Duration
	Now  func() time.Time
}

// Service runs each registered job on its own cadence. A successful run keeps
// the job's lease until it expires one tick short of the interval, so across
// replicas a job runs at most once per interval. A failed run frees the lease
// and the next replica to find the job due retries it.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    LockFactory
	metrics  *metrics.CronJobMetrics
	tick     time.Duration
	now      func() time.Time
	nextRun  map[string]time.Time
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	tick := params.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locks:    params.Locks,
		metrics:  params.Metrics,
		tick:     tick,
		now:      now,
		nextRun:  map[string]time.Time{},
	}, nil
}

// Run starts the cron loop until the context is canceled. Every job is due on start.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.runDue(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue runs every job whose next run time has passed, in registration order.
func (s *Service) runDue(ctx context.Context) {
	for _, entry := range s.registry.Entries() {
		if ctx.Err() != nil {
			return
		}
		name := entry.Job.Name()
		now := s.now()
		if next, ok := s.nextRun[name]; ok && now.Before(next) {
			continue
		}
		s.nextRun[name] = now.Add(entry.Every)
		s.runLocked(ctx, entry)
	}
}

func (s *Service) runLocked(ctx context.Context, entry Entry) {
	name := entry.Job.Name()
	jobCtx := s.logg.WithField(ctx, "job", name)

	lock, err := s.locks(name, s.leaseTTL(entry.Every))
	if err != nil {
		s.logg.Error(jobCtx, "build job lock", err)
		s.metrics.IncFailure(name)
		return
	}
	locked, err := lock.Acquire(jobCtx)
	if err != nil {
		s.logg.Error(jobCtx, "lock acquire", err)
		s.metrics.IncFailure(name)
		return
	}
	if !locked {
		s.logg.Info(jobCtx, "job lease held elsewhere; skipping")
		s.metrics.IncSkipped(name)
		return
	}
	if err := s.runJob(jobCtx, entry.Job); err == nil {
		return
	}
	if relErr := lock.Release(jobCtx); relErr != nil {
		s.logg.Error(jobCtx, "failed to release job lock", relErr)
	}
}

// leaseTTL stays a tick short of the interval so the replica that ran the job
// finds the lease expired when the job is next due.
func (s *Service) leaseTTL(every time.Duration) time.Duration {
	if ttl := every - s.tick; ttl > 0 {
		return ttl
	}
	return every
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "event", "cron.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
	return nil
}

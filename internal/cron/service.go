// Package cron schedules background jobs behind a distributed lock.
package cron

import (
	"context"
	"fmt"
	"time"

	robfig "github.com/robfig/cron/v3"

	"github.com/openbillingstore/billing-core/pkg/logger"
	"github.com/openbillingstore/billing-core/pkg/metrics"
)

// DefaultSpec runs every five minutes. Specs carry a seconds field.
const DefaultSpec = "0 */5 * * * *"

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.SchedulerMetrics
	Spec     string
}

// Service executes registered jobs on a cron schedule. Only the instance
// holding the lock runs a cycle.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.SchedulerMetrics
	spec     string
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	spec := params.Spec
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := parser().Parse(spec); err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", spec, err)
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		spec:     spec,
	}, nil
}

func parser() robfig.Parser {
	return robfig.NewParser(robfig.Second | robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow | robfig.Descriptor)
}

// Run runs one cycle immediately, then schedules cycles until ctx is canceled.
// It waits for an in-flight cycle before returning.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}

	scheduler := robfig.New(robfig.WithSeconds(), robfig.WithChain(robfig.SkipIfStillRunning(robfig.DiscardLogger)))
	_, err := scheduler.AddFunc(s.spec, func() {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "scheduled run failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cron cycle: %w", err)
	}
	scheduler.Start()
	s.logg.Info(s.logg.WithField(ctx, "spec", s.spec), "cron scheduler started")

	<-ctx.Done()
	s.logg.Info(ctx, "cron service context canceled")
	stopped := scheduler.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(time.Minute):
		s.logg.Warn(ctx, "cron cycle still running at shutdown")
	}
	return ctx.Err()
}

func (s *Service) runCycle(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		s.metrics.IncSkipped()
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Info(ctx, "scheduled run starting")
	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
	s.logg.Info(ctx, "scheduled run complete")
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveJob(job.Name(), duration, err)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return
	}
	s.logg.Info(jobCtx, "job completed")
}

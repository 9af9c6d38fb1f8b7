// Package scheduler runs resolution cycles on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/verdict/internal/api/job"
	"github.com/newthinker/verdict/internal/core"
	"github.com/newthinker/verdict/internal/engine"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSpec runs a cycle every fifteen minutes.
const DefaultSpec = "@every 15m"

// Runner executes one resolution cycle.
type Runner interface {
	Run(ctx context.Context) (*engine.Result, error)
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config holds scheduler settings.
type Config struct {
	Spec       string
	RunOnStart bool
}

// Scheduler triggers the runner on a schedule. Overlapping triggers are
// skipped while a cycle is still running.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	runner   Runner
	jobs     *job.Store
	logger   *zap.Logger
	cfg      Config
}

// New validates the schedule and creates a Scheduler. jobs may be nil.
func New(cfg Config, runner Runner, jobs *job.Store, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	schedule, err := parser.Parse(cfg.Spec)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("schedule %q: %w", cfg.Spec, err))
	}

	cl := newCronLogger(logger)
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		schedule: schedule,
		runner:   runner,
		jobs:     jobs,
		logger:   logger,
		cfg:      cfg,
	}
	return s, nil
}

// Next returns the next trigger time after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Start runs the schedule until ctx is cancelled, then waits for a running
// cycle to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.Spec, func() { s.RunOnce(ctx) }); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	s.logger.Info("scheduler started",
		zap.String("spec", s.cfg.Spec),
		zap.Time("next", s.Next(time.Now())),
	)
	s.cron.Start()

	if s.cfg.RunOnStart {
		s.RunOnce(ctx)
	}

	<-ctx.Done()
	s.logger.Info("scheduler stopping")
	<-s.cron.Stop().Done()
	return nil
}

// RunOnce runs one cycle and records it in the run history.
func (s *Scheduler) RunOnce(ctx context.Context) (*engine.Result, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var runID string
	if s.jobs != nil {
		runID = s.jobs.Create("scheduler").ID
		s.jobs.Start(runID)
	}

	result, err := s.runner.Run(ctx)
	if s.jobs != nil {
		var out any
		if result != nil {
			out = result
		}
		s.jobs.Finish(runID, out, err)
	}
	if err != nil {
		s.logger.Warn("scheduled cycle failed", zap.Error(err))
		return nil, err
	}
	return result, nil
}

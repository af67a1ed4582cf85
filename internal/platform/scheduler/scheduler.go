package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is a single sweep. It receives a context bounded by the job timeout.
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs sweeps on cron specs. A panicking job is recovered and
// overlapping runs of the same job are skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	jobs   []Job
	base   context.Context
}

func New(logger *slog.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))
	return &Scheduler{
		cron:   c,
		logger: logger,
		jobs:   jobs,
		base:   context.Background(),
	}
}

// Start registers every job and starts the cron loop. A job with an invalid
// spec is reported and the remaining jobs still run.
func (s *Scheduler) Start(ctx context.Context) int {
	if ctx != nil {
		s.base = ctx
	}
	registered := 0
	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Schedule, func() { s.run(job) }); err != nil {
			s.logger.Error("failed to schedule job",
				"event", "scheduler_job_register_failed",
				"module", "internal/platform/scheduler",
				"layer", "platform",
				"job", job.Name,
				"schedule", job.Schedule,
				"error", err.Error(),
			)
			continue
		}
		registered++
		s.logger.Info("scheduled job",
			"event", "scheduler_job_registered",
			"module", "internal/platform/scheduler",
			"layer", "platform",
			"job", job.Name,
			"schedule", job.Schedule,
		)
	}
	s.cron.Start()
	return registered
}

// Stop halts the cron loop. The returned context is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) run(job Job) {
	ctx := s.base
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	started := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("scheduled job failed",
			"event", "scheduler_job_failed",
			"module", "internal/platform/scheduler",
			"layer", "platform",
			"job", job.Name,
			"duration", time.Since(started).String(),
			"error", err.Error(),
		)
		return
	}
	s.logger.Debug("scheduled job finished",
		"event", "scheduler_job_finished",
		"module", "internal/platform/scheduler",
		"layer", "platform",
		"job", job.Name,
		"duration", time.Since(started).String(),
	)
}

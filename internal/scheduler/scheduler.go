// Package scheduler runs the periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"akinmueble/internal/config"
	"akinmueble/internal/middleware"
	"akinmueble/internal/observability"

	"github.com/robfig/cron/v3"
)

// Job is a named unit of periodic work. An empty Spec disables it.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler wraps a cron runner.
type Scheduler struct {
	cron      *cron.Cron
	jobs      []Job
	isRunning bool
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	middleware.Logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	middleware.Logger.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}

// New creates a scheduler for jobs. Overlapping runs of one job are skipped.
func New(jobs ...Job) *Scheduler {
	logger := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		jobs: jobs,
	}
}

// Start registers the enabled jobs and starts the runner.
func (s *Scheduler) Start() error {
	for _, job := range s.jobs {
		if job.Spec == "" {
			middleware.Logger.Info("scheduled job disabled", slog.String("job", job.Name))
			continue
		}
		job := job
		if _, err := s.cron.AddFunc(job.Spec, func() { _ = RunJob(context.Background(), job) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Spec, err)
		}
		middleware.Logger.Info("scheduled job registered", slog.String("job", job.Name), slog.String("spec", job.Spec))
	}
	s.cron.Start()
	s.isRunning = true
	return nil
}

// Stop stops the runner and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	if !s.isRunning {
		return
	}
	done := s.cron.Stop()
	s.isRunning = false
	select {
	case <-done.Done():
	case <-ctx.Done():
		middleware.Logger.Warn("scheduler stopped before jobs finished")
	}
}

// Entries returns how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// RunJob runs job once with its timeout, logging and counting the outcome.
func RunJob(ctx context.Context, job Job) error {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	observability.ScheduledJobRuns.WithLabelValues(job.Name, observability.Outcome(err)).Inc()
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "scheduled job failed",
			slog.String("job", job.Name),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return err
	}
	middleware.Logger.InfoContext(ctx, "scheduled job finished",
		slog.String("job", job.Name),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// Reindexer rebuilds the property search index.
type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// DigestSender emails advisers about requests waiting too long.
type DigestSender interface {
	SendStaleDigest(ctx context.Context, age time.Duration) (int, error)
}

// Jobs builds the configured jobs. A nil reindexer drops the reindex job.
func Jobs(cfg *config.Config, reindexer Reindexer, digests DigestSender) []Job {
	var jobs []Job
	if reindexer != nil {
		jobs = append(jobs, Job{
			Name: "search_reindex",
			Spec: cfg.SearchReindexCron,
			Run: func(ctx context.Context) error {
				n, err := reindexer.Reindex(ctx)
				if err == nil {
					middleware.Logger.InfoContext(ctx, "properties reindexed", slog.Int("count", n))
				}
				return err
			},
		})
	}
	jobs = append(jobs, Job{
		Name:    "stale_request_digest",
		Spec:    cfg.StaleRequestCron,
		Timeout: 2 * time.Minute,
		Run: func(ctx context.Context) error {
			n, err := digests.SendStaleDigest(ctx, cfg.StaleRequestAge)
			if err == nil {
				middleware.Logger.InfoContext(ctx, "stale request digests queued", slog.Int("advisers", n))
			}
			return err
		},
	})
	return jobs
}

// Package daemon re-runs the incremental crawl on a cron schedule.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Job is one scheduled pass, usually crawl then export.
type Job func(ctx context.Context) error

type Options struct {
	// Schedule is a five-field cron expression or a descriptor like "@hourly".
	Schedule string
	// RunNow runs the job once as soon as the daemon starts.
	RunNow   bool
	Location *time.Location
	Logger   *slog.Logger
}

type Daemon struct {
	job  Job
	opts Options
	log  *slog.Logger

	runs     atomic.Int64
	failures atomic.Int64
}

func New(job Job, opts Options) (*Daemon, error) {
	if job == nil {
		return nil, errors.New("daemon: nil job")
	}
	if opts.Schedule == "" {
		return nil, errors.New("daemon: empty schedule")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Daemon{job: job, opts: opts, log: log.With("component", "daemon")}, nil
}

// Runs and Failures count completed passes.
func (d *Daemon) Runs() int64     { return d.runs.Load() }
func (d *Daemon) Failures() int64 { return d.failures.Load() }

// Run schedules the job and blocks until ctx is cancelled. Passes never
// overlap: a tick that fires while a pass is running is skipped.
func (d *Daemon) Run(ctx context.Context) error {
	s, err := gocron.NewScheduler(
		gocron.WithLocation(d.opts.Location),
		gocron.WithLogger(d.log),
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	jobOpts := []gocron.JobOption{
		gocron.WithName("crawl"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if d.opts.RunNow {
		jobOpts = append(jobOpts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	j, err := s.NewJob(
		gocron.CronJob(d.opts.Schedule, false),
		gocron.NewTask(d.pass, ctx),
		jobOpts...,
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("invalid schedule %q: %w", d.opts.Schedule, err)
	}

	s.Start()
	if next, err := j.NextRun(); err == nil {
		d.log.Info("daemon started", "schedule", d.opts.Schedule, "next_run", next)
	}

	<-ctx.Done()
	d.log.Info("daemon stopping", "runs", d.Runs(), "failures", d.Failures())
	if err := s.Shutdown(); err != nil {
		return fmt.Errorf("scheduler shutdown: %w", err)
	}
	return nil
}

func (d *Daemon) pass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	d.log.Info("scheduled crawl starting")
	err := d.job(ctx)
	d.runs.Add(1)
	if err != nil {
		d.failures.Add(1)
		d.log.Error("scheduled crawl failed", "error", err, "duration", time.Since(start))
		return
	}
	d.log.Info("scheduled crawl finished", "duration", time.Since(start))
}

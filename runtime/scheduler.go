// Package runtime runs DeBot's periodic maintenance jobs.
package runtime

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// Job is a named piece of maintenance work.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Sweeper prunes stored memory. *memory.Ledger implements it.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// MemorySweepJob prunes over-budget memory records on schedule.
func MemorySweepJob(ledger Sweeper, schedule string) Job {
	return Job{
		Name:     "memory_sweep",
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			_, err := ledger.Sweep(ctx)
			return err
		},
	}
}

// Scheduler runs jobs on their schedules.
type Scheduler struct {
	cron   *cron.Cron
	jobs   map[string]Job
	logger zerolog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// NewScheduler validates every job's schedule and registers it.
func NewScheduler(logger zerolog.Logger, jobs ...Job) (*Scheduler, error) {
	s := &Scheduler{
		jobs:   make(map[string]Job, len(jobs)),
		logger: logger.With().Str("component", "scheduler").Logger(),
		ctx:    context.Background(),
	}
	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	for _, job := range jobs {
		if _, dup := s.jobs[job.Name]; dup {
			return nil, fmt.Errorf("duplicate job %q", job.Name)
		}
		sched, err := ParseSchedule(job.Schedule)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", job.Name, err)
		}
		s.jobs[job.Name] = job
		s.cron.Schedule(sched, cron.FuncJob(func() {
			_ = s.run(s.jobContext(), job)
		}))
	}
	return s, nil
}

// Jobs returns the registered job names, sorted.
func (s *Scheduler) Jobs() []string {
	names := lo.Keys(s.jobs)
	slices.Sort(names)
	return names
}

// Start runs jobs until ctx is cancelled, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.logger.Info().Strs("jobs", s.Jobs()).Msg("Starting scheduler")
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped: context cancelled")
}

// RunNow runs the named job immediately.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.run(ctx, job)
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	start := time.Now()
	err := job.Run(ctx)
	log := s.logger.With().Str("job", job.Name).Dur("duration", time.Since(start)).Logger()
	if err != nil {
		log.Error().Err(err).Msg("job failed")
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	log.Info().Msg("job completed")
	return nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

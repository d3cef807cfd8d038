package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"webmonitor/internal/config"

	"github.com/rs/zerolog/log"
)

// Job is a task the Scheduler runs every Interval.
type Job struct {
	ID       string
	Interval time.Duration

	// Delayed jobs wait one interval before their first run
	Delayed bool

	Task func(context.Context) error
}

// jobRun is a scheduled job and the state of its loop.
type jobRun struct {
	job    Job
	cancel context.CancelFunc

	// busy is set while a run is in flight; ticks that arrive meanwhile
	// are dropped so runs of one job never overlap
	busy atomic.Bool
}

// Scheduler runs periodic jobs on a bounded pool of workers.
//
// Each job has its own ticking loop; a run waits for a free worker slot
// and retries failures with a linear backoff. Scheduling a job whose ID
// is already taken replaces the old one.
type Scheduler struct {
	cfg config.SchedulerConfig

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	jobs   map[string]*jobRun

	slots chan struct{}
	wg    sync.WaitGroup
}

// NewScheduler creates a stopped scheduler.
//
// Parameters:
//   - cfg: Scheduler configuration
//
// Returns:
//   - *Scheduler: Initialized scheduler instance
func NewScheduler(cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		jobs:  make(map[string]*jobRun),
		slots: make(chan struct{}, max(cfg.WorkerCount, 1)),
	}
}

// Start makes the scheduler accept jobs. Cancelling ctx stops every job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return fmt.Errorf("scheduler is already running")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	log.Info().Int("worker_count", cap(s.slots)).Msg("Scheduler started")
	return nil
}

// Stop cancels all jobs and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return
	}

	log.Info().Int("jobs", len(s.jobs)).Msg("Stopping scheduler")
	s.cancel()
	clear(s.jobs)
	s.ctx, s.cancel = nil, nil
	s.mu.Unlock()

	s.wg.Wait()
	log.Info().Msg("Scheduler stopped")
}

// Schedule starts job, replacing any job with the same ID. A run of the
// replaced job that is already in flight finishes normally.
func (s *Scheduler) Schedule(job Job) error {
	if job.Interval <= 0 {
		return fmt.Errorf("job %s has non-positive interval", job.ID)
	}
	if job.Task == nil {
		return fmt.Errorf("job %s has no task", job.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		return fmt.Errorf("scheduler is not running")
	}

	if old, ok := s.jobs[job.ID]; ok {
		old.cancel()
	}

	run := &jobRun{job: job}
	var jobCtx context.Context
	jobCtx, run.cancel = context.WithCancel(s.ctx)
	s.jobs[job.ID] = run

	s.wg.Add(1)
	go s.loop(jobCtx, run)

	log.Debug().Str("job_id", job.ID).Dur("interval", job.Interval).Bool("delayed", job.Delayed).Msg("Job scheduled")
	return nil
}

// Unschedule stops a job. It reports whether the job existed.
func (s *Scheduler) Unschedule(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.jobs[id]
	if !ok {
		return false
	}
	run.cancel()
	delete(s.jobs, id)

	log.Debug().Str("job_id", id).Msg("Job unscheduled")
	return true
}

// Scheduled reports whether a job with the given ID is scheduled.
func (s *Scheduler) Scheduled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	return ok
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Running reports whether the scheduler accepts jobs.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx != nil
}

func (s *Scheduler) loop(ctx context.Context, run *jobRun) {
	defer s.wg.Done()

	ticker := time.NewTicker(run.job.Interval)
	defer ticker.Stop()

	if !run.job.Delayed {
		s.dispatch(ctx, run)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx, run)
		}
	}
}

// dispatch hands one run of the job to a worker.
func (s *Scheduler) dispatch(ctx context.Context, run *jobRun) {
	if !run.busy.CompareAndSwap(false, true) {
		log.Debug().Str("job_id", run.job.ID).Msg("Previous run still in flight, skipping tick")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer run.busy.Store(false)

		select {
		case s.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-s.slots }()

		s.execute(ctx, run.job)
	}()
}

// execute runs the task, retrying up to MaxRetries times.
func (s *Scheduler) execute(ctx context.Context, job Job) {
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return
		}

		err := job.Task(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info().Str("job_id", job.ID).Int("attempt", attempt+1).Msg("Job succeeded after retry")
			}
			return
		}

		if attempt >= s.cfg.MaxRetries {
			log.Error().Str("job_id", job.ID).Int("attempts", attempt+1).Err(err).Msg("Job failed after all retries")
			return
		}

		log.Warn().Str("job_id", job.ID).Int("attempt", attempt+1).Err(err).Msg("Job failed, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt+1) * s.cfg.RetryBackoff):
		}
	}
}

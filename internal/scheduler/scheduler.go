// Package scheduler runs named periodic jobs on independent timing loops,
// feeding fresh data into the live cache outside of request threads.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one registered unit of periodic work.
type Job struct {
	Name     string
	Callback func()
	Interval time.Duration
}

// Scheduler owns a registry of jobs and, while running, one goroutine per job.
// Jobs may be added or removed in either state; Stop signals every loop and
// blocks until all of them have exited.
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]*runningJob
	running bool
	wg      sync.WaitGroup
	logger  *slog.Logger
}

type runningJob struct {
	job    Job
	cancel context.CancelFunc // nil while the scheduler is stopped
}

// New creates a stopped scheduler. A nil logger selects slog.Default.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:   make(map[string]*runningJob),
		logger: logger,
	}
}

// AddJob registers or replaces a job under name. Replacing a job while the
// scheduler runs stops the old loop and starts a fresh one, so a new interval
// takes effect on the next tick. Intervals must be positive.
func (s *Scheduler) AddJob(name string, callback func(), interval time.Duration) {
	if interval <= 0 || callback == nil {
		s.logger.Warn("ignoring invalid job registration", "job", name, "interval", interval)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.jobs[name]; ok && prev.cancel != nil {
		prev.cancel()
	}

	rj := &runningJob{job: Job{Name: name, Callback: callback, Interval: interval}}
	s.jobs[name] = rj
	if s.running {
		s.launchLocked(rj)
	}
}

// RemoveJob deregisters a job. Removal while running stops that job's loop
// before its next tick; a tick already in flight is allowed to finish.
// No-op when the name is unknown.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rj, ok := s.jobs[name]
	if !ok {
		return
	}
	if rj.cancel != nil {
		rj.cancel()
	}
	delete(s.jobs, name)
}

// Start launches every registered job on its own timing loop. Jobs with
// different intervals never interfere with each other's cadence. No-op when
// already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	for _, rj := range s.jobs {
		s.launchLocked(rj)
	}
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop signals all job loops and blocks until every loop has exited. No job
// execution is observable after Stop returns. The job registry survives a
// stop, so Start runs the same jobs again.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	for _, rj := range s.jobs {
		if rj.cancel != nil {
			rj.cancel()
			rj.cancel = nil
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// JobNames returns the names of all registered jobs.
func (s *Scheduler) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// launchLocked starts the timing loop for one job. Caller holds s.mu.
func (s *Scheduler) launchLocked(rj *runningJob) {
	ctx, cancel := context.WithCancel(context.Background())
	rj.cancel = cancel

	job := rj.job
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(job.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runJob(job)
			}
		}
	}()
}

// runJob executes one tick, containing panics at the job boundary so a flaky
// upstream fetch can never stop this loop or any other job's loop.
func (s *Scheduler) runJob(job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled job panicked", "job", job.Name, "panic", r)
		}
	}()
	job.Callback()
}

// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrUnknownJob is returned by RunNow for names that were never registered.
var ErrUnknownJob = errors.New("unknown job")

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// JobInfo describes a registered job
type JobInfo struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule,omitempty"`
	Next     *time.Time `json:"next_run,omitempty"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	LastErr  string     `json:"last_error,omitempty"`
}

type registration struct {
	job      Job
	schedule string
	entry    cron.EntryID
	lastRun  *time.Time
	lastErr  string
	running  sync.Mutex
}

// Scheduler manages background jobs
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]*registration
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
		jobs: make(map[string]*registration),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule (six fields, seconds first).
// An empty schedule registers the job for manual runs only.
// Schedule examples:
//   - "0 55 23 * * *"  - 23:55 every day
//   - "@daily"         - midnight
//   - "@every 30s"     - every 30 seconds
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %s already registered", job.Name())
	}

	reg := &registration{job: job, schedule: schedule}
	if schedule != "" {
		id, err := s.cron.AddFunc(schedule, func() {
			if err := s.run(reg); err != nil {
				s.log.Error().Err(err).Str("job", job.Name()).Msg("Job failed")
			}
		})
		if err != nil {
			return fmt.Errorf("invalid schedule %q for %s: %w", schedule, job.Name(), err)
		}
		reg.entry = id
	}
	s.jobs[job.Name()] = reg

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a registered job immediately (outside schedule).
// A job never runs concurrently with itself; a manual run waits for a scheduled one.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	reg, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	s.log.Info().Str("job", name).Msg("Running job immediately")
	return s.run(reg)
}

func (s *Scheduler) run(reg *registration) error {
	reg.running.Lock()
	defer reg.running.Unlock()

	s.log.Debug().Str("job", reg.job.Name()).Msg("Running job")
	start := time.Now()
	err := reg.job.Run()

	s.mu.Lock()
	reg.lastRun = &start
	reg.lastErr = ""
	if err != nil {
		reg.lastErr = err.Error()
	}
	s.mu.Unlock()

	if err == nil {
		s.log.Debug().
			Str("job", reg.job.Name()).
			Dur("duration", time.Since(start)).
			Msg("Job completed")
	}
	return err
}

// Jobs lists registered jobs sorted by name
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for name, reg := range s.jobs {
		info := JobInfo{
			Name:     name,
			Schedule: reg.schedule,
			LastRun:  reg.lastRun,
			LastErr:  reg.lastErr,
		}
		if reg.entry != 0 {
			if next := s.cron.Entry(reg.entry).Next; !next.IsZero() {
				info.Next = &next
			}
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

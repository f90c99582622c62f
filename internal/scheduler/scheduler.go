// Package scheduler runs one persistent, coalescing job per tenant with
// max-instances=1 and a misfire grace window, hand-rolled with
// goroutines and timers rather than a cron expression library.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/withobsrvr/tally-sync-engine/internal/model"
	"github.com/withobsrvr/tally-sync-engine/internal/progress"
)

// RunFunc is the orchestrator entry point the Scheduler triggers. It
// accepts only the serializable primitive a persisted job carries —
// never a live DB handle or HTTP client — so a restored job is safe to
// fire before any other wiring has happened; RunFunc itself resolves
// live handles from the Registry.
type RunFunc func(ctx context.Context, companyName string) error

// DefaultMisfireGrace is used when Scheduler is built with a zero grace.
const DefaultMisfireGrace = 300 * time.Second

// Scheduler holds one timer per enabled tenant job. Jobs are keyed
// by a slug of the tenant name; firing a job the registry can't
// resolve a company for is itself treated as a misfire and skipped.
type Scheduler struct {
	mu           sync.Mutex
	jobs         map[string]*scheduledJob
	store        *ConfigStore
	registry     *Registry
	run          RunFunc
	sink         progress.Sink
	logger       *zap.Logger
	misfireGrace time.Duration
	now          func() time.Time
}

// New builds a Scheduler. misfireGrace of 0 uses DefaultMisfireGrace.
func New(store *ConfigStore, registry *Registry, run RunFunc, sink progress.Sink, logger *zap.Logger, misfireGrace time.Duration) *Scheduler {
	if misfireGrace <= 0 {
		misfireGrace = DefaultMisfireGrace
	}
	return &Scheduler{
		jobs:         make(map[string]*scheduledJob),
		store:        store,
		registry:     registry,
		run:          run,
		sink:         sink,
		logger:       logger,
		misfireGrace: misfireGrace,
		now:          time.Now,
	}
}

// Slug derives a job key from a tenant name: lowercased, whitespace
// collapsed to underscores. Distinct tenant names must not collide
// after slugging. The Scheduler's job map is keyed on this slug; the
// registry and config store are both keyed on the raw company name.
func Slug(companyName string) string {
	return strings.ToLower(strings.Join(strings.Fields(companyName), "_"))
}

type scheduledJob struct {
	cfg     model.SchedulerConfig
	timer   *time.Timer
	running bool // guards max-instances=1; held only while the run's goroutine is live
	stopped bool
}

// Start loads every enabled job from the store and schedules it. Call
// once at process start, after the Registry has been seeded.
func (s *Scheduler) Start(ctx context.Context) error {
	configs, err := s.store.ListEnabled(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cfg := range configs {
		s.scheduleLocked(ctx, cfg)
	}
	return nil
}

// Reschedule adds, updates, or removes a single tenant's job at
// runtime, e.g. in response to an admin changing its config row.
func (s *Scheduler) Reschedule(ctx context.Context, cfg model.SchedulerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Slug(cfg.CompanyName)
	if existing, ok := s.jobs[key]; ok {
		existing.stopped = true
		if existing.timer != nil {
			existing.timer.Stop()
		}
		delete(s.jobs, key)
	}
	if cfg.Enabled {
		s.scheduleLocked(ctx, cfg)
	}
	s.sink.SchedulerUpdated()
}

// scheduleLocked must be called with s.mu held.
func (s *Scheduler) scheduleLocked(ctx context.Context, cfg model.SchedulerConfig) {
	job := &scheduledJob{cfg: cfg}
	s.jobs[Slug(cfg.CompanyName)] = job
	s.armLocked(ctx, job, s.now())
}

// armLocked schedules job's next fire strictly after `after`, which
// naturally coalesces any fires missed while the process was down into
// a single next fire rather than queuing one per missed interval.
func (s *Scheduler) armLocked(ctx context.Context, job *scheduledJob, after time.Time) {
	next := nextFireTime(job.cfg, after)
	delay := next.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	job.timer = time.AfterFunc(delay, func() {
		s.fire(ctx, job, next)
	})
}

// fire runs job if it isn't already running and the misfire grace
// window hasn't elapsed; either way it rearms the timer for the
// following occurrence.
func (s *Scheduler) fire(ctx context.Context, job *scheduledJob, scheduledFor time.Time) {
	s.mu.Lock()
	if job.stopped {
		s.mu.Unlock()
		return
	}
	late := s.now().Sub(scheduledFor)
	if late > s.misfireGrace {
		s.logger.Warn("job fire exceeded misfire grace, skipping this occurrence",
			zap.String("company", job.cfg.CompanyName), zap.Duration("late_by", late))
		s.armLocked(ctx, job, s.now())
		s.mu.Unlock()
		return
	}
	if job.running {
		s.logger.Info("skip, already running", zap.String("company", job.cfg.CompanyName))
		s.armLocked(ctx, job, s.now())
		s.mu.Unlock()
		return
	}
	job.running = true
	s.armLocked(ctx, job, s.now())
	s.mu.Unlock()

	go s.runJob(ctx, job)
}

func (s *Scheduler) runJob(ctx context.Context, job *scheduledJob) {
	defer func() {
		s.mu.Lock()
		job.running = false
		s.mu.Unlock()
	}()

	companyName := job.cfg.CompanyName
	if _, ok := s.registry.Get(companyName); !ok {
		s.logger.Warn("scheduled job fired for a tenant the registry has no company row for, skipping",
			zap.String("company", companyName))
		return
	}

	if err := s.run(ctx, companyName); err != nil {
		s.logger.Error("scheduled run failed", zap.String("company", companyName), zap.Error(err))
		s.sink.Log(companyName, progress.LevelError, fmt.Sprintf("scheduled run failed: %v", err))
	}
}

// Stop halts every job's timer without waiting for in-flight runs;
// those recover via the chunk watermark on the next scheduled fire.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		job.stopped = true
		if job.timer != nil {
			job.timer.Stop()
		}
	}
}

// nextFireTime computes the next occurrence strictly after `after`.
func nextFireTime(cfg model.SchedulerConfig, after time.Time) time.Time {
	switch cfg.Interval {
	case "minutes":
		n := cfg.Value
		if n <= 0 {
			n = 1
		}
		return after.Add(time.Duration(n) * time.Minute)
	case "daily":
		return nextDailyOccurrence(cfg.Time, after)
	case "hours":
		fallthrough
	default:
		n := cfg.Value
		if n <= 0 {
			n = 1
		}
		return after.Add(time.Duration(n) * time.Hour)
	}
}

// nextDailyOccurrence finds the next HH:MM wall-clock time strictly
// after `after`, in after's own location (the deployment's fixed
// timezone).
func nextDailyOccurrence(hhmm string, after time.Time) time.Time {
	hour, minute := 9, 0
	if parsed, err := time.Parse("15:04", hhmm); err == nil {
		hour, minute = parsed.Hour(), parsed.Minute()
	}
	candidate := time.Date(after.Year(), after.Month(), after.Day(), hour, minute, 0, 0, after.Location())
	if !candidate.After(after) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

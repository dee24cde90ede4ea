package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const (
	ActivityJobInterval     = time.Minute
	VerificationJobInterval = 5 * time.Minute
	jobTimeout              = 30 * time.Second
)

// Scheduler runs the periodic maintenance jobs. It is owned by main and shut down after the
// HTTP server stops.
type Scheduler struct {
	sched      gocron.Scheduler
	activities *ActivityService
	store      VerificationStore
	log        *slog.Logger
}

func NewScheduler(activities *ActivityService, store VerificationStore, log *slog.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s := &Scheduler{sched: sched, activities: activities, store: store, log: loggerOrDefault(log)}

	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context)
	}{
		{"activity-status", ActivityJobInterval, s.RunActivityJobs},
		{"verification-cleanup", VerificationJobInterval, s.RunVerificationCleanup},
	}
	for _, j := range jobs {
		run := j.run
		_, err := sched.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
				defer cancel()
				run(ctx)
			}),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// JobNames lists the registered jobs.
func (s *Scheduler) JobNames() []string {
	var names []string
	for _, j := range s.sched.Jobs() {
		names = append(names, j.Name())
	}
	return names
}

// RunActivityJobs advances activity statuses and sends start reminders.
func (s *Scheduler) RunActivityJobs(ctx context.Context) {
	if s.activities == nil {
		return
	}
	started, completed, err := s.activities.AdvanceStatuses(ctx)
	if err != nil {
		s.log.Error("advance activity statuses", "error", err)
	} else if started+completed > 0 {
		s.log.Info("activity statuses advanced", "started", started, "completed", completed)
	}

	sent, err := s.activities.SendReminders(ctx)
	if err != nil {
		s.log.Error("send activity reminders", "error", err)
	} else if sent > 0 {
		s.log.Info("activity reminders sent", "count", sent)
	}
}

func (s *Scheduler) RunVerificationCleanup(ctx context.Context) {
	if s.store == nil {
		return
	}
	removed, err := s.store.Cleanup(ctx)
	if err != nil {
		s.log.Error("verification cleanup", "error", err)
		return
	}
	if removed > 0 {
		s.log.Info("expired verification tokens removed", "count", removed)
	}
}

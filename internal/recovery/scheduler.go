package recovery

import (
	"fmt"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"switchyard/internal/logger"
)

// Scheduler runs cron-triggered plans on a gocron scheduler, one job per plan.
type Scheduler struct {
	scheduler gocron.Scheduler
	fire      func(planID string)
	logger    logger.Logger

	mu   sync.Mutex
	jobs map[string]uuid.UUID
}

func NewScheduler(fire func(planID string), log logger.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{
		scheduler: s,
		fire:      fire,
		logger:    log,
		jobs:      make(map[string]uuid.UUID),
	}, nil
}

// Schedule replaces the job of planID with one running on spec, a five-field cron
// expression. A run still going when the next is due is skipped.
func (s *Scheduler) Schedule(planID, spec string) error {
	job, err := s.scheduler.NewJob(
		gocron.CronJob(spec, false),
		gocron.NewTask(s.fire, planID),
		gocron.WithName("recovery-"+planID),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule plan %s: %w", planID, err)
	}

	s.mu.Lock()
	old, replaced := s.jobs[planID]
	s.jobs[planID] = job.ID()
	s.mu.Unlock()

	if replaced {
		if err := s.scheduler.RemoveJob(old); err != nil {
			s.logger.Warnw("Failed to remove previous recovery schedule", "plan_id", planID, "error", err)
		}
	}
	s.logger.Infow("Recovery plan scheduled", "plan_id", planID, "schedule", spec)
	return nil
}

func (s *Scheduler) Unschedule(planID string) {
	s.mu.Lock()
	id, ok := s.jobs[planID]
	delete(s.jobs, planID)
	s.mu.Unlock()

	if !ok {
		return
	}
	if err := s.scheduler.RemoveJob(id); err != nil {
		s.logger.Warnw("Failed to remove recovery schedule", "plan_id", planID, "error", err)
	}
}

// Scheduled returns the ids of plans that have a job.
func (s *Scheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		out = append(out, id)
	}
	return out
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
}

func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Schedule enqueues a job type at a fixed interval
type Schedule struct {
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Payload  map[string]any `json:"payload,omitempty"`
	Interval time.Duration  `json:"interval"`
	Enabled  bool           `json:"enabled"`
	LastRun  time.Time      `json:"last_run"`
	NextRun  time.Time      `json:"next_run"`
}

// Scheduler is a simple interval ticker that enqueues due schedules
type Scheduler struct {
	queue  Enqueuer
	logger *zap.Logger
	now    func() time.Time

	// MaxAttempts overrides the attempt limit of scheduled jobs when positive
	MaxAttempts int

	mu        sync.Mutex
	schedules map[string]*Schedule
}

// NewScheduler creates a scheduler that enqueues onto queue
func NewScheduler(queue Enqueuer, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		queue:     queue,
		logger:    logger.Named("scheduler"),
		now:       time.Now,
		schedules: make(map[string]*Schedule),
	}
}

// Every registers a schedule. The first run is one interval from now.
func (s *Scheduler) Every(name, jobType string, interval time.Duration, payload map[string]any) error {
	if name == "" {
		return fmt.Errorf("schedule name is required")
	}
	if jobType == "" {
		return fmt.Errorf("job type is required")
	}
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[name] = &Schedule{
		Name:     name,
		Type:     jobType,
		Payload:  payload,
		Interval: interval,
		Enabled:  true,
		NextRun:  s.now().Add(interval),
	}
	s.logger.Info("added schedule",
		zap.String("name", name),
		zap.String("type", jobType),
		zap.Duration("interval", interval))
	return nil
}

// SetEnabled turns a schedule on or off
func (s *Scheduler) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sch, ok := s.schedules[name]
	if !ok {
		return fmt.Errorf("schedule not found: %s", name)
	}
	sch.Enabled = enabled
	return nil
}

// Remove deletes a schedule
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[name]; !ok {
		return fmt.Errorf("schedule not found: %s", name)
	}
	delete(s.schedules, name)
	return nil
}

// Schedules returns copies of all schedules ordered by name
func (s *Scheduler) Schedules() []Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Schedule, 0, len(s.schedules))
	for _, sch := range s.schedules {
		out = append(out, *sch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tick enqueues every enabled schedule that is due and returns how many jobs
// were enqueued. A schedule that fails to enqueue stays due.
func (s *Scheduler) Tick(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	enqueued := 0
	for _, sch := range s.schedules {
		if !sch.Enabled || now.Before(sch.NextRun) {
			continue
		}

		payload := make(map[string]any, len(sch.Payload)+1)
		for k, v := range sch.Payload {
			payload[k] = v
		}
		payload["schedule"] = sch.Name

		job := New(sch.Type, payload)
		if s.MaxAttempts > 0 {
			job.MaxAttempts = s.MaxAttempts
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.logger.Error("failed to enqueue scheduled job", zap.String("name", sch.Name), zap.Error(err))
			continue
		}

		sch.LastRun = now
		sch.NextRun = now.Add(sch.Interval)
		enqueued++
		s.logger.Debug("enqueued scheduled job",
			zap.String("name", sch.Name),
			zap.Stringer("job_id", job.ID),
			zap.Time("next_run", sch.NextRun))
	}
	return enqueued
}

// Run ticks at the given resolution until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context, resolution time.Duration) {
	if resolution <= 0 {
		resolution = time.Second
	}
	ticker := time.NewTicker(resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/siteworks/recruitops/internal/jobs"
)

// ErrUnknownTarget is returned for a target name that does not exist
var ErrUnknownTarget = errors.New("unknown sync target")

// Sync targets
const (
	TargetJobAdderCandidates = "jobadder-candidates"
	TargetJobAdderClients    = "jobadder-clients"
	TargetSheetCandidates    = "sheets-candidates"
	TargetBench              = "bench"
	TargetForecast           = "forecast"
	TargetGeocodeProjects    = "geocode-projects"
	TargetGeocodeCandidates  = "geocode-candidates"
)

// jobTypes maps each target to the background job type that runs it
var jobTypes = map[string]string{
	TargetJobAdderCandidates: "sync.jobadder.candidates",
	TargetJobAdderClients:    "sync.jobadder.clients",
	TargetSheetCandidates:    "sync.sheets.candidates",
	TargetBench:              "sync.sheets.bench",
	TargetForecast:           "sync.sheets.forecast",
	TargetGeocodeProjects:    "geocode.projects",
	TargetGeocodeCandidates:  "geocode.candidates",
}

// Targets lists every target name in sorted order
func Targets() []string {
	return sortedKeys(jobTypes)
}

// JobType returns the job type for a target
func JobType(target string) (string, error) {
	t, ok := jobTypes[target]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
	return t, nil
}

// NewJob builds the background job that runs target
func NewJob(target string) (*jobs.Job, error) {
	jobType, err := JobType(target)
	if err != nil {
		return nil, err
	}
	return jobs.New(jobType, map[string]any{"target": target}), nil
}

// Register installs a handler for every target on the pool. Targets whose
// integration is not configured complete without doing anything.
func (s *Service) Register(pool *jobs.Pool) {
	for target, jobType := range jobTypes {
		pool.Handle(jobType, func(ctx context.Context, _ map[string]any) error {
			_, err := s.Run(ctx, target)
			if errors.Is(err, ErrNotConfigured) {
				return nil
			}
			return err
		})
	}
}

// Schedule runs every configured target on the scheduler at interval
func (s *Service) Schedule(sched *jobs.Scheduler, interval time.Duration) error {
	for _, target := range Targets() {
		if !s.configured(target) {
			continue
		}
		if err := sched.Every(target, jobTypes[target], interval, map[string]any{"target": target}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) configured(target string) bool {
	switch target {
	case TargetJobAdderCandidates, TargetJobAdderClients:
		return s.deps.ATS != nil
	case TargetSheetCandidates, TargetBench, TargetForecast:
		return s.deps.Sheets != nil
	case TargetGeocodeProjects, TargetGeocodeCandidates:
		return s.deps.Geocoder != nil
	default:
		return false
	}
}

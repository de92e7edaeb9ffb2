package advisor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/forecast"
)

// SnapshotSource builds the live context for a conversation
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// CandidateLister lists candidates who may be offered work
type CandidateLister interface {
	ListActive(ctx context.Context) ([]*crm.Candidate, error)
}

// ProjectLister lists won, active and pipeline projects
type ProjectLister interface {
	ListLive(ctx context.Context) ([]*crm.Project, error)
}

// ClientGetter resolves client names for the pipeline summary
type ClientGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*crm.Client, error)
}

// StoreSource computes snapshots from the database
type StoreSource struct {
	Candidates  CandidateLister
	Projects    ProjectLister
	Clients     ClientGetter
	BenchWindow time.Duration
	Horizon     time.Duration
	Months      int
	Now         func() time.Time
}

// Snapshot loads candidates and projects and derives bench supply, upcoming
// hires, the demand gap and the pipeline
func (s *StoreSource) Snapshot(ctx context.Context) (*Snapshot, error) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}

	cands, err := s.Candidates.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	projects, err := s.Projects.ListLive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	supply := crm.BenchSummary(crm.Bench(cands, now, s.BenchWindow))
	f := forecast.Demand(projects, now, s.Months)

	snap := &Snapshot{
		At:       now,
		Bench:    crm.SortedSupply(supply),
		Upcoming: forecast.Upcoming(projects, now, s.Horizon),
		Gap:      forecast.Gap(f, supply),
		Pipeline: make([]PipelineProject, 0, len(projects)),
	}

	names := make(map[uuid.UUID]string)
	for _, p := range projects {
		pp := PipelineProject{
			Name:        p.Name,
			Status:      string(p.Status),
			Probability: p.Probability,
			Size:        string(p.Size),
			StartDate:   p.StartDate,
		}
		if p.ClientID != nil && s.Clients != nil {
			name, ok := names[*p.ClientID]
			if !ok {
				if c, err := s.Clients.Get(ctx, *p.ClientID); err == nil {
					name = c.Name
				}
				names[*p.ClientID] = name
			}
			pp.Client = name
		}
		snap.Pipeline = append(snap.Pipeline, pp)
	}
	sort.SliceStable(snap.Pipeline, func(i, j int) bool {
		return snap.Pipeline[i].StartDate.Before(snap.Pipeline[j].StartDate)
	})
	return snap, nil
}

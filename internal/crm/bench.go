package crm

import (
	"math"
	"sort"
	"time"

	"github.com/siteworks/recruitops/internal/construction"
)

// DefaultBenchWindow is how far ahead an assignment end date counts as
// "finishing soon"
const DefaultBenchWindow = 14 * 24 * time.Hour

// BenchEntry is one candidate on the bench
type BenchEntry struct {
	Candidate   *Candidate      `json:"candidate"`
	Status      CandidateStatus `json:"status"`
	AvailableAt time.Time       `json:"available_at"`
	DaysOnBench int             `json:"days_on_bench"`
}

// RoleSupply summarises bench depth for one role
type RoleSupply struct {
	Role      construction.Role `json:"role"`
	Available int               `json:"available"`
	Finishing int               `json:"finishing"`
}

// Total is everyone who can be offered for work within the bench window
func (s RoleSupply) Total() int {
	return s.Available + s.Finishing
}

// BenchStatus derives a candidate's live status at now. A placed candidate
// whose assignment ends within window is finishing; one whose assignment has
// already ended is available.
func BenchStatus(c *Candidate, now time.Time, window time.Duration) CandidateStatus {
	switch c.Status {
	case CandidateUnavailable:
		return CandidateUnavailable
	case CandidatePlaced, CandidateFinishing:
		if c.AssignmentEndsAt == nil {
			return CandidatePlaced
		}
		if !c.AssignmentEndsAt.After(now) {
			return CandidateAvailable
		}
		if c.AssignmentEndsAt.Sub(now) <= window {
			return CandidateFinishing
		}
		return CandidatePlaced
	default:
		if c.AvailableFrom != nil && c.AvailableFrom.Sub(now) > window {
			return CandidatePlaced
		}
		if c.AvailableFrom != nil && c.AvailableFrom.After(now) {
			return CandidateFinishing
		}
		return CandidateAvailable
	}
}

// AvailableAt is the earliest date the candidate can start
func AvailableAt(c *Candidate, now time.Time) time.Time {
	switch {
	case c.AssignmentEndsAt != nil && c.AssignmentEndsAt.After(now):
		return *c.AssignmentEndsAt
	case c.AvailableFrom != nil && c.AvailableFrom.After(now):
		return *c.AvailableFrom
	default:
		return now
	}
}

// Bench returns candidates who are available or finishing within window,
// longest-waiting first
func Bench(candidates []*Candidate, now time.Time, window time.Duration) []BenchEntry {
	entries := make([]BenchEntry, 0)
	for _, c := range candidates {
		status := BenchStatus(c, now, window)
		if status != CandidateAvailable && status != CandidateFinishing {
			continue
		}

		entry := BenchEntry{
			Candidate:   c,
			Status:      status,
			AvailableAt: AvailableAt(c, now),
		}
		if status == CandidateAvailable {
			entry.DaysOnBench = daysOnBench(c, now)
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].DaysOnBench != entries[j].DaysOnBench {
			return entries[i].DaysOnBench > entries[j].DaysOnBench
		}
		return entries[i].AvailableAt.Before(entries[j].AvailableAt)
	})
	return entries
}

func daysOnBench(c *Candidate, now time.Time) int {
	since := c.UpdatedAt
	if c.AssignmentEndsAt != nil && !c.AssignmentEndsAt.After(now) {
		since = *c.AssignmentEndsAt
	} else if c.AvailableFrom != nil && !c.AvailableFrom.After(now) {
		since = *c.AvailableFrom
	}
	if since.IsZero() || since.After(now) {
		return 0
	}
	return int(math.Floor(now.Sub(since).Hours() / 24))
}

// BenchSummary counts bench entries per role
func BenchSummary(entries []BenchEntry) map[construction.Role]RoleSupply {
	summary := make(map[construction.Role]RoleSupply)
	for _, e := range entries {
		s := summary[e.Candidate.Role]
		s.Role = e.Candidate.Role
		switch e.Status {
		case CandidateAvailable:
			s.Available++
		case CandidateFinishing:
			s.Finishing++
		}
		summary[e.Candidate.Role] = s
	}
	return summary
}

// SortedSupply flattens a bench summary into a slice ordered by role
func SortedSupply(summary map[construction.Role]RoleSupply) []RoleSupply {
	out := make([]RoleSupply, 0, len(summary))
	for _, s := range summary {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Role < out[j].Role })
	return out
}

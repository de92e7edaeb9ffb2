package crm

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/siteworks/recruitops/internal/construction"
)

const earthRadiusKm = 6371.0

// MatchOptions tunes candidate ranking for a hire
type MatchOptions struct {
	// MaxDistanceKm drops geocoded candidates further than this. Zero disables the check.
	MaxDistanceKm float64
	// Grace is how long after SourceBy a candidate may still become available
	Grace time.Duration
	// RequiredSkills must all appear in the candidate's skills (case-insensitive)
	RequiredSkills []string
	// Limit caps the number of matches returned. Zero means no limit.
	Limit int
}

// DefaultMatchOptions returns the standard matching rules
func DefaultMatchOptions() MatchOptions {
	return MatchOptions{
		MaxDistanceKm: 100,
		Grace:         14 * 24 * time.Hour,
		Limit:         10,
	}
}

// Match is a ranked candidate for a hire
type Match struct {
	Candidate   *Candidate `json:"candidate"`
	Score       float64    `json:"score"`
	DistanceKm  *float64   `json:"distance_km,omitempty"`
	AvailableAt time.Time  `json:"available_at"`
}

// HaversineKm is the great-circle distance between two points
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// MatchCandidates ranks candidates for a hire on a project. Only candidates in
// the hire's role who can start by SourceBy+Grace are considered. Scores fall
// from 100 with distance and with every day of waiting past SourceBy.
func MatchCandidates(project *Project, hire construction.Hire, candidates []*Candidate, now time.Time, opts MatchOptions) []Match {
	deadline := hire.SourceBy.Add(opts.Grace)
	matches := make([]Match, 0)

	for _, c := range candidates {
		if c.Role != hire.Role {
			continue
		}
		if BenchStatus(c, now, opts.Grace) == CandidateUnavailable {
			continue
		}
		if !hasSkills(c.Skills, opts.RequiredSkills) {
			continue
		}

		availableAt := AvailableAt(c, now)
		if availableAt.After(deadline) {
			continue
		}

		m := Match{Candidate: c, AvailableAt: availableAt, Score: 100}

		if project != nil && project.Geocoded() && c.Geocoded() {
			d := HaversineKm(*project.Latitude, *project.Longitude, *c.Latitude, *c.Longitude)
			if opts.MaxDistanceKm > 0 && d > opts.MaxDistanceKm {
				continue
			}
			m.DistanceKm = &d
			m.Score -= d / 5
		} else {
			m.Score -= 10
		}

		if wait := availableAt.Sub(hire.SourceBy); wait > 0 {
			m.Score -= wait.Hours() / 24
		}

		m.Score = math.Round(m.Score*10) / 10
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].AvailableAt.Before(matches[j].AvailableAt)
	})

	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches
}

func hasSkills(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]bool, len(have))
	for _, s := range have {
		set[strings.ToLower(s)] = true
	}
	for _, w := range want {
		if !set[strings.ToLower(strings.TrimSpace(w))] {
			return false
		}
	}
	return true
}

package crm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteworks/recruitops/internal/construction"
)

func ptrFloat(f float64) *float64 { return &f }

func TestHaversineKm(t *testing.T) {
	// Sydney CBD to Parramatta
	d := HaversineKm(-33.8688, 151.2093, -33.8150, 151.0011)
	assert.InDelta(t, 20, d, 1.5)
	assert.Zero(t, HaversineKm(-33.8688, 151.2093, -33.8688, 151.2093))
}

func TestMatchCandidates(t *testing.T) {
	project := &Project{Latitude: ptrFloat(-33.8688), Longitude: ptrFloat(151.2093)}
	hire := construction.Hire{Role: construction.RoleFormworker, SourceBy: days(7)}

	candidates := []*Candidate{
		{FirstName: "Near", Role: construction.RoleFormworker, Status: CandidateAvailable,
			Latitude: ptrFloat(-33.87), Longitude: ptrFloat(151.21)},
		{FirstName: "Far", Role: construction.RoleFormworker, Status: CandidateAvailable,
			Latitude: ptrFloat(-27.4698), Longitude: ptrFloat(153.0251)},
		{FirstName: "Unknown", Role: construction.RoleFormworker, Status: CandidateAvailable},
		{FirstName: "Late", Role: construction.RoleFormworker, Status: CandidatePlaced,
			AssignmentEndsAt: ptrTime(days(40))},
		{FirstName: "WrongRole", Role: construction.RolePainter, Status: CandidateAvailable},
		{FirstName: "Off", Role: construction.RoleFormworker, Status: CandidateUnavailable},
	}

	matches := MatchCandidates(project, hire, candidates, benchNow, DefaultMatchOptions())
	require.Len(t, matches, 2)
	assert.Equal(t, "Near", matches[0].Candidate.FirstName)
	require.NotNil(t, matches[0].DistanceKm)
	assert.Less(t, *matches[0].DistanceKm, 1.0)
	assert.Equal(t, "Unknown", matches[1].Candidate.FirstName)
	assert.Nil(t, matches[1].DistanceKm)
	assert.Equal(t, 90.0, matches[1].Score)
}

func TestMatchCandidatesGraceAndSkills(t *testing.T) {
	hire := construction.Hire{Role: construction.RoleCraneOperator, SourceBy: days(0)}
	candidates := []*Candidate{
		{FirstName: "Ticketed", Role: construction.RoleCraneOperator, Status: CandidatePlaced,
			AssignmentEndsAt: ptrTime(days(10)), Skills: []string{"CT Licence"}},
		{FirstName: "Unticketed", Role: construction.RoleCraneOperator, Status: CandidateAvailable},
	}

	opts := DefaultMatchOptions()
	opts.RequiredSkills = []string{"ct licence"}
	matches := MatchCandidates(nil, hire, candidates, benchNow, opts)
	require.Len(t, matches, 1)
	assert.Equal(t, "Ticketed", matches[0].Candidate.FirstName)
	assert.Equal(t, 80.0, matches[0].Score)

	opts.Grace = 0
	assert.Empty(t, MatchCandidates(nil, hire, candidates, benchNow, opts))
}

func TestMatchCandidatesLimit(t *testing.T) {
	hire := construction.Hire{Role: construction.RoleLabourer, SourceBy: days(7)}
	var candidates []*Candidate
	for i := 0; i < 15; i++ {
		candidates = append(candidates, &Candidate{Role: construction.RoleLabourer, Status: CandidateAvailable})
	}
	assert.Len(t, MatchCandidates(nil, hire, candidates, benchNow, DefaultMatchOptions()), 10)
}

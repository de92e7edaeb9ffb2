package syncer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteworks/recruitops/internal/construction"
	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/integrations/sheets"
)

func TestCandidateFromRow(t *testing.T) {
	c, err := CandidateFromRow(sheets.Row{
		"name":           "jo  mcdonald",
		"mobile":         "0412 345 678",
		"email":          "JO@example.com",
		"trade":          "sparky",
		"tickets":        "White Card; HV, white card",
		"status":         "on bench",
		"suburb":         "Parramatta NSW",
		"available from": "17/03/2025",
		"day rate":       "$650",
	})
	require.NoError(t, err)

	assert.Equal(t, "Jo", c.FirstName)
	assert.Equal(t, "McDonald", c.LastName)
	assert.Equal(t, "jo@example.com", c.Email)
	assert.Equal(t, "+61412345678", c.Phone)
	assert.Equal(t, construction.RoleElectrician, c.Role)
	assert.Equal(t, []string{"HV", "White Card"}, c.Skills)
	assert.Equal(t, crm.CandidateAvailable, c.Status)
	require.NotNil(t, c.AvailableFrom)
	assert.Equal(t, time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC), *c.AvailableFrom)
	assert.Equal(t, 650.0, c.DayRate)
	assert.Equal(t, crm.SourceSheets, c.Source)
	assert.Equal(t, "jo@example.com", c.ExternalID, "email is the fallback id")
}

func TestCandidateFromRowExplicitID(t *testing.T) {
	c, err := CandidateFromRow(sheets.Row{"id": "C-42", "first name": "sam", "last name": "lee", "role": "labourer"})
	require.NoError(t, err)
	assert.Equal(t, "C-42", c.ExternalID)
	assert.Equal(t, "Sam", c.FirstName)
}

func TestCandidateFromRowErrors(t *testing.T) {
	_, err := CandidateFromRow(sheets.Row{"name": "No Contact", "role": "labourer"})
	assert.ErrorContains(t, err, "no id, email or phone")

	_, err = CandidateFromRow(sheets.Row{"name": "Bad Data", "email": "b@x.com", "available from": "next tuesday", "day rate": "lots"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognised date")
	assert.Contains(t, err.Error(), "invalid day rate")
}

func TestBenchRows(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	ends := now.Add(5 * 24 * time.Hour)
	entries := crm.Bench([]*crm.Candidate{
		{FirstName: "Jo", LastName: "Mcdonald", Role: construction.RoleElectrician, Status: crm.CandidatePlaced, AssignmentEndsAt: &ends, Phone: "+61412345678"},
	}, now, crm.DefaultBenchWindow)

	rows := BenchRows(entries)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], len(BenchHeader))
	assert.Equal(t, []string{"Jo Mcdonald", "Electrician", "finishing", "2025-03-15", "0", "+61412345678", "", ""}, rows[0])
}

func TestForecastRows(t *testing.T) {
	now := time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)
	projects := []*crm.Project{{
		ID: uuid.New(), Name: "Alpha Tower", Size: construction.SizeM, Status: crm.ProjectWon,
		Probability: 100, StartDate: time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC),
	}}
	from := now.Add(-30 * 24 * time.Hour)
	cands := []*crm.Candidate{{FirstName: "Al", Role: construction.RoleLabourer, Status: crm.CandidateAvailable, AvailableFrom: &from}}

	rows := ForecastRows(projects, cands, now, 1, crm.DefaultBenchWindow)
	require.NotEmpty(t, rows)

	var labour []string
	for _, r := range rows {
		assert.Len(t, r, len(ForecastHeader))
		assert.Equal(t, "Apr 2025", r[0])
		if r[1] == string(construction.RoleLabourer) {
			labour = r
		}
	}
	require.NotNil(t, labour)
	assert.Equal(t, []string{"Apr 2025", "Labourer", "3.0", "1", "2.0", "yes"}, labour)
}

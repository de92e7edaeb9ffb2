package syncer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/siteworks/recruitops/internal/construction"
	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/forecast"
	"github.com/siteworks/recruitops/internal/integrations/sheets"
)

// BenchHeader is the header row of the bench tab
var BenchHeader = []string{"Name", "Role", "Status", "Available From", "Days On Bench", "Phone", "Email", "Location"}

// ForecastHeader is the header row of the forecast tab
var ForecastHeader = []string{"Month", "Role", "Demand", "Supply", "Shortfall", "Priority"}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "2/1/2006", "2 Jan 2006", "02-Jan-2006", "2 January 2006"}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised date %q", s)
}

func parseRate(s string) (float64, error) {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	s = strings.TrimSuffix(strings.ToLower(s), "/day")
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid day rate %q", s)
	}
	return f, nil
}

// CandidateFromRow maps a candidates-tab row to a normalised candidate. The
// row's ID column identifies it, falling back to email then phone.
func CandidateFromRow(row sheets.Row) (*crm.Candidate, error) {
	c := &crm.Candidate{
		FirstName: row.Get("first name", "firstname", "given name"),
		LastName:  row.Get("last name", "surname", "family name"),
		Email:     row.Get("email", "email address"),
		Phone:     row.Get("mobile", "phone", "phone number"),
		Role:      construction.Role(row.Get("role", "trade", "position")),
		Skills:    crm.SplitSkills(row.Get("skills", "tickets", "licences")),
		Status:    crm.CandidateStatus(row.Get("status", "availability")),
		Location:  row.Get("location", "suburb", "address"),
		Notes:     row.Get("notes", "comments"),
		Source:    crm.SourceSheets,
	}
	if c.FirstName == "" && c.LastName == "" {
		full := strings.Fields(row.Get("name", "full name"))
		if len(full) > 0 {
			c.FirstName = full[0]
			c.LastName = strings.Join(full[1:], " ")
		}
	}

	var errs []error
	from, err := parseDate(row.Get("available from", "available", "start date"))
	if err != nil {
		errs = append(errs, err)
	}
	c.AvailableFrom = from

	if c.DayRate, err = parseRate(row.Get("day rate", "rate")); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	c.Normalize()

	c.ExternalID = row.Get("id", "external id", "candidate id")
	if c.ExternalID == "" {
		c.ExternalID = c.Email
	}
	if c.ExternalID == "" {
		c.ExternalID = c.Phone
	}
	if c.ExternalID == "" {
		return nil, errors.New("row has no id, email or phone")
	}
	return c, nil
}

// BenchRows renders bench entries for the bench tab
func BenchRows(entries []crm.BenchEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		c := e.Candidate
		rows = append(rows, []string{
			c.FullName(),
			string(c.Role),
			string(e.Status),
			e.AvailableAt.Format("2006-01-02"),
			strconv.Itoa(e.DaysOnBench),
			c.Phone,
			c.Email,
			c.Location,
		})
	}
	return rows
}

// ForecastRows renders the demand/supply gap for the forecast tab
func ForecastRows(projects []*crm.Project, candidates []*crm.Candidate, now time.Time, months int, window time.Duration) [][]string {
	f := forecast.Demand(projects, now, months)
	supply := crm.BenchSummary(crm.Bench(candidates, now, window))

	gap := forecast.Gap(f, supply)
	rows := make([][]string, 0, len(gap))
	for _, g := range gap {
		priority := ""
		if g.Shortfall > 0 {
			priority = "yes"
		}
		rows = append(rows, []string{
			g.Month.Format("Jan 2006"),
			string(g.Role),
			strconv.FormatFloat(g.Demand, 'f', 1, 64),
			strconv.Itoa(g.Supply),
			strconv.FormatFloat(g.Shortfall, 'f', 1, 64),
			priority,
		})
	}
	return rows
}

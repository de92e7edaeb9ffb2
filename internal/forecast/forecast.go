// Package forecast turns the project pipeline into month-by-month labour demand
// and compares it against bench supply.
package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/siteworks/recruitops/internal/construction"
	"github.com/siteworks/recruitops/internal/crm"
)

// RoleDemand is the probability-weighted headcount needed for a role in a month
type RoleDemand struct {
	Role     construction.Role `json:"role"`
	Min      float64           `json:"min"`
	Max      float64           `json:"max"`
	Expected float64           `json:"expected"`
	Projects int               `json:"projects"`
}

// Month is the demand for one calendar month
type Month struct {
	Start time.Time                        `json:"start"`
	Roles map[construction.Role]RoleDemand `json:"roles"`
}

// Forecast is demand over consecutive months
type Forecast struct {
	From   time.Time `json:"from"`
	Months []Month   `json:"months"`
}

// MonthStart truncates t to midnight UTC on the first of its month
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Demand builds a forecast of months calendar months from the month containing
// from. Each won, active or pipeline project contributes the crew bands of every
// phase active in the month, scaled by the project's weight. When a role appears
// in more than one active phase of the same project the larger band counts.
func Demand(projects []*crm.Project, from time.Time, months int) Forecast {
	if months < 0 {
		months = 0
	}
	start := MonthStart(from)
	f := Forecast{From: start, Months: make([]Month, months)}

	type weighted struct {
		weight float64
		sched  construction.Schedule
	}
	var live []weighted
	for _, p := range projects {
		w := p.Weight()
		if w <= 0 || p.StartDate.IsZero() {
			continue
		}
		live = append(live, weighted{weight: w, sched: p.Schedule()})
	}

	for i := range f.Months {
		mStart := start.AddDate(0, i, 0)
		mEnd := mStart.AddDate(0, 1, 0)
		month := Month{Start: mStart, Roles: make(map[construction.Role]RoleDemand)}

		for _, lp := range live {
			peak := make(map[construction.Role]construction.Band)
			for _, phase := range lp.sched.ActiveBetween(mStart, mEnd) {
				for _, h := range phase.Hires {
					if cur, ok := peak[h.Role]; !ok || h.Band.Midpoint() > cur.Midpoint() {
						peak[h.Role] = h.Band
					}
				}
			}

			for role, band := range peak {
				d := month.Roles[role]
				d.Role = role
				d.Min += float64(band.Min) * lp.weight
				d.Max += float64(band.Max) * lp.weight
				d.Expected += band.Midpoint() * lp.weight
				d.Projects++
				month.Roles[role] = d
			}
		}

		for role, d := range month.Roles {
			d.Min, d.Max, d.Expected = round1(d.Min), round1(d.Max), round1(d.Expected)
			month.Roles[role] = d
		}
		f.Months[i] = month
	}

	return f
}

// Roles lists every role with demand anywhere in the forecast
func (f Forecast) Roles() []construction.Role {
	seen := make(map[construction.Role]bool)
	var out []construction.Role
	for _, m := range f.Months {
		for role := range m.Roles {
			if !seen[role] {
				seen[role] = true
				out = append(out, role)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Peak returns the month with the highest expected demand for role
func (f Forecast) Peak(role construction.Role) (time.Time, RoleDemand) {
	var at time.Time
	var best RoleDemand
	for _, m := range f.Months {
		if d, ok := m.Roles[role]; ok && d.Expected > best.Expected {
			at, best = m.Start, d
		}
	}
	return at, best
}

// GapRow compares demand with bench supply for a role in a month
type GapRow struct {
	Month     time.Time         `json:"month"`
	Role      construction.Role `json:"role"`
	Demand    float64           `json:"demand"`
	Supply    int               `json:"supply"`
	Shortfall float64           `json:"shortfall"`
}

// Gap compares expected demand against supply per role and month. Rows are
// ordered by month, then largest shortfall first.
func Gap(f Forecast, supply map[construction.Role]crm.RoleSupply) []GapRow {
	rows := make([]GapRow, 0)
	for _, m := range f.Months {
		for role, d := range m.Roles {
			s := supply[role].Total()
			rows = append(rows, GapRow{
				Month:     m.Start,
				Role:      role,
				Demand:    d.Expected,
				Supply:    s,
				Shortfall: round1(d.Expected - float64(s)),
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Month.Equal(rows[j].Month) {
			return rows[i].Month.Before(rows[j].Month)
		}
		if rows[i].Shortfall != rows[j].Shortfall {
			return rows[i].Shortfall > rows[j].Shortfall
		}
		return rows[i].Role < rows[j].Role
	})
	return rows
}

// Priorities keeps only the rows with a shortfall
func Priorities(rows []GapRow) []GapRow {
	out := make([]GapRow, 0, len(rows))
	for _, r := range rows {
		if r.Shortfall > 0 {
			out = append(out, r)
		}
	}
	return out
}

// ProjectHire is a hire due on a specific project
type ProjectHire struct {
	ProjectID   uuid.UUID `json:"project_id"`
	ProjectName string    `json:"project_name"`
	Weight      float64   `json:"weight"`
	construction.Hire
}

// Upcoming lists every hire whose SourceBy falls in [now, now+horizon) across
// won, active and pipeline projects, ordered by SourceBy
func Upcoming(projects []*crm.Project, now time.Time, horizon time.Duration) []ProjectHire {
	out := make([]ProjectHire, 0)
	until := now.Add(horizon)
	for _, p := range projects {
		w := p.Weight()
		if w <= 0 || p.StartDate.IsZero() {
			continue
		}
		for _, h := range p.Schedule().DueBetween(now, until) {
			out = append(out, ProjectHire{
				ProjectID:   p.ID,
				ProjectName: p.Name,
				Weight:      w,
				Hire:        h,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SourceBy.Equal(out[j].SourceBy) {
			return out[i].SourceBy.Before(out[j].SourceBy)
		}
		if out[i].ProjectName != out[j].ProjectName {
			return out[i].ProjectName < out[j].ProjectName
		}
		return out[i].Role < out[j].Role
	})
	return out
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

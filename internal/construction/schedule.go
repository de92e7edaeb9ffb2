package construction

import (
	"math"
	"sort"
	"time"
)

const week = 7 * 24 * time.Hour

// Hire is a single recruitment action derived from a trigger on a dated schedule
type Hire struct {
	PhaseKey   string    `json:"phase_key"`
	PhaseName  string    `json:"phase_name"`
	Role       Role      `json:"role"`
	SourceBy   time.Time `json:"source_by"`
	PhaseStart time.Time `json:"phase_start"`
	Band       Band      `json:"band"`
	Note       string    `json:"note,omitempty"`
}

// ScheduledPhase is a phase placed on the calendar
type ScheduledPhase struct {
	Key   string    `json:"key"`
	Name  string    `json:"name"`
	Order int       `json:"order"`
	Weeks int       `json:"weeks"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Hires []Hire    `json:"hires"`
}

// Schedule is the full phase timeline for one project
type Schedule struct {
	Size   Size             `json:"size"`
	Start  time.Time        `json:"start"`
	End    time.Time        `json:"end"`
	Phases []ScheduledPhase `json:"phases"`
}

// ScaledWeeks scales a nominal duration for a project size. The result is
// rounded up and never below one week.
func ScaledWeeks(nominal int, size Size) int {
	w := int(math.Ceil(float64(nominal) * size.DurationFactor()))
	if w < 1 {
		return 1
	}
	return w
}

// BuildSchedule lays the phase template end to end from start
func BuildSchedule(start time.Time, size Size) Schedule {
	if !size.Valid() {
		size = DefaultSize
	}

	sched := Schedule{
		Size:   size,
		Start:  start,
		Phases: make([]ScheduledPhase, 0, len(phaseTemplate)),
	}

	cursor := start
	for _, p := range phaseTemplate {
		weeks := ScaledWeeks(p.DurationWeeks, size)
		sp := ScheduledPhase{
			Key:   p.Key,
			Name:  p.Name,
			Order: p.Order,
			Weeks: weeks,
			Start: cursor,
			End:   cursor.Add(time.Duration(weeks) * week),
			Hires: make([]Hire, 0, len(p.Triggers)),
		}

		for _, t := range p.Triggers {
			band, _ := CrewBand(p.Key, t.Role, size)
			sp.Hires = append(sp.Hires, Hire{
				PhaseKey:   p.Key,
				PhaseName:  p.Name,
				Role:       t.Role,
				SourceBy:   cursor.Add(-time.Duration(t.LeadWeeks) * week),
				PhaseStart: cursor,
				Band:       band,
				Note:       t.Note,
			})
		}

		sched.Phases = append(sched.Phases, sp)
		cursor = sp.End
	}
	sched.End = cursor

	return sched
}

// PhaseAt returns the phase in progress at t
func (s Schedule) PhaseAt(t time.Time) (ScheduledPhase, bool) {
	for _, p := range s.Phases {
		if !t.Before(p.Start) && t.Before(p.End) {
			return p, true
		}
	}
	return ScheduledPhase{}, false
}

// ActiveBetween returns phases overlapping [from, to)
func (s Schedule) ActiveBetween(from, to time.Time) []ScheduledPhase {
	var out []ScheduledPhase
	for _, p := range s.Phases {
		if p.Start.Before(to) && p.End.After(from) {
			out = append(out, p)
		}
	}
	return out
}

// Hires returns every hire on the schedule ordered by SourceBy
func (s Schedule) Hires() []Hire {
	var out []Hire
	for _, p := range s.Phases {
		out = append(out, p.Hires...)
	}
	sortHires(out)
	return out
}

// DueBetween returns hires whose SourceBy falls in [from, to), ordered by SourceBy
func (s Schedule) DueBetween(from, to time.Time) []Hire {
	var out []Hire
	for _, p := range s.Phases {
		for _, h := range p.Hires {
			if !h.SourceBy.Before(from) && h.SourceBy.Before(to) {
				out = append(out, h)
			}
		}
	}
	sortHires(out)
	return out
}

func sortHires(h []Hire) {
	sort.SliceStable(h, func(i, j int) bool {
		if h[i].SourceBy.Equal(h[j].SourceBy) {
			return h[i].Role < h[j].Role
		}
		return h[i].SourceBy.Before(h[j].SourceBy)
	})
}

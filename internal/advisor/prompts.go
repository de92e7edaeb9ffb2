package advisor

import (
	"fmt"
	"strings"
	"time"

	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/forecast"
)

// Name identifies an advisor
type Name string

const (
	Bench    Name = "bench"
	Forecast Name = "forecast"
	BizDev   Name = "bizdev"
)

// Persona is an advisor's identity and standing instructions
type Persona struct {
	Name        Name   `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	prompt      string
	sections    []section
}

type section int

const (
	sectionBench section = iota
	sectionUpcoming
	sectionGap
	sectionPipeline
)

var personas = []Persona{
	{
		Name:        Bench,
		Title:       "Bench Manager",
		Description: "Keeps workers on the bench placed and flags who is finishing soon.",
		prompt: `You are the bench manager at an Australian construction labour-hire agency.
Your job is to keep idle workers earning. Recommend who to call first, which
upcoming hires suit which workers, and which roles are oversupplied.
Be direct and practical. Use the worker counts and dates in the context; do not
invent names or numbers that are not there.`,
		sections: []section{sectionBench, sectionUpcoming},
	},
	{
		Name:        Forecast,
		Title:       "Workforce Planner",
		Description: "Reads the project pipeline and warns about labour shortfalls.",
		prompt: `You are the workforce planner at an Australian construction labour-hire agency.
You turn the project pipeline into hiring plans. Explain where demand outstrips
bench supply, how far ahead recruiters must start sourcing, and which trades
to advertise for now. Pipeline demand is probability weighted; say so when it
matters.`,
		sections: []section{sectionGap, sectionUpcoming, sectionBench},
	},
	{
		Name:        BizDev,
		Title:       "Business Development Coach",
		Description: "Suggests which builders to approach and what labour to pitch.",
		prompt: `You are a business development coach for an Australian construction labour-hire agency.
Suggest which clients and projects to approach, what crews to pitch based on
who is on the bench, and how to follow up on pipeline projects that have not
been won yet. Keep advice specific to commercial and civil construction.`,
		sections: []section{sectionPipeline, sectionBench},
	},
}

// Advisors lists every persona
func Advisors() []Persona {
	out := make([]Persona, len(personas))
	copy(out, personas)
	return out
}

// Lookup finds a persona by name
func Lookup(name Name) (Persona, bool) {
	for _, p := range personas {
		if p.Name == name {
			return p, true
		}
	}
	return Persona{}, false
}

// PipelineProject is a project summary for the business development advisor
type PipelineProject struct {
	Name        string    `json:"name"`
	Client      string    `json:"client,omitempty"`
	Status      string    `json:"status"`
	Probability int       `json:"probability"`
	Size        string    `json:"size"`
	StartDate   time.Time `json:"start_date"`
}

// Snapshot is the live state rendered into every system instruction
type Snapshot struct {
	At       time.Time              `json:"at"`
	Bench    []crm.RoleSupply       `json:"bench"`
	Upcoming []forecast.ProjectHire `json:"upcoming"`
	Gap      []forecast.GapRow      `json:"gap"`
	Pipeline []PipelineProject      `json:"pipeline"`
}

const maxContextRows = 25

// SystemInstruction combines a persona's prompt with the sections of the
// snapshot it cares about
func SystemInstruction(p Persona, snap *Snapshot) string {
	var b strings.Builder
	b.WriteString(p.prompt)
	b.WriteString("\n\n")
	if snap == nil {
		b.WriteString("No live data is available right now.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Today is %s.\n", snap.At.Format("Monday 2 January 2006"))

	for _, s := range p.sections {
		b.WriteString("\n")
		switch s {
		case sectionBench:
			writeBench(&b, snap.Bench)
		case sectionUpcoming:
			writeUpcoming(&b, snap.Upcoming)
		case sectionGap:
			writeGap(&b, snap.Gap)
		case sectionPipeline:
			writePipeline(&b, snap.Pipeline)
		}
	}
	return b.String()
}

func writeBench(b *strings.Builder, supply []crm.RoleSupply) {
	b.WriteString("## Bench (available now / finishing soon)\n")
	if len(supply) == 0 {
		b.WriteString("Nobody is on the bench.\n")
		return
	}
	for i, s := range supply {
		if i == maxContextRows {
			fmt.Fprintf(b, "...and %d more roles\n", len(supply)-i)
			break
		}
		fmt.Fprintf(b, "- %s: %d available, %d finishing\n", s.Role, s.Available, s.Finishing)
	}
}

func writeUpcoming(b *strings.Builder, hires []forecast.ProjectHire) {
	b.WriteString("## Upcoming hires (source by date)\n")
	if len(hires) == 0 {
		b.WriteString("No hires are due in the planning horizon.\n")
		return
	}
	for i, h := range hires {
		if i == maxContextRows {
			fmt.Fprintf(b, "...and %d more hires\n", len(hires)-i)
			break
		}
		fmt.Fprintf(b, "- %s: %s x %s for %s, source by %s",
			h.ProjectName, h.Role, h.Band.String(), h.PhaseName, h.SourceBy.Format("2 Jan"))
		if h.Weight < 1 {
			fmt.Fprintf(b, " (%.0f%% likely)", h.Weight*100)
		}
		b.WriteString("\n")
	}
}

func writeGap(b *strings.Builder, rows []forecast.GapRow) {
	b.WriteString("## Demand vs supply by month\n")
	short := forecast.Priorities(rows)
	if len(short) == 0 {
		b.WriteString("Bench supply covers forecast demand.\n")
		return
	}
	for i, r := range short {
		if i == maxContextRows {
			fmt.Fprintf(b, "...and %d more shortfalls\n", len(short)-i)
			break
		}
		fmt.Fprintf(b, "- %s %s: demand %.1f, supply %d, short %.1f\n",
			r.Month.Format("Jan 2006"), r.Role, r.Demand, r.Supply, r.Shortfall)
	}
}

func writePipeline(b *strings.Builder, projects []PipelineProject) {
	b.WriteString("## Project pipeline\n")
	if len(projects) == 0 {
		b.WriteString("The pipeline is empty.\n")
		return
	}
	for i, p := range projects {
		if i == maxContextRows {
			fmt.Fprintf(b, "...and %d more projects\n", len(projects)-i)
			break
		}
		client := p.Client
		if client == "" {
			client = "unknown client"
		}
		fmt.Fprintf(b, "- %s (%s): %s, %d%%, size %s, starts %s\n",
			p.Name, client, p.Status, p.Probability, p.Size, p.StartDate.Format("Jan 2006"))
	}
}

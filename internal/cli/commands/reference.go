package commands

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/siteworks/recruitops/internal/cli/ui"
	"github.com/siteworks/recruitops/internal/construction"
)

const dateLayout = "2006-01-02"

var money = message.NewPrinter(language.English)

func formatDollars(v float64) string {
	return money.Sprintf("$%.0f", v)
}

func newPhasesCommand(g *globalFlags) *cobra.Command {
	var sizeFlag string

	cmd := &cobra.Command{
		Use:   "phases [phase]",
		Short: "Show the construction phase model",
		Long: `Without arguments, list every phase with its nominal duration. With a
phase key, show the hires it triggers and its crew bands per project size.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				renderPhases(out, g.plain())
				return nil
			}

			phase, ok := construction.PhaseByKey(args[0])
			if !ok {
				return ui.UnknownName("phase", args[0], phaseKeys(), "List phases: recruitops phases", g.plain())
			}
			sizes := construction.Sizes()
			if sizeFlag != "" {
				size, err := construction.ParseSize(sizeFlag)
				if err != nil {
					return err
				}
				sizes = []construction.Size{size}
			}
			renderPhase(out, phase, sizes, g.plain())
			return nil
		},
	}

	cmd.Flags().StringVarP(&sizeFlag, "size", "s", "", "only show crew bands for this size (S, M, L, XL)")
	return cmd
}

func phaseKeys() []string {
	phases := construction.Phases()
	keys := make([]string, len(phases))
	for i, p := range phases {
		keys[i] = p.Key
	}
	return keys
}

func renderPhases(w io.Writer, noColor bool) {
	tbl := ui.NewTable(w, noColor, "#", "Key", "Phase", "Weeks", "Hires").AlignRight(0, 3, 4)
	for _, p := range construction.Phases() {
		tbl.AddRow(strconv.Itoa(p.Order), p.Key, p.Name, strconv.Itoa(p.DurationWeeks), strconv.Itoa(len(p.Triggers)))
	}
	tbl.Render()
	fmt.Fprintf(w, "\nTotal: %d weeks at size %s\n", construction.TotalWeeks(), construction.DefaultSize)
}

func renderPhase(w io.Writer, phase construction.Phase, sizes []construction.Size, noColor bool) {
	ui.Header(w, fmt.Sprintf("%d. %s (%d weeks)", phase.Order, phase.Name, phase.DurationWeeks), noColor)

	if len(phase.Triggers) > 0 {
		fmt.Fprintln(w)
		triggers := ui.NewTable(w, noColor, "Role", "Lead", "Note").AlignRight(1)
		for _, t := range phase.Triggers {
			triggers.AddRow(string(t.Role), fmt.Sprintf("%dw", t.LeadWeeks), t.Note)
		}
		triggers.Render()
	}

	headers := []string{"Role"}
	cols := make([]int, 0, len(sizes))
	for i, s := range sizes {
		headers = append(headers, string(s))
		cols = append(cols, i+1)
	}
	crew := ui.NewTable(w, noColor, headers...).AlignRight(cols...)
	for _, role := range construction.Roles() {
		row := []string{string(role)}
		staffed := false
		for _, s := range sizes {
			band, ok := construction.CrewBand(phase.Key, role, s)
			if !ok {
				row = append(row, "-")
				continue
			}
			staffed = true
			row = append(row, band.String())
		}
		if staffed {
			crew.AddRow(row...)
		}
	}
	fmt.Fprintln(w)
	if crew.Len() == 0 {
		fmt.Fprintln(w, "No crew on site during this phase")
		return
	}
	crew.Render()
}

func newSizeCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "size <contract value>",
		Short: "Classify a contract value into a project size",
		Example: `  recruitops size '$12.5M'
  recruitops size "AUD 850,000"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			renderSize(cmd.OutOrStdout(), args[0], g.plain())
			return nil
		},
	}
}

func renderSize(w io.Writer, value string, noColor bool) {
	size := construction.GetProjectSize(value)
	kv := ui.NewKeyValue(w, noColor)
	kv.Add("Value", value)
	if amount, err := construction.ParseContractValue(value); err == nil {
		kv.Add("Amount", formatDollars(amount))
	} else {
		kv.Add("Amount", "unreadable, using default size")
	}
	kv.Add("Size", size)
	weeks := 0
	for _, p := range construction.BuildSchedule(time.Time{}, size).Phases {
		weeks += p.Weeks
	}
	kv.Add("Duration", fmt.Sprintf("x%.2f (%d weeks)", size.DurationFactor(), weeks))
	kv.Render()
}

func newScheduleCommand(g *globalFlags) *cobra.Command {
	var (
		start     string
		value     string
		sizeFlag  string
		showHires bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Preview a project's phase timeline and hiring dates",
		Long: `Lay the phase model out from a start date for a project size, given
directly or derived from a contract value, and list when each role must be
sourced.`,
		Example: `  recruitops schedule --start 2025-07-01 --value '$18M' --hires`,
		RunE: func(cmd *cobra.Command, args []string) error {
			from := time.Now().UTC().Truncate(24 * time.Hour)
			if start != "" {
				t, err := time.Parse(dateLayout, start)
				if err != nil {
					return fmt.Errorf("--start must be a date like 2025-07-01: %w", err)
				}
				from = t
			}

			size := construction.GetProjectSize(value)
			if sizeFlag != "" {
				s, err := construction.ParseSize(sizeFlag)
				if err != nil {
					return err
				}
				size = s
			}

			sched := construction.BuildSchedule(from, size)
			renderSchedule(cmd.OutOrStdout(), sched, showHires, g.plain())
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "project start date (default today)")
	cmd.Flags().StringVar(&value, "value", "", "contract value used to pick the size")
	cmd.Flags().StringVarP(&sizeFlag, "size", "s", "", "project size, overrides --value")
	cmd.Flags().BoolVar(&showHires, "hires", false, "list every hire with its source-by date")
	return cmd
}

func renderSchedule(w io.Writer, sched construction.Schedule, showHires, noColor bool) {
	ui.Header(w, fmt.Sprintf("Size %s: %s to %s", sched.Size, sched.Start.Format(dateLayout), sched.End.Format(dateLayout)), noColor)
	fmt.Fprintln(w)

	tbl := ui.NewTable(w, noColor, "Phase", "Weeks", "Start", "End").AlignRight(1)
	for _, p := range sched.Phases {
		tbl.AddRow(p.Name, strconv.Itoa(p.Weeks), p.Start.Format(dateLayout), p.End.Format(dateLayout))
	}
	tbl.Render()

	if !showHires {
		return
	}
	fmt.Fprintln(w)
	hires := ui.NewTable(w, noColor, "Source by", "Role", "Phase", "Crew", "Note").AlignRight(3)
	for _, h := range sched.Hires() {
		hires.AddRow(h.SourceBy.Format(dateLayout), string(h.Role), h.PhaseName, h.Band.String(), h.Note)
	}
	hires.Render()
}

package commands

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/siteworks/recruitops/internal/cli/ui"
	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/forecast"
)

func newForecastCommand(g *globalFlags) *cobra.Command {
	var (
		months   int
		from     string
		gap      bool
		upcoming bool
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast labour demand from the project pipeline",
		Long: `Show expected headcount per role and month across won, active and
pipeline projects, weighted by win probability. --gap compares demand with
the bench and lists shortfalls; --upcoming lists hires that must be sourced
within forecast.horizon.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()

			now := time.Now().UTC()
			start := now
			if from != "" {
				t, err := time.Parse(dateLayout, from)
				if err != nil {
					return fmt.Errorf("--from must be a date like 2025-07-01: %w", err)
				}
				start = t
			}
			if months <= 0 {
				months = a.cfg.Forecast.Months
			}

			db, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			projects, err := db.Projects().ListLive(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if upcoming {
				renderUpcoming(out, forecast.Upcoming(projects, now, a.cfg.Forecast.Horizon), g.plain())
				return nil
			}

			f := forecast.Demand(projects, start, months)
			if !gap {
				renderDemand(out, f, g.plain())
				return nil
			}

			cands, err := db.Candidates().ListActive(cmd.Context())
			if err != nil {
				return err
			}
			supply := crm.BenchSummary(crm.Bench(cands, now, a.cfg.Sync.BenchWindow))
			renderGap(out, forecast.Priorities(forecast.Gap(f, supply)), g.plain())
			return nil
		},
	}

	cmd.Flags().IntVarP(&months, "months", "m", 0, "months to forecast (default forecast.months)")
	cmd.Flags().StringVar(&from, "from", "", "first month, as a date (default this month)")
	cmd.Flags().BoolVar(&gap, "gap", false, "show shortfalls against the bench")
	cmd.Flags().BoolVar(&upcoming, "upcoming", false, "show hires due within forecast.horizon")
	cmd.MarkFlagsMutuallyExclusive("gap", "upcoming")

	return cmd
}

func renderDemand(w io.Writer, f forecast.Forecast, noColor bool) {
	roles := f.Roles()
	if len(roles) == 0 {
		fmt.Fprintln(w, "No demand: there are no live projects with a start date")
		return
	}

	headers := []string{"Role"}
	cols := make([]int, 0, len(f.Months))
	for i, m := range f.Months {
		headers = append(headers, m.Start.Format("Jan 06"))
		cols = append(cols, i+1)
	}
	tbl := ui.NewTable(w, noColor, headers...).AlignRight(cols...)
	for _, role := range roles {
		row := []string{string(role)}
		for _, m := range f.Months {
			d, ok := m.Roles[role]
			if !ok || d.Expected == 0 {
				row = append(row, "-")
				continue
			}
			row = append(row, strconv.FormatFloat(d.Expected, 'f', 1, 64))
		}
		tbl.AddRow(row...)
	}
	tbl.Render()
}

func renderGap(w io.Writer, rows []forecast.GapRow, noColor bool) {
	if len(rows) == 0 {
		ui.Success(w, noColor, "The bench covers forecast demand")
		return
	}
	tbl := ui.NewTable(w, noColor, "Month", "Role", "Demand", "Bench", "Short").AlignRight(2, 3, 4)
	for _, r := range rows {
		tbl.AddRow(r.Month.Format("Jan 06"), string(r.Role),
			strconv.FormatFloat(r.Demand, 'f', 1, 64),
			strconv.Itoa(r.Supply),
			strconv.FormatFloat(r.Shortfall, 'f', 1, 64))
	}
	tbl.Render()
}

func renderUpcoming(w io.Writer, hires []forecast.ProjectHire, noColor bool) {
	if len(hires) == 0 {
		fmt.Fprintln(w, "No hires due within the horizon")
		return
	}
	tbl := ui.NewTable(w, noColor, "Source by", "Project", "Role", "Phase", "Crew", "Weight").AlignRight(4, 5)
	for _, h := range hires {
		tbl.AddRow(h.SourceBy.Format(dateLayout), h.ProjectName, string(h.Role), h.PhaseName, h.Band.String(),
			fmt.Sprintf("%.0f%%", h.Weight*100))
	}
	tbl.Render()
}

func newBenchCommand(g *globalFlags) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "List candidates available now or finishing within the bench window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()

			db, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			cands, err := db.Candidates().ListActive(cmd.Context())
			if err != nil {
				return err
			}
			entries := crm.Bench(cands, time.Now().UTC(), a.cfg.Sync.BenchWindow)
			renderBench(cmd.OutOrStdout(), entries, role, g.plain())
			return nil
		},
	}

	cmd.Flags().StringVarP(&role, "role", "r", "", "only this role")
	return cmd
}

func renderBench(w io.Writer, entries []crm.BenchEntry, role string, noColor bool) {
	tbl := ui.NewTable(w, noColor, "Name", "Role", "Status", "Available", "Days", "Location").AlignRight(4)
	for _, e := range entries {
		if role != "" && string(e.Candidate.Role) != role {
			continue
		}
		tbl.AddRow(e.Candidate.FullName(), string(e.Candidate.Role), string(e.Status),
			e.AvailableAt.Format(dateLayout), strconv.Itoa(e.DaysOnBench), e.Candidate.Location)
	}
	if tbl.Len() == 0 {
		fmt.Fprintln(w, "Nobody is on the bench")
		return
	}
	tbl.Render()
}

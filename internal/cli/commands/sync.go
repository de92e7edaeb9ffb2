package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/siteworks/recruitops/internal/cli/ui"
	"github.com/siteworks/recruitops/internal/jobs"
	"github.com/siteworks/recruitops/internal/syncer"
)

func newSyncCommand(g *globalFlags) *cobra.Command {
	var enqueue bool

	cmd := &cobra.Command{
		Use:   "sync [target]",
		Short: "Sync JobAdder, Google Sheets and Mapbox data",
		Long: `Run a sync target now, or with --enqueue hand it to the worker. Without a
target, list the targets.`,
		Example: `  recruitops sync jobadder-candidates
  recruitops sync bench --enqueue`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				renderTargets(out, g.plain())
				return nil
			}

			target := args[0]
			if _, err := syncer.JobType(target); err != nil {
				return ui.UnknownName("sync target", target, syncer.Targets(), "List targets: recruitops sync", g.plain())
			}

			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if enqueue {
				job, err := syncer.NewJob(target)
				if err != nil {
					return err
				}
				job.Priority = jobs.PriorityHigh
				job.Payload["requested_by"] = "cli"
				if a.cfg.Jobs.MaxAttempts > 0 {
					job.MaxAttempts = a.cfg.Jobs.MaxAttempts
				}
				if err := jobs.NewQueue(db.SQL()).Enqueue(ctx, job); err != nil {
					return err
				}
				ui.Success(out, g.plain(), "queued %s as job %s", target, job.ID)
				return nil
			}

			c, rdb := a.openCache(ctx)
			defer c.Close()

			svc, closeLedger, err := a.buildSyncer(ctx, db, c, a.publisher(rdb))
			if err != nil {
				return err
			}
			defer closeLedger()

			spin := ui.NewSpinner(out, "Syncing "+target, interactive(out), g.plain())
			spin.Start()
			report, err := svc.Run(ctx, target)
			if errors.Is(err, syncer.ErrNotConfigured) {
				spin.Stop()
				return ui.ConfigProblem(target+" is not configured", targetSettings(target), g.plain())
			}
			if err != nil {
				spin.Fail("%s failed", target)
				return err
			}
			spin.Success("%s", report.Summary())
			renderReport(out, report, g.plain())
			return nil
		},
	}

	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "queue the run for the worker instead of running it here")
	return cmd
}

func renderTargets(w io.Writer, noColor bool) {
	tbl := ui.NewTable(w, noColor, "Target", "Job type", "Needs")
	for _, t := range syncer.Targets() {
		jobType, _ := syncer.JobType(t)
		tbl.AddRow(t, jobType, strings.Join(targetSettings(t), ", "))
	}
	tbl.Render()
}

// targetSettings names the settings a target's integration needs
func targetSettings(target string) []string {
	switch target {
	case syncer.TargetJobAdderCandidates, syncer.TargetJobAdderClients:
		return []string{"jobadder.client_id", "jobadder.client_secret", "jobadder.refresh_token"}
	case syncer.TargetSheetCandidates, syncer.TargetBench, syncer.TargetForecast:
		return []string{"sheets.spreadsheet_id"}
	case syncer.TargetGeocodeProjects, syncer.TargetGeocodeCandidates:
		return []string{"mapbox.token"}
	default:
		return nil
	}
}

func renderReport(w io.Writer, r *syncer.Report, noColor bool) {
	kv := ui.NewKeyValue(w, noColor)
	kv.Add("Created", r.Created)
	kv.Add("Updated", r.Updated)
	kv.Add("Skipped", r.Skipped)
	kv.Add("Failed", r.Failed)
	kv.Render()
	for _, e := range r.Errors {
		ui.Warn(w, noColor, "%s", e)
	}
	if extra := r.Failed - len(r.Errors); extra > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", extra)
	}
}

package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/siteworks/recruitops/internal/cli/ui"
	"github.com/siteworks/recruitops/internal/store"
)

func newMigrateCommand(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  "Apply the embedded SQL migrations or show which have run",
	}
	cmd.AddCommand(newMigrateUpCommand(g))
	cmd.AddCommand(newMigrateStatusCommand(g))
	return cmd
}

func newMigrateUpCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
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

			out := cmd.OutOrStdout()
			applied, err := db.Migrate(cmd.Context())
			for _, m := range applied {
				ui.Success(out, g.plain(), "%03d %s", m.Version, m.Name)
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			if len(applied) == 0 {
				fmt.Fprintln(out, "Database is up to date")
				return nil
			}
			ui.Success(out, g.plain(), "applied %d migration(s)", len(applied))
			return nil
		},
	}
}

func newMigrateStatusCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and when they were applied",
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

			states, err := db.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}
			renderMigrations(cmd.OutOrStdout(), states, g.plain())
			return nil
		},
	}
}

func renderMigrations(w io.Writer, states []store.MigrationState, noColor bool) {
	tbl := ui.NewTable(w, noColor, "Version", "Name", "Applied").AlignRight(0)
	pending := 0
	for _, s := range states {
		applied := "pending"
		if s.Applied() {
			applied = s.AppliedAt.UTC().Format("2006-01-02 15:04")
		} else {
			pending++
		}
		tbl.AddRow(strconv.FormatInt(s.Version, 10), s.Name, applied)
	}
	tbl.Render()
	if pending > 0 {
		ui.Warn(w, noColor, "%d migration(s) pending, run: recruitops migrate up", pending)
	}
}

// Package commands implements the recruitops command line.
package commands

import (
	"errors"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/siteworks/recruitops/internal/cli/ui"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalFlags are the persistent flags every command sees
type globalFlags struct {
	configFile string
	noColor    bool
	verbose    bool
}

// plain reports whether output should carry no ANSI colour
func (g *globalFlags) plain() bool {
	return g.noColor || color.NoColor
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "recruitops",
		Short: "Workforce planning and recruitment operations for construction labour hire",
		Long: color.CyanString(`recruitops - construction recruitment operations

Plans crews from the construction phase model, tracks clients, candidates and
projects, forecasts labour demand and keeps JobAdder and Google Sheets in sync.

Run "recruitops init" to create a config file, "recruitops migrate up" to
prepare the database and "recruitops serve" to start the API.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.configFile, "config", "c", "", "config file (default ./recruitops.yaml)")
	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable coloured output")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newInitCommand(g))
	rootCmd.AddCommand(newServeCommand(g))
	rootCmd.AddCommand(newWorkerCommand(g))
	rootCmd.AddCommand(newMigrateCommand(g))
	rootCmd.AddCommand(newPhasesCommand(g))
	rootCmd.AddCommand(newSizeCommand(g))
	rootCmd.AddCommand(newScheduleCommand(g))
	rootCmd.AddCommand(newForecastCommand(g))
	rootCmd.AddCommand(newBenchCommand(g))
	rootCmd.AddCommand(newSyncCommand(g))
	rootCmd.AddCommand(newAdviseCommand(g))
	rootCmd.AddCommand(newUserCommand(g))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the recruitops version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			valueColor := color.New(color.FgWhite)
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "recruitops version: ")
			valueColor.Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			valueColor.Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			valueColor.Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			valueColor.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		var msg ui.Message
		if errors.As(err, &msg) {
			msg.Write(rootCmd.ErrOrStderr())
			return err
		}
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}

package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newWorkerCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run background sync jobs",
		Long: `Run the job pool and the sync scheduler. Every configured integration
is synced at sync.interval; jobs queued from the API or "recruitops sync
--enqueue" are picked up as well. Activity is published over Redis so the
API servers' feeds show it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			c, rdb := a.openCache(ctx)
			defer c.Close()

			return a.work(ctx, db, c, a.publisher(rdb))
		},
	}
}

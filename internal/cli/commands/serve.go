package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siteworks/recruitops/internal/activity"
	"github.com/siteworks/recruitops/internal/api"
	"github.com/siteworks/recruitops/internal/jobs"
	"github.com/siteworks/recruitops/internal/store"
	"github.com/siteworks/recruitops/internal/web/auth"
	"github.com/siteworks/recruitops/internal/web/cache"
	"github.com/siteworks/recruitops/internal/web/middleware"
	"github.com/siteworks/recruitops/internal/web/ratelimit"
	"github.com/siteworks/recruitops/internal/web/server"
	"github.com/siteworks/recruitops/internal/web/websocket"
)

func newServeCommand(g *globalFlags) *cobra.Command {
	var (
		withWorker bool
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and activity feed",
		Long: `Start the HTTP API. With --worker the background job pool and sync
scheduler run in the same process, which suits a single small deployment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()
			if port > 0 {
				a.cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, withWorker)
		},
	}

	cmd.Flags().BoolVar(&withWorker, "worker", false, "also run background jobs in this process")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port")
	return cmd
}

func (a *app) serve(ctx context.Context, withWorker bool) error {
	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	c, rdb := a.openCache(ctx)
	defer c.Close()

	tokens, err := auth.NewTokens(a.cfg.Auth)
	if err != nil {
		return err
	}
	limiter, err := ratelimit.New(a.cfg.RateLimit, rdb, a.cfg.Redis.Prefix)
	if err != nil {
		return err
	}

	// With Redis every event goes through the channel and the relay below
	// feeds this server's hub; without it events go to the hub directly.
	hub := websocket.NewHub(a.logger)
	pub := a.publisher(rdb)
	if rdb == nil {
		pub = activity.Multi(pub, hub)
	}

	advisors, err := a.buildAdvisors(ctx, db, c, pub)
	if err != nil {
		return err
	}

	deps := api.Deps{
		Clients:    db.Clients(),
		Candidates: db.Candidates(),
		Projects:   db.Projects(),
		Contacts:   db.Contacts(),
		Placements: db.Staffing(),
		Accounts:   auth.NewService(db.Users(), tokens),
		Tokens:     tokens,
		Jobs:       jobs.NewQueue(db.SQL()),
		Activity:   websocket.Handler(hub, a.cfg.Server.CORSOrigins),
		Publisher:  pub,
		Limiter:    limiter,
		Health:     healthChecks(db, rdb),
	}
	if advisors != nil {
		deps.Advisors = advisors
	}

	proxies, err := middleware.ParseProxies(a.cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}
	handler := api.New(deps, api.Options{
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		Profiling:      a.cfg.Server.Profiling,
		BenchWindow:    a.cfg.Sync.BenchWindow,
		ForecastMonths: a.cfg.Forecast.Months,
		Horizon:        a.cfg.Forecast.Horizon,
		MaxAttempts:    a.cfg.Jobs.MaxAttempts,
		TrustedProxies: proxies,
	}, a.logger)

	srv := server.New(a.cfg.Server, handler, a.logger)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if rdb != nil {
		group.Go(func() error {
			return activity.Relay(gctx, rdb, activity.DefaultChannel, hub, a.logger)
		})
	}
	if withWorker {
		group.Go(func() error {
			return a.work(gctx, db, c, pub)
		})
	}
	group.Go(func() error {
		return srv.Run(gctx)
	})

	a.logger.Info("recruitops started",
		zap.String("addr", a.cfg.Server.Address()),
		zap.Bool("worker", withWorker),
		zap.Bool("redis", rdb != nil),
		zap.Bool("advisors", advisors != nil))
	return group.Wait()
}

func healthChecks(db *store.DB, rdb *redis.Client) map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{"database": db.Ping}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}
	return checks
}

// purgeEvery and purgeAfter bound how long finished jobs stay in the queue table
const (
	purgeEvery = 6 * time.Hour
	purgeAfter = 7 * 24 * time.Hour
)

// work runs the job pool and sync scheduler until ctx is cancelled
func (a *app) work(ctx context.Context, db *store.DB, c cache.Cache, pub activity.Publisher) error {
	svc, closeLedger, err := a.buildSyncer(ctx, db, c, pub)
	if err != nil {
		return err
	}
	defer closeLedger()

	queue := jobs.NewQueue(db.SQL())
	pool := jobs.NewPool(queue, jobs.PoolConfig{
		Workers:      a.cfg.Jobs.Workers,
		PollInterval: a.cfg.Jobs.PollInterval,
	}, a.logger)
	svc.Register(pool)

	sched := jobs.NewScheduler(queue, a.logger)
	sched.MaxAttempts = a.cfg.Jobs.MaxAttempts
	if err := svc.Schedule(sched, a.cfg.Sync.Interval); err != nil {
		return err
	}
	for _, s := range sched.Schedules() {
		a.logger.Info("scheduled sync", zap.String("target", s.Name), zap.Duration("every", s.Interval))
	}

	pool.Start(ctx)
	defer pool.Stop()

	go func() {
		ticker := time.NewTicker(purgeEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := queue.PurgeFinished(ctx, purgeAfter)
				if err != nil {
					a.logger.Warn("failed to purge finished jobs", zap.Error(err))
					continue
				}
				a.logger.Debug("purged finished jobs", zap.Int64("count", n))
			}
		}
	}()

	sched.Run(ctx, time.Second)
	return nil
}

package commands

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/siteworks/recruitops/internal/activity"
	"github.com/siteworks/recruitops/internal/advisor"
	"github.com/siteworks/recruitops/internal/cli/ui"
	"github.com/siteworks/recruitops/internal/config"
	"github.com/siteworks/recruitops/internal/integrations/jobadder"
	"github.com/siteworks/recruitops/internal/integrations/mapbox"
	"github.com/siteworks/recruitops/internal/integrations/sheets"
	"github.com/siteworks/recruitops/internal/logging"
	"github.com/siteworks/recruitops/internal/store"
	"github.com/siteworks/recruitops/internal/syncer"
	"github.com/siteworks/recruitops/internal/web/cache"
)

// app carries loaded settings and a logger into commands that touch the
// database or integrations
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	flags  *globalFlags
}

func (g *globalFlags) load() (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configFile != "" {
		cfg, err = config.LoadFile(g.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, ui.ConfigProblem(err.Error(), nil, g.plain())
	}

	level := cfg.Log.Level
	if g.verbose {
		level = "debug"
	}
	logger, err := logging.New(level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, flags: g}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func (a *app) openStore(ctx context.Context) (*store.DB, error) {
	if a.cfg.Database.URL == "" {
		return nil, ui.ConfigProblem("database.url is not set", []string{
			"database.url in " + config.FileName,
			config.EnvPrefix + "_DATABASE_URL or DATABASE_URL",
		}, a.flags.plain())
	}
	return store.Open(ctx, a.cfg.Database, a.logger)
}

// openCache returns the shared cache and, when it is Redis backed, the client
// used for rate limiting and the activity channel
func (a *app) openCache(ctx context.Context) (cache.Cache, *redis.Client) {
	c := cache.New(ctx, a.cfg.Redis, a.logger)
	if r, ok := c.(*cache.Redis); ok {
		return c, r.Client()
	}
	return c, nil
}

// publisher sends activity over Redis when available so every server's feed
// sees it, and always logs it
func (a *app) publisher(rdb *redis.Client) activity.Publisher {
	logged := activity.PublisherFunc(func(e activity.Event) {
		a.logger.Info("activity", zap.String("type", e.Type), zap.String("message", e.Message))
	})
	if rdb == nil {
		return logged
	}
	return activity.Multi(activity.NewRedisPublisher(rdb, activity.DefaultChannel, a.logger), logged)
}

// buildSyncer wires every configured integration into a sync service. The
// returned func closes the ledger.
func (a *app) buildSyncer(ctx context.Context, db *store.DB, c cache.Cache, pub activity.Publisher) (*syncer.Service, func(), error) {
	ledger, err := syncer.OpenLedger(a.cfg.Sync.LedgerPath)
	if err != nil {
		return nil, nil, err
	}
	deps := syncer.Deps{
		Candidates: db.Candidates(),
		Projects:   db.Projects(),
		Clients:    db.Clients(),
		Ledger:     ledger,
		Publisher:  pub,
	}

	sc, err := sheets.New(ctx, a.cfg.Sheets, a.logger)
	switch {
	case err == nil:
		deps.Sheets = sc
	case !errors.Is(err, sheets.ErrNotConfigured):
		ledger.Close()
		return nil, nil, err
	}

	ats, err := jobadder.New(ctx, a.cfg.JobAdder, a.logger)
	switch {
	case err == nil:
		deps.ATS = ats
	case !errors.Is(err, jobadder.ErrNotConfigured):
		ledger.Close()
		return nil, nil, err
	}

	if a.cfg.Mapbox.Token != "" {
		deps.Geocoder = mapbox.New(a.cfg.Mapbox, c, a.logger)
	}

	svc := syncer.NewService(deps, syncer.Options{
		CandidatesRange: a.cfg.Sheets.CandidatesRange,
		BenchRange:      a.cfg.Sheets.BenchRange,
		ForecastRange:   a.cfg.Sheets.ForecastRange,
		Concurrency:     a.cfg.Sync.Concurrency,
		BenchWindow:     a.cfg.Sync.BenchWindow,
		ForecastMonths:  a.cfg.Forecast.Months,
	}, a.logger)
	return svc, func() { ledger.Close() }, nil
}

// buildAdvisors returns nil when no Gemini key is configured
func (a *app) buildAdvisors(ctx context.Context, db *store.DB, c cache.Cache, pub activity.Publisher) (*advisor.Service, error) {
	if a.cfg.Advisor.APIKey == "" {
		return nil, nil
	}
	gen, err := advisor.NewGemini(ctx, a.cfg.Advisor)
	if err != nil {
		return nil, err
	}
	source := &advisor.StoreSource{
		Candidates:  db.Candidates(),
		Projects:    db.Projects(),
		Clients:     db.Clients(),
		BenchWindow: a.cfg.Sync.BenchWindow,
		Horizon:     a.cfg.Forecast.Horizon,
		Months:      a.cfg.Forecast.Months,
	}
	return advisor.NewService(gen, c, source, db.Transcripts(), pub, advisor.Options{
		HistoryTTL: a.cfg.Advisor.HistoryTTL,
		MaxTurns:   a.cfg.Advisor.MaxTurns,
	}, a.logger), nil
}

// interactive reports whether w is a terminal that can show prompts and
// spinners
func interactive(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

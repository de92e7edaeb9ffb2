package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siteworks/recruitops/internal/activity"
	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/integrations/jobadder"
	"github.com/siteworks/recruitops/internal/integrations/mapbox"
	"github.com/siteworks/recruitops/internal/integrations/sheets"
)

// ErrNotConfigured is returned when a target's integration is missing
var ErrNotConfigured = errors.New("integration not configured")

// CandidateStore is the candidate persistence the syncer needs
type CandidateStore interface {
	Upsert(ctx context.Context, c *crm.Candidate) (bool, error)
	ListActive(ctx context.Context) ([]*crm.Candidate, error)
	ListUngeocoded(ctx context.Context, limit int) ([]*crm.Candidate, error)
	SetLocation(ctx context.Context, id uuid.UUID, lat, lng float64) error
}

// ProjectStore is the project persistence the syncer needs
type ProjectStore interface {
	ListLive(ctx context.Context) ([]*crm.Project, error)
	ListUngeocoded(ctx context.Context, limit int) ([]*crm.Project, error)
	SetLocation(ctx context.Context, id uuid.UUID, lat, lng float64) error
}

// ClientStore is the client persistence the syncer needs
type ClientStore interface {
	Upsert(ctx context.Context, c *crm.Client) (bool, error)
}

// Spreadsheet reads and writes header-keyed sheet ranges
type Spreadsheet interface {
	ReadRows(ctx context.Context, rng string) ([]sheets.Row, error)
	WriteRows(ctx context.Context, rng string, header []string, rows [][]string) error
}

// ATS is the applicant tracking system records are imported from
type ATS interface {
	ListCandidates(ctx context.Context, updatedSince time.Time) ([]jobadder.Candidate, error)
	ListJobs(ctx context.Context, updatedSince time.Time) ([]jobadder.Job, error)
}

// Geocoder resolves free-text locations
type Geocoder interface {
	Geocode(ctx context.Context, query string) (mapbox.Point, error)
}

// Deps are the collaborators of a Service. Integrations left nil make their
// targets return ErrNotConfigured.
type Deps struct {
	Candidates CandidateStore
	Projects   ProjectStore
	Clients    ClientStore
	Ledger     *Ledger
	Sheets     Spreadsheet
	ATS        ATS
	Geocoder   Geocoder
	Publisher  activity.Publisher
}

// Options tune sync behaviour
type Options struct {
	CandidatesRange string
	BenchRange      string
	ForecastRange   string
	Concurrency     int
	BenchWindow     time.Duration
	ForecastMonths  int
	GeocodeBatch    int
}

// Service runs sync targets
type Service struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a sync service
func NewService(deps Deps, opts Options, logger *zap.Logger) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.BenchWindow <= 0 {
		opts.BenchWindow = crm.DefaultBenchWindow
	}
	if opts.ForecastMonths <= 0 {
		opts.ForecastMonths = 6
	}
	if opts.GeocodeBatch <= 0 {
		opts.GeocodeBatch = 100
	}
	if deps.Publisher == nil {
		deps.Publisher = activity.Nop
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		deps:   deps,
		opts:   opts,
		logger: logger.Named("syncer"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run executes a target by name
func (s *Service) Run(ctx context.Context, target string) (*Report, error) {
	switch target {
	case TargetJobAdderCandidates:
		return s.ImportJobAdderCandidates(ctx)
	case TargetJobAdderClients:
		return s.ImportJobAdderClients(ctx)
	case TargetSheetCandidates:
		return s.ImportSheetCandidates(ctx)
	case TargetBench:
		return s.ExportBench(ctx)
	case TargetForecast:
		return s.ExportForecast(ctx)
	case TargetGeocodeProjects:
		return s.GeocodeProjects(ctx)
	case TargetGeocodeCandidates:
		return s.GeocodeCandidates(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
}

// finish stamps the duration, records the run and announces it
func (s *Service) finish(ctx context.Context, r *Report, err error) (*Report, error) {
	r.Duration = s.now().Sub(r.StartedAt)

	if err != nil {
		s.logger.Error("sync failed", zap.String("target", r.Target), zap.Error(err))
		s.deps.Publisher.Publish(activity.New(activity.SyncFailed,
			fmt.Sprintf("%s failed: %v", r.Target, err), r))
		return r, err
	}

	if s.deps.Ledger != nil {
		if lerr := s.deps.Ledger.RecordRun(ctx, r); lerr != nil {
			s.logger.Warn("failed to record sync run", zap.String("target", r.Target), zap.Error(lerr))
		}
	}
	s.logger.Info("sync finished",
		zap.String("target", r.Target),
		zap.Int("created", r.Created),
		zap.Int("updated", r.Updated),
		zap.Int("skipped", r.Skipped),
		zap.Int("failed", r.Failed),
		zap.Duration("duration", r.Duration))
	s.deps.Publisher.Publish(activity.New(activity.SyncCompleted, r.Summary(), r))
	return r, nil
}

// changed consults the ledger; without one every record counts as changed
func (s *Service) changed(ctx context.Context, target, id string, v any) (bool, string, error) {
	hash, err := Hash(v)
	if err != nil {
		return false, "", err
	}
	if s.deps.Ledger == nil {
		return true, hash, nil
	}
	changed, err := s.deps.Ledger.Changed(ctx, target, id, hash)
	return changed, hash, err
}

func (s *Service) record(ctx context.Context, target, id, hash string) error {
	if s.deps.Ledger == nil {
		return nil
	}
	return s.deps.Ledger.Record(ctx, target, id, hash)
}

// upsertCandidates validates, de-duplicates via the ledger and stores
// candidates with bounded concurrency
func (s *Service) upsertCandidates(ctx context.Context, r *Report, cands []*crm.Candidate) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for _, c := range cands {
		g.Go(func() error {
			id := c.ExternalID
			if err := c.Validate(); err != nil {
				r.fail(id, err)
				return nil
			}
			changed, hash, err := s.changed(gctx, r.Target, id, c)
			if err != nil {
				return err
			}
			if !changed {
				r.skipped()
				return nil
			}
			created, err := s.deps.Candidates.Upsert(gctx, c)
			if err != nil {
				r.failStore(id, err)
				return nil
			}
			if created {
				r.created()
			} else {
				r.updated()
			}
			return s.record(gctx, r.Target, id, hash)
		})
	}
	return g.Wait()
}

// ImportJobAdderCandidates pulls candidates changed in JobAdder since the last
// complete run. A run where any candidate failed to store leaves the watermark
// where it was, so those candidates are fetched again.
func (s *Service) ImportJobAdderCandidates(ctx context.Context) (*Report, error) {
	r := newReport(TargetJobAdderCandidates, s.now())
	if s.deps.ATS == nil {
		return s.finish(ctx, r, ErrNotConfigured)
	}

	var since time.Time
	if s.deps.Ledger != nil {
		last, err := s.deps.Ledger.LastRun(ctx, r.Target)
		if err != nil {
			return s.finish(ctx, r, err)
		}
		since = last
	}

	remote, err := s.deps.ATS.ListCandidates(ctx, since)
	if err != nil {
		return s.finish(ctx, r, err)
	}
	cands := make([]*crm.Candidate, 0, len(remote))
	for _, rc := range remote {
		cands = append(cands, rc.ToCRM())
	}
	return s.finish(ctx, r, s.upsertCandidates(ctx, r, cands))
}

// ImportJobAdderClients upserts the client companies behind JobAdder job orders
func (s *Service) ImportJobAdderClients(ctx context.Context) (*Report, error) {
	r := newReport(TargetJobAdderClients, s.now())
	if s.deps.ATS == nil {
		return s.finish(ctx, r, ErrNotConfigured)
	}

	jobs, err := s.deps.ATS.ListJobs(ctx, time.Time{})
	if err != nil {
		return s.finish(ctx, r, err)
	}

	seen := make(map[int]bool)
	for _, j := range jobs {
		if j.Company.CompanyID == 0 || seen[j.Company.CompanyID] {
			continue
		}
		seen[j.Company.CompanyID] = true

		c := jobadder.ClientFromCompany(j.Company)
		if err := c.Validate(); err != nil {
			r.fail(c.ExternalID, err)
			continue
		}
		changed, hash, err := s.changed(ctx, r.Target, c.ExternalID, c)
		if err != nil {
			return s.finish(ctx, r, err)
		}
		if !changed {
			r.skipped()
			continue
		}
		created, err := s.deps.Clients.Upsert(ctx, c)
		if err != nil {
			r.failStore(c.ExternalID, err)
			continue
		}
		if created {
			r.created()
		} else {
			r.updated()
		}
		if err := s.record(ctx, r.Target, c.ExternalID, hash); err != nil {
			return s.finish(ctx, r, err)
		}
	}
	return s.finish(ctx, r, nil)
}

// ImportSheetCandidates reads the candidates tab of the workbook
func (s *Service) ImportSheetCandidates(ctx context.Context) (*Report, error) {
	r := newReport(TargetSheetCandidates, s.now())
	if s.deps.Sheets == nil {
		return s.finish(ctx, r, ErrNotConfigured)
	}

	rows, err := s.deps.Sheets.ReadRows(ctx, s.opts.CandidatesRange)
	if err != nil {
		return s.finish(ctx, r, err)
	}

	cands := make([]*crm.Candidate, 0, len(rows))
	for i, row := range rows {
		c, err := CandidateFromRow(row)
		if err != nil {
			r.fail(fmt.Sprintf("row %d", i+2), err)
			continue
		}
		cands = append(cands, c)
	}
	return s.finish(ctx, r, s.upsertCandidates(ctx, r, cands))
}

// ExportBench rewrites the bench tab with everyone available or finishing
func (s *Service) ExportBench(ctx context.Context) (*Report, error) {
	r := newReport(TargetBench, s.now())
	if s.deps.Sheets == nil {
		return s.finish(ctx, r, ErrNotConfigured)
	}

	cands, err := s.deps.Candidates.ListActive(ctx)
	if err != nil {
		return s.finish(ctx, r, err)
	}
	entries := crm.Bench(cands, r.StartedAt, s.opts.BenchWindow)

	if err := s.deps.Sheets.WriteRows(ctx, s.opts.BenchRange, BenchHeader, BenchRows(entries)); err != nil {
		return s.finish(ctx, r, err)
	}
	r.Updated = len(entries)
	return s.finish(ctx, r, nil)
}

// ExportForecast rewrites the forecast tab with demand against bench supply
func (s *Service) ExportForecast(ctx context.Context) (*Report, error) {
	r := newReport(TargetForecast, s.now())
	if s.deps.Sheets == nil {
		return s.finish(ctx, r, ErrNotConfigured)
	}

	projects, err := s.deps.Projects.ListLive(ctx)
	if err != nil {
		return s.finish(ctx, r, err)
	}
	cands, err := s.deps.Candidates.ListActive(ctx)
	if err != nil {
		return s.finish(ctx, r, err)
	}

	rows := ForecastRows(projects, cands, r.StartedAt, s.opts.ForecastMonths, s.opts.BenchWindow)
	if err := s.deps.Sheets.WriteRows(ctx, s.opts.ForecastRange, ForecastHeader, rows); err != nil {
		return s.finish(ctx, r, err)
	}
	r.Updated = len(rows)
	return s.finish(ctx, r, nil)
}

type geoTarget struct {
	id       uuid.UUID
	location string
}

// geocode resolves a batch of locations and stores coordinates via save
func (s *Service) geocode(ctx context.Context, r *Report, targets []geoTarget, save func(context.Context, uuid.UUID, float64, float64) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for _, t := range targets {
		g.Go(func() error {
			if t.location == "" {
				r.skipped()
				return nil
			}
			p, err := s.deps.Geocoder.Geocode(gctx, t.location)
			if errors.Is(err, mapbox.ErrNotFound) {
				r.skipped()
				return nil
			}
			if err != nil {
				r.fail(t.id.String(), err)
				return nil
			}
			if err := save(gctx, t.id, p.Lat, p.Lng); err != nil {
				r.fail(t.id.String(), err)
				return nil
			}
			r.updated()
			return nil
		})
	}
	return g.Wait()
}

// GeocodeProjects fills coordinates for projects that have a site address
func (s *Service) GeocodeProjects(ctx context.Context) (*Report, error) {
	r := newReport(TargetGeocodeProjects, s.now())
	if s.deps.Geocoder == nil {
		return s.finish(ctx, r, ErrNotConfigured)
	}
	projects, err := s.deps.Projects.ListUngeocoded(ctx, s.opts.GeocodeBatch)
	if err != nil {
		return s.finish(ctx, r, err)
	}
	targets := make([]geoTarget, 0, len(projects))
	for _, p := range projects {
		targets = append(targets, geoTarget{id: p.ID, location: p.Location})
	}
	return s.finish(ctx, r, s.geocode(ctx, r, targets, s.deps.Projects.SetLocation))
}

// GeocodeCandidates fills coordinates for candidates with a home location
func (s *Service) GeocodeCandidates(ctx context.Context) (*Report, error) {
	r := newReport(TargetGeocodeCandidates, s.now())
	if s.deps.Geocoder == nil {
		return s.finish(ctx, r, ErrNotConfigured)
	}
	cands, err := s.deps.Candidates.ListUngeocoded(ctx, s.opts.GeocodeBatch)
	if err != nil {
		return s.finish(ctx, r, err)
	}
	targets := make([]geoTarget, 0, len(cands))
	for _, c := range cands {
		targets = append(targets, geoTarget{id: c.ID, location: c.Location})
	}
	return s.finish(ctx, r, s.geocode(ctx, r, targets, s.deps.Candidates.SetLocation))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package syncer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siteworks/recruitops/internal/activity"
	"github.com/siteworks/recruitops/internal/construction"
	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/integrations/jobadder"
	"github.com/siteworks/recruitops/internal/integrations/mapbox"
	"github.com/siteworks/recruitops/internal/integrations/sheets"
	"github.com/siteworks/recruitops/internal/jobs"
)

var syncNow = time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC)

type fakeCandidates struct {
	mu        sync.Mutex
	byExt     map[string]*crm.Candidate
	active    []*crm.Candidate
	ungeo     []*crm.Candidate
	locations map[uuid.UUID][2]float64
	upserts   int
	failNext  map[string]error
}

func newFakeCandidates() *fakeCandidates {
	return &fakeCandidates{byExt: map[string]*crm.Candidate{}, locations: map[uuid.UUID][2]float64{}}
}

func (f *fakeCandidates) Upsert(_ context.Context, c *crm.Candidate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failNext[c.ExternalID]; ok {
		delete(f.failNext, c.ExternalID)
		return false, err
	}
	f.upserts++
	_, existed := f.byExt[c.ExternalID]
	f.byExt[c.ExternalID] = c
	return !existed, nil
}

func (f *fakeCandidates) ListActive(context.Context) ([]*crm.Candidate, error) { return f.active, nil }

func (f *fakeCandidates) ListUngeocoded(context.Context, int) ([]*crm.Candidate, error) {
	return f.ungeo, nil
}

func (f *fakeCandidates) SetLocation(_ context.Context, id uuid.UUID, lat, lng float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locations[id] = [2]float64{lat, lng}
	return nil
}

type fakeProjects struct {
	mu        sync.Mutex
	live      []*crm.Project
	ungeo     []*crm.Project
	locations map[uuid.UUID][2]float64
}

func (f *fakeProjects) ListLive(context.Context) ([]*crm.Project, error) { return f.live, nil }

func (f *fakeProjects) ListUngeocoded(context.Context, int) ([]*crm.Project, error) {
	return f.ungeo, nil
}

func (f *fakeProjects) SetLocation(_ context.Context, id uuid.UUID, lat, lng float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locations == nil {
		f.locations = map[uuid.UUID][2]float64{}
	}
	f.locations[id] = [2]float64{lat, lng}
	return nil
}

type fakeClients struct{ upserted []*crm.Client }

func (f *fakeClients) Upsert(_ context.Context, c *crm.Client) (bool, error) {
	f.upserted = append(f.upserted, c)
	return true, nil
}

type fakeSheet struct {
	rows    map[string][]sheets.Row
	written map[string][][]string
	headers map[string][]string
}

func newFakeSheet() *fakeSheet {
	return &fakeSheet{rows: map[string][]sheets.Row{}, written: map[string][][]string{}, headers: map[string][]string{}}
}

func (f *fakeSheet) ReadRows(_ context.Context, rng string) ([]sheets.Row, error) {
	return f.rows[rng], nil
}

func (f *fakeSheet) WriteRows(_ context.Context, rng string, header []string, rows [][]string) error {
	f.headers[rng] = header
	f.written[rng] = rows
	return nil
}

type fakeATS struct {
	candidates  []jobadder.Candidate
	jobs        []jobadder.Job
	since       []time.Time
	filterSince bool
}

func (f *fakeATS) ListCandidates(_ context.Context, since time.Time) ([]jobadder.Candidate, error) {
	f.since = append(f.since, since)
	if !f.filterSince {
		return f.candidates, nil
	}
	out := make([]jobadder.Candidate, 0)
	for _, c := range f.candidates {
		if !c.UpdatedAt.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeATS) ListJobs(context.Context, time.Time) ([]jobadder.Job, error) { return f.jobs, nil }

type fakeGeocoder map[string]mapbox.Point

func (f fakeGeocoder) Geocode(_ context.Context, q string) (mapbox.Point, error) {
	if q == "boom" {
		return mapbox.Point{}, errors.New("mapbox: status 500")
	}
	p, ok := f[q]
	if !ok {
		return mapbox.Point{}, mapbox.ErrNotFound
	}
	return p, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []activity.Event
}

func (l *eventLog) Publish(e activity.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func newTestService(t *testing.T, deps Deps) (*Service, *eventLog) {
	t.Helper()
	events := &eventLog{}
	deps.Publisher = events
	if deps.Ledger == nil {
		deps.Ledger = openTestLedger(t)
	}
	s := NewService(deps, Options{
		CandidatesRange: "Candidates!A1:Z",
		BenchRange:      "Bench!A1:H",
		ForecastRange:   "Forecast!A1:F",
		Concurrency:     2,
		ForecastMonths:  1,
	}, zap.NewNop())
	s.now = func() time.Time { return syncNow }
	return s, events
}

func TestImportJobAdderCandidatesSkipsUnchanged(t *testing.T) {
	store := newFakeCandidates()
	ats := &fakeATS{candidates: []jobadder.Candidate{
		{CandidateID: 1, FirstName: "jo", LastName: "mcdonald", Email: "jo@example.com", Position: "sparky", Status: jobadder.Named{Name: "Available"}},
		{CandidateID: 2, FirstName: "alex", LastName: "ng", Position: "labourer"},
		{CandidateID: 3, Position: "labourer"},
	}}
	s, events := newTestService(t, Deps{Candidates: store, ATS: ats})

	r, err := s.ImportJobAdderCandidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, r.Created)
	assert.Equal(t, 1, r.Failed, "nameless candidate fails validation")
	require.Len(t, r.Errors, 1)
	assert.Contains(t, r.Errors[0], "3: validation failed")
	assert.True(t, ats.since[0].IsZero(), "first run is a full import")

	r, err = s.ImportJobAdderCandidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, r.Created+r.Updated)
	assert.Equal(t, 2, r.Skipped)
	assert.Equal(t, 2, store.upserts)
	assert.Equal(t, syncNow, ats.since[1], "second run is incremental")

	require.Len(t, events.events, 2)
	assert.Equal(t, activity.SyncCompleted, events.events[0].Type)
	assert.Contains(t, events.events[0].Message, "jobadder-candidates: 2 created")
}

func TestImportJobAdderCandidatesRetriesStoreFailures(t *testing.T) {
	store := newFakeCandidates()
	store.failNext = map[string]error{"7": errors.New("connection reset")}
	ats := &fakeATS{filterSince: true, candidates: []jobadder.Candidate{
		{CandidateID: 7, FirstName: "kim", LastName: "lee", Position: "formworker", UpdatedAt: syncNow.Add(-time.Hour)},
	}}
	s, _ := newTestService(t, Deps{Candidates: store, ATS: ats})
	ctx := context.Background()

	r, err := s.ImportJobAdderCandidates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Failed)
	assert.False(t, r.Complete())

	s.now = func() time.Time { return syncNow.Add(time.Hour) }
	r, err = s.ImportJobAdderCandidates(ctx)
	require.NoError(t, err)
	assert.True(t, ats.since[1].IsZero(), "an incomplete run does not advance the watermark")
	assert.Equal(t, 1, r.Created)
	assert.Contains(t, store.byExt, "7")

	s.now = func() time.Time { return syncNow.Add(2 * time.Hour) }
	_, err = s.ImportJobAdderCandidates(ctx)
	require.NoError(t, err)
	assert.Equal(t, syncNow.Add(time.Hour), ats.since[2])
}

func TestImportJobAdderClientsDedupesCompanies(t *testing.T) {
	clients := &fakeClients{}
	acme := jobadder.Company{CompanyID: 9, Name: "Acme Build"}
	ats := &fakeATS{jobs: []jobadder.Job{
		{JobID: 1, Company: acme},
		{JobID: 2, Company: acme},
		{JobID: 3, Company: jobadder.Company{CompanyID: 10, Name: "Beta Civil"}},
		{JobID: 4},
	}}
	s, _ := newTestService(t, Deps{Clients: clients, ATS: ats})

	r, err := s.ImportJobAdderClients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, r.Created)
	require.Len(t, clients.upserted, 2)
	assert.Equal(t, "9", clients.upserted[0].ExternalID)
}

func TestImportSheetCandidates(t *testing.T) {
	store := newFakeCandidates()
	sheet := newFakeSheet()
	sheet.rows["Candidates!A1:Z"] = []sheets.Row{
		{"name": "Sam Lee", "email": "sam@example.com", "role": "chippy"},
		{"name": "Nobody", "role": "labourer"},
	}
	s, _ := newTestService(t, Deps{Candidates: store, Sheets: sheet})

	r, err := s.ImportSheetCandidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Created)
	assert.Equal(t, 1, r.Failed)
	assert.Contains(t, r.Errors[0], "row 3")
	assert.Equal(t, construction.RoleCarpenter, store.byExt["sam@example.com"].Role)
}

func TestExportBenchAndForecast(t *testing.T) {
	from := syncNow.Add(-10 * 24 * time.Hour)
	store := newFakeCandidates()
	store.active = []*crm.Candidate{
		{FirstName: "Al", Role: construction.RoleLabourer, Status: crm.CandidateAvailable, AvailableFrom: &from},
		{FirstName: "Bo", Role: construction.RoleLabourer, Status: crm.CandidateUnavailable},
	}
	projects := &fakeProjects{live: []*crm.Project{{
		ID: uuid.New(), Name: "Alpha Tower", Size: construction.SizeM, Status: crm.ProjectWon,
		Probability: 100, StartDate: time.Date(2025, 4, 7, 0, 0, 0, 0, time.UTC),
	}}}
	sheet := newFakeSheet()
	s, _ := newTestService(t, Deps{Candidates: store, Projects: projects, Sheets: sheet})

	r, err := s.ExportBench(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Updated)
	assert.Equal(t, BenchHeader, sheet.headers["Bench!A1:H"])
	assert.Equal(t, "10", sheet.written["Bench!A1:H"][0][4])

	r, err = s.ExportForecast(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(sheet.written["Forecast!A1:F"]), r.Updated)
	assert.Equal(t, ForecastHeader, sheet.headers["Forecast!A1:F"])
}

func TestGeocodeProjects(t *testing.T) {
	ok := uuid.New()
	missing := uuid.New()
	broken := uuid.New()
	projects := &fakeProjects{ungeo: []*crm.Project{
		{ID: ok, Location: "Parramatta NSW"},
		{ID: missing, Location: "Atlantis"},
		{ID: broken, Location: "boom"},
		{ID: uuid.New(), Location: ""},
	}}
	geo := fakeGeocoder{"Parramatta NSW": {Lat: -33.815, Lng: 151.0035}}
	s, _ := newTestService(t, Deps{Projects: projects, Geocoder: geo})

	r, err := s.GeocodeProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Updated)
	assert.Equal(t, 2, r.Skipped)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, [2]float64{-33.815, 151.0035}, projects.locations[ok])
	assert.NotContains(t, projects.locations, missing)
}

func TestGeocodeCandidates(t *testing.T) {
	id := uuid.New()
	store := newFakeCandidates()
	store.ungeo = []*crm.Candidate{{ID: id, Location: "Penrith"}}
	s, _ := newTestService(t, Deps{Candidates: store, Geocoder: fakeGeocoder{"Penrith": {Lat: -33.75, Lng: 150.69}}})

	r, err := s.Run(context.Background(), TargetGeocodeCandidates)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Updated)
	assert.Equal(t, [2]float64{-33.75, 150.69}, store.locations[id])
}

func TestNotConfiguredTargets(t *testing.T) {
	s, events := newTestService(t, Deps{})
	for _, target := range Targets() {
		_, err := s.Run(context.Background(), target)
		assert.ErrorIs(t, err, ErrNotConfigured, target)
	}
	for _, e := range events.events {
		assert.Equal(t, activity.SyncFailed, e.Type)
	}

	_, err := s.Run(context.Background(), "mystery")
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestJobTypesAndRegister(t *testing.T) {
	jt, err := JobType(TargetBench)
	require.NoError(t, err)
	assert.Equal(t, "sync.sheets.bench", jt)
	_, err = JobType("nope")
	assert.ErrorIs(t, err, ErrUnknownTarget)

	job, err := NewJob(TargetGeocodeProjects)
	require.NoError(t, err)
	assert.Equal(t, "geocode.projects", job.Type)
	assert.Equal(t, TargetGeocodeProjects, job.Payload["target"])

	s, _ := newTestService(t, Deps{})
	pool := jobs.NewPool(nil, jobs.PoolConfig{}, zap.NewNop())
	s.Register(pool)

	types := make([]string, 0, len(jobTypes))
	for _, v := range jobTypes {
		types = append(types, v)
	}
	sort.Strings(types)
	assert.Equal(t, types, pool.Types())
}

func TestScheduleOnlyConfiguredTargets(t *testing.T) {
	s, _ := newTestService(t, Deps{Sheets: newFakeSheet()})
	sched := jobs.NewScheduler(nil, zap.NewNop())
	require.NoError(t, s.Schedule(sched, time.Hour))

	names := make([]string, 0)
	for _, sc := range sched.Schedules() {
		names = append(names, sc.Name)
	}
	assert.Equal(t, []string{TargetBench, TargetForecast, TargetSheetCandidates}, names)
}

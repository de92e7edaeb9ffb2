// Package api wires the recruitops HTTP API: CRM resources, the construction
// reference data, forecasts, advisors, sync jobs and the activity feed.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siteworks/recruitops/internal/activity"
	"github.com/siteworks/recruitops/internal/advisor"
	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/jobs"
	"github.com/siteworks/recruitops/internal/store"
	"github.com/siteworks/recruitops/internal/syncer"
	"github.com/siteworks/recruitops/internal/web/auth"
	"github.com/siteworks/recruitops/internal/web/middleware"
	"github.com/siteworks/recruitops/internal/web/profiling"
	"github.com/siteworks/recruitops/internal/web/ratelimit"
	"github.com/siteworks/recruitops/internal/web/request"
	"github.com/siteworks/recruitops/internal/web/response"
	"github.com/siteworks/recruitops/internal/web/router"
)

// ClientStore persists clients
type ClientStore interface {
	Create(ctx context.Context, c *crm.Client) error
	Get(ctx context.Context, id uuid.UUID) (*crm.Client, error)
	List(ctx context.Context, f store.ClientFilter) ([]*crm.Client, error)
	Update(ctx context.Context, c *crm.Client) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CandidateStore persists candidates
type CandidateStore interface {
	Create(ctx context.Context, c *crm.Candidate) error
	Get(ctx context.Context, id uuid.UUID) (*crm.Candidate, error)
	List(ctx context.Context, f store.CandidateFilter) ([]*crm.Candidate, error)
	ListActive(ctx context.Context) ([]*crm.Candidate, error)
	Update(ctx context.Context, c *crm.Candidate) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProjectStore persists projects
type ProjectStore interface {
	Create(ctx context.Context, p *crm.Project) error
	Get(ctx context.Context, id uuid.UUID) (*crm.Project, error)
	List(ctx context.Context, f store.ProjectFilter) ([]*crm.Project, error)
	ListLive(ctx context.Context) ([]*crm.Project, error)
	Update(ctx context.Context, p *crm.Project) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ContactStore persists client contacts
type ContactStore interface {
	Create(ctx context.Context, c *crm.Contact) error
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*crm.Contact, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PlacementStore records candidates placed on projects
type PlacementStore interface {
	Place(ctx context.Context, p *crm.Placement) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*crm.Placement, error)
	ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]*crm.Placement, error)
	End(ctx context.Context, id uuid.UUID, end time.Time) error
}

// Accounts logs users in and creates new ones
type Accounts interface {
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Register(ctx context.Context, email, name, password string, roles ...string) (*store.User, error)
}

// Advisors answers chat messages
type Advisors interface {
	Chat(ctx context.Context, name advisor.Name, sessionID, message string) (advisor.Reply, error)
	History(ctx context.Context, name advisor.Name, sessionID string) ([]advisor.Turn, error)
	Reset(ctx context.Context, name advisor.Name, sessionID string) error
}

// JobQueue accepts sync jobs and reports on them
type JobQueue interface {
	Enqueue(ctx context.Context, job *jobs.Job) error
	Get(ctx context.Context, id uuid.UUID) (*jobs.Job, error)
	Stats(ctx context.Context, queueName string) ([]jobs.QueueStats, error)
}

// HealthCheck checks one dependency
type HealthCheck func(ctx context.Context) error

// Deps are the services behind the API. Contacts, Placements, Advisors, Jobs
// and Activity may be nil; their routes then answer 503.
type Deps struct {
	Clients    ClientStore
	Candidates CandidateStore
	Projects   ProjectStore
	Contacts   ContactStore
	Placements PlacementStore
	Accounts   Accounts
	Tokens     middleware.TokenParser
	Advisors   Advisors
	Jobs       JobQueue
	Activity   http.Handler
	Publisher  activity.Publisher
	Limiter    ratelimit.Limiter
	Health     map[string]HealthCheck
}

// Options tune the API
type Options struct {
	CORSOrigins    []string
	Profiling      bool
	BenchWindow    time.Duration
	ForecastMonths int
	Horizon        time.Duration
	MaxAttempts    int
	TrustedProxies middleware.Proxies
}

// API serves the recruitops endpoints
type API struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
	router *router.Router
	now    func() time.Time
}

// New builds the API and its routes
func New(deps Deps, opts Options, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BenchWindow <= 0 {
		opts.BenchWindow = crm.DefaultBenchWindow
	}
	if opts.ForecastMonths <= 0 {
		opts.ForecastMonths = 12
	}
	if opts.Horizon <= 0 {
		opts.Horizon = 8 * 7 * 24 * time.Hour
	}
	a := &API{
		deps:   deps,
		opts:   opts,
		logger: logger.Named("api"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	a.router = a.routes()
	return a
}

// ServeHTTP implements http.Handler
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Routes lists every registered route
func (a *API) Routes() []router.RouteInfo {
	return a.router.Routes()
}

func (a *API) routes() *router.Router {
	r := router.New()
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(a.logger),
		middleware.Logging(a.logger),
		middleware.CORS(a.opts.CORSOrigins),
	)

	r.Get("/healthz", a.healthz)

	authn := middleware.Authenticate(a.deps.Tokens)
	if a.opts.Profiling {
		r.With(authn, middleware.RequirePermission(auth.PermManageUsers)).
			Mount("/debug/pprof", profiling.Handler())
	}

	limit := middleware.RateLimit(a.deps.Limiter, a.opts.TrustedProxies, a.logger)
	r.Route("/api", func(r *router.Router) {
		r.With(limit).Post("/auth/login", a.login)

		r.Group(func(r *router.Router) {
			r.Use(authn, limit, middleware.RequirePermission(auth.PermRead))
			write := middleware.RequirePermission(auth.PermWrite)

			r.Get("/me", a.me)
			r.With(middleware.RequirePermission(auth.PermManageUsers)).Post("/users", a.createUser)

			r.Get("/phases", a.listPhases)
			r.Get("/phases/{key}", a.getPhase)
			r.Get("/roles", a.listRoles)
			r.Get("/size", a.projectSize)
			r.Get("/schedule", a.previewSchedule)

			r.Resource("/clients", router.Resource{
				List: a.listClients, Create: a.createClient, Show: a.getClient,
				Update: a.updateClient, Delete: a.deleteClient,
			}, write)
			r.Get("/clients/{id}/contacts", a.listContacts)
			r.With(write).Post("/clients/{id}/contacts", a.createContact)
			r.With(write).Delete("/clients/{id}/contacts/{contactID}", a.deleteContact)
			r.Resource("/candidates", router.Resource{
				List: a.listCandidates, Create: a.createCandidate, Show: a.getCandidate,
				Update: a.updateCandidate, Delete: a.deleteCandidate,
			}, write)
			r.Get("/candidates/{id}/placements", a.candidatePlacements)
			r.Get("/bench", a.bench)
			r.Resource("/projects", router.Resource{
				List: a.listProjects, Create: a.createProject, Show: a.getProject,
				Update: a.updateProject, Delete: a.deleteProject,
			}, write)
			r.Get("/projects/{id}/schedule", a.projectSchedule)
			r.Get("/projects/{id}/matches", a.projectMatches)
			r.Get("/projects/{id}/placements", a.projectPlacements)
			r.With(write).Post("/projects/{id}/placements", a.createPlacement)
			r.With(write).Post("/placements/{id}/end", a.endPlacement)

			r.Get("/forecast", a.forecast)
			r.Get("/forecast/gap", a.forecastGap)
			r.Get("/forecast/upcoming", a.forecastUpcoming)

			r.Get("/advisors", a.listAdvisors)
			r.Group(func(r *router.Router) {
				r.Use(middleware.RequirePermission(auth.PermAdvisor))
				r.Post("/advisors/{name}/chat", a.advisorChat)
				r.Get("/advisors/{name}/sessions/{session}", a.advisorHistory)
				r.Delete("/advisors/{name}/sessions/{session}", a.advisorReset)
			})

			r.Get("/sync/targets", a.syncTargets)
			r.With(middleware.RequirePermission(auth.PermSync)).Post("/sync/{target}", a.enqueueSync)
			r.Get("/jobs/stats", a.jobStats)
			r.Get("/jobs/{id}", a.getJob)

			r.Get("/ws/activity", a.activity)
		})
	})
	return r
}

// decode reads a JSON body, rendering 400 or 415 on failure
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := request.DecodeJSON(w, r, dst); err != nil {
		if errors.Is(err, request.ErrUnsupportedMediaType) {
			response.RenderError(w, http.StatusUnsupportedMediaType, err)
			return false
		}
		response.RenderBadRequest(w, err.Error())
		return false
	}
	return true
}

// renderError maps domain errors to HTTP statuses. Anything unrecognised is
// logged and rendered as a 500.
func (a *API) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *crm.ValidationErrors
	switch {
	case errors.As(err, &ve):
		response.RenderValidationError(w, ve)
	case store.IsNotFound(err), errors.Is(err, jobs.ErrJobNotFound):
		response.RenderNotFound(w, "")
	case store.IsConflict(err):
		response.RenderConflict(w, "A record with the same unique value already exists")
	case errors.Is(err, store.ErrInvalidReference):
		response.NewHTTPError(http.StatusUnprocessableEntity, "A referenced record does not exist").
			WithCode("invalid_reference").Render(w)
	case errors.Is(err, store.ErrConstraint):
		response.NewHTTPError(http.StatusBadRequest, "%s", err.Error()).
			WithCode("constraint_violation").Render(w)
	case errors.Is(err, advisor.ErrUnknownAdvisor), errors.Is(err, syncer.ErrUnknownTarget):
		response.RenderNotFound(w, err.Error())
	case errors.Is(err, advisor.ErrEmptyMessage):
		response.RenderBadRequest(w, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		response.RenderUnauthorized(w, err.Error())
	case errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrPasswordTooLong):
		response.RenderBadRequest(w, err.Error())
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		a.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.Error(err),
		)
		response.RenderInternalError(w)
	}
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(a.deps.Health))
	for name, check := range a.deps.Health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	body := map[string]any{"status": "ok", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	response.JSON(w, status, body)
}

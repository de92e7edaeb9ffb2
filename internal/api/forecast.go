package api

import (
	"net/http"
	"time"

	"github.com/siteworks/recruitops/internal/crm"
	"github.com/siteworks/recruitops/internal/forecast"
	"github.com/siteworks/recruitops/internal/web/response"
	"github.com/siteworks/recruitops/internal/web/router"
)

const maxForecastMonths = 36

// forecastRange reads ?from= and ?months=
func (a *API) forecastRange(w http.ResponseWriter, r *http.Request) (time.Time, int, bool) {
	from, err := router.QueryDate(r, "from", a.now())
	if err != nil {
		response.RenderBadRequest(w, err.Error())
		return time.Time{}, 0, false
	}
	months := router.QueryInt(r, "months", a.opts.ForecastMonths)
	if months < 1 || months > maxForecastMonths {
		response.RenderBadRequest(w, "months must be between 1 and 36")
		return time.Time{}, 0, false
	}
	return from, months, true
}

func (a *API) forecast(w http.ResponseWriter, r *http.Request) {
	from, months, ok := a.forecastRange(w, r)
	if !ok {
		return
	}
	projects, err := a.deps.Projects.ListLive(r.Context())
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	response.OK(w, forecast.Demand(projects, from, months))
}

// forecastGap compares demand with today's bench. ?priorities=true keeps only
// the rows with a shortfall.
func (a *API) forecastGap(w http.ResponseWriter, r *http.Request) {
	from, months, ok := a.forecastRange(w, r)
	if !ok {
		return
	}
	projects, err := a.deps.Projects.ListLive(r.Context())
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	cands, err := a.deps.Candidates.ListActive(r.Context())
	if err != nil {
		a.renderError(w, r, err)
		return
	}

	supply := crm.BenchSummary(crm.Bench(cands, a.now(), a.opts.BenchWindow))
	rows := forecast.Gap(forecast.Demand(projects, from, months), supply)
	if router.QueryBool(r, "priorities", false) {
		rows = forecast.Priorities(rows)
	}
	response.OK(w, map[string]any{"rows": rows, "supply": crm.SortedSupply(supply)})
}

// forecastUpcoming lists hires due to start sourcing within ?days= (default
// the configured horizon)
func (a *API) forecastUpcoming(w http.ResponseWriter, r *http.Request) {
	horizon := a.opts.Horizon
	if days := router.QueryInt(r, "days", 0); days > 0 {
		horizon = time.Duration(days) * 24 * time.Hour
	}
	projects, err := a.deps.Projects.ListLive(r.Context())
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	now := a.now()
	response.OK(w, map[string]any{
		"from":  now,
		"until": now.Add(horizon),
		"hires": forecast.Upcoming(projects, now, horizon),
	})
}

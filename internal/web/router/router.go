// Package router wraps chi with route bookkeeping so the API can list what it
// serves.
package router

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/siteworks/recruitops/internal/web/middleware"
)

// RouteInfo describes one registered route
type RouteInfo struct {
	Method  string   `json:"method"`
	Pattern string   `json:"pattern"`
	Params  []string `json:"params,omitempty"`
}

// Router registers handlers on a chi mux and remembers them
type Router struct {
	mux    chi.Router
	prefix string
	routes *[]RouteInfo
}

// New creates a router with JSON 404 and 405 handlers
func New() *Router {
	mux := chi.NewRouter()
	mux.NotFound(NotFoundHandler)
	mux.MethodNotAllowed(MethodNotAllowedHandler)
	return &Router{mux: mux, routes: &[]RouteInfo{}}
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Use appends middleware. Nil entries are skipped.
func (r *Router) Use(ms ...middleware.Middleware) {
	for _, m := range ms {
		if m != nil {
			r.mux.Use(m)
		}
	}
}

// With returns a sub-router sharing this prefix with extra middleware
func (r *Router) With(ms ...middleware.Middleware) *Router {
	wrapped := make([]func(http.Handler) http.Handler, 0, len(ms))
	for _, m := range ms {
		if m != nil {
			wrapped = append(wrapped, m)
		}
	}
	return &Router{mux: r.mux.With(wrapped...), prefix: r.prefix, routes: r.routes}
}

// Route mounts a sub-router at prefix
func (r *Router) Route(prefix string, fn func(r *Router)) {
	r.mux.Route(prefix, func(sub chi.Router) {
		fn(&Router{mux: sub, prefix: r.prefix + prefix, routes: r.routes})
	})
}

// Group runs fn on an inline sub-router so middleware added there stays local
func (r *Router) Group(fn func(r *Router)) {
	r.mux.Group(func(sub chi.Router) {
		fn(&Router{mux: sub, prefix: r.prefix, routes: r.routes})
	})
}

// Get registers a GET route
func (r *Router) Get(pattern string, h http.HandlerFunc) { r.Method(http.MethodGet, pattern, h) }

// Post registers a POST route
func (r *Router) Post(pattern string, h http.HandlerFunc) { r.Method(http.MethodPost, pattern, h) }

// Put registers a PUT route
func (r *Router) Put(pattern string, h http.HandlerFunc) { r.Method(http.MethodPut, pattern, h) }

// Delete registers a DELETE route
func (r *Router) Delete(pattern string, h http.HandlerFunc) { r.Method(http.MethodDelete, pattern, h) }

// Method registers a route for any method
func (r *Router) Method(method, pattern string, h http.Handler) {
	r.mux.Method(method, pattern, h)
	full := r.prefix + pattern
	if pattern == "/" && r.prefix != "" {
		full = r.prefix
	}
	*r.routes = append(*r.routes, RouteInfo{Method: method, Pattern: full, Params: pathParams(full)})
}

// Mount attaches a handler under pattern. Mounted routes are not listed.
func (r *Router) Mount(pattern string, h http.Handler) {
	r.mux.Mount(pattern, h)
}

// Resource holds the CRUD handlers of a REST collection. Nil handlers are
// not registered.
type Resource struct {
	List   http.HandlerFunc
	Create http.HandlerFunc
	Show   http.HandlerFunc
	Update http.HandlerFunc
	Delete http.HandlerFunc
}

// Resource registers pattern (list, create) and pattern/{id} (show, update,
// delete). Writes can be guarded separately from reads with write.
func (r *Router) Resource(pattern string, res Resource, write ...middleware.Middleware) {
	w := r.With(write...)
	if res.List != nil {
		r.Get(pattern, res.List)
	}
	if res.Create != nil {
		w.Post(pattern, res.Create)
	}
	if res.Show != nil {
		r.Get(pattern+"/{id}", res.Show)
	}
	if res.Update != nil {
		w.Put(pattern+"/{id}", res.Update)
	}
	if res.Delete != nil {
		w.Delete(pattern+"/{id}", res.Delete)
	}
}

// Routes returns every registered route ordered by pattern then method
func (r *Router) Routes() []RouteInfo {
	out := make([]RouteInfo, len(*r.routes))
	copy(out, *r.routes)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// RouteList renders Routes as aligned text
func (r *Router) RouteList() string {
	var b strings.Builder
	for _, ri := range r.Routes() {
		fmt.Fprintf(&b, "%-7s %s\n", ri.Method, ri.Pattern)
	}
	return b.String()
}

func pathParams(pattern string) []string {
	var params []string
	for _, part := range strings.Split(pattern, "/") {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name, _, _ := strings.Cut(strings.Trim(part, "{}"), ":")
			params = append(params, name)
		}
	}
	return params
}

package router

import (
	"net/http"

	"github.com/siteworks/recruitops/internal/web/response"
)

// NotFoundHandler renders unknown paths as JSON
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	response.RenderNotFound(w, "No route for "+r.Method+" "+r.URL.Path)
}

// MethodNotAllowedHandler renders a JSON 405
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	response.RenderError(w, http.StatusMethodNotAllowed,
		response.NewHTTPError(http.StatusMethodNotAllowed, "Method %s not allowed on %s", r.Method, r.URL.Path))
}

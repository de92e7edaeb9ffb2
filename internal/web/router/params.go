package router

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/siteworks/recruitops/internal/store"
)

// DateLayout is the layout for date query parameters
const DateLayout = "2006-01-02"

// PathUUID parses a UUID path parameter
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	value := chi.URLParam(r, name)
	if value == "" {
		return uuid.Nil, fmt.Errorf("missing path parameter %s", name)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q", name, value)
	}
	return id, nil
}

// PathParam returns a raw path parameter
func PathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// QueryInt reads an integer query parameter, falling back to def when absent
// or malformed
func QueryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// QueryBool reads a boolean query parameter
func QueryBool(r *http.Request, name string, def bool) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// QueryDate reads a YYYY-MM-DD query parameter. Absent returns def.
func QueryDate(r *http.Request, name string, def time.Time) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a date like 2025-03-10", name)
	}
	return t, nil
}

// ListOptions reads limit, offset (or page) and sort. A leading "-" on sort
// means descending.
func ListOptions(r *http.Request) store.ListOptions {
	limit := QueryInt(r, "limit", 0)
	offset := QueryInt(r, "offset", 0)
	if page := QueryInt(r, "page", 0); page > 1 && limit > 0 && offset == 0 {
		offset = (page - 1) * limit
	}
	sortField := r.URL.Query().Get("sort")
	desc := strings.HasPrefix(sortField, "-")
	return store.ListOptions{
		Limit:  limit,
		Offset: offset,
		Sort:   strings.TrimPrefix(sortField, "-"),
		Desc:   desc,
	}
}

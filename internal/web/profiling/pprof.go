// Package profiling serves the runtime pprof endpoints. Mount it behind
// admin authentication only.
package profiling

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/go-chi/chi/v5"
)

// Handler returns a router with the pprof index, CPU profile, trace and the
// named runtime profiles. Block and mutex sampling are switched on.
func Handler() http.Handler {
	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)

	r := chi.NewRouter()
	r.HandleFunc("/", pprof.Index)
	r.HandleFunc("/cmdline", pprof.Cmdline)
	r.HandleFunc("/profile", pprof.Profile)
	r.HandleFunc("/symbol", pprof.Symbol)
	r.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		r.Handle("/"+name, pprof.Handler(name))
	}
	return r
}

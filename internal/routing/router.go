package routing

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
)

// Router dispatches on exact path and method, with panic recovery per
// handler. Parameterized paths register through the same Handle call. The
// allowlist is the gate: a registration for a route the allowlist does not
// declare is refused and surfaces through Validate.
type Router struct {
	classifier *Classifier
	routes     map[string]map[string]routeEntry
	patterns   []patternEntry
	undeclared []string
}

type routeEntry struct {
	rc      RouteClass
	handler http.Handler
}

type patternEntry struct {
	pattern PathPattern
	methods map[string]routeEntry
}

func NewRouter(classifier *Classifier) *Router {
	return &Router{
		classifier: classifier,
		routes:     make(map[string]map[string]routeEntry),
	}
}

func (r *Router) Handle(rc RouteClass, method string, path string, h http.Handler) {
	if !r.classifier.Declared(method, path) {
		r.undeclared = append(r.undeclared, method+" "+path)
		return
	}

	if p, ok := parsePathPattern(path); ok {
		for i := range r.patterns {
			if r.patterns[i].pattern.raw == path {
				r.patterns[i].methods[method] = routeEntry{rc: rc, handler: recovered(rc, h)}
				return
			}
		}
		r.patterns = append(r.patterns, patternEntry{
			pattern: p,
			methods: map[string]routeEntry{method: {rc: rc, handler: recovered(rc, h)}},
		})
		return
	}

	if r.routes[path] == nil {
		r.routes[path] = make(map[string]routeEntry)
	}
	r.routes[path][method] = routeEntry{rc: rc, handler: recovered(rc, h)}
}

// Validate fails startup when any registration was refused. Catching this at
// boot keeps the allowlist and the served surface from drifting apart.
func (r *Router) Validate() error {
	if len(r.undeclared) == 0 {
		return nil
	}
	return fmt.Errorf("routing: routes not declared in allowlist: %s", strings.Join(r.undeclared, ", "))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	methods, ok := r.routes[req.URL.Path]
	if !ok {
		for _, p := range r.patterns {
			if p.pattern.Match(req.URL.Path) {
				methods = p.methods
				ok = true
				break
			}
		}
	}
	if !ok {
		WriteError(w, req, r.classifier.Classify(req.URL.Path), http.StatusNotFound, "not_found", "not found")
		return
	}
	entry, found := methods[req.Method]
	if !found {
		WriteError(w, req, entrypointClass(methods, r.classifier.Classify(req.URL.Path)), http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	entry.handler.ServeHTTP(w, req)
}

func entrypointClass(methods map[string]routeEntry, fallback RouteClass) RouteClass {
	for _, e := range methods {
		return e.rc
	}
	return fallback
}

func recovered(rc RouteClass, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				_ = debug.Stack()
				WriteError(w, req, rc, http.StatusInternalServerError, "internal_error", "internal error")
			}
		}()
		h.ServeHTTP(w, req)
	})
}

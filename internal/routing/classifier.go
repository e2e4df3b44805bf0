package routing

import (
	"errors"
	"strings"
)

type RouteClass string

const (
	RouteClassPublicAPI   RouteClass = "public_api"
	RouteClassInternalAPI RouteClass = "internal_api"
	RouteClassWebhook     RouteClass = "webhook"
	RouteClassOps         RouteClass = "ops"
	RouteClassUnknown     RouteClass = "unknown"
)

// Classifier maps request paths to route classes and answers whether a
// (method, path) pair is declared. The allowlist pins the classes for
// declared routes; unmatched paths classify by prefix convention for error
// responses only.
type Classifier struct {
	entrypoint        string
	allowExact        map[string]declaredRoute
	allowPathPatterns []pathPatternRoute
}

type declaredRoute struct {
	rc      RouteClass
	methods map[string]bool
}

type pathPatternRoute struct {
	pattern PathPattern
	rc      RouteClass
	methods map[string]bool
}

func NewClassifier(a Allowlist, entrypoint string) (*Classifier, error) {
	ep, ok := a.Entrypoints[entrypoint]
	if !ok {
		return nil, errors.New("allowlist: missing entrypoint")
	}
	if len(ep.Routes) == 0 {
		return nil, errors.New("allowlist: entrypoint routes empty")
	}

	exact := make(map[string]declaredRoute, len(ep.Routes))
	var patterns []pathPatternRoute
	for _, r := range ep.Routes {
		if r.Path == "" || r.RouteClass == "" || len(r.Methods) == 0 {
			return nil, errors.New("allowlist: invalid route")
		}
		methods := make(map[string]bool, len(r.Methods))
		for _, m := range r.Methods {
			methods[strings.ToUpper(m)] = true
		}
		if p, ok := parsePathPattern(r.Path); ok {
			patterns = append(patterns, pathPatternRoute{pattern: p, rc: RouteClass(r.RouteClass), methods: methods})
			continue
		}
		exact[r.Path] = declaredRoute{rc: RouteClass(r.RouteClass), methods: methods}
	}
	return &Classifier{entrypoint: entrypoint, allowExact: exact, allowPathPatterns: patterns}, nil
}

func (c *Classifier) Classify(path string) RouteClass {
	if route, ok := c.allowExact[path]; ok {
		return route.rc
	}
	for _, p := range c.allowPathPatterns {
		if p.pattern.Match(path) {
			return p.rc
		}
	}

	switch {
	case hasPrefixSegment(path, "/api"):
		return RouteClassPublicAPI
	case hasPrefixSegment(path, "/internal/api"):
		return RouteClassInternalAPI
	case hasPrefixSegment(path, "/webhooks"):
		return RouteClassWebhook
	case path == "/healthz" || path == "/readyz":
		return RouteClassOps
	default:
		return RouteClassUnknown
	}
}

// Declared reports whether the allowlist names this method and path.
func (c *Classifier) Declared(method string, path string) bool {
	if route, ok := c.allowExact[path]; ok {
		return route.methods[method]
	}
	for _, p := range c.allowPathPatterns {
		if p.pattern.raw == path || p.pattern.Match(path) {
			return p.methods[method]
		}
	}
	return false
}

func hasPrefixSegment(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

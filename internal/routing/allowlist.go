package routing

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

type Allowlist struct {
	Version     int                   `yaml:"version"`
	Entrypoints map[string]Entrypoint `yaml:"entrypoints"`
}

type Entrypoint struct {
	Routes []Route `yaml:"routes"`
}

type Route struct {
	Path       string   `yaml:"path"`
	Methods    []string `yaml:"methods"`
	RouteClass string   `yaml:"route_class"`
}

func ParseAllowlistYAML(b []byte) (Allowlist, error) {
	var a Allowlist
	if err := yaml.Unmarshal(b, &a); err != nil {
		return Allowlist{}, err
	}
	if a.Version != 1 {
		return Allowlist{}, errors.New("allowlist: unsupported version")
	}
	if a.Entrypoints == nil {
		return Allowlist{}, errors.New("allowlist: missing entrypoints")
	}
	return a, nil
}

func LoadAllowlist(path string) (Allowlist, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Allowlist{}, err
	}
	return ParseAllowlistYAML(b)
}

// DefaultAllowlist declares the served route surface. The router refuses to
// register anything outside it; unmatched request paths still classify by
// prefix convention for error responses.
const DefaultAllowlist = `version: 1
entrypoints:
  server:
    routes:
      - path: /healthz
        methods: [GET]
        route_class: ops
      - path: /api/entities
        methods: [POST]
        route_class: public_api
      - path: /api/suites/generate
        methods: [POST]
        route_class: public_api
      - path: /api/suites/{entityID}/current
        methods: [GET]
        route_class: public_api
      - path: /api/applicability/{entityID}
        methods: [GET]
        route_class: public_api
      - path: /api/applicability/entries/{entryID}/request-approval
        methods: [POST]
        route_class: public_api
      - path: /api/applicability/entries/{entryID}/approve
        methods: [POST]
        route_class: public_api
      - path: /api/applicability/entries/{entryID}/reject
        methods: [POST]
        route_class: public_api
      - path: /api/catalog/controls
        methods: [GET, POST]
        route_class: public_api
      - path: /api/catalog/controls/{code}
        methods: [GET]
        route_class: public_api
`

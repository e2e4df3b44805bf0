package server

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/doganlap/shahin-grc/internal/routing"
	applicabilityservices "github.com/doganlap/shahin-grc/modules/applicability/services"
	catalogservices "github.com/doganlap/shahin-grc/modules/catalog/services"
	orgservices "github.com/doganlap/shahin-grc/modules/orgentity/services"
	suiteservices "github.com/doganlap/shahin-grc/modules/suite/services"
)

// Deps carries the module services the HTTP layer fronts.
type Deps struct {
	Catalog  catalogservices.CatalogService
	Entities orgservices.EntityRegistry
	Suites   suiteservices.SuiteGenerator
	Ledger   applicabilityservices.LedgerService
	Log      zerolog.Logger

	// Allowlist overrides the built-in route allowlist when set.
	Allowlist []byte
}

type handler struct {
	deps Deps
}

// NewMux wires the route surface onto the classifying router. Tenant
// scoping applies to every /api route; /healthz stays open.
func NewMux(deps Deps) (http.Handler, error) {
	raw := []byte(routing.DefaultAllowlist)
	if len(deps.Allowlist) > 0 {
		raw = deps.Allowlist
	}
	allowlist, err := routing.ParseAllowlistYAML(raw)
	if err != nil {
		return nil, err
	}
	classifier, err := routing.NewClassifier(allowlist, "server")
	if err != nil {
		return nil, err
	}

	h := &handler{deps: deps}
	router := routing.NewRouter(classifier)

	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz",
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		}))

	api := func(fn http.HandlerFunc) http.Handler { return requireTenant(fn) }
	router.Handle(routing.RouteClassPublicAPI, http.MethodPost, "/api/entities", api(h.registerEntity))
	router.Handle(routing.RouteClassPublicAPI, http.MethodPost, "/api/suites/generate", api(h.generateSuite))
	router.Handle(routing.RouteClassPublicAPI, http.MethodGet, "/api/suites/{entityID}/current", api(h.currentSuite))
	router.Handle(routing.RouteClassPublicAPI, http.MethodGet, "/api/applicability/{entityID}", api(h.listLedger))
	router.Handle(routing.RouteClassPublicAPI, http.MethodPost, "/api/applicability/entries/{entryID}/request-approval", api(h.requestApprovalEntry))
	router.Handle(routing.RouteClassPublicAPI, http.MethodPost, "/api/applicability/entries/{entryID}/approve", api(h.approveEntry))
	router.Handle(routing.RouteClassPublicAPI, http.MethodPost, "/api/applicability/entries/{entryID}/reject", api(h.rejectEntry))
	router.Handle(routing.RouteClassPublicAPI, http.MethodGet, "/api/catalog/controls", api(h.listControls))
	router.Handle(routing.RouteClassPublicAPI, http.MethodPost, "/api/catalog/controls", api(h.publishControl))
	router.Handle(routing.RouteClassPublicAPI, http.MethodGet, "/api/catalog/controls/{code}", api(h.getControl))

	if err := router.Validate(); err != nil {
		return nil, err
	}
	return requestLogged(deps.Log, router), nil
}

func requestLogged(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next.ServeHTTP(w, r)
	})
}

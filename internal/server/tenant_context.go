package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/doganlap/shahin-grc/internal/routing"
)

type tenantCtxKey struct{}

func withTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, tenantID)
}

func currentTenant(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tenantCtxKey{}).(string)
	return t, ok
}

// requireTenant pulls the tenant from the X-Tenant-ID header. Every API
// route is tenant-scoped; a request without a valid tenant never reaches a
// handler.
func requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
		if raw == "" {
			routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "tenant_required", "X-Tenant-ID header is required")
			return
		}
		if _, err := uuid.Parse(raw); err != nil {
			routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "tenant_invalid", "X-Tenant-ID must be a UUID")
			return
		}
		next.ServeHTTP(w, r.WithContext(withTenant(r.Context(), raw)))
	})
}

func actorRole(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Actor-Role"))
}

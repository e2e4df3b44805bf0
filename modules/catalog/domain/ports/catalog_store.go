package ports

import (
	"context"

	"github.com/doganlap/shahin-grc/modules/catalog/domain/types"
)

type CatalogStore interface {
	// FindControl returns the control version for code. version<=0 means the
	// latest active version.
	FindControl(ctx context.Context, tenantID string, code string, version int) (types.Control, error)
	ListActiveControls(ctx context.Context, tenantID string, objectiveCode string) ([]types.Control, error)
	FindObjective(ctx context.Context, tenantID string, code string) (types.Objective, error)
	InsertObjective(ctx context.Context, tenantID string, objective types.Objective) error
	InsertControlVersion(ctx context.Context, tenantID string, control types.Control) error
	DeactivatePriorVersions(ctx context.Context, tenantID string, code string, keepVersion int) error
}

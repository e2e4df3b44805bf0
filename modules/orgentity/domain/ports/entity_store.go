package ports

import (
	"context"

	"github.com/doganlap/shahin-grc/modules/orgentity/domain/types"
)

type EntityStore interface {
	FindEntity(ctx context.Context, tenantID string, entityID string) (types.Entity, error)
	UpsertEntity(ctx context.Context, tenantID string, entity types.Entity) error
}

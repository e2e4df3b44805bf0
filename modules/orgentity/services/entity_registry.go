package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/doganlap/shahin-grc/modules/orgentity/domain/ports"
	"github.com/doganlap/shahin-grc/modules/orgentity/domain/types"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
	"github.com/doganlap/shahin-grc/pkg/ids"
)

// EntityRegistry is the write path for org entities. Every write runs the
// parent validation, so a cycle can never reach the store.
type EntityRegistry interface {
	Register(ctx context.Context, tenantID string, entity types.Entity) (types.Entity, error)
}

type entityRegistry struct {
	entities ports.EntityStore
	resolver HierarchyResolver
}

func NewEntityRegistry(entities ports.EntityStore, resolver HierarchyResolver) EntityRegistry {
	return &entityRegistry{entities: entities, resolver: resolver}
}

func (r *entityRegistry) Register(ctx context.Context, tenantID string, entity types.Entity) (types.Entity, error) {
	entity.Code = strings.TrimSpace(entity.Code)
	if entity.Code == "" {
		return types.Entity{}, grcerr.NewValidation("code", "entity code is required")
	}
	if strings.TrimSpace(entity.Name) == "" {
		return types.Entity{}, grcerr.NewValidation("name", "entity name is required")
	}
	switch entity.Type {
	case types.EntityTypeLegalEntity, types.EntityTypeBusinessUnit, types.EntityTypeSystem:
	default:
		return types.Entity{}, grcerr.NewValidation("entity_type", fmt.Sprintf("unknown entity type %q", entity.Type))
	}

	if entity.ID == "" {
		id, err := ids.NewString()
		if err != nil {
			return types.Entity{}, err
		}
		entity.ID = id
	}

	if err := r.resolver.ValidateParent(ctx, tenantID, entity.ID, entity.ParentID); err != nil {
		return types.Entity{}, err
	}

	if err := r.entities.UpsertEntity(ctx, tenantID, entity); err != nil {
		return types.Entity{}, err
	}
	return entity, nil
}

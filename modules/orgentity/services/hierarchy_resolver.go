package services

import (
	"context"
	"sort"
	"strings"

	"github.com/doganlap/shahin-grc/modules/orgentity/domain/ports"
	"github.com/doganlap/shahin-grc/modules/orgentity/domain/types"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
)

// maxDepth caps the parent walk. Real hierarchies are a handful of levels;
// anything deeper than this is a data problem.
const maxDepth = 32

// HierarchyResolver folds parent profiles into an entity's effective
// profile. A child's non-empty field always beats the parent's; inheritance
// stops at the first ancestor the child opts out of.
type HierarchyResolver interface {
	Resolve(ctx context.Context, tenantID string, entityID string) (types.ResolvedEntity, error)
	// ValidateParent rejects a reparenting that would close a cycle.
	ValidateParent(ctx context.Context, tenantID string, entityID string, newParentID string) error
}

type hierarchyResolver struct {
	entities ports.EntityStore
}

func NewHierarchyResolver(entities ports.EntityStore) HierarchyResolver {
	return &hierarchyResolver{entities: entities}
}

func (r *hierarchyResolver) Resolve(ctx context.Context, tenantID string, entityID string) (types.ResolvedEntity, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return types.ResolvedEntity{}, grcerr.NewValidation("entity_id", "entity id is required")
	}

	entity, err := r.entities.FindEntity(ctx, tenantID, entityID)
	if err != nil {
		return types.ResolvedEntity{}, err
	}

	resolved := types.ResolvedEntity{
		Entity:           entity,
		EffectiveProfile: entity.Profile,
		Lineage:          []string{entity.ID},
	}
	overlayCodes := map[string]bool{}
	for _, code := range entity.AppliedOverlayCodes {
		overlayCodes[code] = true
	}

	visited := map[string]bool{entity.ID: true}
	current := entity
	for depth := 0; current.InheritsFromParent && current.ParentID != ""; depth++ {
		if depth >= maxDepth {
			return types.ResolvedEntity{}, grcerr.NewCycleDetected(current.ID)
		}
		if visited[current.ParentID] {
			return types.ResolvedEntity{}, grcerr.NewCycleDetected(current.ParentID)
		}
		visited[current.ParentID] = true

		parent, err := r.entities.FindEntity(ctx, tenantID, current.ParentID)
		if err != nil {
			return types.ResolvedEntity{}, err
		}
		resolved.Lineage = append(resolved.Lineage, parent.ID)
		resolved.EffectiveProfile = mergeProfile(resolved.EffectiveProfile, parent.Profile)
		for _, code := range parent.AppliedOverlayCodes {
			overlayCodes[code] = true
		}
		current = parent
	}

	resolved.OverlayCodes = sortedKeys(overlayCodes)
	return resolved, nil
}

func (r *hierarchyResolver) ValidateParent(ctx context.Context, tenantID string, entityID string, newParentID string) error {
	if newParentID == "" {
		return nil
	}
	if newParentID == entityID {
		return grcerr.NewCycleDetected(entityID)
	}

	visited := map[string]bool{entityID: true}
	current := newParentID
	for depth := 0; current != ""; depth++ {
		if depth >= maxDepth || visited[current] {
			return grcerr.NewCycleDetected(current)
		}
		visited[current] = true

		ancestor, err := r.entities.FindEntity(ctx, tenantID, current)
		if err != nil {
			if grcerr.IsNotFound(err) {
				return grcerr.NewValidation("parent_id", "parent entity does not exist")
			}
			return err
		}
		current = ancestor.ParentID
	}
	return nil
}

// mergeProfile fills only the child's empty fields from the parent.
func mergeProfile(child types.Profile, parent types.Profile) types.Profile {
	if len(child.Jurisdictions) == 0 {
		child.Jurisdictions = parent.Jurisdictions
	}
	if len(child.Sectors) == 0 {
		child.Sectors = parent.Sectors
	}
	if len(child.DataTypes) == 0 {
		child.DataTypes = parent.DataTypes
	}
	if child.HostingModel == "" {
		child.HostingModel = parent.HostingModel
	}
	if child.CriticalityTier == "" {
		child.CriticalityTier = parent.CriticalityTier
	}
	return child
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// OverlayTags lists the profile values overlays can bind to.
func OverlayTags(profile types.Profile) []string {
	var tags []string
	tags = append(tags, profile.Jurisdictions...)
	tags = append(tags, profile.Sectors...)
	tags = append(tags, profile.DataTypes...)
	if profile.HostingModel != "" {
		tags = append(tags, profile.HostingModel)
	}
	if profile.CriticalityTier != "" {
		tags = append(tags, "tier:"+profile.CriticalityTier)
	}
	sort.Strings(tags)
	return tags
}

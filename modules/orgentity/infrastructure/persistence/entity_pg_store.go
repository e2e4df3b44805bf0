package persistence

import (
	"context"
	"errors"

	"github.com/doganlap/shahin-grc/modules/orgentity/domain/ports"
	"github.com/doganlap/shahin-grc/modules/orgentity/domain/types"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
	"github.com/jackc/pgx/v5"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type EntityPGStore struct {
	pool pgBeginner
}

func NewEntityPGStore(pool pgBeginner) ports.EntityStore {
	return &EntityPGStore{pool: pool}
}

func (s *EntityPGStore) FindEntity(ctx context.Context, tenantID string, entityID string) (types.Entity, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Entity{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return types.Entity{}, err
	}

	var e types.Entity
	err = tx.QueryRow(ctx, `
	SELECT entity_id::text, code, name, entity_type, COALESCE(parent_id::text, ''),
	       COALESCE(jurisdictions, '{}'), COALESCE(sectors, '{}'), COALESCE(data_types, '{}'),
	       COALESCE(hosting_model, ''), COALESCE(criticality_tier, ''),
	       inherits_from_parent, COALESCE(applied_overlay_codes, '{}'),
	       COALESCE(baseline_code, ''), COALESCE(current_suite_id::text, ''), current_suite_version,
	       active
	FROM grc.org_entities
	WHERE tenant_id = $1::uuid AND entity_id = $2::uuid
	`, tenantID, entityID).Scan(
		&e.ID, &e.Code, &e.Name, &e.Type, &e.ParentID,
		&e.Profile.Jurisdictions, &e.Profile.Sectors, &e.Profile.DataTypes,
		&e.Profile.HostingModel, &e.Profile.CriticalityTier,
		&e.InheritsFromParent, &e.AppliedOverlayCodes,
		&e.BaselineCode, &e.CurrentSuiteID, &e.CurrentSuiteVersion,
		&e.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Entity{}, grcerr.NewNotFound("entity", entityID)
		}
		return types.Entity{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Entity{}, err
	}
	return e, nil
}

func (s *EntityPGStore) UpsertEntity(ctx context.Context, tenantID string, entity types.Entity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
	INSERT INTO grc.org_entities (
	  entity_id, tenant_id, code, name, entity_type, parent_id,
	  jurisdictions, sectors, data_types, hosting_model, criticality_tier,
	  inherits_from_parent, applied_overlay_codes, baseline_code, active
	) VALUES (
	  $1::uuid, $2::uuid, $3, $4, $5, NULLIF($6, '')::uuid,
	  $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''),
	  $12, $13, NULLIF($14, ''), $15
	)
	ON CONFLICT (entity_id) DO UPDATE SET
	  code = EXCLUDED.code,
	  name = EXCLUDED.name,
	  entity_type = EXCLUDED.entity_type,
	  parent_id = EXCLUDED.parent_id,
	  jurisdictions = EXCLUDED.jurisdictions,
	  sectors = EXCLUDED.sectors,
	  data_types = EXCLUDED.data_types,
	  hosting_model = EXCLUDED.hosting_model,
	  criticality_tier = EXCLUDED.criticality_tier,
	  inherits_from_parent = EXCLUDED.inherits_from_parent,
	  applied_overlay_codes = EXCLUDED.applied_overlay_codes,
	  baseline_code = EXCLUDED.baseline_code,
	  active = EXCLUDED.active
	`, entity.ID, tenantID, entity.Code, entity.Name, entity.Type, entity.ParentID,
		entity.Profile.Jurisdictions, entity.Profile.Sectors, entity.Profile.DataTypes,
		entity.Profile.HostingModel, entity.Profile.CriticalityTier,
		entity.InheritsFromParent, entity.AppliedOverlayCodes, entity.BaselineCode, entity.Active); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

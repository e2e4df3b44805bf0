package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/doganlap/shahin-grc/modules/overlay/domain/ports"
	"github.com/doganlap/shahin-grc/modules/overlay/domain/types"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
	"github.com/jackc/pgx/v5"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type OverlayPGStore struct {
	pool pgBeginner
}

func NewOverlayPGStore(pool pgBeginner) ports.OverlayStore {
	return &OverlayPGStore{pool: pool}
}

func (s *OverlayPGStore) FindOverlay(ctx context.Context, tenantID string, code string) (types.Overlay, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Overlay{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return types.Overlay{}, err
	}

	overlay, err := scanOverlay(tx.QueryRow(ctx, `
	SELECT overlay_id::text, code, name, overlay_type, applies_to, priority, version,
	       effective_date::text, created_at, active
	FROM grc.overlays
	WHERE tenant_id = $1::uuid AND code = $2
	ORDER BY version DESC
	LIMIT 1
	`, tenantID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Overlay{}, grcerr.NewNotFound("overlay", code)
		}
		return types.Overlay{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Overlay{}, err
	}
	return overlay, nil
}

func (s *OverlayPGStore) ListBundlesForTags(ctx context.Context, tenantID string, tags []string) ([]types.OverlayBundle, error) {
	return s.listBundles(ctx, tenantID, "applies_to", tags)
}

func (s *OverlayPGStore) ListBundlesByCodes(ctx context.Context, tenantID string, codes []string) ([]types.OverlayBundle, error) {
	return s.listBundles(ctx, tenantID, "code", codes)
}

func (s *OverlayPGStore) listBundles(ctx context.Context, tenantID string, matchColumn string, values []string) ([]types.OverlayBundle, error) {
	if len(values) == 0 {
		return nil, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
	SELECT overlay_id::text, code, name, overlay_type, applies_to, priority, version,
	       effective_date::text, created_at, active
	FROM grc.overlays
	WHERE tenant_id = $1::uuid AND active AND `+matchColumn+` = ANY($2)
	ORDER BY priority ASC, created_at ASC, code ASC
	`, tenantID, values)
	if err != nil {
		return nil, err
	}

	var bundles []types.OverlayBundle
	for rows.Next() {
		overlay, err := scanOverlay(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		bundles = append(bundles, types.OverlayBundle{Overlay: overlay})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range bundles {
		if bundles[i].Mappings, err = listMappings(ctx, tx, tenantID, bundles[i].Overlay.ID); err != nil {
			return nil, err
		}
		if bundles[i].ParamOverrides, err = listParamOverrides(ctx, tx, tenantID, bundles[i].Overlay.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return bundles, nil
}

func scanOverlay(row pgx.Row) (types.Overlay, error) {
	var o types.Overlay
	err := row.Scan(&o.ID, &o.Code, &o.Name, &o.Type, &o.AppliesTo, &o.Priority, &o.Version,
		&o.EffectiveDate, &o.CreatedAt, &o.Active)
	return o, err
}

func listMappings(ctx context.Context, tx pgx.Tx, tenantID string, overlayID string) ([]types.ControlMapping, error) {
	rows, err := tx.Query(ctx, `
	SELECT control_code, action, mandatory, overrides_mandatory,
	       COALESCE(params, '{}'::jsonb), COALESCE(owner_role_code, ''), COALESCE(reason, ''), display_order
	FROM grc.overlay_mappings
	WHERE tenant_id = $1::uuid AND overlay_id = $2::uuid
	ORDER BY display_order ASC, control_code ASC
	`, tenantID, overlayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ControlMapping
	for rows.Next() {
		var m types.ControlMapping
		var rawParams []byte
		if err := rows.Scan(&m.ControlCode, &m.Action, &m.Mandatory, &m.OverridesMandatory,
			&rawParams, &m.OwnerRoleCode, &m.Reason, &m.DisplayOrder); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawParams, &m.Params); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func listParamOverrides(ctx context.Context, tx pgx.Tx, tenantID string, overlayID string) ([]types.ParameterOverride, error) {
	rows, err := tx.Query(ctx, `
	SELECT COALESCE(control_code, ''), param_name, param_value, COALESCE(original_value, '')
	FROM grc.overlay_param_overrides
	WHERE tenant_id = $1::uuid AND overlay_id = $2::uuid
	ORDER BY param_name ASC, control_code ASC
	`, tenantID, overlayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ParameterOverride
	for rows.Next() {
		var p types.ParameterOverride
		if err := rows.Scan(&p.ControlCode, &p.Name, &p.Value, &p.OriginalValue); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

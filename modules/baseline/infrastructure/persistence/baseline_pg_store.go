package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/doganlap/shahin-grc/modules/baseline/domain/ports"
	"github.com/doganlap/shahin-grc/modules/baseline/domain/types"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
	"github.com/jackc/pgx/v5"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type BaselinePGStore struct {
	pool pgBeginner
}

func NewBaselinePGStore(pool pgBeginner) ports.BaselineStore {
	return &BaselinePGStore{pool: pool}
}

func (s *BaselinePGStore) FindBaseline(ctx context.Context, tenantID string, code string) (types.BaselineSet, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.BaselineSet{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return types.BaselineSet{}, err
	}

	var set types.BaselineSet
	err = tx.QueryRow(ctx, `
	SELECT code, name, baseline_type, version, effective_date::text, active
	FROM grc.baseline_sets
	WHERE tenant_id = $1::uuid AND code = $2
	ORDER BY version DESC
	LIMIT 1
	`, tenantID, code).Scan(&set.Code, &set.Name, &set.Type, &set.Version, &set.EffectiveDate, &set.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.BaselineSet{}, grcerr.NewNotFound("baseline", code)
		}
		return types.BaselineSet{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.BaselineSet{}, err
	}
	return set, nil
}

func (s *BaselinePGStore) ListItems(ctx context.Context, tenantID string, baselineCode string) ([]types.BaselineItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
	SELECT control_code, mandatory, COALESCE(default_params, '{}'::jsonb), COALESCE(owner_role_code, ''), display_order
	FROM grc.baseline_items
	WHERE tenant_id = $1::uuid AND baseline_code = $2
	ORDER BY display_order ASC, control_code ASC
	`, tenantID, baselineCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.BaselineItem
	for rows.Next() {
		var item types.BaselineItem
		var rawParams []byte
		if err := rows.Scan(&item.ControlCode, &item.Mandatory, &rawParams, &item.OwnerRoleCode, &item.DisplayOrder); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawParams, &item.DefaultParams); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

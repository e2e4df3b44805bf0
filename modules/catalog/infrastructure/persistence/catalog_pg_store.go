package persistence

import (
	"context"
	"errors"

	"github.com/doganlap/shahin-grc/modules/catalog/domain/ports"
	"github.com/doganlap/shahin-grc/modules/catalog/domain/types"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
	"github.com/jackc/pgx/v5"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type CatalogPGStore struct {
	pool pgBeginner
}

func NewCatalogPGStore(pool pgBeginner) ports.CatalogStore {
	return &CatalogPGStore{pool: pool}
}

func (s *CatalogPGStore) FindControl(ctx context.Context, tenantID string, code string, version int) (types.Control, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Control{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return types.Control{}, err
	}

	query := `
	SELECT code, objective_code, name, statement, control_type, nature, frequency,
	       risk_rating, version, effective_date::text, COALESCE(sunset_date::text, ''),
	       active, COALESCE(default_condition, '')
	FROM grc.controls
	WHERE tenant_id = $1::uuid AND code = $2 AND active
	ORDER BY version DESC
	LIMIT 1
	`
	args := []any{tenantID, code}
	if version > 0 {
		query = `
	SELECT code, objective_code, name, statement, control_type, nature, frequency,
	       risk_rating, version, effective_date::text, COALESCE(sunset_date::text, ''),
	       active, COALESCE(default_condition, '')
	FROM grc.controls
	WHERE tenant_id = $1::uuid AND code = $2 AND version = $3
	`
		args = append(args, version)
	}

	var c types.Control
	err = tx.QueryRow(ctx, query, args...).Scan(
		&c.Code, &c.ObjectiveCode, &c.Name, &c.Statement, &c.Type, &c.Nature, &c.Frequency,
		&c.RiskRating, &c.Version, &c.EffectiveDate, &c.SunsetDate, &c.Active, &c.DefaultCondition,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Control{}, grcerr.NewNotFound("control", code)
		}
		return types.Control{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Control{}, err
	}
	return c, nil
}

func (s *CatalogPGStore) ListActiveControls(ctx context.Context, tenantID string, objectiveCode string) ([]types.Control, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
	SELECT code, objective_code, name, statement, control_type, nature, frequency,
	       risk_rating, version, effective_date::text, COALESCE(sunset_date::text, ''),
	       active, COALESCE(default_condition, '')
	FROM grc.controls
	WHERE tenant_id = $1::uuid
	  AND active
	  AND ($2 = '' OR objective_code = $2)
	ORDER BY code ASC
	`, tenantID, objectiveCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Control
	for rows.Next() {
		var c types.Control
		if err := rows.Scan(
			&c.Code, &c.ObjectiveCode, &c.Name, &c.Statement, &c.Type, &c.Nature, &c.Frequency,
			&c.RiskRating, &c.Version, &c.EffectiveDate, &c.SunsetDate, &c.Active, &c.DefaultCondition,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CatalogPGStore) FindObjective(ctx context.Context, tenantID string, code string) (types.Objective, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Objective{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return types.Objective{}, err
	}

	var o types.Objective
	err = tx.QueryRow(ctx, `
	SELECT code, domain_code, statement, active
	FROM grc.objectives
	WHERE tenant_id = $1::uuid AND code = $2
	`, tenantID, code).Scan(&o.Code, &o.DomainCode, &o.Statement, &o.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Objective{}, grcerr.NewNotFound("objective", code)
		}
		return types.Objective{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.Objective{}, err
	}
	return o, nil
}

func (s *CatalogPGStore) InsertControlVersion(ctx context.Context, tenantID string, control types.Control) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
	INSERT INTO grc.controls (
	  tenant_id, code, objective_code, name, statement, control_type, nature,
	  frequency, risk_rating, version, effective_date, sunset_date, active, default_condition
	) VALUES (
	  $1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, '')::date, NULLIF($12, '')::date, $13, NULLIF($14, '')
	)
	`, tenantID, control.Code, control.ObjectiveCode, control.Name, control.Statement,
		control.Type, control.Nature, control.Frequency, control.RiskRating, control.Version,
		control.EffectiveDate, control.SunsetDate, control.Active, control.DefaultCondition); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *CatalogPGStore) InsertObjective(ctx context.Context, tenantID string, objective types.Objective) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
	INSERT INTO grc.objectives (tenant_id, code, domain_code, statement, active)
	VALUES ($1::uuid, $2, $3, $4, $5)
	ON CONFLICT (tenant_id, code) DO UPDATE
	SET domain_code = EXCLUDED.domain_code,
	    statement   = EXCLUDED.statement,
	    active      = EXCLUDED.active
	`, tenantID, objective.Code, objective.DomainCode, objective.Statement, objective.Active); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *CatalogPGStore) DeactivatePriorVersions(ctx context.Context, tenantID string, code string, keepVersion int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
	UPDATE grc.controls
	SET active = false
	WHERE tenant_id = $1::uuid AND code = $2 AND version <> $3
	`, tenantID, code, keepVersion); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

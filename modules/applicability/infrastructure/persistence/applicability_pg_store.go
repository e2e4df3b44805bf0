package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/doganlap/shahin-grc/modules/applicability/domain/ports"
	"github.com/doganlap/shahin-grc/modules/applicability/domain/types"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
	"github.com/jackc/pgx/v5"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type RulePGStore struct {
	pool pgBeginner
}

func NewRulePGStore(pool pgBeginner) ports.RuleStore {
	return &RulePGStore{pool: pool}
}

func (s *RulePGStore) ListActiveRules(ctx context.Context, tenantID string) ([]types.Rule, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
	SELECT rule_id::text, code, name, rule_type, target_attribute, operator,
	       COALESCE(value, ''), COALESCE(values, '{}'), COALESCE(control_code, ''),
	       priority, COALESCE(reason, ''), active
	FROM grc.applicability_rules
	WHERE tenant_id = $1::uuid AND active
	ORDER BY priority ASC, code ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Rule
	for rows.Next() {
		var r types.Rule
		if err := rows.Scan(&r.ID, &r.Code, &r.Name, &r.Type, &r.Attribute, &r.Operator,
			&r.Value, &r.Values, &r.ControlCode, &r.Priority, &r.Reason, &r.Active); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

type LedgerPGStore struct {
	pool pgBeginner
}

func NewLedgerPGStore(pool pgBeginner) ports.LedgerStore {
	return &LedgerPGStore{pool: pool}
}

func (s *LedgerPGStore) InsertEntries(ctx context.Context, tenantID string, entries []types.LedgerEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return err
	}

	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
		INSERT INTO grc.applicability_entries (
		  entry_id, tenant_id, entity_id, suite_version, control_code, status, reason,
		  driving_attribute, driving_value, rule_code, exception_ref, exception_expiry,
		  approval_state, approved_by, approved_at, created_at
		) VALUES (
		  $1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7,
		  NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, '')::date,
		  $13, NULLIF($14, ''), $15, $16
		)
		ON CONFLICT (entry_id) DO UPDATE SET
		  status = EXCLUDED.status,
		  reason = EXCLUDED.reason,
		  driving_attribute = EXCLUDED.driving_attribute,
		  driving_value = EXCLUDED.driving_value,
		  rule_code = EXCLUDED.rule_code,
		  exception_ref = EXCLUDED.exception_ref,
		  exception_expiry = EXCLUDED.exception_expiry,
		  approval_state = EXCLUDED.approval_state,
		  approved_by = EXCLUDED.approved_by,
		  approved_at = EXCLUDED.approved_at
		`, e.ID, tenantID, e.EntityID, e.SuiteVersion, e.ControlCode, e.Status, e.Reason,
			e.DrivingAttribute, e.DrivingValue, e.RuleCode, e.ExceptionRef, e.ExceptionExpiry,
			e.ApprovalState, e.ApprovedBy, nullableTime(e.ApprovedAt), e.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *LedgerPGStore) ListEntries(ctx context.Context, tenantID string, entityID string, controlCode string, limit int) ([]types.LedgerEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
	SELECT entry_id::text, entity_id::text, suite_version, control_code, status, reason,
	       COALESCE(driving_attribute, ''), COALESCE(driving_value, ''), COALESCE(rule_code, ''),
	       COALESCE(exception_ref, ''), COALESCE(exception_expiry::text, ''),
	       approval_state, COALESCE(approved_by, ''), COALESCE(approved_at, 'epoch'::timestamptz), created_at,
	       COALESCE(superseded_by::text, '')
	FROM grc.applicability_entries
	WHERE tenant_id = $1::uuid
	  AND entity_id = $2::uuid
	  AND ($3 = '' OR control_code = $3)
	ORDER BY suite_version DESC, control_code ASC
	LIMIT $4
	`, tenantID, entityID, controlCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *LedgerPGStore) FindEntry(ctx context.Context, tenantID string, entryID string) (types.LedgerEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.LedgerEntry{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return types.LedgerEntry{}, err
	}

	entry, err := scanEntry(tx.QueryRow(ctx, `
	SELECT entry_id::text, entity_id::text, suite_version, control_code, status, reason,
	       COALESCE(driving_attribute, ''), COALESCE(driving_value, ''), COALESCE(rule_code, ''),
	       COALESCE(exception_ref, ''), COALESCE(exception_expiry::text, ''),
	       approval_state, COALESCE(approved_by, ''), COALESCE(approved_at, 'epoch'::timestamptz), created_at,
	       COALESCE(superseded_by::text, '')
	FROM grc.applicability_entries
	WHERE tenant_id = $1::uuid AND entry_id = $2::uuid
	`, tenantID, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.LedgerEntry{}, grcerr.NewNotFound("ledger entry", entryID)
		}
		return types.LedgerEntry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.LedgerEntry{}, err
	}
	return entry, nil
}

func (s *LedgerPGStore) UpdateApproval(ctx context.Context, tenantID string, entryID string, state types.ApprovalState, approvedBy string, approvedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
	UPDATE grc.applicability_entries
	SET approval_state = $3, approved_by = NULLIF($4, ''), approved_at = $5
	WHERE tenant_id = $1::uuid AND entry_id = $2::uuid
	`, tenantID, entryID, state, approvedBy, nullableTime(approvedAt))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return grcerr.NewNotFound("ledger entry", entryID)
	}

	return tx.Commit(ctx)
}

func (s *LedgerPGStore) MarkSuperseded(ctx context.Context, tenantID string, entryID string, supersededBy string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
	UPDATE grc.applicability_entries
	SET superseded_by = $3::uuid
	WHERE tenant_id = $1::uuid AND entry_id = $2::uuid
	`, tenantID, entryID, supersededBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return grcerr.NewNotFound("ledger entry", entryID)
	}

	return tx.Commit(ctx)
}

func scanEntry(row pgx.Row) (types.LedgerEntry, error) {
	var e types.LedgerEntry
	err := row.Scan(&e.ID, &e.EntityID, &e.SuiteVersion, &e.ControlCode, &e.Status, &e.Reason,
		&e.DrivingAttribute, &e.DrivingValue, &e.RuleCode, &e.ExceptionRef, &e.ExceptionExpiry,
		&e.ApprovalState, &e.ApprovedBy, &e.ApprovedAt, &e.CreatedAt, &e.SupersededBy)
	return e, err
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

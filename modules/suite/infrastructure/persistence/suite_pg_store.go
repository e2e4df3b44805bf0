package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/doganlap/shahin-grc/modules/suite/domain/ports"
	"github.com/doganlap/shahin-grc/modules/suite/domain/types"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
	"github.com/doganlap/shahin-grc/pkg/ids"
	"github.com/jackc/pgx/v5"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type SuitePGStore struct {
	pool pgBeginner
}

func NewSuitePGStore(pool pgBeginner) ports.SuiteStore {
	return &SuitePGStore{pool: pool}
}

func (s *SuitePGStore) InsertSuite(ctx context.Context, tenantID string, suite types.GeneratedControlSuite, prevVersion int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return err
	}

	profileJSON, err := json.Marshal(suite.ProfileSnapshot)
	if err != nil {
		return err
	}
	traceJSON, err := json.Marshal(suite.Trace)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
	INSERT INTO grc.generated_suites (
	  suite_id, suite_code, tenant_id, entity_id, version, status, baseline_code, overlay_codes,
	  mandatory_count, optional_count,
	  profile_snapshot, execution_trace, requested_by, generated_at, failure_reason
	) VALUES (
	  $1::uuid, $2, $3::uuid, $4::uuid, $5, $6, $7, $8,
	  $9, $10,
	  $11::jsonb, $12::jsonb, NULLIF($13, ''), $14, NULLIF($15, '')
	)
	ON CONFLICT (suite_id) DO UPDATE SET
	  status = EXCLUDED.status,
	  overlay_codes = EXCLUDED.overlay_codes,
	  mandatory_count = EXCLUDED.mandatory_count,
	  optional_count = EXCLUDED.optional_count,
	  profile_snapshot = EXCLUDED.profile_snapshot,
	  execution_trace = EXCLUDED.execution_trace,
	  requested_by = EXCLUDED.requested_by,
	  generated_at = EXCLUDED.generated_at,
	  failure_reason = EXCLUDED.failure_reason
	`, suite.ID, suite.Code, tenantID, suite.EntityID, suite.Version, suite.Status, suite.BaselineCode,
		suite.OverlayCodes, suite.MandatoryCount, suite.OptionalCount,
		profileJSON, traceJSON, suite.RequestedBy, suite.GeneratedAt, suite.FailureReason); err != nil {
		return err
	}

	for _, entry := range suite.Controls {
		entryID := ids.SuiteRecordID(tenantID, suite.EntityID, suite.Version, "control", entry.ControlCode)
		paramsJSON, err := json.Marshal(entry.Params)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
		INSERT INTO grc.suite_controls (
		  record_id, tenant_id, suite_id, control_code, control_version, mandatory,
		  params, source, source_code, inclusion_reason, owner_role_code, display_order
		) VALUES (
		  $1::uuid, $2::uuid, $3::uuid, $4, $5, $6,
		  $7::jsonb, $8, NULLIF($9, ''), $10, NULLIF($11, ''), $12
		)
		ON CONFLICT (record_id) DO UPDATE SET
		  control_version = EXCLUDED.control_version,
		  mandatory = EXCLUDED.mandatory,
		  params = EXCLUDED.params,
		  source = EXCLUDED.source,
		  source_code = EXCLUDED.source_code,
		  inclusion_reason = EXCLUDED.inclusion_reason,
		  owner_role_code = EXCLUDED.owner_role_code,
		  display_order = EXCLUDED.display_order
		`, entryID, tenantID, suite.ID, entry.ControlCode, entry.ControlVersion, entry.Mandatory,
			paramsJSON, entry.Source, entry.SourceCode, entry.InclusionReason, entry.OwnerRoleCode, entry.DisplayOrder); err != nil {
			return err
		}
	}

	for _, req := range suite.EvidenceRequests {
		recordID := ids.SuiteRecordID(tenantID, suite.EntityID, suite.Version, "evidence", req.ControlCode+":"+req.ItemCode)
		if _, err := tx.Exec(ctx, `
		INSERT INTO grc.suite_evidence_requests (
		  record_id, tenant_id, suite_id, control_code, item_code, item_name,
		  frequency, retention_months, status, due_date
		) VALUES (
		  $1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7, $8, $9, $10::date
		)
		ON CONFLICT (record_id) DO UPDATE SET
		  item_name = EXCLUDED.item_name,
		  frequency = EXCLUDED.frequency,
		  retention_months = EXCLUDED.retention_months,
		  status = EXCLUDED.status,
		  due_date = EXCLUDED.due_date
		`, recordID, tenantID, suite.ID, req.ControlCode, req.ItemCode, req.ItemName,
			req.Frequency, req.RetentionMonths, req.Status, req.DueDate); err != nil {
			return err
		}
	}

	// Pointer CAS rides the same transaction so a run that lost the race
	// rolls back its suite rows instead of rewriting the winner's current
	// suite.
	tag, err := tx.Exec(ctx, `
	UPDATE grc.org_entities
	SET current_suite_id = $3::uuid, current_suite_version = $4
	WHERE tenant_id = $1::uuid AND entity_id = $2::uuid AND current_suite_version = $5
	`, tenantID, suite.EntityID, suite.ID, suite.Version, prevVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return grcerr.NewConcurrentModification(suite.EntityID, prevVersion)
	}

	return tx.Commit(ctx)
}

func (s *SuitePGStore) FindSuiteByVersion(ctx context.Context, tenantID string, entityID string, version int) (types.GeneratedControlSuite, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.GeneratedControlSuite{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return types.GeneratedControlSuite{}, err
	}

	var suite types.GeneratedControlSuite
	var profileJSON, traceJSON []byte
	err = tx.QueryRow(ctx, `
	SELECT suite_id::text, suite_code, entity_id::text, version, status, baseline_code,
	       COALESCE(overlay_codes, '{}'), mandatory_count, optional_count,
	       profile_snapshot, execution_trace,
	       COALESCE(requested_by, ''), generated_at, COALESCE(failure_reason, '')
	FROM grc.generated_suites
	WHERE tenant_id = $1::uuid AND entity_id = $2::uuid AND version = $3
	`, tenantID, entityID, version).Scan(
		&suite.ID, &suite.Code, &suite.EntityID, &suite.Version, &suite.Status, &suite.BaselineCode,
		&suite.OverlayCodes, &suite.MandatoryCount, &suite.OptionalCount,
		&profileJSON, &traceJSON,
		&suite.RequestedBy, &suite.GeneratedAt, &suite.FailureReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.GeneratedControlSuite{}, grcerr.NewNotFound("suite", entityID)
		}
		return types.GeneratedControlSuite{}, err
	}
	if err := json.Unmarshal(profileJSON, &suite.ProfileSnapshot); err != nil {
		return types.GeneratedControlSuite{}, err
	}
	if err := json.Unmarshal(traceJSON, &suite.Trace); err != nil {
		return types.GeneratedControlSuite{}, err
	}

	if suite.Controls, err = s.listControls(ctx, tx, tenantID, suite.ID); err != nil {
		return types.GeneratedControlSuite{}, err
	}
	if suite.EvidenceRequests, err = s.listEvidence(ctx, tx, tenantID, suite.ID); err != nil {
		return types.GeneratedControlSuite{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.GeneratedControlSuite{}, err
	}
	return suite, nil
}

func (s *SuitePGStore) listControls(ctx context.Context, tx pgx.Tx, tenantID string, suiteID string) ([]types.SuiteControlEntry, error) {
	rows, err := tx.Query(ctx, `
	SELECT control_code, control_version, mandatory, COALESCE(params, '{}'::jsonb),
	       source, COALESCE(source_code, ''), inclusion_reason, COALESCE(owner_role_code, ''), display_order
	FROM grc.suite_controls
	WHERE tenant_id = $1::uuid AND suite_id = $2::uuid
	ORDER BY display_order ASC, control_code ASC
	`, tenantID, suiteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.SuiteControlEntry
	for rows.Next() {
		var entry types.SuiteControlEntry
		var paramsJSON []byte
		if err := rows.Scan(&entry.ControlCode, &entry.ControlVersion, &entry.Mandatory, &paramsJSON,
			&entry.Source, &entry.SourceCode, &entry.InclusionReason, &entry.OwnerRoleCode, &entry.DisplayOrder); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(paramsJSON, &entry.Params); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *SuitePGStore) listEvidence(ctx context.Context, tx pgx.Tx, tenantID string, suiteID string) ([]types.SuiteEvidenceRequest, error) {
	rows, err := tx.Query(ctx, `
	SELECT control_code, item_code, item_name, frequency, retention_months, status, due_date::text
	FROM grc.suite_evidence_requests
	WHERE tenant_id = $1::uuid AND suite_id = $2::uuid
	ORDER BY control_code ASC, item_code ASC
	`, tenantID, suiteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.SuiteEvidenceRequest
	for rows.Next() {
		var req types.SuiteEvidenceRequest
		if err := rows.Scan(&req.ControlCode, &req.ItemCode, &req.ItemName, &req.Frequency,
			&req.RetentionMonths, &req.Status, &req.DueDate); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

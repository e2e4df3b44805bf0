package persistence

import (
	"context"

	"github.com/doganlap/shahin-grc/modules/suite/domain/ports"
	"github.com/doganlap/shahin-grc/modules/suite/domain/types"
)

type EvidencePGStore struct {
	pool pgBeginner
}

func NewEvidencePGStore(pool pgBeginner) ports.EvidenceProvider {
	return &EvidencePGStore{pool: pool}
}

func (s *EvidencePGStore) ItemsForControl(ctx context.Context, tenantID string, controlCode string) ([]types.EvidenceItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant', $1, true);`, tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
	SELECT item_code, item_name, frequency, retention_months
	FROM grc.evidence_items
	WHERE tenant_id = $1::uuid AND control_code = $2
	ORDER BY item_code ASC
	`, tenantID, controlCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.EvidenceItem
	for rows.Next() {
		var item types.EvidenceItem
		if err := rows.Scan(&item.Code, &item.Name, &item.Frequency, &item.RetentionMonths); err != nil {
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

package ports

import (
	"context"
	"time"

	"github.com/doganlap/shahin-grc/modules/applicability/domain/types"
)

type RuleStore interface {
	// ListActiveRules returns every active rule for the tenant ordered by
	// (priority, code).
	ListActiveRules(ctx context.Context, tenantID string) ([]types.Rule, error)
}

type LedgerStore interface {
	// InsertEntries appends one generation's entries. Entry IDs are
	// deterministic, so re-running the same generation upserts in place.
	InsertEntries(ctx context.Context, tenantID string, entries []types.LedgerEntry) error
	// ListEntries returns entries for the entity newest suite version first,
	// then by control code. Empty controlCode means all controls.
	ListEntries(ctx context.Context, tenantID string, entityID string, controlCode string, limit int) ([]types.LedgerEntry, error)
	FindEntry(ctx context.Context, tenantID string, entryID string) (types.LedgerEntry, error)
	UpdateApproval(ctx context.Context, tenantID string, entryID string, state types.ApprovalState, approvedBy string, approvedAt time.Time) error
	// MarkSuperseded links a prior entry to its replacement. Entries are
	// never deleted; the chain preserves the audit trail.
	MarkSuperseded(ctx context.Context, tenantID string, entryID string, supersededBy string) error
}

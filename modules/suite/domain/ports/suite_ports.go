package ports

import (
	"context"

	"github.com/doganlap/shahin-grc/modules/suite/domain/types"
)

type SuiteStore interface {
	// InsertSuite persists the suite, its control entries, and its evidence
	// requests, and advances the entity's current-suite pointer, all in one
	// transaction. The pointer move is compare-and-swap on prevVersion; a
	// ConcurrentModification error means another run won the race and none
	// of this run's rows were committed. Record IDs are deterministic per
	// (entity, version), so a retried run overwrites its own rows.
	InsertSuite(ctx context.Context, tenantID string, suite types.GeneratedControlSuite, prevVersion int) error
	FindSuiteByVersion(ctx context.Context, tenantID string, entityID string, version int) (types.GeneratedControlSuite, error)
}

type EvidenceProvider interface {
	// ItemsForControl returns the standard evidence items for a control,
	// ordered by item code. Controls without a pack yield an empty slice.
	ItemsForControl(ctx context.Context, tenantID string, controlCode string) ([]types.EvidenceItem, error)
}

type EventPublisher interface {
	SuiteGenerated(ctx context.Context, event types.SuiteGeneratedEvent)
}

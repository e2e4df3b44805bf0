package ports

import (
	"context"

	"github.com/doganlap/shahin-grc/modules/baseline/domain/types"
)

type BaselineStore interface {
	FindBaseline(ctx context.Context, tenantID string, code string) (types.BaselineSet, error)
	// ListItems returns the baseline's control mappings ordered by
	// (display_order, control_code).
	ListItems(ctx context.Context, tenantID string, baselineCode string) ([]types.BaselineItem, error)
}

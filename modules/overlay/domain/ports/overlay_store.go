package ports

import (
	"context"

	"github.com/doganlap/shahin-grc/modules/overlay/domain/types"
)

type OverlayStore interface {
	// ListBundlesForTags returns the active overlays whose AppliesTo matches
	// any of the given profile tags, with mappings and parameter overrides
	// attached.
	ListBundlesForTags(ctx context.Context, tenantID string, tags []string) ([]types.OverlayBundle, error)
	// ListBundlesByCodes returns the active overlays explicitly pinned on an
	// entity, regardless of profile tags.
	ListBundlesByCodes(ctx context.Context, tenantID string, codes []string) ([]types.OverlayBundle, error)
	FindOverlay(ctx context.Context, tenantID string, code string) (types.Overlay, error)
}

package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/doganlap/shahin-grc/modules/baseline/domain/ports"
	"github.com/doganlap/shahin-grc/modules/baseline/domain/types"
	catalogports "github.com/doganlap/shahin-grc/modules/catalog/domain/ports"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
)

type BaselineComposer interface {
	// Resolve loads the named baseline and pins every item to the latest
	// active catalog version of its control. The result order is stable for
	// identical inputs.
	Resolve(ctx context.Context, tenantID string, baselineCode string) (types.ResolvedBaseline, error)
}

type baselineComposer struct {
	baselines ports.BaselineStore
	catalog   catalogports.CatalogStore
}

func NewBaselineComposer(baselines ports.BaselineStore, catalog catalogports.CatalogStore) BaselineComposer {
	return &baselineComposer{baselines: baselines, catalog: catalog}
}

func (c *baselineComposer) Resolve(ctx context.Context, tenantID string, baselineCode string) (types.ResolvedBaseline, error) {
	baselineCode = strings.TrimSpace(baselineCode)
	if baselineCode == "" {
		return types.ResolvedBaseline{}, grcerr.NewValidation("baseline_code", "baseline code is required")
	}

	set, err := c.baselines.FindBaseline(ctx, tenantID, baselineCode)
	if err != nil {
		return types.ResolvedBaseline{}, err
	}
	if !set.Active {
		return types.ResolvedBaseline{}, grcerr.NewNotFound("baseline", baselineCode)
	}

	items, err := c.baselines.ListItems(ctx, tenantID, baselineCode)
	if err != nil {
		return types.ResolvedBaseline{}, err
	}

	seen := make(map[string]bool, len(items))
	controls := make([]types.ComposedControl, 0, len(items))
	for _, item := range items {
		if seen[item.ControlCode] {
			continue
		}
		seen[item.ControlCode] = true

		control, err := c.catalog.FindControl(ctx, tenantID, item.ControlCode, 0)
		if err != nil {
			if grcerr.IsNotFound(err) {
				return types.ResolvedBaseline{}, grcerr.NewValidation("control_code",
					fmt.Sprintf("baseline %s references unknown or inactive control %s", baselineCode, item.ControlCode))
			}
			return types.ResolvedBaseline{}, err
		}

		controls = append(controls, types.ComposedControl{
			ControlCode:      control.Code,
			ControlVersion:   control.Version,
			Mandatory:        item.Mandatory,
			Params:           cloneParams(item.DefaultParams),
			OwnerRoleCode:    item.OwnerRoleCode,
			DisplayOrder:     item.DisplayOrder,
			Source:           types.SourceBaseline,
			SourceCode:       baselineCode,
			InclusionReason:  "baseline:" + baselineCode,
			DefaultCondition: control.DefaultCondition,
		})
	}

	sort.SliceStable(controls, func(i, j int) bool {
		if controls[i].DisplayOrder != controls[j].DisplayOrder {
			return controls[i].DisplayOrder < controls[j].DisplayOrder
		}
		return controls[i].ControlCode < controls[j].ControlCode
	})

	return types.ResolvedBaseline{Set: set, Controls: controls}, nil
}

func cloneParams(in map[string]string) map[string]string {
	if len(in) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

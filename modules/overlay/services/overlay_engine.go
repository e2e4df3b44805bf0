package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	baselinetypes "github.com/doganlap/shahin-grc/modules/baseline/domain/types"
	catalogports "github.com/doganlap/shahin-grc/modules/catalog/domain/ports"
	"github.com/doganlap/shahin-grc/modules/overlay/domain/types"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
)

// OverlayEngine folds overlay bundles into a resolved baseline. Application
// order is (priority asc, created_at asc, code asc); equal-priority overlays
// that disagree about the same control fail the whole composition rather
// than silently picking a winner.
type OverlayEngine interface {
	Apply(ctx context.Context, tenantID string, base []baselinetypes.ComposedControl, bundles []types.OverlayBundle) ([]baselinetypes.ComposedControl, []types.TraceLine, error)
}

type overlayEngine struct {
	catalog catalogports.CatalogStore
}

func NewOverlayEngine(catalog catalogports.CatalogStore) OverlayEngine {
	return &overlayEngine{catalog: catalog}
}

func (e *overlayEngine) Apply(ctx context.Context, tenantID string, base []baselinetypes.ComposedControl, bundles []types.OverlayBundle) ([]baselinetypes.ComposedControl, []types.TraceLine, error) {
	working := make(map[string]*baselinetypes.ComposedControl, len(base))
	order := make([]string, 0, len(base))
	for i := range base {
		entry := base[i]
		entry.Params = cloneParams(entry.Params)
		working[entry.ControlCode] = &entry
		order = append(order, entry.ControlCode)
	}

	active := make([]types.OverlayBundle, 0, len(bundles))
	for _, b := range bundles {
		if b.Overlay.Active {
			active = append(active, b)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i].Overlay, active[j].Overlay
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Code < b.Code
	})

	var trace []types.TraceLine
	for start := 0; start < len(active); {
		end := start + 1
		for end < len(active) && active[end].Overlay.Priority == active[start].Overlay.Priority {
			end++
		}
		group := active[start:end]

		if err := detectGroupConflicts(group); err != nil {
			trace = append(trace, conflictLine(group, err))
			return nil, trace, err
		}

		for _, bundle := range group {
			lines, err := e.applyMappings(ctx, tenantID, bundle, working, &order)
			trace = append(trace, lines...)
			if err != nil {
				return nil, trace, err
			}
		}
		for _, bundle := range group {
			trace = append(trace, applyParamOverrides(bundle, working, order)...)
		}

		start = end
	}

	result := make([]baselinetypes.ComposedControl, 0, len(order))
	for _, code := range order {
		if entry, ok := working[code]; ok {
			result = append(result, *entry)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].DisplayOrder != result[j].DisplayOrder {
			return result[i].DisplayOrder < result[j].DisplayOrder
		}
		return result[i].ControlCode < result[j].ControlCode
	})
	return result, trace, nil
}

func (e *overlayEngine) applyMappings(ctx context.Context, tenantID string, bundle types.OverlayBundle, working map[string]*baselinetypes.ComposedControl, order *[]string) ([]types.TraceLine, error) {
	var lines []types.TraceLine
	overlayCode := bundle.Overlay.Code

	for _, m := range bundle.Mappings {
		entry, present := working[m.ControlCode]
		switch m.Action {
		case types.ActionAdd:
			if present {
				lines = append(lines, types.TraceLine{OverlayCode: overlayCode, ControlCode: m.ControlCode, Action: m.Action, Outcome: types.TraceNoop, Detail: "already present"})
				continue
			}
			control, err := e.catalog.FindControl(ctx, tenantID, m.ControlCode, 0)
			if err != nil {
				if grcerr.IsNotFound(err) {
					err = grcerr.NewCompositionConflict(overlayCode, m.ControlCode, string(m.Action), "overlay adds a control absent from the catalog")
					lines = append(lines, types.TraceLine{OverlayCode: overlayCode, ControlCode: m.ControlCode, Action: m.Action, Outcome: types.TraceConflict, Detail: err.Error()})
				}
				return lines, err
			}
			added := baselinetypes.ComposedControl{
				ControlCode:      control.Code,
				ControlVersion:   control.Version,
				Mandatory:        m.Mandatory,
				Params:           cloneParams(m.Params),
				OwnerRoleCode:    m.OwnerRoleCode,
				DisplayOrder:     m.DisplayOrder,
				Source:           baselinetypes.SourceOverlay,
				SourceCode:       overlayCode,
				InclusionReason:  inclusionReason(overlayCode, m.Reason),
				DefaultCondition: control.DefaultCondition,
			}
			working[m.ControlCode] = &added
			*order = append(*order, m.ControlCode)
			lines = append(lines, types.TraceLine{OverlayCode: overlayCode, ControlCode: m.ControlCode, Action: m.Action, Outcome: types.TraceApplied})

		case types.ActionRemove:
			if !present {
				lines = append(lines, types.TraceLine{OverlayCode: overlayCode, ControlCode: m.ControlCode, Action: m.Action, Outcome: types.TraceNoop, Detail: "not present"})
				continue
			}
			if entry.Mandatory && !m.OverridesMandatory {
				err := grcerr.NewCompositionConflict(overlayCode, m.ControlCode, string(m.Action), "removal of a mandatory control without an explicit override")
				lines = append(lines, types.TraceLine{OverlayCode: overlayCode, ControlCode: m.ControlCode, Action: m.Action, Outcome: types.TraceConflict, Detail: err.Error()})
				return lines, err
			}
			delete(working, m.ControlCode)
			lines = append(lines, types.TraceLine{OverlayCode: overlayCode, ControlCode: m.ControlCode, Action: m.Action, Outcome: types.TraceApplied, Detail: m.Reason})

		case types.ActionModify:
			if !present {
				lines = append(lines, types.TraceLine{OverlayCode: overlayCode, ControlCode: m.ControlCode, Action: m.Action, Outcome: types.TraceNoop, Detail: "not present"})
				continue
			}
			if entry.Mandatory && !m.Mandatory && !m.OverridesMandatory {
				err := grcerr.NewCompositionConflict(overlayCode, m.ControlCode, string(m.Action), "demotion of a mandatory control without an explicit override")
				lines = append(lines, types.TraceLine{OverlayCode: overlayCode, ControlCode: m.ControlCode, Action: m.Action, Outcome: types.TraceConflict, Detail: err.Error()})
				return lines, err
			}
			entry.Mandatory = m.Mandatory
			for k, v := range m.Params {
				entry.Params[k] = v
			}
			if m.OwnerRoleCode != "" {
				entry.OwnerRoleCode = m.OwnerRoleCode
			}
			if m.DisplayOrder != 0 {
				entry.DisplayOrder = m.DisplayOrder
			}
			entry.InclusionReason = inclusionReason(overlayCode, m.Reason)
			lines = append(lines, types.TraceLine{OverlayCode: overlayCode, ControlCode: m.ControlCode, Action: m.Action, Outcome: types.TraceApplied})

		default:
			return lines, grcerr.NewValidation("action", fmt.Sprintf("overlay %s: unknown action %q", overlayCode, m.Action))
		}
	}
	return lines, nil
}

// detectGroupConflicts rejects equal-priority overlays whose instructions
// disagree about the same control or parameter. Ordering within a priority
// tier is a tie-break for traces, never a semantic arbiter.
func detectGroupConflicts(group []types.OverlayBundle) error {
	if len(group) < 2 {
		return nil
	}

	type claim struct {
		overlayCode string
		action      types.OverlayAction
		mandatory   bool
	}
	claims := make(map[string]claim)
	for _, bundle := range group {
		for _, m := range bundle.Mappings {
			prev, ok := claims[m.ControlCode]
			if !ok {
				claims[m.ControlCode] = claim{overlayCode: bundle.Overlay.Code, action: m.Action, mandatory: m.Mandatory}
				continue
			}
			if (prev.action == types.ActionRemove) != (m.Action == types.ActionRemove) {
				return grcerr.NewCompositionConflict(bundle.Overlay.Code, m.ControlCode, string(m.Action),
					fmt.Sprintf("equal-priority overlay %s removes the control while another keeps it", prev.overlayCode))
			}
			if prev.action != types.ActionRemove && prev.mandatory != m.Mandatory {
				return grcerr.NewCompositionConflict(bundle.Overlay.Code, m.ControlCode, string(m.Action),
					fmt.Sprintf("equal-priority overlay %s disagrees on mandatory", prev.overlayCode))
			}
		}
	}

	type paramClaim struct {
		overlayCode string
		value       string
	}
	params := make(map[string]paramClaim)
	for _, bundle := range group {
		for _, p := range bundle.ParamOverrides {
			key := p.ControlCode + "\x00" + p.Name
			prev, ok := params[key]
			if !ok {
				params[key] = paramClaim{overlayCode: bundle.Overlay.Code, value: p.Value}
				continue
			}
			if prev.value != p.Value {
				return grcerr.NewCompositionConflict(bundle.Overlay.Code, p.ControlCode, string(types.ActionOverride),
					fmt.Sprintf("equal-priority overlay %s sets parameter %s to a different value", prev.overlayCode, p.Name))
			}
		}
	}
	return nil
}

// applyParamOverrides rewrites parameters and records every rewrite in the
// trace with the value it replaced, one line per touched control.
func applyParamOverrides(bundle types.OverlayBundle, working map[string]*baselinetypes.ComposedControl, order []string) []types.TraceLine {
	var lines []types.TraceLine
	overlayCode := bundle.Overlay.Code

	for _, p := range bundle.ParamOverrides {
		if p.ControlCode != "" {
			entry, ok := working[p.ControlCode]
			if !ok {
				lines = append(lines, types.TraceLine{OverlayCode: overlayCode, ControlCode: p.ControlCode, Action: types.ActionOverride, Outcome: types.TraceNoop, Detail: p.Name + ": control not present"})
				continue
			}
			lines = append(lines, overrideParam(overlayCode, entry, p))
			continue
		}
		touched := false
		for _, code := range order {
			entry, ok := working[code]
			if !ok {
				continue
			}
			if _, carries := entry.Params[p.Name]; carries {
				lines = append(lines, overrideParam(overlayCode, entry, p))
				touched = true
			}
		}
		if !touched {
			lines = append(lines, types.TraceLine{OverlayCode: overlayCode, Action: types.ActionOverride, Outcome: types.TraceNoop, Detail: p.Name + ": no control carries the parameter"})
		}
	}
	return lines
}

func overrideParam(overlayCode string, entry *baselinetypes.ComposedControl, p types.ParameterOverride) types.TraceLine {
	previous := entry.Params[p.Name]
	entry.Params[p.Name] = p.Value
	return types.TraceLine{
		OverlayCode: overlayCode,
		ControlCode: entry.ControlCode,
		Action:      types.ActionOverride,
		Outcome:     types.TraceApplied,
		Detail:      fmt.Sprintf("%s: %q -> %q", p.Name, previous, p.Value),
	}
}

func conflictLine(group []types.OverlayBundle, err error) types.TraceLine {
	line := types.TraceLine{Outcome: types.TraceConflict, Detail: err.Error()}
	if conflict, ok := errors.AsType[*grcerr.CompositionConflictError](err); ok {
		line.OverlayCode = conflict.OverlayID
		line.ControlCode = conflict.ControlID
		line.Action = types.OverlayAction(conflict.Action)
	} else if len(group) > 0 {
		line.OverlayCode = group[0].Overlay.Code
	}
	return line
}

func inclusionReason(overlayCode, reason string) string {
	if reason == "" {
		return "overlay:" + overlayCode
	}
	return "overlay:" + overlayCode + ":" + reason
}

func cloneParams(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

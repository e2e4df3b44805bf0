package types

import "time"

type OverlayType string

const (
	OverlayTypeJurisdiction OverlayType = "jurisdiction"
	OverlayTypeSector       OverlayType = "sector"
	OverlayTypeTechnology   OverlayType = "technology"
	OverlayTypeRegulatory   OverlayType = "regulatory"
)

type OverlayAction string

const (
	ActionAdd      OverlayAction = "add"
	ActionRemove   OverlayAction = "remove"
	ActionModify   OverlayAction = "modify"
	ActionOverride OverlayAction = "override"
)

// Overlay is a named delta applied on top of a resolved baseline. AppliesTo
// is the profile tag that selects it (e.g. jurisdiction "KSA", sector
// "banking", hosting model "cloud").
type Overlay struct {
	ID            string
	Code          string
	Name          string
	Type          OverlayType
	AppliesTo     string
	Priority      int
	Version       int
	EffectiveDate string
	CreatedAt     time.Time
	Active        bool
}

// ControlMapping is one add/remove/modify instruction inside an overlay.
// OverridesMandatory must be set for any instruction that drops a mandatory
// control or demotes it to optional.
type ControlMapping struct {
	ControlCode        string
	Action             OverlayAction
	Mandatory          bool
	OverridesMandatory bool
	Params             map[string]string
	OwnerRoleCode      string
	Reason             string
	DisplayOrder       int
}

// ParameterOverride rewrites one control parameter. An empty ControlCode
// applies the override to every control carrying that parameter.
// OriginalValue keeps the pre-override value for the audit diff.
type ParameterOverride struct {
	ControlCode   string
	Name          string
	Value         string
	OriginalValue string
}

// OverlayBundle is an overlay with its full instruction set, the unit the
// engine consumes.
type OverlayBundle struct {
	Overlay        Overlay
	Mappings       []ControlMapping
	ParamOverrides []ParameterOverride
}

type TraceOutcome string

const (
	TraceApplied  TraceOutcome = "applied"
	TraceNoop     TraceOutcome = "noop"
	TraceConflict TraceOutcome = "conflict"
)

// TraceLine records one engine decision. The full trace is part of the
// generated suite, not a log side channel.
type TraceLine struct {
	OverlayCode string        `json:"overlay_code"`
	ControlCode string        `json:"control_code"`
	Action      OverlayAction `json:"action"`
	Outcome     TraceOutcome  `json:"outcome"`
	Detail      string        `json:"detail,omitempty"`
}

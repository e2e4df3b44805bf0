package types

type BaselineType string

const (
	BaselineTypeRegulatory     BaselineType = "regulatory"
	BaselineTypeOrganizational BaselineType = "organizational"
	BaselineTypeSector         BaselineType = "sector"
)

// BaselineSet is a named starting point for suite generation, e.g. a
// regulator's mandated control set for a jurisdiction.
type BaselineSet struct {
	Code          string
	Name          string
	Type          BaselineType
	Version       int
	EffectiveDate string
	Active        bool
}

// BaselineItem maps one catalog control into a baseline set.
type BaselineItem struct {
	ControlCode   string
	Mandatory     bool
	DefaultParams map[string]string
	OwnerRoleCode string
	DisplayOrder  int
}

// ComposedControl is one entry of a resolved baseline: the working unit the
// overlay engine and suite generator operate on.
type ComposedControl struct {
	ControlCode      string
	ControlVersion   int
	Mandatory        bool
	Params           map[string]string
	OwnerRoleCode    string
	DisplayOrder     int
	Source           string
	SourceCode       string
	InclusionReason  string
	DefaultCondition string
}

const (
	SourceBaseline = "baseline"
	SourceOverlay  = "overlay"
	SourceRule     = "rule"
)

// ResolvedBaseline is the composer output: the set header plus its controls
// in deterministic order.
type ResolvedBaseline struct {
	Set      BaselineSet
	Controls []ComposedControl
}

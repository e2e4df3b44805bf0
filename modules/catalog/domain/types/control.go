package types

type ControlType string

const (
	ControlTypePreventive ControlType = "preventive"
	ControlTypeDetective  ControlType = "detective"
	ControlTypeCorrective ControlType = "corrective"
)

type ControlNature string

const (
	ControlNatureManual    ControlNature = "manual"
	ControlNatureAutomated ControlNature = "automated"
	ControlNatureHybrid    ControlNature = "hybrid"
)

// Control is one version of a canonical control. A (Code, Version) pair is
// immutable once published; superseding publishes the next Version.
type Control struct {
	Code          string
	ObjectiveCode string
	Name          string
	Statement     string
	Type          ControlType
	Nature        ControlNature
	Frequency     string
	RiskRating    string
	Version       int
	EffectiveDate string
	SunsetDate    string
	Active        bool

	// DefaultCondition is the control's machine-readable default
	// applicability predicate (CEL over the entity profile map). Empty
	// means unconditionally applicable when no rule decides otherwise.
	DefaultCondition string
}

// Objective groups controls under a control domain.
type Objective struct {
	Code       string
	DomainCode string
	Statement  string
	Active     bool
}

package types

import (
	"time"

	orgtypes "github.com/doganlap/shahin-grc/modules/orgentity/domain/types"
	overlaytypes "github.com/doganlap/shahin-grc/modules/overlay/domain/types"
)

type SuiteStatus string

const (
	StatusRequested      SuiteStatus = "requested"
	StatusComposing      SuiteStatus = "composing"
	StatusRuleEvaluating SuiteStatus = "rule_evaluating"
	StatusPersisting     SuiteStatus = "persisting"
	StatusCompleted      SuiteStatus = "completed"
	StatusFailed         SuiteStatus = "failed"
)

// SuiteControlEntry is one control included in a generated suite, with the
// provenance of how it got there.
type SuiteControlEntry struct {
	ControlCode     string            `json:"control_code"`
	ControlVersion  int               `json:"control_version"`
	Mandatory       bool              `json:"mandatory"`
	Params          map[string]string `json:"params,omitempty"`
	Source          string            `json:"source"`
	SourceCode      string            `json:"source_code,omitempty"`
	InclusionReason string            `json:"inclusion_reason"`
	OwnerRoleCode   string            `json:"owner_role_code,omitempty"`
	DisplayOrder    int               `json:"display_order"`
}

type EvidenceStatus string

const (
	EvidenceScheduled EvidenceStatus = "scheduled"
	EvidenceWaived    EvidenceStatus = "waived"
)

// SuiteEvidenceRequest schedules one evidence item for an included control.
type SuiteEvidenceRequest struct {
	ControlCode     string         `json:"control_code"`
	ItemCode        string         `json:"item_code"`
	ItemName        string         `json:"item_name"`
	Frequency       string         `json:"frequency"`
	RetentionMonths int            `json:"retention_months"`
	Status          EvidenceStatus `json:"status"`
	DueDate         string         `json:"due_date"`
}

// RuleTraceLine records one applicability verdict made during generation.
type RuleTraceLine struct {
	ControlCode      string `json:"control_code"`
	Applicable       bool   `json:"applicable"`
	RuleCode         string `json:"rule_code,omitempty"`
	DrivingAttribute string `json:"driving_attribute,omitempty"`
	DrivingValue     string `json:"driving_value,omitempty"`
	Reason           string `json:"reason"`
}

// ExecutionTrace is the full decision log of one generation run, stored with
// the suite rather than a log stream.
type ExecutionTrace struct {
	OverlayLines []overlaytypes.TraceLine `json:"overlay_lines"`
	RuleLines    []RuleTraceLine          `json:"rule_lines"`
}

// GeneratedControlSuite is one immutable generation result for one entity.
// Regeneration produces the next Version; prior versions stay queryable.
type GeneratedControlSuite struct {
	ID               string
	Code             string
	EntityID         string
	Version          int
	Status           SuiteStatus
	MandatoryCount   int
	OptionalCount    int
	BaselineCode     string
	OverlayCodes     []string
	ProfileSnapshot  orgtypes.Profile
	Controls         []SuiteControlEntry
	EvidenceRequests []SuiteEvidenceRequest
	Trace            ExecutionTrace
	RequestedBy      string
	GeneratedAt      time.Time
	FailureReason    string
}

// EvidenceItem is one standard evidence requirement attached to a control.
type EvidenceItem struct {
	Code            string
	Name            string
	Frequency       string
	RetentionMonths int
}

// SuiteGeneratedEvent is published after a suite persists and the entity's
// current-suite pointer has moved.
type SuiteGeneratedEvent struct {
	TenantID     string    `json:"tenant_id"`
	EntityID     string    `json:"entity_id"`
	SuiteID      string    `json:"suite_id"`
	SuiteVersion int       `json:"suite_version"`
	ControlCount int       `json:"control_count"`
	GeneratedAt  time.Time `json:"generated_at"`
}

package types

type RuleType string

const (
	RuleTypeInclusion RuleType = "inclusion"
	RuleTypeExclusion RuleType = "exclusion"
)

type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpIn        Operator = "in"
	OpNotIn     Operator = "not_in"
	OpGt        Operator = "gt"
	OpGte       Operator = "gte"
	OpLt        Operator = "lt"
	OpLte       Operator = "lte"
	OpContains  Operator = "contains"
)

// Profile attributes a rule may target. These are the only attributes the
// evaluator understands; anything else is an unsupported predicate.
const (
	AttrJurisdiction    = "jurisdiction"
	AttrBusinessLine    = "business_line"
	AttrSystemTier      = "system_tier"
	AttrDataType        = "data_type"
	AttrHostingModel    = "hosting_model"
	AttrCriticalityTier = "criticality_tier"
)

// Rule is one applicability predicate. An empty ControlCode scopes the rule
// to every control in the working set.
type Rule struct {
	ID          string
	Code        string
	Name        string
	Type        RuleType
	Attribute   string
	Operator    Operator
	Value       string
	Values      []string
	ControlCode string
	Priority    int
	Reason      string
	Active      bool
}

// Profile is the evaluator's view of an entity: attribute name to the
// values the entity carries for it. Single-valued attributes hold one
// element.
type Profile map[string][]string

// Decision is the evaluator verdict for one control.
type Decision struct {
	Applicable       bool
	RuleCode         string
	DrivingAttribute string
	DrivingValue     string
	Reason           string
}

// ConflictPolicy arbitrates equal-priority rule matches of opposite types.
type ConflictPolicy string

const (
	ConflictExclusionWins ConflictPolicy = "exclusion_wins"
	ConflictInclusionWins ConflictPolicy = "inclusion_wins"
)

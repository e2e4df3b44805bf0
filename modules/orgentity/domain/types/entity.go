package types

type EntityType string

const (
	EntityTypeLegalEntity  EntityType = "legal_entity"
	EntityTypeBusinessUnit EntityType = "business_unit"
	EntityTypeSystem       EntityType = "system"
)

// Profile describes the compliance-relevant attributes of an entity. Empty
// fields inherit from the parent when InheritsFromParent is set.
type Profile struct {
	Jurisdictions   []string
	Sectors         []string
	DataTypes       []string
	HostingModel    string
	CriticalityTier string
}

func (p Profile) IsZero() bool {
	return len(p.Jurisdictions) == 0 && len(p.Sectors) == 0 && len(p.DataTypes) == 0 &&
		p.HostingModel == "" && p.CriticalityTier == ""
}

// Entity is one node of the organization hierarchy: legal entities at the
// top, business units below them, systems at the leaves.
type Entity struct {
	ID                  string
	Code                string
	Name                string
	Type                EntityType
	ParentID            string
	Profile             Profile
	InheritsFromParent  bool
	AppliedOverlayCodes []string
	BaselineCode        string
	CurrentSuiteID      string
	CurrentSuiteVersion int
	Active              bool
}

// ResolvedEntity is an entity with inheritance folded in: the effective
// profile, the lineage walked to compute it (entity first, root last), and
// the union of overlay codes pinned along the way.
type ResolvedEntity struct {
	Entity           Entity
	EffectiveProfile Profile
	Lineage          []string
	OverlayCodes     []string
}

package types

import "time"

type ApplicabilityStatus string

const (
	StatusApplicable    ApplicabilityStatus = "applicable"
	StatusNotApplicable ApplicabilityStatus = "not_applicable"
)

type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
)

// LedgerEntry records why one control is in or out of scope for an entity at
// one suite version. Entries are append-only; regeneration supersedes the
// prior version's entries rather than mutating them.
type LedgerEntry struct {
	ID               string
	EntityID         string
	SuiteVersion     int
	ControlCode      string
	Status           ApplicabilityStatus
	Reason           string
	DrivingAttribute string
	DrivingValue     string
	RuleCode         string
	ExceptionRef     string
	ExceptionExpiry  string
	ApprovalState    ApprovalState
	ApprovedBy       string
	ApprovedAt       time.Time
	CreatedAt        time.Time

	// SupersededBy points at the entry that replaced this one. Empty for
	// the latest entry of a (entity, control) pair.
	SupersededBy string
}

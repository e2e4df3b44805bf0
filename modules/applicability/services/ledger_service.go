package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/doganlap/shahin-grc/modules/applicability/domain/ports"
	"github.com/doganlap/shahin-grc/modules/applicability/domain/types"
	"github.com/doganlap/shahin-grc/pkg/authz"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
	"github.com/doganlap/shahin-grc/pkg/ids"
)

// approvalPolicy decides which ledger entries start out approved. Entries a
// rule produced are system-derived and self-approve; anything carrying an
// exception reference waits for a human.
const approvalPolicy = `package grc.applicability

import rego.v1

default auto_approve := false

auto_approve if {
	input.status == "applicable"
	input.exception_ref == ""
}

auto_approve if {
	input.status == "not_applicable"
	input.rule_code != ""
	input.exception_ref == ""
}
`

type LedgerService interface {
	// Record appends the entries for one generated suite version, stamping
	// each with a deterministic ID and an initial approval state.
	Record(ctx context.Context, tenantID string, entries []types.LedgerEntry) ([]types.LedgerEntry, error)
	// Supersede writes a replacement entry and links the prior one to it.
	// The prior entry stays queryable; the chain is the audit trail.
	Supersede(ctx context.Context, tenantID string, previousEntryID string, entry types.LedgerEntry) (types.LedgerEntry, error)
	Query(ctx context.Context, tenantID string, entityID string, controlCode string, limit int) ([]types.LedgerEntry, error)
	RequestApproval(ctx context.Context, tenantID string, actorRole string, entryID string) (types.LedgerEntry, error)
	Approve(ctx context.Context, tenantID string, actorRole string, entryID string) (types.LedgerEntry, error)
	Reject(ctx context.Context, tenantID string, actorRole string, entryID string) (types.LedgerEntry, error)
}

type ledgerService struct {
	store      ports.LedgerStore
	authorizer *authz.Authorizer
	approval   rego.PreparedEvalQuery
	now        func() time.Time
}

func NewLedgerService(ctx context.Context, store ports.LedgerStore, authorizer *authz.Authorizer) (LedgerService, error) {
	prepared, err := rego.New(
		rego.Query("data.grc.applicability.auto_approve"),
		rego.Module("approval.rego", approvalPolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare approval policy: %w", err)
	}
	return &ledgerService{store: store, authorizer: authorizer, approval: prepared, now: time.Now}, nil
}

func (s *ledgerService) Record(ctx context.Context, tenantID string, entries []types.LedgerEntry) ([]types.LedgerEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	stamped := make([]types.LedgerEntry, len(entries))
	for i, entry := range entries {
		st, err := s.stamp(ctx, tenantID, entry)
		if err != nil {
			return nil, err
		}
		stamped[i] = st
	}
	if err := s.store.InsertEntries(ctx, tenantID, stamped); err != nil {
		return nil, err
	}
	return stamped, nil
}

func (s *ledgerService) stamp(ctx context.Context, tenantID string, entry types.LedgerEntry) (types.LedgerEntry, error) {
	if entry.EntityID == "" || entry.ControlCode == "" || entry.SuiteVersion <= 0 {
		return types.LedgerEntry{}, grcerr.NewValidation("entry", "entity_id, control_code and suite_version are required")
	}
	entry.ID = ids.LedgerEntryID(tenantID, entry.EntityID, entry.SuiteVersion, entry.ControlCode)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	state, err := s.initialApprovalState(ctx, entry)
	if err != nil {
		return types.LedgerEntry{}, err
	}
	entry.ApprovalState = state
	if state == types.ApprovalApproved {
		entry.ApprovedBy = "system"
		entry.ApprovedAt = entry.CreatedAt
	}
	return entry, nil
}

func (s *ledgerService) Supersede(ctx context.Context, tenantID string, previousEntryID string, entry types.LedgerEntry) (types.LedgerEntry, error) {
	prev, err := s.store.FindEntry(ctx, tenantID, previousEntryID)
	if err != nil {
		return types.LedgerEntry{}, err
	}
	if prev.SupersededBy != "" {
		return types.LedgerEntry{}, grcerr.NewValidation("previous_entry_id",
			"entry is already superseded")
	}
	if entry.EntityID == "" {
		entry.EntityID = prev.EntityID
	}
	if entry.ControlCode == "" {
		entry.ControlCode = prev.ControlCode
	}
	if entry.SuiteVersion <= 0 {
		entry.SuiteVersion = prev.SuiteVersion
	}

	stamped, err := s.stamp(ctx, tenantID, entry)
	if err != nil {
		return types.LedgerEntry{}, err
	}
	// A replacement for the same (entity, control, version) tuple needs its
	// own identity, not the generation run's deterministic one.
	stamped.ID, err = ids.NewString()
	if err != nil {
		return types.LedgerEntry{}, err
	}
	if err := s.store.InsertEntries(ctx, tenantID, []types.LedgerEntry{stamped}); err != nil {
		return types.LedgerEntry{}, err
	}
	if err := s.store.MarkSuperseded(ctx, tenantID, prev.ID, stamped.ID); err != nil {
		return types.LedgerEntry{}, err
	}
	return stamped, nil
}

func (s *ledgerService) initialApprovalState(ctx context.Context, entry types.LedgerEntry) (types.ApprovalState, error) {
	results, err := s.approval.Eval(ctx, rego.EvalInput(map[string]any{
		"status":        string(entry.Status),
		"rule_code":     entry.RuleCode,
		"exception_ref": entry.ExceptionRef,
	}))
	if err != nil {
		return "", fmt.Errorf("eval approval policy: %w", err)
	}
	if results.Allowed() {
		return types.ApprovalApproved, nil
	}
	return types.ApprovalPending, nil
}

func (s *ledgerService) Query(ctx context.Context, tenantID string, entityID string, controlCode string, limit int) ([]types.LedgerEntry, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return nil, grcerr.NewValidation("entity_id", "entity id is required")
	}
	if limit <= 0 {
		limit = 200
	}
	return s.store.ListEntries(ctx, tenantID, entityID, strings.TrimSpace(controlCode), limit)
}

// RequestApproval pulls an entry back to pending so a human re-reviews it,
// clearing any prior sign-off.
func (s *ledgerService) RequestApproval(ctx context.Context, tenantID string, actorRole string, entryID string) (types.LedgerEntry, error) {
	if err := s.authorizeTransition(tenantID, actorRole); err != nil {
		return types.LedgerEntry{}, err
	}

	entry, err := s.store.FindEntry(ctx, tenantID, entryID)
	if err != nil {
		return types.LedgerEntry{}, err
	}
	if entry.ApprovalState == types.ApprovalPending {
		return entry, nil
	}

	if err := s.store.UpdateApproval(ctx, tenantID, entryID, types.ApprovalPending, "", time.Time{}); err != nil {
		return types.LedgerEntry{}, err
	}
	entry.ApprovalState = types.ApprovalPending
	entry.ApprovedBy = ""
	entry.ApprovedAt = time.Time{}
	return entry, nil
}

func (s *ledgerService) Approve(ctx context.Context, tenantID string, actorRole string, entryID string) (types.LedgerEntry, error) {
	return s.transition(ctx, tenantID, actorRole, entryID, types.ApprovalApproved)
}

func (s *ledgerService) Reject(ctx context.Context, tenantID string, actorRole string, entryID string) (types.LedgerEntry, error) {
	return s.transition(ctx, tenantID, actorRole, entryID, types.ApprovalRejected)
}

func (s *ledgerService) authorizeTransition(tenantID string, actorRole string) error {
	allowed, enforced, err := s.authorizer.Authorize(
		authz.SubjectFromRoleCode(actorRole),
		authz.DomainFromTenantID(tenantID),
		authz.ObjectApplicabilityLedger,
		authz.ActionApprove,
	)
	if err != nil {
		return err
	}
	if !allowed && enforced {
		return grcerr.NewValidation("actor_role",
			fmt.Sprintf("role %s may not approve ledger entries", actorRole))
	}
	return nil
}

func (s *ledgerService) transition(ctx context.Context, tenantID string, actorRole string, entryID string, target types.ApprovalState) (types.LedgerEntry, error) {
	if err := s.authorizeTransition(tenantID, actorRole); err != nil {
		return types.LedgerEntry{}, err
	}

	entry, err := s.store.FindEntry(ctx, tenantID, entryID)
	if err != nil {
		return types.LedgerEntry{}, err
	}
	if entry.ApprovalState != types.ApprovalPending {
		return types.LedgerEntry{}, grcerr.NewValidation("approval_state",
			fmt.Sprintf("entry is %s; only pending entries can transition", entry.ApprovalState))
	}

	at := s.now().UTC()
	if err := s.store.UpdateApproval(ctx, tenantID, entryID, target, actorRole, at); err != nil {
		return types.LedgerEntry{}, err
	}
	entry.ApprovalState = target
	entry.ApprovedBy = actorRole
	entry.ApprovedAt = at
	return entry, nil
}

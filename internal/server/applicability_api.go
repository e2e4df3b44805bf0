package server

import (
	"context"
	"net/http"
	"strconv"

	applicabilitytypes "github.com/doganlap/shahin-grc/modules/applicability/domain/types"
)

type ledgerEntryResponse struct {
	EntryID          string `json:"entry_id"`
	EntityID         string `json:"entity_id"`
	SuiteVersion     int    `json:"suite_version"`
	ControlCode      string `json:"control_code"`
	Status           string `json:"status"`
	Reason           string `json:"reason"`
	DrivingAttribute string `json:"driving_attribute,omitempty"`
	DrivingValue     string `json:"driving_value,omitempty"`
	RuleCode         string `json:"rule_code,omitempty"`
	ExceptionRef     string `json:"exception_ref,omitempty"`
	ApprovalState    string `json:"approval_state"`
	ApprovedBy       string `json:"approved_by,omitempty"`
	SupersededBy     string `json:"superseded_by,omitempty"`
}

func toLedgerResponse(e applicabilitytypes.LedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		EntryID:          e.ID,
		EntityID:         e.EntityID,
		SuiteVersion:     e.SuiteVersion,
		ControlCode:      e.ControlCode,
		Status:           string(e.Status),
		Reason:           e.Reason,
		DrivingAttribute: e.DrivingAttribute,
		DrivingValue:     e.DrivingValue,
		RuleCode:         e.RuleCode,
		ExceptionRef:     e.ExceptionRef,
		ApprovalState:    string(e.ApprovalState),
		ApprovedBy:       e.ApprovedBy,
		SupersededBy:     e.SupersededBy,
	}
}

func (h *handler) listLedger(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := currentTenant(r.Context())
	entityID := pathSegment(r.URL.Path, 2) // /api/applicability/{entityID}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.deps.Ledger.Query(r.Context(), tenantID, entityID, r.URL.Query().Get("control_code"), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]ledgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toLedgerResponse(entry))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (h *handler) requestApprovalEntry(w http.ResponseWriter, r *http.Request) {
	h.transitionEntry(w, r, h.deps.Ledger.RequestApproval)
}

func (h *handler) approveEntry(w http.ResponseWriter, r *http.Request) {
	h.transitionEntry(w, r, h.deps.Ledger.Approve)
}

func (h *handler) rejectEntry(w http.ResponseWriter, r *http.Request) {
	h.transitionEntry(w, r, h.deps.Ledger.Reject)
}

func (h *handler) transitionEntry(w http.ResponseWriter, r *http.Request,
	transition func(ctx context.Context, tenantID, actorRole, entryID string) (applicabilitytypes.LedgerEntry, error)) {
	tenantID, _ := currentTenant(r.Context())
	entryID := pathSegment(r.URL.Path, 3) // /api/applicability/entries/{entryID}/...

	entry, err := transition(r.Context(), tenantID, actorRole(r), entryID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLedgerResponse(entry))
}

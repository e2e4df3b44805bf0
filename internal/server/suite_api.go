package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/doganlap/shahin-grc/internal/routing"
	suitetypes "github.com/doganlap/shahin-grc/modules/suite/domain/types"
)

type generateSuiteRequest struct {
	EntityID string `json:"entity_id"`
}

type suiteResponse struct {
	SuiteID          string                            `json:"suite_id"`
	SuiteCode        string                            `json:"suite_code"`
	EntityID         string                            `json:"entity_id"`
	Version          int                               `json:"version"`
	Status           string                            `json:"status"`
	BaselineCode     string                            `json:"baseline_code"`
	OverlayCodes     []string                          `json:"overlay_codes"`
	MandatoryCount   int                               `json:"mandatory_count"`
	OptionalCount    int                               `json:"optional_count"`
	ProfileSnapshot  any                               `json:"profile_snapshot"`
	Controls         []suitetypes.SuiteControlEntry    `json:"controls"`
	EvidenceRequests []suitetypes.SuiteEvidenceRequest `json:"evidence_requests"`
	Trace            suitetypes.ExecutionTrace         `json:"trace"`
	GeneratedAt      string                            `json:"generated_at"`
}

func toSuiteResponse(s suitetypes.GeneratedControlSuite) suiteResponse {
	return suiteResponse{
		SuiteID:          s.ID,
		SuiteCode:        s.Code,
		EntityID:         s.EntityID,
		Version:          s.Version,
		Status:           string(s.Status),
		BaselineCode:     s.BaselineCode,
		OverlayCodes:     s.OverlayCodes,
		MandatoryCount:   s.MandatoryCount,
		OptionalCount:    s.OptionalCount,
		ProfileSnapshot:  s.ProfileSnapshot,
		Controls:         s.Controls,
		EvidenceRequests: s.EvidenceRequests,
		Trace:            s.Trace,
		GeneratedAt:      s.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *handler) generateSuite(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := currentTenant(r.Context())

	var req generateSuiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	suite, err := h.deps.Suites.Generate(r.Context(), tenantID, req.EntityID, actorRole(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSuiteResponse(suite))
}

func (h *handler) currentSuite(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := currentTenant(r.Context())
	entityID := pathSegment(r.URL.Path, 2) // /api/suites/{entityID}/current

	suite, err := h.deps.Suites.GetCurrent(r.Context(), tenantID, entityID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSuiteResponse(suite))
}

func pathSegment(path string, index int) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if index < 0 || index >= len(parts) {
		return ""
	}
	return parts[index]
}

package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/doganlap/shahin-grc/internal/routing"
	catalogtypes "github.com/doganlap/shahin-grc/modules/catalog/domain/types"
)

type controlPayload struct {
	Code             string `json:"code"`
	ObjectiveCode    string `json:"objective_code"`
	Name             string `json:"name"`
	Statement        string `json:"statement"`
	Type             string `json:"type"`
	Nature           string `json:"nature"`
	Frequency        string `json:"frequency"`
	RiskRating       string `json:"risk_rating"`
	Version          int    `json:"version,omitempty"`
	EffectiveDate    string `json:"effective_date,omitempty"`
	SunsetDate       string `json:"sunset_date,omitempty"`
	Active           bool   `json:"active,omitempty"`
	DefaultCondition string `json:"default_condition,omitempty"`
}

func toControlPayload(c catalogtypes.Control) controlPayload {
	return controlPayload{
		Code:             c.Code,
		ObjectiveCode:    c.ObjectiveCode,
		Name:             c.Name,
		Statement:        c.Statement,
		Type:             string(c.Type),
		Nature:           string(c.Nature),
		Frequency:        c.Frequency,
		RiskRating:       c.RiskRating,
		Version:          c.Version,
		EffectiveDate:    c.EffectiveDate,
		SunsetDate:       c.SunsetDate,
		Active:           c.Active,
		DefaultCondition: c.DefaultCondition,
	}
}

func (h *handler) listControls(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := currentTenant(r.Context())
	controls, err := h.deps.Catalog.ListActiveControls(r.Context(), tenantID, r.URL.Query().Get("objective_code"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]controlPayload, 0, len(controls))
	for _, c := range controls {
		out = append(out, toControlPayload(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"controls": out})
}

func (h *handler) getControl(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := currentTenant(r.Context())
	code := pathSegment(r.URL.Path, 3) // /api/catalog/controls/{code}
	version, _ := strconv.Atoi(r.URL.Query().Get("version"))

	control, err := h.deps.Catalog.GetControl(r.Context(), tenantID, code, version)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toControlPayload(control))
}

func (h *handler) publishControl(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := currentTenant(r.Context())

	var payload controlPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	control := catalogtypes.Control{
		Code:             payload.Code,
		ObjectiveCode:    payload.ObjectiveCode,
		Name:             payload.Name,
		Statement:        payload.Statement,
		Type:             catalogtypes.ControlType(payload.Type),
		Nature:           catalogtypes.ControlNature(payload.Nature),
		Frequency:        payload.Frequency,
		RiskRating:       payload.RiskRating,
		EffectiveDate:    payload.EffectiveDate,
		SunsetDate:       payload.SunsetDate,
		DefaultCondition: payload.DefaultCondition,
	}
	published, err := h.deps.Catalog.Publish(r.Context(), tenantID, control)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toControlPayload(published))
}

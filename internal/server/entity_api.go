package server

import (
	"encoding/json"
	"net/http"

	"github.com/doganlap/shahin-grc/internal/routing"
	orgtypes "github.com/doganlap/shahin-grc/modules/orgentity/domain/types"
)

type entityPayload struct {
	EntityID            string   `json:"entity_id,omitempty"`
	Code                string   `json:"code"`
	Name                string   `json:"name"`
	Type                string   `json:"type"`
	ParentID            string   `json:"parent_id,omitempty"`
	Jurisdictions       []string `json:"jurisdictions,omitempty"`
	Sectors             []string `json:"sectors,omitempty"`
	DataTypes           []string `json:"data_types,omitempty"`
	HostingModel        string   `json:"hosting_model,omitempty"`
	CriticalityTier     string   `json:"criticality_tier,omitempty"`
	InheritsFromParent  bool     `json:"inherits_from_parent,omitempty"`
	AppliedOverlayCodes []string `json:"applied_overlay_codes,omitempty"`
	BaselineCode        string   `json:"baseline_code,omitempty"`
	Active              bool     `json:"active"`
}

func toEntityPayload(e orgtypes.Entity) entityPayload {
	return entityPayload{
		EntityID:            e.ID,
		Code:                e.Code,
		Name:                e.Name,
		Type:                string(e.Type),
		ParentID:            e.ParentID,
		Jurisdictions:       e.Profile.Jurisdictions,
		Sectors:             e.Profile.Sectors,
		DataTypes:           e.Profile.DataTypes,
		HostingModel:        e.Profile.HostingModel,
		CriticalityTier:     e.Profile.CriticalityTier,
		InheritsFromParent:  e.InheritsFromParent,
		AppliedOverlayCodes: e.AppliedOverlayCodes,
		BaselineCode:        e.BaselineCode,
		Active:              e.Active,
	}
}

func (h *handler) registerEntity(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := currentTenant(r.Context())

	var payload entityPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		routing.WriteError(w, r, routing.RouteClassPublicAPI, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	entity := orgtypes.Entity{
		ID:       payload.EntityID,
		Code:     payload.Code,
		Name:     payload.Name,
		Type:     orgtypes.EntityType(payload.Type),
		ParentID: payload.ParentID,
		Profile: orgtypes.Profile{
			Jurisdictions:   payload.Jurisdictions,
			Sectors:         payload.Sectors,
			DataTypes:       payload.DataTypes,
			HostingModel:    payload.HostingModel,
			CriticalityTier: payload.CriticalityTier,
		},
		InheritsFromParent:  payload.InheritsFromParent,
		AppliedOverlayCodes: payload.AppliedOverlayCodes,
		BaselineCode:        payload.BaselineCode,
		Active:              payload.Active,
	}
	registered, err := h.deps.Entities.Register(r.Context(), tenantID, entity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntityPayload(registered))
}

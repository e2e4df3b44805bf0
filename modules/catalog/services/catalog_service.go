package services

import (
	"context"
	"strings"

	"github.com/doganlap/shahin-grc/modules/catalog/domain/ports"
	"github.com/doganlap/shahin-grc/modules/catalog/domain/types"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
)

type CatalogService interface {
	GetControl(ctx context.Context, tenantID string, code string, asOfVersion int) (types.Control, error)
	ListActiveControls(ctx context.Context, tenantID string, objectiveCode string) ([]types.Control, error)
	Publish(ctx context.Context, tenantID string, control types.Control) (types.Control, error)
}

type catalogService struct {
	store ports.CatalogStore
}

func NewCatalogService(store ports.CatalogStore) CatalogService {
	return &catalogService{store: store}
}

func (s *catalogService) GetControl(ctx context.Context, tenantID string, code string, asOfVersion int) (types.Control, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return types.Control{}, grcerr.NewValidation("code", "control code is required")
	}
	return s.store.FindControl(ctx, tenantID, code, asOfVersion)
}

func (s *catalogService) ListActiveControls(ctx context.Context, tenantID string, objectiveCode string) ([]types.Control, error) {
	return s.store.ListActiveControls(ctx, tenantID, strings.TrimSpace(objectiveCode))
}

// Publish writes a new control version. The prior version stays in history
// with Active=false; catalog history is never mutated in place.
func (s *catalogService) Publish(ctx context.Context, tenantID string, control types.Control) (types.Control, error) {
	control.Code = strings.TrimSpace(control.Code)
	if control.Code == "" {
		return types.Control{}, grcerr.NewValidation("code", "control code is required")
	}
	if strings.TrimSpace(control.Statement) == "" {
		return types.Control{}, grcerr.NewValidation("statement", "control statement is required")
	}
	if err := validateControlEnums(control); err != nil {
		return types.Control{}, err
	}

	control.ObjectiveCode = strings.TrimSpace(control.ObjectiveCode)
	if control.ObjectiveCode == "" {
		return types.Control{}, grcerr.NewValidation("objective_code", "objective linkage is required")
	}
	objective, err := s.store.FindObjective(ctx, tenantID, control.ObjectiveCode)
	if err != nil {
		return types.Control{}, err
	}
	if !objective.Active {
		return types.Control{}, grcerr.NewValidation("objective_code", "objective is inactive")
	}

	prior, err := s.store.FindControl(ctx, tenantID, control.Code, 0)
	switch {
	case err == nil:
		control.Version = prior.Version + 1
	case grcerr.IsNotFound(err):
		control.Version = 1
	default:
		return types.Control{}, err
	}
	control.Active = true

	if err := s.store.InsertControlVersion(ctx, tenantID, control); err != nil {
		return types.Control{}, err
	}
	if control.Version > 1 {
		if err := s.store.DeactivatePriorVersions(ctx, tenantID, control.Code, control.Version); err != nil {
			return types.Control{}, err
		}
	}
	return control, nil
}

func validateControlEnums(control types.Control) error {
	switch control.Type {
	case types.ControlTypePreventive, types.ControlTypeDetective, types.ControlTypeCorrective:
	default:
		return grcerr.NewValidation("type", "unknown control type")
	}
	switch control.Nature {
	case types.ControlNatureManual, types.ControlNatureAutomated, types.ControlNatureHybrid:
	default:
		return grcerr.NewValidation("nature", "unknown control nature")
	}
	return nil
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	applicabilitytypes "github.com/doganlap/shahin-grc/modules/applicability/domain/types"
	catalogtypes "github.com/doganlap/shahin-grc/modules/catalog/domain/types"
	orgtypes "github.com/doganlap/shahin-grc/modules/orgentity/domain/types"
	suitetypes "github.com/doganlap/shahin-grc/modules/suite/domain/types"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
)

const testTenant = "4f6c2d8a-1b3e-4c5d-9e7f-0a1b2c3d4e5f"

type catalogServiceStub struct {
	getFn     func(ctx context.Context, tenantID, code string, asOfVersion int) (catalogtypes.Control, error)
	listFn    func(ctx context.Context, tenantID, objectiveCode string) ([]catalogtypes.Control, error)
	publishFn func(ctx context.Context, tenantID string, control catalogtypes.Control) (catalogtypes.Control, error)
}

func (s *catalogServiceStub) GetControl(ctx context.Context, tenantID, code string, asOfVersion int) (catalogtypes.Control, error) {
	return s.getFn(ctx, tenantID, code, asOfVersion)
}

func (s *catalogServiceStub) ListActiveControls(ctx context.Context, tenantID, objectiveCode string) ([]catalogtypes.Control, error) {
	return s.listFn(ctx, tenantID, objectiveCode)
}

func (s *catalogServiceStub) Publish(ctx context.Context, tenantID string, control catalogtypes.Control) (catalogtypes.Control, error) {
	return s.publishFn(ctx, tenantID, control)
}

type suiteGeneratorStub struct {
	generateFn func(ctx context.Context, tenantID, entityID, requestedBy string) (suitetypes.GeneratedControlSuite, error)
	currentFn  func(ctx context.Context, tenantID, entityID string) (suitetypes.GeneratedControlSuite, error)
}

func (s *suiteGeneratorStub) Generate(ctx context.Context, tenantID, entityID, requestedBy string) (suitetypes.GeneratedControlSuite, error) {
	return s.generateFn(ctx, tenantID, entityID, requestedBy)
}

func (s *suiteGeneratorStub) GetCurrent(ctx context.Context, tenantID, entityID string) (suitetypes.GeneratedControlSuite, error) {
	return s.currentFn(ctx, tenantID, entityID)
}

type entityRegistryStub struct {
	registerFn func(ctx context.Context, tenantID string, entity orgtypes.Entity) (orgtypes.Entity, error)
}

func (s *entityRegistryStub) Register(ctx context.Context, tenantID string, entity orgtypes.Entity) (orgtypes.Entity, error) {
	return s.registerFn(ctx, tenantID, entity)
}

type ledgerServiceStub struct {
	queryFn           func(ctx context.Context, tenantID, entityID, controlCode string, limit int) ([]applicabilitytypes.LedgerEntry, error)
	requestApprovalFn func(ctx context.Context, tenantID, actorRole, entryID string) (applicabilitytypes.LedgerEntry, error)
	approveFn         func(ctx context.Context, tenantID, actorRole, entryID string) (applicabilitytypes.LedgerEntry, error)
	rejectFn          func(ctx context.Context, tenantID, actorRole, entryID string) (applicabilitytypes.LedgerEntry, error)
}

func (s *ledgerServiceStub) Record(_ context.Context, _ string, _ []applicabilitytypes.LedgerEntry) ([]applicabilitytypes.LedgerEntry, error) {
	return nil, nil
}

func (s *ledgerServiceStub) Supersede(_ context.Context, _ string, _ string, _ applicabilitytypes.LedgerEntry) (applicabilitytypes.LedgerEntry, error) {
	return applicabilitytypes.LedgerEntry{}, nil
}

func (s *ledgerServiceStub) RequestApproval(ctx context.Context, tenantID, actorRole, entryID string) (applicabilitytypes.LedgerEntry, error) {
	return s.requestApprovalFn(ctx, tenantID, actorRole, entryID)
}

func (s *ledgerServiceStub) Query(ctx context.Context, tenantID, entityID, controlCode string, limit int) ([]applicabilitytypes.LedgerEntry, error) {
	return s.queryFn(ctx, tenantID, entityID, controlCode, limit)
}

func (s *ledgerServiceStub) Approve(ctx context.Context, tenantID, actorRole, entryID string) (applicabilitytypes.LedgerEntry, error) {
	return s.approveFn(ctx, tenantID, actorRole, entryID)
}

func (s *ledgerServiceStub) Reject(ctx context.Context, tenantID, actorRole, entryID string) (applicabilitytypes.LedgerEntry, error) {
	return s.rejectFn(ctx, tenantID, actorRole, entryID)
}

func newTestMux(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	deps.Log = zerolog.Nop()
	mux, err := NewMux(deps)
	if err != nil {
		t.Fatalf("NewMux: %v", err)
	}
	return mux
}

func TestHealthzOpenWithoutTenant(t *testing.T) {
	mux := newTestMux(t, Deps{})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestAPIRejectsMissingTenant(t *testing.T) {
	mux := newTestMux(t, Deps{})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/catalog/controls", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var env map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env["code"] != "tenant_required" {
		t.Fatalf("code = %v, want tenant_required", env["code"])
	}
}

func TestAPIRejectsMalformedTenant(t *testing.T) {
	mux := newTestMux(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/catalog/controls", nil)
	req.Header.Set("X-Tenant-ID", "not-a-uuid")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestGenerateSuitePassesTenantAndActor(t *testing.T) {
	var gotTenant, gotEntity, gotActor string
	mux := newTestMux(t, Deps{
		Suites: &suiteGeneratorStub{
			generateFn: func(_ context.Context, tenantID, entityID, requestedBy string) (suitetypes.GeneratedControlSuite, error) {
				gotTenant, gotEntity, gotActor = tenantID, entityID, requestedBy
				return suitetypes.GeneratedControlSuite{
					ID:          "suite-1",
					EntityID:    entityID,
					Version:     1,
					Status:      suitetypes.StatusCompleted,
					GeneratedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
				}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/suites/generate",
		strings.NewReader(`{"entity_id":"ent-ksa-bank"}`))
	req.Header.Set("X-Tenant-ID", testTenant)
	req.Header.Set("X-Actor-Role", "role:compliance-officer")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	if gotTenant != testTenant || gotEntity != "ent-ksa-bank" || gotActor != "role:compliance-officer" {
		t.Fatalf("generate called with (%q, %q, %q)", gotTenant, gotEntity, gotActor)
	}
	var resp suiteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SuiteID != "suite-1" || resp.Version != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCurrentSuiteExtractsEntityFromPath(t *testing.T) {
	mux := newTestMux(t, Deps{
		Suites: &suiteGeneratorStub{
			currentFn: func(_ context.Context, _ string, entityID string) (suitetypes.GeneratedControlSuite, error) {
				if entityID != "ent-42" {
					return suitetypes.GeneratedControlSuite{}, grcerr.NewNotFound("suite", entityID)
				}
				return suitetypes.GeneratedControlSuite{ID: "suite-42", EntityID: entityID, Version: 3}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/suites/ent-42/current", nil)
	req.Header.Set("X-Tenant-ID", testTenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	var resp suiteResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SuiteID != "suite-42" || resp.Version != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCurrentSuiteNotFoundMapsTo404(t *testing.T) {
	mux := newTestMux(t, Deps{
		Suites: &suiteGeneratorStub{
			currentFn: func(_ context.Context, _ string, entityID string) (suitetypes.GeneratedControlSuite, error) {
				return suitetypes.GeneratedControlSuite{}, grcerr.NewNotFound("suite", entityID)
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/suites/ent-missing/current", nil)
	req.Header.Set("X-Tenant-ID", testTenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestGenerateConflictMapsTo409(t *testing.T) {
	mux := newTestMux(t, Deps{
		Suites: &suiteGeneratorStub{
			generateFn: func(_ context.Context, _, _, _ string) (suitetypes.GeneratedControlSuite, error) {
				return suitetypes.GeneratedControlSuite{}, grcerr.NewCompositionConflict("CTL-1", "OV-A", "OV-B", "equal-priority disagreement")
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/suites/generate",
		strings.NewReader(`{"entity_id":"ent-1"}`))
	req.Header.Set("X-Tenant-ID", testTenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rr.Code, rr.Body.String())
	}
}

func TestListLedgerForwardsQueryParams(t *testing.T) {
	var gotEntity, gotControl string
	var gotLimit int
	mux := newTestMux(t, Deps{
		Ledger: &ledgerServiceStub{
			queryFn: func(_ context.Context, _ string, entityID, controlCode string, limit int) ([]applicabilitytypes.LedgerEntry, error) {
				gotEntity, gotControl, gotLimit = entityID, controlCode, limit
				return []applicabilitytypes.LedgerEntry{{
					ID:            "entry-1",
					EntityID:      entityID,
					SuiteVersion:  2,
					ControlCode:   controlCode,
					Status:        applicabilitytypes.StatusNotApplicable,
					ApprovalState: applicabilitytypes.ApprovalApproved,
				}}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/applicability/ent-7?control_code=CTL-9&limit=5", nil)
	req.Header.Set("X-Tenant-ID", testTenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if gotEntity != "ent-7" || gotControl != "CTL-9" || gotLimit != 5 {
		t.Fatalf("query called with (%q, %q, %d)", gotEntity, gotControl, gotLimit)
	}
	var resp struct {
		Entries []ledgerEntryResponse `json:"entries"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].EntryID != "entry-1" {
		t.Fatalf("unexpected entries %+v", resp.Entries)
	}
}

func TestApproveEntryUsesActorRole(t *testing.T) {
	var gotRole, gotEntry string
	mux := newTestMux(t, Deps{
		Ledger: &ledgerServiceStub{
			approveFn: func(_ context.Context, _ string, actorRole, entryID string) (applicabilitytypes.LedgerEntry, error) {
				gotRole, gotEntry = actorRole, entryID
				return applicabilitytypes.LedgerEntry{ID: entryID, ApprovalState: applicabilitytypes.ApprovalApproved}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/applicability/entries/entry-9/approve", nil)
	req.Header.Set("X-Tenant-ID", testTenant)
	req.Header.Set("X-Actor-Role", "role:compliance-officer")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if gotRole != "role:compliance-officer" || gotEntry != "entry-9" {
		t.Fatalf("approve called with (%q, %q)", gotRole, gotEntry)
	}
}

func TestRequestApprovalEntryRoute(t *testing.T) {
	var gotEntry string
	mux := newTestMux(t, Deps{
		Ledger: &ledgerServiceStub{
			requestApprovalFn: func(_ context.Context, _ string, _, entryID string) (applicabilitytypes.LedgerEntry, error) {
				gotEntry = entryID
				return applicabilitytypes.LedgerEntry{ID: entryID, ApprovalState: applicabilitytypes.ApprovalPending}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/applicability/entries/entry-3/request-approval", nil)
	req.Header.Set("X-Tenant-ID", testTenant)
	req.Header.Set("X-Actor-Role", "role:compliance-officer")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if gotEntry != "entry-3" {
		t.Fatalf("entry = %q", gotEntry)
	}
	var resp ledgerEntryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ApprovalState != "pending" {
		t.Fatalf("approval_state = %q", resp.ApprovalState)
	}
}

func TestRejectEntryDeniedMapsTo400(t *testing.T) {
	mux := newTestMux(t, Deps{
		Ledger: &ledgerServiceStub{
			rejectFn: func(_ context.Context, _ string, _, _ string) (applicabilitytypes.LedgerEntry, error) {
				return applicabilitytypes.LedgerEntry{}, grcerr.NewValidation("actor_role", "role may not transition ledger entries")
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/applicability/entries/entry-9/reject", nil)
	req.Header.Set("X-Tenant-ID", testTenant)
	req.Header.Set("X-Actor-Role", "role:auditor")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestPublishControlRoundTrip(t *testing.T) {
	mux := newTestMux(t, Deps{
		Catalog: &catalogServiceStub{
			publishFn: func(_ context.Context, _ string, control catalogtypes.Control) (catalogtypes.Control, error) {
				control.Version = 2
				control.Active = true
				return control, nil
			},
		},
	})

	body := `{"code":"CTL-AC-01","objective_code":"OBJ-AC","name":"Access reviews","statement":"Review access quarterly","type":"detective","nature":"manual","frequency":"quarterly"}`
	req := httptest.NewRequest(http.MethodPost, "/api/catalog/controls", strings.NewReader(body))
	req.Header.Set("X-Tenant-ID", testTenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	var resp controlPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "CTL-AC-01" || resp.Version != 2 || !resp.Active {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGetControlVersionQueryParam(t *testing.T) {
	var gotCode string
	var gotVersion int
	mux := newTestMux(t, Deps{
		Catalog: &catalogServiceStub{
			getFn: func(_ context.Context, _ string, code string, asOfVersion int) (catalogtypes.Control, error) {
				gotCode, gotVersion = code, asOfVersion
				return catalogtypes.Control{Code: code, Version: asOfVersion}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/catalog/controls/CTL-AC-01?version=2", nil)
	req.Header.Set("X-Tenant-ID", testTenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if gotCode != "CTL-AC-01" || gotVersion != 2 {
		t.Fatalf("get called with (%q, %d)", gotCode, gotVersion)
	}
}

func TestRegisterEntityRoundTrip(t *testing.T) {
	var gotTenant string
	var gotEntity orgtypes.Entity
	mux := newTestMux(t, Deps{
		Entities: &entityRegistryStub{
			registerFn: func(_ context.Context, tenantID string, entity orgtypes.Entity) (orgtypes.Entity, error) {
				gotTenant, gotEntity = tenantID, entity
				entity.ID = "ent-new"
				return entity, nil
			},
		},
	})

	body := `{"code":"SYS-CORE","name":"Core banking","type":"system","parent_id":"ent-bu","jurisdictions":["KSA"],"baseline_code":"NCA-ECC","active":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/entities", strings.NewReader(body))
	req.Header.Set("X-Tenant-ID", testTenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	if gotTenant != testTenant || gotEntity.Code != "SYS-CORE" || gotEntity.ParentID != "ent-bu" {
		t.Fatalf("register called with (%q, %+v)", gotTenant, gotEntity)
	}
	var resp entityPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.EntityID != "ent-new" || resp.Type != "system" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestRegisterEntityCycleMapsTo422(t *testing.T) {
	mux := newTestMux(t, Deps{
		Entities: &entityRegistryStub{
			registerFn: func(_ context.Context, _ string, _ orgtypes.Entity) (orgtypes.Entity, error) {
				return orgtypes.Entity{}, grcerr.NewCycleDetected("ent-root")
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/entities",
		strings.NewReader(`{"code":"ROOT","name":"Group","type":"legal_entity","parent_id":"ent-leaf"}`))
	req.Header.Set("X-Tenant-ID", testTenant)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rr.Code, rr.Body.String())
	}
}

func TestUnknownRouteReturnsEnvelope(t *testing.T) {
	mux := newTestMux(t, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	var env map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env["code"] != "not_found" {
		t.Fatalf("code = %v, want not_found", env["code"])
	}
}

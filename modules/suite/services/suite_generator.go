package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	applicabilityports "github.com/doganlap/shahin-grc/modules/applicability/domain/ports"
	applicabilitytypes "github.com/doganlap/shahin-grc/modules/applicability/domain/types"
	applicabilityservices "github.com/doganlap/shahin-grc/modules/applicability/services"
	baselineservices "github.com/doganlap/shahin-grc/modules/baseline/services"
	orgports "github.com/doganlap/shahin-grc/modules/orgentity/domain/ports"
	orgtypes "github.com/doganlap/shahin-grc/modules/orgentity/domain/types"
	orgservices "github.com/doganlap/shahin-grc/modules/orgentity/services"
	overlayports "github.com/doganlap/shahin-grc/modules/overlay/domain/ports"
	overlaytypes "github.com/doganlap/shahin-grc/modules/overlay/domain/types"
	overlayservices "github.com/doganlap/shahin-grc/modules/overlay/services"
	"github.com/doganlap/shahin-grc/modules/suite/domain/ports"
	"github.com/doganlap/shahin-grc/modules/suite/domain/types"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
	"github.com/doganlap/shahin-grc/pkg/ids"
)

// SuiteGenerator runs the full pipeline for one entity: resolve hierarchy,
// compose the baseline, fold overlays, evaluate applicability, persist the
// new version, and advance the current-suite pointer. Generations for the
// same entity are serialized; concurrent requests for different entities
// run freely.
type SuiteGenerator interface {
	Generate(ctx context.Context, tenantID string, entityID string, requestedBy string) (types.GeneratedControlSuite, error)
	GetCurrent(ctx context.Context, tenantID string, entityID string) (types.GeneratedControlSuite, error)
}

type suiteGenerator struct {
	resolver  orgservices.HierarchyResolver
	entities  orgports.EntityStore
	composer  baselineservices.BaselineComposer
	overlays  overlayports.OverlayStore
	engine    overlayservices.OverlayEngine
	rules     applicabilityports.RuleStore
	evaluator applicabilityservices.RuleEvaluator
	ledger    applicabilityservices.LedgerService
	suites    ports.SuiteStore
	evidence  ports.EvidenceProvider
	publisher ports.EventPublisher
	log       zerolog.Logger
	now       func() time.Time

	locks sync.Map // tenantID+entityID -> *sync.Mutex
}

type GeneratorDeps struct {
	Resolver  orgservices.HierarchyResolver
	Entities  orgports.EntityStore
	Composer  baselineservices.BaselineComposer
	Overlays  overlayports.OverlayStore
	Engine    overlayservices.OverlayEngine
	Rules     applicabilityports.RuleStore
	Evaluator applicabilityservices.RuleEvaluator
	Ledger    applicabilityservices.LedgerService
	Suites    ports.SuiteStore
	Evidence  ports.EvidenceProvider
	Publisher ports.EventPublisher
	Log       zerolog.Logger
}

func NewSuiteGenerator(deps GeneratorDeps) SuiteGenerator {
	return &suiteGenerator{
		resolver:  deps.Resolver,
		entities:  deps.Entities,
		composer:  deps.Composer,
		overlays:  deps.Overlays,
		engine:    deps.Engine,
		rules:     deps.Rules,
		evaluator: deps.Evaluator,
		ledger:    deps.Ledger,
		suites:    deps.Suites,
		evidence:  deps.Evidence,
		publisher: deps.Publisher,
		log:       deps.Log,
		now:       time.Now,
	}
}

func (g *suiteGenerator) Generate(ctx context.Context, tenantID string, entityID string, requestedBy string) (types.GeneratedControlSuite, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return types.GeneratedControlSuite{}, grcerr.NewValidation("entity_id", "entity id is required")
	}

	mu := g.lockFor(tenantID, entityID)
	mu.Lock()
	defer mu.Unlock()

	suite, err := g.generateOnce(ctx, tenantID, entityID, requestedBy)
	if grcerr.IsConcurrentModification(err) {
		// The pointer moved under us outside this process. One re-read and
		// re-run; a second loss means something is pathologically hot.
		g.log.Warn().Str("tenant_id", tenantID).Str("entity_id", entityID).
			Msg("current suite pointer moved, retrying generation")
		suite, err = g.generateOnce(ctx, tenantID, entityID, requestedBy)
	}
	return suite, err
}

func (g *suiteGenerator) generateOnce(ctx context.Context, tenantID string, entityID string, requestedBy string) (types.GeneratedControlSuite, error) {
	logger := g.log.With().Str("tenant_id", tenantID).Str("entity_id", entityID).Logger()
	logger.Info().Str("status", string(types.StatusRequested)).Msg("suite generation requested")

	resolved, err := g.resolver.Resolve(ctx, tenantID, entityID)
	if err != nil {
		return g.fail(logger, err)
	}
	entity := resolved.Entity
	if !entity.Active {
		return g.fail(logger, grcerr.NewValidation("entity_id", "entity is inactive"))
	}
	if entity.BaselineCode == "" {
		return g.fail(logger, grcerr.NewValidation("baseline_code", "entity has no baseline assigned"))
	}

	logger.Info().Str("status", string(types.StatusComposing)).Str("baseline_code", entity.BaselineCode).Msg("composing baseline")
	composed, err := g.composer.Resolve(ctx, tenantID, entity.BaselineCode)
	if err != nil {
		return g.fail(logger, err)
	}

	bundles, overlayCodes, err := g.selectOverlays(ctx, tenantID, resolved)
	if err != nil {
		return g.fail(logger, err)
	}
	working, overlayTrace, err := g.engine.Apply(ctx, tenantID, composed.Controls, bundles)
	if err != nil {
		logger.Error().Err(err).Str("status", string(types.StatusFailed)).Msg("overlay composition failed")
		return types.GeneratedControlSuite{}, err
	}

	logger.Info().Str("status", string(types.StatusRuleEvaluating)).Int("controls", len(working)).Msg("evaluating applicability")
	rules, err := g.rules.ListActiveRules(ctx, tenantID)
	if err != nil {
		return g.fail(logger, err)
	}
	profile := ruleProfile(resolved.EffectiveProfile)

	version := entity.CurrentSuiteVersion + 1
	generatedAt := g.now().UTC()

	var (
		included      []types.SuiteControlEntry
		ruleTrace     []types.RuleTraceLine
		ledgerEntries []applicabilitytypes.LedgerEntry
	)
	for _, control := range working {
		decision, err := g.evaluator.Evaluate(ctx, rules, control.ControlCode, control.DefaultCondition, profile)
		if err != nil {
			return g.fail(logger, err)
		}

		ruleTrace = append(ruleTrace, types.RuleTraceLine{
			ControlCode:      control.ControlCode,
			Applicable:       decision.Applicable,
			RuleCode:         decision.RuleCode,
			DrivingAttribute: decision.DrivingAttribute,
			DrivingValue:     decision.DrivingValue,
			Reason:           decision.Reason,
		})

		status := applicabilitytypes.StatusApplicable
		if !decision.Applicable {
			status = applicabilitytypes.StatusNotApplicable
		}
		ledgerEntries = append(ledgerEntries, applicabilitytypes.LedgerEntry{
			EntityID:         entityID,
			SuiteVersion:     version,
			ControlCode:      control.ControlCode,
			Status:           status,
			Reason:           decision.Reason,
			DrivingAttribute: decision.DrivingAttribute,
			DrivingValue:     decision.DrivingValue,
			RuleCode:         decision.RuleCode,
			CreatedAt:        generatedAt,
		})

		if !decision.Applicable {
			continue
		}
		reason := control.InclusionReason
		if decision.RuleCode != "" {
			reason = decision.Reason
		}
		included = append(included, types.SuiteControlEntry{
			ControlCode:     control.ControlCode,
			ControlVersion:  control.ControlVersion,
			Mandatory:       control.Mandatory,
			Params:          control.Params,
			Source:          control.Source,
			SourceCode:      control.SourceCode,
			InclusionReason: reason,
			OwnerRoleCode:   control.OwnerRoleCode,
			DisplayOrder:    control.DisplayOrder,
		})
	}

	evidenceRequests, err := g.scheduleEvidence(ctx, tenantID, included, generatedAt)
	if err != nil {
		return g.fail(logger, err)
	}

	mandatory := 0
	for _, entry := range included {
		if entry.Mandatory {
			mandatory++
		}
	}

	suite := types.GeneratedControlSuite{
		ID:               ids.SuiteRecordID(tenantID, entityID, version, "suite", ""),
		Code:             fmt.Sprintf("SUITE-%s-%d", entityID, version),
		EntityID:         entityID,
		Version:          version,
		Status:           types.StatusCompleted,
		MandatoryCount:   mandatory,
		OptionalCount:    len(included) - mandatory,
		BaselineCode:     entity.BaselineCode,
		OverlayCodes:     overlayCodes,
		ProfileSnapshot:  resolved.EffectiveProfile,
		Controls:         included,
		EvidenceRequests: evidenceRequests,
		Trace:            types.ExecutionTrace{OverlayLines: overlayTrace, RuleLines: ruleTrace},
		RequestedBy:      requestedBy,
		GeneratedAt:      generatedAt,
	}

	logger.Info().Str("status", string(types.StatusPersisting)).Int("version", version).Msg("persisting suite")
	// Ledger first: entries carry deterministic IDs, so a retried run
	// overwrites its own orphans. The suite insert then moves the
	// current-suite pointer inside its own transaction; losing that CAS
	// rolls the whole suite back.
	if _, err := g.ledger.Record(ctx, tenantID, ledgerEntries); err != nil {
		return g.fail(logger, err)
	}
	if err := g.suites.InsertSuite(ctx, tenantID, suite, entity.CurrentSuiteVersion); err != nil {
		if grcerr.IsConcurrentModification(err) {
			return types.GeneratedControlSuite{}, err
		}
		return g.fail(logger, err)
	}

	g.publisher.SuiteGenerated(ctx, types.SuiteGeneratedEvent{
		TenantID:     tenantID,
		EntityID:     entityID,
		SuiteID:      suite.ID,
		SuiteVersion: version,
		ControlCount: len(included),
		GeneratedAt:  generatedAt,
	})
	logger.Info().Str("status", string(types.StatusCompleted)).Int("version", version).
		Int("controls", len(included)).Int("evidence_requests", len(evidenceRequests)).
		Msg("suite generated")
	return suite, nil
}

func (g *suiteGenerator) GetCurrent(ctx context.Context, tenantID string, entityID string) (types.GeneratedControlSuite, error) {
	entity, err := g.entities.FindEntity(ctx, tenantID, entityID)
	if err != nil {
		return types.GeneratedControlSuite{}, err
	}
	if entity.CurrentSuiteVersion == 0 {
		return types.GeneratedControlSuite{}, grcerr.NewNotFound("suite", entityID)
	}
	return g.suites.FindSuiteByVersion(ctx, tenantID, entityID, entity.CurrentSuiteVersion)
}

// selectOverlays merges profile-matched and entity-pinned overlays, deduped
// by code.
func (g *suiteGenerator) selectOverlays(ctx context.Context, tenantID string, resolved orgtypes.ResolvedEntity) ([]overlaytypes.OverlayBundle, []string, error) {
	tagged, err := g.overlays.ListBundlesForTags(ctx, tenantID, orgservices.OverlayTags(resolved.EffectiveProfile))
	if err != nil {
		return nil, nil, err
	}
	pinned, err := g.overlays.ListBundlesByCodes(ctx, tenantID, resolved.OverlayCodes)
	if err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool)
	var bundles []overlaytypes.OverlayBundle
	var codes []string
	for _, b := range append(tagged, pinned...) {
		if seen[b.Overlay.Code] {
			continue
		}
		seen[b.Overlay.Code] = true
		bundles = append(bundles, b)
		codes = append(codes, b.Overlay.Code)
	}
	return bundles, codes, nil
}

func (g *suiteGenerator) scheduleEvidence(ctx context.Context, tenantID string, included []types.SuiteControlEntry, generatedAt time.Time) ([]types.SuiteEvidenceRequest, error) {
	var out []types.SuiteEvidenceRequest
	for _, entry := range included {
		items, err := g.evidence.ItemsForControl(ctx, tenantID, entry.ControlCode)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			out = append(out, types.SuiteEvidenceRequest{
				ControlCode:     entry.ControlCode,
				ItemCode:        item.Code,
				ItemName:        item.Name,
				Frequency:       item.Frequency,
				RetentionMonths: item.RetentionMonths,
				Status:          types.EvidenceScheduled,
				DueDate:         generatedAt.AddDate(0, frequencyMonths(item.Frequency), 0).Format("2006-01-02"),
			})
		}
	}
	return out, nil
}

func (g *suiteGenerator) fail(logger zerolog.Logger, err error) (types.GeneratedControlSuite, error) {
	logger.Error().Err(err).Str("status", string(types.StatusFailed)).Msg("suite generation failed")
	return types.GeneratedControlSuite{}, err
}

func (g *suiteGenerator) lockFor(tenantID string, entityID string) *sync.Mutex {
	key := tenantID + "/" + entityID
	if mu, ok := g.locks.Load(key); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := g.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func ruleProfile(p orgtypes.Profile) applicabilitytypes.Profile {
	profile := applicabilitytypes.Profile{
		applicabilitytypes.AttrJurisdiction: p.Jurisdictions,
		applicabilitytypes.AttrBusinessLine: p.Sectors,
		applicabilitytypes.AttrDataType:     p.DataTypes,
	}
	if p.HostingModel != "" {
		profile[applicabilitytypes.AttrHostingModel] = []string{p.HostingModel}
	}
	if p.CriticalityTier != "" {
		profile[applicabilitytypes.AttrCriticalityTier] = []string{p.CriticalityTier}
		profile[applicabilitytypes.AttrSystemTier] = []string{p.CriticalityTier}
	}
	return profile
}

func frequencyMonths(frequency string) int {
	switch strings.ToLower(strings.TrimSpace(frequency)) {
	case "monthly":
		return 1
	case "quarterly":
		return 3
	case "semiannual":
		return 6
	default: // annual and anything unrecognized reviews yearly
		return 12
	}
}

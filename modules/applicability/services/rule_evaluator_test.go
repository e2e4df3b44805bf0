package services

import (
	"context"
	"testing"

	"github.com/doganlap/shahin-grc/modules/applicability/domain/types"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
)

func mustEvaluator(t *testing.T, policy types.ConflictPolicy) RuleEvaluator {
	t.Helper()
	evaluator, err := NewRuleEvaluator(policy)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	return evaluator
}

func ksaBankProfile() types.Profile {
	return types.Profile{
		types.AttrJurisdiction:    {"KSA"},
		types.AttrBusinessLine:    {"banking"},
		types.AttrDataType:        {"pii", "financial"},
		types.AttrHostingModel:    {"cloud"},
		types.AttrCriticalityTier: {"1"},
	}
}

func TestEvaluate_LowestPriorityMatchWins(t *testing.T) {
	rules := []types.Rule{
		{Code: "R-GLOBAL-OUT", Type: types.RuleTypeExclusion, Attribute: types.AttrHostingModel, Operator: types.OpEquals, Value: "on_prem", Priority: 10, Active: true},
		{Code: "R-KSA-IN", Type: types.RuleTypeInclusion, Attribute: types.AttrJurisdiction, Operator: types.OpEquals, Value: "KSA", Priority: 20, Reason: "KSA mandate", Active: true},
		{Code: "R-CLOUD-OUT", Type: types.RuleTypeExclusion, Attribute: types.AttrHostingModel, Operator: types.OpEquals, Value: "cloud", Priority: 30, Active: true},
	}

	evaluator := mustEvaluator(t, types.ConflictExclusionWins)
	decision, err := evaluator.Evaluate(context.Background(), rules, "CTL-A", "", ksaBankProfile())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !decision.Applicable || decision.RuleCode != "R-KSA-IN" {
		t.Fatalf("decision=%+v", decision)
	}
	if decision.DrivingAttribute != types.AttrJurisdiction || decision.DrivingValue != "KSA" {
		t.Fatalf("decision=%+v", decision)
	}
	if decision.Reason != "KSA mandate" {
		t.Fatalf("reason=%q", decision.Reason)
	}
}

func TestEvaluate_ExclusionWinsAtEqualPriority(t *testing.T) {
	rules := []types.Rule{
		{Code: "R-IN", Type: types.RuleTypeInclusion, Attribute: types.AttrJurisdiction, Operator: types.OpEquals, Value: "KSA", Priority: 10, Active: true},
		{Code: "R-OUT", Type: types.RuleTypeExclusion, Attribute: types.AttrBusinessLine, Operator: types.OpEquals, Value: "banking", Priority: 10, Active: true},
	}

	evaluator := mustEvaluator(t, types.ConflictExclusionWins)
	decision, err := evaluator.Evaluate(context.Background(), rules, "CTL-A", "", ksaBankProfile())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if decision.Applicable || decision.RuleCode != "R-OUT" {
		t.Fatalf("decision=%+v", decision)
	}

	inclusive := mustEvaluator(t, types.ConflictInclusionWins)
	decision, err = inclusive.Evaluate(context.Background(), rules, "CTL-A", "", ksaBankProfile())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !decision.Applicable || decision.RuleCode != "R-IN" {
		t.Fatalf("decision=%+v", decision)
	}
}

func TestEvaluate_ControlScopedRuleIgnoredForOtherControls(t *testing.T) {
	rules := []types.Rule{
		{Code: "R-SCOPED", Type: types.RuleTypeExclusion, Attribute: types.AttrJurisdiction, Operator: types.OpEquals, Value: "KSA", ControlCode: "CTL-B", Priority: 10, Active: true},
	}

	evaluator := mustEvaluator(t, types.ConflictExclusionWins)
	decision, err := evaluator.Evaluate(context.Background(), rules, "CTL-A", "", ksaBankProfile())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !decision.Applicable {
		t.Fatalf("decision=%+v", decision)
	}
}

func TestEvaluate_InAndOrderedOperators(t *testing.T) {
	rules := []types.Rule{
		{Code: "R-GCC", Type: types.RuleTypeInclusion, Attribute: types.AttrJurisdiction, Operator: types.OpIn, Values: []string{"KSA", "UAE"}, Priority: 10, Active: true},
	}
	evaluator := mustEvaluator(t, types.ConflictExclusionWins)

	decision, err := evaluator.Evaluate(context.Background(), rules, "CTL-A", "", types.Profile{types.AttrJurisdiction: {"UAE"}})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !decision.Applicable || decision.DrivingValue != "UAE" {
		t.Fatalf("decision=%+v", decision)
	}

	tierRules := []types.Rule{
		{Code: "R-TIER", Type: types.RuleTypeExclusion, Attribute: types.AttrSystemTier, Operator: types.OpGt, Value: "2", Priority: 10, Active: true},
	}
	decision, err = evaluator.Evaluate(context.Background(), tierRules, "CTL-A", "", types.Profile{types.AttrSystemTier: {"3"}})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if decision.Applicable {
		t.Fatalf("decision=%+v", decision)
	}
}

func TestEvaluate_InOperatorIgnoresCase(t *testing.T) {
	rules := []types.Rule{
		{Code: "R-GCC", Type: types.RuleTypeInclusion, Attribute: types.AttrJurisdiction, Operator: types.OpIn, Values: []string{"ksa", "uae"}, Priority: 10, Active: true},
	}
	evaluator := mustEvaluator(t, types.ConflictExclusionWins)

	decision, err := evaluator.Evaluate(context.Background(), rules, "CTL-A", "", ksaBankProfile())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !decision.Applicable || decision.RuleCode != "R-GCC" || decision.DrivingValue != "KSA" {
		t.Fatalf("decision=%+v", decision)
	}

	notIn := []types.Rule{
		{Code: "R-NOT-GCC", Type: types.RuleTypeExclusion, Attribute: types.AttrJurisdiction, Operator: types.OpNotIn, Values: []string{"ksa"}, Priority: 10, Active: true},
	}
	decision, err = evaluator.Evaluate(context.Background(), notIn, "CTL-A", "", ksaBankProfile())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !decision.Applicable {
		t.Fatalf("not_in matched despite case difference: %+v", decision)
	}
}

func TestEvaluate_OrderedOperatorsCompareDates(t *testing.T) {
	rules := []types.Rule{
		{Code: "R-LEGACY", Type: types.RuleTypeExclusion, Attribute: types.AttrSystemTier, Operator: types.OpLt, Value: "2026-01-01", Priority: 10, Active: true},
	}
	evaluator := mustEvaluator(t, types.ConflictExclusionWins)

	decision, err := evaluator.Evaluate(context.Background(), rules, "CTL-A", "", types.Profile{types.AttrSystemTier: {"2025-06-30"}})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if decision.Applicable || decision.RuleCode != "R-LEGACY" {
		t.Fatalf("decision=%+v", decision)
	}

	decision, err = evaluator.Evaluate(context.Background(), rules, "CTL-A", "", types.Profile{types.AttrSystemTier: {"2026-03-01"}})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !decision.Applicable {
		t.Fatalf("decision=%+v", decision)
	}

	_, err = evaluator.Evaluate(context.Background(), rules, "CTL-A", "", types.Profile{types.AttrSystemTier: {"yesterday"}})
	if !grcerr.IsUnsupportedPredicate(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestEvaluate_UnsupportedPredicate(t *testing.T) {
	evaluator := mustEvaluator(t, types.ConflictExclusionWins)

	_, err := evaluator.Evaluate(context.Background(), []types.Rule{
		{Code: "R-BAD", Type: types.RuleTypeInclusion, Attribute: "favorite_color", Operator: types.OpEquals, Value: "blue", Priority: 10, Active: true},
	}, "CTL-A", "", ksaBankProfile())
	if !grcerr.IsUnsupportedPredicate(err) {
		t.Fatalf("err=%v", err)
	}

	_, err = evaluator.Evaluate(context.Background(), []types.Rule{
		{Code: "R-BAD2", Type: types.RuleTypeInclusion, Attribute: types.AttrHostingModel, Operator: types.OpGt, Value: "cloud", Priority: 10, Active: true},
	}, "CTL-A", "", ksaBankProfile())
	if !grcerr.IsUnsupportedPredicate(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestEvaluate_DefaultConditionGatesFallback(t *testing.T) {
	evaluator := mustEvaluator(t, types.ConflictExclusionWins)

	decision, err := evaluator.Evaluate(context.Background(), nil, "CTL-A",
		`"cloud" in profile["hosting_model"]`, ksaBankProfile())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !decision.Applicable {
		t.Fatalf("decision=%+v", decision)
	}

	decision, err = evaluator.Evaluate(context.Background(), nil, "CTL-A",
		`"on_prem" in profile["hosting_model"]`, ksaBankProfile())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if decision.Applicable {
		t.Fatalf("decision=%+v", decision)
	}
}

func TestEvaluate_NoRulesNoConditionDefaultsApplicable(t *testing.T) {
	evaluator := mustEvaluator(t, types.ConflictExclusionWins)
	decision, err := evaluator.Evaluate(context.Background(), nil, "CTL-A", "", ksaBankProfile())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !decision.Applicable {
		t.Fatalf("decision=%+v", decision)
	}
}

func TestEvaluate_RejectsNonBoolCondition(t *testing.T) {
	evaluator := mustEvaluator(t, types.ConflictExclusionWins)
	_, err := evaluator.Evaluate(context.Background(), nil, "CTL-A", `profile["jurisdiction"]`, ksaBankProfile())
	if !grcerr.IsValidation(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestEvaluate_InactiveRulesIgnored(t *testing.T) {
	rules := []types.Rule{
		{Code: "R-OFF", Type: types.RuleTypeExclusion, Attribute: types.AttrJurisdiction, Operator: types.OpEquals, Value: "KSA", Priority: 10, Active: false},
	}
	evaluator := mustEvaluator(t, types.ConflictExclusionWins)
	decision, err := evaluator.Evaluate(context.Background(), rules, "CTL-A", "", ksaBankProfile())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !decision.Applicable {
		t.Fatalf("decision=%+v", decision)
	}
}

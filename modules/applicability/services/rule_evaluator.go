package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/doganlap/shahin-grc/modules/applicability/domain/types"
	"github.com/doganlap/shahin-grc/pkg/grcerr"
)

// RuleEvaluator decides whether one control applies to an entity profile.
// Rules run in priority order; the lowest-priority match wins. When an
// inclusion and an exclusion match at the same priority, the conflict
// policy arbitrates. With no match at all the control defaults to
// applicable, gated by its own default condition when it declares one.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, rules []types.Rule, controlCode string, defaultCondition string, profile types.Profile) (types.Decision, error)
}

type ruleEvaluator struct {
	policy   types.ConflictPolicy
	env      *cel.Env
	programs sync.Map // expression -> cel.Program
}

func NewRuleEvaluator(policy types.ConflictPolicy) (RuleEvaluator, error) {
	switch policy {
	case types.ConflictExclusionWins, types.ConflictInclusionWins:
	default:
		return nil, grcerr.NewValidation("conflict_policy", fmt.Sprintf("unknown policy %q", policy))
	}
	env, err := cel.NewEnv(
		cel.Variable("profile", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("init cel env: %w", err)
	}
	return &ruleEvaluator{policy: policy, env: env}, nil
}

type ruleMatch struct {
	rule  types.Rule
	value string
}

func (e *ruleEvaluator) Evaluate(ctx context.Context, rules []types.Rule, controlCode string, defaultCondition string, profile types.Profile) (types.Decision, error) {
	var matches []ruleMatch
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		if rule.ControlCode != "" && rule.ControlCode != controlCode {
			continue
		}
		matched, value, err := matchRule(rule, profile)
		if err != nil {
			return types.Decision{}, err
		}
		if matched {
			matches = append(matches, ruleMatch{rule: rule, value: value})
		}
	}

	if len(matches) == 0 {
		return e.defaultDecision(ctx, controlCode, defaultCondition, profile)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].rule.Priority != matches[j].rule.Priority {
			return matches[i].rule.Priority < matches[j].rule.Priority
		}
		return matches[i].rule.Code < matches[j].rule.Code
	})

	winner := matches[0]
	for _, m := range matches[1:] {
		if m.rule.Priority != winner.rule.Priority {
			break
		}
		if m.rule.Type == winner.rule.Type {
			continue
		}
		if e.policy == types.ConflictExclusionWins && m.rule.Type == types.RuleTypeExclusion {
			winner = m
		}
		if e.policy == types.ConflictInclusionWins && m.rule.Type == types.RuleTypeInclusion {
			winner = m
		}
	}

	decision := types.Decision{
		Applicable:       winner.rule.Type == types.RuleTypeInclusion,
		RuleCode:         winner.rule.Code,
		DrivingAttribute: winner.rule.Attribute,
		DrivingValue:     winner.value,
		Reason:           winner.rule.Reason,
	}
	if decision.Reason == "" {
		decision.Reason = "rule:" + winner.rule.Code
	}
	return decision, nil
}

func (e *ruleEvaluator) defaultDecision(ctx context.Context, controlCode string, defaultCondition string, profile types.Profile) (types.Decision, error) {
	if strings.TrimSpace(defaultCondition) == "" {
		return types.Decision{Applicable: true, Reason: "no matching rule; applicable by default"}, nil
	}

	program, err := e.loadOrCompile(defaultCondition)
	if err != nil {
		return types.Decision{}, err
	}
	out, _, err := program.ContextEval(ctx, map[string]any{"profile": profileActivation(profile)})
	if err != nil {
		return types.Decision{}, grcerr.NewValidation("default_condition",
			fmt.Sprintf("control %s: condition evaluation failed: %v", controlCode, err))
	}
	applicable, ok := out.Value().(bool)
	if !ok {
		return types.Decision{}, grcerr.NewValidation("default_condition",
			fmt.Sprintf("control %s: condition returned %T, want bool", controlCode, out.Value()))
	}
	if applicable {
		return types.Decision{Applicable: true, Reason: "default condition satisfied"}, nil
	}
	return types.Decision{Applicable: false, Reason: "default condition not satisfied"}, nil
}

func (e *ruleEvaluator) loadOrCompile(expression string) (cel.Program, error) {
	if cached, ok := e.programs.Load(expression); ok {
		return cached.(cel.Program), nil
	}
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, grcerr.NewValidation("default_condition", issues.Err().Error())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, grcerr.NewValidation("default_condition",
			fmt.Sprintf("expression yields %s, want bool", ast.OutputType()))
	}
	program, err := e.env.Program(ast)
	if err != nil {
		return nil, grcerr.NewValidation("default_condition", err.Error())
	}
	actual, _ := e.programs.LoadOrStore(expression, program)
	return actual.(cel.Program), nil
}

func profileActivation(profile types.Profile) map[string]any {
	out := make(map[string]any, len(profile))
	for attr, values := range profile {
		out[attr] = values
	}
	return out
}

func matchRule(rule types.Rule, profile types.Profile) (bool, string, error) {
	switch rule.Attribute {
	case types.AttrJurisdiction, types.AttrBusinessLine, types.AttrSystemTier,
		types.AttrDataType, types.AttrHostingModel, types.AttrCriticalityTier:
	default:
		return false, "", grcerr.NewUnsupportedPredicate(rule.Code, rule.Attribute, string(rule.Operator))
	}

	values := profile[rule.Attribute]
	switch rule.Operator {
	case types.OpEquals:
		for _, v := range values {
			if v == rule.Value {
				return true, v, nil
			}
		}
		return false, "", nil
	case types.OpNotEquals:
		for _, v := range values {
			if v == rule.Value {
				return false, "", nil
			}
		}
		return len(values) > 0, firstOrEmpty(values), nil
	case types.OpIn:
		// Set membership is case-insensitive: catalogs and profiles disagree
		// on casing for jurisdiction and sector codes.
		for _, v := range values {
			for _, want := range rule.Values {
				if strings.EqualFold(v, want) {
					return true, v, nil
				}
			}
		}
		return false, "", nil
	case types.OpNotIn:
		for _, v := range values {
			for _, want := range rule.Values {
				if strings.EqualFold(v, want) {
					return false, "", nil
				}
			}
		}
		return len(values) > 0, firstOrEmpty(values), nil
	case types.OpContains:
		for _, v := range values {
			if strings.Contains(v, rule.Value) {
				return true, v, nil
			}
		}
		return false, "", nil
	case types.OpGt, types.OpGte, types.OpLt, types.OpLte:
		return matchOrdered(rule, values)
	default:
		return false, "", grcerr.NewUnsupportedPredicate(rule.Code, rule.Attribute, string(rule.Operator))
	}
}

// matchOrdered compares numerically when both sides parse as integers and
// falls back to ISO dates (2006-01-02). Mixed or unparseable values are an
// unsupported predicate, not a silent non-match.
func matchOrdered(rule types.Rule, values []string) (bool, string, error) {
	if want, err := strconv.Atoi(rule.Value); err == nil {
		for _, v := range values {
			have, err := strconv.Atoi(v)
			if err != nil {
				return false, "", grcerr.NewUnsupportedPredicate(rule.Code, rule.Attribute, string(rule.Operator))
			}
			if orderedHolds(rule.Operator, have-want) {
				return true, v, nil
			}
		}
		return false, "", nil
	}

	wantDate, err := time.Parse("2006-01-02", rule.Value)
	if err != nil {
		return false, "", grcerr.NewUnsupportedPredicate(rule.Code, rule.Attribute, string(rule.Operator))
	}
	for _, v := range values {
		haveDate, err := time.Parse("2006-01-02", v)
		if err != nil {
			return false, "", grcerr.NewUnsupportedPredicate(rule.Code, rule.Attribute, string(rule.Operator))
		}
		if orderedHolds(rule.Operator, haveDate.Compare(wantDate)) {
			return true, v, nil
		}
	}
	return false, "", nil
}

func orderedHolds(op types.Operator, cmp int) bool {
	switch op {
	case types.OpGt:
		return cmp > 0
	case types.OpGte:
		return cmp >= 0
	case types.OpLt:
		return cmp < 0
	case types.OpLte:
		return cmp <= 0
	}
	return false
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

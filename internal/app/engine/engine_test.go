package engine

import (
	"reflect"
	"testing"

	"github.com/complif/rules-engine/internal/app/domain"
)

func amountRule(id string, priority int, threshold float64, actionType domain.ActionType) domain.RuleVersion {
	return domain.RuleVersion{
		ID:       id,
		Priority: priority,
		Enabled:  true,
		Conditions: domain.Node{
			Fact: "transaction.amount", Operator: domain.OpGreaterThan, Value: threshold,
		},
		Actions: []domain.Action{{Type: actionType, Severity: "HIGH", Category: "AML"}},
	}
}

func TestEvaluateNoRulesAllows(t *testing.T) {
	out := Evaluate(nil, domain.FactBundle{})
	if out.Decision != domain.DecisionAllow {
		t.Fatalf("expected ALLOW with no rules, got %s", out.Decision)
	}
	if len(out.TriggeredRules) != 0 || len(out.Actions) != 0 {
		t.Fatal("expected no triggered rules or actions")
	}
}

func TestEvaluateReviewOnCreateAlert(t *testing.T) {
	facts := domain.FactBundle{"transaction": map[string]any{"amount": 15000.0}}
	rules := []domain.RuleVersion{amountRule("r1", 1, 10000, domain.ActionCreateAlert)}
	out := Evaluate(rules, facts)
	if out.Decision != domain.DecisionReview {
		t.Fatalf("expected REVIEW, got %s", out.Decision)
	}
	if len(out.TriggeredRules) != 1 || out.TriggeredRules[0].RuleVersionID != "r1" {
		t.Fatalf("expected r1 triggered, got %+v", out.TriggeredRules)
	}
}

func TestEvaluateBlockDominatesReview(t *testing.T) {
	facts := domain.FactBundle{"transaction": map[string]any{"amount": 15000.0}}
	rules := []domain.RuleVersion{
		amountRule("alert-rule", 1, 10000, domain.ActionCreateAlert),
		amountRule("block-rule", 2, 10000, domain.ActionBlockTransaction),
	}
	out := Evaluate(rules, facts)
	if out.Decision != domain.DecisionBlock {
		t.Fatalf("expected BLOCK, got %s", out.Decision)
	}
	if len(out.TriggeredRules) != 2 {
		t.Fatalf("expected both rules triggered, got %+v", out.TriggeredRules)
	}
}

func TestEvaluateUnsatisfiedRuleRecordedButNotTriggered(t *testing.T) {
	facts := domain.FactBundle{"transaction": map[string]any{"amount": 100.0}}
	rules := []domain.RuleVersion{amountRule("r1", 1, 10000, domain.ActionCreateAlert)}
	out := Evaluate(rules, facts)
	if out.Decision != domain.DecisionAllow {
		t.Fatalf("expected ALLOW, got %s", out.Decision)
	}
	if len(out.AllRuleResults) != 1 || out.AllRuleResults[0].Satisfied {
		t.Fatalf("expected one unsatisfied result, got %+v", out.AllRuleResults)
	}
	if len(out.TriggeredRules) != 0 {
		t.Fatal("unsatisfied rule must not be in triggered set")
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	facts := domain.FactBundle{"transaction": map[string]any{"amount": 15000.0, "type": "CASH_OUT"}}
	rules := []domain.RuleVersion{amountRule("r1", 1, 10000, domain.ActionCreateAlert)}
	a := Evaluate(rules, facts)
	b := Evaluate(rules, facts)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected deterministic output, got %+v vs %+v", a, b)
	}
}

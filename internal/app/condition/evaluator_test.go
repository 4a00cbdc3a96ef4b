package condition

import (
	"testing"

	"github.com/complif/rules-engine/internal/app/domain"
)

func leaf(fact string, op domain.Operator, value any) domain.Node {
	return domain.Node{Fact: fact, Operator: op, Value: value}
}

func TestEvaluateVacuousCombinators(t *testing.T) {
	if !Evaluate(domain.Node{All: []domain.Node{}}, domain.FactBundle{}) {
		t.Fatal("all:[] should be vacuously true")
	}
	if Evaluate(domain.Node{Any: []domain.Node{}}, domain.FactBundle{}) {
		t.Fatal("any:[] should be false")
	}
}

func TestEvaluateNot(t *testing.T) {
	facts := domain.FactBundle{"transaction": map[string]any{"amount": 100.0}}
	node := domain.Node{Not: &domain.Node{
		Fact: "transaction.amount", Operator: domain.OpGreaterThan, Value: 1000.0,
	}}
	if !Evaluate(node, facts) {
		t.Fatal("not(amount>1000) should be true for amount=100")
	}
}

func TestEvaluateNumericComparisons(t *testing.T) {
	facts := domain.FactBundle{"transaction": map[string]any{"amount": 15000.0}}
	node := leaf("transaction.amount", domain.OpGreaterThan, 10000.0)
	if !Evaluate(node, facts) {
		t.Fatal("expected 15000 > 10000")
	}
	if Evaluate(leaf("transaction.amount", domain.OpLessThan, 10000.0), facts) {
		t.Fatal("expected 15000 not < 10000")
	}
}

func TestEvaluateNumericComparisonRequiresBothNumbers(t *testing.T) {
	facts := domain.FactBundle{"transaction": map[string]any{"type": "CASH_OUT"}}
	if Evaluate(leaf("transaction.type", domain.OpGreaterThan, 10.0), facts) {
		t.Fatal("non-numeric actual must not satisfy numeric comparison")
	}
}

func TestEvaluateInNotIn(t *testing.T) {
	facts := domain.FactBundle{"transaction": map[string]any{"type": "CASH_OUT"}}
	node := leaf("transaction.type", domain.OpIn, []any{"CASH_OUT", "DEBIT"})
	if !Evaluate(node, facts) {
		t.Fatal("expected membership")
	}
	if Evaluate(leaf("transaction.type", domain.OpNotIn, []any{"CASH_OUT", "DEBIT"}), facts) {
		t.Fatal("expected notIn to be false when member")
	}
}

func TestEvaluateContains(t *testing.T) {
	facts := domain.FactBundle{"transaction": map[string]any{"origin": "mobile-app-v2"}}
	if !Evaluate(leaf("transaction.origin", domain.OpContains, "mobile"), facts) {
		t.Fatal("expected contains match")
	}
}

func TestEvaluateExistsOnFalsyButPresentValues(t *testing.T) {
	facts := domain.FactBundle{"transaction": map[string]any{
		"quantity": 0.0,
		"origin":   "",
		"isVoided": false,
	}}
	for _, fact := range []string{"transaction.quantity", "transaction.origin", "transaction.isVoided"} {
		if !Evaluate(leaf(fact, domain.OpExists, nil), facts) {
			t.Fatalf("expected %s to exist despite falsy value", fact)
		}
	}
	if Evaluate(leaf("transaction.missing", domain.OpExists, nil), facts) {
		t.Fatal("missing fact must not exist")
	}
}

func TestEvaluateBetweenInclusive(t *testing.T) {
	facts := domain.FactBundle{"transaction": map[string]any{"amount": 500.0}}
	if !Evaluate(leaf("transaction.amount", domain.OpBetween, []any{500.0, 1000.0}), facts) {
		t.Fatal("expected inclusive lower bound")
	}
	if !Evaluate(leaf("transaction.amount", domain.OpBetween, []any{0.0, 500.0}), facts) {
		t.Fatal("expected inclusive upper bound")
	}
}

func TestEvaluateRegexInvalidPatternYieldsFalse(t *testing.T) {
	facts := domain.FactBundle{"transaction": map[string]any{"origin": "abc"}}
	if Evaluate(leaf("transaction.origin", domain.OpRegex, "(unterminated"), facts) {
		t.Fatal("invalid regex must evaluate to false, not panic/error")
	}
}

func TestEvaluateUnknownOperatorNeverMatches(t *testing.T) {
	facts := domain.FactBundle{"transaction": map[string]any{"amount": 100.0}}
	node := leaf("transaction.amount", domain.Operator("madeUpOp"), 100.0)
	if Evaluate(node, facts) {
		t.Fatal("unknown operator must never match")
	}
}

func TestResolveFactCollapsesOnNilIntermediate(t *testing.T) {
	facts := domain.FactBundle{"transaction": nil}
	if Evaluate(leaf("transaction.amount", domain.OpExists, nil), facts) {
		t.Fatal("nil intermediate must collapse lookup to undefined")
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	node := domain.Node{All: []domain.Node{
		leaf("transaction.amount", domain.OpGreaterThan, 10000.0),
		leaf("transaction.type", domain.OpIn, []any{"CASH_OUT", "DEBIT"}),
	}}
	facts := domain.FactBundle{"transaction": map[string]any{"amount": 15000.0, "type": "CASH_OUT"}}
	first := Evaluate(node, facts)
	second := Evaluate(node, facts)
	if first != second || !first {
		t.Fatal("expected deterministic true result")
	}
}

func TestEvaluateMalformedNodeNeverPanics(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("evaluator panicked on malformed node: %v", r)
		}
	}()
	malformed := domain.Node{All: []domain.Node{{}}, Any: []domain.Node{{}}}
	Evaluate(malformed, domain.FactBundle{})
}

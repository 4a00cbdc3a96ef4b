package condition

import (
	"testing"

	"github.com/complif/rules-engine/internal/app/domain"
)

func TestValidateValidTree(t *testing.T) {
	node := domain.Node{All: []domain.Node{
		{Fact: "transaction.amount", Operator: domain.OpGreaterThan, Value: 10000.0},
		{Fact: "transaction.type", Operator: domain.OpIn, Value: []any{"CASH_OUT"}},
	}}
	result := Validate(node)
	if !result.Valid {
		t.Fatalf("expected valid, got errors: %+v", result.Errors)
	}
}

func TestValidateRejectsEmptyCombinators(t *testing.T) {
	result := Validate(domain.Node{All: []domain.Node{}})
	if result.Valid {
		t.Fatal("expected all:[] to be rejected by the structural validator")
	}
}

func TestValidateRejectsAmbiguousNode(t *testing.T) {
	result := Validate(domain.Node{
		All:  []domain.Node{{Fact: "a", Operator: domain.OpExists}},
		Fact: "b", Operator: domain.OpExists,
	})
	if result.Valid {
		t.Fatal("expected node declaring both all and leaf to be rejected")
	}
}

func TestValidateExistsForbidsValue(t *testing.T) {
	result := Validate(domain.Node{Fact: "a", Operator: domain.OpExists, Value: "anything"})
	if result.Valid {
		t.Fatal("exists must forbid a value")
	}
}

func TestValidateInRequiresNonEmptyArray(t *testing.T) {
	if Validate(domain.Node{Fact: "a", Operator: domain.OpIn, Value: []any{}}).Valid {
		t.Fatal("in requires non-empty array")
	}
	if Validate(domain.Node{Fact: "a", Operator: domain.OpIn, Value: "not-an-array"}).Valid {
		t.Fatal("in requires an array value")
	}
}

func TestValidateBetweenRequiresTwoNumerics(t *testing.T) {
	if !Validate(domain.Node{Fact: "a", Operator: domain.OpBetween, Value: []any{1.0, 2.0}}).Valid {
		t.Fatal("expected valid between")
	}
	if Validate(domain.Node{Fact: "a", Operator: domain.OpBetween, Value: []any{1.0, "x"}}).Valid {
		t.Fatal("expected non-numeric bound to be rejected")
	}
}

func TestValidateUnsupportedOperator(t *testing.T) {
	if Validate(domain.Node{Fact: "a", Operator: domain.Operator("bogus")}).Valid {
		t.Fatal("expected unsupported operator to be rejected")
	}
}

func TestValidateLeafRequiresFact(t *testing.T) {
	if Validate(domain.Node{Operator: domain.OpExists}).Valid {
		t.Fatal("expected missing fact to be rejected")
	}
}

package condition

import "testing"

func TestValidateRawShapeAcceptsLeaf(t *testing.T) {
	err := ValidateRawShape([]byte(`{"fact":"transaction.amount","operator":"GREATER_THAN","value":10000}`))
	if err != nil {
		t.Fatalf("expected valid leaf, got %v", err)
	}
}

func TestValidateRawShapeAcceptsCombinator(t *testing.T) {
	err := ValidateRawShape([]byte(`{"all":[{"fact":"a","operator":"EXISTS"},{"not":{"fact":"b","operator":"EXISTS"}}]}`))
	if err != nil {
		t.Fatalf("expected valid combinator tree, got %v", err)
	}
}

func TestValidateRawShapeRejectsNonObjectRoot(t *testing.T) {
	if err := ValidateRawShape([]byte(`[1,2,3]`)); err == nil {
		t.Fatal("expected error for array root")
	}
}

func TestValidateRawShapeRejectsInvalidJSON(t *testing.T) {
	if err := ValidateRawShape([]byte(`{not valid json`)); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestValidateRawShapeRejectsMixedBranches(t *testing.T) {
	err := ValidateRawShape([]byte(`{"fact":"a","operator":"EXISTS","all":[{"fact":"b","operator":"EXISTS"}]}`))
	if err == nil {
		t.Fatal("expected error for a node mixing fact and all")
	}
}

func TestValidateRawShapeRejectsLeafMissingOperator(t *testing.T) {
	if err := ValidateRawShape([]byte(`{"fact":"a"}`)); err == nil {
		t.Fatal("expected error for leaf missing operator")
	}
}

func TestValidateRawShapeRejectsNonArrayAll(t *testing.T) {
	if err := ValidateRawShape([]byte(`{"all":{"fact":"a","operator":"EXISTS"}}`)); err == nil {
		t.Fatal("expected error for all that is not an array")
	}
}

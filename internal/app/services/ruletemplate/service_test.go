package ruletemplate

import (
	"context"
	"testing"

	"github.com/complif/rules-engine/internal/app/storage/memory"
	apperrors "github.com/complif/rules-engine/internal/platform/errors"
)

const org = "org-1"

func newService() (*Service, *memory.Store) {
	store := memory.New()
	return New(store, nil), store
}

func mustBaseline(t *testing.T, svc *Service) {
	t.Helper()
	_, err := svc.Create(context.Background(), CreateInput{
		OrganizationID: org, Code: "BASELINE", Name: "Baseline", IsSystem: true,
	})
	if err != nil {
		t.Fatalf("create baseline: %v", err)
	}
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	svc, _ := newService()
	mustBaseline(t, svc)
	in := CreateInput{OrganizationID: org, Code: "AML1", Name: "AML Rule"}
	if _, err := svc.Create(context.Background(), in); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.Create(context.Background(), in); !apperrors.Is(err, apperrors.CodeDuplicateOperation) {
		t.Fatalf("expected DUPLICATE_OPERATION, got %v", err)
	}
}

func TestCreateRejectsSystemWithParent(t *testing.T) {
	svc, _ := newService()
	mustBaseline(t, svc)
	parent, _ := svc.Create(context.Background(), CreateInput{OrganizationID: org, Code: "P", Name: "Parent"})
	_, err := svc.Create(context.Background(), CreateInput{
		OrganizationID: org, Code: "X", Name: "X", IsSystem: true, ParentTemplateID: &parent.ID,
	})
	if !apperrors.Is(err, apperrors.CodeValidationError) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestCreateRequiresBaselineFirst(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Create(context.Background(), CreateInput{OrganizationID: org, Code: "X", Name: "X"})
	if !apperrors.Is(err, apperrors.CodeBusinessRuleViolation) {
		t.Fatalf("expected BUSINESS_RULE_VIOLATION, got %v", err)
	}
}

func TestCreateDetectsInheritanceCycle(t *testing.T) {
	svc, store := newService()
	mustBaseline(t, svc)
	a, _ := svc.Create(context.Background(), CreateInput{OrganizationID: org, Code: "A", Name: "A"})
	b, _ := svc.Create(context.Background(), CreateInput{OrganizationID: org, Code: "B", Name: "B", ParentTemplateID: &a.ID})

	// Manually rewrite A's parent to point at B, forming a cycle, bypassing
	// the service (which would never allow this at creation time).
	a.ParentTemplateID = &b.ID
	if _, err := store.Update(context.Background(), a); err != nil {
		t.Fatalf("rewrite parent: %v", err)
	}

	_, err := svc.Create(context.Background(), CreateInput{OrganizationID: org, Code: "C", Name: "C", ParentTemplateID: &a.ID})
	if !apperrors.Is(err, apperrors.CodeBusinessRuleViolation) {
		t.Fatalf("expected cycle to be rejected as BUSINESS_RULE_VIOLATION, got %v", err)
	}
}

func TestDeactivateLastBaselineRejected(t *testing.T) {
	svc, _ := newService()
	mustBaseline(t, svc)
	baseline, err := svc.store.GetByCode(context.Background(), org, "BASELINE")
	if err != nil {
		t.Fatalf("lookup baseline: %v", err)
	}
	_, err = svc.Deactivate(context.Background(), org, baseline.ID)
	if !apperrors.Is(err, apperrors.CodeBusinessRuleViolation) {
		t.Fatalf("expected BUSINESS_RULE_VIOLATION, got %v", err)
	}
}

func TestDeactivateNonBaselineSucceeds(t *testing.T) {
	svc, _ := newService()
	mustBaseline(t, svc)
	tmpl, _ := svc.Create(context.Background(), CreateInput{OrganizationID: org, Code: "X", Name: "X"})
	updated, err := svc.Deactivate(context.Background(), org, tmpl.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if updated.IsActive {
		t.Fatal("expected template to be inactive")
	}
}

package auth

import (
	"testing"
	"time"
)

func TestManagerIssueAndValidate(t *testing.T) {
	mgr := NewManager("test-secret", "rules-engine", time.Minute)
	if mgr == nil {
		t.Fatal("expected manager")
	}

	token, expiry, err := mgr.Issue("org-1", "user-1", []string{"admin"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if !expiry.After(time.Now()) {
		t.Fatal("expected future expiry")
	}

	claims, err := mgr.Validate(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.OrganizationID != "org-1" {
		t.Fatalf("expected org-1, got %s", claims.OrganizationID)
	}
	if !claims.HasRole("admin") {
		t.Fatal("expected admin role")
	}
}

func TestManagerRejectsMissingOrg(t *testing.T) {
	mgr := NewManager("test-secret", "rules-engine", time.Minute)
	token, _, err := mgr.Issue("", "user-1", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := mgr.Validate(token); err == nil {
		t.Fatal("expected validation error for missing org claim")
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if NewManager("", "issuer", time.Minute) != nil {
		t.Fatal("expected nil manager for blank secret")
	}
}

func TestManagerRejectsTamperedToken(t *testing.T) {
	mgr := NewManager("test-secret", "rules-engine", time.Minute)
	token, _, _ := mgr.Issue("org-1", "user-1", nil)
	other := NewManager("other-secret", "rules-engine", time.Minute)
	if _, err := other.Validate(token); err == nil {
		t.Fatal("expected signature verification failure")
	}
}

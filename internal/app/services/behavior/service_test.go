package behavior

import (
	"context"
	"testing"
	"time"

	"github.com/complif/rules-engine/internal/app/domain"
	"github.com/complif/rules-engine/internal/app/storage/memory"
)

const org = "org-1"

func ptr(s string) *string { return &s }

func TestColdStartWhenHistoryBelowThreshold(t *testing.T) {
	store := memory.New()
	svc := New(store)
	anchor := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tx := domain.Transaction{ID: "anchor", AccountID: "acct-1", Amount: 500, DateTime: anchor}

	facts, err := svc.ComputeBehavioralFacts(context.Background(), org, tx)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !facts.Baseline.IsColdStart {
		t.Fatal("expected cold start with no history")
	}
	if facts.Baseline.AvgAmount != nil {
		t.Fatal("expected nil avg amount with no history")
	}
}

func TestDeviationDetectsNewCountry(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	anchor := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		_, err := store.CreateTransaction(ctx, domain.Transaction{
			OrganizationID: org, AccountID: "acct-1", Amount: 100, DateTime: anchor.AddDate(0, 0, -i-1), Country: ptr("RO"),
		})
		if err != nil {
			t.Fatalf("seed history: %v", err)
		}
	}

	svc := New(store)
	tx := domain.Transaction{ID: "anchor", OrganizationID: org, AccountID: "acct-1", Amount: 5000, DateTime: anchor, Country: ptr("KP")}
	facts, err := svc.ComputeBehavioralFacts(ctx, org, tx)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if facts.Baseline.IsColdStart {
		t.Fatal("expected non-cold-start with 6 history entries")
	}
	if !facts.Deviation.IsNewCountry {
		t.Fatal("expected KP to be flagged as a new country")
	}
	if facts.Deviation.AmountRatio == nil || *facts.Deviation.AmountRatio <= 1 {
		t.Fatalf("expected amount ratio > 1 for an outlier transaction, got %+v", facts.Deviation.AmountRatio)
	}
}

func TestAnchorExcludedFromOwnHistory(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	anchor := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	tx, err := store.CreateTransaction(ctx, domain.Transaction{
		ID: "anchor", OrganizationID: org, AccountID: "acct-1", Amount: 5000, DateTime: anchor,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := New(store)
	facts, err := svc.ComputeBehavioralFacts(ctx, org, tx)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if facts.Baseline.HistoryCount != 0 {
		t.Fatalf("expected anchor to be excluded from its own history, got count=%d", facts.Baseline.HistoryCount)
	}
}

package evaluation

import (
	"context"
	"testing"
	"time"

	"github.com/complif/rules-engine/internal/app/cache"
	"github.com/complif/rules-engine/internal/app/domain"
	"github.com/complif/rules-engine/internal/app/services/alert"
	"github.com/complif/rules-engine/internal/app/services/behavior"
	"github.com/complif/rules-engine/internal/app/services/compliancelist"
	"github.com/complif/rules-engine/internal/app/services/ruleversion"
	"github.com/complif/rules-engine/internal/app/storage/memory"
)

const org = "org-1"

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := New(Dependencies{
		Tx:       store,
		Txs:      store,
		Versions: store,
		Results:  store,
		Lists:    compliancelist.New(store, cache.NewStore(time.Minute)),
		Behavior: behavior.New(store),
		Alerts:   alert.New(store),
	})
	return svc, store
}

func mustTemplate(t *testing.T, store *memory.Store) domain.RuleTemplate {
	t.Helper()
	tmpl, err := store.Create(context.Background(), domain.RuleTemplate{
		OrganizationID: org, Code: "baseline", Name: "Baseline", Category: "baseline",
		IsSystem: true, IsActive: true,
	})
	if err != nil {
		t.Fatalf("seed template: %v", err)
	}
	return tmpl
}

func highAmountRule(t *testing.T, store *memory.Store, templateID string, threshold float64) domain.RuleVersion {
	t.Helper()
	rv, err := store.CreateVersion(context.Background(), domain.RuleVersion{
		OrganizationID: org,
		RuleTemplateID: templateID,
		VersionNumber:  1,
		Conditions: domain.Node{
			Fact:     "transaction.amount",
			Operator: domain.OpGreaterThan,
			Value:    threshold,
		},
		Actions:   []domain.Action{{Type: domain.ActionCreateAlert, Severity: "HIGH", Category: "amount"}},
		Priority:  1,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed rule version: %v", err)
	}
	return rv
}

func TestIngestAndEvaluateNoRulesAllows(t *testing.T) {
	svc, _ := newService(t)
	result, alerts, err := svc.IngestAndEvaluate(context.Background(), org, Input{
		Transaction: domain.Transaction{AccountID: "acct-1", Amount: 100, DateTime: time.Now().UTC()},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Decision != domain.DecisionAllow {
		t.Fatalf("expected ALLOW with no active rules, got %v", result.Decision)
	}
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts, got %+v", alerts)
	}
	if result.ID == "" || result.TransactionID == "" {
		t.Fatal("expected persisted ids to be populated")
	}
}

func TestIngestAndEvaluateTriggersAlert(t *testing.T) {
	svc, store := newService(t)
	tmpl := mustTemplate(t, store)
	highAmountRule(t, store, tmpl.ID, 1000)

	result, alerts, err := svc.IngestAndEvaluate(context.Background(), org, Input{
		Transaction: domain.Transaction{AccountID: "acct-1", Amount: 5000, DateTime: time.Now().UTC()},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(result.TriggeredRules) != 1 {
		t.Fatalf("expected one triggered rule, got %+v", result.TriggeredRules)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %+v", alerts)
	}
	if alerts[0].Status != domain.AlertOpen {
		t.Fatalf("expected new alert to be OPEN, got %v", alerts[0].Status)
	}
}

func TestIngestAndEvaluateSecondTriggerSuppresses(t *testing.T) {
	svc, store := newService(t)
	tmpl := mustTemplate(t, store)
	highAmountRule(t, store, tmpl.ID, 1000)
	anchor := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	_, first, err := svc.IngestAndEvaluate(context.Background(), org, Input{
		Transaction: domain.Transaction{AccountID: "acct-1", Amount: 5000, DateTime: anchor},
	})
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected first alert created, got %+v", first)
	}

	_, second, err := svc.IngestAndEvaluate(context.Background(), org, Input{
		Transaction: domain.Transaction{AccountID: "acct-1", Amount: 6000, DateTime: anchor.Add(time.Hour)},
	})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if len(second) != 1 || second[0].ID != first[0].ID {
		t.Fatalf("expected same-day trigger to suppress into the same alert, got %+v", second)
	}
	if second[0].SuppressedCount != 1 {
		t.Fatalf("expected suppressed_count=1, got %d", second[0].SuppressedCount)
	}
}

func TestIngestAndEvaluateRulesAreCached(t *testing.T) {
	svc, store := newService(t)
	rulesCache := cache.NewStore(time.Minute)
	svc.rulesCache = rulesCache
	tmpl := mustTemplate(t, store)
	highAmountRule(t, store, tmpl.ID, 1000)

	if _, _, err := svc.IngestAndEvaluate(context.Background(), org, Input{
		Transaction: domain.Transaction{AccountID: "acct-1", Amount: 50, DateTime: time.Now().UTC()},
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	cached, ok := rulesCache.Get(ruleversion.ActiveRulesCacheKey(org))
	if !ok {
		t.Fatal("expected active rules to be cached after the first evaluation")
	}
	rules, ok := cached.([]domain.RuleVersion)
	if !ok || len(rules) != 1 {
		t.Fatalf("expected one cached rule version, got %+v", cached)
	}
}

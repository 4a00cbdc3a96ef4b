package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/complif/rules-engine/internal/app/auth"
	"github.com/complif/rules-engine/internal/app/cache"
	"github.com/complif/rules-engine/internal/app/domain"
	"github.com/complif/rules-engine/internal/app/services/alert"
	"github.com/complif/rules-engine/internal/app/services/behavior"
	"github.com/complif/rules-engine/internal/app/services/compliancelist"
	"github.com/complif/rules-engine/internal/app/services/evaluation"
	"github.com/complif/rules-engine/internal/app/services/ruletemplate"
	"github.com/complif/rules-engine/internal/app/services/ruleversion"
	"github.com/complif/rules-engine/internal/app/storage/memory"
)

const testOrg = "org-router-test"

type fakeValidator struct{}

func (fakeValidator) Validate(token string) (*auth.Claims, error) {
	if token != "good-token" {
		return nil, auth.ErrUnauthorized
	}
	return &auth.Claims{OrganizationID: testOrg, Subject: "tester"}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()
	store := memory.New()
	rulesCache := cache.NewStore(time.Minute)
	listCache := cache.NewStore(time.Minute)

	templates := ruletemplate.New(store, nil)
	versions := ruleversion.New(store, store, rulesCache, nil)
	lists := compliancelist.New(store, listCache)
	behaviorSvc := behavior.New(store)
	alerts := alert.New(store)
	evalSvc := evaluation.New(evaluation.Dependencies{
		Tx: store, Txs: store, Versions: store, Results: store,
		Lists: lists, Behavior: behaviorSvc, Alerts: alerts, RulesCache: rulesCache,
	})

	router := NewRouter(Dependencies{
		RuleTemplates: templates,
		RuleVersions:  versions,
		Lists:         lists,
		Alerts:        alerts,
		Evaluation:    evalSvc,
		Validator:     fakeValidator{},
		RateLimitRPS:  1000,
		RateLimitBurst: 1000,
	})
	return router, store
}

func authedRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer good-token")
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthzIsPublic(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRuleTemplateRouteRejectsMissingToken(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/rule-templates/", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing token, got %d", rr.Code)
	}
}

func TestCreateRuleTemplateAndListIt(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/rule-templates/", map[string]any{
		"code": "baseline", "name": "Baseline", "isSystem": true,
	}))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/rule-templates/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var templates []domain.RuleTemplate
	if err := json.Unmarshal(rr.Body.Bytes(), &templates); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(templates) != 1 {
		t.Fatalf("expected 1 template, got %d", len(templates))
	}
}

func TestIngestTransactionEndToEnd(t *testing.T) {
	router, store := newTestRouter(t)

	tmpl, err := store.Create(context.Background(), domain.RuleTemplate{
		OrganizationID: testOrg, Code: "baseline", Name: "Baseline",
		IsSystem: true, IsActive: true,
	})
	if err != nil {
		t.Fatalf("seed template: %v", err)
	}
	if _, err := store.CreateVersion(context.Background(), domain.RuleVersion{
		OrganizationID: testOrg, RuleTemplateID: tmpl.ID, VersionNumber: 1,
		Conditions: domain.Node{Fact: "transaction.amount", Operator: domain.OpGreaterThan, Value: 1000.0},
		Actions:    []domain.Action{{Type: domain.ActionCreateAlert, Severity: "HIGH", Category: "amount"}},
		Priority:   1, Enabled: true, CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed version: %v", err)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/transactions/", map[string]any{
		"accountId": "acct-1", "amount": 5000.0, "currency": "USD",
	}))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var decoded struct {
		Result domain.EvaluationResult `json:"result"`
		Alerts []domain.Alert          `json:"alerts"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Result.Decision != domain.DecisionReview && decoded.Result.Decision != domain.DecisionBlock {
		t.Fatalf("expected a non-allow decision, got %v", decoded.Result.Decision)
	}
	if len(decoded.Alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(decoded.Alerts))
	}
}

func TestCreateRuleVersionRejectsMalformedConditions(t *testing.T) {
	router, store := newTestRouter(t)
	tmpl, err := store.Create(context.Background(), domain.RuleTemplate{
		OrganizationID: testOrg, Code: "baseline2", Name: "Baseline 2",
		IsSystem: true, IsActive: true,
	})
	if err != nil {
		t.Fatalf("seed template: %v", err)
	}

	body := map[string]any{
		"ruleTemplateId": tmpl.ID,
		"conditions":     map[string]any{"fact": "transaction.amount"},
		"priority":       1,
		"enabled":        true,
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/rule-versions/", body))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for leaf missing operator, got %d: %s", rr.Code, rr.Body.String())
	}
}

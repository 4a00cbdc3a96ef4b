// Package evaluation implements the Transaction Evaluation Service (spec
// §4.10): the impure orchestrator wrapping transaction ingestion, fact
// gathering, the pure engine, result persistence, and alert consolidation
// in one database transaction.
package evaluation

import (
	"context"
	"sync"
	"time"

	"github.com/complif/rules-engine/internal/app/cache"
	"github.com/complif/rules-engine/internal/app/domain"
	"github.com/complif/rules-engine/internal/app/engine"
	"github.com/complif/rules-engine/internal/app/services/alert"
	"github.com/complif/rules-engine/internal/app/services/behavior"
	"github.com/complif/rules-engine/internal/app/services/compliancelist"
	"github.com/complif/rules-engine/internal/app/services/ruleversion"
	"github.com/complif/rules-engine/internal/app/storage"
	"github.com/complif/rules-engine/internal/app/window"
	"github.com/sirupsen/logrus"
)

// TxRunner runs fn inside a single database transaction, threaded through
// the returned context; every storage call made with that context
// participates in the same transaction. Satisfied by
// internal/app/storage/postgres.Store.WithTx.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher is the fire-and-forget streaming hook run after commit
// (spec §4.10 step 8). Implementations must never block the caller or
// propagate errors back into the evaluation path.
type EventPublisher interface {
	PublishEvaluation(org string, result domain.EvaluationResult)
	PublishAlert(org string, a domain.Alert)
}

// MetricsRecorder records best-effort evaluation metrics.
type MetricsRecorder interface {
	ObserveEvaluation(decision domain.Decision, duration time.Duration)
}

// Input is the caller-supplied shape for IngestAndEvaluate.
type Input struct {
	Transaction domain.Transaction
}

// Service orchestrates the full ingest-and-evaluate pipeline.
type Service struct {
	tx          TxRunner
	txs         storage.TransactionStore
	versions    storage.RuleVersionStore
	results     storage.EvaluationResultStore
	lists       *compliancelist.Service
	behavior    *behavior.Service
	alerts      *alert.Service
	rulesCache  *cache.Store
	publisher   EventPublisher
	metrics     MetricsRecorder
	log         *logrus.Entry
}

// Dependencies bundles Service's collaborators for New.
type Dependencies struct {
	Tx         TxRunner
	Txs        storage.TransactionStore
	Versions   storage.RuleVersionStore
	Results    storage.EvaluationResultStore
	Lists      *compliancelist.Service
	Behavior   *behavior.Service
	Alerts     *alert.Service
	RulesCache *cache.Store
	Publisher  EventPublisher
	Metrics    MetricsRecorder
	Log        *logrus.Entry
}

// New builds a Service from its Dependencies.
func New(d Dependencies) *Service {
	log := d.Log
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Service{
		tx: d.Tx, txs: d.Txs, versions: d.Versions, results: d.Results,
		lists: d.Lists, behavior: d.Behavior, alerts: d.Alerts,
		rulesCache: d.RulesCache, publisher: d.Publisher, metrics: d.Metrics, log: log,
	}
}

// IngestAndEvaluate runs spec §4.10's full pipeline: persist, load active
// rules, build facts, evaluate, persist the result, consolidate alerts —
// all inside one transaction — then fire best-effort post-commit hooks.
func (s *Service) IngestAndEvaluate(ctx context.Context, org string, in Input) (domain.EvaluationResult, []domain.Alert, error) {
	startedAt := time.Now()
	var result domain.EvaluationResult
	var consolidated []domain.Alert

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		tx := in.Transaction
		tx.OrganizationID = org
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = time.Now().UTC()
		}
		persisted, err := s.txs.CreateTransaction(ctx, tx)
		if err != nil {
			return err
		}

		rules, err := s.loadActiveRules(ctx, org)
		if err != nil {
			return err
		}

		if len(rules) == 0 {
			result, err = s.persistResult(ctx, org, persisted, engine.Evaluate(nil, domain.FactBundle{}), startedAt)
			return err
		}

		facts, err := s.buildFacts(ctx, org, persisted, rules)
		if err != nil {
			return err
		}

		out := engine.Evaluate(rules, facts)

		result, err = s.persistResult(ctx, org, persisted, out, startedAt)
		if err != nil {
			return err
		}

		consolidated, err = s.consolidateAlerts(ctx, org, persisted, rules, out, result)
		return err
	})
	if err != nil {
		return domain.EvaluationResult{}, nil, err
	}

	s.firePostCommitHooks(org, result, consolidated)
	return result, consolidated, nil
}

func (s *Service) persistResult(ctx context.Context, org string, tx domain.Transaction, out domain.EngineOutput, startedAt time.Time) (domain.EvaluationResult, error) {
	r := domain.EvaluationResult{
		OrganizationID:       org,
		TransactionID:        tx.ID,
		AccountID:            tx.AccountID,
		Decision:             out.Decision,
		TriggeredRules:       out.TriggeredRules,
		AllRuleResults:       out.AllRuleResults,
		Actions:              out.Actions,
		EvaluatedAt:          time.Now().UTC(),
		EvaluationDurationMS: time.Since(startedAt).Milliseconds(),
	}
	return s.results.CreateResult(ctx, r)
}

func (s *Service) loadActiveRules(ctx context.Context, org string) ([]domain.RuleVersion, error) {
	key := ruleversion.ActiveRulesCacheKey(org)
	if s.rulesCache != nil {
		if cached, ok := s.rulesCache.Get(key); ok {
			if rules, ok := cached.([]domain.RuleVersion); ok {
				return rules, nil
			}
		}
	}
	rules, err := s.versions.FindActiveVersions(ctx, org)
	if err != nil {
		return nil, err
	}
	if s.rulesCache != nil {
		s.rulesCache.Set(key, rules)
	}
	return rules, nil
}

// buildFacts gathers window aggregations (one per unique WindowSpec among
// the active rules), list facts, and behavioral facts concurrently.
func (s *Service) buildFacts(ctx context.Context, org string, tx domain.Transaction, rules []domain.RuleVersion) (domain.FactBundle, error) {
	uniqueWindows := map[string]domain.WindowSpec{}
	for _, r := range rules {
		if r.Window != nil {
			uniqueWindows[window.Suffix(*r.Window)] = *r.Window
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil && err != nil {
			firstErr = err
		}
	}

	aggregations := make(map[string]domain.WindowAggregation, len(uniqueWindows))
	for suffix, w := range uniqueWindows {
		wg.Add(1)
		go func(suffix string, w domain.WindowSpec) {
			defer wg.Done()
			bounds, err := window.ComputeBounds(tx.DateTime, w)
			if err != nil {
				setErr(err)
				return
			}
			agg, err := s.txs.WindowAggregate(ctx, org, tx.AccountID, bounds.Start, bounds.End, tx.ID)
			if err != nil {
				setErr(err)
				return
			}
			agg.Suffix = suffix
			mu.Lock()
			aggregations[suffix] = agg
			mu.Unlock()
		}(suffix, w)
	}

	var lists domain.ListFacts
	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		lists, err = s.lists.ResolveListFacts(ctx, org, compliancelist.ListInput{
			Country:        derefString(tx.Country),
			AccountID:      tx.AccountID,
			CounterpartyID: derefString(tx.CounterpartyID),
		})
		setErr(err)
	}()

	var behavioral domain.BehavioralFacts
	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		behavioral, err = s.behavior.ComputeBehavioralFacts(ctx, org, tx)
		setErr(err)
	}()

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	return domain.BuildFactBundle(tx, aggregations, lists, behavioral), nil
}

func (s *Service) consolidateAlerts(ctx context.Context, org string, tx domain.Transaction, rules []domain.RuleVersion, out domain.EngineOutput, result domain.EvaluationResult) ([]domain.Alert, error) {
	if len(out.TriggeredRules) == 0 {
		return nil, nil
	}
	rulesByID := make(map[string]domain.RuleVersion, len(rules))
	for _, r := range rules {
		rulesByID[r.ID] = r
	}

	var triggers []alert.Trigger
	for _, outcome := range out.TriggeredRules {
		rule, ok := rulesByID[outcome.RuleVersionID]
		if !ok {
			continue
		}
		key, err := alert.DedupKey(tx.AccountID, rule.ID, tx.DateTime, rule.Window)
		if err != nil {
			return nil, err
		}
		triggers = append(triggers, alert.Trigger{
			RuleVersionID:      rule.ID,
			DedupKey:           key,
			Actions:            rule.Actions,
			EvaluationResultID: result.ID,
			TransactionID:      tx.ID,
			AccountID:          tx.AccountID,
		})
	}
	return s.alerts.Consolidate(ctx, org, triggers, tx.DateTime)
}

// firePostCommitHooks emits streaming events and records metrics. Any
// failure here must never surface to the caller; the evaluation outcome
// is already committed and authoritative.
func (s *Service) firePostCommitHooks(org string, result domain.EvaluationResult, alerts []domain.Alert) {
	defer func() { _ = recover() }()

	if s.metrics != nil {
		s.metrics.ObserveEvaluation(result.Decision, time.Duration(result.EvaluationDurationMS)*time.Millisecond)
	}
	if s.publisher == nil {
		return
	}
	s.publisher.PublishEvaluation(org, result)
	for _, a := range alerts {
		s.publisher.PublishAlert(org, a)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

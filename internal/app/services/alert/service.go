// Package alert implements the Alert Service (spec §4.6): dedup key
// derivation, the batched consolidation protocol run inside the
// evaluation transaction, and the status state machine for the public
// acknowledge/resolve/dismiss API.
package alert

import (
	"context"
	"time"

	"github.com/complif/rules-engine/internal/app/domain"
	"github.com/complif/rules-engine/internal/app/storage"
	"github.com/complif/rules-engine/internal/app/window"
	apperrors "github.com/complif/rules-engine/internal/platform/errors"
)

// Service implements alert consolidation and lifecycle operations.
type Service struct {
	store storage.AlertStore
}

// New builds a Service over an AlertStore.
func New(store storage.AlertStore) *Service {
	return &Service{store: store}
}

// DedupKey derives the pure dedup key for one triggered rule against an
// anchor transaction, per spec §4.6: accountId:ruleVersionId:windowStartISO.
func DedupKey(accountID, ruleVersionID string, anchor time.Time, w *domain.WindowSpec) (string, error) {
	bucket, err := window.QuantizeDedupBucket(anchor, w)
	if err != nil {
		return "", err
	}
	return accountID + ":" + ruleVersionID + ":" + bucket, nil
}

// Trigger is one rule that fired create_alert action(s) during an
// evaluation, already carrying its resolved dedup key.
type Trigger struct {
	RuleVersionID      string
	DedupKey           string
	Actions            []domain.Action
	EvaluationResultID string
	TransactionID      string
	AccountID          string
}

// Consolidate runs spec §4.6's batched consolidation protocol for every
// triggered rule carrying at least one create_alert action. It must run
// inside the same transaction as the evaluation it belongs to.
func (s *Service) Consolidate(ctx context.Context, org string, triggers []Trigger, now time.Time) ([]domain.Alert, error) {
	alertable := make([]Trigger, 0, len(triggers))
	for _, t := range triggers {
		if hasCreateAlert(t.Actions) {
			alertable = append(alertable, t)
		}
	}
	if len(alertable) == 0 {
		return nil, nil
	}

	keys := make([]string, len(alertable))
	for i, t := range alertable {
		keys[i] = t.DedupKey
	}
	existing, err := s.store.FindNonTerminalByDedupKeys(ctx, org, keys)
	if err != nil {
		return nil, err
	}

	var out []domain.Alert
	for _, t := range alertable {
		if match, ok := existing[t.DedupKey]; ok {
			meta := match.Metadata
			meta.RelatedTransactionIDs = append(meta.RelatedTransactionIDs, t.TransactionID)
			meta.RelatedEvaluationResultIDs = append(meta.RelatedEvaluationResultIDs, t.EvaluationResultID)
			meta.LastTriggeredAt = &now
			meta.LastTriggeredTransactionID = t.TransactionID
			meta.LastEvaluationResultID = t.EvaluationResultID
			updated, err := s.store.Consolidate(ctx, org, match.ID, meta, now)
			if err != nil {
				return nil, err
			}
			out = append(out, updated)
			continue
		}

		for _, action := range t.Actions {
			if action.Type != domain.ActionCreateAlert {
				continue
			}
			a := domain.Alert{
				OrganizationID:     org,
				EvaluationResultID: t.EvaluationResultID,
				RuleVersionID:      t.RuleVersionID,
				TransactionID:      t.TransactionID,
				AccountID:          t.AccountID,
				DedupKey:           t.DedupKey,
				Severity:           action.Severity,
				Category:           action.Category,
				Status:             domain.AlertOpen,
				Message:            action.Message,
				Metadata: domain.AlertMetadata{
					RelatedTransactionIDs:      []string{t.TransactionID},
					RelatedEvaluationResultIDs: []string{t.EvaluationResultID},
					LastTriggeredAt:            &now,
					LastTriggeredTransactionID: t.TransactionID,
					LastEvaluationResultID:     t.EvaluationResultID,
				},
				CreatedAt: now,
				UpdatedAt: now,
			}
			created, err := s.store.CreateAlert(ctx, a)
			if err != nil {
				return nil, err
			}
			out = append(out, created)
		}
	}
	return out, nil
}

func hasCreateAlert(actions []domain.Action) bool {
	for _, a := range actions {
		if a.Type == domain.ActionCreateAlert {
			return true
		}
	}
	return false
}

// Transition moves an alert to next, enforcing the status state machine.
func (s *Service) Transition(ctx context.Context, org, id string, next domain.AlertStatus, resolvedBy *string) (domain.Alert, error) {
	existing, err := s.store.GetAlertByID(ctx, org, id)
	if err != nil {
		return domain.Alert{}, err
	}
	if !existing.Status.CanTransition(next) {
		allowed := existing.Status.AllowedNext()
		allowedStrings := make([]string, len(allowed))
		for i, a := range allowed {
			allowedStrings[i] = string(a)
		}
		return domain.Alert{}, apperrors.InvalidState(string(existing.Status), "illegal alert status transition", allowedStrings)
	}
	return s.store.UpdateAlertStatus(ctx, org, id, next, resolvedBy, time.Now().UTC())
}

// List returns an organization's alerts, optionally filtered by status.
func (s *Service) List(ctx context.Context, org string, status *domain.AlertStatus, limit, offset int) ([]domain.Alert, error) {
	return s.store.ListAlerts(ctx, org, status, limit, offset)
}

// Get returns a single alert by id.
func (s *Service) Get(ctx context.Context, org, id string) (domain.Alert, error) {
	return s.store.GetAlertByID(ctx, org, id)
}

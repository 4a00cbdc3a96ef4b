// Package storage defines the repository interfaces the services layer
// depends on. internal/app/storage/postgres implements them against
// PostgreSQL; internal/app/storage/memory implements them in-process for
// tests.
package storage

import (
	"context"
	"time"

	"github.com/complif/rules-engine/internal/app/domain"
)

// RuleTemplateStore persists rule template identity records.
type RuleTemplateStore interface {
	Create(ctx context.Context, t domain.RuleTemplate) (domain.RuleTemplate, error)
	Update(ctx context.Context, t domain.RuleTemplate) (domain.RuleTemplate, error)
	GetByID(ctx context.Context, org, id string) (domain.RuleTemplate, error)
	GetByCode(ctx context.Context, org, code string) (domain.RuleTemplate, error)
	// HasActiveBaseline reports whether the organization already has a
	// system template with no parent and IsActive=true.
	HasActiveBaseline(ctx context.Context, org string) (bool, error)
	// CountActiveBaselines is used to guard the last-baseline-cannot-be-
	// deactivated invariant.
	CountActiveBaselines(ctx context.Context, org string) (int, error)
	List(ctx context.Context, org string, limit, offset int) ([]domain.RuleTemplate, error)
}

// RuleVersionStore persists immutable rule version snapshots. Method names
// are distinct from RuleTemplateStore's so a single concrete store type can
// satisfy both interfaces.
type RuleVersionStore interface {
	// CreateVersion inserts a new version, pre-computed with its version
	// number and (if enabled) after the caller has already deactivated any
	// prior active version for the same template, all within the same
	// transaction as the caller.
	CreateVersion(ctx context.Context, v domain.RuleVersion) (domain.RuleVersion, error)
	GetVersionByID(ctx context.Context, org, id string) (domain.RuleVersion, error)
	// NextVersionNumber returns max(version_number)+1 for the template, or
	// 1 if none exist.
	NextVersionNumber(ctx context.Context, org, templateID string) (int, error)
	// ActiveForTemplate returns the current active version of templateID,
	// if any (enabled=true AND deactivated_at IS NULL).
	ActiveForTemplate(ctx context.Context, org, templateID string) (*domain.RuleVersion, error)
	// DeactivateAllForTemplate sets deactivated_at=now on every version of
	// templateID currently lacking one. Returns the count affected.
	DeactivateAllForTemplate(ctx context.Context, org, templateID string, now time.Time) (int, error)
	// DeactivateVersion sets deactivated_at=now on a single version id.
	DeactivateVersion(ctx context.Context, org, id string, now time.Time) error
	// FindActiveVersions returns all enabled, non-deactivated versions in
	// the org, ordered by priority ascending.
	FindActiveVersions(ctx context.Context, org string) ([]domain.RuleVersion, error)
}

// TransactionStore persists financial events and answers the window/
// behavioral aggregation queries the orchestrator needs.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error)
	// WindowAggregate scopes by (accountID, org, datetime in [start,end),
	// id != excludeID) and returns count/sum/avg/max/min plus a
	// count-by-type breakdown, matching §4.3/§4.10's aggregation shape.
	WindowAggregate(ctx context.Context, org, accountID string, start, end time.Time, excludeID string) (domain.WindowAggregation, error)
	// BehavioralHistory returns the raw aggregates the behavior service
	// turns into a Baseline: history count, avg/std amount, and the
	// distinct non-null country/channel sets, over [lookbackStart, anchor)
	// excluding excludeID.
	BehavioralHistory(ctx context.Context, org, accountID string, lookbackStart, anchor time.Time, excludeID string) (BehavioralHistory, error)
}

// BehavioralHistory is the raw SQL aggregate the behavior service shapes
// into a domain.Baseline.
type BehavioralHistory struct {
	Count            int
	AvgAmount        *float64
	StdDevAmount     *float64
	DistinctCountries []string
	DistinctChannels  []string
}

// EvaluationResultStore persists the immutable audit of one evaluation.
type EvaluationResultStore interface {
	CreateResult(ctx context.Context, r domain.EvaluationResult) (domain.EvaluationResult, error)
}

// AlertStore persists and consolidates alerts.
type AlertStore interface {
	CreateAlert(ctx context.Context, a domain.Alert) (domain.Alert, error)
	GetAlertByID(ctx context.Context, org, id string) (domain.Alert, error)
	// FindNonTerminalByDedupKeys batch-loads, in one query, every alert in
	// org whose dedup_key is in keys and whose status is not RESOLVED or
	// DISMISSED. Returned map is keyed by dedup key.
	FindNonTerminalByDedupKeys(ctx context.Context, org string, keys []string) (map[string]domain.Alert, error)
	// Consolidate increments suppressed_count and rewrites metadata/
	// updated_at for an existing alert (the "suppress" branch of §4.6).
	Consolidate(ctx context.Context, org, id string, meta domain.AlertMetadata, now time.Time) (domain.Alert, error)
	UpdateAlertStatus(ctx context.Context, org, id string, status domain.AlertStatus, resolvedBy *string, now time.Time) (domain.Alert, error)
	ListAlerts(ctx context.Context, org string, status *domain.AlertStatus, limit, offset int) ([]domain.Alert, error)
}

// ComplianceListStore persists lists, their entries, and answers the
// batched membership query §4.7 needs.
type ComplianceListStore interface {
	CreateList(ctx context.Context, l domain.ComplianceList) (domain.ComplianceList, error)
	GetListByCode(ctx context.Context, org, code string) (domain.ComplianceList, error)
	ListActive(ctx context.Context, org string) ([]domain.ComplianceList, error)
	CreateEntry(ctx context.Context, e domain.ListEntry) (domain.ListEntry, error)
	DeleteEntry(ctx context.Context, org, listID, id string) error
	// MatchEntries answers "which of these list IDs contain one of these
	// values" in one batched query: list_id IN (...) AND value IN (...).
	// Returned set contains every list_id with at least one hit.
	MatchEntries(ctx context.Context, listIDs []string, values []string) (map[string]bool, error)
}

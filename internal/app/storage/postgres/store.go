// Package postgres implements the storage interfaces against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/complif/rules-engine/internal/app/domain"
	appstorage "github.com/complif/rules-engine/internal/app/storage"
	apperrors "github.com/complif/rules-engine/internal/platform/errors"
	"github.com/complif/rules-engine/pkg/storage/postgres"
)

// Store implements every storage.* interface against a single PostgreSQL
// connection pool, embedding BaseStore per table for transaction-aware
// query execution.
type Store struct {
	db *sql.DB

	templates *postgres.BaseStore
	versions  *postgres.BaseStore
	txs       *postgres.BaseStore
	results   *postgres.BaseStore
	alerts    *postgres.BaseStore
	lists     *postgres.BaseStore
	entries   *postgres.BaseStore
}

// New wires a Store against an already-opened connection pool. Every
// table-scoped field shares one BaseStore: table identity lives in each
// method's SQL, not in the embedded plumbing, so there is nothing
// table-specific to separate per field.
func New(db *sql.DB) *Store {
	base := postgres.NewBaseStore(db)
	return &Store{
		db:        db,
		templates: base,
		versions:  base,
		txs:       base,
		results:   base,
		alerts:    base,
		lists:     base,
		entries:   base,
	}
}

// WithTx runs fn with a single transaction threaded through ctx; every
// BaseStore-backed method called with the returned context participates in
// that same transaction. Used by the ingestion pipeline (§4.10), which
// must persist the transaction, the evaluation result, and any alerts
// atomically.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.templates.WithTx(ctx, fn)
}

// --- rule templates ---

func (s *Store) Create(ctx context.Context, t domain.RuleTemplate) (domain.RuleTemplate, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := t.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	query := `INSERT INTO rule_templates
		(id, organization_id, code, name, category, is_active, is_system, parent_template_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := s.templates.ExecContext(ctx, query, t.ID, t.OrganizationID, t.Code, t.Name, t.Category,
		t.IsActive, t.IsSystem, t.ParentTemplateID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return domain.RuleTemplate{}, fmt.Errorf("insert rule template: %w", err)
	}
	return t, nil
}

func (s *Store) Update(ctx context.Context, t domain.RuleTemplate) (domain.RuleTemplate, error) {
	t.UpdatedAt = time.Now().UTC()
	query := `UPDATE rule_templates SET name=$1, category=$2, is_active=$3, updated_at=$4
		WHERE id=$5 AND organization_id=$6 AND deleted_at IS NULL`
	res, err := s.templates.ExecContext(ctx, query, t.Name, t.Category, t.IsActive, t.UpdatedAt, t.ID, t.OrganizationID)
	if err != nil {
		return domain.RuleTemplate{}, fmt.Errorf("update rule template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.RuleTemplate{}, apperrors.NotFound("rule template", t.ID)
	}
	return t, nil
}

func (s *Store) GetByID(ctx context.Context, org, id string) (domain.RuleTemplate, error) {
	query := `SELECT id, organization_id, code, name, category, is_active, is_system, parent_template_id, created_at, updated_at, deleted_at
		FROM rule_templates WHERE id=$1 AND organization_id=$2 AND deleted_at IS NULL`
	return scanRuleTemplate(s.templates.QueryRowContext(ctx, query, id, org))
}

func (s *Store) GetByCode(ctx context.Context, org, code string) (domain.RuleTemplate, error) {
	query := `SELECT id, organization_id, code, name, category, is_active, is_system, parent_template_id, created_at, updated_at, deleted_at
		FROM rule_templates WHERE code=$1 AND organization_id=$2 AND deleted_at IS NULL`
	return scanRuleTemplate(s.templates.QueryRowContext(ctx, query, code, org))
}

func (s *Store) HasActiveBaseline(ctx context.Context, org string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM rule_templates
		WHERE organization_id=$1 AND is_active AND is_system AND parent_template_id IS NULL AND deleted_at IS NULL)`
	var exists bool
	if err := s.templates.QueryRowContext(ctx, query, org).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active baseline: %w", err)
	}
	return exists, nil
}

func (s *Store) CountActiveBaselines(ctx context.Context, org string) (int, error) {
	query := `SELECT COUNT(*) FROM rule_templates
		WHERE organization_id=$1 AND is_active AND is_system AND parent_template_id IS NULL AND deleted_at IS NULL`
	var n int
	if err := s.templates.QueryRowContext(ctx, query, org).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active baselines: %w", err)
	}
	return n, nil
}

func (s *Store) List(ctx context.Context, org string, limit, offset int) ([]domain.RuleTemplate, error) {
	query := `SELECT id, organization_id, code, name, category, is_active, is_system, parent_template_id, created_at, updated_at, deleted_at
		FROM rule_templates WHERE organization_id=$1 AND deleted_at IS NULL ORDER BY created_at LIMIT $2 OFFSET $3`
	rows, err := s.templates.QueryContext(ctx, query, org, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list rule templates: %w", err)
	}
	defer rows.Close()
	var out []domain.RuleTemplate
	for rows.Next() {
		t, err := scanRuleTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRuleTemplate(row rowScanner) (domain.RuleTemplate, error) {
	var t domain.RuleTemplate
	var category sql.NullString
	var parent sql.NullString
	var deletedAt sql.NullTime
	err := row.Scan(&t.ID, &t.OrganizationID, &t.Code, &t.Name, &category, &t.IsActive, &t.IsSystem,
		&parent, &t.CreatedAt, &t.UpdatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return domain.RuleTemplate{}, apperrors.NotFound("rule template", "")
	}
	if err != nil {
		return domain.RuleTemplate{}, fmt.Errorf("scan rule template: %w", err)
	}
	t.Category = category.String
	t.ParentTemplateID = postgres.NullStringToPtr(parent)
	t.DeletedAt = postgres.NullTimeToPtr(deletedAt)
	return t, nil
}

// --- rule versions ---

func (s *Store) CreateVersion(ctx context.Context, v domain.RuleVersion) (domain.RuleVersion, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.ActivatedAt.IsZero() {
		v.ActivatedAt = v.CreatedAt
	}
	conditionsJSON, err := json.Marshal(v.Conditions)
	if err != nil {
		return domain.RuleVersion{}, fmt.Errorf("marshal conditions: %w", err)
	}
	actionsJSON, err := json.Marshal(v.Actions)
	if err != nil {
		return domain.RuleVersion{}, fmt.Errorf("marshal actions: %w", err)
	}
	var windowJSON []byte
	if v.Window != nil {
		windowJSON, err = json.Marshal(v.Window)
		if err != nil {
			return domain.RuleVersion{}, fmt.Errorf("marshal window: %w", err)
		}
	}
	query := `INSERT INTO rule_versions
		(id, organization_id, rule_template_id, version_number, conditions, actions, window, priority, enabled, activated_at, deactivated_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err = s.versions.ExecContext(ctx, query, v.ID, v.OrganizationID, v.RuleTemplateID, v.VersionNumber,
		conditionsJSON, actionsJSON, windowJSON, v.Priority, v.Enabled, v.ActivatedAt, v.DeactivatedAt, v.CreatedAt)
	if err != nil {
		return domain.RuleVersion{}, fmt.Errorf("insert rule version: %w", err)
	}
	return v, nil
}

func (s *Store) GetVersionByID(ctx context.Context, org, id string) (domain.RuleVersion, error) {
	query := `SELECT id, organization_id, rule_template_id, version_number, conditions, actions, window, priority, enabled, activated_at, deactivated_at, created_at
		FROM rule_versions WHERE id=$1 AND organization_id=$2`
	return scanRuleVersion(s.versions.QueryRowContext(ctx, query, id, org))
}

func scanRuleVersion(row rowScanner) (domain.RuleVersion, error) {
	var v domain.RuleVersion
	var conditionsJSON, actionsJSON, windowJSON []byte
	var deactivatedAt sql.NullTime
	err := row.Scan(&v.ID, &v.OrganizationID, &v.RuleTemplateID, &v.VersionNumber, &conditionsJSON, &actionsJSON,
		&windowJSON, &v.Priority, &v.Enabled, &v.ActivatedAt, &deactivatedAt, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return domain.RuleVersion{}, apperrors.NotFound("rule version", "")
	}
	if err != nil {
		return domain.RuleVersion{}, fmt.Errorf("scan rule version: %w", err)
	}
	if err := json.Unmarshal(conditionsJSON, &v.Conditions); err != nil {
		return domain.RuleVersion{}, fmt.Errorf("unmarshal conditions: %w", err)
	}
	if len(actionsJSON) > 0 {
		if err := json.Unmarshal(actionsJSON, &v.Actions); err != nil {
			return domain.RuleVersion{}, fmt.Errorf("unmarshal actions: %w", err)
		}
	}
	if len(windowJSON) > 0 {
		var w domain.WindowSpec
		if err := json.Unmarshal(windowJSON, &w); err != nil {
			return domain.RuleVersion{}, fmt.Errorf("unmarshal window: %w", err)
		}
		v.Window = &w
	}
	v.DeactivatedAt = postgres.NullTimeToPtr(deactivatedAt)
	return v, nil
}

func (s *Store) NextVersionNumber(ctx context.Context, org, templateID string) (int, error) {
	query := `SELECT COALESCE(MAX(version_number), 0) + 1 FROM rule_versions WHERE organization_id=$1 AND rule_template_id=$2`
	var n int
	if err := s.versions.QueryRowContext(ctx, query, org, templateID).Scan(&n); err != nil {
		return 0, fmt.Errorf("next version number: %w", err)
	}
	return n, nil
}

func (s *Store) ActiveForTemplate(ctx context.Context, org, templateID string) (*domain.RuleVersion, error) {
	query := `SELECT id, organization_id, rule_template_id, version_number, conditions, actions, window, priority, enabled, activated_at, deactivated_at, created_at
		FROM rule_versions WHERE organization_id=$1 AND rule_template_id=$2 AND enabled AND deactivated_at IS NULL
		ORDER BY version_number DESC LIMIT 1`
	v, err := scanRuleVersion(s.versions.QueryRowContext(ctx, query, org, templateID))
	if apperrors.Is(err, apperrors.CodeEntityNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) DeactivateAllForTemplate(ctx context.Context, org, templateID string, now time.Time) (int, error) {
	query := `UPDATE rule_versions SET deactivated_at=$1
		WHERE organization_id=$2 AND rule_template_id=$3 AND deactivated_at IS NULL`
	res, err := s.versions.ExecContext(ctx, query, now, org, templateID)
	if err != nil {
		return 0, fmt.Errorf("deactivate versions for template: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) DeactivateVersion(ctx context.Context, org, id string, now time.Time) error {
	query := `UPDATE rule_versions SET deactivated_at=$1 WHERE id=$2 AND organization_id=$3`
	res, err := s.versions.ExecContext(ctx, query, now, id, org)
	if err != nil {
		return fmt.Errorf("deactivate version: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("rule version", id)
	}
	return nil
}

func (s *Store) FindActiveVersions(ctx context.Context, org string) ([]domain.RuleVersion, error) {
	query := `SELECT id, organization_id, rule_template_id, version_number, conditions, actions, window, priority, enabled, activated_at, deactivated_at, created_at
		FROM rule_versions WHERE organization_id=$1 AND enabled AND deactivated_at IS NULL ORDER BY priority ASC, id ASC`
	rows, err := s.versions.QueryContext(ctx, query, org)
	if err != nil {
		return nil, fmt.Errorf("find active versions: %w", err)
	}
	defer rows.Close()
	var out []domain.RuleVersion
	for rows.Next() {
		v, err := scanRuleVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// --- transactions ---

func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	dataJSON, err := marshalOptionalMap(tx.Data)
	if err != nil {
		return domain.Transaction{}, err
	}
	metaJSON, err := marshalOptionalMap(tx.Metadata)
	if err != nil {
		return domain.Transaction{}, err
	}
	query := `INSERT INTO transactions
		(id, organization_id, account_id, type, amount, currency, amount_normalized, currency_normalized, datetime,
		 country, counterparty_id, channel, subtype, quantity, asset, price, origin, data, metadata, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`
	_, err = s.txs.ExecContext(ctx, query, tx.ID, tx.OrganizationID, tx.AccountID, tx.Type, tx.Amount, tx.Currency,
		tx.AmountNormalized, tx.CurrencyNormalized, tx.DateTime, tx.Country, tx.CounterpartyID, tx.Channel,
		tx.Subtype, tx.Quantity, tx.Asset, tx.Price, tx.Origin, dataJSON, metaJSON, tx.CreatedBy, tx.CreatedAt)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func marshalOptionalMap(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal map: %w", err)
	}
	return b, nil
}

func (s *Store) WindowAggregate(ctx context.Context, org, accountID string, start, end time.Time, excludeID string) (domain.WindowAggregation, error) {
	agg := domain.WindowAggregation{CountByType: map[string]int64{}}
	query := `SELECT COUNT(*), COALESCE(SUM(amount),0), AVG(amount), MAX(amount), MIN(amount)
		FROM transactions
		WHERE organization_id=$1 AND account_id=$2 AND datetime >= $3 AND datetime < $4 AND id != $5`
	var avg, maxV, minV sql.NullFloat64
	err := s.txs.QueryRowContext(ctx, query, org, accountID, start, end, excludeID).
		Scan(&agg.Count, &agg.Sum, &avg, &maxV, &minV)
	if err != nil {
		return domain.WindowAggregation{}, fmt.Errorf("window aggregate: %w", err)
	}
	if avg.Valid {
		v := avg.Float64
		agg.Avg = &v
	}
	if maxV.Valid {
		v := maxV.Float64
		agg.Max = &v
	}
	if minV.Valid {
		v := minV.Float64
		agg.Min = &v
	}

	byType := `SELECT type, COUNT(*) FROM transactions
		WHERE organization_id=$1 AND account_id=$2 AND datetime >= $3 AND datetime < $4 AND id != $5
		GROUP BY type`
	rows, err := s.txs.QueryContext(ctx, byType, org, accountID, start, end, excludeID)
	if err != nil {
		return domain.WindowAggregation{}, fmt.Errorf("window aggregate by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var n int64
		if err := rows.Scan(&t, &n); err != nil {
			return domain.WindowAggregation{}, fmt.Errorf("scan count by type: %w", err)
		}
		agg.CountByType[t] = n
	}
	return agg, rows.Err()
}

func (s *Store) BehavioralHistory(ctx context.Context, org, accountID string, lookbackStart, anchor time.Time, excludeID string) (appstorage.BehavioralHistory, error) {
	var hist appstorage.BehavioralHistory
	query := `SELECT COUNT(*), AVG(amount), STDDEV_POP(amount)
		FROM transactions
		WHERE organization_id=$1 AND account_id=$2 AND datetime >= $3 AND datetime < $4 AND id != $5`
	var avg, std sql.NullFloat64
	if err := s.txs.QueryRowContext(ctx, query, org, accountID, lookbackStart, anchor, excludeID).
		Scan(&hist.Count, &avg, &std); err != nil {
		return hist, fmt.Errorf("behavioral history: %w", err)
	}
	if avg.Valid {
		v := avg.Float64
		hist.AvgAmount = &v
	}
	if std.Valid {
		v := std.Float64
		hist.StdDevAmount = &v
	}

	countriesQuery := `SELECT COALESCE(ARRAY_AGG(DISTINCT country), '{}') FROM transactions
		WHERE organization_id=$1 AND account_id=$2 AND datetime >= $3 AND datetime < $4 AND id != $5 AND country IS NOT NULL`
	if err := s.txs.QueryRowContext(ctx, countriesQuery, org, accountID, lookbackStart, anchor, excludeID).
		Scan(pq.Array(&hist.DistinctCountries)); err != nil {
		return hist, fmt.Errorf("distinct countries: %w", err)
	}
	channelsQuery := `SELECT COALESCE(ARRAY_AGG(DISTINCT channel), '{}') FROM transactions
		WHERE organization_id=$1 AND account_id=$2 AND datetime >= $3 AND datetime < $4 AND id != $5 AND channel IS NOT NULL`
	if err := s.txs.QueryRowContext(ctx, channelsQuery, org, accountID, lookbackStart, anchor, excludeID).
		Scan(pq.Array(&hist.DistinctChannels)); err != nil {
		return hist, fmt.Errorf("distinct channels: %w", err)
	}
	return hist, nil
}

// --- evaluation results ---

func (s *Store) CreateResult(ctx context.Context, r domain.EvaluationResult) (domain.EvaluationResult, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.EvaluatedAt.IsZero() {
		r.EvaluatedAt = time.Now().UTC()
	}
	triggeredJSON, err := json.Marshal(r.TriggeredRules)
	if err != nil {
		return domain.EvaluationResult{}, fmt.Errorf("marshal triggered rules: %w", err)
	}
	allJSON, err := json.Marshal(r.AllRuleResults)
	if err != nil {
		return domain.EvaluationResult{}, fmt.Errorf("marshal all rule results: %w", err)
	}
	actionsJSON, err := json.Marshal(r.Actions)
	if err != nil {
		return domain.EvaluationResult{}, fmt.Errorf("marshal actions: %w", err)
	}
	query := `INSERT INTO evaluation_results
		(id, organization_id, transaction_id, account_id, decision, triggered_rules, all_rule_results, actions, evaluated_at, evaluation_duration_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err = s.results.ExecContext(ctx, query, r.ID, r.OrganizationID, r.TransactionID, r.AccountID, r.Decision,
		triggeredJSON, allJSON, actionsJSON, r.EvaluatedAt, r.EvaluationDurationMS)
	if err != nil {
		return domain.EvaluationResult{}, fmt.Errorf("insert evaluation result: %w", err)
	}
	return r, nil
}

// --- alerts ---

func (s *Store) CreateAlert(ctx context.Context, a domain.Alert) (domain.Alert, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	metaJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("marshal alert metadata: %w", err)
	}
	query := `INSERT INTO alerts
		(id, organization_id, evaluation_result_id, rule_version_id, transaction_id, account_id, dedup_key,
		 severity, category, status, message, metadata, suppressed_count, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	_, err = s.alerts.ExecContext(ctx, query, a.ID, a.OrganizationID, a.EvaluationResultID, a.RuleVersionID,
		a.TransactionID, a.AccountID, a.DedupKey, a.Severity, a.Category, a.Status, a.Message, metaJSON,
		a.SuppressedCount, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("insert alert: %w", err)
	}
	return a, nil
}

func (s *Store) GetAlertByID(ctx context.Context, org, id string) (domain.Alert, error) {
	query := alertSelectColumns + ` FROM alerts WHERE id=$1 AND organization_id=$2`
	return scanAlert(s.alerts.QueryRowContext(ctx, query, id, org))
}

const alertSelectColumns = `SELECT id, organization_id, evaluation_result_id, rule_version_id, transaction_id, account_id,
	dedup_key, severity, category, status, message, metadata, suppressed_count, resolved_at, resolved_by, created_at, updated_at`

func scanAlert(row rowScanner) (domain.Alert, error) {
	var a domain.Alert
	var metaJSON []byte
	var resolvedAt sql.NullTime
	var resolvedBy sql.NullString
	err := row.Scan(&a.ID, &a.OrganizationID, &a.EvaluationResultID, &a.RuleVersionID, &a.TransactionID, &a.AccountID,
		&a.DedupKey, &a.Severity, &a.Category, &a.Status, &a.Message, &metaJSON, &a.SuppressedCount,
		&resolvedAt, &resolvedBy, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.Alert{}, apperrors.NotFound("alert", "")
	}
	if err != nil {
		return domain.Alert{}, fmt.Errorf("scan alert: %w", err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &a.Metadata); err != nil {
			return domain.Alert{}, fmt.Errorf("unmarshal alert metadata: %w", err)
		}
	}
	a.ResolvedAt = postgres.NullTimeToPtr(resolvedAt)
	a.ResolvedBy = postgres.NullStringToPtr(resolvedBy)
	return a, nil
}

func (s *Store) FindNonTerminalByDedupKeys(ctx context.Context, org string, keys []string) (map[string]domain.Alert, error) {
	out := map[string]domain.Alert{}
	if len(keys) == 0 {
		return out, nil
	}
	builder := postgres.NewSelectBuilder("alerts").
		Columns("id", "organization_id", "evaluation_result_id", "rule_version_id", "transaction_id", "account_id",
			"dedup_key", "severity", "category", "status", "message", "metadata", "suppressed_count",
			"resolved_at", "resolved_by", "created_at", "updated_at").
		WhereEq("organization_id", org).
		Where("status NOT IN ('RESOLVED', 'DISMISSED')")
	anyKeys := make([]any, len(keys))
	for i, k := range keys {
		anyKeys[i] = k
	}
	builder.WhereIn("dedup_key", anyKeys)
	query, args := builder.Build()
	rows, err := s.alerts.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find non-terminal alerts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out[a.DedupKey] = a
	}
	return out, rows.Err()
}

func (s *Store) Consolidate(ctx context.Context, org, id string, meta domain.AlertMetadata, now time.Time) (domain.Alert, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("marshal alert metadata: %w", err)
	}
	query := `UPDATE alerts SET suppressed_count = suppressed_count + 1, metadata=$1, updated_at=$2
		WHERE id=$3 AND organization_id=$4`
	res, err := s.alerts.ExecContext(ctx, query, metaJSON, now, id, org)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("consolidate alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Alert{}, apperrors.NotFound("alert", id)
	}
	return s.GetAlertByID(ctx, org, id)
}

func (s *Store) UpdateAlertStatus(ctx context.Context, org, id string, status domain.AlertStatus, resolvedBy *string, now time.Time) (domain.Alert, error) {
	existing, err := s.GetAlertByID(ctx, org, id)
	if err != nil {
		return domain.Alert{}, err
	}
	if !existing.Status.CanTransition(status) {
		return domain.Alert{}, apperrors.InvalidState(string(existing.Status), "illegal alert status transition",
			stringifyStatuses(existing.Status.AllowedNext()))
	}
	var resolvedAt *time.Time
	if status == domain.AlertResolved || status == domain.AlertDismissed {
		t := now
		resolvedAt = &t
	}
	query := `UPDATE alerts SET status=$1, resolved_at=$2, resolved_by=$3, updated_at=$4 WHERE id=$5 AND organization_id=$6`
	if _, err := s.alerts.ExecContext(ctx, query, status, resolvedAt, resolvedBy, now, id, org); err != nil {
		return domain.Alert{}, fmt.Errorf("update alert status: %w", err)
	}
	return s.GetAlertByID(ctx, org, id)
}

func stringifyStatuses(in []domain.AlertStatus) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func (s *Store) ListAlerts(ctx context.Context, org string, status *domain.AlertStatus, limit, offset int) ([]domain.Alert, error) {
	builder := postgres.NewSelectBuilder("alerts").
		Columns("id", "organization_id", "evaluation_result_id", "rule_version_id", "transaction_id", "account_id",
			"dedup_key", "severity", "category", "status", "message", "metadata", "suppressed_count",
			"resolved_at", "resolved_by", "created_at", "updated_at").
		WhereEq("organization_id", org)
	if status != nil {
		builder.WhereEq("status", *status)
	}
	query, args := builder.Build()
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	rows, err := s.alerts.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	var out []domain.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- compliance lists ---

func (s *Store) CreateList(ctx context.Context, l domain.ComplianceList) (domain.ComplianceList, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	query := `INSERT INTO compliance_lists (id, organization_id, code, name, entity_type, polarity, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := s.lists.ExecContext(ctx, query, l.ID, l.OrganizationID, l.Code, l.Name, l.EntityType, l.Polarity, l.IsActive, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return domain.ComplianceList{}, fmt.Errorf("insert compliance list: %w", err)
	}
	return l, nil
}

func (s *Store) GetListByCode(ctx context.Context, org, code string) (domain.ComplianceList, error) {
	query := `SELECT id, organization_id, code, name, entity_type, polarity, is_active, created_at, updated_at
		FROM compliance_lists WHERE organization_id=$1 AND code=$2`
	return scanComplianceList(s.lists.QueryRowContext(ctx, query, org, code))
}

func scanComplianceList(row rowScanner) (domain.ComplianceList, error) {
	var l domain.ComplianceList
	err := row.Scan(&l.ID, &l.OrganizationID, &l.Code, &l.Name, &l.EntityType, &l.Polarity, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.ComplianceList{}, apperrors.NotFound("compliance list", "")
	}
	if err != nil {
		return domain.ComplianceList{}, fmt.Errorf("scan compliance list: %w", err)
	}
	return l, nil
}

func (s *Store) ListActive(ctx context.Context, org string) ([]domain.ComplianceList, error) {
	query := `SELECT id, organization_id, code, name, entity_type, polarity, is_active, created_at, updated_at
		FROM compliance_lists WHERE organization_id=$1 AND is_active`
	rows, err := s.lists.QueryContext(ctx, query, org)
	if err != nil {
		return nil, fmt.Errorf("list active compliance lists: %w", err)
	}
	defer rows.Close()
	var out []domain.ComplianceList
	for rows.Next() {
		l, err := scanComplianceList(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) CreateEntry(ctx context.Context, e domain.ListEntry) (domain.ListEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO list_entries (id, list_id, value, note, created_at) VALUES ($1,$2,$3,$4,$5)`
	_, err := s.entries.ExecContext(ctx, query, e.ID, e.ListID, e.Value, e.Note, e.CreatedAt)
	if err != nil {
		return domain.ListEntry{}, fmt.Errorf("insert list entry: %w", err)
	}
	return e, nil
}

func (s *Store) DeleteEntry(ctx context.Context, org, listID, id string) error {
	query := `DELETE FROM list_entries USING compliance_lists
		WHERE list_entries.id=$1 AND list_entries.list_id=$2
		AND compliance_lists.id = list_entries.list_id AND compliance_lists.organization_id=$3`
	res, err := s.entries.ExecContext(ctx, query, id, listID, org)
	if err != nil {
		return fmt.Errorf("delete list entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("list entry", id)
	}
	return nil
}

func (s *Store) MatchEntries(ctx context.Context, listIDs []string, values []string) (map[string]bool, error) {
	out := map[string]bool{}
	if len(listIDs) == 0 || len(values) == 0 {
		return out, nil
	}
	builder := postgres.NewSelectBuilder("list_entries").Columns("DISTINCT list_id")
	listAny := make([]any, len(listIDs))
	for i, id := range listIDs {
		listAny[i] = id
	}
	builder.WhereIn("list_id", listAny)
	valueAny := make([]any, len(values))
	for i, v := range values {
		valueAny[i] = strings.ToLower(v)
	}
	builder.WhereIn("LOWER(value)", valueAny)
	query, args := builder.Build()
	rows, err := s.entries.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("match list entries: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan matched list id: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

var _ appstorage.RuleTemplateStore = (*Store)(nil)
var _ appstorage.RuleVersionStore = (*Store)(nil)
var _ appstorage.TransactionStore = (*Store)(nil)
var _ appstorage.EvaluationResultStore = (*Store)(nil)
var _ appstorage.AlertStore = (*Store)(nil)
var _ appstorage.ComplianceListStore = (*Store)(nil)

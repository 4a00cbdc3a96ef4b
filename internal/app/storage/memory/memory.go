// Package memory provides in-process implementations of the storage
// interfaces, used by service-layer tests in place of PostgreSQL.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/complif/rules-engine/internal/app/domain"
	"github.com/complif/rules-engine/internal/app/storage"
	apperrors "github.com/complif/rules-engine/internal/platform/errors"
)

// Store implements every storage interface over plain Go maps, guarded by
// a single mutex. It exists for tests; it makes no claim to production
// scalability.
type Store struct {
	mu sync.Mutex

	templates map[string]domain.RuleTemplate
	versions  map[string]domain.RuleVersion
	txs       map[string]domain.Transaction
	results   map[string]domain.EvaluationResult
	alerts    map[string]domain.Alert
	lists     map[string]domain.ComplianceList
	entries   map[string]domain.ListEntry

	seq int
}

// WithTx runs fn directly; the in-memory store has no transaction
// isolation to offer, but it implements the same interface the Postgres
// store's WithTx does so services can be tested against either.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		templates: map[string]domain.RuleTemplate{},
		versions:  map[string]domain.RuleVersion{},
		txs:       map[string]domain.Transaction{},
		results:   map[string]domain.EvaluationResult{},
		alerts:    map[string]domain.Alert{},
		lists:     map[string]domain.ComplianceList{},
		entries:   map[string]domain.ListEntry{},
	}
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return prefix + "-" + itoa(s.seq)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

// --- RuleTemplateStore ---

func (s *Store) Create(ctx context.Context, t domain.RuleTemplate) (domain.RuleTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = s.nextID("tmpl")
	}
	s.templates[t.ID] = t
	return t, nil
}

func (s *Store) Update(ctx context.Context, t domain.RuleTemplate) (domain.RuleTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[t.ID]; !ok {
		return domain.RuleTemplate{}, apperrors.NotFound("rule template", t.ID)
	}
	s.templates[t.ID] = t
	return t, nil
}

func (s *Store) GetByID(ctx context.Context, org, id string) (domain.RuleTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok || t.OrganizationID != org || t.DeletedAt != nil {
		return domain.RuleTemplate{}, apperrors.NotFound("rule template", id)
	}
	return t, nil
}

func (s *Store) GetByCode(ctx context.Context, org, code string) (domain.RuleTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.templates {
		if t.OrganizationID == org && t.Code == code && t.DeletedAt == nil {
			return t, nil
		}
	}
	return domain.RuleTemplate{}, apperrors.NotFound("rule template", code)
}

func (s *Store) HasActiveBaseline(ctx context.Context, org string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.templates {
		if t.OrganizationID == org && t.IsActive && t.DeletedAt == nil && t.IsBaseline() {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) CountActiveBaselines(ctx context.Context, org string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.templates {
		if t.OrganizationID == org && t.IsActive && t.DeletedAt == nil && t.IsBaseline() {
			n++
		}
	}
	return n, nil
}

func (s *Store) List(ctx context.Context, org string, limit, offset int) ([]domain.RuleTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RuleTemplate
	for _, t := range s.templates {
		if t.OrganizationID == org && t.DeletedAt == nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func paginate[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

// --- RuleVersionStore ---

func (s *Store) CreateVersion(ctx context.Context, v domain.RuleVersion) (domain.RuleVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == "" {
		v.ID = s.nextID("rv")
	}
	s.versions[v.ID] = v
	return v, nil
}

func (s *Store) GetVersionByID(ctx context.Context, org, id string) (domain.RuleVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok || v.OrganizationID != org {
		return domain.RuleVersion{}, apperrors.NotFound("rule version", id)
	}
	return v, nil
}

func (s *Store) NextVersionNumber(ctx context.Context, org, templateID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, v := range s.versions {
		if v.OrganizationID == org && v.RuleTemplateID == templateID && v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max + 1, nil
}

func (s *Store) ActiveForTemplate(ctx context.Context, org, templateID string) (*domain.RuleVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.versions {
		if v.OrganizationID == org && v.RuleTemplateID == templateID && v.IsActive() {
			cp := v
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) DeactivateAllForTemplate(ctx context.Context, org, templateID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, v := range s.versions {
		if v.OrganizationID == org && v.RuleTemplateID == templateID && v.DeactivatedAt == nil {
			t := now
			v.DeactivatedAt = &t
			s.versions[id] = v
			n++
		}
	}
	return n, nil
}

func (s *Store) DeactivateVersion(ctx context.Context, org, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok || v.OrganizationID != org {
		return apperrors.NotFound("rule version", id)
	}
	t := now
	v.DeactivatedAt = &t
	s.versions[id] = v
	return nil
}

func (s *Store) FindActiveVersions(ctx context.Context, org string) ([]domain.RuleVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RuleVersion
	for _, v := range s.versions {
		if v.OrganizationID == org && v.IsActive() {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// --- TransactionStore ---

func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = s.nextID("txn")
	}
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *Store) WindowAggregate(ctx context.Context, org, accountID string, start, end time.Time, excludeID string) (domain.WindowAggregation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agg := domain.WindowAggregation{CountByType: map[string]int64{}}
	var sum float64
	var maxV, minV float64
	first := true
	for _, tx := range s.txs {
		if tx.OrganizationID != org || tx.AccountID != accountID || tx.ID == excludeID {
			continue
		}
		if tx.DateTime.Before(start) || !tx.DateTime.Before(end) {
			continue
		}
		agg.Count++
		sum += tx.Amount
		agg.CountByType[tx.Type]++
		if first || tx.Amount > maxV {
			maxV = tx.Amount
		}
		if first || tx.Amount < minV {
			minV = tx.Amount
		}
		first = false
	}
	agg.Sum = sum
	if agg.Count > 0 {
		avg := sum / float64(agg.Count)
		agg.Avg = &avg
		mx, mn := maxV, minV
		agg.Max = &mx
		agg.Min = &mn
	}
	return agg, nil
}

func (s *Store) BehavioralHistory(ctx context.Context, org, accountID string, lookbackStart, anchor time.Time, excludeID string) (storage.BehavioralHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var amounts []float64
	countrySet := map[string]bool{}
	channelSet := map[string]bool{}
	for _, tx := range s.txs {
		if tx.OrganizationID != org || tx.AccountID != accountID || tx.ID == excludeID {
			continue
		}
		if tx.DateTime.Before(lookbackStart) || !tx.DateTime.Before(anchor) {
			continue
		}
		amounts = append(amounts, tx.Amount)
		if tx.Country != nil {
			countrySet[*tx.Country] = true
		}
		if tx.Channel != nil {
			channelSet[*tx.Channel] = true
		}
	}
	hist := storage.BehavioralHistory{Count: len(amounts)}
	if len(amounts) > 0 {
		var sum float64
		for _, a := range amounts {
			sum += a
		}
		avg := sum / float64(len(amounts))
		hist.AvgAmount = &avg
		var sqDiff float64
		for _, a := range amounts {
			sqDiff += (a - avg) * (a - avg)
		}
		std := math.Sqrt(sqDiff / float64(len(amounts)))
		hist.StdDevAmount = &std
	}
	hist.DistinctCountries = keys(countrySet)
	hist.DistinctChannels = keys(channelSet)
	return hist, nil
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// --- EvaluationResultStore ---

func (s *Store) CreateResult(ctx context.Context, r domain.EvaluationResult) (domain.EvaluationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = s.nextID("eval")
	}
	s.results[r.ID] = r
	return r, nil
}

// --- AlertStore ---

func (s *Store) CreateAlert(ctx context.Context, a domain.Alert) (domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = s.nextID("alert")
	}
	s.alerts[a.ID] = a
	return a, nil
}

func (s *Store) GetAlertByID(ctx context.Context, org, id string) (domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.OrganizationID != org {
		return domain.Alert{}, apperrors.NotFound("alert", id)
	}
	return a, nil
}

func (s *Store) FindNonTerminalByDedupKeys(ctx context.Context, org string, keys []string) (map[string]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]bool{}
	for _, k := range keys {
		want[k] = true
	}
	out := map[string]domain.Alert{}
	for _, a := range s.alerts {
		if a.OrganizationID == org && want[a.DedupKey] && !a.Status.IsTerminal() {
			out[a.DedupKey] = a
		}
	}
	return out, nil
}

func (s *Store) Consolidate(ctx context.Context, org, id string, meta domain.AlertMetadata, now time.Time) (domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.OrganizationID != org {
		return domain.Alert{}, apperrors.NotFound("alert", id)
	}
	a.SuppressedCount++
	a.Metadata = meta
	a.UpdatedAt = now
	s.alerts[id] = a
	return a, nil
}

func (s *Store) UpdateAlertStatus(ctx context.Context, org, id string, status domain.AlertStatus, resolvedBy *string, now time.Time) (domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.OrganizationID != org {
		return domain.Alert{}, apperrors.NotFound("alert", id)
	}
	if !a.Status.CanTransition(status) {
		return domain.Alert{}, apperrors.InvalidState(string(a.Status), "illegal alert status transition", stringifyStatuses(a.Status.AllowedNext()))
	}
	a.Status = status
	a.UpdatedAt = now
	if status == domain.AlertResolved || status == domain.AlertDismissed {
		t := now
		a.ResolvedAt = &t
		a.ResolvedBy = resolvedBy
	}
	s.alerts[id] = a
	return a, nil
}

func stringifyStatuses(in []domain.AlertStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func (s *Store) ListAlerts(ctx context.Context, org string, status *domain.AlertStatus, limit, offset int) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Alert
	for _, a := range s.alerts {
		if a.OrganizationID != org {
			continue
		}
		if status != nil && a.Status != *status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

// --- ComplianceListStore ---

func (s *Store) CreateList(ctx context.Context, l domain.ComplianceList) (domain.ComplianceList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = s.nextID("list")
	}
	s.lists[l.ID] = l
	return l, nil
}

func (s *Store) GetListByCode(ctx context.Context, org, code string) (domain.ComplianceList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lists {
		if l.OrganizationID == org && l.Code == code {
			return l, nil
		}
	}
	return domain.ComplianceList{}, apperrors.NotFound("compliance list", code)
}

func (s *Store) ListActive(ctx context.Context, org string) ([]domain.ComplianceList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ComplianceList
	for _, l := range s.lists {
		if l.OrganizationID == org && l.IsActive {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) CreateEntry(ctx context.Context, e domain.ListEntry) (domain.ListEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = s.nextID("entry")
	}
	s.entries[e.ID] = e
	return e, nil
}

func (s *Store) DeleteEntry(ctx context.Context, org, listID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.ListID != listID {
		return apperrors.NotFound("list entry", id)
	}
	delete(s.entries, id)
	return nil
}

func (s *Store) MatchEntries(ctx context.Context, listIDs []string, values []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listSet := map[string]bool{}
	for _, id := range listIDs {
		listSet[id] = true
	}
	valueSet := map[string]bool{}
	for _, v := range values {
		valueSet[strings.ToLower(v)] = true
	}
	out := map[string]bool{}
	for _, e := range s.entries {
		if listSet[e.ListID] && valueSet[strings.ToLower(e.Value)] {
			out[e.ListID] = true
		}
	}
	return out, nil
}

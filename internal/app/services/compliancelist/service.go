// Package compliancelist implements the Compliance List Service (spec
// §4.7): list/entry CRUD and the batched list-fact resolution the
// evaluation pipeline consumes on every transaction.
package compliancelist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/complif/rules-engine/internal/app/cache"
	"github.com/complif/rules-engine/internal/app/domain"
	"github.com/complif/rules-engine/internal/app/storage"
	apperrors "github.com/complif/rules-engine/internal/platform/errors"
)

// Service implements compliance list CRUD and fact resolution.
type Service struct {
	store storage.ComplianceListStore
	cache *cache.Store
}

// New builds a Service. listFactsCache may be nil to disable caching.
func New(store storage.ComplianceListStore, listFactsCache *cache.Store) *Service {
	return &Service{store: store, cache: listFactsCache}
}

// FactsCacheKey hashes the lookup triple into the cache key used by
// resolveListFacts, per spec §4.7 step 1.
func FactsCacheKey(org, country, accountID, counterpartyID string) string {
	h := sha256.New()
	h.Write([]byte(org))
	h.Write([]byte{0})
	h.Write([]byte(country))
	h.Write([]byte{0})
	h.Write([]byte(accountID))
	h.Write([]byte{0})
	h.Write([]byte(counterpartyID))
	return "list-facts:" + org + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// CreateList persists a new compliance list.
func (s *Service) CreateList(ctx context.Context, l domain.ComplianceList) (domain.ComplianceList, error) {
	if l.OrganizationID == "" {
		return domain.ComplianceList{}, apperrors.OrganizationRequired()
	}
	if l.Code == "" || l.Name == "" {
		return domain.ComplianceList{}, apperrors.Validation("code and name are required")
	}
	l.IsActive = true
	created, err := s.store.CreateList(ctx, l)
	if err != nil {
		return domain.ComplianceList{}, err
	}
	s.invalidate(l.OrganizationID)
	return created, nil
}

// AddEntry appends a value to a list and invalidates the org's list-facts
// cache.
func (s *Service) AddEntry(ctx context.Context, org string, entry domain.ListEntry) (domain.ListEntry, error) {
	if entry.Value == "" {
		return domain.ListEntry{}, apperrors.Validation("entry value is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	created, err := s.store.CreateEntry(ctx, entry)
	if err != nil {
		return domain.ListEntry{}, err
	}
	s.invalidate(org)
	return created, nil
}

// RemoveEntry deletes an entry and invalidates the org's list-facts cache.
func (s *Service) RemoveEntry(ctx context.Context, org, listID, id string) error {
	if err := s.store.DeleteEntry(ctx, org, listID, id); err != nil {
		return err
	}
	s.invalidate(org)
	return nil
}

// ListLists returns every active compliance list for the organization.
func (s *Service) ListLists(ctx context.Context, org string) ([]domain.ComplianceList, error) {
	return s.store.ListActive(ctx, org)
}

// GetListByCode returns the list identified by code within org.
func (s *Service) GetListByCode(ctx context.Context, org, code string) (domain.ComplianceList, error) {
	return s.store.GetListByCode(ctx, org, code)
}

// ListInput is the projection query for ResolveListFacts.
type ListInput struct {
	Country        string
	AccountID      string
	CounterpartyID string
}

// ResolveListFacts implements the protocol in spec §4.7: cache-first,
// project the relevant attribute per list's entity_type, then issue one
// batched membership query and fan the result back out per list.
func (s *Service) ResolveListFacts(ctx context.Context, org string, in ListInput) (domain.ListFacts, error) {
	key := FactsCacheKey(org, in.Country, in.AccountID, in.CounterpartyID)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			if facts, ok := cached.(domain.ListFacts); ok {
				return facts, nil
			}
		}
	}

	lists, err := s.store.ListActive(ctx, org)
	if err != nil {
		return domain.ListFacts{}, err
	}

	type candidate struct {
		list  domain.ComplianceList
		value string
	}
	var candidates []candidate
	facts := domain.ListFacts{Blacklists: map[string]bool{}, Whitelists: map[string]bool{}}

	for _, l := range lists {
		value, ok := projectAttribute(l.EntityType, in)
		if !ok {
			// Null projection resolves to false without querying.
			setPolarity(&facts, l, false)
			continue
		}
		candidates = append(candidates, candidate{list: l, value: value})
	}

	if len(candidates) > 0 {
		listIDs := make([]string, len(candidates))
		values := make([]string, len(candidates))
		for i, c := range candidates {
			listIDs[i] = c.list.ID
			values[i] = c.value
		}
		hits, err := s.store.MatchEntries(ctx, listIDs, values)
		if err != nil {
			return domain.ListFacts{}, err
		}
		for _, c := range candidates {
			setPolarity(&facts, c.list, hits[c.list.ID])
		}
	}

	if s.cache != nil {
		s.cache.Set(key, facts)
	}
	return facts, nil
}

func projectAttribute(entityType domain.ListEntityType, in ListInput) (string, bool) {
	switch entityType {
	case domain.EntityCountry:
		if in.Country == "" {
			return "", false
		}
		return in.Country, true
	case domain.EntityAccount:
		if in.AccountID == "" {
			return "", false
		}
		return in.AccountID, true
	case domain.EntityCounterparty:
		if in.CounterpartyID == "" {
			return "", false
		}
		return in.CounterpartyID, true
	default:
		return "", false
	}
}

func setPolarity(facts *domain.ListFacts, l domain.ComplianceList, hit bool) {
	switch l.Polarity {
	case domain.PolarityBlacklist:
		facts.Blacklists[l.Code] = hit
		if hit {
			facts.IsBlacklisted = true
		}
	case domain.PolarityWhitelist:
		facts.Whitelists[l.Code] = hit
		if hit {
			facts.IsWhitelisted = true
		}
	}
}

func (s *Service) invalidate(org string) {
	if s.cache == nil {
		return
	}
	s.cache.InvalidatePrefix("list-facts:" + org)
}

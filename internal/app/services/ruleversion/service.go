// Package ruleversion implements the Rule Version Service (spec §4.4):
// the transactional create/deactivate protocol for immutable rule version
// snapshots, and the pure conflict selector used for sanity tests.
package ruleversion

import (
	"context"
	"time"

	"github.com/complif/rules-engine/internal/app/cache"
	"github.com/complif/rules-engine/internal/app/condition"
	"github.com/complif/rules-engine/internal/app/domain"
	"github.com/complif/rules-engine/internal/app/storage"
	apperrors "github.com/complif/rules-engine/internal/platform/errors"
	"github.com/sirupsen/logrus"
)

// CreateInput is the caller-supplied shape for Create.
type CreateInput struct {
	OrganizationID string
	RuleTemplateID string
	Conditions     domain.Node
	Actions        []domain.Action
	Window         *domain.WindowSpec
	Priority       int
	Enabled        bool
}

// Service implements rule version lifecycle operations.
type Service struct {
	versions  storage.RuleVersionStore
	templates storage.RuleTemplateStore
	cache     *cache.Store
	log       *logrus.Entry
}

// New builds a Service. activeRulesCache may be nil, in which case cache
// invalidation is a no-op (used in tests); otherwise it is the same
// in-process cache.Store the evaluation service reads active rules from.
func New(versions storage.RuleVersionStore, templates storage.RuleTemplateStore, activeRulesCache *cache.Store, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Service{versions: versions, templates: templates, cache: activeRulesCache, log: log}
}

// ActiveRulesCacheKey is the key the evaluation service's read-through
// cache uses per organization; exported so it stays in lockstep with the
// invalidation done here.
func ActiveRulesCacheKey(org string) string {
	return "active-rules:" + org
}

// Create runs the 8-step transactional protocol from spec §4.4.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.RuleVersion, error) {
	if in.OrganizationID == "" {
		return domain.RuleVersion{}, apperrors.OrganizationRequired()
	}

	// 1. Load template in same org.
	tmpl, err := s.templates.GetByID(ctx, in.OrganizationID, in.RuleTemplateID)
	if err != nil {
		return domain.RuleVersion{}, err
	}
	if !tmpl.IsActive {
		return domain.RuleVersion{}, apperrors.BusinessRule("rule template is not active")
	}

	// 2. Validate input conditions structure.
	if result := condition.Validate(in.Conditions); !result.Valid {
		return domain.RuleVersion{}, apperrors.Validation("invalid condition tree: " + result.Errors[0].Message)
	}

	// 3. Inheritance merge with parent's active version, if any.
	effective := in.Conditions
	if tmpl.ParentTemplateID != nil {
		parentActive, err := s.versions.ActiveForTemplate(ctx, in.OrganizationID, *tmpl.ParentTemplateID)
		if err != nil {
			return domain.RuleVersion{}, err
		}
		if parentActive != nil {
			effective = domain.Node{All: []domain.Node{parentActive.Conditions, in.Conditions}}
		}
	}

	// 4. Re-validate merged conditions.
	if result := condition.Validate(effective); !result.Valid {
		return domain.RuleVersion{}, apperrors.Validation("invalid merged condition tree: " + result.Errors[0].Message)
	}

	// 5. Compute next version number.
	versionNumber, err := s.versions.NextVersionNumber(ctx, in.OrganizationID, in.RuleTemplateID)
	if err != nil {
		return domain.RuleVersion{}, err
	}

	now := time.Now().UTC()

	// 6. If the new version would be enabled, deactivate every prior
	// active version of the same template, atomically preserving the
	// at-most-one-active-per-template invariant.
	if in.Enabled {
		if _, err := s.versions.DeactivateAllForTemplate(ctx, in.OrganizationID, in.RuleTemplateID, now); err != nil {
			return domain.RuleVersion{}, err
		}
	}

	// 7. Insert the new version.
	v := domain.RuleVersion{
		OrganizationID: in.OrganizationID,
		RuleTemplateID: in.RuleTemplateID,
		VersionNumber:  versionNumber,
		Conditions:     effective,
		Actions:        in.Actions,
		Window:         in.Window,
		Priority:       in.Priority,
		Enabled:        in.Enabled,
		ActivatedAt:    now,
		CreatedAt:      now,
	}
	created, err := s.versions.CreateVersion(ctx, v)
	if err != nil {
		return domain.RuleVersion{}, err
	}

	// 8. Invalidate the organization's active-rules cache.
	s.invalidate(in.OrganizationID)

	s.log.WithFields(logrus.Fields{
		"rule_version_id": created.ID, "template_id": in.RuleTemplateID, "org": in.OrganizationID,
	}).Info("rule version created")
	return created, nil
}

// Deactivate fails if the version is already deactivated; otherwise it
// stamps deactivated_at and invalidates the cache.
func (s *Service) Deactivate(ctx context.Context, org, id string) (domain.RuleVersion, error) {
	v, err := s.versions.GetVersionByID(ctx, org, id)
	if err != nil {
		return domain.RuleVersion{}, err
	}
	if v.DeactivatedAt != nil {
		return domain.RuleVersion{}, apperrors.InvalidState("DEACTIVATED", "rule version is already deactivated", nil)
	}
	now := time.Now().UTC()
	if err := s.versions.DeactivateVersion(ctx, org, id, now); err != nil {
		return domain.RuleVersion{}, err
	}
	v.DeactivatedAt = &now
	s.invalidate(org)
	s.log.WithFields(logrus.Fields{"rule_version_id": id, "org": org}).Info("rule version deactivated")
	return v, nil
}

// FindActiveVersions returns the org's active versions ordered by priority
// ascending. It does not re-enforce "one per template" — that invariant
// belongs to Create, not to this read path.
func (s *Service) FindActiveVersions(ctx context.Context, org string) ([]domain.RuleVersion, error) {
	return s.versions.FindActiveVersions(ctx, org)
}

func (s *Service) invalidate(org string) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ActiveRulesCacheKey(org))
}

// ValidateNoConflicts is a pure sanity check: at most one version per
// template may have deactivated_at == nil in the given set. It considers
// only deactivated_at, not enabled — a disabled-but-not-deactivated
// version still counts as "not yet retired" for this check, matching the
// ambiguity spec §9 leaves open rather than resolving it.
func ValidateNoConflicts(versions []domain.RuleVersion) bool {
	seen := map[string]bool{}
	for _, v := range versions {
		if v.DeactivatedAt != nil {
			continue
		}
		if seen[v.RuleTemplateID] {
			return false
		}
		seen[v.RuleTemplateID] = true
	}
	return true
}

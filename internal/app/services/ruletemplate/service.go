// Package ruletemplate implements the Rule Template Service (spec §4.5):
// template identity, lineage, and baseline management.
package ruletemplate

import (
	"context"
	"time"

	"github.com/complif/rules-engine/internal/app/domain"
	"github.com/complif/rules-engine/internal/app/storage"
	apperrors "github.com/complif/rules-engine/internal/platform/errors"
	"github.com/sirupsen/logrus"
)

const maxInheritanceDepth = 10

// CreateInput is the caller-supplied shape for Create.
type CreateInput struct {
	OrganizationID   string
	Code             string
	Name             string
	Category         string
	IsSystem         bool
	ParentTemplateID *string
}

// Service implements rule template lifecycle operations.
type Service struct {
	store storage.RuleTemplateStore
	log   *logrus.Entry
}

// New builds a Service over store, logging through log (or a no-op entry
// if log is nil).
func New(store storage.RuleTemplateStore, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Service{store: store, log: log}
}

// Create validates and persists a new rule template.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.RuleTemplate, error) {
	if in.OrganizationID == "" {
		return domain.RuleTemplate{}, apperrors.OrganizationRequired()
	}
	if in.Code == "" || in.Name == "" {
		return domain.RuleTemplate{}, apperrors.Validation("code and name are required")
	}
	if _, err := s.store.GetByCode(ctx, in.OrganizationID, in.Code); err == nil {
		return domain.RuleTemplate{}, apperrors.Duplicate("a rule template with this code already exists")
	} else if !apperrors.Is(err, apperrors.CodeEntityNotFound) {
		return domain.RuleTemplate{}, err
	}

	if in.IsSystem && in.ParentTemplateID != nil {
		return domain.RuleTemplate{}, apperrors.Validation("a system template cannot declare a parent")
	}

	isBaseline := in.IsSystem && in.ParentTemplateID == nil
	if !isBaseline {
		hasBaseline, err := s.store.HasActiveBaseline(ctx, in.OrganizationID)
		if err != nil {
			return domain.RuleTemplate{}, err
		}
		if !hasBaseline {
			return domain.RuleTemplate{}, apperrors.BusinessRule("BASELINE_REQUIRED: organization has no active baseline template")
		}
	}

	if in.ParentTemplateID != nil {
		if err := s.validateParent(ctx, in.OrganizationID, *in.ParentTemplateID); err != nil {
			return domain.RuleTemplate{}, err
		}
	}

	now := time.Now().UTC()
	t := domain.RuleTemplate{
		OrganizationID:   in.OrganizationID,
		Code:             in.Code,
		Name:             in.Name,
		Category:         in.Category,
		IsActive:         true,
		IsSystem:         in.IsSystem,
		ParentTemplateID: in.ParentTemplateID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	created, err := s.store.Create(ctx, t)
	if err != nil {
		return domain.RuleTemplate{}, err
	}
	s.log.WithFields(logrus.Fields{"template_id": created.ID, "org": in.OrganizationID}).Info("rule template created")
	return created, nil
}

// validateParent checks the parent exists, is active, and that following
// its chain from here does not produce a cycle within maxInheritanceDepth.
func (s *Service) validateParent(ctx context.Context, org, parentID string) error {
	parent, err := s.store.GetByID(ctx, org, parentID)
	if err != nil {
		return err
	}
	if !parent.IsActive {
		return apperrors.BusinessRule("parent template is not active")
	}

	visited := map[string]bool{parentID: true}
	current := parent
	for depth := 0; depth < maxInheritanceDepth; depth++ {
		if current.ParentTemplateID == nil {
			return nil
		}
		next := *current.ParentTemplateID
		if visited[next] {
			return apperrors.BusinessRule("template inheritance chain contains a cycle")
		}
		visited[next] = true
		current, err = s.store.GetByID(ctx, org, next)
		if err != nil {
			return err
		}
	}
	return apperrors.BusinessRule("template inheritance chain exceeds maximum depth")
}

// Deactivate marks a template inactive, refusing to remove the
// organization's last active baseline.
func (s *Service) Deactivate(ctx context.Context, org, id string) (domain.RuleTemplate, error) {
	t, err := s.store.GetByID(ctx, org, id)
	if err != nil {
		return domain.RuleTemplate{}, err
	}
	if t.IsBaseline() {
		count, err := s.store.CountActiveBaselines(ctx, org)
		if err != nil {
			return domain.RuleTemplate{}, err
		}
		if count <= 1 {
			return domain.RuleTemplate{}, apperrors.BusinessRule("BASELINE_REQUIRED: cannot deactivate the last active baseline template")
		}
	}
	t.IsActive = false
	t.UpdatedAt = time.Now().UTC()
	updated, err := s.store.Update(ctx, t)
	if err != nil {
		return domain.RuleTemplate{}, err
	}
	s.log.WithFields(logrus.Fields{"template_id": id, "org": org}).Info("rule template deactivated")
	return updated, nil
}

// Get returns a single template by id.
func (s *Service) Get(ctx context.Context, org, id string) (domain.RuleTemplate, error) {
	return s.store.GetByID(ctx, org, id)
}

// List returns an organization's templates, oldest first (created_at
// ascending).
func (s *Service) List(ctx context.Context, org string, limit, offset int) ([]domain.RuleTemplate, error) {
	return s.store.List(ctx, org, limit, offset)
}

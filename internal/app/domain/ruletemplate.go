package domain

import "time"

// RuleTemplate is the identity of a rule within an organization. Versions
// are the evaluable content; the template only tracks lineage and
// activation state.
type RuleTemplate struct {
	ID               string     `db:"id" json:"id"`
	OrganizationID   string     `db:"organization_id" json:"organizationId"`
	Code             string     `db:"code" json:"code"`
	Name             string     `db:"name" json:"name"`
	Category         string     `db:"category" json:"category,omitempty"`
	IsActive         bool       `db:"is_active" json:"isActive"`
	IsSystem         bool       `db:"is_system" json:"isSystem"`
	ParentTemplateID *string    `db:"parent_template_id" json:"parentTemplateId,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
	DeletedAt        *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
}

// IsBaseline reports whether t is a baseline template: system-owned with no
// parent. At least one baseline must exist per organization before any
// non-system template may be created.
func (t RuleTemplate) IsBaseline() bool {
	return t.IsSystem && t.ParentTemplateID == nil
}

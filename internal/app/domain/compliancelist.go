package domain

import "time"

// ListEntityType is the attribute a compliance list is checked against.
type ListEntityType string

const (
	EntityCountry      ListEntityType = "COUNTRY"
	EntityAccount      ListEntityType = "ACCOUNT"
	EntityCounterparty ListEntityType = "COUNTERPARTY"
)

// ListPolarity is whether membership denies or allows.
type ListPolarity string

const (
	PolarityBlacklist ListPolarity = "BLACKLIST"
	PolarityWhitelist ListPolarity = "WHITELIST"
)

// ComplianceList is a per-organization, typed collection of entries.
type ComplianceList struct {
	ID             string         `db:"id" json:"id"`
	OrganizationID string         `db:"organization_id" json:"organizationId"`
	Code           string         `db:"code" json:"code"`
	Name           string         `db:"name" json:"name"`
	EntityType     ListEntityType `db:"entity_type" json:"entityType"`
	Polarity       ListPolarity   `db:"polarity" json:"polarity"`
	IsActive       bool           `db:"is_active" json:"isActive"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

// ListEntry is one value within a ComplianceList, unique within the list.
type ListEntry struct {
	ID        string    `db:"id" json:"id"`
	ListID    string    `db:"list_id" json:"listId"`
	Value     string    `db:"value" json:"value"`
	Note      string    `db:"note" json:"note,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// ListFacts is the fact-bundle projection of list membership for a single
// (country, accountId, counterpartyId) triple.
type ListFacts struct {
	Blacklists     map[string]bool `json:"blacklists"`
	Whitelists     map[string]bool `json:"whitelists"`
	IsBlacklisted  bool            `json:"isBlacklisted"`
	IsWhitelisted  bool            `json:"isWhitelisted"`
}

package domain

import "time"

// Transaction is a persisted financial event. The core never updates a
// transaction after ingestion; DateTime is the canonical event time that
// every evaluation and window anchors to, never wall-clock.
type Transaction struct {
	ID                 string         `db:"id" json:"id"`
	OrganizationID      string         `db:"organization_id" json:"organizationId"`
	AccountID           string         `db:"account_id" json:"accountId"`
	Type                string         `db:"type" json:"type"`
	Amount              float64        `db:"amount" json:"amount"`
	Currency            string         `db:"currency" json:"currency"`
	AmountNormalized    *float64       `db:"amount_normalized" json:"amountNormalized,omitempty"`
	CurrencyNormalized  *string        `db:"currency_normalized" json:"currencyNormalized,omitempty"`
	DateTime            time.Time      `db:"datetime" json:"datetime"`
	Country             *string        `db:"country" json:"country,omitempty"`
	CounterpartyID      *string        `db:"counterparty_id" json:"counterpartyId,omitempty"`
	Channel             *string        `db:"channel" json:"channel,omitempty"`
	Subtype             *string        `db:"subtype" json:"subtype,omitempty"`
	Quantity            *float64       `db:"quantity" json:"quantity,omitempty"`
	Asset               *string        `db:"asset" json:"asset,omitempty"`
	Price               *float64       `db:"price" json:"price,omitempty"`
	Origin              *string        `db:"origin" json:"origin,omitempty"`
	Data                map[string]any `db:"data" json:"data,omitempty"`
	Metadata            map[string]any `db:"metadata" json:"metadata,omitempty"`
	CreatedBy           *string        `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"createdAt"`
}

package httpapi

import (
	"net/http"
	"time"

	"github.com/complif/rules-engine/internal/app/domain"
	"github.com/complif/rules-engine/internal/app/services/evaluation"
	apperrors "github.com/complif/rules-engine/internal/platform/errors"
)

// ingestTransaction is the single entry point for spec §4.10: it persists a
// transaction, evaluates every active rule against it, and returns the
// resolved decision plus any alerts the evaluation produced or suppressed.
func (h *Handler) ingestTransaction(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		AccountID          string          `json:"accountId"`
		Type               string          `json:"type"`
		Amount             float64         `json:"amount"`
		Currency           string          `json:"currency"`
		AmountNormalized   *float64        `json:"amountNormalized"`
		CurrencyNormalized *string         `json:"currencyNormalized"`
		DateTime           *time.Time      `json:"datetime"`
		Country            *string         `json:"country"`
		CounterpartyID     *string         `json:"counterpartyId"`
		Channel            *string         `json:"channel"`
		Subtype            *string         `json:"subtype"`
		Quantity           *float64        `json:"quantity"`
		Asset              *string         `json:"asset"`
		Price              *float64        `json:"price"`
		Origin             *string         `json:"origin"`
		Data               map[string]any  `json:"data"`
		Metadata           map[string]any  `json:"metadata"`
		CreatedBy          *string         `json:"createdBy"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeServiceError(w, apperrors.Validation("invalid request body"))
		return
	}
	if payload.AccountID == "" || payload.Currency == "" {
		writeServiceError(w, apperrors.Validation("accountId and currency are required"))
		return
	}
	dt := time.Now().UTC()
	if payload.DateTime != nil {
		dt = payload.DateTime.UTC()
	}

	tx := domain.Transaction{
		OrganizationID:     orgFromContext(r.Context()),
		AccountID:          payload.AccountID,
		Type:               payload.Type,
		Amount:             payload.Amount,
		Currency:           payload.Currency,
		AmountNormalized:   payload.AmountNormalized,
		CurrencyNormalized: payload.CurrencyNormalized,
		DateTime:           dt,
		Country:            payload.Country,
		CounterpartyID:     payload.CounterpartyID,
		Channel:            payload.Channel,
		Subtype:            payload.Subtype,
		Quantity:           payload.Quantity,
		Asset:              payload.Asset,
		Price:              payload.Price,
		Origin:             payload.Origin,
		Data:               payload.Data,
		Metadata:           payload.Metadata,
		CreatedBy:          payload.CreatedBy,
	}

	result, alerts, err := h.evaluation.IngestAndEvaluate(r.Context(), orgFromContext(r.Context()), evaluation.Input{Transaction: tx})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Result domain.EvaluationResult `json:"result"`
		Alerts []domain.Alert          `json:"alerts"`
	}{Result: result, Alerts: alerts})
}

package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/complif/rules-engine/internal/app/condition"
	"github.com/complif/rules-engine/internal/app/domain"
	"github.com/complif/rules-engine/internal/app/services/ruleversion"
	apperrors "github.com/complif/rules-engine/internal/platform/errors"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) createRuleVersion(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RuleTemplateID string             `json:"ruleTemplateId"`
		Conditions     json.RawMessage    `json:"conditions"`
		Actions        []domain.Action    `json:"actions"`
		Window         *domain.WindowSpec `json:"window"`
		Priority       int                `json:"priority"`
		Enabled        bool               `json:"enabled"`
	}
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		writeServiceError(w, apperrors.Validation("invalid request body"))
		return
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeServiceError(w, apperrors.Validation("invalid request body"))
		return
	}
	// Cheap shape check ahead of the strict domain.Node unmarshal below,
	// so a malformed condition tree fails with a precise path instead of
	// a generic "json: cannot unmarshal" error.
	if err := condition.ValidateRawShape(payload.Conditions); err != nil {
		writeServiceError(w, apperrors.Validation(err.Error()))
		return
	}
	var conditions domain.Node
	if err := json.Unmarshal(payload.Conditions, &conditions); err != nil {
		writeServiceError(w, apperrors.Validation("invalid condition tree: "+err.Error()))
		return
	}
	created, err := h.ruleVersions.Create(r.Context(), ruleversion.CreateInput{
		OrganizationID: orgFromContext(r.Context()),
		RuleTemplateID: payload.RuleTemplateID,
		Conditions:     conditions,
		Actions:        payload.Actions,
		Window:         payload.Window,
		Priority:       payload.Priority,
		Enabled:        payload.Enabled,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) deactivateRuleVersion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	updated, err := h.ruleVersions.Deactivate(r.Context(), orgFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) listActiveRuleVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.ruleVersions.FindActiveVersions(r.Context(), orgFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

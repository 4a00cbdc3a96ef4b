package httpapi

import (
	"net/http"

	"github.com/complif/rules-engine/internal/app/services/ruletemplate"
	apperrors "github.com/complif/rules-engine/internal/platform/errors"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) createRuleTemplate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code             string  `json:"code"`
		Name             string  `json:"name"`
		Category         string  `json:"category"`
		IsSystem         bool    `json:"isSystem"`
		ParentTemplateID *string `json:"parentTemplateId"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeServiceError(w, apperrors.Validation("invalid request body"))
		return
	}
	created, err := h.ruleTemplates.Create(r.Context(), ruletemplate.CreateInput{
		OrganizationID:   orgFromContext(r.Context()),
		Code:             payload.Code,
		Name:             payload.Name,
		Category:         payload.Category,
		IsSystem:         payload.IsSystem,
		ParentTemplateID: payload.ParentTemplateID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) getRuleTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tmpl, err := h.ruleTemplates.Get(r.Context(), orgFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

func (h *Handler) listRuleTemplates(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimitParam(r.URL.Query().Get("limit"), 0)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	offset, err := parseOffsetParam(r.URL.Query().Get("offset"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	templates, err := h.ruleTemplates.List(r.Context(), orgFromContext(r.Context()), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *Handler) deactivateRuleTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	updated, err := h.ruleTemplates.Deactivate(r.Context(), orgFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

package httpapi

import (
	"net/http"

	"github.com/complif/rules-engine/internal/app/domain"
	apperrors "github.com/complif/rules-engine/internal/platform/errors"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) createComplianceList(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Code       string                `json:"code"`
		Name       string                `json:"name"`
		EntityType domain.ListEntityType `json:"entityType"`
		Polarity   domain.ListPolarity   `json:"polarity"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeServiceError(w, apperrors.Validation("invalid request body"))
		return
	}
	created, err := h.lists.CreateList(r.Context(), domain.ComplianceList{
		OrganizationID: orgFromContext(r.Context()),
		Code:           payload.Code,
		Name:           payload.Name,
		EntityType:     payload.EntityType,
		Polarity:       payload.Polarity,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listComplianceLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.lists.ListLists(r.Context(), orgFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

func (h *Handler) getComplianceList(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	l, err := h.lists.GetListByCode(r.Context(), orgFromContext(r.Context()), code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handler) addComplianceListEntry(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "id")
	var payload struct {
		Value string `json:"value"`
		Note  string `json:"note"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeServiceError(w, apperrors.Validation("invalid request body"))
		return
	}
	created, err := h.lists.AddEntry(r.Context(), orgFromContext(r.Context()), domain.ListEntry{
		ListID: listID,
		Value:  payload.Value,
		Note:   payload.Note,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) removeComplianceListEntry(w http.ResponseWriter, r *http.Request) {
	listID := chi.URLParam(r, "id")
	entryID := chi.URLParam(r, "entryID")
	if err := h.lists.RemoveEntry(r.Context(), orgFromContext(r.Context()), listID, entryID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

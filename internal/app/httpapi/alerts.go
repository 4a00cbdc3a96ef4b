package httpapi

import (
	"net/http"
	"strings"

	"github.com/complif/rules-engine/internal/app/domain"
	apperrors "github.com/complif/rules-engine/internal/platform/errors"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
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
	var statusFilter *domain.AlertStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		s := domain.AlertStatus(strings.ToUpper(raw))
		statusFilter = &s
	}
	alerts, err := h.alerts.List(r.Context(), orgFromContext(r.Context()), statusFilter, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (h *Handler) getAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := h.alerts.Get(r.Context(), orgFromContext(r.Context()), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) transitionAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var payload struct {
		Status     string  `json:"status"`
		ResolvedBy *string `json:"resolvedBy"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeServiceError(w, apperrors.Validation("invalid request body"))
		return
	}
	next := domain.AlertStatus(strings.ToUpper(strings.TrimSpace(payload.Status)))
	updated, err := h.alerts.Transition(r.Context(), orgFromContext(r.Context()), id, next, payload.ResolvedBy)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if h.publisher != nil {
		h.publisher.PublishAlert(orgFromContext(r.Context()), updated)
	}
	writeJSON(w, http.StatusOK, updated)
}

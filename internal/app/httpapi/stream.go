package httpapi

import "net/http"

// StreamHub upgrades a request into the caller's organization room.
// Satisfied by internal/app/streaming.Hub.
type StreamHub interface {
	ServeHTTP(org string, w http.ResponseWriter, r *http.Request)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}
	h.hub.ServeHTTP(orgFromContext(r.Context()), w, r)
}

package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	core "github.com/complif/rules-engine/internal/app/core/service"
	apperrors "github.com/complif/rules-engine/internal/platform/errors"
)

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError maps err to an HTTP response. ServiceError carries its
// own status; anything else is a 500, since every expected failure mode
// already surfaces as a ServiceError by the time it reaches this layer.
func writeServiceError(w http.ResponseWriter, err error) {
	var se *apperrors.ServiceError
	if errors.As(err, &se) {
		writeJSON(w, se.HTTPStatus, se)
		return
	}
	writeJSON(w, http.StatusInternalServerError, apperrors.ServiceError{
		Code:    "INTERNAL_ERROR",
		Message: err.Error(),
	})
}

func parseLimitParam(raw string, defaultLimit int) (int, error) {
	def := core.DefaultListLimit
	if defaultLimit > 0 {
		def = defaultLimit
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, apperrors.Validation("limit must be a positive integer")
	}
	return core.ClampLimit(parsed, def, core.MaxListLimit), nil
}

func parseOffsetParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return 0, apperrors.Validation("offset must be a non-negative integer")
	}
	return parsed, nil
}

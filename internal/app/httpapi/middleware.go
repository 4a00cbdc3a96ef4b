// Package httpapi exposes the compliance rule engine over HTTP: rule
// template/version management, transaction ingestion, alert review, and
// compliance list maintenance, all scoped by the organization claim on the
// caller's JWT.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/complif/rules-engine/internal/app/auth"
	apperrors "github.com/complif/rules-engine/internal/platform/errors"
	"github.com/sirupsen/logrus"
)

type ctxKey string

const ctxOrgKey ctxKey = "httpapi.org"
const ctxClaimsKey ctxKey = "httpapi.claims"

var publicPaths = map[string]struct{}{
	"/healthz":       {},
	"/metrics":       {},
	"/system/status": {},
}

// Validator abstracts auth.Manager.Validate so handlers can be tested
// against a fake without a real signing secret.
type Validator interface {
	Validate(tokenString string) (*auth.Claims, error)
}

// requireAuth enforces that every non-public request carries a valid JWT
// with a non-blank organization claim (ORGANIZATION_CONTEXT_REQUIRED),
// injecting the organization into the request context for downstream
// handlers.
func requireAuth(validator Validator, log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := publicPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			token := extractBearerToken(r)
			if token == "" {
				writeServiceError(w, apperrors.New(apperrors.CodeOrganizationContextRequired, "missing bearer token"))
				return
			}
			claims, err := validator.Validate(token)
			if err != nil {
				if log != nil {
					log.WithError(err).Warn("rejected request: invalid token")
				}
				writeServiceError(w, apperrors.New(apperrors.CodeOrganizationContextRequired, "invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), ctxOrgKey, claims.OrganizationID)
			ctx = context.WithValue(ctx, ctxClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.Fields(header)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func orgFromContext(ctx context.Context) string {
	org, _ := ctx.Value(ctxOrgKey).(string)
	return org
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ctxClaimsKey).(*auth.Claims)
	return claims
}

// requestLogger logs method, path, status, and duration through log at
// info level, matching the teacher's structured request-logging idiom.
func requestLogger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if log != nil {
				log.WithFields(logrus.Fields{
					"method":   r.Method,
					"path":     r.URL.Path,
					"status":   rec.status,
					"duration": time.Since(start).String(),
				}).Info("http request")
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

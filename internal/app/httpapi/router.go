package httpapi

import (
	"database/sql"
	"net/http"

	"github.com/complif/rules-engine/internal/app/services/alert"
	"github.com/complif/rules-engine/internal/app/services/compliancelist"
	"github.com/complif/rules-engine/internal/app/services/evaluation"
	"github.com/complif/rules-engine/internal/app/services/ruletemplate"
	"github.com/complif/rules-engine/internal/app/services/ruleversion"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Handler bundles the services exposed over HTTP.
type Handler struct {
	ruleTemplates *ruletemplate.Service
	ruleVersions  *ruleversion.Service
	lists         *compliancelist.Service
	alerts        *alert.Service
	evaluation    *evaluation.Service
	publisher     evaluation.EventPublisher
	hub           StreamHub
	db            *sql.DB
	redis         *redis.Client
	log           *logrus.Entry
}

// Dependencies bundles Handler's collaborators for NewRouter.
type Dependencies struct {
	RuleTemplates  *ruletemplate.Service
	RuleVersions   *ruleversion.Service
	Lists          *compliancelist.Service
	Alerts         *alert.Service
	Evaluation     *evaluation.Service
	Publisher      evaluation.EventPublisher
	Hub            StreamHub
	DB             *sql.DB
	Redis          *redis.Client
	Validator      Validator
	Log            *logrus.Entry
	MetricsMount   http.Handler
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter builds the full HTTP surface: auth + logging middleware, rate
// limiting per organization, and every REST/websocket route the compliance
// engine exposes.
func NewRouter(d Dependencies) http.Handler {
	log := d.Log
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	h := &Handler{
		ruleTemplates: d.RuleTemplates,
		ruleVersions:  d.RuleVersions,
		lists:         d.Lists,
		alerts:        d.Alerts,
		evaluation:    d.Evaluation,
		publisher:     d.Publisher,
		hub:           d.Hub,
		db:            d.DB,
		redis:         d.Redis,
		log:           log,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(log))
	if d.MetricsMount != nil {
		r.Handle("/metrics", d.MetricsMount)
	}
	r.Get("/healthz", h.health)
	r.Get("/system/status", h.systemStatus)

	r.Group(func(api chi.Router) {
		api.Use(requireAuth(d.Validator, log))
		api.Use(orgRateLimiter(d.RateLimitRPS, d.RateLimitBurst))

		api.Route("/rule-templates", func(rt chi.Router) {
			rt.Post("/", h.createRuleTemplate)
			rt.Get("/", h.listRuleTemplates)
			rt.Get("/{id}", h.getRuleTemplate)
			rt.Post("/{id}/deactivate", h.deactivateRuleTemplate)
		})

		api.Route("/rule-versions", func(rv chi.Router) {
			rv.Post("/", h.createRuleVersion)
			rv.Get("/", h.listActiveRuleVersions)
			rv.Post("/{id}/deactivate", h.deactivateRuleVersion)
		})

		api.Route("/transactions", func(tx chi.Router) {
			tx.Post("/", h.ingestTransaction)
		})

		api.Route("/alerts", func(al chi.Router) {
			al.Get("/", h.listAlerts)
			al.Get("/{id}", h.getAlert)
			al.Post("/{id}/transition", h.transitionAlert)
		})

		api.Route("/compliance-lists", func(cl chi.Router) {
			cl.Post("/", h.createComplianceList)
			cl.Get("/", h.listComplianceLists)
			cl.Get("/{code}", h.getComplianceList)
			cl.Post("/{id}/entries", h.addComplianceListEntry)
			cl.Delete("/{id}/entries/{entryID}", h.removeComplianceListEntry)
		})

		api.Get("/stream", h.stream)
	})

	return r
}

// orgRateLimiter enforces a token-bucket budget per organization, matching
// the teacher's per-key limiter map but keyed on the JWT's org claim rather
// than IP/user, since this API scopes everything by tenant.
func orgRateLimiter(requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 50
	}
	if burst <= 0 {
		burst = 100
	}
	limiters := newLimiterSet(rate.Limit(requestsPerSecond), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			org := orgFromContext(r.Context())
			if !limiters.allow(org) {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, map[string]string{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "organization request rate limit exceeded",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/tabllm/internal/provider"
	"github.com/flemzord/tabllm/internal/security"
	"github.com/flemzord/tabllm/internal/store"
)

// Caller invokes a table function by name.
type Caller interface {
	Call(ctx context.Context, name string, args []json.RawMessage) (json.RawMessage, error)
}

// HealthReporter reports per-provider health.
type HealthReporter interface {
	Report() map[string]provider.HealthStatus
}

// Deps are the collaborators the HTTP handler serves. Only Functions is
// required; missing pieces disable their routes.
type Deps struct {
	Functions Caller
	Health    HealthReporter
	Store     store.Writer
	Redactor  *security.Redactor
	Limiter   *security.RateLimiter
	Audit     *security.AuditLogger
	Logger    *slog.Logger

	// Registerer receives the HTTP metrics; Gatherer backs /metrics.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	Auth         AuthConfig
	MaxBodyBytes int
}

type server struct {
	Deps
}

// NewHandler builds the chi router.
//
// /health is public. Everything else sits behind auth when auth is
// configured; the admin routes under /v1/models, /v1/prompts and
// /v1/secrets are not mounted at all without auth.
func NewHandler(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = security.DefaultMaxBodySize
	}
	s := &server{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(newHTTPMetrics(d.Registerer).middleware)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if d.Auth.IsConfigured() {
			r.Use(authMiddleware(d.Auth, d.Audit))
		}
		if d.Gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
		}
		r.Get("/v1/functions", s.handleListFunctions)
		r.Post("/v1/functions/{name}", s.handleCall)

		if !d.Auth.IsConfigured() || d.Store == nil {
			return
		}
		r.Route("/v1/models", func(r chi.Router) {
			r.Get("/", s.handleListModels)
			r.Post("/", s.handlePutModel)
			r.Delete("/{name}", s.handleDeleteModel)
		})
		r.Route("/v1/prompts", func(r chi.Router) {
			r.Get("/", s.handleListPrompts)
			r.Post("/", s.handlePutPrompt)
		})
		r.Put("/v1/secrets/{provider}", s.handlePutSecret)
	})

	return r
}

// decode reads a bounded JSON body into v.
func (s *server) decode(r *http.Request, v any) error {
	body, err := security.ReadBody(r.Body, s.MaxBodyBytes, security.DefaultMaxJSONDepth)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return security.ErrInvalidJSON
	}
	return nil
}

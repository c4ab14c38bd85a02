// http собирает chi-роутер REST API flexibill.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/flexibill/internal/metrics"
	"github.com/pribylovaa/flexibill/internal/transport/http/handlers"
	"github.com/pribylovaa/flexibill/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Timeout time.Duration
	// AdminToken открывает /api/admin и /api/internal.
	AdminToken string
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(h *handlers.Handlers, opts Options) http.Handler {
	r := chi.NewRouter()

	// Middleware (внешний -> внутренний). RequestID до логирования.
	r.Use(
		middleware.RequestID(),
		middleware.Logging(opts.Logger, opts.Metrics),
		middleware.Recover(opts.Metrics),
		middleware.Timeout(opts.Timeout),
	)

	r.Get("/livez", h.Livez)
	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", h.Metrics())

	r.Route("/api", func(r chi.Router) {
		registerRoutes(r, h, opts)
	})

	return r
}

// registerRoutes — единая точка регистрации REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers, opts Options) {
	// auth
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)

	// provider push
	r.Post("/webhooks/provider", h.WebhookReceive)

	// items (пользователь)
	r.Group(func(r chi.Router) {
		r.Use(middleware.UserAuth(h.Tokens))
		r.Post("/items", h.LinkItem)
		r.Post("/items/link-token", h.LinkToken)
		r.Get("/items/{id}/accounts", h.Accounts)
	})

	// служебные
	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminToken(opts.AdminToken))
		r.Post("/internal/sessions", h.IssueSession)
		r.Post("/internal/tokens/validate", h.ValidateToken)
		r.Post("/admin/users/{id}/revoke-all", h.RevokeAll)
		r.Get("/admin/breakers", h.ListBreakers)
		r.Post("/admin/breakers/reset", h.ResetBreakers)
		r.Get("/admin/security/incidents", h.Incidents)
	})
}

// Package server assembles the HTTP surface: the REST gateway with its
// admission chain and, beside it, the persistent-connection endpoint.
package server

import (
	"net/http"

	"dispatch-gateway/config"
	"dispatch-gateway/core"
	"dispatch-gateway/handlers/api/resources"
	"dispatch-gateway/handlers/system"
	"dispatch-gateway/metrics"
	"dispatch-gateway/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Deps are the collaborators the router mounts.
type Deps struct {
	Config    *config.Config
	Store     core.DocumentStore
	Validator core.TokenValidator
	Auth      http.Handler
	Stats     resources.StatsSource
	Socket    http.Handler
	Metrics   *metrics.Metrics
}

// NewRouter builds the root handler. The Socket.IO endpoint is mounted
// outside the gateway chain so polling transports are not rate limited.
func NewRouter(deps Deps) http.Handler {
	root := chi.NewRouter()
	if deps.Socket != nil {
		root.Mount("/socket.io/", deps.Socket)
	}
	root.Mount("/", gateway(deps))
	return root
}

// gateway applies, per request and in order: security headers, the origin
// allow-list, rate-limit admission and, for versioned resources, the bearer
// token check. Clients are keyed by the connection address; forwarded-for
// headers are not trusted.
func gateway(deps Deps) chi.Router {
	cfg := deps.Config
	origins := middleware.NewOriginPolicy(cfg.CORSOrigins)
	limiter := middleware.NewRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMax, deps.Metrics)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(origins.CORS())
	r.Use(origins.RejectForeignWrites)
	r.Use(limiter.Handler)

	r.NotFound(middleware.NotFound)
	r.MethodNotAllowed(middleware.MethodNotAllowed)

	r.Get("/", system.HandleDescriptor(cfg.APIPrefix()))
	r.Get("/health", system.HandleHealth(cfg.Environment))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
	if cfg.UploadsDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir))))
	}

	r.Route(cfg.APIPrefix(), func(r chi.Router) {
		if deps.Auth != nil {
			r.Mount("/auth", deps.Auth)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(deps.Validator, deps.Metrics))

			for _, collection := range resources.Collections {
				r.Mount("/"+collection, resources.Routes(deps.Store, collection))
			}
			r.Get("/analytics", resources.HandleAnalytics(deps.Store))
			r.Get("/dashboard", resources.HandleDashboard(deps.Store, deps.Stats))
		})
	})

	return r
}

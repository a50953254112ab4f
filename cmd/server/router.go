package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docbridge/internal/compliance/handler"
	httpmetrics "docbridge/internal/platform/metrics"
	"docbridge/pkg/platform/middleware/admin"
	"docbridge/pkg/platform/middleware/auth"
	"docbridge/pkg/platform/middleware/metadata"
	"docbridge/pkg/platform/middleware/ratelimit"
	"docbridge/pkg/platform/middleware/request"
	"docbridge/pkg/platform/middleware/requesttime"
)

type routerDeps struct {
	logger         *slog.Logger
	registry       *prometheus.Registry
	httpMetrics    *httpmetrics.Metrics
	limiter        *ratelimit.Limiter
	validator      auth.JWTValidator
	revocation     auth.TokenRevocationChecker
	adminToken     string
	allowedOrigins []string
	compliance     *handler.Handler
	admin          *handler.AdminHandler
	health         *health
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(d.httpMetrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", request.HeaderRequestID},
		ExposedHeaders: []string{request.HeaderRequestID, "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/healthz", d.health.ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(d.limiter.Middleware)
		d.compliance.RegisterPublic(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(d.validator, d.revocation, d.logger))
			d.compliance.Register(r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(d.adminToken, d.logger))
		d.admin.Register(r)
	})
	return r
}
